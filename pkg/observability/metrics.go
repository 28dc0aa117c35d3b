package observability

import (
	"errors"

	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values of caseconf_mutations_total.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultDefect   = "defect"
)

// Metrics holds the collectors fed by session hooks.
type Metrics struct {
	Mutations      *prometheus.CounterVec
	Rounds         prometheus.Histogram
	Evaluations    prometheus.Histogram
	DomainChanges  prometheus.Counter
	ClearedValues  prometheus.Counter
	Rejections     *prometheus.CounterVec
	PropagationDur prometheus.Histogram
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseconf_mutations_total",
			Help: "Mutating calls by operation and result.",
		}, []string{"op", "result"}),
		Rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "caseconf_propagation_rounds",
			Help:    "Propagation rounds per accepted call.",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		}),
		Evaluations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "caseconf_propagation_evaluations",
			Help:    "Rule evaluations per accepted call.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		DomainChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caseconf_domain_changes_total",
			Help: "Variables whose domain changed in an accepted call.",
		}),
		ClearedValues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caseconf_cleared_values_total",
			Help: "Values unset because propagation excluded them.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseconf_rejections_total",
			Help: "Refused calls by error class.",
		}, []string{"reason"}),
		PropagationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "caseconf_propagation_duration_seconds",
			Help:    "Wall time of propagation per accepted call.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Mutations, m.Rounds, m.Evaluations, m.DomainChanges,
		m.ClearedValues, m.Rejections, m.PropagationDur,
	}
}

// Register registers every collector with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister registers every collector with r and panics on conflicts.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(m.collectors()...)
}

// Hooks returns session hooks recording into m.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnBatch:  m.observeBatch,
		OnReject: m.observeReject,
	}
}

func (m *Metrics) observeBatch(b domain.Batch, stats domain.PropagationStats) {
	m.Mutations.WithLabelValues(string(b.Op), ResultAccepted).Inc()
	m.Rounds.Observe(float64(stats.Rounds))
	m.Evaluations.Observe(float64(stats.Evaluations))
	m.PropagationDur.Observe(stats.Duration.Seconds())
	for _, d := range b.Deltas {
		if d.DomainChanged() {
			m.DomainChanges.Inc()
		}
		if d.Cleared() {
			m.ClearedValues.Inc()
		}
	}
}

func (m *Metrics) observeReject(r domain.Rejection) {
	result := ResultRejected
	if domain.IsDefect(r.Err) {
		result = ResultDefect
	}
	m.Mutations.WithLabelValues(string(r.Op), result).Inc()
	m.Rejections.WithLabelValues(Reason(r.Err)).Inc()
}

// Reason classifies err into a short label.
func Reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrDomainViolation):
		return "domain_violation"
	case errors.Is(err, domain.ErrStageLocked):
		return "stage_locked"
	case errors.Is(err, domain.ErrStageIncomplete):
		return "stage_incomplete"
	case errors.Is(err, domain.ErrUnknownVariable):
		return "unknown_variable"
	case errors.Is(err, domain.ErrUnknownStage):
		return "unknown_stage"
	case errors.Is(err, domain.ErrNonConvergence):
		return "non_convergence"
	case errors.Is(err, domain.ErrRuleDefect):
		return "rule_defect"
	case errors.Is(err, domain.ErrSessionBroken):
		return "session_broken"
	case errors.Is(err, domain.ErrReentrant):
		return "reentrant"
	default:
		return "other"
	}
}
