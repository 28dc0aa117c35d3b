package observability_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/caseconf/pkg/blueprint"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/observability"
	"github.com/aretw0/caseconf/pkg/rules"
	"github.com/aretw0/caseconf/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, m *observability.Metrics) *session.Session {
	t.Helper()
	bp, err := blueprint.Blueprint{
		Name: "metrics",
		Variables: []domain.VariableDef{
			{Key: "ATM", Base: domain.Strings("cam", "satm")},
			{Key: "OCN", Base: domain.Strings("mom", "docn")},
		},
		Rules: []rules.Rule{
			rules.When("satm", []rules.Condition{rules.Equals("ATM", "satm")},
				rules.Restriction{"OCN": domain.Strings("docn")}),
		},
		Stages: []domain.StageDef{{Title: "Components", Vars: []string{"ATM", "OCN"}}},
	}.Compile()
	require.NoError(t, err)

	s, err := session.New("s1", bp, session.WithHooks(m.Hooks()))
	require.NoError(t, err)
	return s
}

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	s := newSession(t, m)

	_, err := s.SetValue("OCN", "mom")
	require.NoError(t, err)
	_, err = s.SetValue("ATM", "satm")
	require.NoError(t, err)
	_, err = s.SetValue("OCN", "mom")
	require.ErrorIs(t, err, domain.ErrDomainViolation)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("set", observability.ResultAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("set", observability.ResultRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DomainChanges))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClearedValues))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("domain_violation")))
}

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg), "collectors register once")

	m.Hooks().OnBatch(domain.Batch{Op: domain.OpAdvance}, domain.PropagationStats{Rounds: 1})
	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "caseconf_mutations_total")
	assert.Contains(t, names, "caseconf_propagation_rounds")
}

func TestReason(t *testing.T) {
	tests := map[string]error{
		"domain_violation": &domain.DomainViolationError{Key: "A"},
		"stage_locked":     &domain.StageLockedError{Key: "A", Stage: 2},
		"stage_incomplete": fmt.Errorf("wrapped: %w", &domain.StageIncompleteError{}),
		"unknown_variable": domain.ErrUnknownVariable,
		"reentrant":        domain.ErrReentrant,
		"rule_defect":      &domain.RuleDefectError{Rule: "r", Err: errors.New("boom")},
		"other":            errors.New("io"),
	}
	for want, err := range tests {
		assert.Equal(t, want, observability.Reason(err))
	}
}
