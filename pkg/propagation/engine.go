// Package propagation keeps the current domains of a registry consistent with its rules.
//
// Every mutation runs to a fixpoint before returning. The engine records the prior state
// of each variable it touches, so a mutation either completes with one set of net deltas
// or is rolled back entirely.
package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/caseconf/internal/logging"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/graph"
	"github.com/aretw0/caseconf/pkg/registry"
	"github.com/aretw0/caseconf/pkg/rules"
)

// Result describes one completed propagation cycle.
type Result struct {
	// Deltas holds the net change of every variable whose domain or value moved,
	// in topological order.
	Deltas []domain.Delta
	Stats  domain.PropagationStats
}

// Engine propagates mutations over one registry.
// It is not safe for concurrent use.
type Engine struct {
	reg       *registry.Registry
	graph     *graph.Graph
	maxRounds int
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRounds overrides the round cap. Values below 1 are ignored.
func WithMaxRounds(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRounds = n
		}
	}
}

// WithLogger sets the logger used for propagation traces.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine over reg. The round cap defaults to the number of variables plus one.
func New(reg *registry.Registry, g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{
		reg:       reg,
		graph:     g,
		maxRounds: len(g.Order()) + 1,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxRounds returns the round cap.
func (e *Engine) MaxRounds() int {
	return e.maxRounds
}

// Initialize recomputes every domain from scratch in topological order.
// Values that fall outside their recomputed domain are cleared.
func (e *Engine) Initialize() (Result, error) {
	c := e.newCycle("init")
	for _, key := range e.graph.Order() {
		c.enqueue(key)
	}
	return e.finish(c, c.run())
}

// Assign sets key to value and propagates. A value outside the current domain is rejected
// with a DomainViolationError before any state changes. Assigning the current value again
// is a no-op with an empty result.
func (e *Engine) Assign(key string, value domain.Value) (Result, error) {
	current, err := e.reg.Domain(key)
	if err != nil {
		return Result{}, err
	}
	if !current.Contains(value) {
		reasons, _ := e.Explain(key, value)
		return Result{}, &domain.DomainViolationError{Key: key, Value: value, Domain: current, Reasons: reasons}
	}
	old, _ := e.reg.Value(key)
	if old == value {
		return Result{}, nil
	}

	c := e.newCycle(key)
	c.record(key)
	_ = e.reg.Assign(key, value)
	c.enqueueDependents(key)
	return e.finish(c, c.run())
}

// Retract clears the values of keys and propagates once.
func (e *Engine) Retract(keys ...string) (Result, error) {
	for _, key := range keys {
		if !e.reg.Has(key) {
			return Result{}, fmt.Errorf("%w: %s", domain.ErrUnknownVariable, key)
		}
	}

	c := e.newCycle(trigger(keys))
	for _, key := range keys {
		v, _ := e.reg.Value(key)
		if !v.IsSet() {
			continue
		}
		c.record(key)
		_ = e.reg.Clear(key)
		c.enqueueDependents(key)
	}
	return e.finish(c, c.run())
}

func trigger(keys []string) string {
	switch len(keys) {
	case 0:
		return "retract"
	case 1:
		return keys[0]
	}
	return fmt.Sprintf("%s (+%d)", keys[0], len(keys)-1)
}

// Explain lists why value is not currently legal for key: the messages of the rules
// whose restriction excludes it, or a note when it is outside the base domain.
// It returns nil when value is legal.
func (e *Engine) Explain(key string, value domain.Value) ([]string, error) {
	base, err := e.reg.Base(key)
	if err != nil {
		return nil, err
	}
	if !base.Contains(value) {
		return []string{fmt.Sprintf("%q is not an option of %s", value, key)}, nil
	}

	var reasons []string
	for _, r := range e.graph.Writers(key) {
		in, ok := e.inputs(r)
		if !ok {
			continue
		}
		res, err := r.Evaluate(in)
		if err != nil {
			return nil, err
		}
		if d, restricted := res[key]; restricted && !d.Contains(value) {
			reasons = append(reasons, r.Explain())
		}
	}
	return reasons, nil
}

// Stale returns the keys whose stored domain differs from a fresh computation or whose
// value lies outside its domain. It is empty whenever the engine is at a fixpoint.
func (e *Engine) Stale() ([]string, error) {
	var stale []string
	for _, key := range e.graph.Order() {
		fresh, _, err := e.compute(key)
		if err != nil {
			return nil, err
		}
		current, _ := e.reg.Domain(key)
		v, _ := e.reg.Value(key)
		if !fresh.Equal(current) || (v.IsSet() && !current.Contains(v)) {
			stale = append(stale, key)
		}
	}
	return stale, nil
}

// inputs collects the values of r's inputs. It reports false while any of them is unset:
// such a rule contributes no restriction.
func (e *Engine) inputs(r rules.Rule) (rules.Inputs, bool) {
	in := make(rules.Inputs, len(r.Inputs))
	for _, k := range r.Inputs {
		v, err := e.reg.Value(k)
		if err != nil || !v.IsSet() {
			return nil, false
		}
		in[k] = v
	}
	return in, true
}

// compute intersects the base domain of key with the restriction of every applicable rule.
func (e *Engine) compute(key string) (domain.Domain, int, error) {
	d, err := e.reg.Base(key)
	if err != nil {
		return domain.Domain{}, 0, err
	}
	evals := 0
	for _, r := range e.graph.Writers(key) {
		in, ok := e.inputs(r)
		if !ok {
			continue
		}
		res, err := r.Evaluate(in)
		evals++
		if err != nil {
			return domain.Domain{}, evals, err
		}
		if restriction, ok := res[key]; ok {
			d = d.Intersect(restriction)
		}
	}
	return d, evals, nil
}

func (e *Engine) finish(c *cycle, err error) (Result, error) {
	c.stats.Duration = time.Since(c.started)
	if err != nil {
		c.rollback()
		level := slog.LevelInfo
		if domain.IsDefect(err) {
			level = slog.LevelError
		}
		e.logger.Log(context.Background(), level, "propagation rolled back",
			"trigger", c.trigger, "rounds", c.stats.Rounds, "error", err)
		return Result{Stats: c.stats}, err
	}

	res := Result{Deltas: c.deltas(), Stats: c.stats}
	e.logger.Debug("propagated",
		"trigger", c.trigger,
		"rounds", res.Stats.Rounds,
		"evaluations", res.Stats.Evaluations,
		"deltas", len(res.Deltas))
	return res, nil
}
