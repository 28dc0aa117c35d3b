package propagation

import (
	"slices"
	"time"

	"github.com/aretw0/caseconf/pkg/domain"
)

type entry struct {
	domain domain.Domain
	value  domain.Value
}

// cycle is the state of one propagation: the worklist, the journal of prior states and
// the counters reported in Result.
type cycle struct {
	e       *Engine
	trigger string
	started time.Time
	stats   domain.PropagationStats

	queue   []string // ordered by rank
	queued  map[string]struct{}
	touched []string
	journal map[string]entry
}

func (e *Engine) newCycle(trigger string) *cycle {
	return &cycle{
		e:       e,
		trigger: trigger,
		started: time.Now(),
		queued:  make(map[string]struct{}),
		journal: make(map[string]entry),
	}
}

// record saves the state of key before its first change in this cycle.
func (c *cycle) record(key string) {
	if _, ok := c.journal[key]; ok {
		return
	}
	d, _ := c.e.reg.Domain(key)
	v, _ := c.e.reg.Value(key)
	c.journal[key] = entry{domain: d, value: v}
}

func (c *cycle) enqueue(key string) {
	if _, ok := c.queued[key]; ok {
		return
	}
	c.queued[key] = struct{}{}
	rank := c.e.graph.Rank(key)
	i, _ := slices.BinarySearchFunc(c.queue, rank, func(k string, r int) int {
		return c.e.graph.Rank(k) - r
	})
	c.queue = slices.Insert(c.queue, i, key)
}

func (c *cycle) enqueueDependents(key string) {
	for _, dep := range c.e.graph.Dependents(key) {
		c.enqueue(dep)
	}
}

func (c *cycle) pop() string {
	key := c.queue[0]
	c.queue = c.queue[1:]
	delete(c.queued, key)
	return key
}

// run drains the worklist, then re-evaluates every touched variable. A mismatch can only
// come from a rule that is not pure; it seeds another round until the cap is hit.
func (c *cycle) run() error {
	for len(c.queue) > 0 {
		c.stats.Rounds++
		if c.stats.Rounds > c.e.maxRounds {
			return &domain.NonConvergenceError{
				Trigger: c.trigger,
				Rounds:  c.e.maxRounds,
				Pending: slices.Clone(c.queue),
			}
		}

		for len(c.queue) > 0 {
			if err := c.step(c.pop()); err != nil {
				return err
			}
		}

		for _, key := range c.touched {
			fresh, evals, err := c.e.compute(key)
			c.stats.Evaluations += evals
			if err != nil {
				return err
			}
			if current, _ := c.e.reg.Domain(key); !fresh.Equal(current) {
				c.enqueue(key)
			}
		}
	}
	return nil
}

// step recomputes the domain of key and reacts to a change.
func (c *cycle) step(key string) error {
	if !slices.Contains(c.touched, key) {
		c.touched = append(c.touched, key)
	}

	fresh, evals, err := c.e.compute(key)
	c.stats.Evaluations += evals
	if err != nil {
		return err
	}
	current, _ := c.e.reg.Domain(key)
	if fresh.Equal(current) {
		return nil
	}

	c.record(key)
	_ = c.e.reg.SetDomain(key, fresh)
	if v, _ := c.e.reg.Value(key); v.IsSet() && !fresh.Contains(v) {
		_ = c.e.reg.Clear(key)
	}
	c.enqueueDependents(key)
	return nil
}

func (c *cycle) rollback() {
	for key, prior := range c.journal {
		_ = c.e.reg.SetDomain(key, prior.domain)
		_ = c.e.reg.Assign(key, prior.value)
	}
}

// deltas returns the net change of every journaled variable, skipping those that ended
// where they started.
func (c *cycle) deltas() []domain.Delta {
	keys := make([]string, 0, len(c.journal))
	for key := range c.journal {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return c.e.graph.Rank(a) - c.e.graph.Rank(b)
	})

	var out []domain.Delta
	for _, key := range keys {
		prior := c.journal[key]
		d, _ := c.e.reg.Domain(key)
		v, _ := c.e.reg.Value(key)
		delta := domain.Delta{
			Key:       key,
			OldDomain: prior.domain,
			NewDomain: d,
			OldValue:  prior.value,
			NewValue:  v,
		}
		if delta.DomainChanged() || delta.ValueChanged() {
			out = append(out, delta)
		}
	}
	return out
}
