// Package stage groups variables into ordered wizard stages and gates progression.
//
// Each stage is locked, active or complete. Exactly one stage is active until the last
// one is advanced past; every stage before the active one is complete.
package stage

import (
	"fmt"

	"github.com/aretw0/caseconf/pkg/domain"
)

// Status is the state of one stage.
type Status string

const (
	StatusLocked   Status = "locked"
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

// Reader is the view of variable state the gate evaluates completion against.
type Reader interface {
	Value(key string) (domain.Value, error)
	Domain(key string) (domain.Domain, error)
}

// View summarizes a stage for presentation.
type View struct {
	Index       int      `json:"index"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Vars        []string `json:"vars"`
	Missing     []string `json:"missing,omitempty"`
	Blocked     []string `json:"blocked,omitempty"`
}

// Gate tracks the active stage of one session.
type Gate struct {
	stages []domain.StageDef
	owner  map[string]int
	active int
}

// Validate checks that no variable belongs to two stages and no stage is empty.
func Validate(stages []domain.StageDef) error {
	_, err := index(stages)
	return err
}

func index(stages []domain.StageDef) (map[string]int, error) {
	owner := make(map[string]int)
	for i, s := range stages {
		if len(s.Vars) == 0 {
			return nil, domain.Structuralf(nil, "stage %d (%s) has no variables", i, s.Title)
		}
		for _, key := range s.Vars {
			if prev, dup := owner[key]; dup {
				return nil, domain.Structuralf([]string{key}, "variable in stages %d and %d", prev, i)
			}
			owner[key] = i
		}
	}
	return owner, nil
}

// New creates a gate with the first stage active.
func New(stages []domain.StageDef) (*Gate, error) {
	owner, err := index(stages)
	if err != nil {
		return nil, err
	}
	return &Gate{stages: stages, owner: owner}, nil
}

// Len returns the number of stages.
func (g *Gate) Len() int {
	return len(g.stages)
}

// Active returns the index of the active stage, or Len once every stage was advanced past.
func (g *Gate) Active() int {
	return g.active
}

// Done reports whether the last stage was advanced past.
func (g *Gate) Done() bool {
	return g.active >= len(g.stages)
}

// Stage returns the definition of stage i.
func (g *Gate) Stage(i int) (domain.StageDef, error) {
	if i < 0 || i >= len(g.stages) {
		return domain.StageDef{}, fmt.Errorf("%w: %d", domain.ErrUnknownStage, i)
	}
	return g.stages[i], nil
}

// StageOf returns the stage owning key.
func (g *Gate) StageOf(key string) (int, bool) {
	i, ok := g.owner[key]
	return i, ok
}

// Status returns the state of stage i.
func (g *Gate) Status(i int) Status {
	switch {
	case i < g.active:
		return StatusComplete
	case i == g.active:
		return StatusActive
	default:
		return StatusLocked
	}
}

// Check lists the variables of stage i that are unset or out of domain, and those whose
// domain is empty.
func (g *Gate) Check(r Reader, i int) (missing, blocked []string, err error) {
	s, err := g.Stage(i)
	if err != nil {
		return nil, nil, err
	}
	for _, key := range s.Vars {
		v, err := r.Value(key)
		if err != nil {
			return nil, nil, err
		}
		d, err := r.Domain(key)
		if err != nil {
			return nil, nil, err
		}
		if d.IsEmpty() {
			blocked = append(blocked, key)
		}
		if !d.Contains(v) {
			missing = append(missing, key)
		}
	}
	return missing, blocked, nil
}

// IsComplete reports whether every variable of stages 0..i holds an in-domain value and
// no variable of stage i is blocked.
func (g *Gate) IsComplete(r Reader, i int) (bool, error) {
	if _, err := g.Stage(i); err != nil {
		return false, err
	}
	for j := 0; j <= i; j++ {
		missing, blocked, err := g.Check(r, j)
		if err != nil {
			return false, err
		}
		if len(missing) > 0 || (j == i && len(blocked) > 0) {
			return false, nil
		}
	}
	return true, nil
}

// CheckWritable rejects writes to variables of locked stages. Variables outside every
// stage are always writable.
func (g *Gate) CheckWritable(key string) error {
	i, ok := g.owner[key]
	if !ok || i <= g.active {
		return nil
	}
	return &domain.StageLockedError{Key: key, Stage: i, Active: g.active}
}

// Advance completes the active stage and activates the next one.
func (g *Gate) Advance(r Reader) error {
	if g.Done() {
		return fmt.Errorf("%w: no stage after %d", domain.ErrUnknownStage, len(g.stages)-1)
	}
	if err := g.Require(r, g.active); err != nil {
		return err
	}
	g.active++
	return nil
}

// Require returns a StageIncompleteError unless stage i is complete.
func (g *Gate) Require(r Reader, i int) error {
	ok, err := g.IsComplete(r, i)
	if err != nil {
		return err
	}
	if !ok {
		return g.incomplete(r, i)
	}
	return nil
}

func (g *Gate) incomplete(r Reader, i int) error {
	s := g.stages[i]
	e := &domain.StageIncompleteError{Stage: i, Title: s.Title}
	for j := 0; j <= i; j++ {
		missing, blocked, err := g.Check(r, j)
		if err != nil {
			return err
		}
		e.Missing = append(e.Missing, missing...)
		if j == i {
			e.Blocked = blocked
		}
	}
	return e
}

// Reconcile moves the active stage back to the first earlier stage that is no longer
// complete. It reports whether the active stage moved.
func (g *Gate) Reconcile(r Reader) (bool, error) {
	for i := 0; i < g.active && i < len(g.stages); i++ {
		ok, err := g.IsComplete(r, i)
		if err != nil {
			return false, err
		}
		if !ok {
			g.active = i
			return true, nil
		}
	}
	return false, nil
}

// Rewind makes stage i active if it is at or before the active stage.
func (g *Gate) Rewind(i int) error {
	if _, err := g.Stage(i); err != nil {
		return err
	}
	if i < g.active {
		g.active = i
	}
	return nil
}

// VarsFrom returns the variables of stage i and every later stage, in stage order.
func (g *Gate) VarsFrom(i int) []string {
	var keys []string
	for j := max(i, 0); j < len(g.stages); j++ {
		keys = append(keys, g.stages[j].Vars...)
	}
	return keys
}

// Views summarizes every stage.
func (g *Gate) Views(r Reader) ([]View, error) {
	views := make([]View, len(g.stages))
	for i, s := range g.stages {
		missing, blocked, err := g.Check(r, i)
		if err != nil {
			return nil, err
		}
		views[i] = View{
			Index:       i,
			Title:       s.Title,
			Description: s.Description,
			Status:      g.Status(i),
			Vars:        append([]string(nil), s.Vars...),
			Missing:     missing,
			Blocked:     blocked,
		}
	}
	return views, nil
}
