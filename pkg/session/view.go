package session

import (
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/graph"
	"github.com/aretw0/caseconf/pkg/stage"
)

// VariableView is the presentation form of one variable.
type VariableView struct {
	Key         string                  `json:"key"`
	Kind        domain.Kind             `json:"kind"`
	Description string                  `json:"description,omitempty"`
	Stage       int                     `json:"stage"` // -1 when outside every stage
	Value       domain.Value            `json:"value,omitempty"`
	Domain      domain.Domain           `json:"domain"`
	Blocked     bool                    `json:"blocked,omitempty"`
	Help        map[domain.Value]string `json:"help,omitempty"`
}

// View is a consistent picture of a session, as adapters present it.
type View struct {
	ID          string         `json:"id"`
	Blueprint   string         `json:"blueprint"`
	Seq         uint64         `json:"seq"`
	ActiveStage int            `json:"active_stage"`
	Complete    bool           `json:"complete"`
	Broken      string         `json:"broken,omitempty"`
	Stages      []stage.View   `json:"stages"`
	Variables   []VariableView `json:"variables"`
}

// Describe returns the current View of the session.
func (s *Session) Describe() (View, error) {
	stages, err := s.Stages()
	if err != nil {
		return View{}, err
	}
	v := View{
		ID:          s.id,
		Blueprint:   s.bp.Name(),
		Seq:         s.seq,
		ActiveStage: s.gate.Active(),
		Complete:    s.Complete(),
		Stages:      stages,
	}
	if s.broken != nil {
		v.Broken = s.broken.Error()
	}
	for _, rv := range s.Variables() {
		idx, ok := s.gate.StageOf(rv.Key)
		if !ok {
			idx = -1
		}
		v.Variables = append(v.Variables, VariableView{
			Key:         rv.Key,
			Kind:        rv.Kind,
			Description: rv.Description,
			Stage:       idx,
			Value:       rv.Value,
			Domain:      rv.Current,
			Blocked:     rv.Blocked(),
			Help:        rv.Help,
		})
	}
	return v, nil
}

// Overlay returns the session state to highlight on the constraint graph.
func (s *Session) Overlay() *graph.Overlay {
	o := &graph.Overlay{Values: s.reg.Assignments()}
	for _, rv := range s.Variables() {
		if rv.Blocked() {
			o.Blocked = append(o.Blocked, rv.Key)
		}
	}
	if st, err := s.gate.Stage(s.gate.Active()); err == nil {
		o.Active = append(o.Active, st.Vars...)
	}
	return o
}
