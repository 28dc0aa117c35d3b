package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/caseconf/pkg/blueprint"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/rules"
	"github.com/aretw0/caseconf/pkg/session"
	"github.com/aretw0/caseconf/pkg/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, opts ...session.Option) *session.Session {
	t.Helper()
	s, err := session.New("s1", caseBlueprint(t), opts...)
	require.NoError(t, err)
	return s
}

func TestSession_StubAtmosphereScenario(t *testing.T) {
	s := newSession(t)

	_, err := s.SetValue("COMP_OCN", "mom")
	require.NoError(t, err)

	b, err := s.SetValue("COMP_ATM", "satm")
	require.NoError(t, err)
	assert.Equal(t, domain.OpSet, b.Op)
	assert.Equal(t, "COMP_ATM", b.Key)
	assert.Equal(t, []string{"COMP_OCN"}, b.Cleared())

	d, err := s.Domain("COMP_OCN")
	require.NoError(t, err)
	assert.True(t, d.Equal(domain.Strings("docn", "socn")))

	complete, err := s.IsStageComplete(0)
	require.NoError(t, err)
	assert.False(t, complete)

	_, err = s.Advance()
	assert.ErrorIs(t, err, domain.ErrStageIncomplete)

	_, err = s.SetValue("COMP_OCN", "mom")
	var dv *domain.DomainViolationError
	require.True(t, errors.As(err, &dv))
	assert.Equal(t, []string{"satm cannot drive an active ocean"}, dv.Reasons)
}

func TestSession_LockedStage(t *testing.T) {
	s := newSession(t)

	_, err := s.SetValue("GRID", "f09_g17")
	assert.ErrorIs(t, err, domain.ErrStageLocked)
	_, err = s.Unset("NTASKS")
	assert.ErrorIs(t, err, domain.ErrStageLocked)
	_, err = s.SetValue("MISSING", "x")
	assert.ErrorIs(t, err, domain.ErrUnknownVariable)
}

func TestSession_OneBatchPerMutation(t *testing.T) {
	s := newSession(t)
	var got []domain.Batch
	cancel := s.Subscribe(func(b domain.Batch) { got = append(got, b) })

	_, err := s.SetValue("COMP_ATM", "cam")
	require.NoError(t, err)
	_, err = s.SetValue("COMP_ATM", "cam")
	require.NoError(t, err)
	_, err = s.SetValue("COMP_ATM", "nope")
	require.Error(t, err)

	require.Len(t, got, 2, "rejected calls emit nothing")
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, uint64(2), got[1].Seq)
	assert.True(t, got[1].IsEmpty(), "repeating a value yields an empty batch")
	assert.NotNil(t, got[1].Deltas)

	cancel()
	_, err = s.Unset("COMP_ATM")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, uint64(3), s.Seq())
}

func TestSession_AdvanceAutoSelectsAndAppliesDefaults(t *testing.T) {
	s := newSession(t)
	_, err := s.SetValue("COMP_ATM", "cam")
	require.NoError(t, err)
	_, err = s.SetValue("COMP_OCN", "docn")
	require.NoError(t, err)

	b, err := s.Advance()
	require.NoError(t, err)
	assert.Equal(t, domain.OpAdvance, b.Op)
	assert.Equal(t, 1, b.Stage)
	grid, ok := b.Delta("GRID")
	require.True(t, ok)
	assert.Equal(t, domain.Value("T62_g17"), grid.NewValue)

	b, err = s.Advance()
	require.NoError(t, err)
	assert.Equal(t, 2, s.ActiveStage())
	ntasks, ok := b.Delta("NTASKS")
	require.True(t, ok)
	assert.Equal(t, domain.Value("64"), ntasks.NewValue)

	_, err = s.Advance()
	require.NoError(t, err)
	views, err := s.Stages()
	require.NoError(t, err)
	for _, v := range views {
		assert.Equal(t, stage.StatusComplete, v.Status)
	}
}

func TestSession_NumericInputIsCanonicalized(t *testing.T) {
	s := newSession(t)
	for key, v := range map[string]domain.Value{"COMP_ATM": "cam", "COMP_OCN": "mom"} {
		_, err := s.SetValue(key, v)
		require.NoError(t, err)
	}
	_, err := s.Advance()
	require.NoError(t, err)
	_, err = s.SetValue("GRID", "f19_g17")
	require.NoError(t, err)
	_, err = s.Advance()
	require.NoError(t, err)

	_, err = s.SetValue("NTASKS", " 0128 ")
	require.NoError(t, err)
	v, _ := s.Value("NTASKS")
	assert.Equal(t, domain.Value("128"), v)

	_, err = s.SetValue("NTASKS", "many")
	assert.ErrorIs(t, err, domain.ErrDomainViolation)
	_, err = s.SetValue("NTASKS", "0")
	assert.ErrorIs(t, err, domain.ErrDomainViolation)
}

func TestSession_ResetStageRestoresDomains(t *testing.T) {
	s := newSession(t)
	initial := map[string]domain.Domain{}
	for _, v := range s.Variables() {
		initial[v.Key] = v.Current
	}

	_, err := s.SetValue("COMP_ATM", "satm")
	require.NoError(t, err)
	_, err = s.SetValue("COMP_OCN", "socn")
	require.NoError(t, err)
	_, err = s.Advance()
	require.NoError(t, err)

	b, err := s.ResetStage(0)
	require.NoError(t, err)
	assert.Equal(t, domain.OpReset, b.Op)
	assert.Equal(t, 0, s.ActiveStage())
	for _, v := range s.Variables() {
		assert.True(t, v.Current.Equal(initial[v.Key]), "domain of %s restored", v.Key)
		assert.False(t, v.Value.IsSet(), "%s cleared", v.Key)
	}

	_, err = s.ResetStage(9)
	assert.ErrorIs(t, err, domain.ErrUnknownStage)
}

func TestSession_UnsetMovesActiveStageBack(t *testing.T) {
	s := newSession(t)
	_, err := s.SetValue("COMP_ATM", "cam")
	require.NoError(t, err)
	_, err = s.SetValue("COMP_OCN", "mom")
	require.NoError(t, err)
	_, err = s.Advance()
	require.NoError(t, err)
	require.Equal(t, 1, s.ActiveStage())

	b, err := s.Unset("COMP_OCN")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Stage)
	assert.Equal(t, 0, s.ActiveStage())
}

func TestSession_ExportSnapshot(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	s := newSession(t, session.WithClock(func() time.Time { return at }))

	_, err := s.ExportSnapshot()
	require.ErrorIs(t, err, domain.ErrStageIncomplete)

	_, err = s.SetValue("COMP_ATM", "cam")
	require.NoError(t, err)
	_, err = s.SetValue("COMP_OCN", "docn")
	require.NoError(t, err)
	_, err = s.Advance()
	require.NoError(t, err)
	_, err = s.Advance()
	require.NoError(t, err)

	snap, err := s.ExportSnapshot()
	require.NoError(t, err)
	assert.Equal(t, at, snap.Taken())
	assert.Equal(t, map[string]domain.Value{
		"COMP_ATM": "cam",
		"COMP_OCN": "docn",
		"GRID":     "T62_g17",
		"NTASKS":   "64",
	}, snap.Map())
}

func TestSession_DefectBreaksSession(t *testing.T) {
	fragile := rules.Rule{
		Name:    "fragile",
		Inputs:  []string{"COMP_ATM"},
		Targets: []string{"GRID"},
		Eval: func(in rules.Inputs) rules.Restriction {
			if in.Get("COMP_ATM") == "satm" {
				panic("not modelled")
			}
			return nil
		},
	}
	var rejected []domain.Rejection
	s, err := session.New("s1", caseBlueprint(t, fragile), session.WithHooks(domain.Hooks{
		OnReject: func(r domain.Rejection) { rejected = append(rejected, r) },
	}))
	require.NoError(t, err)

	_, err = s.SetValue("COMP_ATM", "satm")
	require.ErrorIs(t, err, domain.ErrRuleDefect)
	v, _ := s.Value("COMP_ATM")
	assert.Equal(t, domain.Unset, v, "defective cycle rolled back")

	_, err = s.SetValue("COMP_ATM", "cam")
	assert.ErrorIs(t, err, domain.ErrSessionBroken)
	assert.Error(t, s.Broken())
	require.Len(t, rejected, 2)
	assert.Equal(t, domain.OpSet, rejected[0].Op)

	_, err = s.Value("COMP_ATM")
	assert.NoError(t, err, "reads keep working")
}

func TestSession_HooksSeeEveryBatch(t *testing.T) {
	var seen int
	var evals int
	s := newSession(t, session.WithHooks(domain.Hooks{
		OnBatch: func(b domain.Batch, st domain.PropagationStats) {
			seen++
			evals += st.Evaluations
		},
	}))

	_, err := s.SetValue("COMP_ATM", "satm")
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
	assert.Positive(t, evals)

	reasons, err := s.Explain("COMP_OCN", "mom")
	require.NoError(t, err)
	assert.Equal(t, []string{"satm cannot drive an active ocean"}, reasons)
}

func TestSession_FailedAdvanceLeavesStateUnchanged(t *testing.T) {
	fragile := rules.Rule{
		Name:    "fragile",
		Inputs:  []string{"C"},
		Targets: []string{"D"},
		Eval: func(in rules.Inputs) rules.Restriction {
			if in.Get("C") == "p" {
				panic("not modelled")
			}
			return nil
		},
	}
	bp, err := blueprint.Blueprint{
		Name: "fragile",
		Variables: []domain.VariableDef{
			{Key: "A", Base: domain.Strings("x", "y")},
			{Key: "B", Base: domain.Strings("one")},
			{Key: "C", Base: domain.Strings("p", "q"), Default: "p"},
			{Key: "D", Base: domain.Strings("d1", "d2")},
		},
		Rules: []rules.Rule{fragile},
		Stages: []domain.StageDef{
			{Title: "First", Vars: []string{"A"}},
			{Title: "Second", Vars: []string{"B", "C"}, AutoSelect: true},
		},
	}.Compile()
	require.NoError(t, err)

	s, err := session.New("s1", bp)
	require.NoError(t, err)
	var got []domain.Batch
	s.Subscribe(func(b domain.Batch) { got = append(got, b) })

	_, err = s.SetValue("A", "x")
	require.NoError(t, err)

	_, err = s.Advance()
	require.ErrorIs(t, err, domain.ErrRuleDefect)
	assert.Equal(t, 0, s.ActiveStage(), "gate rewound")
	for _, key := range []string{"B", "C"} {
		v, _ := s.Value(key)
		assert.Equal(t, domain.Unset, v, "%s retracted", key)
	}
	b, _ := s.Domain("B")
	assert.Equal(t, domain.Values("one"), b.Values())
	assert.Len(t, got, 1, "no batch for the failed advance")
	assert.Equal(t, uint64(1), s.Seq())
}

func TestSession_ResetDoesNotReapplyDefaults(t *testing.T) {
	s := newSession(t)
	_, err := s.SetValue("COMP_ATM", "cam")
	require.NoError(t, err)
	_, err = s.SetValue("COMP_OCN", "docn")
	require.NoError(t, err)
	_, err = s.Advance()
	require.NoError(t, err)
	_, err = s.Advance()
	require.NoError(t, err)
	v, _ := s.Value("NTASKS")
	require.Equal(t, domain.Value("64"), v)

	_, err = s.ResetStage(2)
	require.NoError(t, err)
	assert.Equal(t, 2, s.ActiveStage())
	v, _ = s.Value("NTASKS")
	assert.Equal(t, domain.Unset, v)

	_, err = s.Advance()
	assert.ErrorIs(t, err, domain.ErrStageIncomplete)
}

func TestSession_SubscriberCannotMutate(t *testing.T) {
	s := newSession(t)
	var nested error
	s.Subscribe(func(b domain.Batch) {
		_, nested = s.SetValue("COMP_OCN", "docn")
	})

	_, err := s.SetValue("COMP_ATM", "cam")
	require.NoError(t, err)
	assert.ErrorIs(t, nested, domain.ErrReentrant)
	assert.Equal(t, uint64(1), s.Seq())
	v, _ := s.Value("COMP_OCN")
	assert.Equal(t, domain.Unset, v)

	_, err = s.ExportSnapshot()
	assert.NotErrorIs(t, err, domain.ErrReentrant, "reads stay allowed after delivery")
	assert.NoError(t, s.Broken())
}
