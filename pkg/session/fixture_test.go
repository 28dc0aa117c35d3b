package session_test

import (
	"testing"

	"github.com/aretw0/caseconf/pkg/blueprint"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/rules"
	"github.com/stretchr/testify/require"
)

// caseBlueprint models a three stage wizard: components, grid and run settings.
func caseBlueprint(t *testing.T, extra ...rules.Rule) *blueprint.Compiled {
	t.Helper()
	bp := blueprint.Blueprint{
		Name: "test-case",
		Variables: []domain.VariableDef{
			{Key: "COMP_ATM", Base: domain.Strings("cam", "satm")},
			{Key: "COMP_OCN", Base: domain.Strings("mom", "docn", "socn")},
			{Key: "GRID", Base: domain.Strings("f09_g17", "f19_g17", "T62_g17")},
			{Key: "NTASKS", Kind: domain.KindInt, Base: domain.AtLeast(1), Default: "64"},
		},
		Rules: append([]rules.Rule{
			rules.When("stub atmosphere",
				[]rules.Condition{rules.Equals("COMP_ATM", "satm")},
				rules.Restriction{"COMP_OCN": domain.Strings("docn", "socn")},
			).WithMessage("satm cannot drive an active ocean"),
			rules.When("data ocean grid",
				[]rules.Condition{rules.In("COMP_OCN", "docn", "socn")},
				rules.Restriction{"GRID": domain.Strings("T62_g17")},
			),
		}, extra...),
		Stages: []domain.StageDef{
			{Title: "Components", Vars: []string{"COMP_ATM", "COMP_OCN"}},
			{Title: "Grid", Vars: []string{"GRID"}, AutoSelect: true},
			{Title: "Run", Vars: []string{"NTASKS"}},
		},
	}
	c, err := bp.Compile()
	require.NoError(t, err)
	return c
}
