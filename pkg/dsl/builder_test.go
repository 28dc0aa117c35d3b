package dsl

import (
	"errors"
	"testing"

	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/rules"
	"github.com/aretw0/caseconf/pkg/session"
)

func TestBuilder_Wizard(t *testing.T) {
	b := New("mini").Describe("two stage wizard")

	b.Var("COMP_ATM").Options("cam", "satm").Help("satm", "stub atmosphere")
	b.Var("COMP_OCN").Options("mom", "docn", "socn")
	b.Var("NTASKS").Int().Min(1).Default("064")
	b.Var("DEBUG").Bool().Default("FALSE")

	b.Stage("Components", "COMP_ATM", "COMP_OCN").Describe("Pick the models")
	b.Stage("Run", "NTASKS", "DEBUG")

	b.Rule("stub atmosphere").
		When(rules.Equals("COMP_ATM", "satm")).
		Only("COMP_OCN", "docn", "socn").
		Message("satm cannot drive an active ocean")

	bp, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if bp.Description() != "two stage wizard" {
		t.Errorf("Expected description, got %q", bp.Description())
	}

	vars := bp.Variables()
	if vars[2].Default != "64" {
		t.Errorf("Expected canonical default '64', got %q", vars[2].Default)
	}
	if vars[3].Default != "false" {
		t.Errorf("Expected canonical default 'false', got %q", vars[3].Default)
	}

	s, err := session.New("s", bp)
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	if _, err := s.SetValue("COMP_ATM", "satm"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	reasons, err := s.Explain("COMP_OCN", "mom")
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if len(reasons) != 1 || reasons[0] != "satm cannot drive an active ocean" {
		t.Errorf("Unexpected reasons: %v", reasons)
	}
}

func TestBuilder_VarIsIdempotent(t *testing.T) {
	b := New("x")
	b.Var("A").Options("a")
	b.Var("A").Options("b")

	bp := b.Blueprint()
	if len(bp.Variables) != 1 {
		t.Fatalf("Expected 1 variable, got %d", len(bp.Variables))
	}
	if got := bp.Variables[0].Base.Len(); got != 2 {
		t.Errorf("Expected 2 options, got %d", got)
	}
}

func TestBuilder_AddTable(t *testing.T) {
	b := New("grid")
	b.Var("OCN").Options("mom", "docn")
	b.Var("GRID").Options("gx1v7", "T62")
	b.Stage("Components", "OCN")
	b.Stage("Grid", "GRID").AutoSelect()
	b.Add(rules.Table("ocean grid", []string{"OCN"}, "GRID", map[string]domain.Domain{
		"docn": domain.Strings("T62"),
	}, nil))

	bp, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	s, _ := session.New("s", bp)
	if _, err := s.SetValue("OCN", "docn"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Advance(); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Value("GRID"); v != "T62" {
		t.Errorf("Expected auto-selected T62, got %q", v)
	}
}

func TestBuilder_StructuralErrors(t *testing.T) {
	b := New("broken")
	b.Var("N").Int().Options("one")

	_, err := b.Build()
	if !errors.Is(err, domain.ErrStructural) {
		t.Fatalf("Expected structural error, got %v", err)
	}
}
