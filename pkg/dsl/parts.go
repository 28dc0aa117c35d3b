package dsl

import (
	"maps"
	"slices"

	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/rules"
)

// VarBuilder configures one variable. Without Options the domain is unbounded.
type VarBuilder struct {
	def      domain.VariableDef
	options  []string
	min, max *float64
}

func newVar(key string) *VarBuilder {
	return &VarBuilder{def: domain.VariableDef{Key: key, Kind: domain.KindString}}
}

// Int makes the variable an integer.
func (v *VarBuilder) Int() *VarBuilder {
	v.def.Kind = domain.KindInt
	return v
}

// Real makes the variable a real number.
func (v *VarBuilder) Real() *VarBuilder {
	v.def.Kind = domain.KindReal
	return v
}

// Bool makes the variable a boolean with options false and true.
func (v *VarBuilder) Bool() *VarBuilder {
	v.def.Kind = domain.KindBool
	return v
}

// Options sets the finite base domain.
func (v *VarBuilder) Options(values ...string) *VarBuilder {
	v.options = append(v.options, values...)
	return v
}

// Min bounds a numeric variable from below.
func (v *VarBuilder) Min(n float64) *VarBuilder {
	v.min = &n
	return v
}

// Max bounds a numeric variable from above.
func (v *VarBuilder) Max(n float64) *VarBuilder {
	v.max = &n
	return v
}

// Default sets the value applied when the stage of the variable is entered.
func (v *VarBuilder) Default(value string) *VarBuilder {
	v.def.Default = domain.Value(value)
	return v
}

// Describe sets the description.
func (v *VarBuilder) Describe(text string) *VarBuilder {
	v.def.Description = text
	return v
}

// Help attaches an explanation to one option.
func (v *VarBuilder) Help(option, text string) *VarBuilder {
	if v.def.Help == nil {
		v.def.Help = make(map[domain.Value]string)
	}
	v.def.Help[domain.Value(option)] = text
	return v
}

// Build returns the variable definition. Options and the default are canonicalized for
// the kind when they parse; invalid ones are kept verbatim so Compile reports them.
func (v *VarBuilder) Build() domain.VariableDef {
	def := v.def
	def.Help = maps.Clone(v.def.Help)
	canon := func(raw string) domain.Value {
		if c, err := def.Kind.Parse(raw); err == nil {
			return c
		}
		return domain.Value(raw)
	}

	switch {
	case len(v.options) > 0:
		values := make([]domain.Value, len(v.options))
		for i, o := range v.options {
			values[i] = canon(o)
		}
		def.Base = domain.Finite(values...)
	case def.Kind == domain.KindBool:
		def.Base = domain.Strings("false", "true")
	default:
		def.Base = domain.Any()
	}
	switch {
	case v.min != nil && v.max != nil:
		def.Base = def.Base.Intersect(domain.Range(*v.min, *v.max))
	case v.min != nil:
		def.Base = def.Base.Intersect(domain.AtLeast(*v.min))
	case v.max != nil:
		def.Base = def.Base.Intersect(domain.AtMost(*v.max))
	}
	if def.Default.IsSet() {
		def.Default = canon(string(def.Default))
	}
	return def
}

// StageBuilder configures one stage.
type StageBuilder struct {
	def domain.StageDef
}

func newStage(title string, keys []string) *StageBuilder {
	return &StageBuilder{def: domain.StageDef{Title: title, Vars: slices.Clone(keys)}}
}

// Describe sets the stage description.
func (s *StageBuilder) Describe(text string) *StageBuilder {
	s.def.Description = text
	return s
}

// AutoSelect assigns variables left with a single option when the stage is entered.
func (s *StageBuilder) AutoSelect() *StageBuilder {
	s.def.AutoSelect = true
	return s
}

// Build returns the stage definition.
func (s *StageBuilder) Build() domain.StageDef {
	def := s.def
	def.Vars = slices.Clone(s.def.Vars)
	return def
}

// RuleBuilder configures a conditional rule.
type RuleBuilder struct {
	name     string
	message  string
	conds    []rules.Condition
	restrict rules.Restriction
}

// When adds conditions. All of them must hold for the rule to apply.
func (r *RuleBuilder) When(conds ...rules.Condition) *RuleBuilder {
	r.conds = append(r.conds, conds...)
	return r
}

// Restrict sets the domain allowed for key while the conditions hold.
func (r *RuleBuilder) Restrict(key string, d domain.Domain) *RuleBuilder {
	if r.restrict == nil {
		r.restrict = make(rules.Restriction)
	}
	r.restrict[key] = d
	return r
}

// Only is shorthand for Restrict(key, domain.Strings(values...)).
func (r *RuleBuilder) Only(key string, values ...string) *RuleBuilder {
	return r.Restrict(key, domain.Strings(values...))
}

// Message sets the explanation shown when the rule excludes a value.
func (r *RuleBuilder) Message(text string) *RuleBuilder {
	r.message = text
	return r
}

// Build returns the rule.
func (r *RuleBuilder) Build() rules.Rule {
	rule := rules.When(r.name, r.conds, r.restrict)
	if r.message != "" {
		rule = rule.WithMessage(r.message)
	}
	return rule
}
