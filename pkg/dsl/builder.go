package dsl

import (
	"github.com/aretw0/caseconf/pkg/blueprint"
	"github.com/aretw0/caseconf/pkg/rules"
)

// Builder accumulates the parts of a blueprint in declaration order.
type Builder struct {
	name        string
	description string
	vars        []*VarBuilder
	stages      []*StageBuilder
	rules       []*RuleBuilder
	extra       []rules.Rule
}

// New creates a builder for a blueprint called name.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Describe sets the blueprint description.
func (b *Builder) Describe(text string) *Builder {
	b.description = text
	return b
}

// Var declares a variable. Declaring the same key again returns the existing builder.
func (b *Builder) Var(key string) *VarBuilder {
	for _, vb := range b.vars {
		if vb.def.Key == key {
			return vb
		}
	}
	vb := newVar(key)
	b.vars = append(b.vars, vb)
	return vb
}

// Stage appends a stage holding keys.
func (b *Builder) Stage(title string, keys ...string) *StageBuilder {
	sb := newStage(title, keys)
	b.stages = append(b.stages, sb)
	return sb
}

// Rule starts a conditional rule.
func (b *Builder) Rule(name string) *RuleBuilder {
	rb := &RuleBuilder{name: name}
	b.rules = append(b.rules, rb)
	return rb
}

// Add appends prebuilt rules, e.g. from rules.Table.
func (b *Builder) Add(rs ...rules.Rule) *Builder {
	b.extra = append(b.extra, rs...)
	return b
}

// Blueprint returns the uncompiled blueprint.
func (b *Builder) Blueprint() blueprint.Blueprint {
	bp := blueprint.Blueprint{Name: b.name, Description: b.description}
	for _, vb := range b.vars {
		bp.Variables = append(bp.Variables, vb.Build())
	}
	for _, sb := range b.stages {
		bp.Stages = append(bp.Stages, sb.Build())
	}
	for _, rb := range b.rules {
		bp.Rules = append(bp.Rules, rb.Build())
	}
	bp.Rules = append(bp.Rules, b.extra...)
	return bp
}

// Build compiles the blueprint.
func (b *Builder) Build() (*blueprint.Compiled, error) {
	return b.Blueprint().Compile()
}
