// Package blueprint turns static definitions of variables, rules and stages into a
// compiled, immutable form that sessions are instantiated from.
package blueprint

import (
	"slices"

	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/graph"
	"github.com/aretw0/caseconf/pkg/registry"
	"github.com/aretw0/caseconf/pkg/rules"
	"github.com/aretw0/caseconf/pkg/stage"
)

// Blueprint is the static description of a configurator.
type Blueprint struct {
	Name        string
	Description string
	Variables   []domain.VariableDef
	Rules       []rules.Rule
	Stages      []domain.StageDef
}

// Compiled is a validated blueprint. It is immutable and safe to share between sessions.
type Compiled struct {
	name        string
	description string
	vars        []domain.VariableDef
	graph       *graph.Graph
	stages      []domain.StageDef
}

// Compile validates b. Every failure is a structural error: duplicate or malformed
// variables, malformed or cyclic rules, a variable in two stages, a stage listing an
// undeclared variable, or a rule reading a later stage to restrict an earlier one.
func (b Blueprint) Compile() (*Compiled, error) {
	reg := registry.New()
	for _, def := range b.Variables {
		if err := reg.Declare(def); err != nil {
			return nil, err
		}
	}

	set := rules.NewSet()
	if err := set.AddAll(b.Rules...); err != nil {
		return nil, err
	}
	set.Close()

	g, err := graph.Build(reg.Keys(), set.Rules())
	if err != nil {
		return nil, err
	}

	if err := stage.Validate(b.Stages); err != nil {
		return nil, err
	}
	owner := make(map[string]int)
	for i, s := range b.Stages {
		for _, key := range s.Vars {
			if !reg.Has(key) {
				return nil, domain.Structuralf([]string{key}, "stage %d (%s) lists undeclared variable", i, s.Title)
			}
			owner[key] = i
		}
	}
	// Paths through unstaged variables count too.
	for _, key := range g.Order() {
		from, ok := owner[key]
		if !ok {
			continue
		}
		for _, down := range g.Downstream(key) {
			if to, ok := owner[down]; ok && from > to {
				return nil, domain.Structuralf([]string{key, down},
					"stage %d variable constrains earlier stage %d", from, to)
			}
		}
	}

	vars := make([]domain.VariableDef, len(b.Variables))
	for i, key := range reg.Keys() {
		v, _ := reg.Variable(key)
		vars[i] = domain.VariableDef{
			Key:         v.Key,
			Kind:        v.Kind,
			Base:        v.Base,
			Description: v.Description,
			Default:     v.Default,
			Help:        v.Help,
		}
	}
	stages := make([]domain.StageDef, len(b.Stages))
	for i, s := range b.Stages {
		s.Vars = slices.Clone(s.Vars)
		stages[i] = s
	}

	return &Compiled{
		name:        b.Name,
		description: b.Description,
		vars:        vars,
		graph:       g,
		stages:      stages,
	}, nil
}

// Name returns the blueprint name.
func (c *Compiled) Name() string { return c.name }

// Description returns the blueprint description.
func (c *Compiled) Description() string { return c.description }

// Graph returns the shared constraint graph.
func (c *Compiled) Graph() *graph.Graph { return c.graph }

// Variables returns the variable definitions in declaration order.
func (c *Compiled) Variables() []domain.VariableDef {
	return slices.Clone(c.vars)
}

// Stages returns the stage definitions in order.
func (c *Compiled) Stages() []domain.StageDef {
	out := make([]domain.StageDef, len(c.stages))
	for i, s := range c.stages {
		s.Vars = slices.Clone(s.Vars)
		out[i] = s
	}
	return out
}

// NewRegistry declares every variable in a fresh registry.
func (c *Compiled) NewRegistry() *registry.Registry {
	reg := registry.New()
	for _, def := range c.vars {
		// Already validated by Compile.
		_ = reg.Declare(def)
	}
	return reg
}
