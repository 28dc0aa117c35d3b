package schema

import (
	"fmt"
	"math"
	"slices"

	"github.com/aretw0/caseconf/pkg/blueprint"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/rules"
)

// Document is the format-neutral form of a blueprint file.
type Document struct {
	Name        string
	Description string
	Variables   []VariableSpec
	Stages      []StageSpec
	Rules       []RuleSpec
}

// VariableSpec declares a variable. Options make the base domain finite; otherwise it
// is unbounded, optionally within Min and Max.
type VariableSpec struct {
	Key         string
	Kind        string
	Description string
	Options     []string
	Min         *float64
	Max         *float64
	Default     string
	Help        map[string]string
}

// StageSpec declares a stage.
type StageSpec struct {
	Title       string
	Description string
	Vars        []string
	AutoSelect  bool
}

// Clause is a test on one variable when used as a condition, or the domain allowed for it
// when used as a restriction.
type Clause struct {
	Key      string
	Equals   *string
	In       []string
	NotIn    []string
	Contains *string
	Min      *float64
	Max      *float64
}

// Row is one entry of a table rule. Match lists the input values in order, or holds
// the single wildcard "*".
type Row struct {
	Match []string
	Allow Clause
}

// RuleSpec declares a rule: either a conditional rule (When and Restrict) or a table
// (Inputs, Target and Rows, with an optional Fallback).
type RuleSpec struct {
	Name     string
	Message  string
	When     []Clause
	Restrict []Clause

	Inputs   []string
	Target   string
	Rows     []Row
	Fallback *Clause
}

func (r RuleSpec) isTable() bool {
	return r.Target != "" || len(r.Rows) > 0
}

// Build converts d into a blueprint. Values are parsed with the kind of the variable they
// apply to, so "064" and "64" name the same int option.
func (d *Document) Build() (blueprint.Blueprint, error) {
	var c collector
	bp := blueprint.Blueprint{Name: d.Name, Description: d.Description}
	if d.Name == "" {
		c.add("name", "required")
	}

	defs := make(map[string]domain.VariableDef, len(d.Variables))
	for _, spec := range d.Variables {
		def, ok := buildVariable(&c, spec)
		if !ok {
			continue
		}
		defs[def.Key] = def
		bp.Variables = append(bp.Variables, def)
	}

	for i, s := range d.Stages {
		if s.Title == "" {
			c.add(fmt.Sprintf("stages[%d].title", i), "required")
		}
		bp.Stages = append(bp.Stages, domain.StageDef{
			Title:       s.Title,
			Description: s.Description,
			Vars:        slices.Clone(s.Vars),
			AutoSelect:  s.AutoSelect,
		})
	}

	for i, spec := range d.Rules {
		path := fmt.Sprintf("rules[%d]", i)
		if spec.Name != "" {
			path = fmt.Sprintf("rules[%s]", spec.Name)
		}
		r, ok := buildRule(&c, path, spec, defs)
		if ok {
			bp.Rules = append(bp.Rules, r)
		}
	}

	if err := c.err(); err != nil {
		return blueprint.Blueprint{}, err
	}
	return bp, nil
}

// Compile builds and compiles d.
func (d *Document) Compile() (*blueprint.Compiled, error) {
	bp, err := d.Build()
	if err != nil {
		return nil, err
	}
	return bp.Compile()
}

func buildVariable(c *collector, spec VariableSpec) (domain.VariableDef, bool) {
	path := fmt.Sprintf("variables[%s]", spec.Key)
	if spec.Key == "" {
		c.add("variables", "variable with empty key")
		return domain.VariableDef{}, false
	}
	kind := domain.Kind(spec.Kind)
	if kind == "" {
		kind = domain.KindString
	}
	if !kind.Valid() {
		c.add(path+".kind", "unknown kind %q", spec.Kind)
		return domain.VariableDef{}, false
	}

	def := domain.VariableDef{Key: spec.Key, Kind: kind, Description: spec.Description}
	switch {
	case len(spec.Options) > 0:
		values, err := kind.ParseAll(spec.Options...)
		if err != nil {
			c.add(path+".options", "%v", err)
			return domain.VariableDef{}, false
		}
		def.Base = domain.Finite(values...)
	case kind == domain.KindBool:
		def.Base = domain.Strings("false", "true")
	default:
		def.Base = bounds(spec.Min, spec.Max)
	}
	if (spec.Min != nil || spec.Max != nil) && !kind.Numeric() {
		c.add(path, "min and max need a numeric kind, got %s", kind)
		return domain.VariableDef{}, false
	}
	if len(spec.Options) > 0 && (spec.Min != nil || spec.Max != nil) {
		def.Base = def.Base.Intersect(bounds(spec.Min, spec.Max))
	}

	if spec.Default != "" {
		v, err := kind.Parse(spec.Default)
		if err != nil {
			c.add(path+".default", "%v", err)
			return domain.VariableDef{}, false
		}
		def.Default = v
	}
	if len(spec.Help) > 0 {
		def.Help = make(map[domain.Value]string, len(spec.Help))
		for raw, text := range spec.Help {
			v, err := kind.Parse(raw)
			if err != nil {
				c.add(path+".help", "%v", err)
				continue
			}
			def.Help[v] = text
		}
	}
	return def, true
}

func bounds(min, max *float64) domain.Domain {
	switch {
	case min != nil && max != nil:
		return domain.Range(*min, *max)
	case min != nil:
		return domain.AtLeast(*min)
	case max != nil:
		return domain.AtMost(*max)
	default:
		return domain.Any()
	}
}

func buildRule(c *collector, path string, spec RuleSpec, defs map[string]domain.VariableDef) (rules.Rule, bool) {
	if spec.Name == "" {
		c.add(path+".name", "required")
		return rules.Rule{}, false
	}
	before := len(c.errs)

	var r rules.Rule
	if spec.isTable() {
		r = buildTable(c, path, spec, defs)
	} else {
		conds := make([]rules.Condition, 0, len(spec.When))
		for _, cl := range spec.When {
			if cond, ok := buildCondition(c, path+".when."+cl.Key, cl, defs); ok {
				conds = append(conds, cond)
			}
		}
		if len(spec.Restrict) == 0 {
			c.add(path+".restrict", "required")
		}
		restrict := make(rules.Restriction, len(spec.Restrict))
		for _, cl := range spec.Restrict {
			if d, ok := buildDomain(c, path+".restrict."+cl.Key, cl, defs); ok {
				restrict[cl.Key] = d
			}
		}
		// Without conditions the rule applies from initialization on.
		r = rules.When(spec.Name, conds, restrict)
	}
	if len(c.errs) > before {
		return rules.Rule{}, false
	}
	if spec.Message != "" {
		r = r.WithMessage(spec.Message)
	}
	return r, true
}

func buildTable(c *collector, path string, spec RuleSpec, defs map[string]domain.VariableDef) rules.Rule {
	if spec.Target == "" {
		c.add(path+".target", "required")
	}
	if len(spec.Inputs) == 0 {
		c.add(path+".inputs", "required")
	}
	table := make(map[string]domain.Domain, len(spec.Rows))
	for i, row := range spec.Rows {
		rowPath := fmt.Sprintf("%s.rows[%d]", path, i)
		key, ok := rowKey(c, rowPath, row.Match, spec.Inputs, defs)
		if !ok {
			continue
		}
		allow := row.Allow
		allow.Key = spec.Target
		if d, ok := buildDomain(c, rowPath, allow, defs); ok {
			if _, dup := table[key]; dup {
				c.add(rowPath, "duplicate row %q", key)
				continue
			}
			table[key] = d
		}
	}
	var fallback *domain.Domain
	if spec.Fallback != nil {
		fb := *spec.Fallback
		fb.Key = spec.Target
		if d, ok := buildDomain(c, path+".fallback", fb, defs); ok {
			fallback = &d
		}
	}
	return rules.Table(spec.Name, spec.Inputs, spec.Target, table, fallback)
}

func rowKey(c *collector, path string, match, inputs []string, defs map[string]domain.VariableDef) (string, bool) {
	if len(match) == 1 && match[0] == rules.Wildcard {
		return rules.Wildcard, true
	}
	if len(match) != len(inputs) {
		c.add(path+".match", "expected %d values, got %d", len(inputs), len(match))
		return "", false
	}
	values := make([]domain.Value, len(match))
	for i, raw := range match {
		def, ok := defs[inputs[i]]
		if !ok {
			c.add(path, "undeclared input %s", inputs[i])
			return "", false
		}
		v, err := def.Kind.Parse(raw)
		if err != nil {
			c.add(path+".match", "%v", err)
			return "", false
		}
		values[i] = v
	}
	return rules.TableKey(values...), true
}

func (cl Clause) forms() int {
	n := 0
	for _, set := range []bool{cl.Equals != nil, cl.In != nil, cl.NotIn != nil, cl.Contains != nil} {
		if set {
			n++
		}
	}
	return n
}

func (cl Clause) ranged() bool {
	return cl.Min != nil || cl.Max != nil
}

func buildCondition(c *collector, path string, cl Clause, defs map[string]domain.VariableDef) (rules.Condition, bool) {
	def, ok := defs[cl.Key]
	if !ok {
		c.add(path, "undeclared variable %s", cl.Key)
		return rules.Condition{}, false
	}
	if cl.forms() > 1 || (cl.forms() == 1 && cl.ranged()) {
		c.add(path, "condition mixes several tests")
		return rules.Condition{}, false
	}

	parse := func(raw ...string) ([]domain.Value, bool) {
		values, err := def.Kind.ParseAll(raw...)
		if err != nil {
			c.add(path, "%v", err)
			return nil, false
		}
		return values, true
	}

	switch {
	case cl.Equals != nil:
		v, ok := parse(*cl.Equals)
		if !ok {
			return rules.Condition{}, false
		}
		return rules.Equals(cl.Key, v[0]), true
	case cl.In != nil:
		v, ok := parse(cl.In...)
		return rules.In(cl.Key, v...), ok
	case cl.NotIn != nil:
		v, ok := parse(cl.NotIn...)
		return rules.NotIn(cl.Key, v...), ok
	case cl.Contains != nil:
		return rules.Contains(cl.Key, *cl.Contains), true
	case cl.ranged():
		if !def.Kind.Numeric() {
			c.add(path, "min and max need a numeric kind, got %s", def.Kind)
			return rules.Condition{}, false
		}
		lo, hi := math.Inf(-1), math.Inf(1)
		if cl.Min != nil {
			lo = *cl.Min
		}
		if cl.Max != nil {
			hi = *cl.Max
		}
		return rules.Between(cl.Key, lo, hi), true
	}
	c.add(path, "empty condition")
	return rules.Condition{}, false
}

func buildDomain(c *collector, path string, cl Clause, defs map[string]domain.VariableDef) (domain.Domain, bool) {
	def, ok := defs[cl.Key]
	if !ok {
		c.add(path, "undeclared variable %s", cl.Key)
		return domain.Domain{}, false
	}
	if cl.Contains != nil {
		c.add(path, "contains is only valid in conditions")
		return domain.Domain{}, false
	}
	if cl.forms() == 0 && !cl.ranged() {
		c.add(path, "empty restriction")
		return domain.Domain{}, false
	}

	d := def.Base
	in := cl.In
	if cl.Equals != nil {
		in = append(slices.Clone(in), *cl.Equals)
	}
	if in != nil {
		values, err := def.Kind.ParseAll(in...)
		if err != nil {
			c.add(path, "%v", err)
			return domain.Domain{}, false
		}
		d = domain.Finite(values...)
	}
	if cl.NotIn != nil {
		if !def.Base.IsFinite() {
			c.add(path, "not_in needs a variable with options")
			return domain.Domain{}, false
		}
		values, err := def.Kind.ParseAll(cl.NotIn...)
		if err != nil {
			c.add(path, "%v", err)
			return domain.Domain{}, false
		}
		d = d.Without(values...)
	}
	if cl.ranged() {
		if !def.Kind.Numeric() {
			c.add(path, "min and max need a numeric kind, got %s", def.Kind)
			return domain.Domain{}, false
		}
		d = d.Intersect(bounds(cl.Min, cl.Max))
	}
	return d, true
}
