// Package rules represents compatibility rules as data: a rule declares the variables it
// reads, the variables whose domains it restricts, and a pure evaluation function.
//
// Keeping inputs and targets explicit lets the constraint graph be built and checked for
// cycles without ever running a rule.
package rules

import (
	"fmt"
	"slices"

	"github.com/aretw0/caseconf/pkg/domain"
)

// Inputs holds the current values of a rule's declared inputs.
// The engine only evaluates a rule once all of them are set.
type Inputs map[string]domain.Value

// Get returns the value of key, Unset if absent.
func (in Inputs) Get(key string) domain.Value {
	return in[key]
}

// Restriction maps target keys to the domain a rule allows for them.
// A target missing from the map is not restricted.
type Restriction map[string]domain.Domain

// EvalFunc computes restrictions from input values. It must be total over in-domain inputs
// and free of side effects: when it cannot decide, it returns no restriction.
type EvalFunc func(in Inputs) Restriction

// Rule is a declared dependency between variables.
type Rule struct {
	Name string
	// Message explains the rule to users when it rejects a value.
	Message string
	Inputs  []string
	Targets []string
	Eval    EvalFunc
}

// WithMessage returns a copy of r with Message set.
func (r Rule) WithMessage(msg string) Rule {
	r.Message = msg
	return r
}

// Reads reports whether key is an input of r.
func (r Rule) Reads(key string) bool {
	return slices.Contains(r.Inputs, key)
}

// Writes reports whether key is a target of r.
func (r Rule) Writes(key string) bool {
	return slices.Contains(r.Targets, key)
}

// IsConstant reports whether the rule has no inputs and only applies at initialization.
func (r Rule) IsConstant() bool {
	return len(r.Inputs) == 0
}

// Explain returns the message of the rule, falling back to its name.
func (r Rule) Explain() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Name
}

func (r Rule) validate() error {
	if r.Name == "" {
		return domain.Structuralf(nil, "rule without a name")
	}
	if r.Eval == nil {
		return domain.Structuralf(nil, "rule %q has no evaluation function", r.Name)
	}
	if len(r.Targets) == 0 {
		return domain.Structuralf(nil, "rule %q restricts no variable", r.Name)
	}
	if dup := firstDuplicate(r.Inputs); dup != "" {
		return domain.Structuralf([]string{dup}, "rule %q lists input twice", r.Name)
	}
	if dup := firstDuplicate(r.Targets); dup != "" {
		return domain.Structuralf([]string{dup}, "rule %q lists target twice", r.Name)
	}
	for _, t := range r.Targets {
		if r.Reads(t) {
			return domain.Structuralf([]string{t, t}, "rule %q reads and restricts the same variable", r.Name)
		}
	}
	return nil
}

func firstDuplicate(keys []string) string {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			return k
		}
		seen[k] = struct{}{}
	}
	return ""
}

// Evaluate runs the rule on in. A panic or a restriction of an undeclared target is
// reported as a rule defect instead of crashing the session.
func (r Rule) Evaluate(in Inputs) (res Restriction, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = &domain.RuleDefectError{Rule: r.Name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	res = r.Eval(in)
	for key := range res {
		if !r.Writes(key) {
			return nil, &domain.RuleDefectError{
				Rule: r.Name,
				Err:  fmt.Errorf("restricted undeclared target %s", key),
			}
		}
	}
	return res, nil
}
