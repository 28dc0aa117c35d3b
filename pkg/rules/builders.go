package rules

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/caseconf/pkg/domain"
)

// Condition is a test on the value of one input variable.
type Condition struct {
	Key  string
	Desc string
	Test func(domain.Value) bool
}

func (c Condition) String() string {
	return c.Desc
}

// Equals holds when key is set to v.
func Equals(key string, v domain.Value) Condition {
	return Condition{
		Key:  key,
		Desc: fmt.Sprintf("%s == %s", key, v),
		Test: func(got domain.Value) bool { return got == v },
	}
}

// In holds when key is set to one of values.
func In(key string, values ...domain.Value) Condition {
	set := domain.Finite(values...)
	return Condition{
		Key:  key,
		Desc: fmt.Sprintf("%s in %s", key, set),
		Test: set.Contains,
	}
}

// NotIn holds when key is set to none of values.
func NotIn(key string, values ...domain.Value) Condition {
	set := domain.Finite(values...)
	return Condition{
		Key:  key,
		Desc: fmt.Sprintf("%s not in %s", key, set),
		Test: func(got domain.Value) bool { return got.IsSet() && !set.Contains(got) },
	}
}

// Contains holds when the value of key contains substr.
func Contains(key, substr string) Condition {
	return Condition{
		Key:  key,
		Desc: fmt.Sprintf("%s contains %q", key, substr),
		Test: func(got domain.Value) bool { return strings.Contains(string(got), substr) },
	}
}

// Between holds when the numeric value of key lies in [min, max].
func Between(key string, min, max float64) Condition {
	r := domain.Range(min, max)
	return Condition{
		Key:  key,
		Desc: fmt.Sprintf("%s in %s", key, r),
		Test: r.Contains,
	}
}

// When builds a rule that applies restrict once every condition holds.
// Inputs are the condition keys, targets the restriction keys.
func When(name string, conds []Condition, restrict Restriction) Rule {
	var inputs []string
	for _, c := range conds {
		if !slices.Contains(inputs, c.Key) {
			inputs = append(inputs, c.Key)
		}
	}
	targets := slices.Sorted(maps.Keys(restrict))
	restrict = maps.Clone(restrict)

	return Rule{
		Name:    name,
		Inputs:  inputs,
		Targets: targets,
		Eval: func(in Inputs) Restriction {
			for _, c := range conds {
				if !c.Test(in.Get(c.Key)) {
					return nil
				}
			}
			return maps.Clone(restrict)
		},
	}
}

// Wildcard is the Table row used when no row matches the inputs exactly.
const Wildcard = "*"

// TableKey joins input values the way Table rows are keyed.
func TableKey(values ...domain.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

// Table builds a rule that looks up the options of target from the values of inputs.
// Rows are keyed by TableKey of the input values in order. Unmatched inputs fall back to
// the Wildcard row, then to fallback, then to no restriction.
func Table(name string, inputs []string, target string, table map[string]domain.Domain, fallback *domain.Domain) Rule {
	inputs = slices.Clone(inputs)
	table = maps.Clone(table)

	return Rule{
		Name:    name,
		Inputs:  inputs,
		Targets: []string{target},
		Eval: func(in Inputs) Restriction {
			values := make([]domain.Value, len(inputs))
			for i, key := range inputs {
				values[i] = in.Get(key)
			}
			if d, ok := table[TableKey(values...)]; ok {
				return Restriction{target: d}
			}
			if d, ok := table[Wildcard]; ok {
				return Restriction{target: d}
			}
			if fallback != nil {
				return Restriction{target: *fallback}
			}
			return nil
		},
	}
}

// Constant builds a zero-input rule that restricts target from initialization on.
func Constant(name, target string, d domain.Domain) Rule {
	return Rule{
		Name:    name,
		Targets: []string{target},
		Eval: func(Inputs) Restriction {
			return Restriction{target: d}
		},
	}
}
