package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Domain is the set of values legal for a variable.
//
// A Domain is either finite (an ordered set of values) or unbounded, in which case it may
// carry numeric bounds. The zero Domain is unbounded with no bounds, i.e. it accepts every
// value. Domains are immutable: every operation returns a new Domain.
type Domain struct {
	finite bool
	values []Value
	index  map[Value]struct{}
	min    *float64
	max    *float64
}

// Finite builds a finite domain from values, dropping duplicates and keeping first-seen order.
func Finite(values ...Value) Domain {
	d := Domain{
		finite: true,
		values: make([]Value, 0, len(values)),
		index:  make(map[Value]struct{}, len(values)),
	}
	for _, v := range values {
		if _, dup := d.index[v]; dup {
			continue
		}
		d.index[v] = struct{}{}
		d.values = append(d.values, v)
	}
	return d
}

// Strings is shorthand for Finite(Values(raw...)...).
func Strings(raw ...string) Domain {
	return Finite(Values(raw...)...)
}

// Empty returns the finite domain with no values.
func Empty() Domain {
	return Finite()
}

// Any returns the unbounded domain that accepts every value.
func Any() Domain {
	return Domain{}
}

// Range returns an unbounded numeric domain restricted to [min, max].
func Range(min, max float64) Domain {
	if min > max {
		return Empty()
	}
	return Domain{min: &min, max: &max}
}

// AtLeast returns an unbounded numeric domain restricted to [min, +inf).
func AtLeast(min float64) Domain {
	return Domain{min: &min}
}

// AtMost returns an unbounded numeric domain restricted to (-inf, max].
func AtMost(max float64) Domain {
	return Domain{max: &max}
}

// IsFinite reports whether the domain enumerates its values.
func (d Domain) IsFinite() bool {
	return d.finite
}

// IsEmpty reports whether no value is legal. Only finite domains can be empty.
func (d Domain) IsEmpty() bool {
	return d.finite && len(d.values) == 0
}

// Len returns the number of values of a finite domain, or -1 for unbounded domains.
func (d Domain) Len() int {
	if !d.finite {
		return -1
	}
	return len(d.values)
}

// Values returns a copy of the values of a finite domain in order. Unbounded domains return nil.
func (d Domain) Values() []Value {
	if !d.finite {
		return nil
	}
	out := make([]Value, len(d.values))
	copy(out, d.values)
	return out
}

// Single returns the only value of a one-element finite domain.
func (d Domain) Single() (Value, bool) {
	if d.finite && len(d.values) == 1 {
		return d.values[0], true
	}
	return Unset, false
}

// Bounds returns the numeric bounds of an unbounded domain; nil means open on that side.
func (d Domain) Bounds() (min, max *float64) {
	return d.min, d.max
}

// Contains reports whether v is legal in d. Unset is never contained.
func (d Domain) Contains(v Value) bool {
	if !v.IsSet() {
		return false
	}
	if d.finite {
		_, ok := d.index[v]
		return ok
	}
	if d.min == nil && d.max == nil {
		return true
	}
	f, ok := v.Float()
	if !ok {
		return false
	}
	if d.min != nil && f < *d.min {
		return false
	}
	if d.max != nil && f > *d.max {
		return false
	}
	return true
}

// Intersect returns the values legal in both d and other.
// When both are finite, the order of d is kept.
func (d Domain) Intersect(other Domain) Domain {
	switch {
	case d.finite:
		return d.filter(other.Contains)
	case other.finite:
		return other.filter(d.Contains)
	}

	out := Domain{min: d.min, max: d.max}
	if other.min != nil && (out.min == nil || *other.min > *out.min) {
		out.min = other.min
	}
	if other.max != nil && (out.max == nil || *other.max < *out.max) {
		out.max = other.max
	}
	if out.min != nil && out.max != nil && *out.min > *out.max {
		return Empty()
	}
	return out
}

// Without removes values from a finite domain. Unbounded domains are returned unchanged.
func (d Domain) Without(values ...Value) Domain {
	if !d.finite {
		return d
	}
	drop := make(map[Value]struct{}, len(values))
	for _, v := range values {
		drop[v] = struct{}{}
	}
	return d.filter(func(v Value) bool {
		_, gone := drop[v]
		return !gone
	})
}

func (d Domain) filter(keep func(Value) bool) Domain {
	kept := make([]Value, 0, len(d.values))
	for _, v := range d.values {
		if keep(v) {
			kept = append(kept, v)
		}
	}
	return Finite(kept...)
}

// Equal reports whether d and other admit exactly the same values.
func (d Domain) Equal(other Domain) bool {
	if d.finite != other.finite {
		return false
	}
	if d.finite {
		if len(d.values) != len(other.values) {
			return false
		}
		for _, v := range d.values {
			if _, ok := other.index[v]; !ok {
				return false
			}
		}
		return true
	}
	return sameBound(d.min, other.min) && sameBound(d.max, other.max)
}

func sameBound(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (d Domain) String() string {
	if d.finite {
		parts := make([]string, len(d.values))
		for i, v := range d.values {
			parts[i] = string(v)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	if d.min == nil && d.max == nil {
		return "*"
	}
	lo, hi := "-inf", "+inf"
	if d.min != nil {
		lo = strconv.FormatFloat(*d.min, 'g', -1, 64)
	}
	if d.max != nil {
		hi = strconv.FormatFloat(*d.max, 'g', -1, 64)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}

type domainJSON struct {
	Values    []Value  `json:"values,omitempty"`
	Unbounded bool     `json:"unbounded,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

// MarshalJSON encodes finite domains as their value list and unbounded ones with their bounds.
func (d Domain) MarshalJSON() ([]byte, error) {
	if d.finite {
		values := d.values
		if values == nil {
			values = []Value{}
		}
		return json.Marshal(struct {
			Values []Value `json:"values"`
		}{values})
	}
	return json.Marshal(domainJSON{Unbounded: true, Min: d.min, Max: d.max})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (d *Domain) UnmarshalJSON(data []byte) error {
	var raw domainJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Unbounded {
		*d = Domain{min: raw.Min, max: raw.Max}
		return nil
	}
	*d = Finite(raw.Values...)
	return nil
}
