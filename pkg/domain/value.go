package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is the canonical textual form of a variable assignment.
// The zero value means "unset".
type Value string

// Unset is the value held by a variable that has not been assigned.
const Unset Value = ""

// IsSet reports whether v holds an assignment.
func (v Value) IsSet() bool {
	return v != Unset
}

func (v Value) String() string {
	if v == Unset {
		return "<unset>"
	}
	return string(v)
}

// Values converts raw strings into a slice of Values without normalization.
func Values(raw ...string) []Value {
	out := make([]Value, len(raw))
	for i, r := range raw {
		out[i] = Value(r)
	}
	return out
}

// Kind describes how raw input for a variable is parsed and compared.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindReal   Kind = "real"
	KindBool   Kind = "bool"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindInt, KindReal, KindBool:
		return true
	}
	return false
}

// Numeric reports whether values of this kind can be bounded by a range.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindReal
}

// Parse normalizes raw input into the canonical Value for this kind.
// Empty input is rejected: the empty Value is reserved for Unset.
func (k Kind) Parse(raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Unset, fmt.Errorf("empty %s value", k)
	}

	switch k {
	case KindString, "":
		return Value(s), nil
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Unset, fmt.Errorf("invalid int %q", raw)
		}
		return Value(strconv.FormatInt(n, 10)), nil
	case KindReal:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Unset, fmt.Errorf("invalid real %q", raw)
		}
		return Value(strconv.FormatFloat(f, 'g', -1, 64)), nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Unset, fmt.Errorf("invalid bool %q", raw)
		}
		return Value(strconv.FormatBool(b)), nil
	default:
		return Unset, fmt.Errorf("unknown kind %q", k)
	}
}

// ParseAll parses every raw value, stopping at the first error.
func (k Kind) ParseAll(raw ...string) ([]Value, error) {
	out := make([]Value, 0, len(raw))
	for _, r := range raw {
		v, err := k.Parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Float returns the numeric reading of v, if it has one.
func (v Value) Float() (float64, bool) {
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
