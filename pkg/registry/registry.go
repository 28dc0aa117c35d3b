// Package registry holds the configuration variables of one session: their declared
// base domains, current domains and current values.
//
// The registry is the single source of truth other components read from. It performs
// no propagation; Assign and SetDomain are building blocks for the propagation engine.
package registry

import (
	"fmt"
	"maps"

	"github.com/aretw0/caseconf/pkg/domain"
)

// Variable is a read-only view of a declared variable.
type Variable struct {
	Key         string
	Kind        domain.Kind
	Base        domain.Domain
	Current     domain.Domain
	Value       domain.Value
	Description string
	Default     domain.Value
	Help        map[domain.Value]string
}

// Blocked reports whether no value is currently legal.
func (v Variable) Blocked() bool {
	return v.Current.IsEmpty()
}

type variable struct {
	def     domain.VariableDef
	current domain.Domain
	value   domain.Value
}

// Registry manages the declared variables.
// It is not safe for concurrent use; sessions serialize access.
type Registry struct {
	vars  map[string]*variable
	order []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		vars: make(map[string]*variable),
	}
}

// Declare registers a variable once. Its current domain starts as the base domain and
// its value starts unset. Re-declaring a key is a structural error.
func (r *Registry) Declare(def domain.VariableDef) error {
	if def.Key == "" {
		return domain.Structuralf(nil, "variable with empty key")
	}
	if _, exists := r.vars[def.Key]; exists {
		return domain.Structuralf([]string{def.Key}, "variable declared twice")
	}
	if def.Kind == "" {
		def.Kind = domain.KindString
	}
	if !def.Kind.Valid() {
		return domain.Structuralf([]string{def.Key}, "unknown kind %q", def.Kind)
	}
	if !def.Base.IsFinite() && !def.Kind.Numeric() {
		if min, max := def.Base.Bounds(); min != nil || max != nil {
			return domain.Structuralf([]string{def.Key}, "range domain on non-numeric kind %s", def.Kind)
		}
	}
	for _, v := range def.Base.Values() {
		if canon, err := def.Kind.Parse(string(v)); err != nil || canon != v {
			return domain.Structuralf([]string{def.Key}, "option %q is not a canonical %s", v, def.Kind)
		}
	}
	if def.Default.IsSet() && !def.Base.Contains(def.Default) {
		return domain.Structuralf([]string{def.Key}, "default %q outside base domain %s", def.Default, def.Base)
	}

	def.Help = maps.Clone(def.Help)
	r.vars[def.Key] = &variable{def: def, current: def.Base}
	r.order = append(r.order, def.Key)
	return nil
}

func (r *Registry) lookup(key string) (*variable, error) {
	v, ok := r.vars[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownVariable, key)
	}
	return v, nil
}

// Has reports whether key was declared.
func (r *Registry) Has(key string) bool {
	_, ok := r.vars[key]
	return ok
}

// Len returns the number of declared variables.
func (r *Registry) Len() int {
	return len(r.order)
}

// Keys returns the declared keys in declaration order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Value returns the current value of key, Unset if it has none.
func (r *Registry) Value(key string) (domain.Value, error) {
	v, err := r.lookup(key)
	if err != nil {
		return domain.Unset, err
	}
	return v.value, nil
}

// Domain returns the current domain of key.
func (r *Registry) Domain(key string) (domain.Domain, error) {
	v, err := r.lookup(key)
	if err != nil {
		return domain.Domain{}, err
	}
	return v.current, nil
}

// Base returns the declared base domain of key.
func (r *Registry) Base(key string) (domain.Domain, error) {
	v, err := r.lookup(key)
	if err != nil {
		return domain.Domain{}, err
	}
	return v.def.Base, nil
}

// Kind returns the declared kind of key.
func (r *Registry) Kind(key string) (domain.Kind, error) {
	v, err := r.lookup(key)
	if err != nil {
		return "", err
	}
	return v.def.Kind, nil
}

// Variable returns a read-only view of key.
func (r *Registry) Variable(key string) (Variable, error) {
	v, err := r.lookup(key)
	if err != nil {
		return Variable{}, err
	}
	return Variable{
		Key:         v.def.Key,
		Kind:        v.def.Kind,
		Base:        v.def.Base,
		Current:     v.current,
		Value:       v.value,
		Description: v.def.Description,
		Default:     v.def.Default,
		Help:        maps.Clone(v.def.Help),
	}, nil
}

// Clear unsets the value of key without touching its domain.
func (r *Registry) Clear(key string) error {
	v, err := r.lookup(key)
	if err != nil {
		return err
	}
	v.value = domain.Unset
	return nil
}

// Assign stores value for key without validating it against the current domain.
// Only the propagation engine should call it.
func (r *Registry) Assign(key string, value domain.Value) error {
	v, err := r.lookup(key)
	if err != nil {
		return err
	}
	v.value = value
	return nil
}

// SetDomain replaces the current domain of key. The value is left untouched.
// Only the propagation engine should call it.
func (r *Registry) SetDomain(key string, d domain.Domain) error {
	v, err := r.lookup(key)
	if err != nil {
		return err
	}
	v.current = d
	return nil
}

// Assignments returns every set value keyed by variable.
func (r *Registry) Assignments() map[string]domain.Value {
	out := make(map[string]domain.Value)
	for key, v := range r.vars {
		if v.value.IsSet() {
			out[key] = v.value
		}
	}
	return out
}
