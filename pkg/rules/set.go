package rules

import (
	"slices"

	"github.com/aretw0/caseconf/pkg/domain"
)

// Set collects rules during setup. Adding a rule that would close a cycle in the
// dependency graph is rejected immediately.
type Set struct {
	rules  []Rule
	names  map[string]struct{}
	succ   map[string]map[string]struct{} // input -> targets
	closed bool
}

// NewSet creates an empty rule set.
func NewSet() *Set {
	return &Set{
		names: make(map[string]struct{}),
		succ:  make(map[string]map[string]struct{}),
	}
}

// Add registers r. It returns a structural error for malformed rules, duplicate names,
// cycles, and additions after Close.
func (s *Set) Add(r Rule) error {
	if s.closed {
		return domain.Structuralf(nil, "rule %q added after registration closed", r.Name)
	}
	if err := r.validate(); err != nil {
		return err
	}
	if _, dup := s.names[r.Name]; dup {
		return domain.Structuralf(nil, "rule %q declared twice", r.Name)
	}

	for _, in := range r.Inputs {
		for _, t := range r.Targets {
			if path := s.path(t, in); path != nil {
				// The new edge in -> t closes path t -> ... -> in.
				cycle := append(path, t)
				return domain.Structuralf(cycle, "rule %q closes a dependency cycle", r.Name)
			}
		}
	}

	r.Inputs = slices.Clone(r.Inputs)
	r.Targets = slices.Clone(r.Targets)
	s.rules = append(s.rules, r)
	s.names[r.Name] = struct{}{}
	for _, in := range r.Inputs {
		if s.succ[in] == nil {
			s.succ[in] = make(map[string]struct{})
		}
		for _, t := range r.Targets {
			s.succ[in][t] = struct{}{}
		}
	}
	return nil
}

// AddAll registers rules in order, stopping at the first error.
func (s *Set) AddAll(rules ...Rule) error {
	for _, r := range rules {
		if err := s.Add(r); err != nil {
			return err
		}
	}
	return nil
}

// path returns the keys of a dependency path from -> ... -> to, or nil if none exists.
func (s *Set) path(from, to string) []string {
	visited := make(map[string]bool)
	var walk func(key string) []string
	walk = func(key string) []string {
		if key == to {
			return []string{key}
		}
		if visited[key] {
			return nil
		}
		visited[key] = true

		next := make([]string, 0, len(s.succ[key]))
		for t := range s.succ[key] {
			next = append(next, t)
		}
		slices.Sort(next)
		for _, t := range next {
			if rest := walk(t); rest != nil {
				return append([]string{key}, rest...)
			}
		}
		return nil
	}
	return walk(from)
}

// Close ends registration. Further calls to Add fail.
func (s *Set) Close() {
	s.closed = true
}

// Closed reports whether registration has ended.
func (s *Set) Closed() bool {
	return s.closed
}

// Rules returns the registered rules in registration order.
func (s *Set) Rules() []Rule {
	return slices.Clone(s.rules)
}

// Len returns the number of registered rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// Keys returns every variable key referenced by some rule, sorted.
func (s *Set) Keys() []string {
	seen := make(map[string]struct{})
	for _, r := range s.rules {
		for _, k := range r.Inputs {
			seen[k] = struct{}{}
		}
		for _, k := range r.Targets {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
