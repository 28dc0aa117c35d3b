// Package graph builds the dependency graph induced by a closed rule set.
//
// Nodes are variables. Every rule contributes an edge from each of its inputs to each of
// its targets. The graph is computed once, is immutable afterwards and can be shared by
// any number of sessions.
package graph

import (
	"slices"

	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/rules"
)

// Edge is one input -> target dependency contributed by a rule.
type Edge struct {
	Rule string
	From string
	To   string
}

// Graph is the acyclic constraint graph.
type Graph struct {
	rules   []rules.Rule
	order   []string
	rank    map[string]int
	readers map[string][]int
	writers map[string][]int
	deps    map[string][]string
	edges   []Edge
}

// Build indexes rules over the declared keys. Rules referencing undeclared keys and rule
// sets whose edges close a cycle are rejected with a structural error.
func Build(keys []string, rs []rules.Rule) (*Graph, error) {
	g := &Graph{
		rules:   slices.Clone(rs),
		rank:    make(map[string]int, len(keys)),
		readers: make(map[string][]int),
		writers: make(map[string][]int),
		deps:    make(map[string][]string),
	}

	declared := make(map[string]int, len(keys))
	for i, k := range keys {
		if _, dup := declared[k]; dup {
			return nil, domain.Structuralf([]string{k}, "variable declared twice")
		}
		declared[k] = i
	}

	succ := make(map[string]map[string]struct{}, len(keys))
	indegree := make(map[string]int, len(keys))
	for i, r := range g.rules {
		for _, k := range append(slices.Clone(r.Inputs), r.Targets...) {
			if _, ok := declared[k]; !ok {
				return nil, domain.Structuralf([]string{k}, "rule %q references undeclared variable", r.Name)
			}
		}
		for _, in := range r.Inputs {
			g.readers[in] = append(g.readers[in], i)
		}
		for _, t := range r.Targets {
			g.writers[t] = append(g.writers[t], i)
		}
		for _, in := range r.Inputs {
			for _, t := range r.Targets {
				g.edges = append(g.edges, Edge{Rule: r.Name, From: in, To: t})
				if succ[in] == nil {
					succ[in] = make(map[string]struct{})
				}
				if _, seen := succ[in][t]; !seen {
					succ[in][t] = struct{}{}
					indegree[t]++
				}
			}
		}
	}

	// Kahn's algorithm; ties are broken by declaration order so the order is stable.
	var ready []string
	for _, k := range keys {
		if indegree[k] == 0 {
			ready = append(ready, k)
		}
	}
	for len(ready) > 0 {
		k := ready[0]
		ready = ready[1:]
		g.rank[k] = len(g.order)
		g.order = append(g.order, k)

		next := make([]string, 0, len(succ[k]))
		for t := range succ[k] {
			next = append(next, t)
		}
		slices.SortFunc(next, func(a, b string) int { return declared[a] - declared[b] })
		for _, t := range next {
			indegree[t]--
			if indegree[t] == 0 {
				ready = insertByDecl(ready, t, declared)
			}
		}
	}

	if len(g.order) != len(keys) {
		var stuck []string
		for _, k := range keys {
			if _, ok := g.rank[k]; !ok {
				stuck = append(stuck, k)
			}
		}
		return nil, domain.Structuralf(stuck, "dependency cycle among variables")
	}

	for k, targets := range succ {
		for t := range targets {
			g.deps[k] = append(g.deps[k], t)
		}
		slices.SortFunc(g.deps[k], func(a, b string) int { return g.rank[a] - g.rank[b] })
	}
	return g, nil
}

func insertByDecl(queue []string, key string, declared map[string]int) []string {
	i, _ := slices.BinarySearchFunc(queue, key, func(a, b string) int { return declared[a] - declared[b] })
	return slices.Insert(queue, i, key)
}

// Order returns every variable in topological order.
func (g *Graph) Order() []string {
	return slices.Clone(g.order)
}

// Rank returns the position of key in Order, or -1 if key is not a node.
func (g *Graph) Rank(key string) int {
	r, ok := g.rank[key]
	if !ok {
		return -1
	}
	return r
}

// Has reports whether key is a node of the graph.
func (g *Graph) Has(key string) bool {
	_, ok := g.rank[key]
	return ok
}

// Rules returns the indexed rules.
func (g *Graph) Rules() []rules.Rule {
	return slices.Clone(g.rules)
}

// Readers returns the rules that take key as an input.
func (g *Graph) Readers(key string) []rules.Rule {
	return g.pick(g.readers[key])
}

// Writers returns the rules that restrict key.
func (g *Graph) Writers(key string) []rules.Rule {
	return g.pick(g.writers[key])
}

func (g *Graph) pick(idx []int) []rules.Rule {
	out := make([]rules.Rule, len(idx))
	for i, j := range idx {
		out[i] = g.rules[j]
	}
	return out
}

// Dependents returns the targets of every rule reading key, in topological order.
func (g *Graph) Dependents(key string) []string {
	return slices.Clone(g.deps[key])
}

// Downstream returns every variable transitively reachable from key, in topological order.
func (g *Graph) Downstream(key string) []string {
	seen := make(map[string]struct{})
	stack := slices.Clone(g.deps[key])
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		stack = append(stack, g.deps[k]...)
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b string) int { return g.rank[a] - g.rank[b] })
	return out
}

// Edges returns every input -> target edge in rule registration order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}
