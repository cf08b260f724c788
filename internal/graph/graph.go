// Package graph orders services by their declared dependencies.
package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/railwayapp/yardmaster/internal/errkind"
	"github.com/railwayapp/yardmaster/internal/schema"
)

// CyclicDependencyError names one dependency cycle, first node repeated at
// the end: [a b c a].
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "dependency cycle: " + strings.Join(e.Cycle, " -> ")
}

func (e *CyclicDependencyError) Kind() errkind.Kind { return errkind.CyclicDependency }

// Graph is the depends-on relation of a topology. Edges point from a service
// to the services it depends on.
type Graph struct {
	nodes      []string
	deps       map[string][]string
	dependents map[string][]string
}

// New builds the graph. Dependencies on names outside the topology are
// ignored; the parser rejects those before a graph is ever built.
func New(topology *schema.Topology) *Graph {
	g := &Graph{
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
	for _, s := range topology.Services {
		g.nodes = append(g.nodes, s.Name)
	}
	slices.Sort(g.nodes)
	for _, s := range topology.Services {
		for _, dep := range s.Dependencies {
			if _, ok := slices.BinarySearch(g.nodes, dep); !ok {
				continue
			}
			g.deps[s.Name] = append(g.deps[s.Name], dep)
			g.dependents[dep] = append(g.dependents[dep], s.Name)
		}
	}
	for _, m := range []map[string][]string{g.deps, g.dependents} {
		for k := range m {
			slices.Sort(m[k])
		}
	}
	return g
}

// Dependencies returns the direct dependencies of name.
func (g *Graph) Dependencies(name string) []string {
	return g.deps[name]
}

// Dependents returns every service that depends on name, directly or not,
// sorted by name.
func (g *Graph) Dependents(name string) []string {
	seen := make(map[string]bool)
	stack := append([]string(nil), g.dependents[name]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.dependents[n]...)
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Tiers groups services so that every dependency of a service sits in an
// earlier tier. Services within a tier are sorted by name. A cycle yields a
// CyclicDependencyError.
func (g *Graph) Tiers() ([][]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n] = len(g.deps[n])
	}

	var current []string
	for _, n := range g.nodes {
		if indegree[n] == 0 {
			current = append(current, n)
		}
	}

	var tiers [][]string
	placed := 0
	for len(current) > 0 {
		tiers = append(tiers, current)
		placed += len(current)

		var next []string
		for _, n := range current {
			for _, dependent := range g.dependents[n] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if placed < len(g.nodes) {
		return nil, &CyclicDependencyError{Cycle: g.findCycle(indegree)}
	}
	return tiers, nil
}

// findCycle walks dependency edges among the unplaced nodes until a node
// repeats. Every unplaced node still has an unplaced dependency, so the walk
// always closes a cycle.
func (g *Graph) findCycle(indegree map[string]int) []string {
	var start string
	for _, n := range g.nodes {
		if indegree[n] > 0 {
			start = n
			break
		}
	}

	index := make(map[string]int)
	var path []string
	for n := start; ; {
		if i, ok := index[n]; ok {
			return append(path[i:], n)
		}
		index[n] = len(path)
		path = append(path, n)

		for _, dep := range g.deps[n] {
			if indegree[dep] > 0 {
				n = dep
				break
			}
		}
	}
}

// Tiers is a shorthand for New(topology).Tiers().
func Tiers(topology *schema.Topology) ([][]string, error) {
	return New(topology).Tiers()
}

// Reverse returns the tiers in shutdown order.
func Reverse(tiers [][]string) [][]string {
	out := make([][]string, len(tiers))
	for i, tier := range tiers {
		out[len(tiers)-1-i] = tier
	}
	return out
}

func (g *Graph) String() string {
	var b strings.Builder
	for _, n := range g.nodes {
		fmt.Fprintf(&b, "%s -> [%s]\n", n, strings.Join(g.deps[n], ", "))
	}
	return b.String()
}
