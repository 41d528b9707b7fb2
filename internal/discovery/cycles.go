package discovery

import (
	"fmt"
	"slices"
	"strings"
)

// CycleWarning describes a dependency cycle between records.
//
// Cycles are warnings, not errors: the sorter breaks them and discovery
// carries on, but records in a cycle may be imported before one of their
// dependencies exists.
type CycleWarning struct {
	Path    []string `json:"path"`    // e.g. ["a", "b", "a"]
	Message string   `json:"message"` // human-readable description
}

// AnalyzeCycles finds strongly connected components with Tarjan's algorithm
// and reports every component of size > 1 as a cycle. Self references cannot
// occur because records drop them on construction.
func AnalyzeCycles(g *Graph) []CycleWarning {
	var warnings []CycleWarning
	for _, scc := range tarjanSCC(g) {
		if len(scc) < 2 {
			continue
		}
		path := cyclePath(scc, g)
		warnings = append(warnings, CycleWarning{
			Path:    path,
			Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " → ")),
		})
	}
	return warnings
}

// tarjanSCC walks the dependent edges in sorted order so the components and
// their member order are deterministic.
func tarjanSCC(g *Graph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.Dependents(v) {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, id := range g.IDs() {
		if _, visited := indices[id]; !visited {
			strongConnect(id)
		}
	}
	return sccs
}

// cyclePath starts at the smallest member and follows dependency edges
// inside the component until it returns to the start.
func cyclePath(scc []string, g *Graph) []string {
	members := make(map[string]bool, len(scc))
	for _, id := range scc {
		members[id] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{}
	current := start
	for {
		visited[current] = true
		next := ""
		for _, dep := range g.Node(current).Deps {
			if members[dep] && (!visited[dep] || dep == start) {
				next = dep
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
