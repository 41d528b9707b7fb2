package discovery

import (
	"maps"
	"slices"

	"github.com/roach88/recsync/internal/collection"
)

// Node is one identity in the dependency graph.
type Node struct {
	ID string

	// Type is the record type, from the record itself or from the
	// dependency declaration that referenced a ghost.
	Type string

	// Ghost is true when the identity is referenced but no record was found.
	Ghost bool

	// Deps are the identities this node depends on, sorted.
	Deps []string

	// Edges point to dependents: if A depends on B, B.Edges contains A,
	// because B must be processed first.
	Edges map[string]struct{}
}

// Graph is the dependency graph of a collection.
type Graph struct {
	nodes map[string]*Node
}

// BuildGraph creates a graph node for every record and every dependency
// target, with reverse edges from dependency to dependent.
func BuildGraph(c *collection.Collection) *Graph {
	g := &Graph{nodes: map[string]*Node{}}
	for id, r := range c.All() {
		n := g.ensure(id)
		n.Type = r.RecordType
		n.Ghost = false
		n.Deps = r.DependencyIdentities()
		for _, dep := range n.Deps {
			d := g.ensure(dep)
			if d.Type == "" {
				d.Type = r.Dependencies[dep]
			}
			d.Edges[id] = struct{}{}
		}
	}
	return g
}

func (g *Graph) ensure(id string) *Node {
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{ID: id, Ghost: true, Edges: map[string]struct{}{}}
		g.nodes[id] = n
	}
	return n
}

// Node returns the node for id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes, ghosts included.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns all node identities in sorted order.
func (g *Graph) IDs() []string {
	return slices.Sorted(maps.Keys(g.nodes))
}

// Ghosts returns the identities that are referenced but have no record.
func (g *Graph) Ghosts() []string {
	var out []string
	for _, id := range g.IDs() {
		if g.nodes[id].Ghost {
			out = append(out, id)
		}
	}
	return out
}

// Dependents returns the identities that directly depend on id, sorted.
func (g *Graph) Dependents(id string) []string {
	n := g.nodes[id]
	if n == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(n.Edges))
}

// Sort returns every identity, ghosts included, with dependencies before
// dependents. Back edges found while a node is still being visited are
// skipped, which breaks cycles deterministically.
func (g *Graph) Sort() []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.nodes))
	out := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if state[id] != unvisited {
			return
		}
		state[id] = visiting
		for _, dep := range g.nodes[id].Deps {
			visit(dep)
		}
		state[id] = done
		out = append(out, id)
	}

	for _, id := range g.IDs() {
		visit(id)
	}
	return out
}
