package dag

import (
	"github.com/vk/munge/internal/artifact"
	"github.com/vk/munge/internal/registry"
)

// Graph is the derived, read-only dependency graph of one registry
// snapshot. It is safe for concurrent reads.
type Graph struct {
	// names holds every node in canonical order: registration order, then
	// implicit leaves in order of first reference.
	names []string
	index map[string]int
	// artifacts is nil at implicit leaves.
	artifacts []*artifact.Artifact

	// deps holds direct dependencies, de-duplicated, in declaration order.
	deps       [][]int
	dependents [][]int

	// order is the global topological order; rank is its inverse.
	order []int
	rank  []int

	// forward and reverse hold transitive closures sorted by rank.
	forward [][]int
	reverse [][]int
	depth   []int
}

// Len returns the number of nodes, implicit leaves included.
func (g *Graph) Len() int {
	return len(g.names)
}

// Nodes returns every node name in canonical order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.names...)
}

// Has reports whether name is registered or referenced as a dependency.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Artifact returns the registered artifact for name, or nil for an implicit
// leaf.
func (g *Graph) Artifact(name string) (*artifact.Artifact, error) {
	i, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	return g.artifacts[i], nil
}

// Kind returns the kind of name. Implicit leaves are base tables.
func (g *Graph) Kind(name string) (artifact.Kind, error) {
	a, err := g.Artifact(name)
	if err != nil {
		return artifact.BaseTable, err
	}
	if a == nil {
		return artifact.BaseTable, nil
	}
	return a.Kind, nil
}

// IsImplicit reports whether name was only ever referenced, never registered.
func (g *Graph) IsImplicit(name string) bool {
	i, ok := g.index[name]
	return ok && g.artifacts[i] == nil
}

// DirectDependencies returns the declared dependencies of name.
func (g *Graph) DirectDependencies(name string) ([]string, error) {
	i, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	return g.namesOf(g.deps[i]), nil
}

// DirectDependents returns the artifacts that declare name as a dependency,
// in global order.
func (g *Graph) DirectDependents(name string) ([]string, error) {
	i, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	return g.namesOf(g.sortByRank(g.dependents[i])), nil
}

// Forward returns every artifact name transitively depends on, in global order.
func (g *Graph) Forward(name string) ([]string, error) {
	i, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	return g.namesOf(g.forward[i]), nil
}

// Reverse returns every artifact that transitively depends on name, in
// global order.
func (g *Graph) Reverse(name string) ([]string, error) {
	i, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	return g.namesOf(g.reverse[i]), nil
}

// Depth is the length of the longest dependency chain below name. Leaves
// have depth zero.
func (g *Graph) Depth(name string) (int, error) {
	i, err := g.lookup(name)
	if err != nil {
		return 0, err
	}
	return g.depth[i], nil
}

// GlobalOrder returns every node in build order.
func (g *Graph) GlobalOrder() []string {
	return g.namesOf(g.order)
}

func (g *Graph) lookup(name string) (int, error) {
	if i, ok := g.index[name]; ok {
		return i, nil
	}
	return -1, registry.NewUnknownArtifactError(name)
}

func (g *Graph) namesOf(idx []int) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = g.names[i]
	}
	return out
}
