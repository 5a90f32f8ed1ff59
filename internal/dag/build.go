package dag

import (
	"context"
	"slices"

	"github.com/samber/lo"
	"github.com/vk/munge/internal/artifact"
	"github.com/vk/munge/internal/ctxlog"
	"github.com/vk/munge/internal/registry"
)

// Build constructs the dependency graph of every artifact in reg. Callers
// filter reg first; whatever is in it participates.
func Build(ctx context.Context, reg *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.", "artifacts", reg.Len())

	g := &Graph{index: make(map[string]int)}

	// First pass: registered artifacts get canonical indices in registration order.
	all := reg.All()
	for _, a := range all {
		g.addNode(a.Name, a)
	}

	// Second pass: unknown dependencies become implicit leaves, then edges are linked.
	g.deps = make([][]int, 0, len(g.names))
	for i := range all {
		a := all[i]
		var deps []int
		for _, dep := range lo.Uniq(a.Dependencies) {
			j, ok := g.index[dep]
			if !ok {
				j = g.addNode(dep, nil)
				logger.Debug("Build: Implicit leaf discovered.", "name", dep, "referenced_by", a.Name)
			}
			deps = append(deps, j)
		}
		g.deps = append(g.deps, deps)
	}
	for len(g.deps) < len(g.names) {
		g.deps = append(g.deps, nil)
	}
	g.dependents = make([][]int, len(g.names))
	for i, deps := range g.deps {
		for _, j := range deps {
			g.dependents[j] = append(g.dependents[j], i)
		}
	}
	logger.Debug("Build: Node linking complete.", "nodes", len(g.names), "implicit", len(g.names)-len(all))

	// Third pass: global order, which doubles as cycle detection.
	g.order = g.topoOrder()
	if len(g.order) != len(g.names) {
		cycle := g.findCycle()
		logger.Debug("Build: Cycle detected.", "cycle", cycle)
		return nil, cycleError(cycle)
	}
	g.rank = make([]int, len(g.names))
	for r, i := range g.order {
		g.rank[i] = r
	}

	g.computeClosures()
	logger.Debug("Build: Graph construction successful.", "order", g.GlobalOrder())
	return g, nil
}

func (g *Graph) addNode(name string, a *artifact.Artifact) int {
	i := len(g.names)
	g.names = append(g.names, name)
	g.artifacts = append(g.artifacts, a)
	g.index[name] = i
	return i
}

// computeClosures fills forward, reverse and depth. Walking the global
// order guarantees every dependency's closure is final before it is read.
func (g *Graph) computeClosures() {
	n := len(g.names)
	g.forward = make([][]int, n)
	g.depth = make([]int, n)
	reverseSets := make([]map[int]struct{}, n)

	for _, i := range g.order {
		set := make(map[int]struct{})
		for _, d := range g.deps[i] {
			set[d] = struct{}{}
			for _, f := range g.forward[d] {
				set[f] = struct{}{}
			}
			g.depth[i] = max(g.depth[i], g.depth[d]+1)
		}
		g.forward[i] = g.sortByRank(lo.Keys(set))

		for f := range set {
			if reverseSets[f] == nil {
				reverseSets[f] = make(map[int]struct{})
			}
			reverseSets[f][i] = struct{}{}
		}
	}

	g.reverse = make([][]int, n)
	for i := range reverseSets {
		g.reverse[i] = g.sortByRank(lo.Keys(reverseSets[i]))
	}
}

func (g *Graph) sortByRank(idx []int) []int {
	out := slices.Clone(idx)
	slices.SortFunc(out, func(a, b int) int { return g.rank[a] - g.rank[b] })
	return out
}
