package dag

import (
	"context"

	"github.com/samber/lo"
	"github.com/vk/munge/internal/ctxlog"
)

// Order returns names, de-duplicated, as a subsequence of the global order:
// dependencies before their dependents. Every name must be known to the
// graph.
func (g *Graph) Order(names []string) ([]string, error) {
	selected, err := g.indicesOf(names)
	if err != nil {
		return nil, err
	}
	return g.namesOf(g.sortByRank(selected)), nil
}

// UpdatesFor returns, in build order, every artifact that must be rebuilt
// after the artifacts in changed were updated: the union of their reverse
// closures, plus changed itself when includeSelf is set.
func (g *Graph) UpdatesFor(ctx context.Context, changed []string, includeSelf bool) ([]string, error) {
	selected, err := g.indicesOf(changed)
	if err != nil {
		return nil, err
	}

	set := make(map[int]struct{})
	for _, i := range selected {
		if includeSelf {
			set[i] = struct{}{}
		}
		for _, r := range g.reverse[i] {
			set[r] = struct{}{}
		}
	}

	out := g.namesOf(g.sortByRank(lo.Keys(set)))
	ctxlog.FromContext(ctx).Debug("Resolved updates.", "changed", changed, "include_self", includeSelf, "updates", out)
	return out, nil
}

// Closure returns names together with everything they depend on, in build
// order.
func (g *Graph) Closure(names []string) ([]string, error) {
	selected, err := g.indicesOf(names)
	if err != nil {
		return nil, err
	}
	set := make(map[int]struct{})
	for _, i := range selected {
		set[i] = struct{}{}
		for _, f := range g.forward[i] {
			set[f] = struct{}{}
		}
	}
	return g.namesOf(g.sortByRank(lo.Keys(set))), nil
}

// indicesOf resolves names to unique node indices, failing on the first
// unknown name.
func (g *Graph) indicesOf(names []string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, name := range lo.Uniq(names) {
		i, err := g.lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}
