package dag

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/munge/internal/artifact"
	"github.com/vk/munge/internal/registry"
)

func summary(name string, deps ...string) *artifact.Artifact {
	return &artifact.Artifact{
		Name:         name,
		Kind:         artifact.Summary,
		Dependencies: deps,
		Recipe:       artifact.Recipe{SQL: "SELECT 1", Tables: deps},
		Enabled:      true,
	}
}

func build(t *testing.T, artifacts ...*artifact.Artifact) *Graph {
	t.Helper()
	g, err := Build(context.Background(), registry.New().MustRegister(artifacts...))
	require.NoError(t, err)
	return g
}

// abcd is A <- B <- C and A <- D.
func abcd(t *testing.T) *Graph {
	return build(t, summary("A"), summary("B", "A"), summary("C", "B"), summary("D", "A"))
}

func TestOrder(t *testing.T) {
	g := abcd(t)

	t.Run("dependencies first and deterministic", func(t *testing.T) {
		first, err := g.Order([]string{"C", "D", "A"})
		require.NoError(t, err)
		assert.Equal(t, "A", first[0])
		assert.ElementsMatch(t, []string{"A", "C", "D"}, first)

		for range 20 {
			again, err := g.Order([]string{"D", "A", "C", "A"})
			require.NoError(t, err)
			if diff := cmp.Diff(first, again); diff != "" {
				t.Fatalf("order is not stable (-first +again):\n%s", diff)
			}
		}
	})

	t.Run("ties break by registration order", func(t *testing.T) {
		assert.Equal(t, []string{"A", "B", "C", "D"}, g.GlobalOrder())
		got, err := g.Order([]string{"C", "D", "A"})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "C", "D"}, got)
	})

	t.Run("singleton and empty", func(t *testing.T) {
		got, err := g.Order([]string{"B"})
		require.NoError(t, err)
		assert.Equal(t, []string{"B"}, got)

		got, err = g.Order(nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := g.Order([]string{"A", "Z"})
		require.Error(t, err)
		var unknown *registry.UnknownArtifactError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "Z", unknown.Name)
	})
}

func TestUpdatesFor(t *testing.T) {
	ctx := context.Background()
	g := abcd(t)

	testCases := []struct {
		name        string
		changed     []string
		includeSelf bool
		want        []string
	}{
		{name: "reverse closure of root", changed: []string{"A"}, want: []string{"B", "C", "D"}},
		{name: "include self", changed: []string{"A"}, includeSelf: true, want: []string{"A", "B", "C", "D"}},
		{name: "no consumers", changed: []string{"C"}, want: []string{}},
		{name: "no consumers include self", changed: []string{"C"}, includeSelf: true, want: []string{"C"}},
		{name: "duplicates are collapsed", changed: []string{"B", "B", "D"}, want: []string{"C"}},
		{name: "empty input", changed: nil, want: []string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := g.UpdatesFor(ctx, tc.changed, tc.includeSelf)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("B precedes C", func(t *testing.T) {
		got, err := g.UpdatesFor(ctx, []string{"A"}, false)
		require.NoError(t, err)
		assert.Less(t, indexOf(got, "B"), indexOf(got, "C"))
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := g.UpdatesFor(ctx, []string{"Z"}, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, registry.ErrUnknownArtifact))
	})
}

func TestImplicitLeaves(t *testing.T) {
	ctx := context.Background()
	g := build(t,
		summary("vao_base", "vao_list", "vao_line"),
		summary("vao_by_pc", "vao_base", "postcode"),
	)

	assert.Equal(t, []string{"vao_base", "vao_by_pc", "vao_list", "vao_line", "postcode"}, g.Nodes())
	assert.True(t, g.IsImplicit("postcode"))
	assert.False(t, g.IsImplicit("vao_base"))

	a, err := g.Artifact("postcode")
	require.NoError(t, err)
	assert.Nil(t, a)
	kind, err := g.Kind("postcode")
	require.NoError(t, err)
	assert.Equal(t, artifact.BaseTable, kind)

	fwd, err := g.Forward("postcode")
	require.NoError(t, err)
	assert.Empty(t, fwd)

	got, err := g.UpdatesFor(ctx, []string{"vao_list"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"vao_base", "vao_by_pc"}, got)

	got, err = g.UpdatesFor(ctx, []string{"postcode"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"vao_by_pc"}, got)

	assert.Equal(t, []string{"vao_list", "vao_line", "vao_base", "postcode", "vao_by_pc"}, g.GlobalOrder())
}

func TestClosures(t *testing.T) {
	g := build(t,
		summary("A"),
		summary("B", "A"),
		summary("C", "B", "X"),
		summary("D", "A", "C"),
	)

	fwd, err := g.Forward("D")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "X"}, sorted(fwd))

	// forward[a] is the least fixed point of deps ∪ forward[deps].
	for _, name := range g.Nodes() {
		deps, err := g.DirectDependencies(name)
		require.NoError(t, err)
		want := map[string]bool{}
		for _, d := range deps {
			want[d] = true
			sub, _ := g.Forward(d)
			for _, s := range sub {
				want[s] = true
			}
		}
		got, _ := g.Forward(name)
		assert.Len(t, got, len(want), name)
		for _, s := range got {
			assert.True(t, want[s], "%s unexpectedly in forward[%s]", s, name)
		}
	}

	rev, err := g.Reverse("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "D"}, rev)

	dependents, err := g.DirectDependents("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "D"}, dependents)

	depth, err := g.Depth("D")
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	closure, err := g.Closure([]string{"C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "X", "C"}, closure)

	// Topological correctness over the whole graph.
	order := g.GlobalOrder()
	for _, name := range order {
		deps, _ := g.Forward(name)
		for _, d := range deps {
			assert.Less(t, indexOf(order, d), indexOf(order, name), "%s must precede %s", d, name)
		}
	}
}

func TestCycles(t *testing.T) {
	t.Run("two node cycle", func(t *testing.T) {
		_, err := Build(context.Background(), registry.New().MustRegister(summary("E", "F"), summary("F", "E")))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCyclicDependency))

		var cyc *CyclicDependencyError
		require.True(t, errors.As(err, &cyc))
		assert.Equal(t, []string{"E", "F", "E"}, cyc.Cycle)
		assert.EqualError(t, err, "cyclic dependency: E -> F -> E")
	})

	t.Run("self dependency", func(t *testing.T) {
		_, err := Build(context.Background(), registry.New().MustRegister(summary("S", "S")))
		var cyc *CyclicDependencyError
		require.True(t, errors.As(err, &cyc))
		assert.Equal(t, []string{"S", "S"}, cyc.Cycle)
	})

	t.Run("cycle behind an acyclic prefix", func(t *testing.T) {
		reg := registry.New().MustRegister(
			summary("ok", "raw"),
			summary("P", "ok", "R"),
			summary("Q", "P"),
			summary("R", "Q"),
		)
		_, err := Build(context.Background(), reg)
		var cyc *CyclicDependencyError
		require.True(t, errors.As(err, &cyc))
		assert.Equal(t, []string{"P", "R", "Q", "P"}, cyc.Cycle)
	})

	t.Run("disabled member breaks the cycle", func(t *testing.T) {
		f := summary("F", "E")
		f.Enabled = false
		reg := registry.New().MustRegister(summary("E", "F"), f).Filter(registry.Enabled())
		g, err := Build(context.Background(), reg)
		require.NoError(t, err)
		assert.True(t, g.IsImplicit("F"))
	})
}

func TestOrderPlacesDependenciesFirst(t *testing.T) {
	testCases := []struct {
		name      string
		artifacts []*artifact.Artifact
	}{
		{
			name:      "chain declared backwards",
			artifacts: []*artifact.Artifact{summary("e", "d"), summary("d", "c"), summary("c", "b"), summary("b", "a"), summary("a")},
		},
		{
			name:      "diamond",
			artifacts: []*artifact.Artifact{summary("top", "left", "right"), summary("left", "base"), summary("right", "base"), summary("base")},
		},
		{
			name: "fan in and fan out",
			artifacts: []*artifact.Artifact{
				summary("report", "x", "y", "z"),
				summary("x", "raw1"), summary("y", "raw1", "raw2"), summary("z", "raw2"),
				summary("extra", "report", "raw1"),
			},
		},
		{
			name: "implicit leaves and skip edges",
			artifacts: []*artifact.Artifact{
				summary("m", "k", "ext_a"),
				summary("k", "j", "ext_b"),
				summary("j", "ext_a"),
				summary("n", "m", "j", "ext_b"),
			},
		},
		{
			name:      "disconnected components",
			artifacts: []*artifact.Artifact{summary("p2", "p1"), summary("q2", "q1"), summary("p1"), summary("q1"), summary("lone")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := build(t, tc.artifacts...)
			nodes := g.Nodes()

			subsetOrder, err := g.Order(append([]string{nodes[len(nodes)-1]}, nodes...))
			require.NoError(t, err)
			orders := map[string][]string{
				"global": g.GlobalOrder(),
				"subset": subsetOrder,
			}
			for label, order := range orders {
				require.ElementsMatch(t, nodes, order, label)
				for _, a := range nodes {
					deps, err := g.Forward(a)
					require.NoError(t, err)
					for _, b := range deps {
						assert.Less(t, indexOf(order, b), indexOf(order, a), "%s: %s must precede %s", label, b, a)
					}
				}
			}

			for _, a := range nodes {
				closure, err := g.Closure([]string{a})
				require.NoError(t, err)
				assert.Equal(t, a, closure[len(closure)-1], "closure of %s ends with itself", a)

				updates, err := g.UpdatesFor(context.Background(), []string{a}, true)
				require.NoError(t, err)
				assert.Equal(t, a, updates[0], "updates of %s start with itself", a)
			}
		})
	}
}

func TestEmptyGraph(t *testing.T) {
	g, err := Build(context.Background(), registry.New())
	require.NoError(t, err)
	assert.Zero(t, g.Len())
	assert.Empty(t, g.GlobalOrder())
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
