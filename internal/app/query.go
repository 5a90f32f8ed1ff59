package app

import (
	"context"

	"github.com/vk/munge/internal/artifact"
	"github.com/vk/munge/internal/recipe"
	"github.com/vk/munge/internal/warehouse"
)

// Order returns names sorted dependencies first.
func (a *App) Order(names []string) ([]string, error) {
	return a.graph.Order(names)
}

// Updates returns what must be rebuilt after changed were modified.
func (a *App) Updates(ctx context.Context, changed []string, includeSelf bool) ([]string, error) {
	return a.graph.UpdatesFor(a.withLogger(ctx), changed, includeSelf)
}

// DepsReport describes one node of the graph.
type DepsReport struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Implicit bool     `json:"implicit,omitempty"`
	Depth    int      `json:"depth"`
	Direct   []string `json:"direct"`
	Forward  []string `json:"forward"`
	Reverse  []string `json:"reverse"`
}

// Deps reports the dependencies and dependents of name, or of every node
// in global order when name is empty.
func (a *App) Deps(name string) ([]*DepsReport, error) {
	names := a.graph.GlobalOrder()
	if name != "" {
		names = []string{name}
	}

	out := make([]*DepsReport, 0, len(names))
	for _, n := range names {
		r, err := a.depsOf(n)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (a *App) depsOf(name string) (*DepsReport, error) {
	kind, err := a.graph.Kind(name)
	if err != nil {
		return nil, err
	}
	r := &DepsReport{Name: name, Kind: kind.String(), Implicit: a.graph.IsImplicit(name)}
	if r.Depth, err = a.graph.Depth(name); err != nil {
		return nil, err
	}
	if r.Direct, err = a.graph.DirectDependencies(name); err != nil {
		return nil, err
	}
	if r.Forward, err = a.graph.Forward(name); err != nil {
		return nil, err
	}
	if r.Reverse, err = a.graph.Reverse(name); err != nil {
		return nil, err
	}
	return r, nil
}

// SQL renders the recipe of name against production names.
func (a *App) SQL(name string) (string, error) {
	art, err := a.registry.Get(name)
	if err != nil {
		return "", err
	}
	if !art.Buildable() {
		return "", nil
	}
	return recipe.Render(art, func(ref string) (string, error) {
		return warehouse.QuoteIdent(ref), nil
	})
}

// artifactsOf returns the registered artifacts among names, keeping order.
// Implicit leaves are left out.
func (a *App) artifactsOf(names []string) []*artifact.Artifact {
	out := make([]*artifact.Artifact, 0, len(names))
	for _, n := range names {
		if art, ok := a.registry.Lookup(n); ok {
			out = append(out, art)
		}
	}
	return out
}
