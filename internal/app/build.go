package app

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/vk/munge/internal/catalog"
	"github.com/vk/munge/internal/ctxlog"
	"github.com/vk/munge/internal/executor"
	"github.com/vk/munge/internal/warehouse"
)

// ErrNothingToBuild is returned when a build request selects no artifacts.
var ErrNothingToBuild = errors.New("nothing to build")

// BuildOptions selects what a build pass covers.
type BuildOptions struct {
	// Names are built as given, sorted into build order.
	Names []string
	// Changed adds everything that must be rebuilt after these were updated.
	Changed     []string
	IncludeSelf bool
	// WithDeps adds everything Names depend on.
	WithDeps bool
	// All builds the whole graph.
	All bool
	// Swap publishes the built artifacts after a successful pass.
	Swap bool
}

// Plan returns the build order for opts without touching the warehouse.
func (a *App) Plan(ctx context.Context, opts BuildOptions) ([]string, error) {
	if opts.All {
		return a.graph.GlobalOrder(), nil
	}

	names := opts.Names
	if opts.WithDeps && len(names) > 0 {
		closure, err := a.graph.Closure(names)
		if err != nil {
			return nil, err
		}
		names = closure
	}
	if len(opts.Changed) > 0 {
		updates, err := a.Updates(ctx, opts.Changed, opts.IncludeSelf)
		if err != nil {
			return nil, err
		}
		names = append(slices.Clone(names), updates...)
	}
	if len(names) == 0 {
		return nil, errors.WithHint(ErrNothingToBuild, "name artifacts, pass --changed, or use --all")
	}
	return a.graph.Order(names)
}

// Build runs one build pass: views and summaries are built into staging
// objects in plan order and recorded in the catalog. With opts.Swap the
// staging objects are then published in one transaction.
func (a *App) Build(ctx context.Context, opts BuildOptions) (*executor.Result, error) {
	ctx = a.withLogger(ctx)
	logger := ctxlog.FromContext(ctx)

	plan, err := a.Plan(ctx, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("Build plan resolved.", "plan", plan)

	a.healthCheckServer(ctx)
	defer func() { _ = a.closeHealthCheckServer(ctx) }()

	wh, err := warehouse.Open(ctx, a.config.warehouseConfig())
	if err != nil {
		return nil, err
	}
	defer wh.Close()

	cat, err := catalog.Open(ctx, wh.DB(), wh.Driver())
	if err != nil {
		return nil, err
	}

	driver := executor.New(a.graph, wh, executor.WithStore(a.store), executor.WithRecorder(cat))
	res, err := driver.Build(ctx, plan)
	if err != nil {
		return res, err
	}

	if opts.Swap {
		if err := wh.Swap(ctx, a.artifactsOf(res.Built)); err != nil {
			return res, errors.Wrap(err, "swapping built artifacts")
		}
	}
	return res, nil
}

// Swap publishes staging objects. With no names, every artifact with a
// staging object is published.
func (a *App) Swap(ctx context.Context, names []string) ([]string, error) {
	ctx = a.withLogger(ctx)

	ordered := a.graph.GlobalOrder()
	if len(names) > 0 {
		var err error
		if ordered, err = a.graph.Order(names); err != nil {
			return nil, err
		}
	}

	wh, err := warehouse.Open(ctx, a.config.warehouseConfig())
	if err != nil {
		return nil, err
	}
	defer wh.Close()

	targets := a.artifactsOf(ordered)
	if len(names) == 0 {
		if targets, err = wh.Staged(ctx, targets); err != nil {
			return nil, err
		}
	}
	if err := wh.Swap(ctx, targets); err != nil {
		return nil, err
	}

	var swapped []string
	for _, t := range targets {
		if t.Buildable() {
			swapped = append(swapped, t.Name)
		}
	}
	return swapped, nil
}

// ClearStaging drops every staging object and returns the names dropped.
// Declared artifacts whose names carry the staging prefix are kept.
func (a *App) ClearStaging(ctx context.Context) ([]string, error) {
	ctx = a.withLogger(ctx)
	wh, err := warehouse.Open(ctx, a.config.warehouseConfig())
	if err != nil {
		return nil, err
	}
	defer wh.Close()
	return wh.ClearStaging(ctx, a.declared...)
}

// Catalog lists the table_summaries bookkeeping rows.
func (a *App) Catalog(ctx context.Context) ([]*catalog.Entry, error) {
	ctx = a.withLogger(ctx)
	wh, err := warehouse.Open(ctx, a.config.warehouseConfig())
	if err != nil {
		return nil, err
	}
	defer wh.Close()

	cat, err := catalog.Open(ctx, wh.DB(), wh.Driver())
	if err != nil {
		return nil, err
	}
	return cat.List(ctx)
}
