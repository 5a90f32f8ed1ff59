package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/vk/munge/internal/config"
	"github.com/vk/munge/internal/ctxlog"
	"github.com/vk/munge/internal/dag"
	"github.com/vk/munge/internal/inmemorystore"
	"github.com/vk/munge/internal/nodestore"
	"github.com/vk/munge/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	logger     *slog.Logger
	ctx        context.Context
	config     *Config
	registry   *registry.Registry
	// declared holds every name the manifests mention, disabled and
	// out-of-stage artifacts included.
	declared   []string
	graph      *dag.Graph
	store      nodestore.Store
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It loads the
// manifests, builds the registry for the configured stages and resolves
// the dependency graph. Logs go to logW.
func NewApp(logW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// Load all configuration into the format-agnostic model first.
	model, err := loader.Load(ctx, cfg.ManifestPaths...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load manifests")
	}
	logger.Debug("Manifests loaded into unified model.", "definitions", len(model.Artifacts))

	reg, err := registry.FromModel(ctx, model)
	if err != nil {
		return nil, err
	}
	if err := reg.Validate(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Registry validation passed.", "artifacts", reg.Len())

	active := reg.Filter(registry.Enabled(), registry.InStages(cfg.Stages...))
	if dropped := reg.Len() - active.Len(); dropped > 0 {
		logger.Info("Excluded disabled or out-of-stage artifacts.", "count", dropped, "stages", cfg.Stages)
	}

	graph, err := dag.Build(ctx, active)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build dependency graph")
	}
	logger.Debug("Dependency graph built.", "node_count", graph.Len())

	return &App{
		logger:   logger,
		ctx:      ctx,
		config:   cfg,
		registry: active,
		declared: declaredNames(reg),
		graph:    graph,
		store:    inmemorystore.New(),
	}, nil
}

// Registry returns the filtered registry the graph was built from.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Graph returns the resolved dependency graph.
func (a *App) Graph() *dag.Graph {
	return a.graph
}

// Store returns the build-state store shared by build passes and the
// status endpoint.
func (a *App) Store() nodestore.Store {
	return a.store
}

// withLogger attaches the app logger to ctx.
func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

func declaredNames(reg *registry.Registry) []string {
	names := reg.Names()
	for _, a := range reg.All() {
		names = append(names, a.Dependencies...)
	}
	return lo.Uniq(names)
}
