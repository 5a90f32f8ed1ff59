package executor

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vk/munge/internal/artifact"
	"github.com/vk/munge/internal/ctxlog"
	"github.com/vk/munge/internal/inmemorystore"
	"github.com/vk/munge/internal/nodestore"
)

// Warehouse builds single artifacts. *warehouse.Warehouse satisfies it.
type Warehouse interface {
	CreateView(ctx context.Context, a *artifact.Artifact) error
	MaterializeSummary(ctx context.Context, a *artifact.Artifact) (int64, error)
}

// Recorder is told about every artifact built successfully.
// *catalog.Catalog satisfies it.
type Recorder interface {
	RecordBuild(ctx context.Context, runID string, a *artifact.Artifact, rows int64, took time.Duration) error
}

// Artifacts resolves names to definitions. A nil artifact with a nil error
// is an implicit leaf. *dag.Graph satisfies it.
type Artifacts interface {
	Artifact(name string) (*artifact.Artifact, error)
}

// Driver runs build passes.
type Driver struct {
	artifacts Artifacts
	warehouse Warehouse
	store     nodestore.Store
	recorder  Recorder
	now       func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithStore makes the driver publish progress into store.
func WithStore(store nodestore.Store) Option {
	return func(d *Driver) { d.store = store }
}

// WithRecorder makes the driver report successful builds to r.
func WithRecorder(r Recorder) Option {
	return func(d *Driver) { d.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// New creates a build driver.
func New(artifacts Artifacts, wh Warehouse, opts ...Option) *Driver {
	d := &Driver{
		artifacts: artifacts,
		warehouse: wh,
		store:     inmemorystore.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Store returns the state store the driver writes to.
func (d *Driver) Store() nodestore.Store { return d.store }

// Result summarizes a build pass.
type Result struct {
	RunID    string
	Built    []string
	Skipped  []string
	Rows     map[string]int64
	Duration time.Duration
}

// Build builds names in the order given. The first failure aborts the pass;
// artifacts not reached are marked skipped.
func (d *Driver) Build(ctx context.Context, names []string) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Rows: make(map[string]int64)}
	logger := ctxlog.FromContext(ctx).With("run_id", res.RunID)
	started := d.now()
	defer func() { res.Duration = d.now().Sub(started) }()

	if err := d.store.Init(ctx, names); err != nil {
		return res, errors.Wrap(err, "initializing build state")
	}
	logger.Info("🚀 Starting build pass.", "artifacts", len(names))

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			d.skipRest(ctx, names[i:])
			return res, errors.Wrapf(err, "build pass cancelled before %s", name)
		}

		a, err := d.artifacts.Artifact(name)
		if err != nil {
			d.skipRest(ctx, names[i:])
			return res, err
		}
		if a == nil || !a.Buildable() {
			logger.Debug("Skipping artifact loaded by an importer.", "name", name)
			_ = d.store.SetStatus(ctx, name, nodestore.StatusSkipped)
			res.Skipped = append(res.Skipped, name)
			continue
		}

		rows, took, err := d.buildOne(ctx, res.RunID, a)
		if err != nil {
			logger.Error("Artifact build failed.", "name", name, "kind", a.Kind, "error", err)
			_ = d.store.SetStatus(ctx, name, nodestore.StatusFailed)
			_ = d.store.SetError(ctx, name, err)
			d.skipRest(ctx, names[i+1:])
			return res, &ArtifactBuildError{Name: name, Kind: a.Kind, Err: err}
		}

		_ = d.store.SetResult(ctx, name, nodestore.Result{Rows: rows, Duration: took})
		_ = d.store.SetStatus(ctx, name, nodestore.StatusCompleted)
		res.Built = append(res.Built, name)
		if a.Kind == artifact.Summary {
			res.Rows[name] = rows
		}
		logger.Info("Built artifact.", "name", name, "kind", a.Kind, "rows", rows, "took", took)
	}

	logger.Info("🏁 Build pass finished.", "built", len(res.Built), "skipped", len(res.Skipped))
	return res, nil
}

// buildOne dispatches a to the warehouse and then to the recorder.
func (d *Driver) buildOne(ctx context.Context, runID string, a *artifact.Artifact) (int64, time.Duration, error) {
	_ = d.store.SetStatus(ctx, a.Name, nodestore.StatusRunning)
	start := d.now()

	var rows int64
	var err error
	switch a.Kind {
	case artifact.View:
		err = d.warehouse.CreateView(ctx, a)
	case artifact.Summary:
		rows, err = d.warehouse.MaterializeSummary(ctx, a)
	}
	took := d.now().Sub(start)
	if err != nil {
		return 0, took, err
	}

	if d.recorder != nil {
		if err := d.recorder.RecordBuild(ctx, runID, a, rows, took); err != nil {
			return rows, took, errors.Wrap(err, "recording build")
		}
	}
	return rows, took, nil
}

func (d *Driver) skipRest(ctx context.Context, names []string) {
	for _, name := range names {
		_ = d.store.SetStatus(ctx, name, nodestore.StatusSkipped)
	}
}
