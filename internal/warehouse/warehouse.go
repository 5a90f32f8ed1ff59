package warehouse

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/vk/munge/internal/ctxlog"
)

// DefaultStagingPrefix marks objects built by the current pass but not yet
// published.
const DefaultStagingPrefix = "tmp_"

// Config selects and tunes a warehouse connection.
type Config struct {
	Driver        string
	DSN           string
	StagingPrefix string
	// Limit caps the rows loaded into each summary. Zero means no cap.
	Limit int
}

// Warehouse executes build recipes against one database.
type Warehouse struct {
	db      *sql.DB
	dialect dialect
	prefix  string
	limit   int
	owned   bool
}

// Open connects to the configured database and prepares the pool.
func Open(ctx context.Context, cfg Config) (*Warehouse, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.WithHint(errors.New("warehouse dsn is empty"), "set --dsn or MUNGE_DSN")
	}

	db, err := sql.Open(d.name(), cfg.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s warehouse", d.name())
	}
	w, err := newWarehouse(ctx, db, d, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	w.owned = true
	ctxlog.FromContext(ctx).Debug("Warehouse opened.", "driver", d.name(), "staging_prefix", w.prefix)
	return w, nil
}

// New wraps an already opened pool. The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB, cfg Config) (*Warehouse, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	return newWarehouse(ctx, db, d, cfg)
}

func newWarehouse(ctx context.Context, db *sql.DB, d dialect, cfg Config) (*Warehouse, error) {
	if err := d.prepare(ctx, db); err != nil {
		return nil, errors.Wrapf(err, "preparing %s warehouse", d.name())
	}
	prefix := cfg.StagingPrefix
	if prefix == "" {
		prefix = DefaultStagingPrefix
	}
	if cfg.Limit < 0 {
		return nil, errors.Newf("summary row limit must not be negative, got %d", cfg.Limit)
	}
	return &Warehouse{db: db, dialect: d, prefix: prefix, limit: cfg.Limit}, nil
}

// Close releases the pool if Open created it.
func (w *Warehouse) Close() error {
	if !w.owned {
		return nil
	}
	return w.db.Close()
}

// DB exposes the pool for collaborators sharing the connection, such as
// the catalog.
func (w *Warehouse) DB() *sql.DB { return w.db }

// Driver returns the canonical driver name.
func (w *Warehouse) Driver() string { return w.dialect.name() }

// StagingPrefix returns the prefix of staging object names.
func (w *Warehouse) StagingPrefix() string { return w.prefix }

// StagingName returns the staging object name for an artifact.
func (w *Warehouse) StagingName(name string) string { return w.prefix + name }

func (w *Warehouse) exec(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, stmts ...string) error {
	logger := ctxlog.FromContext(ctx)
	for _, stmt := range stmts {
		logger.Debug("Executing statement.", "sql", stmt)
		if _, err := execer.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "executing %q", stmt)
		}
	}
	return nil
}
