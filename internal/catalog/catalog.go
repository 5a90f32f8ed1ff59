// Package catalog keeps the table_summaries bookkeeping table: one row per
// built artifact with its description, dependencies, build time and size.
// The schema is owned by embedded goose migrations.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"io/fs"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/vk/munge/internal/artifact"
	"github.com/vk/munge/internal/ctxlog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// ErrNotRecorded is returned by Get for names with no catalog row.
var ErrNotRecorded = errors.New("artifact not recorded in catalog")

// Entry is one row of table_summaries.
type Entry struct {
	Name         string
	IsView       bool
	Description  string
	Importer     string
	Dependencies []string
	Duration     time.Duration
	Rows         int64
	RunID        string
	Created      time.Time
	Updated      time.Time
}

// Catalog reads and writes table_summaries.
type Catalog struct {
	db *sql.DB
	// bind is the sqlx placeholder style of the driver.
	bind int
	now  func() time.Time
}

// Open migrates the catalog schema on db and returns a ready Catalog.
// driver is "postgres" or "sqlite".
func Open(ctx context.Context, db *sql.DB, driver string) (*Catalog, error) {
	logger := ctxlog.FromContext(ctx)

	var dialect goose.Dialect
	switch driver {
	case "postgres":
		dialect = goose.DialectPostgres
	case "sqlite":
		dialect = goose.DialectSQLite3
	default:
		return nil, errors.Newf("catalog: unsupported driver %q", driver)
	}

	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "catalog: loading migrations")
	}
	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: creating migration provider")
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: applying migrations")
	}
	for _, r := range results {
		logger.Debug("Catalog migration applied.", "source", r.Source.Path, "duration", r.Duration)
	}

	return &Catalog{db: db, bind: sqlx.BindType(driver), now: time.Now}, nil
}

// rebind rewrites ? placeholders into the driver's style.
func (c *Catalog) rebind(query string) string {
	return sqlx.Rebind(c.bind, query)
}

// Record upserts e. created is set on first insert only.
func (c *Catalog) Record(ctx context.Context, e Entry) error {
	deps, err := json.Marshal(nonNil(e.Dependencies))
	if err != nil {
		return errors.Wrapf(err, "catalog: encoding dependencies of %s", e.Name)
	}
	now := c.now().UTC()

	_, err = c.db.ExecContext(ctx, c.rebind(`
INSERT INTO table_summaries
    (name, is_view, description, importer, dependencies, build_seconds, row_count, run_id, created, updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
    is_view = excluded.is_view,
    description = excluded.description,
    importer = excluded.importer,
    dependencies = excluded.dependencies,
    build_seconds = excluded.build_seconds,
    row_count = excluded.row_count,
    run_id = excluded.run_id,
    updated = excluded.updated`),
		e.Name, e.IsView, e.Description, e.Importer, string(deps), e.Duration.Seconds(), e.Rows, e.RunID, now, now,
	)
	return errors.Wrapf(err, "catalog: recording %s", e.Name)
}

// RecordBuild records a successful build of a.
func (c *Catalog) RecordBuild(ctx context.Context, runID string, a *artifact.Artifact, rows int64, took time.Duration) error {
	return c.Record(ctx, Entry{
		Name:         a.Name,
		IsView:       a.Kind == artifact.View,
		Description:  a.Description,
		Importer:     a.Importer,
		Dependencies: a.Dependencies,
		Duration:     took,
		Rows:         rows,
		RunID:        runID,
	})
}

const selectEntries = `SELECT name, is_view, description, importer, dependencies, build_seconds, row_count, run_id, created, updated FROM table_summaries`

// Get returns the catalog row for name.
func (c *Catalog) Get(ctx context.Context, name string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, c.rebind(selectEntries+` WHERE name = ?`), name)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotRecorded, "%s", name)
	}
	return e, err
}

// List returns every catalog row ordered by name.
func (c *Catalog) List(ctx context.Context) ([]*Entry, error) {
	rows, err := c.db.QueryContext(ctx, selectEntries+` ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: listing entries")
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "catalog: listing entries")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e       Entry
		deps    string
		seconds float64
	)
	if err := s.Scan(&e.Name, &e.IsView, &e.Description, &e.Importer, &deps, &seconds, &e.Rows, &e.RunID, &e.Created, &e.Updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(deps), &e.Dependencies); err != nil {
		return nil, errors.Wrapf(err, "catalog: decoding dependencies of %s", e.Name)
	}
	e.Duration = time.Duration(seconds * float64(time.Second))
	return &e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
