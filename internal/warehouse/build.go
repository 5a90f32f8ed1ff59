package warehouse

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vk/munge/internal/artifact"
	"github.com/vk/munge/internal/ctxlog"
	"github.com/vk/munge/internal/recipe"
)

// indexDef is an index after primary key expansion.
type indexDef struct {
	Columns []string
	Unique  bool
}

// RenderStaging renders the recipe of a for a build pass: every reference
// resolves to its staging object when one exists, otherwise to production.
func (w *Warehouse) RenderStaging(ctx context.Context, a *artifact.Artifact) (string, error) {
	objects, err := w.Objects(ctx)
	if err != nil {
		return "", err
	}
	return recipe.Render(a, func(name string) (string, error) {
		if _, ok := objects[w.StagingName(name)]; ok {
			return QuoteIdent(w.StagingName(name)), nil
		}
		return QuoteIdent(name), nil
	})
}

// RenderProduction renders the recipe of a against production names only.
func (w *Warehouse) RenderProduction(a *artifact.Artifact) (string, error) {
	return recipe.Render(a, func(name string) (string, error) {
		return QuoteIdent(name), nil
	})
}

// CreateView (re)creates the staging view of a.
func (w *Warehouse) CreateView(ctx context.Context, a *artifact.Artifact) error {
	if a.Kind != artifact.View {
		return errors.Newf("%s is a %s, not a view", a.Name, a.Kind)
	}
	query, err := w.RenderStaging(ctx, a)
	if err != nil {
		return err
	}
	staging := QuoteIdent(w.StagingName(a.Name))
	return w.exec(ctx, w.db,
		w.dialect.dropStaging(ObjectView, staging),
		"CREATE VIEW "+staging+" AS "+query,
	)
}

// MaterializeSummary runs the recipe of a into a fresh staging table, builds
// its indexes and returns the number of rows loaded.
func (w *Warehouse) MaterializeSummary(ctx context.Context, a *artifact.Artifact) (int64, error) {
	logger := ctxlog.FromContext(ctx)
	if a.Kind != artifact.Summary {
		return 0, errors.Newf("%s is a %s, not a summary", a.Name, a.Kind)
	}
	query, err := w.RenderStaging(ctx, a)
	if err != nil {
		return 0, err
	}
	if w.limit > 0 {
		query = "SELECT * FROM (" + query + ") AS q LIMIT " + strconv.Itoa(w.limit)
	}

	stagingName := w.StagingName(a.Name)
	staging := QuoteIdent(stagingName)
	stmts := []string{
		w.dialect.dropStaging(ObjectTable, staging),
		"CREATE TABLE " + staging + " AS " + query,
	}
	for _, idx := range indexesOf(a) {
		stmts = append(stmts, createIndexSQL(indexName(stagingName, idx), stagingName, idx))
	}
	if err := w.exec(ctx, w.db, stmts...); err != nil {
		return 0, err
	}

	var rows int64
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+staging).Scan(&rows); err != nil {
		return 0, errors.Wrapf(err, "counting rows of %s", stagingName)
	}
	logger.Debug("Summary materialized.", "name", a.Name, "staging", stagingName, "rows", rows)
	return rows, nil
}

// indexesOf returns the primary key as a unique index followed by the
// declared indexes, without duplicates.
func indexesOf(a *artifact.Artifact) []indexDef {
	var out []indexDef
	seen := make(map[string]bool)
	add := func(d indexDef) {
		key := strings.Join(d.Columns, "\x00")
		if len(d.Columns) == 0 || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, d)
	}
	if len(a.Recipe.PrimaryKey) > 0 {
		add(indexDef{Columns: a.Recipe.PrimaryKey, Unique: true})
	}
	for _, idx := range a.Recipe.Indexes {
		add(indexDef{Columns: idx.Columns, Unique: idx.Unique})
	}
	return out
}

func indexName(table string, idx indexDef) string {
	return table + "_idx_" + strings.Join(idx.Columns, "_")
}

func createIndexSQL(name, table string, idx indexDef) string {
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = QuoteIdent(c)
	}
	stmt := "CREATE INDEX "
	if idx.Unique {
		stmt = "CREATE UNIQUE INDEX "
	}
	return stmt + QuoteIdent(name) + " ON " + QuoteIdent(table) + " (" + strings.Join(cols, ", ") + ")"
}
