package warehouse

import (
	"context"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vk/munge/internal/artifact"
	"github.com/vk/munge/internal/ctxlog"
)

// Swap publishes the staging objects of artifacts under their production
// names in a single transaction. artifacts must be in build order. Either
// every object is published or none is.
func (w *Warehouse) Swap(ctx context.Context, artifacts []*artifact.Artifact) error {
	logger := ctxlog.FromContext(ctx)

	var views, tables []*artifact.Artifact
	for _, a := range artifacts {
		switch a.Kind {
		case artifact.View:
			views = append(views, a)
		case artifact.Summary:
			tables = append(tables, a)
		}
	}
	if len(views)+len(tables) == 0 {
		logger.Debug("Swap: nothing to publish.")
		return nil
	}

	objects, err := w.Objects(ctx)
	if err != nil {
		return err
	}
	for _, a := range slices.Concat(tables, views) {
		if _, ok := objects[w.StagingName(a.Name)]; !ok {
			return errors.WithHint(
				errors.Newf("nothing staged for %s: %s does not exist", a.Name, w.StagingName(a.Name)),
				"build it before swapping",
			)
		}
	}

	names := make([]string, 0, len(tables)+len(views))
	for _, a := range slices.Concat(tables, views) {
		names = append(names, a.Name)
	}
	if err := w.checkDependents(ctx, names); err != nil {
		return err
	}

	// Production SQL for views is rendered up front so a template error
	// cannot leave the transaction half applied.
	prodSQL := make(map[string]string, len(views))
	for _, v := range views {
		q, err := w.RenderProduction(v)
		if err != nil {
			return err
		}
		prodSQL[v.Name] = q
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting swap transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// Dependents first, so no production view outlives what it reads.
	for i := len(views) - 1; i >= 0; i-- {
		if err := w.exec(ctx, tx, "DROP VIEW IF EXISTS "+QuoteIdent(views[i].Name)); err != nil {
			return err
		}
	}

	for _, t := range tables {
		staging, prod := w.StagingName(t.Name), t.Name
		if err := w.exec(ctx, tx,
			"DROP TABLE IF EXISTS "+QuoteIdent(prod),
			"ALTER TABLE "+QuoteIdent(staging)+" RENAME TO "+QuoteIdent(prod),
		); err != nil {
			return err
		}
		for _, idx := range indexesOf(t) {
			stmts := w.dialect.promoteIndex(indexName(staging, idx), indexName(prod, idx), prod, idx)
			if err := w.exec(ctx, tx, stmts...); err != nil {
				return err
			}
		}
		logger.Debug("Swap: table promoted.", "name", prod)
	}

	for _, v := range views {
		if err := w.exec(ctx, tx, w.dialect.promoteView(w.StagingName(v.Name), v.Name, prodSQL[v.Name])...); err != nil {
			return err
		}
		logger.Debug("Swap: view promoted.", "name", v.Name)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing swap transaction")
	}
	logger.Info("Swapped staging objects into production.", "tables", len(tables), "views", len(views))
	return nil
}

// Staged returns the buildable artifacts, in the given order, that have a
// staging object waiting to be swapped.
func (w *Warehouse) Staged(ctx context.Context, artifacts []*artifact.Artifact) ([]*artifact.Artifact, error) {
	objects, err := w.Objects(ctx)
	if err != nil {
		return nil, err
	}
	var out []*artifact.Artifact
	for _, a := range artifacts {
		if !a.Buildable() {
			continue
		}
		if _, ok := objects[w.StagingName(a.Name)]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// ClearStaging drops every object carrying the staging prefix, views first,
// and returns the names it dropped. Objects named in keep are production
// objects that happen to share the prefix and are left alone.
func (w *Warehouse) ClearStaging(ctx context.Context, keep ...string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	objects, err := w.ListObjects(ctx, w.prefix)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(objects, func(a, b Object) int { return int(b.Kind) - int(a.Kind) })

	var dropped []string
	for _, o := range objects {
		if slices.Contains(keep, o.Name) {
			logger.Debug("Clear staging: keeping declared object.", "name", o.Name)
			continue
		}
		if err := w.exec(ctx, w.db, w.dialect.dropStaging(o.Kind, QuoteIdent(o.Name))); err != nil {
			return dropped, err
		}
		dropped = append(dropped, o.Name)
	}
	logger.Info("Cleared staging objects.", "count", len(dropped))
	return dropped, nil
}

// checkDependents fails when a view outside names still reads one of the
// production objects about to be replaced.
func (w *Warehouse) checkDependents(ctx context.Context, names []string) error {
	dependents, err := w.dialect.dependentViews(ctx, w.db)
	if err != nil {
		return errors.Wrap(err, "listing dependent views")
	}
	obj, blockers := blockingViews(dependents, names)
	if len(blockers) == 0 {
		return nil
	}
	return errors.WithHintf(
		errors.Newf("cannot swap %s: view %s depends on it", obj, strings.Join(blockers, ", ")),
		"drop %s first or declare it so it is swapped along with %s",
		strings.Join(blockers, ", "), obj,
	)
}

// blockingViews returns the first of names, in order, that has dependent
// views outside names, together with those views sorted.
func blockingViews(dependents map[string][]string, names []string) (string, []string) {
	for _, name := range names {
		var blockers []string
		for _, v := range dependents[name] {
			if !slices.Contains(names, v) {
				blockers = append(blockers, v)
			}
		}
		if len(blockers) > 0 {
			slices.Sort(blockers)
			return name, slices.Compact(blockers)
		}
	}
	return "", nil
}
