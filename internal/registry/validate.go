package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vk/munge/internal/artifact"
	"github.com/vk/munge/internal/ctxlog"
)

// Validate checks that every definition carries what its kind needs. All
// problems are reported together.
func (r *Registry) Validate(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, a := range r.All() {
		where := fmt.Sprintf("%s '%s' (%s)", a.Kind, a.Name, orUnknown(a.Source))

		switch a.Kind {
		case artifact.BaseTable:
			if strings.TrimSpace(a.Recipe.SQL) != "" || len(a.Recipe.Tables) > 0 {
				errs = append(errs, where+": base tables are loaded by importers and cannot declare sql or tables")
			}
			if len(a.Dependencies) > 0 {
				errs = append(errs, where+": base tables cannot depend on other artifacts")
			}
		case artifact.View, artifact.Summary:
			if strings.TrimSpace(a.Recipe.SQL) == "" {
				errs = append(errs, where+": sql is required")
			}
			for _, table := range a.Recipe.Tables {
				if !slices.Contains(a.Dependencies, table) {
					errs = append(errs, fmt.Sprintf("%s: table '%s' is not among its dependencies", where, table))
				}
			}
		}

		if a.Kind != artifact.Summary && (len(a.Recipe.PrimaryKey) > 0 || len(a.Recipe.Indexes) > 0) {
			errs = append(errs, where+": only summaries can declare primary_key or index blocks")
		}
		for i, idx := range a.Recipe.Indexes {
			if len(idx.Columns) == 0 {
				errs = append(errs, fmt.Sprintf("%s: index #%d has no columns", where, i+1))
			}
		}
		if !a.Enabled {
			logger.Debug("Artifact is disabled and will be ignored by graph operations.", "name", a.Name)
		}
	}

	if len(errs) > 0 {
		return errors.Newf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
