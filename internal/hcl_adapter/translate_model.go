// This file contains the logic for translating HCL schema structs into the
// format-agnostic configuration model defined in the config package.

package hcl_adapter

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/vk/munge/internal/config"
	"github.com/vk/munge/internal/ctxlog"
)

const (
	kindBaseTable = "base_table"
	kindView      = "view"
	kindSummary   = "summary"
)

// blockType maps a config kind back to the block that declares it.
func blockType(kind string) string {
	if kind == kindBaseTable {
		return "table"
	}
	return kind
}

// translateFile converts every block of one file, in declaration order.
func (l *Loader) translateFile(ctx context.Context, f parsedFile, root *fileRoot) ([]*config.ArtifactDefinition, error) {
	logger := ctxlog.FromContext(ctx).With("file", f.path)
	pos := blockPositions(f.file)
	dir := filepath.Dir(f.path)

	var defs []*config.ArtifactDefinition
	for _, t := range root.Tables {
		defs = append(defs, &config.ArtifactDefinition{
			Kind:        kindBaseTable,
			Name:        t.Name,
			Importer:    t.Importer,
			Description: t.Description,
			Enabled:     t.Enabled,
			Stage:       t.Stage,
			Source:      sourceOf(pos["table."+t.Name]),
		})
	}
	for _, v := range root.Views {
		sql, err := readSQL(dir, "view", v.Name, v.SQL, v.SQLFile)
		if err != nil {
			return nil, err
		}
		defs = append(defs, &config.ArtifactDefinition{
			Kind:        kindView,
			Name:        v.Name,
			SQL:         sql,
			Tables:      v.Tables,
			DependsOn:   v.DependsOn,
			Description: v.Description,
			Enabled:     v.Enabled,
			Stage:       v.Stage,
			Source:      sourceOf(pos["view."+v.Name]),
		})
	}
	for _, s := range root.Summaries {
		sql, err := readSQL(dir, "summary", s.Name, s.SQL, s.SQLFile)
		if err != nil {
			return nil, err
		}
		def := &config.ArtifactDefinition{
			Kind:        kindSummary,
			Name:        s.Name,
			SQL:         sql,
			Tables:      s.Tables,
			DependsOn:   s.DependsOn,
			PrimaryKey:  s.PrimaryKey,
			Description: s.Description,
			Enabled:     s.Enabled,
			Stage:       s.Stage,
			Source:      sourceOf(pos["summary."+s.Name]),
		}
		for _, idx := range s.Indexes {
			def.Indexes = append(def.Indexes, &config.IndexDefinition{Columns: idx.Columns, Unique: idx.Unique})
		}
		defs = append(defs, def)
	}

	sortByPosition(defs, pos)
	logger.Debug("Translated HCL blocks.", "tables", len(root.Tables), "views", len(root.Views), "summaries", len(root.Summaries))
	return defs, nil
}

// readSQL returns the inline sql or the contents of sql_file, resolved
// relative to the manifest. Exactly one must be set.
func readSQL(dir, kind, name, inline, file string) (string, error) {
	switch {
	case inline != "" && file != "":
		return "", errors.Newf("%s %q: set either sql or sql_file, not both", kind, name)
	case file != "":
		path := file
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrapf(err, "%s %q: reading sql_file", kind, name)
		}
		return string(b), nil
	case inline == "":
		return "", errors.Newf("%s %q: one of sql or sql_file is required", kind, name)
	default:
		return inline, nil
	}
}
