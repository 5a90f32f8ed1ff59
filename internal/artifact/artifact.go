package artifact

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// DefaultStage is the stage assigned to artifacts that do not declare one.
const DefaultStage = "main"

// Kind distinguishes how an artifact is produced.
type Kind int

const (
	// BaseTable is populated by an external importer. It is an immutable leaf.
	BaseTable Kind = iota
	// View is recreated on every build.
	View
	// Summary is a table fully recomputed and data-loaded on every build.
	Summary
)

var kindNames = map[Kind]string{
	BaseTable: "base_table",
	View:      "view",
	Summary:   "summary",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts the manifest spelling of a kind into a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return BaseTable, errors.WithHint(
		errors.Newf("unknown artifact kind %q", s),
		"kind must be one of base_table, view, summary",
	)
}

// IndexSpec describes one index built on a summary table after loading.
type IndexSpec struct {
	Columns []string
	Unique  bool
}

// Recipe is the payload handed to the warehouse. The graph never looks
// inside it.
type Recipe struct {
	// SQL is a text/template rendered against Tables before execution.
	SQL string
	// Tables are the positional inputs of SQL, addressed as {{ t 1 }}, {{ t 2 }}...
	Tables []string
	// PrimaryKey becomes a unique index on summary tables.
	PrimaryKey []string
	Indexes    []IndexSpec
}

// Artifact is a single registered warehouse object.
type Artifact struct {
	Name         string
	Kind         Kind
	Dependencies []string
	Recipe       Recipe
	Enabled      bool
	Stage        string
	Description  string
	// Importer names the external loader of a base table.
	Importer string
	// Source is the manifest location that declared the artifact.
	Source string
}

// Buildable reports whether the build driver has work to do for a.
func (a *Artifact) Buildable() bool {
	return a.Kind == View || a.Kind == Summary
}

// Equivalent reports whether two definitions describe the same artifact.
// Source locations are ignored.
func (a *Artifact) Equivalent(b *Artifact) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name &&
		a.Kind == b.Kind &&
		a.Enabled == b.Enabled &&
		a.Stage == b.Stage &&
		a.Description == b.Description &&
		a.Importer == b.Importer &&
		slices.Equal(a.Dependencies, b.Dependencies) &&
		a.Recipe.SQL == b.Recipe.SQL &&
		slices.Equal(a.Recipe.Tables, b.Recipe.Tables) &&
		slices.Equal(a.Recipe.PrimaryKey, b.Recipe.PrimaryKey) &&
		slices.EqualFunc(a.Recipe.Indexes, b.Recipe.Indexes, func(x, y IndexSpec) bool {
			return x.Unique == y.Unique && slices.Equal(x.Columns, y.Columns)
		})
}

// MergeDependencies returns the ordered, de-duplicated union of lists.
// The first occurrence of a name wins.
func MergeDependencies(lists ...[]string) []string {
	merged := slices.Concat(lists...)
	if len(merged) == 0 {
		return nil
	}
	return lo.Uniq(merged)
}
