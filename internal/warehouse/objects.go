package warehouse

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// ObjectKind distinguishes tables from views in the database catalog.
type ObjectKind int

const (
	ObjectTable ObjectKind = iota
	ObjectView
)

func (k ObjectKind) String() string {
	if k == ObjectView {
		return "view"
	}
	return "table"
}

func (k ObjectKind) keyword() string {
	if k == ObjectView {
		return "VIEW"
	}
	return "TABLE"
}

// Object is a table or view present in the database.
type Object struct {
	Name string
	Kind ObjectKind
}

// Objects returns every table and view visible to the warehouse.
func (w *Warehouse) Objects(ctx context.Context) (map[string]ObjectKind, error) {
	rows, err := w.db.QueryContext(ctx, w.dialect.objectsQuery())
	if err != nil {
		return nil, errors.Wrap(err, "listing warehouse objects")
	}
	defer rows.Close()

	out := make(map[string]ObjectKind)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, errors.Wrap(err, "scanning warehouse object")
		}
		kind := ObjectTable
		if strings.EqualFold(typ, "view") {
			kind = ObjectView
		}
		out[name] = kind
	}
	return out, errors.Wrap(rows.Err(), "listing warehouse objects")
}

// ListObjects returns the objects whose names start with prefix, sorted by
// name.
func (w *Warehouse) ListObjects(ctx context.Context, prefix string) ([]Object, error) {
	all, err := w.Objects(ctx)
	if err != nil {
		return nil, err
	}
	var out []Object
	for name, kind := range all {
		if strings.HasPrefix(name, prefix) {
			out = append(out, Object{Name: name, Kind: kind})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ObjectExists reports whether a table or view called name exists.
func (w *Warehouse) ObjectExists(ctx context.Context, name string) (bool, error) {
	all, err := w.Objects(ctx)
	if err != nil {
		return false, err
	}
	_, ok := all[name]
	return ok, nil
}
