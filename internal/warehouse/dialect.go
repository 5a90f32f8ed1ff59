package warehouse

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// dialect hides the SQL differences between supported databases.
type dialect interface {
	name() string
	// prepare configures a freshly opened pool.
	prepare(ctx context.Context, db *sql.DB) error
	// objectsQuery lists (name, type) for every table and view in scope.
	objectsQuery() string
	// dropStaging removes a disposable staging object.
	dropStaging(kind ObjectKind, quoted string) string
	// promoteIndex renames an index built on a staging table that now
	// carries its production name.
	promoteIndex(stagingIdx, prodIdx, prodTable string, idx indexDef) []string
	// promoteView publishes a staging view. prodSQL is the recipe rendered
	// against production names.
	promoteView(staging, prod, prodSQL string) []string
	// dependentViews maps each table or view to the views that would block
	// dropping it. A nil map means the database never blocks.
	dependentViews(ctx context.Context, db *sql.DB) (map[string][]string, error)
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case DriverPostgres, "postgresql", "pq":
		return postgres{}, nil
	case DriverSQLite, "sqlite3":
		return sqlite{}, nil
	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported warehouse driver %q", driver),
			"use one of: postgres, sqlite",
		)
	}
}

// QuoteIdent double-quotes an identifier for both supported dialects.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type postgres struct{}

func (postgres) name() string { return DriverPostgres }

func (postgres) prepare(ctx context.Context, db *sql.DB) error {
	return db.PingContext(ctx)
}

func (postgres) objectsQuery() string {
	return `SELECT table_name, table_type FROM information_schema.tables WHERE table_schema = current_schema()`
}

func (postgres) dropStaging(kind ObjectKind, quoted string) string {
	return "DROP " + kind.keyword() + " IF EXISTS " + quoted + " CASCADE"
}

func (postgres) promoteIndex(stagingIdx, prodIdx, _ string, _ indexDef) []string {
	return []string{"ALTER INDEX IF EXISTS " + QuoteIdent(stagingIdx) + " RENAME TO " + QuoteIdent(prodIdx)}
}

func (postgres) promoteView(staging, prod, _ string) []string {
	return []string{"ALTER VIEW " + QuoteIdent(staging) + " RENAME TO " + QuoteIdent(prod)}
}

const postgresDependentViews = `
SELECT DISTINCT src.relname, v.relname
FROM pg_depend d
JOIN pg_rewrite r ON r.oid = d.objid
JOIN pg_class v ON v.oid = r.ev_class
JOIN pg_class src ON src.oid = d.refobjid
JOIN pg_namespace n ON n.oid = src.relnamespace
WHERE d.classid = 'pg_rewrite'::regclass
  AND d.refclassid = 'pg_class'::regclass
  AND v.relkind = 'v'
  AND v.oid <> src.oid
  AND n.nspname = current_schema()`

func (postgres) dependentViews(ctx context.Context, db *sql.DB) (map[string][]string, error) {
	rows, err := db.QueryContext(ctx, postgresDependentViews)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var obj, view string
		if err := rows.Scan(&obj, &view); err != nil {
			return nil, err
		}
		out[obj] = append(out[obj], view)
	}
	return out, rows.Err()
}

type sqlite struct{}

func (sqlite) name() string { return DriverSQLite }

func (sqlite) prepare(ctx context.Context, db *sql.DB) error {
	// A single connection keeps pragmas and DDL visibility consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
		// Renames must not rewrite or validate views that still point at
		// staging names; views are recreated at swap time instead.
		"PRAGMA legacy_alter_table = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "applying %q", pragma)
		}
	}
	return nil
}

func (sqlite) objectsQuery() string {
	return `SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'`
}

func (sqlite) dropStaging(kind ObjectKind, quoted string) string {
	return "DROP " + kind.keyword() + " IF EXISTS " + quoted
}

func (sqlite) promoteIndex(stagingIdx, prodIdx, prodTable string, idx indexDef) []string {
	return []string{
		"DROP INDEX IF EXISTS " + QuoteIdent(stagingIdx),
		createIndexSQL(prodIdx, prodTable, idx),
	}
}

// SQLite resolves view bodies lazily, so dropping a table never fails on a
// view that reads it.
func (sqlite) dependentViews(context.Context, *sql.DB) (map[string][]string, error) {
	return nil, nil
}

func (sqlite) promoteView(staging, prod, prodSQL string) []string {
	return []string{
		"DROP VIEW IF EXISTS " + QuoteIdent(staging),
		"CREATE VIEW " + QuoteIdent(prod) + " AS " + prodSQL,
	}
}
