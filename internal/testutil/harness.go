// Package testutil holds helpers shared by package tests: temporary
// manifest trees, throwaway SQLite warehouses and a thread-safe log buffer.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// WriteFiles writes files, keyed by slash-separated relative path, under a
// fresh temporary directory and returns that directory.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// SQLiteDSN returns the path of a database file that is removed with the test.
func SQLiteDSN(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "warehouse.db")
}

// Exec runs statements against the SQLite database at dsn, for seeding raw
// tables the way an importer would.
func Exec(t *testing.T, dsn string, stmts ...string) {
	t.Helper()

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range stmts {
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err, "seeding statement: %s", stmt)
	}
}

// OpenDB opens the SQLite database at dsn for the duration of the test.
func OpenDB(t *testing.T, dsn string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Query returns the rows of a single-column query as strings.
func Query(t *testing.T, db *sql.DB, query string, args ...any) []string {
	t.Helper()

	rows, err := db.QueryContext(context.Background(), query, args...)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		require.NoError(t, rows.Scan(&v))
		out = append(out, v.String)
	}
	require.NoError(t, rows.Err())
	return out
}

// RawTables is a small slice of the valuation office data used across tests.
var RawTables = []string{
	`CREATE TABLE vao_list (uarn INTEGER, pc TEXT, value REAL)`,
	`INSERT INTO vao_list VALUES (1, 'AA1 1AA', 100), (2, 'AA1 1AA', 250), (3, 'BB2 2BB', 75)`,
	`CREATE TABLE postcode (pc TEXT, la_code TEXT)`,
	`INSERT INTO postcode VALUES ('AA1 1AA', 'E01'), ('BB2 2BB', 'E02')`,
}
