package warehouse

import (
	"context"
	"database/sql"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/munge/internal/artifact"
	"github.com/vk/munge/internal/testutil"
)

var (
	vaoBase = &artifact.Artifact{
		Name:         "vao_base",
		Kind:         artifact.Summary,
		Dependencies: []string{"vao_list", "postcode"},
		Enabled:      true,
		Recipe: artifact.Recipe{
			SQL: `SELECT l.uarn, l.pc, p.la_code, l.value
FROM {{ t 1 }} l JOIN {{ t 2 }} p ON p.pc = l.pc;`,
			Tables:     []string{"vao_list", "postcode"},
			PrimaryKey: []string{"uarn"},
			Indexes:    []artifact.IndexSpec{{Columns: []string{"la_code"}}, {Columns: []string{"uarn"}, Unique: true}},
		},
	}
	vaoByLA = &artifact.Artifact{
		Name:         "vao_by_la",
		Kind:         artifact.View,
		Dependencies: []string{"vao_base"},
		Enabled:      true,
		Recipe: artifact.Recipe{
			SQL:    `SELECT la_code, SUM(value) AS total FROM {{ t 1 }} GROUP BY la_code`,
			Tables: []string{"vao_base"},
		},
	}
)

func openTest(t *testing.T, cfg Config) (*Warehouse, string) {
	t.Helper()
	dsn := testutil.SQLiteDSN(t)
	testutil.Exec(t, dsn, testutil.RawTables...)

	cfg.Driver = DriverSQLite
	cfg.DSN = dsn
	w, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, dsn
}

func indexNames(t *testing.T, w *Warehouse, table string) []string {
	return testutil.Query(t, w.DB(), `SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? ORDER BY name`, table)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Config{Driver: "oracle", DSN: "x"})
	assert.ErrorContains(t, err, `unsupported warehouse driver "oracle"`)

	_, err = Open(ctx, Config{Driver: DriverSQLite})
	assert.ErrorContains(t, err, "dsn is empty")

	_, err = Open(ctx, Config{Driver: DriverSQLite, DSN: testutil.SQLiteDSN(t), Limit: -1})
	assert.ErrorContains(t, err, "must not be negative")

	w, _ := openTest(t, Config{})
	assert.Equal(t, DriverSQLite, w.Driver())
	assert.Equal(t, "tmp_vao_base", w.StagingName("vao_base"))

	w, _ = openTest(t, Config{StagingPrefix: "stage_"})
	assert.Equal(t, "stage_vao_base", w.StagingName("vao_base"))
}

func TestBuildAndSwap(t *testing.T) {
	ctx := context.Background()
	w, _ := openTest(t, Config{})

	rows, err := w.MaterializeSummary(ctx, vaoBase)
	require.NoError(t, err)
	assert.EqualValues(t, 3, rows)
	assert.Equal(t, []string{"tmp_vao_base_idx_la_code", "tmp_vao_base_idx_uarn"}, indexNames(t, w, "tmp_vao_base"))

	rendered, err := w.RenderStaging(ctx, vaoByLA)
	require.NoError(t, err)
	assert.Contains(t, rendered, `"tmp_vao_base"`, "staging object must win over production")

	require.NoError(t, w.CreateView(ctx, vaoByLA))
	assert.Equal(t,
		[]string{"E01", "E02"},
		testutil.Query(t, w.DB(), `SELECT la_code FROM "tmp_vao_by_la" ORDER BY la_code`),
	)

	staged, err := w.Staged(ctx, []*artifact.Artifact{{Name: "vao_list", Kind: artifact.BaseTable}, vaoBase, vaoByLA})
	require.NoError(t, err)
	require.Len(t, staged, 2)

	require.NoError(t, w.Swap(ctx, staged))

	objects, err := w.Objects(ctx)
	require.NoError(t, err)
	assert.Equal(t, ObjectTable, objects["vao_base"])
	assert.Equal(t, ObjectView, objects["vao_by_la"])
	assert.NotContains(t, objects, "tmp_vao_base")
	assert.NotContains(t, objects, "tmp_vao_by_la")
	assert.Equal(t, []string{"vao_base_idx_la_code", "vao_base_idx_uarn"}, indexNames(t, w, "vao_base"))
	assert.Equal(t,
		[]string{"350", "75"},
		testutil.Query(t, w.DB(), `SELECT CAST(total AS INTEGER) FROM "vao_by_la" ORDER BY la_code`),
	)

	t.Run("second pass replaces production", func(t *testing.T) {
		_, err := w.DB().ExecContext(ctx, `INSERT INTO vao_list VALUES (4, 'BB2 2BB', 25)`)
		require.NoError(t, err)

		rendered, err := w.RenderStaging(ctx, vaoBase)
		require.NoError(t, err)
		assert.Contains(t, rendered, `"vao_list"`)

		rows, err := w.MaterializeSummary(ctx, vaoBase)
		require.NoError(t, err)
		assert.EqualValues(t, 4, rows)
		require.NoError(t, w.CreateView(ctx, vaoByLA))
		require.NoError(t, w.Swap(ctx, []*artifact.Artifact{vaoBase, vaoByLA}))

		assert.Equal(t,
			[]string{"350", "100"},
			testutil.Query(t, w.DB(), `SELECT CAST(total AS INTEGER) FROM "vao_by_la" ORDER BY la_code`),
		)
	})
}

func TestSwapRequiresStagedObjects(t *testing.T) {
	ctx := context.Background()
	w, _ := openTest(t, Config{})

	err := w.Swap(ctx, []*artifact.Artifact{vaoBase})
	assert.ErrorContains(t, err, "nothing staged for vao_base")

	assert.NoError(t, w.Swap(ctx, nil))
}

func TestLimit(t *testing.T) {
	w, _ := openTest(t, Config{Limit: 1})
	rows, err := w.MaterializeSummary(context.Background(), vaoBase)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)
}

func TestWrongKind(t *testing.T) {
	ctx := context.Background()
	w, _ := openTest(t, Config{})

	assert.ErrorContains(t, w.CreateView(ctx, vaoBase), "not a view")
	_, err := w.MaterializeSummary(ctx, vaoByLA)
	assert.ErrorContains(t, err, "not a summary")
}

func TestBrokenRecipe(t *testing.T) {
	ctx := context.Background()
	w, _ := openTest(t, Config{})

	bad := &artifact.Artifact{Name: "bad", Kind: artifact.Summary, Recipe: artifact.Recipe{SQL: "SELECT * FROM missing_table"}}
	_, err := w.MaterializeSummary(ctx, bad)
	assert.ErrorContains(t, err, "missing_table")

	exists, err := w.ObjectExists(ctx, "tmp_bad")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClearStaging(t *testing.T) {
	ctx := context.Background()
	w, _ := openTest(t, Config{})

	_, err := w.MaterializeSummary(ctx, vaoBase)
	require.NoError(t, err)
	require.NoError(t, w.CreateView(ctx, vaoByLA))

	dropped, err := w.ClearStaging(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tmp_vao_by_la", "tmp_vao_base"}, dropped)

	left, err := w.ListObjects(ctx, "tmp_")
	require.NoError(t, err)
	assert.Empty(t, left)

	raw, err := w.ListObjects(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []Object{{Name: "postcode", Kind: ObjectTable}, {Name: "vao_list", Kind: ObjectTable}}, raw)
}

func TestClearStagingKeepsDeclaredObjects(t *testing.T) {
	ctx := context.Background()
	w, _ := openTest(t, Config{})

	_, err := w.DB().ExecContext(ctx, `CREATE TABLE tmp_rates (code TEXT, rate REAL)`)
	require.NoError(t, err)
	_, err = w.MaterializeSummary(ctx, vaoBase)
	require.NoError(t, err)

	dropped, err := w.ClearStaging(ctx, "tmp_rates", "vao_base")
	require.NoError(t, err)
	assert.Equal(t, []string{"tmp_vao_base"}, dropped)

	left, err := w.ListObjects(ctx, "tmp_")
	require.NoError(t, err)
	assert.Equal(t, []Object{{Name: "tmp_rates", Kind: ObjectTable}}, left)
}

// viewGuard reports fixed dependents on top of the SQLite dialect.
type viewGuard struct {
	sqlite
	dependents map[string][]string
}

func (g viewGuard) dependentViews(context.Context, *sql.DB) (map[string][]string, error) {
	return g.dependents, nil
}

func TestSwapRejectsOutsideDependents(t *testing.T) {
	ctx := context.Background()
	w, _ := openTest(t, Config{})

	_, err := w.MaterializeSummary(ctx, vaoBase)
	require.NoError(t, err)
	require.NoError(t, w.CreateView(ctx, vaoByLA))

	w.dialect = viewGuard{dependents: map[string][]string{
		"vao_base":  {"vao_by_la", "report", "audit"},
		"vao_by_la": {"dashboard"},
	}}
	err = w.Swap(ctx, []*artifact.Artifact{vaoBase, vaoByLA})
	require.Error(t, err)
	assert.ErrorContains(t, err, "cannot swap vao_base: view audit, report depends on it")
	assert.Contains(t, errors.FlattenHints(err), "drop audit, report first")

	// Nothing was published.
	objects, err := w.Objects(ctx)
	require.NoError(t, err)
	assert.Contains(t, objects, "tmp_vao_base")
	assert.Contains(t, objects, "tmp_vao_by_la")
	assert.NotContains(t, objects, "vao_base")

	w.dialect = viewGuard{dependents: map[string][]string{"vao_base": {"vao_by_la"}}}
	require.NoError(t, w.Swap(ctx, []*artifact.Artifact{vaoBase, vaoByLA}))
}

func TestSwapKeepsOutsideViewsOnSQLite(t *testing.T) {
	ctx := context.Background()
	w, _ := openTest(t, Config{})

	_, err := w.MaterializeSummary(ctx, vaoBase)
	require.NoError(t, err)
	require.NoError(t, w.Swap(ctx, []*artifact.Artifact{vaoBase}))
	_, err = w.DB().ExecContext(ctx, `CREATE VIEW report AS SELECT COUNT(*) AS n FROM vao_base`)
	require.NoError(t, err)

	_, err = w.DB().ExecContext(ctx, `INSERT INTO vao_list VALUES (4, 'BB2 2BB', 25)`)
	require.NoError(t, err)
	_, err = w.MaterializeSummary(ctx, vaoBase)
	require.NoError(t, err)
	require.NoError(t, w.Swap(ctx, []*artifact.Artifact{vaoBase}))

	assert.Equal(t, []string{"4"}, testutil.Query(t, w.DB(), `SELECT n FROM report`))
}

func TestBlockingViews(t *testing.T) {
	dependents := map[string][]string{
		"a": {"b", "x"},
		"b": {"y", "y", "c"},
		"c": nil,
	}
	testCases := []struct {
		name      string
		names     []string
		wantObj   string
		wantViews []string
	}{
		{name: "none outside", names: []string{"a", "b", "x", "y"}},
		{name: "first in order wins", names: []string{"b", "a"}, wantObj: "b", wantViews: []string{"c", "y"}},
		{name: "only outside views", names: []string{"a", "b", "c"}, wantObj: "a", wantViews: []string{"x"}},
		{name: "unknown object", names: []string{"z"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obj, views := blockingViews(dependents, tc.names)
			assert.Equal(t, tc.wantObj, obj)
			assert.Equal(t, tc.wantViews, views)
		})
	}
	obj, views := blockingViews(nil, []string{"a"})
	assert.Empty(t, obj)
	assert.Nil(t, views)
}

func TestIndexesOf(t *testing.T) {
	got := indexesOf(vaoBase)
	assert.Equal(t, []indexDef{
		{Columns: []string{"uarn"}, Unique: true},
		{Columns: []string{"la_code"}},
	}, got)
	assert.Equal(t, `CREATE UNIQUE INDEX "t_idx_uarn" ON "t" ("uarn")`, createIndexSQL("t_idx_uarn", "t", got[0]))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}
