package cli_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/munge/internal/cli"
	"github.com/vk/munge/internal/registry"
	"github.com/vk/munge/internal/testutil"
)

const manifest = `
table "vao_list" { importer = "vao" }
table "postcode" {}

summary "vao_base" {
  tables      = ["vao_list", "postcode"]
  primary_key = ["uarn"]
  sql         = "SELECT l.uarn, l.pc, p.la_code, l.value FROM {{ t 1 }} l JOIN {{ t 2 }} p ON p.pc = l.pc"
}

view "vao_by_la" {
  tables = ["vao_base"]
  sql    = "SELECT la_code, SUM(value) AS total FROM {{ t 1 }} GROUP BY la_code;"
}
`

type fixture struct {
	manifest string
	dsn      string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := testutil.WriteFiles(t, map[string]string{"munge.hcl": manifest})
	dsn := testutil.SQLiteDSN(t)
	testutil.Exec(t, dsn, testutil.RawTables...)
	return fixture{manifest: root, dsn: dsn}
}

// run executes munge with the fixture's manifest and warehouse.
func (f fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	logs := &testutil.SafeBuffer{}
	all := append([]string{"--manifest", f.manifest, "--dsn", f.dsn, "--log-level", "debug"}, args...)
	err := cli.Execute(context.Background(), out, logs, all)
	return out.String(), err
}

func TestOrderAndUpdates(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "order")
	require.NoError(t, err)
	assert.Equal(t, "vao_list\npostcode\nvao_base\nvao_by_la\n", out)

	out, err = f.run(t, "order", "vao_by_la", "postcode")
	require.NoError(t, err)
	assert.Equal(t, "postcode\nvao_by_la\n", out)

	out, err = f.run(t, "updates", "postcode")
	require.NoError(t, err)
	assert.Equal(t, "vao_base\nvao_by_la\n", out)

	out, err = f.run(t, "updates", "--include-self", "vao_base")
	require.NoError(t, err)
	assert.Equal(t, "vao_base\nvao_by_la\n", out)

	_, err = f.run(t, "updates", "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrUnknownArtifact))
	assert.Contains(t, errors.FlattenHints(err), "check the spelling")
}

func TestDepsAndSQL(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "deps", "vao_by_la")
	require.NoError(t, err)
	assert.Equal(t, `vao_by_la (view, depth 2)
  direct:  vao_base
  forward: vao_list, postcode, vao_base
  reverse: 
`, out)

	out, err = f.run(t, "deps", "-o", "json", "postcode")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"postcode","kind":"base_table","depth":0,"direct":[],"forward":[],"reverse":["vao_base","vao_by_la"]}]`, out)

	out, err = f.run(t, "sql", "vao_by_la")
	require.NoError(t, err)
	assert.Equal(t, "SELECT la_code, SUM(value) AS total FROM \"vao_base\" GROUP BY la_code;\n", out)

	out, err = f.run(t, "sql", "postcode")
	require.NoError(t, err)
	assert.Equal(t, "-- postcode is loaded by an importer\n", out)
}

func TestBuildSwapCatalog(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "build", "--dry-run", "--changed", "postcode")
	require.NoError(t, err)
	assert.Equal(t, "vao_base\nvao_by_la\n", out)

	out, err = f.run(t, "build", "--all")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^vao_list\s+skipped$`, out)
	assert.Regexp(t, `(?m)^vao_base\s+completed\s+\S+\s+3 rows$`, out)
	assert.Regexp(t, `(?m)^vao_by_la\s+completed\s+\S+$`, out)

	out, err = f.run(t, "swap")
	require.NoError(t, err)
	assert.Equal(t, "vao_base\nvao_by_la\n", out)

	out, err = f.run(t, "catalog")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^NAME\s+KIND\s+ROWS\s+BUILD\s+UPDATED$`, out)
	assert.Regexp(t, `(?m)^vao_base\s+table\s+3\s`, out)
	assert.Regexp(t, `(?m)^vao_by_la\s+view\s+0\s`, out)

	out, err = f.run(t, "clear-staging")
	require.NoError(t, err)
	assert.Empty(t, out)

	db := testutil.OpenDB(t, f.dsn)
	assert.Equal(t, []string{"E01:350", "E02:75"},
		testutil.Query(t, db, `SELECT la_code || ':' || CAST(total AS INTEGER) FROM vao_by_la ORDER BY la_code`))
}

func TestBuildWithLimitAndPrefix(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "build", "--limit", "1", "--staging-prefix", "stage_", "vao_base")
	require.NoError(t, err)

	db := testutil.OpenDB(t, f.dsn)
	assert.Equal(t, []string{"1"}, testutil.Query(t, db, `SELECT COUNT(*) FROM stage_vao_base`))

	out, err := f.run(t, "clear-staging", "--staging-prefix", "stage_")
	require.NoError(t, err)
	assert.Equal(t, "stage_vao_base\n", out)
}

func TestEnvironmentAndConfigFile(t *testing.T) {
	f := newFixture(t)

	t.Setenv("MUNGE_MANIFEST", f.manifest)
	t.Setenv("MUNGE_STAGING_PREFIX", "env_")
	out := &bytes.Buffer{}
	require.NoError(t, cli.Execute(context.Background(), out, &testutil.SafeBuffer{}, []string{"--dsn", f.dsn, "build", "vao_base"}))

	db := testutil.OpenDB(t, f.dsn)
	assert.Equal(t, []string{"3"}, testutil.Query(t, db, `SELECT COUNT(*) FROM env_vao_base`))

	cfgDir := testutil.WriteFiles(t, map[string]string{
		"munge.yaml": "dsn: " + f.dsn + "\nstaging-prefix: file_\nlog-format: json\n",
	})
	out.Reset()
	err := cli.Execute(context.Background(), out, &testutil.SafeBuffer{},
		[]string{"--config", filepath.Join(cfgDir, "munge.yaml"), "build", "vao_base"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, testutil.Query(t, db, `SELECT COUNT(*) FROM env_vao_base`),
		"environment takes precedence over the config file")
}

func TestUsageErrors(t *testing.T) {
	f := newFixture(t)

	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"unknown flag", []string{"order", "--nope"}, "unknown flag: --nope"},
		{"missing args", []string{"updates"}, "requires at least 1 arg(s)"},
		{"too many args", []string{"deps", "a", "b"}, "accepts at most 1 arg(s)"},
		{"bad log level", []string{"order", "--log-level", "trace"}, "invalid log-level"},
		{"bad output", []string{"deps", "-o", "yaml"}, "invalid output"},
		{"missing config", []string{"order", "--config", "/nonexistent/munge.yaml"}, "reading config file"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.run(t, tc.args...)
			require.Error(t, err)
			var exitErr *cli.ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}

	err := cli.Execute(context.Background(), &bytes.Buffer{}, &testutil.SafeBuffer{}, []string{"order"})
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Contains(t, exitErr.Message, "manifest path is required")
	assert.Contains(t, errors.FlattenHints(err), "--manifest")
}

func TestBuildNothingSelected(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, "build")
	require.Error(t, err)
	assert.ErrorContains(t, err, "nothing to build")
	assert.Contains(t, errors.FlattenHints(err), "--all")
}
