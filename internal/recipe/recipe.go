// Package recipe renders the SQL template of an artifact into an executable
// statement.
//
// Templates use text/template with the sprig function library and three
// additions:
//
//	{{ t 1 }}        the first entry of the recipe's tables, resolved
//	{{ ref "name" }} any artifact, resolved
//	{{ .Name }}      the artifact being built
//
// Resolution is delegated to the caller so the same recipe can be rendered
// against staging objects during a build and production objects at swap time.
package recipe

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/vk/munge/internal/artifact"
)

// Resolver maps an artifact name to the SQL identifier the statement should
// reference.
type Resolver func(name string) (string, error)

type data struct {
	Name        string
	Kind        string
	Tables      []string
	Description string
}

// Render executes the recipe template of a against resolve.
func Render(a *artifact.Artifact, resolve Resolver) (string, error) {
	funcs := sprig.TxtFuncMap()
	funcs["t"] = func(i int) (string, error) {
		if i < 1 || i > len(a.Recipe.Tables) {
			return "", errors.Newf("table index %d out of range: %s declares %d tables", i, a.Name, len(a.Recipe.Tables))
		}
		return resolve(a.Recipe.Tables[i-1])
	}
	funcs["ref"] = func(name string) (string, error) {
		return resolve(name)
	}

	tmpl, err := template.New(a.Name).Funcs(funcs).Option("missingkey=error").Parse(a.Recipe.SQL)
	if err != nil {
		return "", errors.Wrapf(err, "parsing sql of %s", a.Name)
	}

	var b strings.Builder
	err = tmpl.Execute(&b, data{
		Name:        a.Name,
		Kind:        a.Kind.String(),
		Tables:      a.Recipe.Tables,
		Description: a.Description,
	})
	if err != nil {
		return "", errors.Wrapf(err, "rendering sql of %s", a.Name)
	}
	return Trim(b.String()), nil
}

// Trim strips surrounding whitespace and trailing semicolons so a statement
// can be embedded in CREATE VIEW or CREATE TABLE ... AS.
func Trim(sql string) string {
	return strings.TrimRight(strings.TrimSpace(sql), "; \t\r\n")
}
