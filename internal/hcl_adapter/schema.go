package hcl_adapter

// fileRoot is a struct used to decode all artifact blocks from any file.
// locals blocks are split off before decoding.
type fileRoot struct {
	Tables    []*tableBlock   `hcl:"table,block"`
	Views     []*viewBlock    `hcl:"view,block"`
	Summaries []*summaryBlock `hcl:"summary,block"`
}

// tableBlock declares a base table loaded by an external importer.
type tableBlock struct {
	Name        string `hcl:"name,label"`
	Importer    string `hcl:"importer,optional"`
	Description string `hcl:"description,optional"`
	Enabled     *bool  `hcl:"enabled,optional"`
	Stage       string `hcl:"stage,optional"`
}

// viewBlock declares a view recreated on every build.
type viewBlock struct {
	Name        string   `hcl:"name,label"`
	SQL         string   `hcl:"sql,optional"`
	SQLFile     string   `hcl:"sql_file,optional"`
	Tables      []string `hcl:"tables,optional"`
	DependsOn   []string `hcl:"depends_on,optional"`
	Description string   `hcl:"description,optional"`
	Enabled     *bool    `hcl:"enabled,optional"`
	Stage       string   `hcl:"stage,optional"`
}

// summaryBlock declares a table recomputed on every build.
type summaryBlock struct {
	Name        string        `hcl:"name,label"`
	SQL         string        `hcl:"sql,optional"`
	SQLFile     string        `hcl:"sql_file,optional"`
	Tables      []string      `hcl:"tables,optional"`
	DependsOn   []string      `hcl:"depends_on,optional"`
	PrimaryKey  []string      `hcl:"primary_key,optional"`
	Indexes     []*indexBlock `hcl:"index,block"`
	Description string        `hcl:"description,optional"`
	Enabled     *bool         `hcl:"enabled,optional"`
	Stage       string        `hcl:"stage,optional"`
}

type indexBlock struct {
	Columns []string `hcl:"columns"`
	Unique  bool     `hcl:"unique,optional"`
}
