package config

// Model is the unified, format-agnostic representation of all loaded
// manifests.
type Model struct {
	Artifacts []*ArtifactDefinition
}

// ArtifactDefinition is the format-agnostic representation of a `table`,
// `view` or `summary` block.
type ArtifactDefinition struct {
	Kind        string
	Name        string
	Description string
	Importer    string

	SQL        string
	Tables     []string
	DependsOn  []string
	PrimaryKey []string
	Indexes    []*IndexDefinition

	// Enabled is nil when the manifest does not say.
	Enabled *bool
	Stage   string

	// Source is "file:line,col" of the declaring block.
	Source string
}

// IndexDefinition is the format-agnostic representation of an `index` block.
type IndexDefinition struct {
	Columns []string
	Unique  bool
}
