package registry

import (
	"github.com/cockroachdb/errors"
	"github.com/vk/munge/internal/artifact"
)

// Registry holds all artifact definitions for a single application instance.
// It is not safe for concurrent mutation; it is built once and then read.
type Registry struct {
	artifacts map[string]*artifact.Artifact
	order     []string
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		artifacts: make(map[string]*artifact.Artifact),
	}
}

// Register adds a to the registry. Registering an equivalent definition
// twice is a no-op; a conflicting one fails with DuplicateArtifactError.
func (r *Registry) Register(a *artifact.Artifact) error {
	if a == nil {
		return errors.New("cannot register a nil artifact")
	}
	if a.Name == "" {
		return errors.Newf("artifact declared at %s has an empty name", orUnknown(a.Source))
	}
	// Stage is defaulted before comparing so an omitted stage equals "main".
	if a.Stage == "" {
		a.Stage = artifact.DefaultStage
	}
	if existing, ok := r.artifacts[a.Name]; ok {
		if existing.Equivalent(a) {
			return nil
		}
		return &DuplicateArtifactError{Name: a.Name, Existing: existing.Source, Incoming: a.Source}
	}
	r.artifacts[a.Name] = a
	r.order = append(r.order, a.Name)
	return nil
}

// MustRegister is Register for statically known definitions; it panics on error.
func (r *Registry) MustRegister(artifacts ...*artifact.Artifact) *Registry {
	for _, a := range artifacts {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns the artifact registered under name.
func (r *Registry) Get(name string) (*artifact.Artifact, error) {
	if a, ok := r.artifacts[name]; ok {
		return a, nil
	}
	return nil, NewUnknownArtifactError(name)
}

// Lookup is Get without the error.
func (r *Registry) Lookup(name string) (*artifact.Artifact, bool) {
	a, ok := r.artifacts[name]
	return a, ok
}

// All returns every artifact in registration order.
func (r *Registry) All() []*artifact.Artifact {
	out := make([]*artifact.Artifact, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.artifacts[name])
	}
	return out
}

// Names returns every registered name in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered artifacts.
func (r *Registry) Len() int {
	return len(r.order)
}
