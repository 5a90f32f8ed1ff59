package registry

import (
	"slices"

	"github.com/vk/munge/internal/artifact"
)

// Predicate selects artifacts for Filter.
type Predicate func(a *artifact.Artifact) bool

// Enabled keeps artifacts that are not disabled.
func Enabled() Predicate {
	return func(a *artifact.Artifact) bool { return a.Enabled }
}

// InStages keeps artifacts whose stage is one of stages. With no stages it
// keeps everything.
func InStages(stages ...string) Predicate {
	return func(a *artifact.Artifact) bool {
		return len(stages) == 0 || slices.Contains(stages, a.Stage)
	}
}

// Kinds keeps artifacts of the given kinds.
func Kinds(kinds ...artifact.Kind) Predicate {
	return func(a *artifact.Artifact) bool { return slices.Contains(kinds, a.Kind) }
}

// Filter returns a new registry holding the artifacts accepted by every
// predicate, in the original registration order. The artifacts themselves
// are shared, not copied.
func (r *Registry) Filter(preds ...Predicate) *Registry {
	out := New()
	for _, name := range r.order {
		a := r.artifacts[name]
		keep := true
		for _, p := range preds {
			if !p(a) {
				keep = false
				break
			}
		}
		if keep {
			out.artifacts[name] = a
			out.order = append(out.order, name)
		}
	}
	return out
}
