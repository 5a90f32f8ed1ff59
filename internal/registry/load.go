package registry

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vk/munge/internal/artifact"
	"github.com/vk/munge/internal/config"
	"github.com/vk/munge/internal/ctxlog"
)

// FromModel registers every definition of a loaded config model, in order.
func FromModel(ctx context.Context, model *config.Model) (*Registry, error) {
	logger := ctxlog.FromContext(ctx)
	reg := New()
	if model == nil {
		return reg, nil
	}

	for _, def := range model.Artifacts {
		a, err := fromDefinition(def)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(a); err != nil {
			return nil, err
		}
		logger.Debug("Registered artifact.", "name", a.Name, "kind", a.Kind, "deps", a.Dependencies, "source", a.Source)
	}

	logger.Debug("Registry populated from config model.", "count", reg.Len())
	return reg, nil
}

func fromDefinition(def *config.ArtifactDefinition) (*artifact.Artifact, error) {
	kind, err := artifact.ParseKind(def.Kind)
	if err != nil {
		return nil, errors.Wrapf(err, "artifact %q at %s", def.Name, orUnknown(def.Source))
	}

	enabled := true
	if def.Enabled != nil {
		enabled = *def.Enabled
	}

	indexes := make([]artifact.IndexSpec, 0, len(def.Indexes))
	for _, idx := range def.Indexes {
		indexes = append(indexes, artifact.IndexSpec{
			Columns: append([]string(nil), idx.Columns...),
			Unique:  idx.Unique,
		})
	}

	return &artifact.Artifact{
		Name:         def.Name,
		Kind:         kind,
		Dependencies: artifact.MergeDependencies(def.Tables, def.DependsOn),
		Recipe: artifact.Recipe{
			SQL:        def.SQL,
			Tables:     append([]string(nil), def.Tables...),
			PrimaryKey: append([]string(nil), def.PrimaryKey...),
			Indexes:    indexes,
		},
		Enabled:     enabled,
		Stage:       def.Stage,
		Description: def.Description,
		Importer:    def.Importer,
		Source:      def.Source,
	}, nil
}
