package executor

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vk/munge/internal/artifact"
)

// ErrArtifactBuild is matched by every ArtifactBuildError.
var ErrArtifactBuild = errors.New("artifact build failed")

// ArtifactBuildError wraps a warehouse failure with the artifact it hit.
type ArtifactBuildError struct {
	Name string
	Kind artifact.Kind
	Err  error
}

func (e *ArtifactBuildError) Error() string {
	return fmt.Sprintf("building %s %s: %v", e.Kind, e.Name, e.Err)
}

func (e *ArtifactBuildError) Unwrap() error { return e.Err }

func (e *ArtifactBuildError) Is(target error) bool { return target == ErrArtifactBuild }
