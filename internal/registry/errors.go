package registry

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownArtifact is matched by every UnknownArtifactError.
	ErrUnknownArtifact = errors.New("unknown artifact")
	// ErrDuplicateArtifact is matched by every DuplicateArtifactError.
	ErrDuplicateArtifact = errors.New("duplicate artifact")
)

// UnknownArtifactError reports a name that is neither registered nor
// referenced as a dependency.
type UnknownArtifactError struct {
	Name string
}

func (e *UnknownArtifactError) Error() string {
	return "unknown artifact: " + e.Name
}

func (e *UnknownArtifactError) Unwrap() error { return ErrUnknownArtifact }

// NewUnknownArtifactError returns an UnknownArtifactError carrying an
// operator hint.
func NewUnknownArtifactError(name string) error {
	return errors.WithHint(&UnknownArtifactError{Name: name},
		"check the spelling, or declare it with a table, view or summary block")
}

// DuplicateArtifactError reports two conflicting definitions for one name.
type DuplicateArtifactError struct {
	Name     string
	Existing string
	Incoming string
}

func (e *DuplicateArtifactError) Error() string {
	msg := "duplicate artifact: " + e.Name
	if e.Existing != "" || e.Incoming != "" {
		msg += " (first declared at " + orUnknown(e.Existing) + ", again at " + orUnknown(e.Incoming) + ")"
	}
	return msg
}

func (e *DuplicateArtifactError) Unwrap() error { return ErrDuplicateArtifact }

func orUnknown(s string) string {
	if s == "" {
		return "<unknown>"
	}
	return s
}
