package dag

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrCyclicDependency is matched by every CyclicDependencyError.
var ErrCyclicDependency = errors.New("cyclic dependency")

// CyclicDependencyError names one dependency cycle. The first name is
// repeated at the end, so a self-dependency on A reads [A, A].
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return ErrCyclicDependency.Error()
	}
	return ErrCyclicDependency.Error() + ": " + strings.Join(e.Cycle, " -> ")
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

func cycleError(path []string) error {
	return errors.WithHint(&CyclicDependencyError{Cycle: path},
		"remove one of the listed references from its sql tables or depends_on")
}
