package config

import (
	"context"
)

// Loader is the interface for a format-specific manifest loader.
type Loader interface {
	// Load reads every manifest found under paths and translates it into
	// the format-agnostic model. Definitions keep the order in which they
	// were read.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
