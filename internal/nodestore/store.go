// Package nodestore defines the interface for storing and retrieving the
// mutable build state of artifacts during a build pass.
//
// The store keeps execution state (status, rows loaded, duration, error)
// apart from the immutable dependency graph held by package dag. It is:
//  1. Created once per build pass.
//  2. Initialized with every artifact of the pass in Pending status.
//  3. Mutated by the build driver as artifacts move through their states.
//  4. Read concurrently by the status endpoint of the health server.
//
// Artifacts follow this lifecycle:
//
//	Pending → Running → Completed OR Failed
//	Pending → Skipped (base tables, or a pass aborted before reaching it)
package nodestore

import (
	"context"
	"time"
)

// Status is the build state of one artifact within a pass.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText lets Status render as its name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is what a completed artifact produced.
type Result struct {
	Rows     int64
	Duration time.Duration
}

// Record is a point-in-time copy of one artifact's state.
type Record struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Rows     int64         `json:"rows,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Store is the interface for managing the mutable build state of artifacts.
//
// Implementations MUST be safe for concurrent use: the build driver writes
// while the status endpoint reads.
type Store interface {
	// Init registers the artifacts of a pass, in build order, as Pending.
	Init(ctx context.Context, names []string) error

	// SetStatus updates the status of an artifact.
	SetStatus(ctx context.Context, name string, status Status) error

	// GetStatus returns StatusPending for artifacts with no status yet.
	GetStatus(ctx context.Context, name string) (Status, error)

	// SetResult records what a completed artifact produced.
	SetResult(ctx context.Context, name string, result Result) error

	// GetResult returns the zero Result if none was recorded.
	GetResult(ctx context.Context, name string) (Result, error)

	// SetError records why an artifact failed.
	SetError(ctx context.Context, name string, buildErr error) error

	// GetError returns nil if the artifact did not fail.
	GetError(ctx context.Context, name string) (error, error)

	// Snapshot returns every initialized artifact in build order.
	Snapshot(ctx context.Context) ([]Record, error)
}
