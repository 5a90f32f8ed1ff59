package inmemorystore

import (
	"context"
	"sync"

	"github.com/vk/munge/internal/nodestore"
)

// Store is an in-memory implementation of nodestore.Store. Per-artifact
// state lives in sync.Maps; only the build order needs a lock.
type Store struct {
	states  sync.Map // Key: artifact name, Value: nodestore.Status
	results sync.Map // Key: artifact name, Value: nodestore.Result
	errors  sync.Map // Key: artifact name, Value: error

	mu    sync.RWMutex
	order []string
}

// New creates a new, empty in-memory state store.
func New() *Store {
	return &Store{}
}

// Init registers names in order and marks them pending. It resets state
// left by a previous pass.
func (s *Store) Init(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states.Clear()
	s.results.Clear()
	s.errors.Clear()
	s.order = append([]string(nil), names...)
	for _, name := range names {
		s.states.Store(name, nodestore.StatusPending)
	}
	return nil
}

// SetStatus updates the status of an artifact.
func (s *Store) SetStatus(ctx context.Context, name string, status nodestore.Status) error {
	s.states.Store(name, status)
	return nil
}

// GetStatus returns the status of an artifact, StatusPending if unset.
func (s *Store) GetStatus(ctx context.Context, name string) (nodestore.Status, error) {
	status, ok := s.states.Load(name)
	if !ok {
		return nodestore.StatusPending, nil
	}
	return status.(nodestore.Status), nil
}

// SetResult records the output of a completed artifact.
func (s *Store) SetResult(ctx context.Context, name string, result nodestore.Result) error {
	s.results.Store(name, result)
	return nil
}

// GetResult returns the recorded result, or the zero Result.
func (s *Store) GetResult(ctx context.Context, name string) (nodestore.Result, error) {
	result, ok := s.results.Load(name)
	if !ok {
		return nodestore.Result{}, nil
	}
	return result.(nodestore.Result), nil
}

// SetError records the failure of an artifact.
func (s *Store) SetError(ctx context.Context, name string, buildErr error) error {
	s.errors.Store(name, buildErr)
	return nil
}

// GetError retrieves the recorded error of a failed artifact.
func (s *Store) GetError(ctx context.Context, name string) (error, error) {
	err, ok := s.errors.Load(name)
	if !ok {
		return nil, nil
	}
	return err.(error), nil
}

// Snapshot copies the state of every initialized artifact in build order.
func (s *Store) Snapshot(ctx context.Context) ([]nodestore.Record, error) {
	s.mu.RLock()
	order := append([]string(nil), s.order...)
	s.mu.RUnlock()

	out := make([]nodestore.Record, 0, len(order))
	for _, name := range order {
		status, _ := s.GetStatus(ctx, name)
		result, _ := s.GetResult(ctx, name)
		rec := nodestore.Record{Name: name, Status: status, Rows: result.Rows, Duration: result.Duration}
		if err, _ := s.GetError(ctx, name); err != nil {
			rec.Error = err.Error()
		}
		out = append(out, rec)
	}
	return out, nil
}

var _ nodestore.Store = (*Store)(nil)
