// Package inmemorystore provides a thread-safe, in-memory implementation
// of the nodestore.Store interface. State lives for one build pass and is
// not persisted.
package inmemorystore
