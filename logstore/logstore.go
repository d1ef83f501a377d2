// Package logstore defines the opaque durable log contract that
// raftlog.Log is built on, plus an in-memory reference implementation.
//
// spec.md places on-disk log internals out of scope; LogStore is consumed as
// an external interface. Memory exists so the rest of the module, and its
// tests, have a concrete implementation to run against.
package logstore

import "context"

// LogStore is an append-only, 1-indexed byte-entry log with a persisted
// commit watermark and an opaque metadata side-table.
type LogStore interface {
	// Append stores command as a new entry and returns its index.
	Append(command []byte) (uint64, error)
	// Commit advances the commit watermark to index. Rejects index values
	// below the current watermark.
	Commit(index uint64) error
	// Committed returns the current commit watermark (0 if nothing is
	// committed).
	Committed() uint64
	// Len returns the index of the last stored entry (0 if empty).
	Len() uint64
	// Get fetches the raw command bytes stored at index.
	Get(index uint64) ([]byte, bool)
	// Scan streams entries with index in [start, end] (end=0 means open
	// ended) to yield, in ascending order. Scanning stops when yield
	// returns false or ctx is cancelled.
	Scan(ctx context.Context, start, end uint64, yield func(index uint64, command []byte) bool) error
	// Truncate removes all entries with index > index and returns the new
	// length. Rejects index values below the commit watermark.
	Truncate(index uint64) (uint64, error)
	// GetMetadata fetches an opaque metadata value by key.
	GetMetadata(key []byte) ([]byte, bool)
	// SetMetadata stores an opaque metadata value by key.
	SetMetadata(key, value []byte) error
}
