package logstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory LogStore. Entries are indexed from 1; index 0 never
// exists and is used as the "empty log" sentinel throughout the module.
type Memory struct {
	mu        sync.RWMutex
	entries   [][]byte
	committed uint64
	metadata  map[string][]byte
}

var _ LogStore = (*Memory)(nil)

// NewMemory constructs an empty Memory log store.
func NewMemory() *Memory {
	return &Memory{metadata: make(map[string][]byte)}
}

func (m *Memory) Append(command []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), command...)
	m.entries = append(m.entries, cp)
	return uint64(len(m.entries)), nil
}

func (m *Memory) Commit(index uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < m.committed {
		return fmt.Errorf("logstore: cannot commit index %d below current commit %d", index, m.committed)
	}
	if index > uint64(len(m.entries)) {
		return fmt.Errorf("logstore: cannot commit index %d beyond log length %d", index, len(m.entries))
	}
	m.committed = index
	return nil
}

func (m *Memory) Committed() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed
}

func (m *Memory) Len() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.entries))
}

func (m *Memory) Get(index uint64) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index < 1 || index > uint64(len(m.entries)) {
		return nil, false
	}
	return append([]byte(nil), m.entries[index-1]...), true
}

func (m *Memory) Scan(ctx context.Context, start, end uint64, yield func(index uint64, command []byte) bool) error {
	m.mu.RLock()
	entries := make([][]byte, len(m.entries))
	copy(entries, m.entries)
	m.mu.RUnlock()

	if start < 1 {
		start = 1
	}
	last := uint64(len(entries))
	if end == 0 || end > last {
		end = last
	}
	for i := start; i <= end; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !yield(i, entries[i-1]) {
			return nil
		}
	}
	return nil
}

func (m *Memory) Truncate(index uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < m.committed {
		return 0, fmt.Errorf("logstore: cannot truncate to %d below commit index %d", index, m.committed)
	}
	if index < uint64(len(m.entries)) {
		m.entries = m.entries[:index]
	}
	return uint64(len(m.entries)), nil
}

func (m *Memory) GetMetadata(key []byte) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.metadata[string(key)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

func (m *Memory) SetMetadata(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[string(key)] = append([]byte(nil), value...)
	return nil
}
