package mvcc

import (
	"sync"

	"github.com/cobaltdb/raftkv/errors"
	"github.com/cobaltdb/raftkv/kv"
)

// Engine is the MVCC layer over an ordered kv.Store.
type Engine struct {
	mu    sync.Mutex // guards the txn-id allocation + snapshot-build step
	store kv.Store
}

// New wraps store with MVCC transaction semantics.
func New(store kv.Store) *Engine {
	return &Engine{store: store}
}

// Begin starts a new transaction in the given mode. Allocating the
// transaction id and recording which other transactions are concurrently
// active happen under one hold of the engine's mutex, so concurrent Begin
// calls are serialized against each other. The store itself is locked per
// operation, and Commit and Rollback do not take the engine's mutex.
func (e *Engine) Begin(mode Mode) (*Transaction, error) {
	e.mu.Lock()
	id := e.readTxnNext()
	e.store.Set(keyTxnNext(), encodeUint64(id+1))
	e.store.Set(keyTxnActive(id), encode(mode))
	invisible := e.activeBelow(id)
	e.store.Set(keyTxnSnapshot(id), encodeInvisible(invisible))
	e.mu.Unlock()

	snap := Snapshot{Version: id, Invisible: invisible}
	if mode.Kind == ModeSnapshot {
		restored, ok := e.loadSnapshot(mode.Version)
		if !ok {
			return nil, errors.Valuef("mvcc: snapshot for transaction %d not found", mode.Version)
		}
		snap = restored
	}
	return &Transaction{store: e.store, id: id, mode: mode, snapshot: snap}, nil
}

// Resume reattaches to a previously begun, not yet committed/rolled-back
// transaction by id.
func (e *Engine) Resume(id uint64) (*Transaction, error) {
	raw, ok := e.store.Get(keyTxnActive(id))
	if !ok {
		return nil, errors.Valuef("mvcc: no active transaction %d", id)
	}
	var mode Mode
	if err := decode(raw, &mode); err != nil {
		return nil, errors.Internalf("mvcc: corrupt transaction mode for %d: %v", id, err)
	}
	version := id
	if mode.Kind == ModeSnapshot {
		version = mode.Version
	}
	snap, ok := e.loadSnapshot(version)
	if !ok {
		return nil, errors.Valuef("mvcc: snapshot for transaction %d not found", version)
	}
	return &Transaction{store: e.store, id: id, mode: mode, snapshot: snap}, nil
}

func (e *Engine) readTxnNext() uint64 {
	raw, ok := e.store.Get(keyTxnNext())
	if !ok {
		return 1
	}
	return decodeUint64(raw)
}

// activeBelow returns the set of transaction ids with id' < id that are
// still active (have not committed or rolled back).
func (e *Engine) activeBelow(id uint64) map[uint64]struct{} {
	out := map[uint64]struct{}{}
	it := e.store.Scan(kv.Range{Start: keyTxnActivePrefix(), End: keyTxnActive(id), EndIncl: false})
	defer it.Close()
	for {
		k, _, ok := it.Next()
		if !ok {
			break
		}
		out[decodeTxnActiveKey(k)] = struct{}{}
	}
	return out
}

func (e *Engine) loadSnapshot(version uint64) (Snapshot, bool) {
	raw, ok := e.store.Get(keyTxnSnapshot(version))
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{Version: version, Invisible: decodeInvisible(raw)}, true
}
