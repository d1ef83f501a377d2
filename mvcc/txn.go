package mvcc

import (
	"github.com/cobaltdb/raftkv/errors"
	"github.com/cobaltdb/raftkv/kv"
)

// Transaction is a single MVCC transaction over an Engine's store.
type Transaction struct {
	store    kv.Store
	id       uint64
	mode     Mode
	snapshot Snapshot
}

// ID returns the transaction's id.
func (t *Transaction) ID() uint64 { return t.id }

// Mode returns the transaction's access mode.
func (t *Transaction) Mode() Mode { return t.mode }

// valueRecord is the on-disk shape of a versioned value; Deleted marks a
// tombstone (the record existed once but was deleted by this version).
type valueRecord struct {
	Deleted bool   `codec:"deleted"`
	Value   []byte `codec:"value,omitempty"`
}

// Get returns the highest version of key visible to this transaction's
// snapshot, or ok=false if absent or tombstoned.
func (t *Transaction) Get(key []byte) ([]byte, bool, error) {
	return t.latestVisible(key)
}

// latestVisible reverse-scans Record(key, 0..=id) for the newest visible
// version.
func (t *Transaction) latestVisible(key []byte) ([]byte, bool, error) {
	start, end := keyRecordRange(key, 0, t.id)
	it := t.store.Scan(kv.Range{Start: start, End: end, EndIncl: true})
	defer it.Close()

	for {
		k, raw, ok := it.Prev()
		if !ok {
			return nil, false, nil
		}
		_, version := decodeRecordKey(k)
		if !t.snapshot.IsVisible(version) {
			continue
		}
		var rec valueRecord
		if err := decode(raw, &rec); err != nil {
			return nil, false, errors.Internalf("mvcc: corrupt record at %x: %v", k, err)
		}
		if rec.Deleted {
			return nil, false, nil
		}
		return rec.Value, true, nil
	}
}

// Set writes key=value, visible to readers at or after this transaction.
func (t *Transaction) Set(key, value []byte) error {
	return t.write(key, &value)
}

// Delete writes a tombstone for key.
func (t *Transaction) Delete(key []byte) error {
	return t.write(key, nil)
}

func (t *Transaction) write(key []byte, value *[]byte) error {
	if !t.mode.Mutable() {
		return errors.ReadOnly
	}
	min := t.snapshot.minInvisible()
	start, end := keyRecordRange(key, min, maxVersion)
	it := t.store.Scan(kv.Range{Start: start, End: end, EndIncl: true})
	defer it.Close()
	for {
		k, _, ok := it.Prev()
		if !ok {
			break
		}
		_, version := decodeRecordKey(k)
		if !t.snapshot.IsVisible(version) {
			return errors.Serialization
		}
	}

	rec := valueRecord{Deleted: value == nil}
	if value != nil {
		rec.Value = *value
	}
	t.store.Set(keyRecord(key, t.id), encode(rec))
	t.store.Set(keyTxnUpdate(t.id, key), nil)
	return nil
}

// Commit finalizes the transaction, making its writes visible to subsequent
// transactions.
func (t *Transaction) Commit() error {
	t.store.Delete(keyTxnActive(t.id))
	return nil
}

// Rollback discards the transaction's writes, if any.
func (t *Transaction) Rollback() error {
	if t.mode.Mutable() {
		prefix := keyTxnUpdatePrefix(t.id)
		it := t.store.Scan(kv.Prefix(prefix))
		var keys [][]byte
		for {
			k, _, ok := it.Next()
			if !ok {
				break
			}
			keys = append(keys, append([]byte(nil), k...))
		}
		it.Close()
		for _, k := range keys {
			userKey := decodeTxnUpdateKey(k)
			t.store.Delete(keyRecord(userKey, t.id))
			t.store.Delete(k)
		}
	}
	t.store.Delete(keyTxnActive(t.id))
	return nil
}

// Pair is a decoded key/value result from Scan/ScanPrefix.
type Pair struct {
	Key   []byte
	Value []byte
}

// Scan returns the visible key/value pairs with key in [start, end),
// collapsing multi-version records to the latest visible version and
// suppressing tombstones.
func (t *Transaction) Scan(start, end []byte) ([]Pair, error) {
	var lo, hi []byte
	if start != nil {
		lo = keyRecord(start, 0)
	}
	if end != nil {
		hi = keyRecord(end, 0)
	}
	it := t.store.Scan(kv.Range{Start: lo, End: hi})
	defer it.Close()

	var pairs []Pair
	var curKey []byte
	var curVal []byte
	var curSeen bool
	flush := func() {
		if curSeen && curVal != nil {
			pairs = append(pairs, Pair{Key: curKey, Value: curVal})
		}
	}
	for {
		k, raw, ok := it.Next()
		if !ok {
			break
		}
		userKey, version := decodeRecordKey(k)
		if !t.snapshot.IsVisible(version) {
			continue
		}
		if !curSeen || !bytesEqual(userKey, curKey) {
			flush()
			curKey = userKey
			curSeen = true
			curVal = nil
		}
		var rec valueRecord
		if err := decode(raw, &rec); err != nil {
			return nil, errors.Internalf("mvcc: corrupt record at %x: %v", k, err)
		}
		if rec.Deleted {
			curVal = nil
		} else {
			curVal = rec.Value
		}
	}
	flush()
	return pairs, nil
}

// ScanPrefix returns the visible key/value pairs whose key has the given
// prefix.
func (t *Transaction) ScanPrefix(prefix []byte) ([]Pair, error) {
	r := kv.Prefix(prefix)
	return t.Scan(r.Start, r.End)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
