// Package raftlog wraps an opaque logstore.LogStore with Raft log semantics:
// term-aware append/splice/truncate, term/vote persistence, and scanning.
package raftlog

import (
	"context"
	"fmt"

	"github.com/cobaltdb/raftkv/errors"
	"github.com/cobaltdb/raftkv/logstore"
)

// Log is a replicated log backed by a logstore.LogStore. It is owned
// exclusively by the node task that drives the consensus role state machine.
type Log struct {
	store logstore.LogStore
}

// New wraps store as a Log.
func New(store logstore.LogStore) *Log {
	return &Log{store: store}
}

// LastIndex returns the index of the most recently appended entry, 0 if the
// log is empty.
func (l *Log) LastIndex() uint64 { return l.store.Len() }

// LastTerm returns the term of the last entry, 0 if the log is empty.
func (l *Log) LastTerm() uint64 {
	last := l.store.Len()
	if last == 0 {
		return 0
	}
	e, ok := l.Get(last)
	if !ok {
		return 0
	}
	return e.Term
}

// CommitIndex returns the current commit watermark.
func (l *Log) CommitIndex() uint64 { return l.store.Committed() }

// Append stores a new entry at term with the given command (nil for a
// no-op) and returns it with its assigned index.
func (l *Log) Append(term uint64, command []byte) (Entry, error) {
	idx, err := l.store.Append(encode(storedEntry{Term: term, Command: command}))
	if err != nil {
		return Entry{}, errors.Internalf("raftlog: append: %v", err)
	}
	return Entry{Index: idx, Term: term, Command: command}, nil
}

// Commit advances the commit watermark to index. index must not exceed
// LastIndex.
func (l *Log) Commit(index uint64) (uint64, error) {
	if index > l.LastIndex() {
		return 0, errors.Internalf("raftlog: cannot commit index %d beyond last index %d", index, l.LastIndex())
	}
	if err := l.store.Commit(index); err != nil {
		return 0, errors.Internalf("raftlog: commit: %v", err)
	}
	return index, nil
}

// Get fetches the entry at index, if any.
func (l *Log) Get(index uint64) (Entry, bool) {
	raw, ok := l.store.Get(index)
	if !ok {
		return Entry{}, false
	}
	var se storedEntry
	if err := decode(raw, &se); err != nil {
		return Entry{}, false
	}
	return Entry{Index: index, Term: se.Term, Command: se.Command}, true
}

// Has reports whether the log holds an entry at (index, term). The (0, 0)
// pair is always considered present, representing "before the first entry".
func (l *Log) Has(index, term uint64) bool {
	if index == 0 && term == 0 {
		return true
	}
	e, ok := l.Get(index)
	return ok && e.Term == term
}

// Scan streams entries with index in [start, end] (end=0 means through
// LastIndex) to yield in ascending order. Restartable: call Scan again for a
// fresh pass.
func (l *Log) Scan(ctx context.Context, start, end uint64, yield func(Entry) bool) error {
	return l.store.Scan(ctx, start, end, func(index uint64, raw []byte) bool {
		var se storedEntry
		if err := decode(raw, &se); err != nil {
			return false
		}
		return yield(Entry{Index: index, Term: se.Term, Command: se.Command})
	})
}

// Splice integrates entries (which must be contiguous and start at or before
// LastIndex+1) into the log: entries past the current end are appended;
// entries that already match by term are left untouched; entries that
// conflict by term truncate the log from that point before appending the
// rest. Returns the new LastIndex.
func (l *Log) Splice(entries []Entry) (uint64, error) {
	if len(entries) == 0 {
		return l.LastIndex(), nil
	}
	base := entries[0].Index
	if base > l.LastIndex()+1 {
		return 0, errors.Internalf("raftlog: splice base index %d beyond last index+1 %d", base, l.LastIndex()+1)
	}
	for i, e := range entries {
		if i > 0 && entries[i].Index != entries[i-1].Index+1 {
			return 0, errors.Internalf("raftlog: splice entries are not contiguous at index %d", entries[i].Index)
		}
		if e.Index > l.LastIndex() {
			if _, err := l.Append(e.Term, e.Command); err != nil {
				return 0, err
			}
			continue
		}
		existing, ok := l.Get(e.Index)
		if ok && existing.Term == e.Term {
			continue
		}
		if _, err := l.Truncate(e.Index - 1); err != nil {
			return 0, err
		}
		if _, err := l.Append(e.Term, e.Command); err != nil {
			return 0, err
		}
	}
	return l.LastIndex(), nil
}

// Truncate removes every entry with index > index and returns the new
// LastIndex. Rejects index values below the commit index: committed entries
// are never truncated.
func (l *Log) Truncate(index uint64) (uint64, error) {
	if index < l.CommitIndex() {
		return 0, errors.Internalf("raftlog: cannot truncate to %d below commit index %d", index, l.CommitIndex())
	}
	n, err := l.store.Truncate(index)
	if err != nil {
		return 0, fmt.Errorf("raftlog: truncate: %w", errors.Internal)
	}
	return n, nil
}

// LoadTerm restores the persisted (term, voted_for) pair, (0, "") if never
// saved.
func (l *Log) LoadTerm() (term uint64, votedFor string) {
	raw, ok := l.store.GetMetadata(metadataKey)
	if !ok {
		return 0, ""
	}
	var tv termVote
	if err := decode(raw, &tv); err != nil {
		return 0, ""
	}
	return tv.Term, tv.VotedFor
}

// SaveTerm persists (term, voted_for). Must be called before any outbound
// message that depends on the new term or vote is sent.
func (l *Log) SaveTerm(term uint64, votedFor string) error {
	if err := l.store.SetMetadata(metadataKey, encode(termVote{Term: term, VotedFor: votedFor})); err != nil {
		return errors.Internalf("raftlog: save term: %v", err)
	}
	return nil
}
