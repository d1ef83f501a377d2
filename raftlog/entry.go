package raftlog

// Entry is a single log entry. Command is nil for a no-op entry (appended by
// a newly elected leader to confirm its term at the start of that term).
// Entries are immutable once appended; they are only ever removed by
// truncate-then-reappend.
type Entry struct {
	Index   uint64
	Term    uint64
	Command []byte
}

// storedEntry is the on-disk representation handed to the LogStore: Index is
// implicit in the LogStore's own indexing, so only Term and Command are
// serialized.
type storedEntry struct {
	Term    uint64 `codec:"term"`
	Command []byte `codec:"command"`
}

// termVote is the on-disk representation of the metadata key that persists
// the current term and, if any, the candidate voted for in that term.
type termVote struct {
	Term     uint64 `codec:"term"`
	VotedFor string `codec:"voted_for"`
}

// metadataKey is the single LogStore metadata key used to persist term/vote
// state, per spec.md §6.
var metadataKey = []byte{0x00}
