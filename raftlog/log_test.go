package raftlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobaltdb/raftkv/logstore"
)

func newLog() *Log { return New(logstore.NewMemory()) }

func TestLogAppend(t *testing.T) {
	l := newLog()
	e1, err := l.Append(1, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e1.Index)
	e2, err := l.Append(1, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e2.Index)
	assert.Nil(t, e2.Command)
	assert.Equal(t, uint64(2), l.LastIndex())
	assert.Equal(t, uint64(1), l.LastTerm())
}

func TestLogCommit(t *testing.T) {
	l := newLog()
	l.Append(1, []byte("a"))
	l.Append(1, []byte("b"))
	idx, err := l.Commit(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), idx)
	assert.Equal(t, uint64(2), l.CommitIndex())

	_, err = l.Commit(5)
	require.Error(t, err)
}

func TestLogGetHas(t *testing.T) {
	l := newLog()
	l.Append(1, []byte("a"))
	e, ok := l.Get(1)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), e.Command)

	assert.True(t, l.Has(0, 0))
	assert.True(t, l.Has(1, 1))
	assert.False(t, l.Has(1, 2))
	assert.False(t, l.Has(2, 1))
}

func TestLogScan(t *testing.T) {
	l := newLog()
	l.Append(1, []byte("a"))
	l.Append(1, []byte("b"))
	l.Append(2, []byte("c"))

	var got []string
	err := l.Scan(context.Background(), 0, 0, func(e Entry) bool {
		got = append(got, string(e.Command))
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestLogLoadSaveTerm(t *testing.T) {
	l := newLog()
	term, voted := l.LoadTerm()
	assert.Equal(t, uint64(0), term)
	assert.Equal(t, "", voted)

	require.NoError(t, l.SaveTerm(3, "b"))
	term, voted = l.LoadTerm()
	assert.Equal(t, uint64(3), term)
	assert.Equal(t, "b", voted)
}

func TestLogSpliceAppend(t *testing.T) {
	l := newLog()
	l.Append(1, []byte("a"))
	n, err := l.Splice([]Entry{{Index: 2, Term: 1, Command: []byte("b")}, {Index: 3, Term: 1, Command: []byte("c")}})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
	e, _ := l.Get(3)
	assert.Equal(t, []byte("c"), e.Command)
}

func TestLogSpliceSkipMatching(t *testing.T) {
	l := newLog()
	l.Append(1, []byte("a"))
	l.Append(1, []byte("b"))
	n, err := l.Splice([]Entry{{Index: 1, Term: 1, Command: []byte("ignored")}, {Index: 2, Term: 1, Command: []byte("b")}})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	e, _ := l.Get(1)
	assert.Equal(t, []byte("a"), e.Command, "unmodified entry at matching term must not be overwritten")
}

func TestLogSpliceConflictTruncates(t *testing.T) {
	l := newLog()
	l.Append(1, []byte("a"))
	l.Append(1, []byte("b"))
	l.Append(1, []byte("c"))
	n, err := l.Splice([]Entry{{Index: 2, Term: 2, Command: []byte("b2")}})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	e, _ := l.Get(2)
	assert.Equal(t, uint64(2), e.Term)
	assert.Equal(t, []byte("b2"), e.Command)
	_, ok := l.Get(3)
	assert.False(t, ok, "entries after a truncated conflict point are discarded")
}

func TestLogSpliceNonContiguousRejected(t *testing.T) {
	l := newLog()
	l.Append(1, []byte("a"))
	_, err := l.Splice([]Entry{{Index: 2, Term: 1, Command: []byte("b")}, {Index: 4, Term: 1, Command: []byte("d")}})
	require.Error(t, err)
}

func TestLogSpliceBeyondLastRejected(t *testing.T) {
	l := newLog()
	l.Append(1, []byte("a"))
	_, err := l.Splice([]Entry{{Index: 3, Term: 1, Command: []byte("c")}})
	require.Error(t, err)
}

func TestLogTruncate(t *testing.T) {
	l := newLog()
	l.Append(1, []byte("a"))
	l.Append(1, []byte("b"))
	l.Append(1, []byte("c"))
	l.Commit(1)

	n, err := l.Truncate(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	_, err = l.Truncate(0)
	require.Error(t, err, "truncating below the commit index must be rejected")
}
