package kvsm

import (
	"testing"

	"github.com/stretchr/testify/require"

	raftkverrors "github.com/cobaltdb/raftkv/errors"
	"github.com/cobaltdb/raftkv/kv"
	"github.com/cobaltdb/raftkv/mvcc"
)

func newTestMachine() *StateMachine {
	return New(mvcc.New(kv.New(kv.DefaultOrder)))
}

func TestStateMachineSetGet(t *testing.T) {
	sm := newTestMachine()

	_, err := sm.Mutate(1, Set([]byte("x"), []byte("1")).Encode())
	require.NoError(t, err)
	require.Equal(t, uint64(1), sm.AppliedIndex())

	raw, err := sm.Query(Get([]byte("x")).Encode())
	require.NoError(t, err)
	var res GetResult
	require.NoError(t, decode(raw, &res))
	require.True(t, res.Found)
	require.Equal(t, []byte("1"), res.Value)
}

func TestStateMachineDelete(t *testing.T) {
	sm := newTestMachine()
	_, err := sm.Mutate(1, Set([]byte("x"), []byte("1")).Encode())
	require.NoError(t, err)
	_, err = sm.Mutate(2, Delete([]byte("x")).Encode())
	require.NoError(t, err)

	raw, err := sm.Query(Get([]byte("x")).Encode())
	require.NoError(t, err)
	var res GetResult
	require.NoError(t, decode(raw, &res))
	require.False(t, res.Found)
}

func TestStateMachineExplicitTransaction(t *testing.T) {
	sm := newTestMachine()

	raw, err := sm.Mutate(1, TxnBegin(mvcc.ReadWrite()).Encode())
	require.NoError(t, err)
	var begun TxnBeginResult
	require.NoError(t, decode(raw, &begun))

	_, err = sm.Mutate(2, TxnSet(begun.ID, []byte("a"), []byte("1")).Encode())
	require.NoError(t, err)
	_, err = sm.Mutate(3, TxnSet(begun.ID, []byte("b"), []byte("2")).Encode())
	require.NoError(t, err)

	// Not yet committed: fresh reads see nothing.
	raw, err = sm.Query(Get([]byte("a")).Encode())
	require.NoError(t, err)
	var res GetResult
	require.NoError(t, decode(raw, &res))
	require.False(t, res.Found)

	// But within the same transaction, writes are visible.
	raw, err = sm.Query(Get([]byte("a"), withTxn(begun.ID)).Encode())
	require.NoError(t, err)
	require.NoError(t, decode(raw, &res))
	require.True(t, res.Found)
	require.Equal(t, []byte("1"), res.Value)

	_, err = sm.Mutate(4, TxnCommit(begun.ID).Encode())
	require.NoError(t, err)

	raw, err = sm.Query(Get([]byte("a")).Encode())
	require.NoError(t, err)
	require.NoError(t, decode(raw, &res))
	require.True(t, res.Found)
}

func TestStateMachineTransactionRollback(t *testing.T) {
	sm := newTestMachine()

	raw, err := sm.Mutate(1, TxnBegin(mvcc.ReadWrite()).Encode())
	require.NoError(t, err)
	var begun TxnBeginResult
	require.NoError(t, decode(raw, &begun))

	_, err = sm.Mutate(2, TxnSet(begun.ID, []byte("a"), []byte("1")).Encode())
	require.NoError(t, err)
	_, err = sm.Mutate(3, TxnRollback(begun.ID).Encode())
	require.NoError(t, err)

	raw, err = sm.Query(Get([]byte("a")).Encode())
	require.NoError(t, err)
	var res GetResult
	require.NoError(t, decode(raw, &res))
	require.False(t, res.Found)
}

func TestStateMachineScanPrefix(t *testing.T) {
	sm := newTestMachine()
	for i, k := range []string{"a/1", "a/2", "b/1"} {
		_, err := sm.Mutate(uint64(i+1), Set([]byte(k), []byte("v")).Encode())
		require.NoError(t, err)
	}

	raw, err := sm.Query(ScanPrefix([]byte("a/")).Encode())
	require.NoError(t, err)
	var res ScanResult
	require.NoError(t, decode(raw, &res))
	require.Len(t, res.Pairs, 2)
}

func TestStateMachineUnknownCommandIsNotInternal(t *testing.T) {
	sm := newTestMachine()
	_, err := sm.Mutate(1, Command{Kind: CmdGet}.Encode())
	require.Error(t, err)
	require.False(t, raftkverrors.Is(err, raftkverrors.Internal))
}

// withTxn attaches a transaction id to a query-shaped Command, exercising
// the in-transaction read path (Get/Scan/ScanPrefix are otherwise always
// issued outside a transaction by client code).
func withTxn(id uint64) func(*Command) {
	return func(c *Command) { c.TxnID = id }
}
