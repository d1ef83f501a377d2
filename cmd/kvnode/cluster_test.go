package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/cobaltdb/raftkv/kvsm"
)

func TestSingleNodeClusterMutateAndQuery(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	logger := zap.NewNop().Sugar()
	c := newCluster(1, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go c.run(ctx)

	cl := c.client()
	callCtx, callCancel := context.WithTimeout(ctx, time.Second)

	_, err := cl.Mutate(callCtx, kvsm.Set([]byte("k"), []byte("v")).Encode())
	require.NoError(t, err)

	raw, err := cl.Query(callCtx, kvsm.Get([]byte("k")).Encode())
	require.NoError(t, err)
	res, err := kvsm.DecodeGetResult(raw)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, []byte("v"), res.Value)

	status, err := cl.Status(callCtx)
	require.NoError(t, err)
	require.Equal(t, "node-0", status.Leader)

	callCancel()
	cancel()
	time.Sleep(50 * time.Millisecond)
}

func TestThreeNodeClusterElectsLeaderAndMutates(t *testing.T) {
	logger := zap.NewNop().Sugar()
	c := newCluster(3, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.run(ctx)

	// Let the cluster run its election before driving a request through it.
	time.Sleep(300 * time.Millisecond)

	cl := c.client()
	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()

	_, err := cl.Mutate(callCtx, kvsm.Set([]byte("k"), []byte("v")).Encode())
	require.NoError(t, err)

	raw, err := cl.Query(callCtx, kvsm.Get([]byte("k")).Encode())
	require.NoError(t, err)
	res, err := kvsm.DecodeGetResult(raw)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, []byte("v"), res.Value)
}
