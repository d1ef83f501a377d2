package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobaltdb/raftkv/message"
)

func TestClientMutateRoundTrip(t *testing.T) {
	reqs := make(chan Request, 1)
	c := New(reqs)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r := <-reqs
		assert.Equal(t, message.RequestMutate, r.Event.Request.Kind)
		r.Response <- message.Ok(message.State([]byte("ok")))
	}()

	out, err := c.Mutate(context.Background(), []byte("cmd"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)
	<-done
}

func TestClientStatusRoundTrip(t *testing.T) {
	reqs := make(chan Request, 1)
	c := New(reqs)

	go func() {
		r := <-reqs
		r.Response <- message.Ok(message.StatusResponse(message.NodeStatus{Server: "a", Term: 2}))
	}()

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", status.Server)
	assert.Equal(t, uint64(2), status.Term)
}

func TestClientPropagatesError(t *testing.T) {
	reqs := make(chan Request, 1)
	c := New(reqs)

	go func() {
		r := <-reqs
		r.Response <- message.ErrResult(assertError{})
	}()

	_, err := c.Query(context.Background(), []byte("cmd"))
	require.Error(t, err)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
