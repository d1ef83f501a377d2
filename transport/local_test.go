package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobaltdb/raftkv/message"
)

func TestLocalDirectDelivery(t *testing.T) {
	l := NewLocal()
	inA := make(chan message.Message, 1)
	inB := make(chan message.Message, 1)
	busA := l.Register("a", inA)
	l.Register("b", inB)

	require.NoError(t, busA.Send(message.Message{From: message.Peer("a"), To: message.Peer("b"), Event: message.GrantVote()}))
	msg := <-inB
	assert.Equal(t, message.EventGrantVote, msg.Event.Kind)
}

func TestLocalBroadcast(t *testing.T) {
	l := NewLocal()
	inA := make(chan message.Message, 1)
	inB := make(chan message.Message, 1)
	inC := make(chan message.Message, 1)
	busA := l.Register("a", inA)
	l.Register("b", inB)
	l.Register("c", inC)

	require.NoError(t, busA.Send(message.Message{From: message.Peer("a"), To: message.Peers, Event: message.Heartbeat(0, 0)}))
	msgB := <-inB
	msgC := <-inC
	assert.Equal(t, message.Peer("b"), msgB.To)
	assert.Equal(t, message.Peer("c"), msgC.To)
	assert.Len(t, inA, 0, "a must not receive its own broadcast")
}

func TestLocalUnknownPeer(t *testing.T) {
	l := NewLocal()
	busA := l.Register("a", make(chan message.Message, 1))
	err := busA.Send(message.Message{To: message.Peer("ghost")})
	require.Error(t, err)
}
