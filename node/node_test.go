package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobaltdb/raftkv/driver"
	"github.com/cobaltdb/raftkv/logstore"
	"github.com/cobaltdb/raftkv/message"
	"github.com/cobaltdb/raftkv/raftlog"
)

type listMachine struct {
	applied uint64
	list    [][]byte
}

func (m *listMachine) AppliedIndex() uint64 { return m.applied }
func (m *listMachine) Mutate(index uint64, command []byte) ([]byte, error) {
	m.list = append(m.list, command)
	m.applied = index
	return command, nil
}
func (m *listMachine) Query(command []byte) ([]byte, error) { return command, nil }

// pumpDriver drains every pending instruction through d and returns the
// resulting messages addressed to the client; all other resulting messages
// are dropped.
func pumpDriver(t *testing.T, n *Node, d *driver.Driver, driverCh chan driver.Instruction) []message.Message {
	t.Helper()
	var clientMsgs []message.Message
	for {
		select {
		case instr := <-driverCh:
			msgs, err := d.Step(instr)
			require.NoError(t, err)
			for _, m := range msgs {
				if m.To.Kind == message.AddressClient {
					clientMsgs = append(clientMsgs, m)
				}
			}
		default:
			return clientMsgs
		}
	}
}

// TestSingleNodeBootstrap reproduces spec.md §8 scenario 1.
func TestSingleNodeBootstrap(t *testing.T) {
	out := make(chan message.Message, 16)
	driverCh := make(chan driver.Instruction, 16)
	rlog := raftlog.New(logstore.NewMemory())
	n := New("a", nil, rlog, out, driverCh, nil, 1)

	if _, isLeader := n.Role.(*Leader); !isLeader {
		t.Fatalf("expected immediate leader role for a zero-peer node, got %T", n.Role)
	}

	m := &listMachine{}
	d := driver.New(m, nil)
	pumpDriver(t, n, d, driverCh)
	for len(out) > 0 {
		<-out
	}

	Step(n, message.Message{
		From:  message.Client,
		Event: message.ClientRequestEvent("req-1", message.Mutate([]byte{0xaf})),
	})
	msgs := pumpDriver(t, n, d, driverCh)
	require.Len(t, msgs, 1)
	assert.Equal(t, "req-1", msgs[0].Event.RequestID)
	assert.Nil(t, msgs[0].Event.Result.Err)
	assert.Equal(t, []byte{0xaf}, msgs[0].Event.Result.Response.State)

	assert.Equal(t, [][]byte{{0xaf}}, m.list)
	assert.Equal(t, uint64(2), d.AppliedIndex())
}

func TestFollowerGrantsVote(t *testing.T) {
	out := make(chan message.Message, 16)
	driverCh := make(chan driver.Instruction, 16)
	rlog := raftlog.New(logstore.NewMemory())
	n := New("b", []string{"a"}, rlog, out, driverCh, nil, 2)

	Step(n, message.Message{
		Term: 1, From: message.Peer("a"),
		Event: message.SolicitVote(0, 0),
	})
	require.Len(t, out, 1)
	msg := <-out
	assert.Equal(t, message.EventGrantVote, msg.Event.Kind)
	assert.Equal(t, message.Peer("a"), msg.To)
}

func TestFollowerElectionTimeout(t *testing.T) {
	out := make(chan message.Message, 64)
	driverCh := make(chan driver.Instruction, 16)
	rlog := raftlog.New(logstore.NewMemory())
	n := New("b", []string{"a"}, rlog, out, driverCh, nil, 3)

	for i := 0; i < ElectionTimeoutMax+1; i++ {
		Tick(n)
	}
	_, isCandidate := n.Role.(*Candidate)
	assert.True(t, isCandidate, "follower must become candidate after its election timeout elapses")
	assert.Equal(t, uint64(1), n.Term)
}
