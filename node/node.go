// Package node implements the Raft-style consensus role state machine:
// Follower, Candidate and Leader, as a total-function transition system
// rather than inheritance or dynamic dispatch, per spec.md §4.2 and §9.
package node

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/cobaltdb/raftkv/driver"
	"github.com/cobaltdb/raftkv/message"
	"github.com/cobaltdb/raftkv/raftlog"
)

const (
	// HeartbeatInterval is the number of ticks between leader heartbeats.
	HeartbeatInterval = 1
	// ElectionTimeoutMin/Max bound the randomized follower/candidate
	// election timeout, in ticks.
	ElectionTimeoutMin = 8
	ElectionTimeoutMax = 15
)

// Role is the role-specific state of a Node: *Follower, *Candidate or
// *Leader. It carries no behavior; dispatch lives in Step/Tick.
type Role interface {
	roleName() string
}

// queuedRequest is a client request received before a leader was known.
type queuedRequest struct {
	id      string
	from    message.Address
	request message.Request
}

// Node is a single Raft participant. Role holds the role-specific state;
// transitioning role replaces only that field, never the Node's identity or
// log.
type Node struct {
	ID    string
	Peers []string

	Term uint64
	Log  *raftlog.Log

	Out      chan<- message.Message
	DriverCh chan<- driver.Instruction

	QueuedReqs  []queuedRequest
	ProxiedReqs map[string]message.Address

	Role Role

	Logger *zap.SugaredLogger
	Rand   *rand.Rand
}

// New constructs a Node starting as a Follower with no known leader. If
// peers is empty the node becomes a Leader immediately, before New returns
// (there being no one to wait for an election timeout against), matching
// spec.md §8 scenario 1's single-node bootstrap.
func New(id string, peers []string, log *raftlog.Log, out chan<- message.Message, driverCh chan<- driver.Instruction, logger *zap.SugaredLogger, seed int64) *Node {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	term, _ := log.LoadTerm()
	n := &Node{
		ID:          id,
		Peers:       append([]string(nil), peers...),
		Term:        term,
		Log:         log,
		Out:         out,
		DriverCh:    driverCh,
		ProxiedReqs: map[string]message.Address{},
		Logger:      logger,
		Rand:        rand.New(rand.NewSource(seed)),
	}
	n.Role = newFollower(n, "", "")
	if len(peers) == 0 {
		becomeLeader(n)
	}
	return n
}

// Quorum returns the minimum number of nodes (including self) required to
// commit or elect: floor((peers+1)/2) + 1.
func (n *Node) Quorum() int {
	return (len(n.Peers)+1)/2 + 1
}

func (n *Node) send(to message.Address, ev message.Event) {
	if n.Out == nil {
		return
	}
	// Peer sends carry this node's own id as From; Step rejects Local/Peers
	// senders, and peers key vote/ack bookkeeping off From.Peer.
	from := message.Peer(n.ID)
	if to.Kind == message.AddressClient {
		from = message.Local
	}
	n.Out <- message.Message{Term: n.Term, From: from, To: to, Event: ev}
}

func (n *Node) instruct(instr driver.Instruction) {
	if n.DriverCh == nil {
		return
	}
	n.DriverCh <- instr
}

func (n *Node) randomElectionTimeout() int {
	return ElectionTimeoutMin + n.Rand.Intn(ElectionTimeoutMax-ElectionTimeoutMin+1)
}

// forwardQueued resends every request queued while no leader was known, now
// that one has been established (possibly this node itself).
func (n *Node) forwardQueued() {
	reqs := n.QueuedReqs
	n.QueuedReqs = nil
	for _, qr := range reqs {
		handleClientRequest(n, qr.id, qr.from, qr.request)
	}
}

// Status reports this node's locally observed consensus state.
func (n *Node) Status() message.NodeStatus {
	leader := ""
	if f, ok := n.Role.(*Follower); ok && f.hasLeader {
		leader = f.leaderID
	}
	if _, ok := n.Role.(*Leader); ok {
		leader = n.ID
	}
	return message.NodeStatus{
		Server:      n.ID,
		Leader:      leader,
		Term:        n.Term,
		LastIndex:   n.Log.LastIndex(),
		CommitIndex: n.Log.CommitIndex(),
	}
}
