package node

import (
	"github.com/cobaltdb/raftkv/driver"
	"github.com/cobaltdb/raftkv/message"
	"github.com/cobaltdb/raftkv/raftlog"
)

// Leader is the role of a node that drives log replication and commitment
// for the current term.
type Leader struct {
	peerNextIndex map[string]uint64
	peerLastIndex map[string]uint64
	heartbeatTicks int
}

func (*Leader) roleName() string { return "leader" }

// becomeLeader transitions n to Leader: resets per-peer replication state,
// appends a no-op entry to confirm the new term, sends an immediate
// heartbeat, and forwards any requests queued while no leader was known.
func becomeLeader(n *Node) {
	l := &Leader{peerNextIndex: map[string]uint64{}, peerLastIndex: map[string]uint64{}}
	for _, p := range n.Peers {
		l.peerNextIndex[p] = n.Log.LastIndex() + 1
		l.peerLastIndex[p] = 0
	}
	n.Role = l
	n.Log.Append(n.Term, nil)
	recomputeCommit(n, l)
	n.send(message.Peers, message.Heartbeat(n.Log.CommitIndex(), n.commitTerm()))
	n.forwardQueued()
}

func (n *Node) commitTerm() uint64 {
	ci := n.Log.CommitIndex()
	if ci == 0 {
		return 0
	}
	e, ok := n.Log.Get(ci)
	if !ok {
		return 0
	}
	return e.Term
}

func stepLeader(n *Node, l *Leader, msg message.Message) {
	switch msg.Event.Kind {
	case message.EventConfirmLeader:
		peer := msg.From.Peer
		if !msg.Event.HasCommitted {
			l.peerNextIndex[peer] = msg.Event.CommitIndex + 1
			replicateTo(n, l, peer)
		}
		n.instruct(driver.Vote(n.Term, msg.Event.CommitIndex, msg.From))

	case message.EventAcceptEntries:
		peer := msg.From.Peer
		l.peerLastIndex[peer] = msg.Event.AcceptedLastIndex
		l.peerNextIndex[peer] = msg.Event.AcceptedLastIndex + 1
		recomputeCommit(n, l)
		if l.peerNextIndex[peer] <= n.Log.LastIndex() {
			replicateTo(n, l, peer)
		}

	case message.EventRejectEntries:
		peer := msg.From.Peer
		if l.peerNextIndex[peer] > 1 {
			l.peerNextIndex[peer]--
		}
		replicateTo(n, l, peer)

	case message.EventClientRequest:
		leaderHandleRequest(n, l, msg.Event.RequestID, msg.From, msg.Event.Request)

	case message.EventClientResponse:
		handleProxiedResponse(n, msg.Event.RequestID, msg.Event.Result)
	}
}

// recomputeCommit finds the highest index N such that a quorum of nodes
// (including self) has replicated through N and the entry at N belongs to
// the current term, then commits through N. Entries from prior terms are
// only ever committed transitively, by a current-term entry at or beyond
// them reaching quorum — never by counting replication alone.
func recomputeCommit(n *Node, l *Leader) {
	selfLast := n.Log.LastIndex()
	candidate := n.Log.CommitIndex()
	for N := selfLast; N > n.Log.CommitIndex(); N-- {
		e, ok := n.Log.Get(N)
		if !ok || e.Term != n.Term {
			continue
		}
		count := 1 // self
		for _, p := range n.Peers {
			if l.peerLastIndex[p] >= N {
				count++
			}
		}
		if count >= n.Quorum() {
			candidate = N
			break
		}
	}
	if candidate > n.Log.CommitIndex() {
		commitAndApplyLeader(n, candidate)
	}
}

func commitAndApplyLeader(n *Node, index uint64) {
	prev := n.Log.CommitIndex()
	if _, err := n.Log.Commit(index); err != nil {
		return
	}
	for i := prev + 1; i <= index; i++ {
		if e, ok := n.Log.Get(i); ok {
			n.instruct(driver.Apply(e))
		}
	}
}

// replicateTo sends a ReplicateEntries message to peer covering everything
// from that peer's next_index through the leader's last index.
func replicateTo(n *Node, l *Leader, peer string) {
	next := l.peerNextIndex[peer]
	if next == 0 {
		next = 1
	}
	base := next - 1
	var baseTerm uint64
	if base > 0 {
		if e, ok := n.Log.Get(base); ok {
			baseTerm = e.Term
		}
	}
	var entries []raftlog.Entry
	for i := next; i <= n.Log.LastIndex(); i++ {
		if e, ok := n.Log.Get(i); ok {
			entries = append(entries, e)
		}
	}
	n.send(message.Peer(peer), message.ReplicateEntries(base, baseTerm, entries))
}

func replicateAll(n *Node, l *Leader) {
	for _, p := range n.Peers {
		replicateTo(n, l, p)
	}
}

func leaderHandleRequest(n *Node, l *Leader, id string, from message.Address, req message.Request) {
	switch req.Kind {
	case message.RequestMutate:
		entry, err := n.Log.Append(n.Term, req.Command)
		if err != nil {
			return
		}
		n.instruct(driver.Notify(id, from, entry.Index))
		recomputeCommit(n, l)
		replicateAll(n, l)

	case message.RequestQuery:
		n.instruct(driver.Query(id, from, req.Command, n.Term, n.Log.CommitIndex(), n.Quorum()))
		n.instruct(driver.Vote(n.Term, n.Log.CommitIndex(), message.Local))
		n.send(message.Peers, message.Heartbeat(n.Log.CommitIndex(), n.commitTerm()))

	case message.RequestStatus:
		n.instruct(driver.StatusInstruction(id, from, n.Status()))
	}
}

func tickLeader(n *Node, l *Leader) {
	l.heartbeatTicks++
	if l.heartbeatTicks >= HeartbeatInterval {
		l.heartbeatTicks = 0
		n.send(message.Peers, message.Heartbeat(n.Log.CommitIndex(), n.commitTerm()))
	}
}
