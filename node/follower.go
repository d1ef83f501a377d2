package node

import (
	"github.com/cobaltdb/raftkv/driver"
	"github.com/cobaltdb/raftkv/message"
)

// Follower is the role of a node that recognizes (or is waiting to
// recognize) a leader for the current term.
type Follower struct {
	leaderID  string
	hasLeader bool
	votedFor  string
	hasVoted  bool

	leaderSeenTicks   int
	leaderSeenTimeout int
}

func (*Follower) roleName() string { return "follower" }

func newFollower(n *Node, leaderID, votedFor string) *Follower {
	return &Follower{
		leaderID:          leaderID,
		hasLeader:         leaderID != "",
		votedFor:          votedFor,
		hasVoted:          votedFor != "",
		leaderSeenTimeout: n.randomElectionTimeout(),
	}
}

// becomeFollower transitions n to a Follower, optionally with a known
// leader and/or a recorded vote for the current term.
func becomeFollower(n *Node, leaderID, votedFor string) {
	n.Role = newFollower(n, leaderID, votedFor)
}

func stepFollower(n *Node, f *Follower, msg message.Message) {
	switch msg.Event.Kind {
	case message.EventSolicitVote:
		candidate := msg.From.Peer
		upToDate := msg.Event.LastTerm > n.Log.LastTerm() ||
			(msg.Event.LastTerm == n.Log.LastTerm() && msg.Event.LastIndex >= n.Log.LastIndex())
		if (!f.hasVoted || f.votedFor == candidate) && upToDate {
			f.votedFor = candidate
			f.hasVoted = true
			n.Log.SaveTerm(n.Term, candidate)
			f.leaderSeenTicks = 0
			f.leaderSeenTimeout = n.randomElectionTimeout()
			n.send(msg.From, message.GrantVote())
		}

	case message.EventHeartbeat:
		establishLeader(n, f, msg.From.Peer)
		if n.Log.Has(msg.Event.CommitIndex, msg.Event.CommitTerm) && msg.Event.CommitIndex > n.Log.CommitIndex() {
			commitAndApply(n, msg.Event.CommitIndex)
		}
		n.send(msg.From, message.ConfirmLeader(msg.Event.CommitIndex, n.Log.Has(msg.Event.CommitIndex, msg.Event.CommitTerm)))
		n.forwardQueued()

	case message.EventReplicateEntries:
		establishLeader(n, f, msg.From.Peer)
		if n.Log.Has(msg.Event.BaseIndex, msg.Event.BaseTerm) {
			n.Log.Splice(msg.Event.Entries)
			n.send(msg.From, message.AcceptEntries(n.Log.LastIndex()))
		} else {
			n.send(msg.From, message.RejectEntries())
		}
		n.forwardQueued()

	case message.EventClientRequest:
		handleClientRequest(n, msg.Event.RequestID, msg.From, msg.Event.Request)

	case message.EventClientResponse:
		handleProxiedResponse(n, msg.Event.RequestID, msg.Event.Result)
	}
}

func establishLeader(n *Node, f *Follower, leaderID string) {
	f.leaderID = leaderID
	f.hasLeader = true
	f.leaderSeenTicks = 0
	f.leaderSeenTimeout = n.randomElectionTimeout()
}

// commitAndApply advances the log's commit index to index and issues an
// Apply instruction to the driver for every newly committed entry.
func commitAndApply(n *Node, index uint64) {
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

func tickFollower(n *Node, f *Follower) {
	f.leaderSeenTicks++
	if f.leaderSeenTicks >= f.leaderSeenTimeout {
		becomeCandidate(n)
	}
}
