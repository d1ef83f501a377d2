package node

import "github.com/cobaltdb/raftkv/message"

// Candidate is the role of a node campaigning for leadership in the current
// term.
type Candidate struct {
	electionTicks   int
	electionTimeout int
	votes           map[string]struct{}
}

func (*Candidate) roleName() string { return "candidate" }

// becomeCandidate starts a new election: increments the term, votes for
// itself, persists that vote, and solicits votes from every peer.
func becomeCandidate(n *Node) {
	n.Term++
	n.Log.SaveTerm(n.Term, n.ID)
	c := &Candidate{
		electionTimeout: n.randomElectionTimeout(),
		votes:           map[string]struct{}{n.ID: {}},
	}
	n.Role = c
	n.send(message.Peers, message.SolicitVote(n.Log.LastIndex(), n.Log.LastTerm()))
}

func stepCandidate(n *Node, c *Candidate, msg message.Message) {
	switch msg.Event.Kind {
	case message.EventGrantVote:
		c.votes[msg.From.Peer] = struct{}{}
		if len(c.votes) >= n.Quorum() {
			becomeLeader(n)
		}

	case message.EventHeartbeat, message.EventReplicateEntries:
		// A message at our own term from a peer establishes them as the
		// leader we failed to notice; fall back to Follower and re-process.
		becomeFollower(n, msg.From.Peer, n.ID)
		stepFollower(n, n.Role.(*Follower), msg)

	case message.EventClientRequest:
		n.QueuedReqs = append(n.QueuedReqs, queuedRequest{
			id: msg.Event.RequestID, from: msg.From, request: msg.Event.Request,
		})

	case message.EventClientResponse:
		handleProxiedResponse(n, msg.Event.RequestID, msg.Event.Result)
	}
}

func tickCandidate(n *Node, c *Candidate) {
	c.electionTicks++
	if c.electionTicks >= c.electionTimeout {
		becomeCandidate(n)
	}
}
