package node

import (
	"github.com/cobaltdb/raftkv/message"
)

// Step processes one incoming Message against n, returning the (possibly
// role-transitioned) Node. Per spec.md §4.2:
//   - messages from Peers/Local addresses are rejected (not valid senders);
//   - non-ClientRequest messages from a Client address are rejected;
//   - messages from a past/future term are rejected/bump the term, except
//     ClientRequest/ClientResponse, which don't rely on term monotonicity
//     (a proxied response in particular crosses the fabric carrying the
//     term the leader had when it was produced, not this node's own);
//   - on a message from a future term, the node becomes a Follower at that
//     term (clearing leader/vote) before the message is processed further.
func Step(n *Node, msg message.Message) *Node {
	if msg.From.Kind == message.AddressPeers || msg.From.Kind == message.AddressLocal {
		n.Logger.Warnw("dropping message from invalid sender", "from", msg.From)
		return n
	}
	if msg.From.Kind == message.AddressClient && msg.Event.Kind != message.EventClientRequest {
		n.Logger.Warnw("dropping non-request message from client address")
		return n
	}
	termExempt := msg.Event.Kind == message.EventClientRequest || msg.Event.Kind == message.EventClientResponse
	if !termExempt && msg.Term < n.Term {
		n.Logger.Debugw("dropping stale-term message", "msg_term", msg.Term, "term", n.Term)
		return n
	}
	if !termExempt && msg.Term > n.Term {
		n.Term = msg.Term
		n.Log.SaveTerm(n.Term, "")
		becomeFollower(n, "", "")
	}

	switch role := n.Role.(type) {
	case *Follower:
		stepFollower(n, role, msg)
	case *Candidate:
		stepCandidate(n, role, msg)
	case *Leader:
		stepLeader(n, role, msg)
	}
	return n
}

// Tick advances n's internal timers by one tick, returning the (possibly
// role-transitioned) Node.
func Tick(n *Node) *Node {
	switch role := n.Role.(type) {
	case *Follower:
		tickFollower(n, role)
	case *Candidate:
		tickCandidate(n, role)
	case *Leader:
		tickLeader(n, role)
	}
	return n
}

// handleClientRequest dispatches a client request: if this node is the
// leader it is executed directly; if a leader is known it is proxied;
// otherwise it is queued until a leader is established.
func handleClientRequest(n *Node, id string, from message.Address, req message.Request) {
	switch role := n.Role.(type) {
	case *Leader:
		leaderHandleRequest(n, role, id, from, req)
	case *Follower:
		if !role.hasLeader {
			n.QueuedReqs = append(n.QueuedReqs, queuedRequest{id: id, from: from, request: req})
			return
		}
		n.ProxiedReqs[id] = from
		n.send(message.Peer(role.leaderID), message.ClientRequestEvent(id, req))
	case *Candidate:
		n.QueuedReqs = append(n.QueuedReqs, queuedRequest{id: id, from: from, request: req})
	}
}

// handleProxiedResponse forwards a ClientResponse for a request this node
// had proxied to its origin, if any.
func handleProxiedResponse(n *Node, id string, result message.Result) bool {
	origin, ok := n.ProxiedReqs[id]
	if !ok {
		return false
	}
	delete(n.ProxiedReqs, id)
	n.send(origin, message.ClientResponseEvent(id, result))
	return true
}
