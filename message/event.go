package message

import "github.com/cobaltdb/raftkv/raftlog"

// EventKind discriminates an Event's variant.
type EventKind int

const (
	EventHeartbeat EventKind = iota
	EventConfirmLeader
	EventSolicitVote
	EventGrantVote
	EventReplicateEntries
	EventAcceptEntries
	EventRejectEntries
	EventClientRequest
	EventClientResponse
)

// Event is the payload of a Message. Only the fields relevant to Kind are
// populated; this mirrors a Rust tagged union as a flat struct, the
// idiomatic Go stand-in for a sum type.
type Event struct {
	Kind EventKind

	// Heartbeat / ConfirmLeader
	CommitIndex  uint64
	CommitTerm   uint64
	HasCommitted bool

	// SolicitVote
	LastIndex uint64
	LastTerm  uint64

	// ReplicateEntries
	BaseIndex uint64
	BaseTerm  uint64
	Entries   []raftlog.Entry

	// AcceptEntries
	AcceptedLastIndex uint64

	// ClientRequest / ClientResponse
	RequestID string
	Request   Request
	Result    Result
}

// Heartbeat constructs a leader heartbeat event.
func Heartbeat(commitIndex, commitTerm uint64) Event {
	return Event{Kind: EventHeartbeat, CommitIndex: commitIndex, CommitTerm: commitTerm}
}

// ConfirmLeader constructs a follower's reply to a heartbeat.
func ConfirmLeader(commitIndex uint64, hasCommitted bool) Event {
	return Event{Kind: EventConfirmLeader, CommitIndex: commitIndex, HasCommitted: hasCommitted}
}

// SolicitVote constructs a candidate's vote request.
func SolicitVote(lastIndex, lastTerm uint64) Event {
	return Event{Kind: EventSolicitVote, LastIndex: lastIndex, LastTerm: lastTerm}
}

// GrantVote constructs a vote grant.
func GrantVote() Event { return Event{Kind: EventGrantVote} }

// ReplicateEntries constructs a leader's log replication message.
func ReplicateEntries(baseIndex, baseTerm uint64, entries []raftlog.Entry) Event {
	return Event{Kind: EventReplicateEntries, BaseIndex: baseIndex, BaseTerm: baseTerm, Entries: entries}
}

// AcceptEntries constructs a follower's acknowledgement of replication.
func AcceptEntries(lastIndex uint64) Event {
	return Event{Kind: EventAcceptEntries, AcceptedLastIndex: lastIndex}
}

// RejectEntries constructs a follower's rejection of replication.
func RejectEntries() Event { return Event{Kind: EventRejectEntries} }

// ClientRequestEvent constructs a client request carried over the peer/node
// fabric, stamped with the id used to correlate the eventual response.
func ClientRequestEvent(id string, req Request) Event {
	return Event{Kind: EventClientRequest, RequestID: id, Request: req}
}

// ClientResponseEvent constructs the corresponding response event.
func ClientResponseEvent(id string, result Result) Event {
	return Event{Kind: EventClientResponse, RequestID: id, Result: result}
}
