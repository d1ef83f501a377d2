package driver

import "github.com/cobaltdb/raftkv/message"

// pendingQuery is a read request waiting for both its read index to be
// applied and a quorum of votes confirming the leader was still leader as of
// that index.
type pendingQuery struct {
	id      string
	term    uint64
	address message.Address
	command []byte
	quorum  int
	votes   map[string]struct{}
}

func newPendingQuery(id string, address message.Address, command []byte, term uint64, quorum int) *pendingQuery {
	return &pendingQuery{id: id, term: term, address: address, command: command, quorum: quorum, votes: map[string]struct{}{}}
}

func (q *pendingQuery) ready() bool { return len(q.votes) >= q.quorum }

type notifyEntry struct {
	id      string
	address message.Address
}
