package transport

import (
	"fmt"
	"sync"

	"github.com/cobaltdb/raftkv/message"
)

// Local wires multiple Node instances running in the same process together
// over Go channels. It only routes Peer/Peers-addressed messages; Client and
// Local-addressed messages are the caller's own responsibility to dispatch
// (they never cross the peer fabric).
type Local struct {
	mu    sync.RWMutex
	nodes map[string]chan<- message.Message
}

// NewLocal constructs an empty in-memory transport.
func NewLocal() *Local {
	return &Local{nodes: map[string]chan<- message.Message{}}
}

// Register attaches a node's inbound channel under id, returning a Bus
// bound to that node's identity for outbound sends.
func (l *Local) Register(id string, inbound chan<- message.Message) *NodeBus {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes[id] = inbound
	return &NodeBus{local: l, self: id}
}

// Deregister removes id from the fabric.
func (l *Local) Deregister(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.nodes, id)
}

func (l *Local) deliver(to string, msg message.Message) error {
	l.mu.RLock()
	ch, ok := l.nodes[to]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: unknown peer %q", to)
	}
	ch <- msg
	return nil
}

func (l *Local) peers(except string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.nodes))
	for id := range l.nodes {
		if id != except {
			out = append(out, id)
		}
	}
	return out
}

// NodeBus is a Bus bound to a single node's identity, so it knows which
// peer to exclude when fanning a Peers broadcast out.
type NodeBus struct {
	local *Local
	self  string
}

var _ Bus = (*NodeBus)(nil)

func (b *NodeBus) Send(msg message.Message) error {
	// Anything crossing the fabric carries this bus's node as its true
	// origin, regardless of what From a node-internal caller (e.g. the
	// driver, which addresses responses without knowing its own node id)
	// left unset; node-originated sends already stamp this correctly, so
	// this only ever corrects a zero-value From.
	if msg.From.Kind == message.AddressLocal {
		msg.From = message.Peer(b.self)
	}
	switch msg.To.Kind {
	case message.AddressPeer:
		return b.local.deliver(msg.To.Peer, msg)
	case message.AddressPeers:
		for _, id := range b.local.peers(b.self) {
			m := msg
			m.To = message.Peer(id)
			if err := b.local.deliver(id, m); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("transport: cannot route address kind %v over the peer fabric", msg.To.Kind)
	}
}
