// Package transport carries Messages between node instances. spec.md places
// wire serialization and RPC framing out of scope (§1); Bus is the minimal
// seam the consensus core needs, and Local is an in-memory implementation
// wiring multiple Nodes running in the same process together, standing in
// for a real network transport in tests and the demo CLI.
package transport

import "github.com/cobaltdb/raftkv/message"

// Bus delivers outbound Messages to their destination.
type Bus interface {
	// Send routes msg based on its To address: a single peer or a
	// broadcast to all peers. NodeBus returns an error for Client- and
	// Local-addressed messages; it does not route them.
	Send(msg message.Message) error
}

// BusFunc adapts a plain function to a Bus.
type BusFunc func(message.Message) error

func (f BusFunc) Send(msg message.Message) error { return f(msg) }
