// Package message defines the wire-level types exchanged between nodes,
// clients, and the driver: addresses, events, messages and
// requests/responses, per spec.md §3.
package message

import "go.uber.org/zap/zapcore"

// AddressKind discriminates an Address's variant.
type AddressKind int

const (
	// AddressLocal targets the node's own driver/task, never sent on the wire.
	AddressLocal AddressKind = iota
	// AddressClient targets whichever client submitted the originating request.
	AddressClient
	// AddressPeer targets a single named peer node.
	AddressPeer
	// AddressPeers broadcasts to every peer.
	AddressPeers
)

func (k AddressKind) String() string {
	switch k {
	case AddressLocal:
		return "local"
	case AddressClient:
		return "client"
	case AddressPeer:
		return "peer"
	case AddressPeers:
		return "peers"
	default:
		return "unknown"
	}
}

// Address identifies a message's sender or recipient. Peer is only set when
// Kind is AddressPeer.
type Address struct {
	Kind AddressKind
	Peer string
}

// Local, Client and Peers are the singleton non-Peer addresses.
var (
	Local  = Address{Kind: AddressLocal}
	Client = Address{Kind: AddressClient}
	Peers  = Address{Kind: AddressPeers}
)

// Peer constructs an Address targeting a single named peer.
func Peer(id string) Address { return Address{Kind: AddressPeer, Peer: id} }

// String returns a stable textual key for a, suitable for using Address as a
// map key (e.g. in vote-set bookkeeping).
func (a Address) String() string {
	if a.Kind == AddressPeer {
		return "peer:" + a.Peer
	}
	return a.Kind.String()
}

// MarshalLogObject implements zapcore.ObjectMarshaler so addresses can be
// logged structurally without allocating an intermediate string.
func (a Address) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", a.Kind.String())
	if a.Kind == AddressPeer {
		enc.AddString("peer", a.Peer)
	}
	return nil
}
