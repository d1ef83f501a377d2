// Package driver runs the asynchronous state-machine driver: a single
// long-running task that owns the MachineState, applies committed entries,
// and resolves pending client notifications and quorum-confirmed reads.
// Per spec.md §4.3.
package driver

import (
	"github.com/cobaltdb/raftkv/message"
	"github.com/cobaltdb/raftkv/raftlog"
)

// InstructionKind discriminates an Instruction's variant.
type InstructionKind int

const (
	InstructionAbort InstructionKind = iota
	InstructionApply
	InstructionNotify
	InstructionQuery
	InstructionStatus
	InstructionVote
)

// Instruction is a directive sent from the node task to the driver task.
type Instruction struct {
	Kind InstructionKind

	// Apply
	Entry raftlog.Entry

	// Notify / Query / Status / Vote
	ID      string
	Address message.Address

	// Query
	Command []byte
	Term    uint64
	Index   uint64
	Quorum  int

	// Status
	Status message.NodeStatus
}

// Abort constructs an abort-all instruction.
func Abort() Instruction { return Instruction{Kind: InstructionAbort} }

// Apply constructs an instruction to apply a newly committed entry.
func Apply(entry raftlog.Entry) Instruction { return Instruction{Kind: InstructionApply, Entry: entry} }

// Notify constructs an instruction registering interest in the response for
// entry index, to be delivered to address once applied.
func Notify(id string, address message.Address, index uint64) Instruction {
	return Instruction{Kind: InstructionNotify, ID: id, Address: address, Index: index}
}

// Query constructs a quorum-confirmed read instruction.
func Query(id string, address message.Address, command []byte, term, index uint64, quorum int) Instruction {
	return Instruction{Kind: InstructionQuery, ID: id, Address: address, Command: command, Term: term, Index: index, Quorum: quorum}
}

// StatusInstruction constructs an instruction requesting the driver fill in apply_index
// before the caller responds.
func StatusInstruction(id string, address message.Address, status message.NodeStatus) Instruction {
	return Instruction{Kind: InstructionStatus, ID: id, Address: address, Status: status}
}

// Vote constructs a quorum vote toward pending queries at or below index, in
// the voter's term.
func Vote(term, index uint64, address message.Address) Instruction {
	return Instruction{Kind: InstructionVote, Term: term, Index: index, Address: address}
}
