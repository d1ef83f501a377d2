// Package kvsm is the MVCC-backed MachineState that gives the replicated
// log an actual transactional key-value surface, applying spec.md §6's
// MachineState contract on top of the mvcc package.
package kvsm

import (
	"github.com/ugorji/go/codec"

	"github.com/cobaltdb/raftkv/mvcc"
)

var msgpackHandle = &codec.MsgpackHandle{}

func encode(v interface{}) []byte {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, msgpackHandle).Encode(v); err != nil {
		panic("kvsm: encode: " + err.Error())
	}
	return buf
}

func decode(data []byte, v interface{}) error {
	return codec.NewDecoderBytes(data, msgpackHandle).Decode(v)
}

// CommandKind discriminates a Command's variant.
type CommandKind int

const (
	CmdSet CommandKind = iota
	CmdDelete
	CmdTxnBegin
	CmdTxnCommit
	CmdTxnRollback
	CmdTxnSet
	CmdTxnDelete
	CmdGet
	CmdScan
	CmdScanPrefix
)

// Command is the wire format for every Mutate/Query command this state
// machine accepts.
type Command struct {
	Kind CommandKind `codec:"kind"`

	Key   []byte `codec:"key,omitempty"`
	Value []byte `codec:"value,omitempty"`

	TxnID    uint64 `codec:"txn_id,omitempty"`
	ModeKind int    `codec:"mode_kind,omitempty"`
	ModeVer  uint64 `codec:"mode_version,omitempty"`

	Start  []byte `codec:"start,omitempty"`
	End    []byte `codec:"end,omitempty"`
	Prefix []byte `codec:"prefix,omitempty"`
}

// Encode serializes c for submission as a raftlog command.
func (c Command) Encode() []byte { return encode(c) }

// Set constructs an auto-committing point write.
func Set(key, value []byte) Command { return Command{Kind: CmdSet, Key: key, Value: value} }

// Delete constructs an auto-committing point delete.
func Delete(key []byte) Command { return Command{Kind: CmdDelete, Key: key} }

// TxnBegin constructs a command that starts a transaction in the given
// mode, returning its id.
func TxnBegin(mode mvcc.Mode) Command {
	return Command{Kind: CmdTxnBegin, ModeKind: int(mode.Kind), ModeVer: mode.Version}
}

// TxnCommit constructs a command that commits transaction id.
func TxnCommit(id uint64) Command { return Command{Kind: CmdTxnCommit, TxnID: id} }

// TxnRollback constructs a command that rolls back transaction id.
func TxnRollback(id uint64) Command { return Command{Kind: CmdTxnRollback, TxnID: id} }

// TxnSet constructs a write within an open transaction.
func TxnSet(id uint64, key, value []byte) Command {
	return Command{Kind: CmdTxnSet, TxnID: id, Key: key, Value: value}
}

// TxnDelete constructs a delete within an open transaction.
func TxnDelete(id uint64, key []byte) Command {
	return Command{Kind: CmdTxnDelete, TxnID: id, Key: key}
}

// Get constructs a point read against current committed state, or against
// an explicitly begun transaction if an option attaches one.
func Get(key []byte, opts ...func(*Command)) Command {
	return applyOpts(Command{Kind: CmdGet, Key: key}, opts)
}

// Scan constructs a range read.
func Scan(start, end []byte, opts ...func(*Command)) Command {
	return applyOpts(Command{Kind: CmdScan, Start: start, End: end}, opts)
}

// ScanPrefix constructs a prefix read.
func ScanPrefix(prefix []byte, opts ...func(*Command)) Command {
	return applyOpts(Command{Kind: CmdScanPrefix, Prefix: prefix}, opts)
}

func applyOpts(c Command, opts []func(*Command)) Command {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// mode reconstructs the mvcc.Mode encoded in a TxnBegin command.
func (c Command) mode() mvcc.Mode {
	return mvcc.Mode{Kind: mvcc.ModeKind(c.ModeKind), Version: c.ModeVer}
}

// GetResult is the decoded Query result for CmdGet.
type GetResult struct {
	Found bool   `codec:"found"`
	Value []byte `codec:"value,omitempty"`
}

// ScanResult is the decoded Query result for CmdScan/CmdScanPrefix.
type ScanResult struct {
	Pairs []ScanPair `codec:"pairs"`
}

// ScanPair is a single decoded key/value result.
type ScanPair struct {
	Key   []byte `codec:"key"`
	Value []byte `codec:"value"`
}

// TxnBeginResult is the decoded Mutate result for CmdTxnBegin.
type TxnBeginResult struct {
	ID uint64 `codec:"id"`
}

// DecodeGetResult decodes a Query response for a Get command.
func DecodeGetResult(data []byte) (GetResult, error) {
	var r GetResult
	err := decode(data, &r)
	return r, err
}

// DecodeScanResult decodes a Query response for a Scan/ScanPrefix command.
func DecodeScanResult(data []byte) (ScanResult, error) {
	var r ScanResult
	err := decode(data, &r)
	return r, err
}

// DecodeTxnBeginResult decodes a Mutate response for a TxnBegin command.
func DecodeTxnBeginResult(data []byte) (TxnBeginResult, error) {
	var r TxnBeginResult
	err := decode(data, &r)
	return r, err
}
