package kvsm

import (
	"sync"

	"github.com/cobaltdb/raftkv/errors"
	"github.com/cobaltdb/raftkv/mvcc"
)

// StateMachine is the MVCC-backed MachineState driving the replicated key
// space. Mutate commands run each in their own auto-committing transaction
// unless they reference an explicitly begun one; Query reads against a
// fresh read-only snapshot of current committed state, or through an open
// transaction when the command names one.
type StateMachine struct {
	mu           sync.Mutex
	engine       *mvcc.Engine
	appliedIndex uint64
	open         map[uint64]*mvcc.Transaction
}

// New constructs a StateMachine over engine, starting as if no entries had
// ever been applied.
func New(engine *mvcc.Engine) *StateMachine {
	return &StateMachine{engine: engine, open: map[uint64]*mvcc.Transaction{}}
}

// AppliedIndex implements driver.MachineState.
func (s *StateMachine) AppliedIndex() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appliedIndex
}

// Mutate implements driver.MachineState.
func (s *StateMachine) Mutate(index uint64, command []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.mutate(command)
	s.appliedIndex = index
	return out, err
}

func (s *StateMachine) mutate(command []byte) ([]byte, error) {
	var cmd Command
	if err := decode(command, &cmd); err != nil {
		return nil, errors.Internalf("kvsm: corrupt command: %v", err)
	}

	switch cmd.Kind {
	case CmdSet:
		txn, err := s.engine.Begin(mvcc.ReadWrite())
		if err != nil {
			return nil, err
		}
		if err := txn.Set(cmd.Key, cmd.Value); err != nil {
			txn.Rollback()
			return nil, err
		}
		return nil, txn.Commit()

	case CmdDelete:
		txn, err := s.engine.Begin(mvcc.ReadWrite())
		if err != nil {
			return nil, err
		}
		if err := txn.Delete(cmd.Key); err != nil {
			txn.Rollback()
			return nil, err
		}
		return nil, txn.Commit()

	case CmdTxnBegin:
		txn, err := s.engine.Begin(cmd.mode())
		if err != nil {
			return nil, err
		}
		s.open[txn.ID()] = txn
		return encode(TxnBeginResult{ID: txn.ID()}), nil

	case CmdTxnCommit:
		txn, err := s.txnFor(cmd.TxnID)
		if err != nil {
			return nil, err
		}
		delete(s.open, cmd.TxnID)
		return nil, txn.Commit()

	case CmdTxnRollback:
		txn, err := s.txnFor(cmd.TxnID)
		if err != nil {
			return nil, err
		}
		delete(s.open, cmd.TxnID)
		return nil, txn.Rollback()

	case CmdTxnSet:
		txn, err := s.txnFor(cmd.TxnID)
		if err != nil {
			return nil, err
		}
		return nil, txn.Set(cmd.Key, cmd.Value)

	case CmdTxnDelete:
		txn, err := s.txnFor(cmd.TxnID)
		if err != nil {
			return nil, err
		}
		return nil, txn.Delete(cmd.Key)

	default:
		return nil, errors.Valuef("kvsm: %v is not a mutate command", cmd.Kind)
	}
}

// txnFor resolves a transaction id to an open *mvcc.Transaction, falling
// back to Engine.Resume for one this state machine instance never opened
// itself (e.g. after a restart or when forwarded from a different replica).
func (s *StateMachine) txnFor(id uint64) (*mvcc.Transaction, error) {
	if txn, ok := s.open[id]; ok {
		return txn, nil
	}
	txn, err := s.engine.Resume(id)
	if err != nil {
		return nil, err
	}
	s.open[id] = txn
	return txn, nil
}

// Query implements driver.MachineState.
func (s *StateMachine) Query(command []byte) ([]byte, error) {
	var cmd Command
	if err := decode(command, &cmd); err != nil {
		return nil, errors.Internalf("kvsm: corrupt command: %v", err)
	}

	txn, err := s.readTxn(cmd)
	if err != nil {
		return nil, err
	}
	if cmd.TxnID == 0 {
		defer txn.Rollback()
	}

	switch cmd.Kind {
	case CmdGet:
		value, ok, err := txn.Get(cmd.Key)
		if err != nil {
			return nil, err
		}
		return encode(GetResult{Found: ok, Value: value}), nil

	case CmdScan:
		pairs, err := txn.Scan(cmd.Start, cmd.End)
		if err != nil {
			return nil, err
		}
		return encode(ScanResult{Pairs: toScanPairs(pairs)}), nil

	case CmdScanPrefix:
		pairs, err := txn.ScanPrefix(cmd.Prefix)
		if err != nil {
			return nil, err
		}
		return encode(ScanResult{Pairs: toScanPairs(pairs)}), nil

	default:
		return nil, errors.Valuef("kvsm: %v is not a query command", cmd.Kind)
	}
}

// readTxn picks the transaction a query reads through: an explicitly open
// one if TxnID references it, otherwise a fresh read-only snapshot of
// current committed state.
func (s *StateMachine) readTxn(cmd Command) (*mvcc.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd.TxnID != 0 {
		return s.txnFor(cmd.TxnID)
	}
	return s.engine.Begin(mvcc.ReadOnly())
}

func toScanPairs(pairs []mvcc.Pair) []ScanPair {
	out := make([]ScanPair, len(pairs))
	for i, p := range pairs {
		out[i] = ScanPair{Key: p.Key, Value: p.Value}
	}
	return out
}
