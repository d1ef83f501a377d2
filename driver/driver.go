package driver

import (
	"context"
	"sort"

	"go.uber.org/zap"

	errs "github.com/cobaltdb/raftkv/errors"
	"github.com/cobaltdb/raftkv/message"
	"github.com/cobaltdb/raftkv/raftlog"
)

// Driver owns a MachineState and is the sole writer to it: the node task
// that drives consensus never touches the state machine directly. It
// receives Instructions and emits client-response Messages.
type Driver struct {
	state        MachineState
	appliedIndex uint64
	notify       map[uint64]notifyEntry
	queries      map[uint64]map[string]*pendingQuery
	log          *zap.SugaredLogger
}

// New constructs a Driver over state. Replay should be called before Run to
// bring the state machine up to date with any previously committed entries.
func New(state MachineState, log *zap.SugaredLogger) *Driver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Driver{
		state:   state,
		notify:  map[uint64]notifyEntry{},
		queries: map[uint64]map[string]*pendingQuery{},
		log:     log,
	}
}

// AppliedIndex returns the last index the driver has applied.
func (d *Driver) AppliedIndex() uint64 { return d.appliedIndex }

// Replay applies every log entry beyond the state machine's own recorded
// applied index, bringing the driver's bookkeeping in sync on startup. A
// non-Internal mutate error is tolerated (the log is the source of truth);
// an Internal error aborts replay.
func (d *Driver) Replay(ctx context.Context, rlog *raftlog.Log) error {
	d.appliedIndex = d.state.AppliedIndex()
	start := d.appliedIndex + 1
	var fatal error
	rlog.Scan(ctx, start, 0, func(e raftlog.Entry) bool {
		if e.Command != nil {
			if _, err := d.state.Mutate(e.Index, e.Command); err != nil {
				if errs.Is(err, errs.Internal) {
					fatal = err
					return false
				}
				d.log.Warnw("replay: tolerated mutate error", "index", e.Index, "error", err)
			}
		}
		d.appliedIndex = e.Index
		return true
	})
	return fatal
}

// workQueueSize bounds the internal queue between instruction reception and
// the worker goroutine that actually calls into the state machine, so a slow
// Mutate/Query never backs up delivery from in into Run's own select loop.
const workQueueSize = 256

// Run drains in until it is closed or ctx is done, handing each Instruction
// to a dedicated worker goroutine that calls into the state machine and
// forwards resulting Messages to out. Reception from in is decoupled from
// that worker so a slow Mutate/Query blocks only the work queue, never the
// instruction channel itself. Returns the Internal error that halted the
// driver, if any.
func (d *Driver) Run(ctx context.Context, in <-chan Instruction, out chan<- message.Message) error {
	work := make(chan Instruction, workQueueSize)
	workErr := make(chan error, 1)
	go d.runWorker(ctx, work, out, workErr)

	for {
		select {
		case <-ctx.Done():
			close(work)
			return nil
		case err := <-workErr:
			return err
		case instr, ok := <-in:
			if !ok {
				close(work)
				select {
				case err := <-workErr:
					return err
				case <-ctx.Done():
					return nil
				}
			}
			select {
			case work <- instr:
			case <-ctx.Done():
				close(work)
				return nil
			}
		}
	}
}

// runWorker is the sole goroutine that ever calls Step once Run has started,
// so the state machine itself is still driven single-writer even though
// instruction reception and state-machine execution run on separate
// goroutines.
func (d *Driver) runWorker(ctx context.Context, work <-chan Instruction, out chan<- message.Message, workErr chan<- error) {
	for instr := range work {
		msgs, err := d.Step(instr)
		if err != nil {
			d.log.Errorw("driver halted", "error", err)
			workErr <- err
			return
		}
		for _, m := range msgs {
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}
	workErr <- nil
}

// Step executes a single Instruction, returning any Messages it produces. A
// non-nil error is always an Internal error and is fatal to the driver.
func (d *Driver) Step(instr Instruction) ([]message.Message, error) {
	switch instr.Kind {
	case InstructionAbort:
		return d.handleAbort(), nil
	case InstructionApply:
		return d.handleApply(instr.Entry)
	case InstructionNotify:
		return d.handleNotify(instr.ID, instr.Address, instr.Index), nil
	case InstructionQuery:
		d.handleQuery(instr.ID, instr.Address, instr.Command, instr.Term, instr.Index, instr.Quorum)
		return nil, nil
	case InstructionStatus:
		return d.handleStatus(instr.ID, instr.Address, instr.Status), nil
	case InstructionVote:
		return d.handleVote(instr.Term, instr.Index, instr.Address)
	default:
		return nil, errs.Internalf("driver: unknown instruction kind %v", instr.Kind)
	}
}

func (d *Driver) handleApply(entry raftlog.Entry) ([]message.Message, error) {
	var out []message.Message
	result := message.Ok(message.State(nil))
	if entry.Command != nil {
		res, err := d.state.Mutate(entry.Index, entry.Command)
		if err != nil {
			if errs.Is(err, errs.Internal) {
				return nil, err
			}
			result = message.ErrResult(err)
		} else {
			result = message.Ok(message.State(res))
		}
	}
	if ne, ok := d.notify[entry.Index]; ok {
		out = append(out, message.Message{To: ne.address, Event: message.ClientResponseEvent(ne.id, result)})
		delete(d.notify, entry.Index)
	}
	d.appliedIndex = entry.Index

	ready, err := d.executeReadyQueries()
	if err != nil {
		return nil, err
	}
	return append(out, ready...), nil
}

func (d *Driver) handleNotify(id string, address message.Address, index uint64) []message.Message {
	if index > d.appliedIndex {
		d.notify[index] = notifyEntry{id: id, address: address}
		return nil
	}
	return []message.Message{{To: address, Event: message.ClientResponseEvent(id, message.ErrResult(errs.Abort))}}
}

func (d *Driver) handleQuery(id string, address message.Address, command []byte, term, index uint64, quorum int) {
	if d.queries[index] == nil {
		d.queries[index] = map[string]*pendingQuery{}
	}
	d.queries[index][id] = newPendingQuery(id, address, command, term, quorum)
}

func (d *Driver) handleVote(term, index uint64, address message.Address) ([]message.Message, error) {
	key := address.String()
	for idx, qs := range d.queries {
		if idx > index {
			continue
		}
		for _, q := range qs {
			if term >= q.term {
				q.votes[key] = struct{}{}
			}
		}
	}
	return d.executeReadyQueries()
}

func (d *Driver) handleStatus(id string, address message.Address, status message.NodeStatus) []message.Message {
	status.ApplyIndex = d.appliedIndex
	return []message.Message{{To: address, Event: message.ClientResponseEvent(id, message.Ok(message.StatusResponse(status)))}}
}

func (d *Driver) handleAbort() []message.Message {
	var out []message.Message
	for _, ne := range d.notify {
		out = append(out, message.Message{To: ne.address, Event: message.ClientResponseEvent(ne.id, message.ErrResult(errs.Abort))})
	}
	d.notify = map[uint64]notifyEntry{}
	for _, qs := range d.queries {
		for _, q := range qs {
			out = append(out, message.Message{To: q.address, Event: message.ClientResponseEvent(q.id, message.ErrResult(errs.Abort))})
		}
	}
	d.queries = map[uint64]map[string]*pendingQuery{}
	return out
}

// executeReadyQueries resolves every pending query at or below the applied
// index that has reached quorum, in ascending index order, reclaiming empty
// per-index buckets as it goes.
func (d *Driver) executeReadyQueries() ([]message.Message, error) {
	var indices []uint64
	for idx := range d.queries {
		if idx <= d.appliedIndex {
			indices = append(indices, idx)
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	var out []message.Message
	for _, idx := range indices {
		qs := d.queries[idx]
		var ids []string
		for id := range qs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			q := qs[id]
			if !q.ready() {
				continue
			}
			res, err := d.state.Query(q.command)
			if err != nil {
				if errs.Is(err, errs.Internal) {
					return nil, err
				}
				out = append(out, message.Message{To: q.address, Event: message.ClientResponseEvent(q.id, message.ErrResult(err))})
			} else {
				out = append(out, message.Message{To: q.address, Event: message.ClientResponseEvent(q.id, message.Ok(message.State(res)))})
			}
			delete(qs, id)
		}
		if len(qs) == 0 {
			delete(d.queries, idx)
		}
	}
	return out, nil
}
