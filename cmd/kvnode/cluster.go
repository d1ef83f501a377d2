package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cobaltdb/raftkv/client"
	"github.com/cobaltdb/raftkv/driver"
	"github.com/cobaltdb/raftkv/kv"
	"github.com/cobaltdb/raftkv/kvsm"
	"github.com/cobaltdb/raftkv/logstore"
	"github.com/cobaltdb/raftkv/message"
	"github.com/cobaltdb/raftkv/mvcc"
	"github.com/cobaltdb/raftkv/node"
	"github.com/cobaltdb/raftkv/raftlog"
	"github.com/cobaltdb/raftkv/transport"
)

// tickInterval is how often each replica's Tick fires. Real deployments
// would tie this to wall-clock heartbeat/election timing; a short interval
// keeps the demo cluster converging quickly.
const tickInterval = 20 * time.Millisecond

// replica wires one Node's consensus core to its own log, driver and state
// machine, and runs its event loop: the same role the teacher's Server
// plays, generalized from a single persistent-leader/follower loop to the
// full Follower/Candidate/Leader machine with an MVCC state machine behind
// it instead of a flat map.
type replica struct {
	id  string
	n   *node.Node
	log *raftlog.Log

	bus      *transport.NodeBus
	inbound  chan message.Message
	outbound chan message.Message

	driverIn  chan driver.Instruction
	driverOut chan message.Message
	drv       *driver.Driver

	clientReqs chan client.Request

	logger *zap.SugaredLogger
}

// newReplica constructs a replica named id with the given peers (excluding
// itself), registered on bus for peer delivery.
func newReplica(id string, peers []string, bus *transport.Local, logger *zap.SugaredLogger, seed int64) *replica {
	store := logstore.NewMemory()
	rlog := raftlog.New(store)
	engine := mvcc.New(kv.New(kv.DefaultOrder))
	sm := kvsm.New(engine)

	r := &replica{
		id:         id,
		log:        rlog,
		inbound:    make(chan message.Message, 256),
		outbound:   make(chan message.Message, 256),
		driverIn:   make(chan driver.Instruction, 256),
		driverOut:  make(chan message.Message, 256),
		clientReqs: make(chan client.Request, 16),
		logger:     logger.With("node", id),
	}
	r.bus = bus.Register(id, r.inbound)
	r.drv = driver.New(sm, r.logger.Named("driver"))
	r.n = node.New(id, peers, rlog, r.outbound, r.driverIn, r.logger.Named("node"), seed)
	return r
}

// client returns a façade for submitting requests to this replica directly
// (bypassing proxy-to-leader network hops, since this is one process).
func (r *replica) client() *client.Client { return client.New(r.clientReqs) }

// run drives the replica's event loop until ctx is cancelled: peer
// messages, client requests, the driver's own output messages, and a
// periodic tick, exactly the shape of the teacher's server select-loop
// generalized across more channels.
func (r *replica) run(ctx context.Context) {
	pending := map[string]chan message.Result{}

	go func() {
		if err := r.drv.Run(ctx, r.driverIn, r.driverOut); err != nil {
			r.logger.Errorw("driver stopped", "error", err)
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	deliver := func(msg message.Message) {
		switch msg.To.Kind {
		case message.AddressClient:
			if ch, ok := pending[msg.Event.RequestID]; ok {
				delete(pending, msg.Event.RequestID)
				ch <- msg.Event.Result
			}
		case message.AddressPeer, message.AddressPeers:
			if err := r.bus.Send(msg); err != nil {
				r.logger.Debugw("send failed", "error", err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			node.Tick(r.n)
		case msg := <-r.inbound:
			node.Step(r.n, msg)
		case req := <-r.clientReqs:
			pending[req.ID] = req.Response
			node.Step(r.n, message.Message{Term: r.n.Term, From: message.Client, To: message.Local, Event: req.Event})
		case msg := <-r.outbound:
			deliver(msg)
		case msg := <-r.driverOut:
			deliver(msg)
		}
	}
}

// cluster is a set of replicas running in one process, wired together over
// an in-memory transport.Local fabric in lieu of a real network (spec.md §1
// places wire transport out of scope).
type cluster struct {
	replicas []*replica
}

// newCluster boots n replicas named node-0..node-n-1, each aware of every
// other as a peer.
func newCluster(n int, logger *zap.SugaredLogger) *cluster {
	bus := transport.NewLocal()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("node-%d", i)
	}

	c := &cluster{}
	for i, id := range ids {
		peers := make([]string, 0, n-1)
		for j, other := range ids {
			if j != i {
				peers = append(peers, other)
			}
		}
		c.replicas = append(c.replicas, newReplica(id, peers, bus, logger, int64(i+1)))
	}
	return c
}

// run starts every replica's event loop and blocks until ctx is cancelled.
func (c *cluster) run(ctx context.Context) {
	done := make(chan struct{}, len(c.replicas))
	for _, r := range c.replicas {
		r := r
		go func() {
			r.run(ctx)
			done <- struct{}{}
		}()
	}
	for range c.replicas {
		<-done
	}
}

// client returns a façade bound to replica 0. In a single-process demo
// cluster any replica works identically (requests not addressed to the
// current leader are proxied internally), so the choice is arbitrary.
func (c *cluster) client() *client.Client { return c.replicas[0].client() }
