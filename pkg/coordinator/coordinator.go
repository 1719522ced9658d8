package coordinator

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/replicante-io/replicore/pkg/corerr"
)

// Config holds the wiring needed to start a RaftCoordinator node,
// mirroring the teacher's manager.Config shape (node id, bind address,
// data directory).
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// RaftCoordinator backs the Coordinator contract (non-blocking locks and
// election candidate bookkeeping, spec.md §4.1/§4.2) with a replicated
// raft log, following the same Bootstrap/Join/Apply shape as the
// teacher's pkg/manager.Manager, trimmed to the coordination primitives
// this domain needs.
type RaftCoordinator struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft    *raft.Raft
	fsm     *coordFSM
	watches *watchRegistry
}

// New builds an unstarted RaftCoordinator; call Bootstrap or Join next.
func New(cfg Config) (*RaftCoordinator, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	c := &RaftCoordinator{
		nodeID:   cfg.NodeID,
		bindAddr: cfg.BindAddr,
		dataDir:  cfg.DataDir,
		fsm:      newCoordFSM(),
		watches:  newWatchRegistry(),
	}
	c.fsm.notify = c.watches.fire
	return c, nil
}

func (c *RaftCoordinator) newRaft() (*raft.Raft, *raft.NetworkTransport, error) {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(c.nodeID)
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", c.bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(c.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(c.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create stable store: %w", err)
	}
	r, err := raft.NewRaft(config, c.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("create raft: %w", err)
	}
	return r, transport, nil
}

// Bootstrap starts a brand-new single-node coordination cluster.
func (c *RaftCoordinator) Bootstrap() error {
	r, transport, err := c.newRaft()
	if err != nil {
		return err
	}
	c.raft = r

	cfg := raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(c.nodeID), Address: transport.LocalAddr()}},
	}
	if err := c.raft.BootstrapCluster(cfg).Error(); err != nil {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}
	return nil
}

// Join starts this node's raft instance and returns it ready for the
// existing leader to AddVoter; transport-level membership RPCs are out
// of scope here (spec.md §1 excludes the wire protocol between core
// processes), so the caller is expected to drive AddVoter out of band
// (e.g. an operator CLI talking to the current leader's AddVoter call).
func (c *RaftCoordinator) Join() error {
	r, _, err := c.newRaft()
	if err != nil {
		return err
	}
	c.raft = r
	return nil
}

// AddVoter admits a joining node into the cluster. Only the leader can do this.
func (c *RaftCoordinator) AddVoter(nodeID, addr string) error {
	if !c.IsLeader() {
		return fmt.Errorf("not the leader")
	}
	return c.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 10*time.Second).Error()
}

// IsLeader reports whether this node currently holds the raft leadership.
func (c *RaftCoordinator) IsLeader() bool {
	return c.raft != nil && c.raft.State() == raft.Leader
}

// Shutdown stops the raft instance.
func (c *RaftCoordinator) Shutdown() error {
	if c.raft == nil {
		return nil
	}
	return c.raft.Shutdown().Error()
}

// apply marshals and commits a command through raft, following the same
// shape as the teacher's manager.Manager.Apply.
func (c *RaftCoordinator) apply(op string, data interface{}) error {
	if c.raft == nil {
		return &corerr.Backend{Op: op, Err: fmt.Errorf("coordinator not started")}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return &corerr.Backend{Op: op, Err: err}
	}
	cmd := command{Op: op, Data: payload}
	raw, err := json.Marshal(cmd)
	if err != nil {
		return &corerr.Backend{Op: op, Err: err}
	}
	future := c.raft.Apply(raw, 5*time.Second)
	if err := future.Error(); err != nil {
		return &corerr.Backend{Op: op, Err: err}
	}
	if resp, ok := future.Response().(applyResult); ok && resp.err != nil {
		return resp.err
	}
	return nil
}

// Lock returns a handle to a named non-blocking lock (spec.md §4.1).
func (c *RaftCoordinator) Lock(name string) *Lock {
	return &Lock{name: name, coord: c}
}

// Election returns a handle to a named election's candidate table
// (spec.md §4.2). ttl bounds how long a candidate may go without
// Refresh before it is treated as dead, the analogue of a ZooKeeper
// ephemeral node's session timeout.
func (c *RaftCoordinator) Election(name string, ttl time.Duration) *Candidate {
	return &Candidate{election: name, ttl: ttl, coord: c}
}
