package orchestrator

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/replicante-io/replicore/pkg/clusterview"
	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/log"
	"github.com/replicante-io/replicore/pkg/metrics"
	"github.com/replicante-io/replicore/pkg/queue"
	"github.com/replicante-io/replicore/pkg/storage"
	"github.com/replicante-io/replicore/pkg/stream"
	"github.com/replicante-io/replicore/pkg/types"
)

// ClusterLock is the subset of *coordinator.Lock the orchestrator needs.
// coordinator.Lock already implements this (Acquire/Release/Owner), so
// production wiring passes coord.Lock directly as a LockFactory; tests
// can substitute an in-memory fake without bootstrapping raft.
type ClusterLock interface {
	Acquire(owner string) error
	Release(owner string) error
	Owner() string
}

// LockFactory builds the ClusterLock for one cluster's orchestration
// lock name, spec.md §4.6 step 1: L("cluster.orchestrate."+cluster_id, self).
type LockFactory func(name string) ClusterLock

// Worker is the queue.Handler for the orchestrate_cluster queue (spec.md
// §4.6): the Cluster Orchestrator. One HandleTask call is one
// orchestration pass for one cluster.
type Worker struct {
	store       storage.PrimaryStore
	stream      *stream.BoltStream
	lockFactory LockFactory
	ownerID     string
	nodeTimeout time.Duration
}

// NewWorker builds a Worker. ownerID identifies this process as a lock
// owner (spec.md §4.1); nodeTimeout bounds every per-node HTTP call
// (spec.md §5).
func NewWorker(store storage.PrimaryStore, st *stream.BoltStream, lockFactory LockFactory, ownerID string, nodeTimeout time.Duration) *Worker {
	return &Worker{store: store, stream: st, lockFactory: lockFactory, ownerID: ownerID, nodeTimeout: nodeTimeout}
}

// HandleTask is the queue.Handler for the orchestrate_cluster queue.
func (w *Worker) HandleTask(task queue.Task, ack queue.Ack) {
	logger := log.WithComponent("orchestrator-worker")

	var payload queue.OrchestrateClusterPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		logger.Error().Err(err).Msg("malformed orchestrate_cluster payload")
		_ = ack.Skip()
		return
	}
	logger = log.WithCluster(payload.NsID, payload.ClusterID)

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.OrchestrationDuration)

	lockName := "cluster.orchestrate." + payload.ClusterID
	lock := w.lockFactory(lockName)
	if err := lock.Acquire(w.ownerID); err != nil {
		var held *corerr.LockHeld
		if errors.As(err, &held) {
			// Another replica is already working this cluster: per
			// spec.md §4.6 step 1, this is a skip, not a failure.
			metrics.OrchestrationSkippedTotal.WithLabelValues(payload.ClusterID).Inc()
			logger.Debug().Str("owner", held.Owner).Msg("cluster lock held elsewhere, skipping pass")
			_ = ack.Success()
			return
		}
		logger.Error().Err(err).Msg("failed to acquire cluster lock")
		_ = ack.Fail()
		return
	}
	defer func() {
		if err := lock.Release(w.ownerID); err != nil {
			logger.Warn().Err(err).Msg("failed to release cluster lock")
		}
	}()

	if err := w.orchestrate(payload.NsID, payload.ClusterID, lock, logger); err != nil {
		var lost *corerr.LockLost
		if errors.As(err, &lost) {
			logger.Warn().Msg("cluster lock lost mid-orchestration, aborting pass")
		} else {
			logger.Error().Err(err).Msg("orchestration pass failed")
		}
		_ = ack.Fail()
		return
	}
	_ = ack.Success()
}

// orchestrate is one full pass over spec.md §4.6 steps 2-7 for one
// cluster; the lock is acquired/released by the caller.
func (w *Worker) orchestrate(nsID, clusterID string, lock ClusterLock, logger zerolog.Logger) error {
	spec, err := w.store.GetClusterSpec(nsID, clusterID)
	if err != nil {
		return err
	}
	discovery, err := w.store.GetClusterDiscovery(nsID, clusterID)
	if err != nil {
		var nf *corerr.NotFound
		if !errors.As(err, &nf) {
			return err
		}
		discovery = &types.ClusterDiscovery{NsID: nsID, ClusterID: clusterID}
	}

	view, err := w.buildView(*spec, *discovery)
	if err != nil {
		return err
	}

	// refresh_id (spec.md §3): a monotonically-increasing per-cluster
	// synchronisation generation. A wall-clock nanosecond stamp satisfies
	// monotonicity within one process without needing separate
	// persistent counter state, since it is only ever compared within
	// the single pass that produced it.
	refreshID := time.Now().UnixNano()

	for _, dn := range discovery.Nodes {
		nodeLogger := logger.With().Str("node_id", dn.NodeID).Logger()
		w.syncNode(view, *spec, dn, refreshID, nodeLogger)
		if lockLost(lock, w.ownerID) {
			return &corerr.LockLost{Name: "cluster.orchestrate." + clusterID}
		}
	}

	if err := w.progressOrchestratorActions(clusterID, logger); err != nil {
		return err
	}
	if lockLost(lock, w.ownerID) {
		return &corerr.LockLost{Name: "cluster.orchestrate." + clusterID}
	}

	if err := w.aggregate(clusterID, logger); err != nil {
		return err
	}
	if lockLost(lock, w.ownerID) {
		return &corerr.LockLost{Name: "cluster.orchestrate." + clusterID}
	}

	spec.NextOrchestrate = time.Now().Add(spec.Interval)
	if err := w.store.PutClusterSpec(spec); err != nil {
		return err
	}
	return nil
}

// lockLost reports whether the lock's current owner is no longer owner,
// polled before a persist, per spec.md §4.6's "lock check" bullet.
func lockLost(lock ClusterLock, owner string) bool {
	return lock.Owner() != owner
}

// buildView assembles the "current" ClusterView from what is already
// persisted, before this pass writes anything (spec.md §4.6 step 2).
func (w *Worker) buildView(spec types.ClusterSpec, discovery types.ClusterDiscovery) (*clusterview.ClusterView, error) {
	b := clusterview.NewBuilder(spec, discovery)

	agents, err := w.store.ListAgents(spec.ClusterID)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		if err := b.Agent(a); err != nil {
			return nil, err
		}
	}

	infos, err := w.store.ListAgentInfo(spec.ClusterID)
	if err != nil {
		return nil, err
	}
	for _, a := range infos {
		if err := b.AgentInfo(a); err != nil {
			return nil, err
		}
	}

	nodes, err := w.store.ListNodes(spec.ClusterID)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if err := b.Node(n); err != nil {
			return nil, err
		}
	}

	shards, err := w.store.ListShards(spec.ClusterID)
	if err != nil {
		return nil, err
	}
	for _, s := range shards {
		if err := b.Shard(s); err != nil {
			return nil, err
		}
	}

	actions, err := w.store.ListUnfinishedNodeActions(spec.ClusterID)
	if err != nil {
		return nil, err
	}
	for _, a := range actions {
		if err := b.Action(a); err != nil {
			return nil, err
		}
	}

	return b.Build(), nil
}
