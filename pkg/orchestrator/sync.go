package orchestrator

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/replicante-io/replicore/pkg/client"
	"github.com/replicante-io/replicore/pkg/clusterview"
	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/events"
	"github.com/replicante-io/replicore/pkg/stream"
	"github.com/replicante-io/replicore/pkg/types"
)

// syncNode runs spec.md §4.6 step 3 for one discovered node: build a
// client, classify the agent/node outcome, diff against what is
// currently persisted, persist the result, and emit the right events.
func (w *Worker) syncNode(view *clusterview.ClusterView, spec types.ClusterSpec, dn types.DiscoveredNode, refreshID int64, logger zerolog.Logger) {
	clusterID := spec.ClusterID
	nc := client.NewNodeClient(dn.AgentAddress, &http.Client{Timeout: w.nodeTimeout})
	ctx, cancel := context.WithTimeout(context.Background(), w.nodeTimeout)
	defer cancel()

	agentInfoResp, agentErr := nc.AgentInfo(ctx)

	var status types.AgentStatus
	var datastoreResp *client.DatastoreInfoResponse
	var shards []client.ShardInfo
	switch {
	case agentErr != nil:
		status = types.AgentDown(agentErr.Error())
	default:
		var dsErr, shErr error
		datastoreResp, dsErr = nc.DatastoreInfo(ctx)
		shards, shErr = nc.Shards(ctx)
		switch {
		case dsErr != nil:
			status = types.NodeDown(dsErr.Error())
		case shErr != nil:
			status = types.NodeDown(shErr.Error())
		default:
			status = types.Up()
		}
	}

	agentKey := clusterID + "/" + dn.AgentAddress
	oldAgent, err := w.store.GetAgent(agentKey)
	var oldStatus *types.AgentStatus
	if err == nil {
		oldStatus = &oldAgent.Status
	} else if !isNotFound(err) {
		logger.Error().Err(err).Msg("failed to read previous agent status")
	}

	newAgent := &types.Agent{ClusterID: clusterID, Host: dn.AgentAddress, Status: status}
	if err := w.store.PutAgent(newAgent); err != nil {
		logger.Error().Err(err).Msg("failed to persist agent status")
		return
	}
	// Invariant 4 (spec.md §8): Up->Up must still emit AGENT_UP.
	if oldStatus == nil || !oldStatus.Equal(status) || status.Kind == types.AgentUp {
		w.emit(events.AgentTransitionEvent(oldStatus, status), newAgent, events.AgentStatusChanged{Before: oldStatus, After: status})
	}

	if agentErr != nil {
		// Agent itself unreachable: nothing else on this node can be
		// synced this pass.
		return
	}

	w.syncAgentInfo(clusterID, agentKey, agentInfoResp.Version, logger)

	// Node actions live on the agent's own API; sync them whenever the
	// agent responded, even if the datastore process itself is down.
	w.syncNodeActions(nc, view, clusterID, dn.NodeID, refreshID, logger)

	if status.Kind != types.AgentUp {
		return
	}

	w.syncNodeRecord(clusterID, dn.NodeID, datastoreResp, logger)
	w.syncShards(clusterID, dn.NodeID, shards, logger)
}

func (w *Worker) syncAgentInfo(clusterID, agentKey string, version types.AgentVersion, logger zerolog.Logger) {
	oldInfo, err := w.store.GetAgentInfo(agentKey)
	var oldVersion *types.AgentVersion
	if err == nil {
		oldVersion = &oldInfo.Version
	} else if !isNotFound(err) {
		logger.Error().Err(err).Msg("failed to read previous agent info")
	}

	code := events.AgentInfoEvent(oldVersion, version)
	if code == "" {
		return
	}
	host := agentKey[len(clusterID)+1:]
	newInfo := &types.AgentInfo{ClusterID: clusterID, Host: host, Version: version}
	if err := w.store.PutAgentInfo(newInfo); err != nil {
		logger.Error().Err(err).Msg("failed to persist agent info")
		return
	}
	w.emit(code, newInfo, events.AgentInfoChangedPayload{Before: oldVersion, After: version})
}

func (w *Worker) syncNodeRecord(clusterID, nodeID string, info *client.DatastoreInfoResponse, logger zerolog.Logger) {
	if info == nil {
		return
	}
	nodeKey := clusterID + "/" + nodeID
	oldNode, err := w.store.GetNode(nodeKey)
	var oldPtr *types.Node
	if err == nil {
		oldPtr = oldNode
	} else if !isNotFound(err) {
		logger.Error().Err(err).Msg("failed to read previous node record")
	}

	newNode := &types.Node{
		ClusterID:  clusterID,
		NodeID:     nodeID,
		Kind:       info.Kind,
		Version:    info.Version,
		Attributes: info.Attributes,
		Status:     info.Status,
	}
	code := events.NodeEvent(oldPtr, newNode)
	if err := w.store.PutNode(newNode); err != nil {
		logger.Error().Err(err).Msg("failed to persist node record")
		return
	}
	if code != "" {
		w.emit(code, newNode, events.NodeChangedPayload{Before: oldPtr, After: newNode})
	}
}

func (w *Worker) syncShards(clusterID, nodeID string, shards []client.ShardInfo, logger zerolog.Logger) {
	for _, si := range shards {
		key := clusterID + "/" + nodeID + "/" + si.ShardID
		oldShard, err := w.store.GetShard(key)
		var oldPtr *types.Shard
		if err == nil {
			oldPtr = oldShard
		} else if !isNotFound(err) {
			logger.Error().Err(err).Msg("failed to read previous shard record")
		}

		newShard := &types.Shard{
			ClusterID:    clusterID,
			NodeID:       nodeID,
			ShardID:      si.ShardID,
			Role:         si.Role,
			CommitOffset: si.CommitOffset,
		}
		if oldPtr != nil {
			// Lag is synthesised by the aggregate step, not reported by
			// the node; carry the last computed value forward so an
			// attribute-only sync does not discard it.
			newShard.Lag = oldPtr.Lag
		}

		attrChanged := events.ShardAttributeChanged(oldPtr, newShard)
		if err := w.store.PutShard(newShard); err != nil {
			logger.Error().Err(err).Str("shard", key).Msg("failed to persist shard record")
			continue
		}
		if attrChanged {
			w.emit(events.ShardAllocationChanged, newShard, events.ShardChangedPayload{Before: oldPtr, After: newShard})
		}
	}
}

// emit builds and appends an event record, logging (not failing) on error
// since per-node/per-record event emission problems should not abort the
// whole orchestration pass (spec.md §5 propagation policy).
func (w *Worker) emit(code events.Code, p stream.Partitioned, payload interface{}) {
	record, err := events.New(code, p.PartitionKey(), payload)
	if err != nil {
		return
	}
	if err := w.stream.Append(record, p); err != nil {
		return
	}
}

func isNotFound(err error) bool {
	var nf *corerr.NotFound
	return errors.As(err, &nf)
}
