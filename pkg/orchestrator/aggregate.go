package orchestrator

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/replicante-io/replicore/pkg/events"
	"github.com/replicante-io/replicore/pkg/metrics"
	"github.com/replicante-io/replicore/pkg/types"
)

// aggregate runs spec.md §4.6 step 5: recompute ClusterMeta from what
// step 3 just persisted, and synthesise secondary shard lag.
func (w *Worker) aggregate(clusterID string, logger zerolog.Logger) error {
	agents, err := w.store.ListAgents(clusterID)
	if err != nil {
		return err
	}
	nodes, err := w.store.ListNodes(clusterID)
	if err != nil {
		return err
	}
	shards, err := w.store.ListShards(clusterID)
	if err != nil {
		return err
	}

	meta := &types.ClusterMeta{
		ClusterID:   clusterID,
		Nodes:       len(nodes),
		ShardsCount: len(shards),
	}
	for _, a := range agents {
		switch a.Status.Kind {
		case types.AgentNodeDown:
			meta.NodesDown++
		case types.AgentAgentDown:
			meta.AgentsDown++
		}
	}

	kindSet := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		kindSet[n.Kind] = true
	}
	for k := range kindSet {
		meta.Kinds = append(meta.Kinds, k)
	}
	sort.Strings(meta.Kinds)

	w.synthesizeShardLag(shards, logger)

	for _, s := range shards {
		if s.Role.Kind == types.ShardPrimary {
			meta.ShardsPrimaries++
		}
	}

	if err := w.store.PutClusterMeta(meta); err != nil {
		return err
	}
	metrics.ClusterMetaShards.WithLabelValues(clusterID, "primary").Set(float64(meta.ShardsPrimaries))
	metrics.ClusterMetaShards.WithLabelValues(clusterID, "total").Set(float64(meta.ShardsCount))
	return nil
}

// synthesizeShardLag computes secondary shard lag as primary_offset -
// shard_offset, iff both report the same Seconds unit and the shard id
// has exactly one primary replica (spec.md §4.6 step 5). Shards with
// zero or many primaries are left untouched.
func (w *Worker) synthesizeShardLag(shards []*types.Shard, logger zerolog.Logger) {
	byShardID := make(map[string][]*types.Shard, len(shards))
	for _, s := range shards {
		byShardID[s.ShardID] = append(byShardID[s.ShardID], s)
	}

	for shardID, group := range byShardID {
		var primary *types.Shard
		ambiguous := false
		for _, s := range group {
			if s.Role.Kind == types.ShardPrimary {
				if primary != nil {
					ambiguous = true
					break
				}
				primary = s
			}
		}
		if ambiguous || primary == nil {
			continue
		}
		if primary.CommitOffset.Unit != types.OffsetUnitSeconds {
			continue
		}

		for _, s := range group {
			if s == primary {
				continue
			}
			if s.CommitOffset.Unit != types.OffsetUnitSeconds {
				continue
			}
			lag := types.CommitOffset{
				Value: primary.CommitOffset.Value - s.CommitOffset.Value,
				Unit:  types.OffsetUnitSeconds,
			}
			changed := s.Lag == nil || !s.Lag.Equal(lag)
			if !changed {
				continue
			}
			before := *s
			s.Lag = &lag
			if err := w.store.PutShard(s); err != nil {
				logger.Error().Err(err).Str("shard_id", shardID).Msg("failed to persist shard lag")
				continue
			}
			w.emit(events.ShardAllocationChanged, s, events.ShardChangedPayload{Before: &before, After: s})
		}
	}
}
