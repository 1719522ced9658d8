package clusterview

import (
	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/types"
)

// ClusterView is the immutable snapshot spec.md §4.5 describes, with the
// index side-tables the orchestrator's sync/aggregate steps need.
type ClusterView struct {
	Spec      types.ClusterSpec
	Discovery types.ClusterDiscovery

	agents     map[string]*types.Agent
	agentsInfo map[string]*types.AgentInfo
	nodes      map[string]*types.Node
	shards     []*types.Shard
	actions    map[string]*types.NodeAction

	statsShardsByNode       map[string]map[types.ShardRoleKind]int
	actionsUnfinishedByNode map[string][]*types.NodeAction
}

// Agent looks up an agent by its cluster_id/host key.
func (v *ClusterView) Agent(key string) (*types.Agent, bool) {
	a, ok := v.agents[key]
	return a, ok
}

// AgentInfo looks up an agent version record by its cluster_id/host key.
func (v *ClusterView) AgentInfo(key string) (*types.AgentInfo, bool) {
	a, ok := v.agentsInfo[key]
	return a, ok
}

// Node looks up a node by its cluster_id/node_id key.
func (v *ClusterView) Node(key string) (*types.Node, bool) {
	n, ok := v.nodes[key]
	return n, ok
}

// Nodes returns every node in the view.
func (v *ClusterView) Nodes() []*types.Node {
	out := make([]*types.Node, 0, len(v.nodes))
	for _, n := range v.nodes {
		out = append(out, n)
	}
	return out
}

// Shards returns every shard in the view.
func (v *ClusterView) Shards() []*types.Shard {
	return append([]*types.Shard(nil), v.shards...)
}

// Action looks up a node action by its cluster_id/node_id/action_id key.
func (v *ClusterView) Action(key string) (*types.NodeAction, bool) {
	a, ok := v.actions[key]
	return a, ok
}

// StatsShardsByNode returns the per-role shard counts for a node.
func (v *ClusterView) StatsShardsByNode(nodeID string) map[types.ShardRoleKind]int {
	return v.statsShardsByNode[nodeID]
}

// ActionsUnfinishedByNode returns the unfinished node actions for a node.
func (v *ClusterView) ActionsUnfinishedByNode(nodeID string) []*types.NodeAction {
	return v.actionsUnfinishedByNode[nodeID]
}

// ShardPrimary returns the primary replica for shardID, failing with
// ManyPrimariesFound if more than one shard claims the Primary role
// (spec.md §4.5): callers should skip dependent computations on error.
func (v *ClusterView) ShardPrimary(shardID string) (*types.Shard, error) {
	var primary *types.Shard
	for _, s := range v.shards {
		if s.ShardID != shardID || s.Role.Kind != types.ShardPrimary {
			continue
		}
		if primary != nil {
			return nil, &corerr.ClusterViewCorrupt{Kind: corerr.ManyPrimariesFound, Detail: shardID}
		}
		primary = s
	}
	return primary, nil
}
