package clusterview

import (
	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/types"
)

// Builder incrementally assembles a ClusterView, validating each
// insertion as spec.md §4.5 describes.
type Builder struct {
	spec      types.ClusterSpec
	discovery types.ClusterDiscovery

	agents     map[string]*types.Agent
	agentsInfo map[string]*types.AgentInfo
	nodes      map[string]*types.Node
	shards     []*types.Shard
	actions    map[string]*types.NodeAction
}

// NewBuilder starts a Builder for a cluster's spec and discovery record.
func NewBuilder(spec types.ClusterSpec, discovery types.ClusterDiscovery) *Builder {
	return &Builder{
		spec:       spec,
		discovery:  discovery,
		agents:     make(map[string]*types.Agent),
		agentsInfo: make(map[string]*types.AgentInfo),
		nodes:      make(map[string]*types.Node),
		actions:    make(map[string]*types.NodeAction),
	}
}

func (b *Builder) checkClusterID(clusterID string) error {
	if clusterID != b.spec.ClusterID {
		return &corerr.ClusterViewCorrupt{
			Kind:   corerr.ClusterIDClash,
			Detail: clusterID + " does not match cluster " + b.spec.ClusterID,
		}
	}
	return nil
}

// Agent inserts an agent status record.
func (b *Builder) Agent(a *types.Agent) error {
	if err := b.checkClusterID(a.ClusterID); err != nil {
		return err
	}
	key := a.Key()
	if _, exists := b.agents[key]; exists {
		return &corerr.ClusterViewCorrupt{Kind: corerr.DuplicateAgent, Detail: key}
	}
	b.agents[key] = a
	return nil
}

// AgentInfo inserts an agent version record.
func (b *Builder) AgentInfo(a *types.AgentInfo) error {
	if err := b.checkClusterID(a.ClusterID); err != nil {
		return err
	}
	key := a.Key()
	if _, exists := b.agentsInfo[key]; exists {
		return &corerr.ClusterViewCorrupt{Kind: corerr.DuplicateAgent, Detail: key}
	}
	b.agentsInfo[key] = a
	return nil
}

// Node inserts a node record.
func (b *Builder) Node(n *types.Node) error {
	if err := b.checkClusterID(n.ClusterID); err != nil {
		return err
	}
	key := n.Key()
	if _, exists := b.nodes[key]; exists {
		return &corerr.ClusterViewCorrupt{Kind: corerr.DuplicateNode, Detail: key}
	}
	b.nodes[key] = n
	return nil
}

// Shard inserts a shard record; its node_id must already be present via Node.
func (b *Builder) Shard(s *types.Shard) error {
	if err := b.checkClusterID(s.ClusterID); err != nil {
		return err
	}
	if _, ok := b.nodes[s.ClusterID+"/"+s.NodeID]; !ok {
		return &corerr.ClusterViewCorrupt{Kind: corerr.DuplicateShard, Detail: "unknown node " + s.NodeID + " for shard " + s.Key()}
	}
	for _, existing := range b.shards {
		if existing.Key() == s.Key() {
			return &corerr.ClusterViewCorrupt{Kind: corerr.DuplicateShard, Detail: s.Key()}
		}
	}
	b.shards = append(b.shards, s)
	return nil
}

// Action inserts a node action record.
func (b *Builder) Action(a *types.NodeAction) error {
	if err := b.checkClusterID(a.ClusterID); err != nil {
		return err
	}
	key := a.Key()
	if _, exists := b.actions[key]; exists {
		return &corerr.ClusterViewCorrupt{Kind: corerr.DuplicateAction, Detail: key}
	}
	b.actions[key] = a
	return nil
}

// Build finalises the builder into an immutable ClusterView.
func (b *Builder) Build() *ClusterView {
	v := &ClusterView{
		Spec:                    b.spec,
		Discovery:               b.discovery,
		agents:                  b.agents,
		agentsInfo:              b.agentsInfo,
		nodes:                   b.nodes,
		shards:                  append([]*types.Shard(nil), b.shards...),
		actions:                 b.actions,
		statsShardsByNode:       make(map[string]map[types.ShardRoleKind]int),
		actionsUnfinishedByNode: make(map[string][]*types.NodeAction),
	}
	for _, s := range v.shards {
		byRole := v.statsShardsByNode[s.NodeID]
		if byRole == nil {
			byRole = make(map[types.ShardRoleKind]int)
			v.statsShardsByNode[s.NodeID] = byRole
		}
		byRole[s.Role.Kind]++
	}
	for _, a := range v.actions {
		if !a.State.IsTerminal() {
			v.actionsUnfinishedByNode[a.NodeID] = append(v.actionsUnfinishedByNode[a.NodeID], a)
		}
	}
	return v
}
