package storage

import (
	"time"

	"github.com/replicante-io/replicore/pkg/stream"
	"github.com/replicante-io/replicore/pkg/types"
)

// PrimaryStore is the Primary store contract from spec.md §6.
type PrimaryStore interface {
	Close() error

	PutNamespace(*types.Namespace) error
	GetNamespace(nsID string) (*types.Namespace, error)
	ListNamespaces() ([]*types.Namespace, error)

	PutPlatform(*types.Platform) error
	GetPlatform(key string) (*types.Platform, error)
	ListPlatforms() ([]*types.Platform, error)
	DuePlatforms(now time.Time) ([]*types.Platform, error)

	PutDiscoverySettings(*types.DiscoverySettings) error
	GetDiscoverySettings(key string) (*types.DiscoverySettings, error)
	DueDiscoverySettings(now time.Time) ([]*types.DiscoverySettings, error)

	PutClusterDiscovery(*types.ClusterDiscovery) error
	GetClusterDiscovery(nsID, clusterID string) (*types.ClusterDiscovery, error)

	PutClusterSpec(*types.ClusterSpec) error
	GetClusterSpec(nsID, clusterID string) (*types.ClusterSpec, error)
	ListClusterSpecs() ([]*types.ClusterSpec, error)
	DueClusterSpecs(now time.Time) ([]*types.ClusterSpec, error)
	SearchClusterSpecs(substring string) ([]*types.ClusterSpec, error)
	TopClusterSpecsByShards(n int) ([]*types.ClusterMeta, error)

	PutAgent(*types.Agent) error
	GetAgent(key string) (*types.Agent, error)
	ListAgents(clusterID string) ([]*types.Agent, error)

	PutAgentInfo(*types.AgentInfo) error
	GetAgentInfo(key string) (*types.AgentInfo, error)
	ListAgentInfo(clusterID string) ([]*types.AgentInfo, error)

	PutNode(*types.Node) error
	GetNode(key string) (*types.Node, error)
	ListNodes(clusterID string) ([]*types.Node, error)

	PutShard(*types.Shard) error
	GetShard(key string) (*types.Shard, error)
	ListShards(clusterID string) ([]*types.Shard, error)

	PutNodeAction(*types.NodeAction) error
	GetNodeAction(key string) (*types.NodeAction, error)
	ListNodeActions(clusterID string) ([]*types.NodeAction, error)
	ListUnfinishedNodeActions(clusterID string) ([]*types.NodeAction, error)

	PutOrchestratorAction(*types.OrchestratorAction) error
	GetOrchestratorAction(key string) (*types.OrchestratorAction, error)
	ListUnfinishedOrchestratorActions(clusterID string) ([]*types.OrchestratorAction, error)

	PutClusterMeta(*types.ClusterMeta) error
	GetClusterMeta(clusterID string) (*types.ClusterMeta, error)
}

// ViewStore is the read-optimised projection side of spec.md §6: derived
// state that may be rebuilt from the PrimaryStore. The only projection
// this core ships is a capped recent-events feed per cluster, standing
// in for the "optional capped/TTL constraint on the events projection"
// spec.md §6 leaves open-ended.
type ViewStore interface {
	Close() error

	// RecordEvent appends an event to a cluster's recent-events
	// projection, dropping the oldest entry once the projection holds
	// more than maxPerCluster records.
	RecordEvent(clusterID string, event stream.Record, maxPerCluster int) error

	// RecentEvents returns a cluster's capped recent-events feed,
	// newest first.
	RecentEvents(clusterID string) ([]stream.Record, error)
}
