// Package events defines the event taxonomy described in spec.md §4.4:
// the set of event codes the orchestrator emits, and the lookup tables
// that turn a diff between an old and new view fragment into the right
// code. Records themselves travel as stream.Record; this package only
// knows how to build one.
package events

import (
	"github.com/replicante-io/replicore/pkg/stream"
	"github.com/replicante-io/replicore/pkg/types"
)

// Code is one entry in the event taxonomy.
type Code string

const (
	AgentNew         Code = "AGENT_NEW"
	AgentUp          Code = "AGENT_UP"
	AgentDown        Code = "AGENT_DOWN"
	NodeDown         Code = "NODE_DOWN"
	AgentInfoNew     Code = "AGENT_INFO_NEW"
	AgentInfoChanged Code = "AGENT_INFO_CHANGED"

	NodeNew     Code = "NODE_NEW"
	NodeChanged Code = "NODE_CHANGED"

	ShardAllocationChanged Code = "SHARD_ALLOCATION_CHANGED"

	NodeActionNew      Code = "NODE_ACTION_NEW"
	NodeActionChanged  Code = "NODE_ACTION_CHANGED"
	NodeActionFinished Code = "NODE_ACTION_FINISHED"
	NodeActionLost     Code = "NODE_ACTION_LOST"

	OrchestratorActionChanged  Code = "ORCHESTRATOR_ACTION_CHANGED"
	OrchestratorActionFinished Code = "ORCHESTRATOR_ACTION_FINISHED"

	// Cluster discovery/settings events use the literal names spec.md §8's
	// S2 scenario asserts against.
	EventSynthetic Code = "EVENT_SYNTHETIC"
	EventNew       Code = "EVENT_NEW"
	EventUpdate    Code = "EVENT_UPDATE"

	SettingsUpdated Code = "SETTINGS_UPDATED"
)

// New builds a stream.Record from any JSON-marshalable payload, ready to
// append keyed by the entity's partition key.
func New(code Code, entityID string, payload interface{}) (stream.Record, error) {
	return stream.New(string(code), entityID, payload)
}

// rawPartition lets callers build an ad hoc stream.Partitioned when an
// event doesn't key off one of pkg/types's entities directly (cluster
// discovery/settings events partition on the bare cluster id).
type rawPartition string

func (p rawPartition) PartitionKey() string { return string(p) }

// Partition wraps key as a stream.Partitioned value.
func Partition(key string) stream.Partitioned { return rawPartition(key) }

// AgentStatusChanged is the before/after payload carried by AGENT_*/NODE_DOWN events.
type AgentStatusChanged struct {
	Before *types.AgentStatus `json:"before"`
	After  types.AgentStatus  `json:"after"`
}

// AgentTransitionEvent maps an (old,new) agent status observation to an
// event code, per the table spec.md §4.4 calls out as implementation
// notes and invariant 4 in §8 (Up→Up always emits AGENT_UP).
func AgentTransitionEvent(old *types.AgentStatus, next types.AgentStatus) Code {
	if old == nil {
		return AgentNew
	}
	switch next.Kind {
	case types.AgentUp:
		return AgentUp
	case types.AgentAgentDown:
		return AgentDown
	default:
		return NodeDown
	}
}

// AgentInfoChangedPayload is the before/after payload for AGENT_INFO_* events.
type AgentInfoChangedPayload struct {
	Before *types.AgentVersion `json:"before"`
	After  types.AgentVersion  `json:"after"`
}

// AgentInfoEvent maps an (old,new) AgentVersion observation to an event
// code, or "" if nothing changed (no event should be emitted).
func AgentInfoEvent(old *types.AgentVersion, next types.AgentVersion) Code {
	switch {
	case old == nil:
		return AgentInfoNew
	case !old.Equal(next):
		return AgentInfoChanged
	default:
		return ""
	}
}

// NodeChangedPayload is the before/after payload for NODE_* events.
type NodeChangedPayload struct {
	Before *types.Node `json:"before"`
	After  *types.Node `json:"after"`
}

// NodeEvent maps an (old,new) Node observation to an event code, or "" if
// nothing worth reporting changed.
func NodeEvent(old, next *types.Node) Code {
	switch {
	case old == nil:
		return NodeNew
	case old.Kind != next.Kind || old.Version != next.Version || old.Status != next.Status:
		return NodeChanged
	default:
		return ""
	}
}

// ShardChangedPayload is the before/after payload for SHARD_ALLOCATION_CHANGED.
type ShardChangedPayload struct {
	Before *types.Shard `json:"before"`
	After  *types.Shard `json:"after"`
}

// ShardAttributeChanged reports whether a shard update is an "attribute
// change" per spec.md §4.6 (role, cluster/node/shard id) as opposed to a
// pure commit_offset/lag update, which persists silently.
func ShardAttributeChanged(old, next *types.Shard) bool {
	if old == nil {
		return true
	}
	return !old.Role.Equal(next.Role) ||
		old.ClusterID != next.ClusterID ||
		old.NodeID != next.NodeID ||
		old.ShardID != next.ShardID
}

// OrchestratorActionChangedPayload is the before/after payload for
// ORCHESTRATOR_ACTION_* events.
type OrchestratorActionChangedPayload struct {
	Before *types.OrchestratorAction `json:"before"`
	After  *types.OrchestratorAction `json:"after"`
}

// NodeActionChangedPayload is the before/after payload for NODE_ACTION_* events.
type NodeActionChangedPayload struct {
	Before *types.NodeAction `json:"before"`
	After  *types.NodeAction `json:"after"`
}

// NodeActionEvent classifies a node action observation into an event
// code, following spec.md §4.6's "new/changed/finished/lost" rules.
func NodeActionEvent(old *types.NodeAction, next *types.NodeAction) Code {
	switch {
	case old == nil:
		return NodeActionNew
	case next.State == types.ActionLost:
		return NodeActionLost
	case next.State.IsTerminal() && !old.State.IsTerminal():
		return NodeActionFinished
	default:
		return NodeActionChanged
	}
}
