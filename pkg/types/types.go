package types

import "time"

// NamespaceStatus is the lifecycle status of a Namespace.
type NamespaceStatus string

const (
	NamespaceActive   NamespaceStatus = "Active"
	NamespaceInactive NamespaceStatus = "Inactive"
)

// TLSConfig points at PEM material used to talk to agents/platforms in a namespace.
type TLSConfig struct {
	CAPath   string `json:"ca_path,omitempty"`
	CertPath string `json:"cert_path,omitempty"`
	KeyPath  string `json:"key_path,omitempty"`
}

// Namespace is a tenant boundary: (ns_id) -> status, tls, settings.
type Namespace struct {
	NsID     string            `json:"ns_id"`
	Status   NamespaceStatus   `json:"status"`
	TLS      TLSConfig         `json:"tls"`
	Settings map[string]string `json:"settings,omitempty"`
}

// TransportURL is a platform/agent endpoint plus its TLS posture.
type TransportURL struct {
	Base string    `json:"base"`
	TLS  TLSConfig `json:"tls"`
}

// Platform is a discovery source capable of listing/provisioning clusters.
type Platform struct {
	NsID      string       `json:"ns_id"`
	Name      string       `json:"name"`
	Active    bool         `json:"active"`
	Interval  time.Duration `json:"interval"`
	NextRun   time.Time    `json:"next_run"`
	Transport TransportURL `json:"transport"`
}

// Key returns the natural key for a Platform.
func (p *Platform) Key() string { return p.NsID + "/" + p.Name }

// IsDue reports whether the platform should be scanned for discovery work.
func (p *Platform) IsDue(now time.Time) bool {
	return p.Active && !p.NextRun.After(now)
}

// DiscoveryBackendConfig names the HTTP/file backends a DiscoverySettings scans.
type DiscoveryBackendConfig struct {
	HTTP []string `json:"http,omitempty"`
	File []string `json:"file,omitempty"`
}

// DiscoverySettings is (ns_id,name) -> interval, next_run, backends.
type DiscoverySettings struct {
	NsID     string                 `json:"ns_id"`
	Name     string                 `json:"name"`
	Interval time.Duration          `json:"interval"`
	NextRun  time.Time              `json:"next_run"`
	Backends DiscoveryBackendConfig `json:"backends"`
}

// Key returns the natural key for a DiscoverySettings record.
func (d *DiscoverySettings) Key() string { return d.NsID + "/" + d.Name }

// IsDue reports whether the settings record should be scanned now.
func (d *DiscoverySettings) IsDue(now time.Time) bool { return !d.NextRun.After(now) }

// DiscoveredNode is one entry a discovery backend reports for a cluster.
type DiscoveredNode struct {
	NodeID       string `json:"node_id"`
	NodeClass    string `json:"node_class"`
	AgentAddress string `json:"agent_address"`
	NodeGroup    string `json:"node_group,omitempty"`
}

// ClusterDiscovery is (ns_id,cluster_id) -> nodes[], written by discovery workers.
type ClusterDiscovery struct {
	NsID      string           `json:"ns_id"`
	ClusterID string           `json:"cluster_id"`
	Nodes     []DiscoveredNode `json:"nodes"`
}

// ClusterDeclaration is the user-editable (or synthesised) shape of a cluster.
type ClusterDeclaration map[string]interface{}

// ClusterSpec / ClusterSettings (same record, per spec.md §3) describes
// how a cluster is orchestrated: scheduling plus the declared shape.
type ClusterSpec struct {
	NsID            string              `json:"ns_id"`
	ClusterID       string              `json:"cluster_id"`
	Active          bool                `json:"active"`
	Interval        time.Duration       `json:"interval"`
	NextOrchestrate time.Time           `json:"next_orchestrate"`
	Declaration     ClusterDeclaration  `json:"declaration"`
	Strategy        string              `json:"strategy"`
	Synthetic       bool                `json:"synthetic"`
}

// Key returns the natural key for a ClusterSpec.
func (c *ClusterSpec) Key() string { return c.NsID + "/" + c.ClusterID }

// IsDue reports whether the cluster should be scheduled for orchestration now.
func (c *ClusterSpec) IsDue(now time.Time) bool {
	return c.Active && !c.NextOrchestrate.After(now)
}

// AgentStatusKind is the classification of one sync pass against an agent.
type AgentStatusKind string

const (
	AgentUp        AgentStatusKind = "Up"
	AgentNodeDown  AgentStatusKind = "NodeDown"
	AgentAgentDown AgentStatusKind = "AgentDown"
)

// AgentStatus is the tagged variant described in spec.md §3: Up has no
// reason, NodeDown/AgentDown carry the failure reason.
type AgentStatus struct {
	Kind   AgentStatusKind `json:"kind"`
	Reason string          `json:"reason,omitempty"`
}

// Up reports an Up status.
func Up() AgentStatus { return AgentStatus{Kind: AgentUp} }

// NodeDown reports a NodeDown(reason) status.
func NodeDown(reason string) AgentStatus { return AgentStatus{Kind: AgentNodeDown, Reason: reason} }

// AgentDown reports an AgentDown(reason) status.
func AgentDown(reason string) AgentStatus { return AgentStatus{Kind: AgentAgentDown, Reason: reason} }

// Equal compares two AgentStatus values by kind and reason.
func (s AgentStatus) Equal(other AgentStatus) bool {
	return s.Kind == other.Kind && s.Reason == other.Reason
}

// Agent is (cluster_id,host) -> status, updated each sync pass.
type Agent struct {
	ClusterID string      `json:"cluster_id"`
	Host      string      `json:"host"`
	Status    AgentStatus `json:"status"`
}

// Key returns the natural key for an Agent.
func (a *Agent) Key() string { return a.ClusterID + "/" + a.Host }

// PartitionKey implements stream.Partitioned.
func (a *Agent) PartitionKey() string { return a.Key() }

// AgentVersion describes the agent binary running next to a node.
type AgentVersion struct {
	Checkout string `json:"checkout"`
	Number   string `json:"number"`
	Taint    string `json:"taint,omitempty"`
}

// Equal compares two AgentVersion values.
func (v AgentVersion) Equal(other AgentVersion) bool {
	return v.Checkout == other.Checkout && v.Number == other.Number && v.Taint == other.Taint
}

// AgentInfo is (cluster_id,host) -> version, updated each sync pass.
type AgentInfo struct {
	ClusterID string       `json:"cluster_id"`
	Host      string       `json:"host"`
	Version   AgentVersion `json:"version"`
}

// Key returns the natural key for an AgentInfo record.
func (a *AgentInfo) Key() string { return a.ClusterID + "/" + a.Host }

// PartitionKey implements stream.Partitioned.
func (a *AgentInfo) PartitionKey() string { return a.Key() }

// Node is (cluster_id,node_id) -> kind, version, attributes, status.
type Node struct {
	ClusterID  string            `json:"cluster_id"`
	NodeID     string            `json:"node_id"`
	Kind       string            `json:"kind"`
	Version    string            `json:"version"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Status     string            `json:"status"`
}

// Key returns the natural key for a Node.
func (n *Node) Key() string { return n.ClusterID + "/" + n.NodeID }

// PartitionKey implements stream.Partitioned.
func (n *Node) PartitionKey() string { return n.Key() }

// ShardRoleKind is the role classification of a shard replica.
type ShardRoleKind string

const (
	ShardPrimary    ShardRoleKind = "Primary"
	ShardSecondary  ShardRoleKind = "Secondary"
	ShardRecovering ShardRoleKind = "Recovering"
	ShardOther      ShardRoleKind = "Other"
)

// ShardRole is the tagged variant described in spec.md §3: Other carries a name.
type ShardRole struct {
	Kind ShardRoleKind `json:"kind"`
	Name string        `json:"name,omitempty"`
}

// Equal compares two ShardRole values.
func (r ShardRole) Equal(other ShardRole) bool { return r.Kind == other.Kind && r.Name == other.Name }

// CommitOffsetUnit is the unit a shard reports its commit offset in.
type CommitOffsetUnit string

const (
	OffsetUnitSeconds CommitOffsetUnit = "Seconds"
	OffsetUnitUnit    CommitOffsetUnit = "Unit"
)

// CommitOffset is a shard's replication position.
type CommitOffset struct {
	Value float64          `json:"value"`
	Unit  CommitOffsetUnit `json:"unit"`
}

// Equal compares two CommitOffset values.
func (o CommitOffset) Equal(other CommitOffset) bool { return o.Value == other.Value && o.Unit == other.Unit }

// Shard is (cluster_id,node_id,shard_id) -> role, commit_offset, lag.
type Shard struct {
	ClusterID    string        `json:"cluster_id"`
	NodeID       string        `json:"node_id"`
	ShardID      string        `json:"shard_id"`
	Role         ShardRole     `json:"role"`
	CommitOffset CommitOffset  `json:"commit_offset"`
	Lag          *CommitOffset `json:"lag,omitempty"`
}

// Key returns the natural key for a Shard.
func (s *Shard) Key() string { return s.ClusterID + "/" + s.NodeID + "/" + s.ShardID }

// PartitionKey implements stream.Partitioned.
func (s *Shard) PartitionKey() string { return s.ClusterID + "/" + s.ShardID }

// ActionState is shared by NodeAction and OrchestratorAction state machines.
type ActionState string

const (
	ActionPendingSchedule ActionState = "PendingSchedule"
	ActionPendingApprove  ActionState = "PendingApprove"
	ActionRunning         ActionState = "Running"
	ActionDone            ActionState = "Done"
	ActionFailed          ActionState = "Failed"
	ActionLost            ActionState = "Lost"
	ActionCancelled       ActionState = "Cancelled"
)

// IsTerminal reports whether the state freezes the action record (spec.md §3 invariant).
func (s ActionState) IsTerminal() bool {
	switch s {
	case ActionDone, ActionFailed, ActionLost, ActionCancelled:
		return true
	default:
		return false
	}
}

// NodeAction is (cluster_id,node_id,action_id) -> kind/state/... created by
// the API or the orchestrator; reaching a terminal state freezes the record.
type NodeAction struct {
	ClusterID       string            `json:"cluster_id"`
	NodeID          string            `json:"node_id"`
	ActionID        string            `json:"action_id"`
	Kind            string            `json:"kind"`
	Args            map[string]interface{} `json:"args,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	State           ActionState       `json:"state"`
	StatePayload    map[string]interface{} `json:"state_payload,omitempty"`
	RetryCount      int               `json:"retry_count"`
	ScheduleAttempt int               `json:"schedule_attempt"`
	CreatedTs       time.Time         `json:"created_ts"`
	FinishedTs      *time.Time        `json:"finished_ts,omitempty"`
	Requester       string            `json:"requester"`
	RefreshID       int64             `json:"refresh_id"`
}

// Key returns the natural key for a NodeAction.
func (a *NodeAction) Key() string { return a.ClusterID + "/" + a.NodeID + "/" + a.ActionID }

// PartitionKey implements stream.Partitioned.
func (a *NodeAction) PartitionKey() string { return a.ClusterID + "/" + a.NodeID }

// Finish transitions the action to a terminal state and stamps finished_ts.
// It is a no-op if the action is already terminal (spec.md §3 invariant).
func (a *NodeAction) Finish(state ActionState, at time.Time) {
	if a.State.IsTerminal() {
		return
	}
	a.State = state
	a.FinishedTs = &at
}

// ActionErrorPayload is the serialised error chain stored on a failed action.
type ActionErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// OrchestratorAction is (cluster_id,action_id) -> kind/state/...
type OrchestratorAction struct {
	ClusterID          string              `json:"cluster_id"`
	ActionID           string              `json:"action_id"`
	Kind               string              `json:"kind"`
	Args               map[string]interface{} `json:"args,omitempty"`
	Timeout            *time.Duration      `json:"timeout,omitempty"`
	State              ActionState         `json:"state"`
	StatePayload       map[string]interface{} `json:"state_payload,omitempty"`
	StatePayloadError  *ActionErrorPayload `json:"state_payload_error,omitempty"`
	ScheduledTs        *time.Time          `json:"scheduled_ts,omitempty"`
	FinishedTs         *time.Time          `json:"finished_ts,omitempty"`
}

// Key returns the natural key for an OrchestratorAction.
func (a *OrchestratorAction) Key() string { return a.ClusterID + "/" + a.ActionID }

// PartitionKey implements stream.Partitioned.
func (a *OrchestratorAction) PartitionKey() string { return a.ClusterID + "/" + a.ActionID }

// Finish transitions the action to a terminal state and stamps finished_ts.
// It is a no-op if the action is already terminal (spec.md §3 invariant).
func (a *OrchestratorAction) Finish(state ActionState, at time.Time) {
	if a.State.IsTerminal() {
		return
	}
	a.State = state
	a.FinishedTs = &at
}

// EffectiveTimeout resolves the per-action timeout, falling back to a
// handler-provided default metadata timeout (spec.md §4.6 step 4).
func (a *OrchestratorAction) EffectiveTimeout(metaDefault time.Duration) time.Duration {
	if a.Timeout != nil {
		return *a.Timeout
	}
	return metaDefault
}

// ClusterMeta is the per-cluster aggregate recomputed every orchestration pass.
type ClusterMeta struct {
	ClusterID       string   `json:"cluster_id"`
	Nodes           int      `json:"nodes"`
	NodesDown       int      `json:"nodes_down"`
	AgentsDown      int      `json:"agents_down"`
	ShardsCount     int      `json:"shards_count"`
	ShardsPrimaries int      `json:"shards_primaries"`
	Kinds           []string `json:"kinds"`
}

// Key returns the natural key for a ClusterMeta record.
func (m *ClusterMeta) Key() string { return m.ClusterID }
