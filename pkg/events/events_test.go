package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/replicante-io/replicore/pkg/types"
)

func statusPtr(s types.AgentStatus) *types.AgentStatus { return &s }

func TestAgentTransitionEvent(t *testing.T) {
	tests := []struct {
		name string
		old  *types.AgentStatus
		next types.AgentStatus
		want Code
	}{
		{"first observation", nil, types.Up(), AgentNew},
		{"first observation down", nil, types.AgentDown("boom"), AgentNew},
		{"up to up", statusPtr(types.Up()), types.Up(), AgentUp},
		{"down to up", statusPtr(types.AgentDown("boom")), types.Up(), AgentUp},
		{"up to agent down", statusPtr(types.Up()), types.AgentDown("boom"), AgentDown},
		{"up to node down", statusPtr(types.Up()), types.NodeDown("db stopped"), NodeDown},
		{"node down reason change", statusPtr(types.NodeDown("a")), types.NodeDown("b"), NodeDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgentTransitionEvent(tt.old, tt.next))
		})
	}
}

func TestAgentInfoEvent(t *testing.T) {
	v1 := types.AgentVersion{Checkout: "abc", Number: "1.0.0"}
	v2 := types.AgentVersion{Checkout: "def", Number: "1.1.0"}

	assert.Equal(t, AgentInfoNew, AgentInfoEvent(nil, v1))
	assert.Equal(t, AgentInfoChanged, AgentInfoEvent(&v1, v2))
	assert.Equal(t, Code(""), AgentInfoEvent(&v1, v1))
}

func TestNodeEvent(t *testing.T) {
	old := &types.Node{ClusterID: "c1", NodeID: "n0", Kind: "mongodb", Version: "4.2", Status: "running"}

	assert.Equal(t, NodeNew, NodeEvent(nil, old))

	changed := *old
	changed.Version = "4.4"
	assert.Equal(t, NodeChanged, NodeEvent(old, &changed))

	same := *old
	assert.Equal(t, Code(""), NodeEvent(old, &same))
}

func TestShardAttributeChanged(t *testing.T) {
	base := &types.Shard{
		ClusterID:    "c1",
		NodeID:       "n0",
		ShardID:      "s0",
		Role:         types.ShardRole{Kind: types.ShardSecondary},
		CommitOffset: types.CommitOffset{Value: 10, Unit: types.OffsetUnitSeconds},
	}

	assert.True(t, ShardAttributeChanged(nil, base))

	promoted := *base
	promoted.Role = types.ShardRole{Kind: types.ShardPrimary}
	assert.True(t, ShardAttributeChanged(base, &promoted))

	// Pure commit_offset/lag movement persists silently.
	advanced := *base
	advanced.CommitOffset = types.CommitOffset{Value: 20, Unit: types.OffsetUnitSeconds}
	advanced.Lag = &types.CommitOffset{Value: 1, Unit: types.OffsetUnitSeconds}
	assert.False(t, ShardAttributeChanged(base, &advanced))
}

func TestNodeActionEvent(t *testing.T) {
	running := &types.NodeAction{ClusterID: "c1", NodeID: "n0", ActionID: "a1", State: types.ActionRunning}

	assert.Equal(t, NodeActionNew, NodeActionEvent(nil, running))

	lost := *running
	lost.State = types.ActionLost
	assert.Equal(t, NodeActionLost, NodeActionEvent(running, &lost))

	done := *running
	done.State = types.ActionDone
	assert.Equal(t, NodeActionFinished, NodeActionEvent(running, &done))

	progressed := *running
	progressed.StatePayload = map[string]interface{}{"step": 2}
	assert.Equal(t, NodeActionChanged, NodeActionEvent(running, &progressed))

	// Already-terminal records do not re-finish.
	failed := &types.NodeAction{ClusterID: "c1", NodeID: "n0", ActionID: "a1", State: types.ActionFailed}
	still := *failed
	assert.Equal(t, NodeActionChanged, NodeActionEvent(failed, &still))
}

func TestPartitionWrapsRawKey(t *testing.T) {
	assert.Equal(t, "c1", Partition("c1").PartitionKey())
}
