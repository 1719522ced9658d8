package orchestrator

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicante-io/replicore/pkg/storage"
	"github.com/replicante-io/replicore/pkg/stream"
	"github.com/replicante-io/replicore/pkg/types"
)

func newAggregateTestWorker(t *testing.T) (*Worker, storage.PrimaryStore) {
	t.Helper()
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	strm, err := stream.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { strm.Close() })
	w := NewWorker(st, strm, func(string) ClusterLock { return &fakeLock{} }, "owner-1", time.Second)
	return w, st
}

func TestAggregateComputesClusterMeta(t *testing.T) {
	w, st := newAggregateTestWorker(t)
	require.NoError(t, st.PutNode(&types.Node{ClusterID: "c1", NodeID: "n0", Kind: "mongodb"}))
	require.NoError(t, st.PutNode(&types.Node{ClusterID: "c1", NodeID: "n1", Kind: "mongodb"}))
	require.NoError(t, st.PutAgent(&types.Agent{ClusterID: "c1", Host: "h0", Status: types.Up()}))
	require.NoError(t, st.PutAgent(&types.Agent{ClusterID: "c1", Host: "h1", Status: types.NodeDown("timeout")}))
	require.NoError(t, st.PutShard(&types.Shard{ClusterID: "c1", NodeID: "n0", ShardID: "s0", Role: types.ShardRole{Kind: types.ShardPrimary}}))
	require.NoError(t, st.PutShard(&types.Shard{ClusterID: "c1", NodeID: "n1", ShardID: "s0", Role: types.ShardRole{Kind: types.ShardSecondary}}))

	require.NoError(t, w.aggregate("c1", zerolog.Nop()))

	meta, err := st.GetClusterMeta("c1")
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Nodes)
	assert.Equal(t, 1, meta.NodesDown)
	assert.Equal(t, 0, meta.AgentsDown)
	assert.Equal(t, 2, meta.ShardsCount)
	assert.Equal(t, 1, meta.ShardsPrimaries)
	assert.Equal(t, []string{"mongodb"}, meta.Kinds)
}

func TestAggregateSynthesizesSecondaryLag(t *testing.T) {
	w, st := newAggregateTestWorker(t)
	require.NoError(t, st.PutShard(&types.Shard{
		ClusterID: "c1", NodeID: "n0", ShardID: "s0",
		Role:         types.ShardRole{Kind: types.ShardPrimary},
		CommitOffset: types.CommitOffset{Value: 100, Unit: types.OffsetUnitSeconds},
	}))
	require.NoError(t, st.PutShard(&types.Shard{
		ClusterID: "c1", NodeID: "n1", ShardID: "s0",
		Role:         types.ShardRole{Kind: types.ShardSecondary},
		CommitOffset: types.CommitOffset{Value: 90, Unit: types.OffsetUnitSeconds},
	}))

	require.NoError(t, w.aggregate("c1", zerolog.Nop()))

	secondary, err := st.GetShard("c1/n1/s0")
	require.NoError(t, err)
	require.NotNil(t, secondary.Lag)
	assert.Equal(t, 10.0, secondary.Lag.Value)
	assert.Equal(t, types.OffsetUnitSeconds, secondary.Lag.Unit)
}

func TestAggregateSkipsLagWithManyPrimaries(t *testing.T) {
	w, st := newAggregateTestWorker(t)
	require.NoError(t, st.PutShard(&types.Shard{
		ClusterID: "c1", NodeID: "n0", ShardID: "s0",
		Role:         types.ShardRole{Kind: types.ShardPrimary},
		CommitOffset: types.CommitOffset{Value: 100, Unit: types.OffsetUnitSeconds},
	}))
	require.NoError(t, st.PutShard(&types.Shard{
		ClusterID: "c1", NodeID: "n1", ShardID: "s0",
		Role:         types.ShardRole{Kind: types.ShardPrimary},
		CommitOffset: types.CommitOffset{Value: 90, Unit: types.OffsetUnitSeconds},
	}))
	require.NoError(t, st.PutShard(&types.Shard{
		ClusterID: "c1", NodeID: "n2", ShardID: "s0",
		Role:         types.ShardRole{Kind: types.ShardSecondary},
		CommitOffset: types.CommitOffset{Value: 80, Unit: types.OffsetUnitSeconds},
	}))

	require.NoError(t, w.aggregate("c1", zerolog.Nop()))

	secondary, err := st.GetShard("c1/n2/s0")
	require.NoError(t, err)
	assert.Nil(t, secondary.Lag)
}

func TestAggregateSkipsLagWithMismatchedUnits(t *testing.T) {
	w, st := newAggregateTestWorker(t)
	require.NoError(t, st.PutShard(&types.Shard{
		ClusterID: "c1", NodeID: "n0", ShardID: "s0",
		Role:         types.ShardRole{Kind: types.ShardPrimary},
		CommitOffset: types.CommitOffset{Value: 100, Unit: types.OffsetUnitSeconds},
	}))
	require.NoError(t, st.PutShard(&types.Shard{
		ClusterID: "c1", NodeID: "n1", ShardID: "s0",
		Role:         types.ShardRole{Kind: types.ShardSecondary},
		CommitOffset: types.CommitOffset{Value: 90, Unit: types.OffsetUnitUnit},
	}))

	require.NoError(t, w.aggregate("c1", zerolog.Nop()))

	secondary, err := st.GetShard("c1/n1/s0")
	require.NoError(t, err)
	assert.Nil(t, secondary.Lag)
}
