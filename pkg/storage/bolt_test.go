package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BoltPrimaryStore {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClusterSpecUpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	spec := &types.ClusterSpec{NsID: "ns1", ClusterID: "prod-a", Active: true}
	require.NoError(t, s.PutClusterSpec(spec))

	got, err := s.GetClusterSpec("ns1", "prod-a")
	require.NoError(t, err)
	assert.Equal(t, "prod-a", got.ClusterID)

	spec.Active = false
	require.NoError(t, s.PutClusterSpec(spec))
	got, err = s.GetClusterSpec("ns1", "prod-a")
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetClusterSpec("ns1", "missing")
	require.Error(t, err)
	var nf *corerr.NotFound
	assert.True(t, errors.As(err, &nf))
}

func TestDueClusterSpecsFiltersByNextOrchestrate(t *testing.T) {
	s := openTestStore(t)
	now := time.Unix(1000, 0)
	require.NoError(t, s.PutClusterSpec(&types.ClusterSpec{
		NsID: "ns1", ClusterID: "due", Active: true, NextOrchestrate: now.Add(-time.Minute),
	}))
	require.NoError(t, s.PutClusterSpec(&types.ClusterSpec{
		NsID: "ns1", ClusterID: "notdue", Active: true, NextOrchestrate: now.Add(time.Hour),
	}))
	require.NoError(t, s.PutClusterSpec(&types.ClusterSpec{
		NsID: "ns1", ClusterID: "inactive", Active: false, NextOrchestrate: now.Add(-time.Minute),
	}))

	due, err := s.DueClusterSpecs(now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ClusterID)
}

func TestSearchClusterSpecsSubstring(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutClusterSpec(&types.ClusterSpec{NsID: "ns1", ClusterID: "prod-eu-1"}))
	require.NoError(t, s.PutClusterSpec(&types.ClusterSpec{NsID: "ns1", ClusterID: "prod-us-1"}))
	require.NoError(t, s.PutClusterSpec(&types.ClusterSpec{NsID: "ns1", ClusterID: "staging-eu-1"}))

	found, err := s.SearchClusterSpecs("prod")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestTopClusterSpecsByShardsOrdering(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutClusterMeta(&types.ClusterMeta{ClusterID: "a", ShardsCount: 5, Nodes: 3}))
	require.NoError(t, s.PutClusterMeta(&types.ClusterMeta{ClusterID: "b", ShardsCount: 9, Nodes: 1}))
	require.NoError(t, s.PutClusterMeta(&types.ClusterMeta{ClusterID: "c", ShardsCount: 9, Nodes: 4}))

	top, err := s.TopClusterSpecsByShards(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "c", top[0].ClusterID)
	assert.Equal(t, "b", top[1].ClusterID)
}

func TestNodeActionTerminalFiltering(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutNodeAction(&types.NodeAction{
		ClusterID: "c1", NodeID: "n1", ActionID: "a1", State: types.ActionRunning,
	}))
	require.NoError(t, s.PutNodeAction(&types.NodeAction{
		ClusterID: "c1", NodeID: "n1", ActionID: "a2", State: types.ActionDone,
	}))

	unfinished, err := s.ListUnfinishedNodeActions("c1")
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, "a1", unfinished[0].ActionID)
}

func TestShardKeyRoundTrip(t *testing.T) {
	s := openTestStore(t)
	sh := &types.Shard{ClusterID: "c1", NodeID: "n1", ShardID: "s0", Role: types.ShardRole{Kind: types.ShardPrimary}}
	require.NoError(t, s.PutShard(sh))

	got, err := s.GetShard(sh.Key())
	require.NoError(t, err)
	assert.Equal(t, types.ShardPrimary, got.Role.Kind)

	byCluster, err := s.ListShards("c1")
	require.NoError(t, err)
	assert.Len(t, byCluster, 1)
}
