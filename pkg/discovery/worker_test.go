package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicante-io/replicore/pkg/client"
	"github.com/replicante-io/replicore/pkg/queue"
	"github.com/replicante-io/replicore/pkg/storage"
	"github.com/replicante-io/replicore/pkg/stream"
	"github.com/replicante-io/replicore/pkg/types"
)

type fakeAck struct {
	successCalled, failCalled, skipCalled bool
}

func (a *fakeAck) Success() error { a.successCalled = true; return nil }
func (a *fakeAck) Fail() error    { a.failCalled = true; return nil }
func (a *fakeAck) Skip() error    { a.skipCalled = true; return nil }

func newTestFixture(t *testing.T) (*Worker, storage.PrimaryStore) {
	t.Helper()
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	strm, err := stream.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { strm.Close() })

	return NewWorker(st, strm), st
}

func writeFixtureFile(t *testing.T, clusters []client.DiscoveredCluster) string {
	t.Helper()
	data, err := json.Marshal(clusters)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "clusters.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestHandleTaskSynthesizesNewClusterOnFirstDiscovery(t *testing.T) {
	w, st := newTestFixture(t)

	path := writeFixtureFile(t, []client.DiscoveredCluster{
		{ClusterID: "c1", Nodes: []types.DiscoveredNode{{NodeID: "node-0", AgentAddress: "http://node-0"}}},
	})
	require.NoError(t, st.PutDiscoverySettings(&types.DiscoverySettings{
		NsID: "ns1", Name: "d1",
		Backends: types.DiscoveryBackendConfig{File: []string{path}},
	}))

	payload, err := json.Marshal(queue.DiscoverPlatform{NsID: "ns1", Name: "d1"})
	require.NoError(t, err)
	ack := &fakeAck{}
	w.HandleTask(queue.Task{Payload: payload}, ack)

	assert.True(t, ack.successCalled)
	assert.False(t, ack.failCalled)

	spec, err := st.GetClusterSpec("ns1", "c1")
	require.NoError(t, err)
	assert.True(t, spec.Synthetic)
	assert.True(t, spec.Active)

	disco, err := st.GetClusterDiscovery("ns1", "c1")
	require.NoError(t, err)
	require.Len(t, disco.Nodes, 1)
	assert.Equal(t, "node-0", disco.Nodes[0].NodeID)
}

func TestHandleTaskSkipsMalformedPayload(t *testing.T) {
	w, _ := newTestFixture(t)
	ack := &fakeAck{}
	w.HandleTask(queue.Task{Payload: []byte("not json")}, ack)
	assert.True(t, ack.skipCalled)
	assert.False(t, ack.successCalled)
	assert.False(t, ack.failCalled)
}

func TestHandleTaskFailsWhenSettingsMissing(t *testing.T) {
	w, _ := newTestFixture(t)
	payload, err := json.Marshal(queue.DiscoverPlatform{NsID: "ns1", Name: "missing"})
	require.NoError(t, err)
	ack := &fakeAck{}
	w.HandleTask(queue.Task{Payload: payload}, ack)
	assert.True(t, ack.failCalled)
	assert.False(t, ack.successCalled)
}

func TestHandleTaskNoopsWhenNodesUnchanged(t *testing.T) {
	w, st := newTestFixture(t)

	nodes := []types.DiscoveredNode{{NodeID: "node-0", AgentAddress: "http://node-0"}}
	path := writeFixtureFile(t, []client.DiscoveredCluster{{ClusterID: "c1", Nodes: nodes}})
	require.NoError(t, st.PutDiscoverySettings(&types.DiscoverySettings{
		NsID: "ns1", Name: "d1",
		Backends: types.DiscoveryBackendConfig{File: []string{path}},
	}))

	payload, err := json.Marshal(queue.DiscoverPlatform{NsID: "ns1", Name: "d1"})
	require.NoError(t, err)

	w.HandleTask(queue.Task{Payload: payload}, &fakeAck{})
	ack := &fakeAck{}
	w.HandleTask(queue.Task{Payload: payload}, ack)
	assert.True(t, ack.successCalled)

	disco, err := st.GetClusterDiscovery("ns1", "c1")
	require.NoError(t, err)
	assert.Equal(t, nodes, disco.Nodes)
}
