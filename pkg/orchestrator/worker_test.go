package orchestrator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicante-io/replicore/pkg/client"
	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/queue"
	"github.com/replicante-io/replicore/pkg/storage"
	"github.com/replicante-io/replicore/pkg/stream"
	"github.com/replicante-io/replicore/pkg/types"
)

// fakeLock is an in-memory ClusterLock, substituting for
// *coordinator.Lock so these tests don't need to bootstrap raft.
type fakeLock struct {
	owner string
	held  bool
}

func (l *fakeLock) Acquire(owner string) error {
	if l.held {
		return &corerr.LockHeld{Name: "test", Owner: l.owner}
	}
	l.held = true
	l.owner = owner
	return nil
}

func (l *fakeLock) Release(owner string) error {
	l.held = false
	l.owner = ""
	return nil
}

func (l *fakeLock) Owner() string { return l.owner }

type fakeAck struct {
	successCalled, failCalled, skipCalled bool
}

func (a *fakeAck) Success() error { a.successCalled = true; return nil }
func (a *fakeAck) Fail() error    { a.failCalled = true; return nil }
func (a *fakeAck) Skip() error    { a.skipCalled = true; return nil }

func newTestWorker(t *testing.T) (*Worker, storage.PrimaryStore, *fakeLock) {
	t.Helper()
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	strm, err := stream.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { strm.Close() })

	lock := &fakeLock{}
	factory := func(name string) ClusterLock { return lock }
	w := NewWorker(st, strm, factory, "owner-1", time.Second)
	return w, st, lock
}

func newAgentServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/info/agent", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(client.AgentInfoResponse{Version: types.AgentVersion{Number: "1.0.0"}})
	})
	mux.HandleFunc("/info/datastore", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(client.DatastoreInfoResponse{Kind: "mongodb", Version: "4.2", Status: "running"})
	})
	mux.HandleFunc("/shards", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(client.ShardsResponse{Shards: []client.ShardInfo{
			{ShardID: "shard-0", Role: types.ShardRole{Kind: types.ShardPrimary}},
		}})
	})
	mux.HandleFunc("/actions/queue", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"actions": []interface{}{}})
	})
	mux.HandleFunc("/actions/finished", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"actions": []interface{}{}})
	})
	return httptest.NewServer(mux)
}

func TestOrchestrateSyncsNodeAndBumpsNextOrchestrate(t *testing.T) {
	w, st, lock := newTestWorker(t)
	srv := newAgentServer(t)
	defer srv.Close()

	spec := &types.ClusterSpec{NsID: "ns1", ClusterID: "c1", Active: true, Interval: time.Minute}
	require.NoError(t, st.PutClusterSpec(spec))
	require.NoError(t, st.PutClusterDiscovery(&types.ClusterDiscovery{
		NsID: "ns1", ClusterID: "c1",
		Nodes: []types.DiscoveredNode{{NodeID: "node-0", AgentAddress: srv.URL}},
	}))

	require.NoError(t, lock.Acquire("owner-1"))
	err := w.orchestrate("ns1", "c1", lock, zerolog.Nop())
	require.NoError(t, err)

	agent, err := st.GetAgent("c1/" + srv.URL)
	require.NoError(t, err)
	assert.Equal(t, types.AgentUp, agent.Status.Kind)

	node, err := st.GetNode("c1/node-0")
	require.NoError(t, err)
	assert.Equal(t, "mongodb", node.Kind)

	shard, err := st.GetShard("c1/node-0/shard-0")
	require.NoError(t, err)
	assert.Equal(t, types.ShardPrimary, shard.Role.Kind)

	meta, err := st.GetClusterMeta("c1")
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Nodes)
	assert.Equal(t, 1, meta.ShardsPrimaries)

	updatedSpec, err := st.GetClusterSpec("ns1", "c1")
	require.NoError(t, err)
	assert.True(t, updatedSpec.NextOrchestrate.After(time.Now()))
}

func TestHandleTaskSkipsWhenLockHeldElsewhere(t *testing.T) {
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()
	strm, err := stream.Open(t.TempDir())
	require.NoError(t, err)
	defer strm.Close()

	lock := &fakeLock{owner: "someone-else", held: true}
	factory := func(name string) ClusterLock { return lock }
	w := NewWorker(st, strm, factory, "owner-1", time.Second)

	payload, _ := json.Marshal(queue.OrchestrateClusterPayload{NsID: "ns1", ClusterID: "c1"})
	ack := &fakeAck{}
	w.HandleTask(queue.Task{Payload: payload}, ack)

	assert.True(t, ack.successCalled)
	assert.False(t, ack.failCalled)
}

func TestHandleTaskMalformedPayloadSkips(t *testing.T) {
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()
	strm, err := stream.Open(t.TempDir())
	require.NoError(t, err)
	defer strm.Close()

	lock := &fakeLock{}
	factory := func(name string) ClusterLock { return lock }
	w := NewWorker(st, strm, factory, "owner-1", time.Second)

	ack := &fakeAck{}
	w.HandleTask(queue.Task{Payload: []byte("not json")}, ack)

	assert.True(t, ack.skipCalled)
}
