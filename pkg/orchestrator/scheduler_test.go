package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicante-io/replicore/pkg/election"
	"github.com/replicante-io/replicore/pkg/queue"
	"github.com/replicante-io/replicore/pkg/storage"
	"github.com/replicante-io/replicore/pkg/types"
)

func TestSchedulerOnPrimaryEnqueuesDueClustersAndBumpsNextOrchestrate(t *testing.T) {
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()
	broker, err := queue.Open(t.TempDir())
	require.NoError(t, err)
	defer broker.Close()

	now := time.Now()
	require.NoError(t, st.PutClusterSpec(&types.ClusterSpec{
		NsID: "ns1", ClusterID: "due", Active: true, Interval: time.Minute,
		NextOrchestrate: now.Add(-time.Minute),
	}))
	require.NoError(t, st.PutClusterSpec(&types.ClusterSpec{
		NsID: "ns1", ClusterID: "notdue", Active: true, Interval: time.Minute,
		NextOrchestrate: now.Add(time.Hour),
	}))

	s := NewScheduler(st, broker)
	verb := s.OnPrimary(nil)
	assert.Equal(t, election.Proceed, verb)

	due, err := st.GetClusterSpec("ns1", "due")
	require.NoError(t, err)
	assert.True(t, due.NextOrchestrate.After(now))

	notDue, err := st.GetClusterSpec("ns1", "notdue")
	require.NoError(t, err)
	assert.True(t, notDue.NextOrchestrate.Equal(now.Add(time.Hour)))
}
