package storage

import (
	"testing"

	"github.com/replicante-io/replicore/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestView(t *testing.T) *BoltViewStore {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenView(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecentEventsCapsAtMax(t *testing.T) {
	s := openTestView(t)
	for i := 0; i < 5; i++ {
		rec, err := stream.New("NODE_NEW", "node-x", map[string]int{"i": i})
		require.NoError(t, err)
		require.NoError(t, s.RecordEvent("c1", rec, 3))
	}
	got, err := s.RecentEvents("c1")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRecentEventsEmptyCluster(t *testing.T) {
	s := openTestView(t)
	got, err := s.RecentEvents("unknown")
	require.NoError(t, err)
	assert.Empty(t, got)
}
