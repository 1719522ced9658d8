package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replicore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
node_id: replicore-test
store:
  data_dir: /tmp/store
queue:
  data_dir: /tmp/queue
  workers:
    discover_clusters: false
stream:
  data_dir: /tmp/stream
coordinator:
  data_dir: /tmp/coordinator
orchestrator:
  term: 5
  interval: 1s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "replicore-test", cfg.NodeID)
	assert.Equal(t, "/tmp/store", cfg.Store.DataDir)
	assert.Equal(t, 5, cfg.Orchestrator.Term)
	assert.Equal(t, time.Second, cfg.Orchestrator.Interval)
	assert.False(t, cfg.QueueEnabled("discover_clusters"))
	assert.True(t, cfg.QueueEnabled("orchestrate_cluster"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsEmptyNodeID(t *testing.T) {
	cfg := Default()
	cfg.NodeID = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveNodeTimeout(t *testing.T) {
	cfg := Default()
	cfg.NodeTimeout = 0
	assert.Error(t, cfg.Validate())
}
