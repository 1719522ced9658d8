package actionkind

import (
	"testing"

	"github.com/replicante-io/replicore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugHandlersRegisteredAtInit(t *testing.T) {
	h, meta, ok := Get("debug.fail")
	require.True(t, ok)
	assert.Equal(t, "debug.fail", meta.Kind)
	_, err := h.Progress(&types.OrchestratorAction{})
	assert.EqualError(t, err, "debug action failed intentionally")

	_, _, ok = Get("debug.counts")
	require.True(t, ok)
}

func TestRegisterDuplicateKindPanics(t *testing.T) {
	defer func() {
		r := recover()
		assert.NotNil(t, r)
	}()
	Register("debug.fail", debugFailHandler{}, Meta{Kind: "debug.fail"})
}

func TestDebugCountsProgressesThenCompletes(t *testing.T) {
	h, _, ok := Get("debug.counts")
	require.True(t, ok)

	action := &types.OrchestratorAction{State: types.ActionRunning}
	for i := 1; i < debugCountsSteps; i++ {
		changes, err := h.Progress(action)
		require.NoError(t, err)
		require.NotNil(t, changes)
		assert.Equal(t, types.ActionRunning, changes.State)
		assert.Equal(t, i, changes.StatePayload["count_index"])
		action.StatePayload = changes.StatePayload
	}
	changes, err := h.Progress(action)
	require.NoError(t, err)
	assert.Equal(t, types.ActionDone, changes.State)
}

func TestResetClearsRegistryForIsolatedCases(t *testing.T) {
	reset()
	_, _, ok := Get("debug.fail")
	assert.False(t, ok)
	Register("debug.fail", debugFailHandler{}, Meta{Kind: "debug.fail", Timeout: 0})
	Register("debug.counts", debugCountsHandler{}, Meta{Kind: "debug.counts", Timeout: 0})
}
