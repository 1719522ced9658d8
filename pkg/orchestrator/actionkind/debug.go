package actionkind

import (
	"errors"
	"time"

	"github.com/replicante-io/replicore/pkg/types"
)

// debugCountsSteps is how many passes debug.counts takes to reach Done,
// matching spec.md §8 scenario S4 exactly (5 steps, 4 Running, 1 Done).
const debugCountsSteps = 5

func init() {
	Register("debug.fail", debugFailHandler{}, Meta{Kind: "debug.fail", Timeout: time.Minute})
	Register("debug.counts", debugCountsHandler{}, Meta{Kind: "debug.counts", Timeout: time.Minute})
}

// debugFailHandler always fails, exercising spec.md §8 scenario S3 without
// a live datastore action handler.
type debugFailHandler struct{}

func (debugFailHandler) Progress(*types.OrchestratorAction) (*ProgressChanges, error) {
	return nil, errors.New("debug action failed intentionally")
}

// debugCountsHandler progresses for debugCountsSteps passes then
// completes, exercising spec.md §8 scenario S4.
type debugCountsHandler struct{}

func (debugCountsHandler) Progress(action *types.OrchestratorAction) (*ProgressChanges, error) {
	index := 0
	if action.StatePayload != nil {
		switch v := action.StatePayload["count_index"].(type) {
		case float64:
			index = int(v)
		case int:
			index = v
		}
	}
	index++
	payload := map[string]interface{}{"count_index": index}
	if index >= debugCountsSteps {
		return &ProgressChanges{State: types.ActionDone, StatePayload: payload}, nil
	}
	return &ProgressChanges{State: types.ActionRunning, StatePayload: payload}, nil
}
