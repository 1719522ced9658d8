package orchestrator

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/replicante-io/replicore/pkg/events"
	"github.com/replicante-io/replicore/pkg/metrics"
	"github.com/replicante-io/replicore/pkg/orchestrator/actionkind"
	"github.com/replicante-io/replicore/pkg/types"
)

// progressOrchestratorActions runs spec.md §4.6 step 4 over every
// non-terminal orchestrator action tracked for clusterID.
func (w *Worker) progressOrchestratorActions(clusterID string, logger zerolog.Logger) error {
	actions, err := w.store.ListUnfinishedOrchestratorActions(clusterID)
	if err != nil {
		return err
	}
	for _, a := range actions {
		w.progressOne(a, logger.With().Str("action_id", a.ActionID).Str("kind", a.Kind).Logger())
	}
	return nil
}

func (w *Worker) progressOne(a *types.OrchestratorAction, logger zerolog.Logger) {
	handler, meta, ok := actionkind.Get(a.Kind)
	if !ok {
		w.failOrchestratorAction(a, &types.ActionErrorPayload{Kind: "unknown_kind", Message: "no handler registered for action kind " + a.Kind}, logger)
		return
	}

	if a.State == types.ActionRunning && a.ScheduledTs != nil {
		deadline := a.ScheduledTs.Add(a.EffectiveTimeout(meta.Timeout))
		if time.Now().After(deadline) {
			w.failOrchestratorAction(a, &types.ActionErrorPayload{Kind: "timed_out", Message: "action exceeded its timeout"}, logger)
			return
		}
	}

	changes, err := handler.Progress(a)
	if err != nil {
		w.failOrchestratorAction(a, &types.ActionErrorPayload{Kind: "handler_error", Message: err.Error()}, logger)
		return
	}
	if changes == nil {
		return
	}

	before := *a
	if changes.StatePayload != nil {
		a.StatePayload = changes.StatePayload
	}
	a.StatePayloadError = changes.StatePayloadError

	if changes.State.IsTerminal() {
		a.Finish(changes.State, time.Now())
	} else {
		if changes.State == types.ActionRunning && a.ScheduledTs == nil {
			now := time.Now()
			a.ScheduledTs = &now
		}
		a.State = changes.State
	}

	if err := w.store.PutOrchestratorAction(a); err != nil {
		logger.Error().Err(err).Msg("failed to persist orchestrator action progress")
		return
	}
	metrics.OrchestratorActionTransitionsTotal.WithLabelValues(a.Kind, string(a.State)).Inc()

	code := events.OrchestratorActionChanged
	if a.State.IsTerminal() {
		code = events.OrchestratorActionFinished
	}
	w.emit(code, a, events.OrchestratorActionChangedPayload{Before: &before, After: a})
}

// failOrchestratorAction forces an action to Failed with a serialised
// error chain, per spec.md §4.6 step 4's error handling and timeout
// force-fail branches.
func (w *Worker) failOrchestratorAction(a *types.OrchestratorAction, errPayload *types.ActionErrorPayload, logger zerolog.Logger) {
	before := *a
	a.StatePayloadError = errPayload
	a.Finish(types.ActionFailed, time.Now())
	if err := w.store.PutOrchestratorAction(a); err != nil {
		logger.Error().Err(err).Msg("failed to persist orchestrator action failure")
		return
	}
	metrics.OrchestratorActionTransitionsTotal.WithLabelValues(a.Kind, string(a.State)).Inc()
	w.emit(events.OrchestratorActionFinished, a, events.OrchestratorActionChangedPayload{Before: &before, After: a})
}
