package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/replicante-io/replicore/pkg/client"
	"github.com/replicante-io/replicore/pkg/clusterview"
	"github.com/replicante-io/replicore/pkg/events"
	"github.com/replicante-io/replicore/pkg/metrics"
	"github.com/replicante-io/replicore/pkg/types"
)

// maxScheduleAttempts is MAX_SCHEDULE_ATTEMPTS from spec.md §4.6 step 3:
// after this many non-duplicate scheduling errors, the action is Failed.
const maxScheduleAttempts = 10

// syncNodeActions runs spec.md §4.6 step 3's node-action sub-steps for
// one node: reconcile what the agent reports against what is persisted,
// then try to schedule anything still PendingSchedule locally.
func (w *Worker) syncNodeActions(nc *client.NodeClient, view *clusterview.ClusterView, clusterID, nodeID string, refreshID int64, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), w.nodeTimeout)
	defer cancel()

	queued, err := nc.ActionsQueue(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("failed to fetch actions_queue")
		queued = nil
	}
	finished, err := nc.ActionsFinished(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("failed to fetch actions_finished")
		finished = nil
	}

	seen := make(map[string]bool, len(queued)+len(finished))
	for _, ra := range queued {
		seen[ra.ActionID] = true
	}
	for _, ra := range finished {
		seen[ra.ActionID] = true
	}

	for actionID := range seen {
		w.syncRemoteAction(ctx, nc, clusterID, nodeID, actionID, refreshID, logger)
	}

	for _, a := range view.ActionsUnfinishedByNode(nodeID) {
		if seen[a.ActionID] {
			continue
		}
		switch a.State {
		case types.ActionPendingSchedule:
			w.scheduleNodeAction(ctx, nc, a, logger)
		case types.ActionRunning:
			w.loseNodeAction(a, logger)
		}
	}
}

// syncRemoteAction fetches one remote action by id and reconciles it
// against the persisted record, per spec.md §4.6 step 3.
func (w *Worker) syncRemoteAction(ctx context.Context, nc *client.NodeClient, clusterID, nodeID, actionID string, refreshID int64, logger zerolog.Logger) {
	remote, err := nc.Action(ctx, actionID)
	if err != nil {
		logger.Debug().Err(err).Str("action_id", actionID).Msg("failed to fetch remote action")
		return
	}
	if remote == nil {
		return
	}

	key := clusterID + "/" + nodeID + "/" + actionID
	old, err := w.store.GetNodeAction(key)
	var oldPtr *types.NodeAction
	if err == nil {
		oldPtr = old
	} else if !isNotFound(err) {
		logger.Error().Err(err).Msg("failed to read previous node action")
		return
	}

	next := &types.NodeAction{
		ClusterID: clusterID,
		NodeID:    nodeID,
		ActionID:  actionID,
		Kind:      remote.Kind,
		Args:      remote.Args,
		State:     types.ActionState(remote.State),
		CreatedTs: remote.CreatedTs,
		RefreshID: refreshID,
	}
	if oldPtr != nil {
		next.Headers = oldPtr.Headers
		next.Requester = oldPtr.Requester
		next.RetryCount = oldPtr.RetryCount
		next.ScheduleAttempt = oldPtr.ScheduleAttempt
		next.StatePayload = oldPtr.StatePayload
	}
	if next.State.IsTerminal() && (oldPtr == nil || !oldPtr.State.IsTerminal()) {
		now := time.Now()
		next.FinishedTs = &now
	} else if oldPtr != nil {
		next.FinishedTs = oldPtr.FinishedTs
	}

	code := events.NodeActionEvent(oldPtr, next)
	if err := w.store.PutNodeAction(next); err != nil {
		logger.Error().Err(err).Str("action_id", actionID).Msg("failed to persist node action")
		return
	}
	w.emit(code, next, events.NodeActionChangedPayload{Before: oldPtr, After: next})
}

// scheduleNodeAction attempts to hand a PendingSchedule action to the
// agent, using an idempotent client-chosen id (spec.md §4.6 step 3).
func (w *Worker) scheduleNodeAction(ctx context.Context, nc *client.NodeClient, a *types.NodeAction, logger zerolog.Logger) {
	req := client.ActionScheduleRequest{
		ActionID:  a.ActionID,
		Args:      a.Args,
		CreatedTs: a.CreatedTs,
		Requester: a.Requester,
	}
	err := nc.ScheduleAction(ctx, a.Kind, req)
	switch {
	case err == nil:
		metrics.NodeActionsScheduledTotal.WithLabelValues("scheduled").Inc()
		return
	case err == client.ErrDuplicateAction:
		metrics.NodeActionsScheduledTotal.WithLabelValues("duplicate").Inc()
		return
	default:
		metrics.NodeActionsScheduledTotal.WithLabelValues("error").Inc()
	}

	a.ScheduleAttempt++
	a.StatePayload = map[string]interface{}{
		"schedule_error": err.Error(),
	}
	if a.ScheduleAttempt >= maxScheduleAttempts {
		a.Finish(types.ActionFailed, time.Now())
	}
	if err := w.store.PutNodeAction(a); err != nil {
		logger.Error().Err(err).Str("action_id", a.ActionID).Msg("failed to persist scheduling failure")
		return
	}
	code := events.NodeActionChanged
	if a.State.IsTerminal() {
		code = events.NodeActionFinished
	}
	w.emit(code, a, events.NodeActionChangedPayload{After: a})
}

// loseNodeAction marks a Running action absent from the agent's
// queue/finished listings as Lost (spec.md §4.6 step 3, invariant 5).
func (w *Worker) loseNodeAction(a *types.NodeAction, logger zerolog.Logger) {
	before := *a
	a.Finish(types.ActionLost, time.Now())
	if err := w.store.PutNodeAction(a); err != nil {
		logger.Error().Err(err).Str("action_id", a.ActionID).Msg("failed to persist lost node action")
		return
	}
	w.emit(events.NodeActionLost, a, events.NodeActionChangedPayload{Before: &before, After: a})
}
