package orchestrator

import (
	"time"

	"github.com/replicante-io/replicore/pkg/election"
	"github.com/replicante-io/replicore/pkg/log"
	"github.com/replicante-io/replicore/pkg/queue"
	"github.com/replicante-io/replicore/pkg/storage"
)

// Scheduler is the leader-elected producer side of spec.md §4.8: as
// Primary only, it scans ClusterSpecs due for orchestration and enqueues
// an orchestrate_cluster task for each, advancing next_orchestrate.
//
// next_orchestrate is re-bumped here optimistically; the worker bumps it
// again at the end of a successful pass (spec.md §4.6 step 6). Bumping
// it here too means a slow or stuck worker does not cause the scheduler
// to enqueue the same cluster every tick.
type Scheduler struct {
	store  storage.PrimaryStore
	broker *queue.BoltBroker
}

// NewScheduler builds an orchestrator Scheduler.
func NewScheduler(store storage.PrimaryStore, broker *queue.BoltBroker) *Scheduler {
	return &Scheduler{store: store, broker: broker}
}

var _ election.Logic = (*Scheduler)(nil)

func (s *Scheduler) PreCheck(e *election.Election) election.Verb  { return election.Proceed }
func (s *Scheduler) PostCheck(e *election.Election) election.Verb { return election.Proceed }

func (s *Scheduler) OnPrimary(e *election.Election) election.Verb {
	logger := log.WithComponent("orchestrator-scheduler")
	due, err := s.store.DueClusterSpecs(time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("failed to scan cluster specs")
		return election.Proceed
	}
	for _, spec := range due {
		payload := queue.OrchestrateClusterPayload{NsID: spec.NsID, ClusterID: spec.ClusterID}
		if err := s.broker.Emit(queue.OrchestrateCluster, spec.Key(), payload, nil); err != nil {
			logger.Error().Err(err).Str("cluster", spec.Key()).Msg("failed to enqueue orchestrate_cluster task")
			continue
		}
		spec.NextOrchestrate = time.Now().Add(spec.Interval)
		if err := s.store.PutClusterSpec(spec); err != nil {
			logger.Error().Err(err).Str("cluster", spec.Key()).Msg("failed to persist next_orchestrate")
		}
	}
	return election.Proceed
}

func (s *Scheduler) OnSecondary(e *election.Election) election.Verb { return election.Proceed }

func (s *Scheduler) OnNotCandidate(e *election.Election) election.Verb { return election.Proceed }

func (s *Scheduler) OnTerminated(e *election.Election, reason string) election.Verb {
	logger := log.WithComponent("orchestrator-scheduler")
	logger.Error().Str("reason", reason).Msg("election terminated")
	return election.ReRun
}

func (s *Scheduler) HandleError(e *election.Election, err error) election.Verb {
	logger := log.WithComponent("orchestrator-scheduler")
	logger.Error().Err(err).Msg("election error")
	return election.Proceed
}
