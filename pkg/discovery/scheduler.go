package discovery

import (
	"time"

	"github.com/replicante-io/replicore/pkg/election"
	"github.com/replicante-io/replicore/pkg/log"
	"github.com/replicante-io/replicore/pkg/queue"
	"github.com/replicante-io/replicore/pkg/storage"
)

// Scheduler is the leader-elected producer side of spec.md §4.7: as
// Primary only, it scans DiscoverySettings due for a scan and enqueues a
// discover_clusters task for each, advancing next_run.
type Scheduler struct {
	store  storage.PrimaryStore
	broker *queue.BoltBroker
}

// NewScheduler builds a discovery Scheduler.
func NewScheduler(store storage.PrimaryStore, broker *queue.BoltBroker) *Scheduler {
	return &Scheduler{store: store, broker: broker}
}

var _ election.Logic = (*Scheduler)(nil)

func (s *Scheduler) PreCheck(e *election.Election) election.Verb { return election.Proceed }
func (s *Scheduler) PostCheck(e *election.Election) election.Verb { return election.Proceed }

func (s *Scheduler) OnPrimary(e *election.Election) election.Verb {
	logger := log.WithComponent("discovery-scheduler")
	due, err := s.store.DueDiscoverySettings(time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("failed to scan discovery settings")
		return election.Proceed
	}
	for _, d := range due {
		if err := s.broker.Emit(queue.DiscoverClusters, d.Key(), queue.DiscoverPlatform{NsID: d.NsID, Name: d.Name}, nil); err != nil {
			logger.Error().Err(err).Str("discovery", d.Key()).Msg("failed to enqueue discover_clusters task")
			continue
		}
		d.NextRun = time.Now().Add(d.Interval)
		if err := s.store.PutDiscoverySettings(d); err != nil {
			logger.Error().Err(err).Str("discovery", d.Key()).Msg("failed to persist next_run")
		}
	}
	return election.Proceed
}

func (s *Scheduler) OnSecondary(e *election.Election) election.Verb { return election.Proceed }

func (s *Scheduler) OnNotCandidate(e *election.Election) election.Verb { return election.Proceed }

func (s *Scheduler) OnTerminated(e *election.Election, reason string) election.Verb {
	logger := log.WithComponent("discovery-scheduler")
	logger.Error().Str("reason", reason).Msg("election terminated")
	return election.ReRun
}

func (s *Scheduler) HandleError(e *election.Election, err error) election.Verb {
	logger := log.WithComponent("discovery-scheduler")
	logger.Error().Err(err).Msg("election error")
	return election.Proceed
}
