package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/replicante-io/replicore/pkg/config"
	"github.com/replicante-io/replicore/pkg/coordinator"
	"github.com/replicante-io/replicore/pkg/discovery"
	"github.com/replicante-io/replicore/pkg/election"
	"github.com/replicante-io/replicore/pkg/log"
	"github.com/replicante-io/replicore/pkg/metrics"
	"github.com/replicante-io/replicore/pkg/orchestrator"
	"github.com/replicante-io/replicore/pkg/queue"
	"github.com/replicante-io/replicore/pkg/storage"
	"github.com/replicante-io/replicore/pkg/stream"
	"github.com/replicante-io/replicore/pkg/upkeep"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a Replicante Core control-plane replica",
	Long: `Start the Coordinator, Discovery Scheduler, Orchestrator
Scheduler, and their worker consumers as one process, following the
single-binary shape of the teacher's "warren cluster init".`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus /metrics endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := log.WithComponent("serve")

	st, err := storage.Open(cfg.Store.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	strm, err := stream.Open(cfg.Stream.DataDir)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer strm.Close()

	view, err := storage.OpenView(cfg.Store.DataDir)
	if err != nil {
		return fmt.Errorf("open view store: %w", err)
	}
	defer view.Close()

	broker, err := queue.Open(cfg.Queue.DataDir)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer broker.Close()

	coord, err := coordinator.New(coordinator.Config{
		NodeID:   cfg.NodeID,
		BindAddr: cfg.BindAddr,
		DataDir:  cfg.Coordinator.DataDir,
	})
	if err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	if err := coord.Bootstrap(); err != nil {
		return fmt.Errorf("bootstrap coordinator: %w", err)
	}
	defer coord.Shutdown()

	sup := upkeep.New()

	registerDiscovery(sup, cfg, coord, st, strm, broker)
	registerOrchestrator(sup, cfg, coord, st, strm, broker)
	registerViewUpdater(sup, strm, view)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	sup.Register("metrics-http", func(stop <-chan struct{}) error {
		go func() {
			<-stop
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("node_id", cfg.NodeID).Msg("replicore serve starting")
	return sup.Run(ctx)
}

// registerDiscovery wires the Discovery Scheduler's leader-elected
// harness plus its discover_clusters worker consumer (spec.md
// §4.7), following the teacher's pattern of starting one goroutine per
// long-lived loop.
func registerDiscovery(sup *upkeep.Supervisor, cfg *config.Config, coord *coordinator.RaftCoordinator, st storage.PrimaryStore, strm *stream.BoltStream, broker *queue.BoltBroker) {
	sched := discovery.NewScheduler(st, broker)
	candidate := coord.Election("discovery.scheduler", 30*time.Second)
	e := election.New("discovery.scheduler", cfg.NodeID, candidate)
	harness := election.NewHarness(e, sched, election.Config{
		LoopDelay:    cfg.Discovery.Interval,
		ElectionTerm: cfg.Discovery.Term,
		Stop:         sup.StopCh(),
	})
	sup.Register("discovery-scheduler", func(stop <-chan struct{}) error { return harness.Run() })

	if !cfg.QueueEnabled(queue.DiscoverClusters) {
		return
	}
	worker := discovery.NewWorker(st, strm)
	consumer := queue.NewConsumer(broker, queue.DiscoverClusters, queue.DefaultSettings(), worker.HandleTask)
	sup.Register("discovery-worker", consumer.Run)
	sup.Register("discovery-worker-retry", consumer.RunRetryConsumer)
}

// maxRecentEvents caps each cluster's recent-events projection in the
// view store.
const maxRecentEvents = 100

// registerViewUpdater wires a stream follower that projects every event
// into the view store's capped recent-events feed, keyed by the cluster
// id prefix of the event's partition key.
func registerViewUpdater(sup *upkeep.Supervisor, strm *stream.BoltStream, view storage.ViewStore) {
	sup.Register("view-updater", func(stop <-chan struct{}) error {
		iter := strm.Follow("view-updater", false, stream.DefaultBackoff(), stop)
		for {
			msg, err := iter.Next()
			if err != nil {
				return err
			}
			if msg == nil {
				return nil
			}
			rec := msg.Record()
			clusterID := rec.EntityID
			if i := strings.IndexByte(clusterID, '/'); i >= 0 {
				clusterID = clusterID[:i]
			}
			if err := view.RecordEvent(clusterID, rec, maxRecentEvents); err != nil {
				msg.Retry()
				continue
			}
			if err := msg.AsyncAck(); err != nil {
				return err
			}
		}
	})
}

// registerOrchestrator wires the Orchestrator Scheduler's leader-elected
// harness plus the Cluster Orchestrator worker consumer (spec.md §4.6/§4.8).
func registerOrchestrator(sup *upkeep.Supervisor, cfg *config.Config, coord *coordinator.RaftCoordinator, st storage.PrimaryStore, strm *stream.BoltStream, broker *queue.BoltBroker) {
	sched := orchestrator.NewScheduler(st, broker)
	candidate := coord.Election("orchestrator.scheduler", 30*time.Second)
	e := election.New("orchestrator.scheduler", cfg.NodeID, candidate)
	harness := election.NewHarness(e, sched, election.Config{
		LoopDelay:    cfg.Orchestrator.Interval,
		ElectionTerm: cfg.Orchestrator.Term,
		Stop:         sup.StopCh(),
	})
	sup.Register("orchestrator-scheduler", func(stop <-chan struct{}) error { return harness.Run() })

	if !cfg.QueueEnabled(queue.OrchestrateCluster) {
		return
	}
	lockFactory := func(name string) orchestrator.ClusterLock { return coord.Lock(name) }
	worker := orchestrator.NewWorker(st, strm, lockFactory, cfg.NodeID, cfg.NodeTimeout)
	consumer := queue.NewConsumer(broker, queue.OrchestrateCluster, queue.DefaultSettings(), worker.HandleTask)
	sup.Register("orchestrator-worker", consumer.Run)
	sup.Register("orchestrator-worker-retry", consumer.RunRetryConsumer)
}
