package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"

	"github.com/replicante-io/replicore/pkg/client"
	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/events"
	"github.com/replicante-io/replicore/pkg/log"
	"github.com/replicante-io/replicore/pkg/metrics"
	"github.com/replicante-io/replicore/pkg/queue"
	"github.com/replicante-io/replicore/pkg/storage"
	"github.com/replicante-io/replicore/pkg/stream"
	"github.com/replicante-io/replicore/pkg/types"
)

// Worker is the queue.Handler for the discover_clusters queue (spec.md
// §4.7): it loads a DiscoverySettings record, fans out across its
// configured backends, synthesises a ClusterSpec on first discovery, and
// persists/emits the resulting cluster-discovery changes.
type Worker struct {
	store  storage.PrimaryStore
	stream *stream.BoltStream
}

// NewWorker builds a discovery Worker.
func NewWorker(store storage.PrimaryStore, st *stream.BoltStream) *Worker {
	return &Worker{store: store, stream: st}
}

// buildBackends turns a DiscoverySettings' backend config into concrete
// Backend values: one FileBackend per configured file path, one
// HTTPBackend per configured platform name (looked up by (ns_id,name)).
func (w *Worker) buildBackends(ctx context.Context, d *types.DiscoverySettings) ([]Backend, error) {
	var backends []Backend
	for _, path := range d.Backends.File {
		backends = append(backends, &FileBackend{Path: path})
	}
	for _, platformName := range d.Backends.HTTP {
		platform, err := w.store.GetPlatform(d.NsID + "/" + platformName)
		if err != nil {
			return nil, err
		}
		pc := client.NewPlatformClient(platform.Transport.Base, nil)
		backends = append(backends, &HTTPBackend{Client: pc})
	}
	return backends, nil
}

// HandleTask is the queue.Handler for the discover_clusters queue.
func (w *Worker) HandleTask(task queue.Task, ack queue.Ack) {
	logger := log.WithComponent("discovery-worker")

	var payload queue.DiscoverPlatform
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		logger.Error().Err(err).Msg("malformed discover_clusters payload")
		_ = ack.Skip()
		return
	}

	d, err := w.store.GetDiscoverySettings(payload.NsID + "/" + payload.Name)
	if err != nil {
		logger.Error().Err(err).Str("discovery", payload.Name).Msg("discovery settings not found")
		metrics.DiscoveryRunsTotal.WithLabelValues(payload.Name, "error").Inc()
		_ = ack.Fail()
		return
	}

	backends, err := w.buildBackends(context.Background(), d)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build discovery backends")
		metrics.DiscoveryRunsTotal.WithLabelValues(payload.Name, "error").Inc()
		_ = ack.Fail()
		return
	}

	var clusters []client.DiscoveredCluster
	for _, b := range backends {
		found, err := b.Discover(context.Background())
		if err != nil {
			logger.Error().Err(err).Msg("backend discovery failed")
			metrics.DiscoveryRunsTotal.WithLabelValues(payload.Name, "error").Inc()
			_ = ack.Fail()
			return
		}
		clusters = append(clusters, found...)
	}

	for _, c := range clusters {
		if err := w.syncCluster(payload.NsID, c); err != nil {
			logger.Error().Err(err).Str("cluster", c.ClusterID).Msg("failed to persist discovered cluster")
			metrics.DiscoveryRunsTotal.WithLabelValues(payload.Name, "error").Inc()
			_ = ack.Fail()
			return
		}
	}

	metrics.DiscoveryRunsTotal.WithLabelValues(payload.Name, "success").Inc()
	_ = ack.Success()
}

// syncCluster synthesises a ClusterSpec on first discovery and persists
// the discovery record, emitting EVENT_SYNTHETIC/EVENT_NEW/EVENT_UPDATE
// in that order per spec.md §8 scenario S2.
func (w *Worker) syncCluster(nsID string, c client.DiscoveredCluster) error {
	_, err := w.store.GetClusterSpec(nsID, c.ClusterID)
	if err != nil {
		var nf *corerr.NotFound
		if !errors.As(err, &nf) {
			return err
		}
		spec := &types.ClusterSpec{
			NsID:      nsID,
			ClusterID: c.ClusterID,
			Active:    true,
			Synthetic: true,
			Strategy:  "default",
		}
		if err := w.store.PutClusterSpec(spec); err != nil {
			return err
		}
		if err := w.emit(c.ClusterID, events.EventSynthetic, nil); err != nil {
			return err
		}
	}

	before, err := w.store.GetClusterDiscovery(nsID, c.ClusterID)
	if err != nil {
		var nf *corerr.NotFound
		if !errors.As(err, &nf) {
			return err
		}
		before = nil
	}

	after := &types.ClusterDiscovery{NsID: nsID, ClusterID: c.ClusterID, Nodes: c.Nodes}
	if err := w.store.PutClusterDiscovery(after); err != nil {
		return err
	}

	code := events.EventNew
	var payload interface{} = struct {
		Before []types.DiscoveredNode `json:"before,omitempty"`
		After  []types.DiscoveredNode `json:"after"`
	}{After: after.Nodes}
	if before != nil {
		if reflect.DeepEqual(before.Nodes, after.Nodes) {
			return nil
		}
		code = events.EventUpdate
		payload = struct {
			Before []types.DiscoveredNode `json:"before"`
			After  []types.DiscoveredNode `json:"after"`
		}{Before: before.Nodes, After: after.Nodes}
	}
	return w.emit(c.ClusterID, code, payload)
}

func (w *Worker) emit(clusterID string, code events.Code, payload interface{}) error {
	record, err := events.New(code, clusterID, payload)
	if err != nil {
		return err
	}
	if err := w.stream.Append(record, events.Partition(clusterID)); err != nil {
		return err
	}
	return nil
}

