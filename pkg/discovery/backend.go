package discovery

import (
	"context"
	"encoding/json"
	"os"

	"github.com/replicante-io/replicore/pkg/client"
	"github.com/replicante-io/replicore/pkg/corerr"
)

// Backend is the interface over discovery source implementations
// ("backends" and "engines" are treated as synonyms; this package uses
// "backend" only). FileBackend and HTTPBackend are its implementations,
// called through the interface.
type Backend interface {
	Discover(ctx context.Context) ([]client.DiscoveredCluster, error)
}

// FileBackend reads a local JSON fixture of discovered clusters,
// grounded on the original implementation's file discovery backend.
type FileBackend struct {
	Path string
}

func (b *FileBackend) Discover(ctx context.Context) ([]client.DiscoveredCluster, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return nil, &corerr.Backend{Op: "discovery.file", Err: err}
	}
	var clusters []client.DiscoveredCluster
	if err := json.Unmarshal(data, &clusters); err != nil {
		return nil, &corerr.Backend{Op: "discovery.file", Err: err}
	}
	return clusters, nil
}

// HTTPBackend discovers clusters by paging through a platform's
// POST /discover endpoint, grounded on spec.md §6's Platform API.
type HTTPBackend struct {
	Client *client.PlatformClient
}

func (b *HTTPBackend) Discover(ctx context.Context) ([]client.DiscoveredCluster, error) {
	return b.Client.DiscoverAll(ctx)
}

var (
	_ Backend = (*FileBackend)(nil)
	_ Backend = (*HTTPBackend)(nil)
)
