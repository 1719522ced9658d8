package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/types"
)

// DiscoveredCluster is one cluster entry a platform's /discover response reports.
type DiscoveredCluster struct {
	ClusterID string                 `json:"cluster_id"`
	Nodes     []types.DiscoveredNode `json:"nodes"`
}

// DiscoverPage is one page of a platform's paginated /discover response
// (spec.md §6: "JSON with a clusters[] field and optional cursor string").
type DiscoverPage struct {
	Clusters []DiscoveredCluster `json:"clusters"`
	Cursor   string              `json:"cursor,omitempty"`
}

// ProvisionRequest is the body of POST /provision.
type ProvisionRequest struct {
	ClusterID   string                 `json:"cluster_id"`
	Declaration map[string]interface{} `json:"declaration"`
}

// DeprovisionRequest is the body of POST /deprovision.
type DeprovisionRequest struct {
	ClusterID string `json:"cluster_id"`
}

// PlatformClient talks to a discovery/provisioning platform over HTTP.
type PlatformClient struct {
	baseURL string
	http    *http.Client
}

// NewPlatformClient builds a PlatformClient for a platform reachable at baseURL.
func NewPlatformClient(baseURL string, hc *http.Client) *PlatformClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &PlatformClient{baseURL: baseURL, http: hc}
}

func (c *PlatformClient) post(ctx context.Context, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return &corerr.ClientConnect{Endpoint: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return &corerr.ClientConnect{Endpoint: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &corerr.ClientResponse{Endpoint: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &corerr.ClientResponse{Endpoint: url, Err: err}
	}
	return nil
}

// Discover fetches one page of POST /discover, following cursor to page through results.
func (c *PlatformClient) Discover(ctx context.Context, cursor string) (*DiscoverPage, error) {
	req := map[string]string{}
	if cursor != "" {
		req["cursor"] = cursor
	}
	var page DiscoverPage
	if err := c.post(ctx, "/discover", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// DiscoverAll pages through the full /discover result set by following cursor.
func (c *PlatformClient) DiscoverAll(ctx context.Context) ([]DiscoveredCluster, error) {
	var all []DiscoveredCluster
	cursor := ""
	for {
		page, err := c.Discover(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Clusters...)
		if page.Cursor == "" {
			return all, nil
		}
		cursor = page.Cursor
	}
}

// Provision issues POST /provision.
func (c *PlatformClient) Provision(ctx context.Context, req ProvisionRequest) error {
	return c.post(ctx, "/provision", req, nil)
}

// Deprovision issues POST /deprovision.
func (c *PlatformClient) Deprovision(ctx context.Context, req DeprovisionRequest) error {
	return c.post(ctx, "/deprovision", req, nil)
}
