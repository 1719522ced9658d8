package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformClientDiscoverAllFollowsCursor(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req["cursor"] == "" {
			json.NewEncoder(w).Encode(DiscoverPage{
				Clusters: []DiscoveredCluster{{ClusterID: "cluster1"}},
				Cursor:   "page2",
			})
			return
		}
		json.NewEncoder(w).Encode(DiscoverPage{Clusters: []DiscoveredCluster{{ClusterID: "cluster2"}}})
	}))
	defer srv.Close()

	c := NewPlatformClient(srv.URL, nil)
	all, err := c.DiscoverAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "cluster1", all[0].ClusterID)
	assert.Equal(t, "cluster2", all[1].ClusterID)
}

func TestPlatformClientProvisionErrorsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewPlatformClient(srv.URL, nil)
	err := c.Provision(context.Background(), ProvisionRequest{ClusterID: "c1"})
	assert.Error(t, err)
}
