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

func TestNodeClientActionNotFoundIsNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewNodeClient(srv.URL, nil)
	action, err := c.Action(context.Background(), "missing-id")
	require.NoError(t, err)
	assert.Nil(t, action)
}

func TestNodeClientShardsDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shards", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ShardsResponse{Shards: []ShardInfo{{ShardID: "s0"}}})
	}))
	defer srv.Close()

	c := NewNodeClient(srv.URL, nil)
	shards, err := c.Shards(context.Background())
	require.NoError(t, err)
	require.Len(t, shards, 1)
	assert.Equal(t, "s0", shards[0].ShardID)
}

func TestNodeClientNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewNodeClient(srv.URL, nil)
	_, err := c.Shards(context.Background())
	assert.Error(t, err)
}

func TestNodeClientScheduleActionPostsBody(t *testing.T) {
	var gotKind string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKind = r.URL.Path
		var req ActionScheduleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "act-1", req.ActionID)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewNodeClient(srv.URL, nil)
	err := c.ScheduleAction(context.Background(), "restart", ActionScheduleRequest{ActionID: "act-1", Requester: "tester"})
	require.NoError(t, err)
	assert.Equal(t, "/action/restart", gotKind)
}
