package upkeep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStopsAllWorkersOnContextCancel(t *testing.T) {
	sup := New()
	var stopped atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		sup.Register(name, func(stop <-chan struct{}) error {
			<-stop
			stopped.Add(1)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
	assert.Equal(t, int32(3), stopped.Load())
}

func TestWorkerErrorShutsDownSiblingsAndSurfaces(t *testing.T) {
	sup := New()
	boom := errors.New("boom")
	sup.Register("failing", func(stop <-chan struct{}) error { return boom })
	sup.Register("sibling", func(stop <-chan struct{}) error {
		<-stop
		return nil
	})

	err := sup.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestShutdownIsIdempotent(t *testing.T) {
	sup := New()
	sup.Shutdown()
	sup.Shutdown()
	select {
	case <-sup.StopCh():
	default:
		t.Fatal("stop channel not closed")
	}
}
