package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T, settings Settings, handler Handler) (*BoltBroker, *Consumer) {
	t.Helper()
	broker, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { broker.Close() })
	return broker, NewConsumer(broker, DiscoverClusters, settings, handler)
}

// deliver pulls the next primary-topic message through the consumer and
// hands it to ack-producing test code, bypassing the poll ticker.
func deliver(t *testing.T, c *Consumer) (Task, *consumerAck, bool) {
	t.Helper()
	offset, msg, ok, err := c.next()
	require.NoError(t, err)
	if !ok {
		return Task{}, nil, false
	}
	c.cachedOffset, c.cachedMsg, c.hasCached = offset, msg, true
	task := Task{ID: msg.ID, Payload: msg.Payload, Headers: msg.Headers, Queue: c.queue, RetryCount: msg.RetryCount}
	return task, &consumerAck{consumer: c, offset: offset, msg: msg}, true
}

func TestEmitAndConsumeSuccess(t *testing.T) {
	broker, c := newTestConsumer(t, DefaultSettings(), nil)
	payload := DiscoverPlatform{NsID: "default", Name: "unit"}
	require.NoError(t, broker.Emit(DiscoverClusters, "task-1", payload, map[string]string{"task-id": "task-1"}))

	task, ack, ok := deliver(t, c)
	require.True(t, ok)
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, "task-1", task.Headers["task-id"])
	assert.Equal(t, 0, task.RetryCount)

	require.NoError(t, ack.Success())

	// Offset committed: nothing left to deliver.
	_, _, ok = deliver(t, c)
	assert.False(t, ok)
}

func TestUnackedTaskIsRedelivered(t *testing.T) {
	broker, c := newTestConsumer(t, DefaultSettings(), nil)
	require.NoError(t, broker.Emit(DiscoverClusters, "task-1", DiscoverPlatform{}, nil))
	require.NoError(t, broker.Emit(DiscoverClusters, "task-2", DiscoverPlatform{}, nil))

	first, _, ok := deliver(t, c)
	require.True(t, ok)

	// No terminal ack: the next poll re-emits the same task, it never
	// silently advances to task-2.
	again, ack, ok := deliver(t, c)
	require.True(t, ok)
	assert.Equal(t, first.ID, again.ID)

	require.NoError(t, ack.Success())
	next, _, ok := deliver(t, c)
	require.True(t, ok)
	assert.Equal(t, "task-2", next.ID)
}

func TestFailRoutesToRetryTopic(t *testing.T) {
	broker, c := newTestConsumer(t, DefaultSettings(), nil)
	require.NoError(t, broker.Emit(DiscoverClusters, "task-1", DiscoverPlatform{}, nil))

	_, ack, ok := deliver(t, c)
	require.True(t, ok)
	require.NoError(t, ack.Fail())

	// Primary topic drained, retry topic holds the copy with the bumped count.
	_, _, ok = deliver(t, c)
	assert.False(t, ok)
	_, msg, ok, err := broker.peek(retryTopic(DiscoverClusters))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "task-1", msg.ID)
	assert.Equal(t, 1, msg.RetryCount)
}

func TestFailAtMaxRetryCountConvertsToSkip(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxRetryCount = 3
	broker, c := newTestConsumer(t, settings, nil)

	// A message already on its last retry.
	require.NoError(t, broker.appendTo(primaryTopic(DiscoverClusters), message{ID: "task-1", RetryCount: 2, Timestamp: time.Now()}))

	task, ack, ok := deliver(t, c)
	require.True(t, ok)
	assert.Equal(t, 2, task.RetryCount)
	require.NoError(t, ack.Fail())

	_, _, ok, err := broker.peek(retryTopic(DiscoverClusters))
	require.NoError(t, err)
	assert.False(t, ok)
	_, msg, ok, err := broker.peek(skipTopic(DiscoverClusters))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "task-1", msg.ID)
}

func TestSkipRoutesToSkipTopic(t *testing.T) {
	broker, c := newTestConsumer(t, DefaultSettings(), nil)
	require.NoError(t, broker.Emit(DiscoverClusters, "task-1", DiscoverPlatform{}, nil))

	_, ack, ok := deliver(t, c)
	require.True(t, ok)
	require.NoError(t, ack.Skip())

	_, msg, ok, err := broker.peek(skipTopic(DiscoverClusters))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "task-1", msg.ID)
}

func TestRetryConsumerRepublishesDueMessages(t *testing.T) {
	settings := DefaultSettings()
	settings.PollInterval = 5 * time.Millisecond
	settings.RetryDelay = 10 * time.Second
	broker, c := newTestConsumer(t, settings, nil)

	// One due retry; a too-fresh one is added further down.
	require.NoError(t, broker.appendTo(retryTopic(DiscoverClusters), message{ID: "due", RetryCount: 1, Timestamp: time.Now().Add(-time.Minute)}))

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- c.RunRetryConsumer(stop) }()

	require.Eventually(t, func() bool {
		_, msg, ok, err := broker.peek(primaryTopic(DiscoverClusters))
		return err == nil && ok && msg.ID == "due"
	}, 5*time.Second, 5*time.Millisecond)

	// A message younger than retry_delay stays parked.
	require.NoError(t, broker.appendTo(retryTopic(DiscoverClusters), message{ID: "fresh", RetryCount: 1, Timestamp: time.Now()}))
	time.Sleep(20 * time.Millisecond)
	_, msg, ok, err := broker.peek(retryTopic(DiscoverClusters))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh", msg.ID)

	close(stop)
	require.NoError(t, <-done)
}

func TestRunPanicsWhenHandlerNeverAcks(t *testing.T) {
	settings := DefaultSettings()
	settings.PollInterval = 5 * time.Millisecond
	broker, c := newTestConsumer(t, settings, func(task Task, ack Ack) {
		// Deliberately violate the exactly-one-terminal-ack contract.
	})
	require.NoError(t, broker.Emit(DiscoverClusters, "task-1", DiscoverPlatform{}, nil))

	stop := make(chan struct{})
	defer close(stop)
	assert.Panics(t, func() { _ = c.Run(stop) })
}
