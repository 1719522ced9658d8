package queue

import (
	"fmt"
	"time"

	"github.com/replicante-io/replicore/pkg/corerr"
	"github.com/replicante-io/replicore/pkg/log"
	"github.com/replicante-io/replicore/pkg/metrics"
)

// bookkeeping tracks the published-flag and commit-attempts counter for
// one primary-topic offset across redelivery cycles (spec.md §4.3): it
// survives a failed commit so a later redelivery does not double-publish
// to the retry/skip topic, and the attempt counter is what trips
// corerr.CommitRetryStuck.
type bookkeeping struct {
	published      bool
	commitAttempts int
}

// Consumer is the one-handler-per-queue-per-process poller described in
// spec.md §4.3's Consumer contract.
type Consumer struct {
	broker   *BoltBroker
	queue    string
	settings Settings
	handler  Handler

	book map[uint64]*bookkeeping

	cachedOffset uint64
	cachedMsg    message
	hasCached    bool
}

// NewConsumer builds a Consumer for queue.
func NewConsumer(broker *BoltBroker, queue string, settings Settings, handler Handler) *Consumer {
	return &Consumer{
		broker:   broker,
		queue:    queue,
		settings: settings,
		handler:  handler,
		book:     make(map[uint64]*bookkeeping),
	}
}

// Run polls the primary topic and dispatches to the handler. It
// satisfies upkeep.Worker.
func (c *Consumer) Run(stop <-chan struct{}) error {
	logger := log.WithComponent("queue-consumer").With().Str("queue", c.queue).Logger()
	ticker := time.NewTicker(c.settings.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
		}

		offset, msg, ok, err := c.next()
		if err != nil {
			logger.Error().Err(err).Msg("primary topic poll failed")
			continue
		}
		if !ok {
			continue
		}

		task := Task{ID: msg.ID, Payload: msg.Payload, Headers: msg.Headers, Queue: c.queue, RetryCount: msg.RetryCount}
		metrics.TaskEmittedTotal.WithLabelValues(c.queue).Inc()
		if c.hasCached && c.cachedOffset == offset {
			metrics.TaskRedeliveredTotal.WithLabelValues(c.queue).Inc()
		}
		c.cachedOffset, c.cachedMsg, c.hasCached = offset, msg, true

		ack := &consumerAck{consumer: c, offset: offset, msg: msg}
		c.handler(task, ack)
		if !ack.called {
			// The handler violated the one-terminal-ack-per-delivery
			// invariant. This is a programming bug that must never pass
			// silently, so Run panics as soon as the handler returns.
			panic(fmt.Sprintf("queue %q: handler returned without acking task %q", c.queue, msg.ID))
		}
	}
}

// next returns the cached task if still un-acked (redelivery), otherwise
// peeks the next message from the primary topic.
func (c *Consumer) next() (uint64, message, bool, error) {
	if c.hasCached {
		return c.cachedOffset, c.cachedMsg, true, nil
	}
	return c.broker.peek(primaryTopic(c.queue))
}

// RunRetryConsumer polls the retry topic, republishing messages whose
// retry_delay has elapsed. It satisfies upkeep.Worker.
func (c *Consumer) RunRetryConsumer(stop <-chan struct{}) error {
	logger := log.WithComponent("queue-retry-consumer").With().Str("queue", c.queue).Logger()
	ticker := time.NewTicker(c.settings.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
		}

		offset, msg, ok, err := c.broker.peek(retryTopic(c.queue))
		if err != nil {
			logger.Error().Err(err).Msg("retry topic poll failed")
			continue
		}
		if !ok {
			continue
		}
		if time.Since(msg.Timestamp) < c.settings.RetryDelay {
			// Oldest retry message is not due yet; topic messages are
			// FIFO-ordered by append time, so nothing later is due either.
			continue
		}
		if err := c.broker.appendTo(primaryTopic(c.queue), msg); err != nil {
			logger.Error().Err(err).Msg("retry republish failed")
			continue
		}
		if err := c.broker.commitCursor(string(retryTopic(c.queue)), offset); err != nil {
			logger.Error().Err(err).Msg("retry commit failed")
		}
	}
}

// consumerAck implements Ack for one task delivery.
type consumerAck struct {
	consumer *Consumer
	offset   uint64
	msg      message
	called   bool
}

func (a *consumerAck) Success() error {
	a.called = true
	metrics.TaskAckTotal.WithLabelValues(a.consumer.queue, "success").Inc()
	return a.consumer.commitPrimary(a.offset)
}

func (a *consumerAck) Fail() error {
	a.called = true
	if a.msg.RetryCount+1 >= a.consumer.settings.MaxRetryCount {
		return a.route("skip", skipTopic(a.consumer.queue))
	}
	return a.route("fail", retryTopic(a.consumer.queue))
}

func (a *consumerAck) Skip() error {
	a.called = true
	return a.route("skip", skipTopic(a.consumer.queue))
}

// route publishes a's message to dest (unless already published for this
// offset) then commits the primary offset, per spec.md §4.3's
// fail/skip semantics.
func (a *consumerAck) route(outcome string, dest []byte) error {
	c := a.consumer
	book, ok := c.book[a.offset]
	if !ok {
		book = &bookkeeping{}
		c.book[a.offset] = book
	}

	if !book.published {
		republished := a.msg
		republished.RetryCount++
		republished.Timestamp = time.Now()
		if err := c.broker.appendTo(dest, republished); err != nil {
			return &corerr.Backend{Op: "queue." + outcome, Err: err}
		}
		book.published = true
	}

	metrics.TaskAckTotal.WithLabelValues(c.queue, outcome).Inc()
	if err := c.commitPrimary(a.offset); err != nil {
		book.commitAttempts++
		if book.commitAttempts >= c.settings.CommitRetries {
			delete(c.book, a.offset)
			c.clearCache(a.offset)
			return &corerr.CommitRetryStuck{MessageID: a.msg.ID}
		}
		return &corerr.CommitFailed{Queue: c.queue, Err: err}
	}
	delete(c.book, a.offset)
	return nil
}

func (c *Consumer) commitPrimary(offset uint64) error {
	if err := c.broker.commitCursor(string(primaryTopic(c.queue)), offset); err != nil {
		return err
	}
	c.clearCache(offset)
	return nil
}

func (c *Consumer) clearCache(offset uint64) {
	if c.hasCached && c.cachedOffset == offset {
		c.hasCached = false
	}
}
