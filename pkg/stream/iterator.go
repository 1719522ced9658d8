package stream

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/replicante-io/replicore/pkg/log"
	"github.com/replicante-io/replicore/pkg/metrics"
)

// BackoffConfig bounds the exponential backoff the Iterator applies on
// fetch or decode failure (spec.md §4.4): the n-th consecutive failure
// sleeps a random delay in [Unit*Base^(n-1), Unit*Base^n), capped at CapMax.
type BackoffConfig struct {
	Base          float64
	Unit          time.Duration
	CapMax        time.Duration
	AttemptsLimit int
}

// DefaultBackoff returns a conservative default backoff schedule.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{Base: 2, Unit: 100 * time.Millisecond, CapMax: 30 * time.Second, AttemptsLimit: 8}
}

// Message is one record handed to a Follow consumer. It must be
// acknowledged with AsyncAck, or reported with Retry on decode failure;
// failing to do either before the next Next() call redelivers it.
type Message struct {
	seq    uint64
	record Record
	iter   *Iterator
}

// Code returns the record's event code.
func (m *Message) Code() string { return m.record.Code }

// Record returns the full envelope.
func (m *Message) Record() Record { return m.record }

// AsyncAck commits this message's offset, so Follow's group will not
// redeliver it.
func (m *Message) AsyncAck() error {
	if err := m.iter.stream.commitOffset(m.iter.group, m.seq); err != nil {
		return err
	}
	m.iter.current = nil
	m.iter.failures = 0
	return nil
}

// Retry reports a consumer-side decode error on this message: the
// iterator backs off before redelivering it on the next Next() call.
func (m *Message) Retry() {
	m.iter.backoff(m.seq)
}

// Iterator is the Follow(group, tail) iterator described in spec.md §4.4.
type Iterator struct {
	stream  *BoltStream
	group   string
	cfg     BackoffConfig
	stop    <-chan struct{}
	current *Message
	failures int
}

// Follow returns an Iterator for group. tail is accepted for parity with
// spec.md's follow(group, tail) signature: a group that has never
// committed starts at offset 0 regardless, since bbolt's sequence space
// has no independent notion of "current tail" separate from the records
// already appended.
func (s *BoltStream) Follow(group string, tail bool, cfg BackoffConfig, stop <-chan struct{}) *Iterator {
	return &Iterator{stream: s, group: group, cfg: cfg, stop: stop}
}

// Next returns the next message, blocking (politely, via short sleeps)
// until one is available or stop fires. A message that was not acked
// (or retried) by the previous Next() call is redelivered unchanged.
func (it *Iterator) Next() (*Message, error) {
	if it.current != nil {
		return it.current, nil
	}

	for {
		select {
		case <-it.stop:
			return nil, nil
		default:
		}

		seq, rec, ok, err := it.stream.fetchNext(it.group)
		if err != nil {
			it.backoff(seq)
			continue
		}
		if !ok {
			if !it.sleep(50 * time.Millisecond) {
				return nil, nil
			}
			continue
		}

		msg := &Message{seq: seq, record: rec.Record, iter: it}
		it.current = msg
		return msg, nil
	}
}

// backoff sleeps a bounded exponential delay with jitter, panicking once
// cfg.AttemptsLimit consecutive failures accumulate for the same
// message/fetch cycle (spec.md §4.4).
func (it *Iterator) backoff(seq uint64) {
	it.failures++
	metrics.StreamBackoffTotal.WithLabelValues(it.group).Inc()
	if it.failures >= it.cfg.AttemptsLimit {
		panic(fmt.Sprintf("stream follow group %q stuck on message %d after %d attempts", it.group, seq, it.failures))
	}

	lo := math.Pow(it.cfg.Base, float64(it.failures-1)) * float64(it.cfg.Unit)
	hi := math.Pow(it.cfg.Base, float64(it.failures)) * float64(it.cfg.Unit)
	delay := time.Duration(lo + rand.Float64()*(hi-lo))
	if delay > it.cfg.CapMax {
		delay = it.cfg.CapMax
	}
	logger := log.WithComponent("stream-follow")
	logger.Warn().
		Str("group", it.group).Uint64("seq", seq).Int("attempt", it.failures).
		Dur("delay", delay).Msg("backing off")
	it.sleep(delay)
}

// sleep waits for d, interruptible by the shutdown signal; it reports
// whether the sleep completed (false means shutdown fired).
func (it *Iterator) sleep(d time.Duration) bool {
	select {
	case <-it.stop:
		return false
	case <-time.After(d):
		return true
	}
}
