// Package bus implements the in-process message bus connecting pipeline
// stages. Delivery is best-effort and memory-only: a crash loses all
// undelivered messages. Ordering is FIFO per subscriber queue; there is no
// ordering relationship across subscribers.
package bus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"newspulse/internal/logger"
	"newspulse/internal/metrics"
)

// Channel names used by the pipeline.
const (
	TopicsGenerated = "topics-generated"
	RankingCreated  = "ranking-created"
)

// ErrClosed is returned by Receive once the bus is closed and the
// subscriber's queue has been drained.
var ErrClosed = errors.New("bus: closed")

// Message is a single published event as seen by one subscriber.
type Message struct {
	ID       string    // Correlation id, shared by all copies of one publish
	Channel  string    // Channel the message was published on
	Payload  any       // Typed payload (core.TopicsGenerated, core.RankingCreated)
	Enqueued time.Time // When the message entered the subscriber queue
}

// Subscription is a blocking pull handle over one subscriber queue.
type Subscription struct {
	channel string
	name    string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Message
	closed bool
}

// Bus fans each published message out to every subscription on its channel.
// Publishing never blocks; queues are unbounded.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]*Subscription)}
}

// Subscribe registers a named subscriber on a channel and returns its pull
// handle. The name is used for logging and metrics only.
func (b *Bus) Subscribe(channel, name string) *Subscription {
	s := &Subscription{channel: channel, name: name}
	s.cond = sync.NewCond(&s.mu)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[channel] = append(b.subs[channel], s)
	return s
}

// Publish delivers payload to every subscription on the channel. It returns
// the correlation id assigned to the message.
func (b *Bus) Publish(channel string, payload any) string {
	id := uuid.NewString()
	now := time.Now().UTC()

	b.mu.RLock()
	subs := b.subs[channel]
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		logger.Warn("publish on closed bus dropped", "channel", channel, "message_id", id)
		return id
	}

	for _, s := range subs {
		s.enqueue(Message{ID: id, Channel: channel, Payload: payload, Enqueued: now})
	}
	metrics.BusMessagesPublished.WithLabelValues(channel).Inc()
	logger.Debug("message published", "channel", channel, "message_id", id, "subscribers", len(subs))
	return id
}

// Close wakes every blocked receiver. Messages already enqueued can still be
// drained; Receive returns ErrClosed afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*Subscription
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.mu.Unlock()

	for _, s := range all {
		s.mu.Lock()
		s.closed = true
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

func (s *Subscription) enqueue(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, msg)
	metrics.BusQueueDepth.WithLabelValues(s.channel, s.name).Set(float64(len(s.queue)))
	s.cond.Signal()
}

// Receive blocks until a message is available, the context is cancelled, or
// the bus is closed and the queue is empty. Messages are returned in FIFO
// order with respect to this subscription.
func (s *Subscription) Receive(ctx context.Context) (Message, error) {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed && ctx.Err() == nil {
		s.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if len(s.queue) == 0 {
		return Message{}, ErrClosed
	}

	msg := s.queue[0]
	s.queue = s.queue[1:]
	metrics.BusQueueDepth.WithLabelValues(s.channel, s.name).Set(float64(len(s.queue)))
	return msg, nil
}

// Pending reports the number of undelivered messages in the queue.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
