// Package events implements the progress event side channel: a broadcaster
// fanning scheduler events out to subscribers over bounded channels.
//
// Delivery is at-most-once. Emit never blocks the scheduler: when a
// subscriber's buffer is full the event is dropped for that subscriber.
// EmitOrdered blocks until each subscriber has accepted the event and is
// used only for order-sensitive streams (per-task thinking chunks).
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Event is a single progress notification.
type Event struct {
	Name      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 100

// Subscriber is a single subscription to the event stream.
type Subscriber struct {
	Events chan Event
	Done   chan struct{}

	// names filters events by name; empty means all events.
	names map[string]struct{}
}

func (s *Subscriber) wants(name string) bool {
	if len(s.names) == 0 {
		return true
	}
	_, ok := s.names[name]
	return ok
}

// Broadcaster manages subscriptions and fan-out.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	dropped     atomic.Int64
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[*Subscriber]struct{})}
}

// Subscribe registers a subscriber. With no names, the subscriber receives
// every event; otherwise only the named events.
func (b *Broadcaster) Subscribe(names ...string) *Subscriber {
	sub := &Subscriber{
		Events: make(chan Event, subscriberBuffer),
		Done:   make(chan struct{}),
	}
	if len(names) > 0 {
		sub.names = make(map[string]struct{}, len(names))
		for _, n := range names {
			sub.names[n] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscription and closes its Done channel.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub.Done)
}

// snapshotSubscribers copies the subscriber list so sends happen outside the
// lock.
func (b *Broadcaster) snapshotSubscribers() []*Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

// Emit broadcasts fire-and-forget. Events a subscriber cannot accept
// immediately are dropped for that subscriber.
func (b *Broadcaster) Emit(name string, payload map[string]any) {
	ev := Event{Name: name, Timestamp: time.Now().UTC(), Payload: payload}
	for _, sub := range b.snapshotSubscribers() {
		if !sub.wants(name) {
			continue
		}
		select {
		case sub.Events <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// EmitOrdered broadcasts and waits until every subscriber has accepted the
// event, preserving emission order relative to other EmitOrdered calls from
// the same goroutine. Respects ctx and subscriber teardown.
func (b *Broadcaster) EmitOrdered(ctx context.Context, name string, payload map[string]any) error {
	ev := Event{Name: name, Timestamp: time.Now().UTC(), Payload: payload}
	for _, sub := range b.snapshotSubscribers() {
		if !sub.wants(name) {
			continue
		}
		select {
		case sub.Events <- ev:
		case <-sub.Done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Dropped returns the number of events dropped due to full subscriber
// buffers since the broadcaster was created.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}
