// Package hub is the in-process broadcast point between the sample producer
// and live dashboard sessions. It knows nothing about tenants.
//
// Events live in a single ring buffer. Every subscription keeps its own
// cursor into it, so a slow reader never blocks the publisher or other
// readers; when the ring overwrites events a reader has not seen yet, that
// reader gets a *LagError once and continues from the oldest retained event.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gridpulse/backend/services/generation-service/internal/metrics"
	"gridpulse/backend/services/generation-service/internal/models"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 100

// ErrHubClosed is returned by Recv once the hub is closed and the
// subscription has drained everything it was still owed.
var ErrHubClosed = errors.New("hub closed")

// LagError reports that a subscriber fell behind and Skipped events were lost.
type LagError struct {
	Skipped uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d events skipped", e.Skipped)
}

// Hub fans out generation events to every live subscription.
type Hub struct {
	mu          sync.Mutex
	ring        []models.GenerationEvent
	head        uint64 // sequence number of the next published event
	subscribers int
	notify      chan struct{}
	closed      bool
}

// New builds a hub retaining up to capacity unread events.
func New(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		ring:   make([]models.GenerationEvent, capacity),
		notify: make(chan struct{}),
	}
}

// Publish appends the event and wakes waiting subscribers. It never blocks on
// readers. With no subscribers the event is dropped.
func (h *Hub) Publish(event models.GenerationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	if h.subscribers == 0 {
		metrics.HubEventsDropped.Inc()
		return
	}

	h.ring[h.head%uint64(len(h.ring))] = event
	h.head++
	metrics.HubEventsPublished.Inc()

	close(h.notify)
	h.notify = make(chan struct{})
}

// Subscribe returns a subscription that observes only events published after
// this call.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscribers++
	metrics.HubSubscribers.Inc()
	return &Subscription{hub: h, next: h.head}
}

// SubscriberCount returns the number of open subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribers
}

// Close stops accepting events. Subscribers drain what is buffered and then
// receive ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.notify)
}

func (h *Hub) oldest() uint64 {
	capacity := uint64(len(h.ring))
	if h.head < capacity {
		return 0
	}
	return h.head - capacity
}

// Subscription is a receive handle owned by a single reader.
type Subscription struct {
	hub    *Hub
	next   uint64
	closed bool
}

// Recv blocks until the next event is available, the context is done, or the
// hub is closed. A *LagError means events were lost; the following call
// resumes from the oldest retained event.
func (s *Subscription) Recv(ctx context.Context) (models.GenerationEvent, error) {
	for {
		s.hub.mu.Lock()
		if s.closed {
			s.hub.mu.Unlock()
			return models.GenerationEvent{}, ErrHubClosed
		}

		if oldest := s.hub.oldest(); s.next < oldest {
			skipped := oldest - s.next
			s.next = oldest
			s.hub.mu.Unlock()
			metrics.HubLaggedEvents.Add(float64(skipped))
			return models.GenerationEvent{}, &LagError{Skipped: skipped}
		}

		if s.next < s.hub.head {
			event := s.hub.ring[s.next%uint64(len(s.hub.ring))]
			s.next++
			s.hub.mu.Unlock()
			return event, nil
		}

		if s.hub.closed {
			s.hub.mu.Unlock()
			return models.GenerationEvent{}, ErrHubClosed
		}

		wait := s.hub.notify
		s.hub.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.GenerationEvent{}, ctx.Err()
		case <-wait:
		}
	}
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.hub.subscribers--
	metrics.HubSubscribers.Dec()
}
