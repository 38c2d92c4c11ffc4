// Package hub broadcasts published events to subscribers through a bounded
// ring with per-subscriber read cursors and lag detection. Publishing never
// blocks; a subscriber that falls more than the ring capacity behind gets an
// ErrLagged and its cursor jumps to the oldest retained slot.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DivineUX23/pump-fun-monitor/internal/domain"
)

// DefaultCapacity is the default ring size.
const DefaultCapacity = 100

// ErrClosed is returned by Recv after Close once the subscriber has drained
// every retained event.
var ErrClosed = errors.New("hub closed")

// ErrLagged reports a reader that fell more than the ring capacity behind
// the publisher. The reader's cursor has been advanced to the oldest
// retained slot.
type ErrLagged struct {
	Skipped uint64
}

func (e ErrLagged) Error() string {
	return fmt.Sprintf("subscriber lagged, skipped %d events", e.Skipped)
}

// Hub is a single-writer, many-reader broadcast ring.
type Hub struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []*domain.TokenCreatedEvent
	head   uint64 // total events published; next write goes to buf[head%cap]
	closed bool
	subs   map[*Subscription]struct{}
}

// Subscription is one reader's handle on the hub.
type Subscription struct {
	hub    *Hub
	cursor uint64
}

// New creates a hub with the given ring capacity (DefaultCapacity if <= 0).
func New(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	h := &Hub{
		buf:  make([]*domain.TokenCreatedEvent, capacity),
		subs: make(map[*Subscription]struct{}),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish writes the event to the ring and wakes every reader. Never blocks.
func (h *Hub) Publish(e *domain.TokenCreatedEvent) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.buf[h.head%uint64(len(h.buf))] = e
	h.head++
	h.mu.Unlock()
	h.cond.Broadcast()
}

// Subscribe registers a reader starting at the current write position:
// only events published after the call are delivered.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &Subscription{hub: h, cursor: h.head}
	h.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes the reader. Safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	h.cond.Broadcast()
}

// Subscribers returns the number of registered readers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends the stream. Readers drain retained events and then get
// ErrClosed. Publish becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cond.Broadcast()
}

// Recv blocks until the next event is available, the hub closes, or ctx is
// done. Events are delivered in publish order. When the reader has fallen
// more than the ring capacity behind, Recv returns ErrLagged and advances
// the cursor to the oldest retained slot.
func (s *Subscription) Recv(ctx context.Context) (*domain.TokenCreatedEvent, error) {
	h := s.hub

	// Wake this waiter when the context is cancelled. The empty critical
	// section orders the broadcast after the waiter has entered Wait.
	stop := context.AfterFunc(ctx, func() {
		h.mu.Lock()
		h.mu.Unlock()
		h.cond.Broadcast()
	})
	defer stop()

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		capacity := uint64(len(h.buf))
		if behind := h.head - s.cursor; behind > capacity {
			skipped := behind - capacity
			s.cursor = h.head - capacity
			return nil, ErrLagged{Skipped: skipped}
		}

		if s.cursor < h.head {
			e := h.buf[s.cursor%capacity]
			s.cursor++
			return e, nil
		}

		if h.closed {
			return nil, ErrClosed
		}

		h.cond.Wait()
	}
}
