// Package bus implements the single-producer, many-consumer broadcast of
// BBO ticks from the market feed to every triangle worker.
//
// TickBus delivers each published tick to every subscriber current at
// publish time, in publish order per subscriber. There is no cross-subscriber
// ordering guarantee and no replay: a subscription created after a Publish
// call never sees that tick. A lagging subscriber does not block the
// producer — its oldest unread tick is dropped to make room for the new one,
// and a counter on the Subscription tracks how many ticks it has lost.
package bus

import (
	"sync"
	"sync/atomic"

	"triarb-detector/pkg/types"
)

// DefaultBufferSize is the per-subscriber channel capacity used when a
// TickBus is constructed with New (spec.md §4.5 recommends 1024).
const DefaultBufferSize = 1024

// Subscription is one subscriber's view of the bus: a buffered channel of
// ticks plus a counter of ticks dropped because the subscriber fell behind.
type Subscription struct {
	id      uint64
	c       chan types.BBOTick
	dropped atomic.Int64
}

// C returns the channel to receive ticks from.
func (s *Subscription) C() <-chan types.BBOTick { return s.c }

// Dropped returns the number of ticks this subscriber lost to overflow.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// TickBus is a bounded SPMC broadcaster. The zero value is not usable; use
// New. Publish must only be called by a single goroutine (the ingest path);
// Subscribe and Unsubscribe may be called concurrently with Publish.
type TickBus struct {
	bufferSize int

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
}

// New creates a TickBus whose subscriber channels have the given buffer
// size. A bufferSize <= 0 falls back to DefaultBufferSize.
func New(bufferSize int) *TickBus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &TickBus{
		bufferSize: bufferSize,
		subs:       make(map[uint64]*Subscription),
	}
}

// Subscribe registers a new subscriber and returns its handle. Ticks
// published before this call are never delivered to it.
func (b *TickBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id: b.nextID,
		c:  make(chan types.BBOTick, b.bufferSize),
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a subscriber. Its channel is left for the garbage
// collector; no further ticks are delivered to it.
func (b *TickBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub.id)
}

// Publish fans tick out to every current subscriber. On a full subscriber
// channel, the oldest queued tick for that subscriber is dropped to make
// room — Publish never blocks on a slow consumer.
func (b *TickBus) Publish(tick types.BBOTick) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.c <- tick:
		default:
			select {
			case <-sub.c:
				sub.dropped.Add(1)
			default:
			}
			select {
			case sub.c <- tick:
			default:
				// a concurrent subscriber drain refilled the slot we just
				// freed; count this tick as dropped rather than block.
				sub.dropped.Add(1)
			}
		}
	}
}

// SubscriberCount returns the number of currently registered subscribers.
func (b *TickBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
