package sinks

import (
	"context"
	"sync"

	"github.com/ndtworks/tubescan/internal/progress"
)

// BroadcastSink fans events out to dynamically attached subscribers, one
// channel per consumer. Slow subscribers lose events rather than stalling
// the hub; rendering collaborators tolerate eventually-consistent views.
type BroadcastSink struct {
	mu     sync.Mutex
	subs   map[int]chan progress.Event
	nextID int
	closed bool
}

// NewBroadcastSink constructs a BroadcastSink with no subscribers.
func NewBroadcastSink() *BroadcastSink {
	return &BroadcastSink{subs: make(map[int]chan progress.Event)}
}

// Subscribe attaches a consumer and returns its event channel plus a cancel
// function. The channel is closed on cancel or when the sink closes.
func (b *BroadcastSink) Subscribe(buffer int) (<-chan progress.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan progress.Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Consume delivers the batch to every subscriber without blocking.
func (b *BroadcastSink) Consume(_ context.Context, batch []progress.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, evt := range batch {
		for _, sub := range b.subs {
			select {
			case sub <- evt:
			default:
			}
		}
	}
	return nil
}

// Close detaches and closes all subscriber channels.
func (b *BroadcastSink) Close(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub)
	}
	return nil
}
