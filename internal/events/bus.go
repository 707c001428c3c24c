// Package events is an in-process pub-sub bus for scheduler and refinement
// loop progress.
package events

import (
	"sync"
)

const defaultBufSize = 256

// Bus is a channel-based pub-sub event bus. Events are routed by their
// Topic; SubscribeAll receives every topic. A nil *Bus discards events.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event // topic -> subscriber channels
	allSubs []chan Event
	closed  bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe returns a channel receiving events published on topic.
// bufSize defaults to 256 if <= 0.
func (b *Bus) Subscribe(topic string, bufSize int) <-chan Event {
	return b.subscribe(topic, bufSize, false)
}

// SubscribeAll returns a channel receiving events from every topic.
func (b *Bus) SubscribeAll(bufSize int) <-chan Event {
	return b.subscribe("", bufSize, true)
}

func (b *Bus) subscribe(topic string, bufSize int, all bool) <-chan Event {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}

	if all {
		b.allSubs = append(b.allSubs, ch)
	} else {
		b.subs[topic] = append(b.subs[topic], ch)
	}
	return ch
}

// Publish delivers event to the subscribers of its topic and to all
// SubscribeAll channels. A full subscriber channel drops the event.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs[event.Topic()] {
		select {
		case ch <- event:
		default:
		}
	}
	for _, ch := range b.allSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes the bus and every subscriber channel. Idempotent.
func (b *Bus) Close() {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.allSubs {
		close(ch)
	}
}
