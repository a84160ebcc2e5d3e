package events

import (
	"context"
	"errors"
	"sync"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// MemoryPublisher buffers events in a channel, mainly for tests and local runs.
type MemoryPublisher struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewMemoryPublisher creates a publisher with the given buffer size.
func NewMemoryPublisher(size int) *MemoryPublisher {
	if size <= 0 {
		size = 64
	}
	return &MemoryPublisher{ch: make(chan Event, size), done: make(chan struct{})}
}

// Publish enqueues event, blocking while the buffer is full until ctx ends or
// the publisher is closed.
func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPublisherClosed
	case p.ch <- event:
		return nil
	}
}

// Events exposes the buffered events. The channel is never closed; pair it
// with Done to stop reading.
func (p *MemoryPublisher) Events() <-chan Event {
	return p.ch
}

// Done is closed once the publisher is closed.
func (p *MemoryPublisher) Done() <-chan struct{} {
	return p.done
}

// Close stops the publisher and releases blocked publishers.
func (p *MemoryPublisher) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
