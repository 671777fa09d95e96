// Package stream provides a replay-latest publisher. Subscribers always see
// the most recent value; intermediate values may be skipped for slow readers
// but values are never delivered out of order.
package stream

import (
	"context"
	"sync"
)

// Publisher broadcasts snapshots of type T.
type Publisher[T any] struct {
	mu     sync.Mutex
	latest T
	has    bool
	closed bool
	done   chan struct{} // closed by Close
	subs   map[chan T]struct{}
}

// New returns a Publisher with no value yet.
func New[T any]() *Publisher[T] {
	return &Publisher[T]{
		done: make(chan struct{}),
		subs: make(map[chan T]struct{}),
	}
}

// NewWithValue returns a Publisher whose subscribers first receive v.
func NewWithValue[T any](v T) *Publisher[T] {
	p := New[T]()
	p.latest, p.has = v, true
	return p
}

// Publish records v as the latest value and offers it to every subscriber,
// replacing any value they have not read yet.
func (p *Publisher[T]) Publish(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.latest, p.has = v, true
	for ch := range p.subs {
		offer(ch, v)
	}
}

// Latest returns the most recent value.
func (p *Publisher[T]) Latest() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.has
}

// Subscribe returns a channel that receives the current value, if any, and
// every later one until ctx is done or the publisher is closed.
func (p *Publisher[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch
	}
	if p.has {
		ch <- p.latest
	}
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-p.done:
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[ch]; ok {
			delete(p.subs, ch)
			close(ch)
		}
	}()
	return ch
}

// Close closes every subscriber channel. Later publishes are dropped.
func (p *Publisher[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
	for ch := range p.subs {
		delete(p.subs, ch)
		close(ch)
	}
}

// offer replaces the buffered value of ch with v. Only the publisher sends on
// ch and it holds the lock, so the send after draining cannot block.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
