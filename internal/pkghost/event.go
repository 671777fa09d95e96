package pkghost

import (
	"context"
	"sync"
)

// EventKind is the kind of package lifecycle change.
type EventKind int

const (
	EventAdded EventKind = iota
	EventReplaced
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventReplaced:
		return "replaced"
	case EventRemoved:
		return "removed"
	}
	return "unknown"
}

// Event reports a package lifecycle change. Replacing is set on the Added
// and Removed halves of an update; the update itself is reported as Replaced.
type Event struct {
	Kind      EventKind
	PkgName   string
	Replacing bool
}

type subscriber struct {
	ch   chan Event
	done <-chan struct{}
}

// broadcaster fans events out to subscribers in emission order.
type broadcaster struct {
	mu   sync.Mutex
	subs []*subscriber
}

func (b *broadcaster) subscribe(ctx context.Context) <-chan Event {
	s := &subscriber{ch: make(chan Event, 64), done: ctx.Done()}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, cur := range b.subs {
			if cur == s {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		close(s.ch)
	}()
	return s.ch
}

func (b *broadcaster) emit(events ...Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ev := range events {
		for _, s := range b.subs {
			select {
			case s.ch <- ev:
			case <-s.done:
			}
		}
	}
}
