package download

import (
	"context"
	"sync"
)

type subscriber struct {
	ch   chan string
	done <-chan struct{}
}

type broadcaster struct {
	mu   sync.Mutex
	subs []*subscriber
}

func (b *broadcaster) subscribe(ctx context.Context) <-chan string {
	s := &subscriber{ch: make(chan string, 16), done: ctx.Done()}
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

func (b *broadcaster) emit(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		select {
		case s.ch <- id:
		case <-s.done:
		}
	}
}
