package local

import (
	"context"
	"path"
	"sync"

	"github.com/alanyoungcy/batchauction/internal/domain"
)

// SignalBus implements domain.SignalBus in process. Like Redis Pub/Sub,
// delivery is at-most-once: a subscriber whose buffer is full misses the
// message.
type SignalBus struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

type subscription struct {
	pattern string
	ch      chan domain.Message
}

// NewSignalBus returns an empty bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[*subscription]struct{})}
}

// Publish delivers payload to every subscriber whose pattern matches channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if ok, _ := path.Match(s.pattern, channel); !ok {
			continue
		}
		select {
		case s.ch <- domain.Message{Channel: channel, Payload: payload}:
		default:
		}
	}
	return nil
}

// Subscribe listens on a channel name or glob pattern. The returned channel
// closes when ctx is cancelled.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan domain.Message, error) {
	if _, err := path.Match(channel, ""); err != nil {
		return nil, err
	}
	s := &subscription{pattern: channel, ch: make(chan domain.Message, 128)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
		close(s.ch)
	}()
	return s.ch, nil
}

var _ domain.SignalBus = (*SignalBus)(nil)
