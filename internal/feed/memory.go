package feed

import (
	"context"
	"path"
	"sync"
)

// MemoryFeed is an in-process Feed with the same delivery semantics as
// RedisFeed: no history, and events are dropped for subscribers that
// stop draining. Tests use it in place of a Redis server.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[*memorySubscription]struct{}
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[*memorySubscription]struct{})}
}

func (f *MemoryFeed) Publish(ctx context.Context, channel string, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		if !sub.matches(channel) {
			continue
		}
		select {
		case sub.events <- event:
		default:
		}
	}
	return nil
}

func (f *MemoryFeed) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	sub := &memorySubscription{
		feed:     f,
		channels: make(map[string]struct{}, len(channels)),
		events:   make(chan Event, subscriptionBuffer),
	}
	for _, ch := range channels {
		sub.channels[ch] = struct{}{}
	}
	f.add(sub)
	return sub, nil
}

func (f *MemoryFeed) PSubscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	sub := &memorySubscription{
		feed:     f,
		patterns: patterns,
		events:   make(chan Event, subscriptionBuffer),
	}
	f.add(sub)
	return sub, nil
}

func (f *MemoryFeed) add(sub *memorySubscription) {
	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
}

type memorySubscription struct {
	feed     *MemoryFeed
	channels map[string]struct{}
	patterns []string
	events   chan Event
	once     sync.Once
}

func (s *memorySubscription) matches(channel string) bool {
	if _, ok := s.channels[channel]; ok {
		return true
	}
	for _, pattern := range s.patterns {
		if ok, _ := path.Match(pattern, channel); ok {
			return true
		}
	}
	return false
}

func (s *memorySubscription) Events() <-chan Event {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		close(s.events)
		s.feed.mu.Unlock()
	})
	return nil
}
