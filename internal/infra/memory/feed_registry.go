package memory

import (
	"context"
	"sync"
)

// FeedRegistry tracks live leaderboard feeds within one process.
type FeedRegistry struct {
	mu     sync.RWMutex
	topics map[string]struct{}
}

func NewFeedRegistry() *FeedRegistry {
	return &FeedRegistry{topics: make(map[string]struct{})}
}

func (r *FeedRegistry) Touch(_ context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics[topic] = struct{}{}
	return nil
}

func (r *FeedRegistry) Clear(_ context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.topics, topic)
	return nil
}

// Active reports whether topic has subscribers.
func (r *FeedRegistry) Active(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[topic]
	return ok
}
