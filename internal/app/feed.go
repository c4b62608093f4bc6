package app

import (
	"context"
	"sync"

	"game-score-engine/internal/domain"
	"game-score-engine/internal/logger"
)

// FeedSize is the number of entries pushed to live leaderboard subscribers.
const FeedSize = 10

// FeedTopic names the live feed of a main or challenge-scoped board.
func FeedTopic(gameID, challengeID string) string {
	if challengeID == "" {
		return gameID
	}
	return gameID + ":" + challengeID
}

// Feed fans leaderboard snapshots out to websocket subscribers. Publishing
// never blocks: a slow subscriber only ever sees the latest snapshot.
type Feed struct {
	mu       sync.RWMutex
	topics   map[string]map[chan domain.Leaderboard]struct{}
	registry FeedRegistry
	log      *logger.Logger
}

// NewFeed builds a feed. registry may be nil.
func NewFeed(registry FeedRegistry, log *logger.Logger) *Feed {
	if log == nil {
		log = logger.Nop()
	}
	return &Feed{
		topics:   make(map[string]map[chan domain.Leaderboard]struct{}),
		registry: registry,
		log:      log,
	}
}

// Subscribe registers a subscriber and delivers initial right away. The
// caller must invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(ctx context.Context, topic string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	f.mu.Lock()
	subs, ok := f.topics[topic]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		f.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	first := len(subs) == 1
	f.mu.Unlock()

	if first && f.registry != nil {
		if err := f.registry.Touch(ctx, topic); err != nil {
			f.log.Warn("feed registry touch failed", "topic", topic, "error", err)
		}
	}
	ch <- initial

	cancel := func() {
		f.mu.Lock()
		last := false
		if subs, ok := f.topics[topic]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(f.topics, topic)
				last = true
			}
		}
		f.mu.Unlock()

		if last && f.registry != nil {
			if err := f.registry.Clear(context.Background(), topic); err != nil {
				f.log.Warn("feed registry clear failed", "topic", topic, "error", err)
			}
		}
	}
	return ch, cancel
}

// HasSubscribers reports whether anyone listens on topic.
func (f *Feed) HasSubscribers(topic string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.topics[topic]) > 0
}

// Publish delivers lb to every subscriber of topic.
func (f *Feed) Publish(topic string, lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.topics[topic] {
		select {
		case ch <- lb:
		default:
			// Buffer full: drop the oldest snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
