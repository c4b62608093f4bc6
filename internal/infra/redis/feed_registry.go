package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// FeedRegistry marks live leaderboard feeds in Redis so every instance can
// see which boards have subscribers. The marker expires on its own if an
// instance dies without clearing it.
type FeedRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewFeedRegistry(client *redis.Client, ttl time.Duration) *FeedRegistry {
	return &FeedRegistry{client: client, ttl: ttl}
}

func (r *FeedRegistry) Touch(ctx context.Context, topic string) error {
	return r.client.Set(ctx, r.key(topic), "1", r.ttl).Err()
}

func (r *FeedRegistry) Clear(ctx context.Context, topic string) error {
	return r.client.Del(ctx, r.key(topic)).Err()
}

// Active reports whether any instance has subscribers on topic.
func (r *FeedRegistry) Active(ctx context.Context, topic string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(topic)).Result()
	return n > 0, err
}

func (r *FeedRegistry) key(topic string) string {
	return "leaderboard:feed:" + topic
}
