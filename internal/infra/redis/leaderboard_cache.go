package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"game-score-engine/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TopLoader fetches the head of a leaderboard from the document store.
type TopLoader interface {
	LoadTop(ctx context.Context, gameID, challengeID string, limit int) (domain.Leaderboard, error)
}

// LeaderboardCache caches leaderboard pages in Redis and falls back to a
// loader on miss.
// Pages are stored as:      SET leaderboard:{gameID}[:{challengeID}]:top:{limit} <json>
// Page keys are indexed in: SADD leaderboard:{gameID}[:{challengeID}]:pages <key>
type LeaderboardCache struct {
	client *redis.Client
	loader TopLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewLeaderboardCache(client *redis.Client, loader TopLoader, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) GetTop(ctx context.Context, gameID, challengeID string, limit int) (domain.Leaderboard, error) {
	key := c.pageKey(gameID, challengeID, limit)
	if lb, ok := c.cached(ctx, key); ok {
		return lb, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if lb, ok := c.cached(ctx, key); ok {
			return lb, nil
		}

		lb, err := c.loader.LoadTop(ctx, gameID, challengeID, limit)
		if err != nil {
			return domain.Leaderboard{}, err
		}

		raw, err := json.Marshal(lb)
		if err != nil {
			return lb, nil
		}
		ttl := c.ttlWithJitter()
		index := c.indexKey(gameID, challengeID)
		pipe := c.client.Pipeline()
		pipe.Set(ctx, key, raw, ttl)
		pipe.SAdd(ctx, index, key)
		if ttl > 0 {
			pipe.Expire(ctx, index, 2*ttl)
		}
		_, _ = pipe.Exec(ctx)

		return lb, nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

// Invalidate deletes every cached page of the board.
func (c *LeaderboardCache) Invalidate(ctx context.Context, gameID, challengeID string) error {
	index := c.indexKey(gameID, challengeID)
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return c.client.Del(ctx, append(keys, index)...).Err()
}

func (c *LeaderboardCache) cached(ctx context.Context, key string) (domain.Leaderboard, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Leaderboard{}, false
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, false
	}
	return lb, true
}

func (c *LeaderboardCache) boardKey(gameID, challengeID string) string {
	if challengeID == "" {
		return "leaderboard:" + gameID
	}
	return "leaderboard:" + gameID + ":" + challengeID
}

func (c *LeaderboardCache) pageKey(gameID, challengeID string, limit int) string {
	return c.boardKey(gameID, challengeID) + ":top:" + strconv.Itoa(limit)
}

func (c *LeaderboardCache) indexKey(gameID, challengeID string) string {
	return c.boardKey(gameID, challengeID) + ":pages"
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
