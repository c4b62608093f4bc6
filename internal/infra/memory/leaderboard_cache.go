package memory

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"game-score-engine/internal/domain"
	"golang.org/x/sync/singleflight"
)

// TopLoader fetches the head of a leaderboard from the document store.
type TopLoader interface {
	LoadTop(ctx context.Context, gameID, challengeID string, limit int) (domain.Leaderboard, error)
}

// LeaderboardCache caches leaderboard pages with a TTL and an entry bound.
type LeaderboardCache struct {
	loader     TopLoader
	ttl        time.Duration
	maxEntries int
	clock      func() time.Time
	sf         singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedBoard
}

type cachedBoard struct {
	board     domain.Leaderboard
	expiresAt time.Time
}

// NewLeaderboardCache builds a cache. maxEntries <= 0 means unbounded.
func NewLeaderboardCache(loader TopLoader, ttl time.Duration, maxEntries int) *LeaderboardCache {
	return &LeaderboardCache{
		loader:     loader,
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:      make(map[string]cachedBoard),
	}
}

func boardPrefix(gameID, challengeID string) string {
	return gameID + "|" + challengeID + "|"
}

func (c *LeaderboardCache) GetTop(ctx context.Context, gameID, challengeID string, limit int) (domain.Leaderboard, error) {
	key := boardPrefix(gameID, challengeID) + strconv.Itoa(limit)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.board, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.board, nil
		}
		c.mu.RUnlock()

		board, err := c.loader.LoadTop(ctx, gameID, challengeID, limit)
		if err != nil {
			return domain.Leaderboard{}, err
		}

		c.mu.Lock()
		c.evictLocked(now)
		c.cache[key] = cachedBoard{
			board:     board,
			expiresAt: now.Add(c.ttlWithJitterLocked()),
		}
		c.mu.Unlock()
		return board, nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

// Invalidate drops every cached page of the board.
func (c *LeaderboardCache) Invalidate(_ context.Context, gameID, challengeID string) error {
	prefix := boardPrefix(gameID, challengeID)
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.cache {
		if strings.HasPrefix(key, prefix) {
			delete(c.cache, key)
		}
	}
	return nil
}

// Len reports the number of cached pages, expired ones included.
func (c *LeaderboardCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// evictLocked makes room for one entry: expired pages go first, then the
// page closest to expiry.
func (c *LeaderboardCache) evictLocked(now time.Time) {
	if c.maxEntries <= 0 || len(c.cache) < c.maxEntries {
		return
	}
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.cache {
		if !entry.expiresAt.After(now) {
			delete(c.cache, key)
			continue
		}
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	if len(c.cache) >= c.maxEntries && oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}

func (c *LeaderboardCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
