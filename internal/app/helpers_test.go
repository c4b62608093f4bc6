package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"game-score-engine/internal/app"
	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/games"
	"game-score-engine/internal/infra/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type env struct {
	store    *memory.DocumentStore
	clock    *clock
	feed     *app.Feed
	registry *memory.FeedRegistry
	scores   *app.ScoreService
	rewards  *app.RewardService
	favs     *app.FavoriteService
	boards   *app.LeaderboardService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewDocumentStore().WithMaxAttempts(20)
	clk := &clock{now: time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)}
	opts := app.Options{VIPMinFollowers: 100, ClaimBatchSize: 2, Now: clk.Now}

	reader := app.NewLeaderboardReader(store, clk.Now)
	cache := memory.NewLeaderboardCache(reader, time.Minute, 50)
	registry := memory.NewFeedRegistry()
	feed := app.NewFeed(registry, nil)

	e := &env{
		store:    store,
		clock:    clk,
		feed:     feed,
		registry: registry,
		scores:   app.NewScoreService(store, games.NewRegistry(games.NewHMACHasher("test-secret")), cache, feed, nil, opts),
		rewards:  app.NewRewardService(store, cache, nil, opts),
		favs:     app.NewFavoriteService(store, nil, opts),
		boards:   app.NewLeaderboardService(store, cache, feed, opts),
	}

	e.seed(t, domain.UserPath("u1"), domain.UserProfile{UID: "u1", Username: "alice", DisplayName: "Alice", FollowersCount: 250, Frenemies: []string{"u2"}})
	e.seed(t, domain.UserPath("u2"), domain.UserProfile{UID: "u2", Username: "bob", DisplayName: "Bob", FollowersCount: 3})
	e.seed(t, domain.UserPath("u3"), domain.UserProfile{UID: "u3", Username: "carol"})
	e.seed(t, domain.GamePath("pac"), domain.Game{GameTypeID: domain.GameTypePacman, Name: "Pac"})
	e.seed(t, domain.GamePath("pyr"), domain.Game{GameTypeID: domain.GameTypePyramid, Name: "Pyramid"})
	e.seed(t, domain.GamePath("zone"), domain.Game{GameTypeID: domain.GameTypeZoneReveal, Name: "Zone"})
	e.seed(t, domain.ChallengePath("zone", "2026-10-18"), domain.DailyChallenge{
		Date:   "2026-10-18",
		Custom: map[string]any{"answer": "Copenhagen"},
	})
	return e
}

func (e *env) seed(t *testing.T, path string, data any) {
	t.Helper()
	if err := e.store.Seed(path, data); err != nil {
		t.Fatalf("seed %s: %v", path, err)
	}
}

func load[T any](t *testing.T, store docstore.Store, path string) (T, bool) {
	t.Helper()
	var v T
	snap, err := store.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	if !snap.Exists {
		return v, false
	}
	if err := snap.DataTo(&v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return v, true
}

func arcade(uid string, score, streak int) domain.Submission {
	return domain.Submission{
		UserID:     uid,
		GameTypeID: domain.GameTypePacman,
		GameID:     "pac",
		GameData: &domain.GameData{
			Score:  score,
			Streak: streak,
			Custom: map[string]any{"pacman": map[string]any{"level": 3}},
		},
	}
}

func zoneGuess(uid, guess string, score int) domain.Submission {
	return domain.Submission{
		UserID:           uid,
		GameTypeID:       domain.GameTypeZoneReveal,
		GameID:           "zone",
		DailyChallengeID: "2026-10-18",
		IsDailyChallenge: true,
		GameData: &domain.GameData{
			Score:  score,
			Custom: map[string]any{"answer": guess},
		},
	}
}
