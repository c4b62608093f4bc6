package app

import (
	"context"
	"time"

	"game-score-engine/internal/domain"
)

// TopBoards serves the top of a leaderboard, usually through a cache
// (in-memory, Redis, etc).
type TopBoards interface {
	GetTop(ctx context.Context, gameID, challengeID string, limit int) (domain.Leaderboard, error)
	// Invalidate drops every cached page of a board after a commit touched it.
	Invalidate(ctx context.Context, gameID, challengeID string) error
}

// FeedRegistry records which boards currently have live subscribers so other
// instances can tell whether publishing is worthwhile.
type FeedRegistry interface {
	Touch(ctx context.Context, topic string) error
	Clear(ctx context.Context, topic string) error
}

// Options tunes the engine services.
type Options struct {
	// VIPMinFollowers is the follower count that puts a first-time player on
	// the game's VIP list. Zero admits everyone.
	VIPMinFollowers int
	ClaimBatchSize  int
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// DefaultClaimBatchSize bounds the reward documents claimed per transaction.
const DefaultClaimBatchSize = 25

func (o Options) withDefaults() Options {
	if o.ClaimBatchSize <= 0 {
		o.ClaimBatchSize = DefaultClaimBatchSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
