package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"game-score-engine/internal/app"
	"game-score-engine/internal/domain"
)

var afterReveal = time.Date(2026, 10, 19, 1, 0, 0, 0, time.UTC)

func TestClaimDefersUntilReveal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.scores.Submit(ctx, zoneGuess("u1", "copenhagen", 123)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res, err := e.rewards.Claim(ctx, "u1", app.ClaimRequest{})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(res.Deferred) != 1 || len(res.Processed) != 0 {
		t.Fatalf("expected reward deferred before reveal, got %+v", res)
	}
	if _, ok := load[domain.LeaderboardEntry](t, e.store, domain.LeaderboardPath("zone", "u1")); ok {
		t.Fatalf("deferred claim must not credit")
	}

	e.clock.Set(afterReveal)
	res, err = e.rewards.Claim(ctx, "u1", app.ClaimRequest{})
	if err != nil {
		t.Fatalf("claim after reveal: %v", err)
	}
	if len(res.Processed) != 1 || res.Processed[0] != "2026-10-18" {
		t.Fatalf("expected reward processed, got %+v", res)
	}
	entry, ok := load[domain.LeaderboardEntry](t, e.store, domain.LeaderboardPath("zone", "u1"))
	if !ok || entry.Score != 1 || entry.Streak != 0 || entry.Username != "alice" {
		t.Fatalf("expected solved reward to add one point, got %+v", entry)
	}
	reward, _ := load[domain.RewardRecord](t, e.store, domain.RewardPath("u1", "2026-10-18"))
	if reward.Status != domain.RewardClaimed || reward.ClaimedAt == nil {
		t.Fatalf("unexpected reward %+v", reward)
	}

	res, err = e.rewards.Claim(ctx, "u1", app.ClaimRequest{DailyChallengeID: "2026-10-18"})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(res.AlreadyClaimed) != 1 || len(res.Processed) != 0 {
		t.Fatalf("expected already claimed, got %+v", res)
	}
	entry, _ = load[domain.LeaderboardEntry](t, e.store, domain.LeaderboardPath("zone", "u1"))
	if entry.Score != 1 {
		t.Fatalf("double claim must not credit twice, got %d", entry.Score)
	}
}

func TestClaimFailedRewardCreditsStreak(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.scores.Submit(ctx, zoneGuess("u2", "oslo", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	e.clock.Set(afterReveal)
	res, err := e.rewards.Claim(ctx, "u2", app.ClaimRequest{GameID: "zone"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(res.Processed) != 1 {
		t.Fatalf("expected one processed reward, got %+v", res)
	}
	entry, _ := load[domain.LeaderboardEntry](t, e.store, domain.LeaderboardPath("zone", "u2"))
	if entry.Score != 0 || entry.Streak != 1 {
		t.Fatalf("expected streak credit, got %+v", entry)
	}
}

func TestClaimPartitionsAcrossBatches(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	future := afterReveal.Add(48 * time.Hour).Format(time.RFC3339)
	records := map[string]domain.RewardRecord{
		"c1": {GameID: "zone", RevealAt: "2026-10-18T00:00:00Z", Status: domain.RewardPending, SolveState: domain.SolveStateSolved},
		"c2": {GameID: "zone", RevealAt: "2026-10-18T00:00:00Z", Status: domain.RewardPending, SolveState: domain.SolveStateSolved},
		"c3": {GameID: "zone", RevealAt: future, Status: domain.RewardPending, SolveState: domain.SolveStateSolved},
		"c4": {GameID: "zone", RevealAt: "not a time", Status: domain.RewardPending},
		"c5": {GameID: "zone", RevealAt: "2026-10-17T00:00:00Z", Status: domain.RewardClaimed},
		"c6": {GameID: "pac", RevealAt: "2026-10-17T00:00:00Z", Status: domain.RewardPending},
	}
	for id, r := range records {
		e.seed(t, domain.RewardPath("u1", id), r)
	}
	e.clock.Set(afterReveal)

	res, err := e.rewards.Claim(ctx, "u1", app.ClaimRequest{})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(res.Processed) != 3 || len(res.Deferred) != 2 || len(res.AlreadyClaimed) != 1 {
		t.Fatalf("unexpected partition %+v", res)
	}
	zone, _ := load[domain.LeaderboardEntry](t, e.store, domain.LeaderboardPath("zone", "u1"))
	if zone.Score != 2 {
		t.Fatalf("expected two solved rewards credited, got %+v", zone)
	}
	pac, _ := load[domain.LeaderboardEntry](t, e.store, domain.LeaderboardPath("pac", "u1"))
	if pac.Streak != 1 || pac.Score != 0 {
		t.Fatalf("expected streak credit on pac, got %+v", pac)
	}

	res, err = e.rewards.Claim(ctx, "u1", app.ClaimRequest{DailyChallengeID: "missing"})
	if err != nil {
		t.Fatalf("claim missing: %v", err)
	}
	if len(res.Deferred) != 1 || res.Deferred[0] != "missing" {
		t.Fatalf("a missing specific reward must be deferred, got %+v", res)
	}
}

func TestConcurrentClaimsCreditOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.scores.Submit(ctx, zoneGuess("u1", "copenhagen", 123)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	e.clock.Set(afterReveal)

	const workers = 8
	results := make(chan domain.ClaimResult, workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.rewards.Claim(ctx, "u1", app.ClaimRequest{DailyChallengeID: "2026-10-18"})
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)
	close(errs)
	for err := range errs {
		t.Fatalf("claim: %v", err)
	}

	processed := 0
	for res := range results {
		processed += len(res.Processed)
	}
	if processed != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", processed)
	}
	entry, _ := load[domain.LeaderboardEntry](t, e.store, domain.LeaderboardPath("zone", "u1"))
	if entry.Score != 1 {
		t.Fatalf("expected a single credit, got %d", entry.Score)
	}
}

func TestClaimErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.rewards.Claim(ctx, "", app.ClaimRequest{}); domain.KindOf(err) != domain.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	e.seed(t, domain.RewardPath("ghost", "c1"), domain.RewardRecord{GameID: "zone", RevealAt: "2026-10-18T00:00:00Z", Status: domain.RewardPending})
	if _, err := e.rewards.Claim(ctx, "ghost", app.ClaimRequest{}); domain.KindOf(err) != domain.KindFailedPrecondition {
		t.Fatalf("expected failed precondition for missing profile, got %v", err)
	}

	res, err := e.rewards.Claim(ctx, "u3", app.ClaimRequest{})
	if err != nil {
		t.Fatalf("empty claim: %v", err)
	}
	if res.Processed == nil || res.Deferred == nil || res.AlreadyClaimed == nil {
		t.Fatalf("empty result must still carry empty lists, got %+v", res)
	}
}
