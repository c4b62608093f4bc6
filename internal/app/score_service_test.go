package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"game-score-engine/internal/app"
	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/games"
	"game-score-engine/internal/infra/memory"
)

func TestNonImprovingSubmissionLeavesRecordUnchanged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.scores.Submit(ctx, arcade("u1", 500, 4))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if !first.Success || first.AggregatedScore != 500 || first.AggregatedStreak != 4 {
		t.Fatalf("unexpected first result %+v", first)
	}

	second, err := e.scores.Submit(ctx, arcade("u1", 300, 9))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Success || second.AggregatedScore != 500 || second.AggregatedStreak != 4 {
		t.Fatalf("non-improving submission must report stored aggregates, got %+v", second)
	}

	record, _ := load[domain.UserGameRecord](t, e.store, domain.UserGamePath("u1", "pac"))
	if record.Score != 500 || record.Streak != 4 {
		t.Fatalf("record changed: %+v", record)
	}
	entry, _ := load[domain.LeaderboardEntry](t, e.store, domain.LeaderboardPath("pac", "u1"))
	if entry.Score != 500 || entry.Username != "alice" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if _, ok := entry.Custom["pacman"]; !ok {
		t.Fatalf("expected public pacman slice on entry, got %v", entry.Custom)
	}

	stats, _ := load[domain.GameStats](t, e.store, domain.GameStatsPath("pac"))
	if stats.SessionsPlayed != 2 || stats.TotalPlayers != 1 || stats.UniqueSubmitters != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.ScoreDistribution["500"] != 1 {
		t.Fatalf("expected distribution bucket for 500, got %v", stats.ScoreDistribution)
	}

	third, err := e.scores.Submit(ctx, arcade("u1", 800, 1))
	if err != nil || !third.Success || third.AggregatedScore != 800 {
		t.Fatalf("improving submission must persist, got %+v %v", third, err)
	}
	stats, _ = load[domain.GameStats](t, e.store, domain.GameStatsPath("pac"))
	if stats.ScoreDistribution["500"] != 0 || stats.ScoreDistribution["800"] != 1 {
		t.Fatalf("expected bucket to move, got %v", stats.ScoreDistribution)
	}
}

func TestFirstCorrectDailySubmission(t *testing.T) {
	e := newEnv(t)
	res, err := e.scores.Submit(context.Background(), zoneGuess("u1", "copenhagen", 123))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Success || res.AggregatedScore != 1 || res.AggregatedStreak != 0 {
		t.Fatalf("expected aggregated 1/0, got %+v", res)
	}
	if res.RewardInfo == nil || res.RewardInfo.Status != domain.RewardPending || res.RewardInfo.RevealAt != "2026-10-19T00:00:00Z" {
		t.Fatalf("unexpected reward info %+v", res.RewardInfo)
	}

	entry, ok := load[domain.LeaderboardEntry](t, e.store, domain.ChallengeLeaderboardPath("zone", "2026-10-18", "u1"))
	if !ok || entry.Score != 123 {
		t.Fatalf("challenge board must hold the raw score, got %+v", entry)
	}
	if _, ok := load[domain.LeaderboardEntry](t, e.store, domain.LeaderboardPath("zone", "u1")); ok {
		t.Fatalf("main board must not be credited before the claim")
	}
	reward, _ := load[domain.RewardRecord](t, e.store, domain.RewardPath("u1", "2026-10-18"))
	if reward.Status != domain.RewardPending || reward.SolveState != domain.SolveStateSolved || reward.GameID != "zone" {
		t.Fatalf("unexpected reward %+v", reward)
	}
	progress, _ := load[domain.DailyChallengeProgress](t, e.store, domain.ChallengeProgressPath("u1", "zone", "2026-10-18"))
	if !progress.Solved || progress.AttemptCount != 1 || progress.BestScore == nil || *progress.BestScore != 123 {
		t.Fatalf("unexpected progress %+v", progress)
	}
}

func TestIncorrectThenCorrectDailySubmission(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	miss, err := e.scores.Submit(ctx, zoneGuess("u1", "stockholm", 0))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if miss.AggregatedScore != 0 || miss.AggregatedStreak != 1 {
		t.Fatalf("first miss must credit streak, got %+v", miss)
	}

	hit, err := e.scores.Submit(ctx, zoneGuess("u1", "Copenhagan", 40))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if hit.AggregatedScore != 1 || hit.AggregatedStreak != 1 {
		t.Fatalf("first solve must credit score, got %+v", hit)
	}

	progress, _ := load[domain.DailyChallengeProgress](t, e.store, domain.ChallengeProgressPath("u1", "zone", "2026-10-18"))
	if progress.AttemptCount != 2 || !progress.Solved {
		t.Fatalf("unexpected progress %+v", progress)
	}
	stats, _ := load[domain.GameStats](t, e.store, domain.ChallengeStatsPath("zone", "2026-10-18"))
	if stats.TotalPlayers != 1 || stats.SessionsPlayed != 2 {
		t.Fatalf("unexpected challenge stats %+v", stats)
	}
	if !stats.UpdatedAt.Equal(e.clock.Now()) {
		t.Fatalf("challenge stats must carry a timestamp, got %v", stats.UpdatedAt)
	}
}

func TestVIPListOnFirstSubmission(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, sub := range []domain.Submission{arcade("u1", 10, 0), arcade("u1", 20, 0), arcade("u2", 10, 0)} {
		if _, err := e.scores.Submit(ctx, sub); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	game, _ := load[domain.Game](t, e.store, domain.GamePath("pac"))
	if len(game.VIP) != 1 || game.VIP[0] != "u1" {
		t.Fatalf("expected only u1 on the VIP list, got %v", game.VIP)
	}
}

func TestUniqueCountersCountUsersOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	subs := []domain.Submission{arcade("u1", 10, 0), arcade("u1", 20, 0), arcade("u2", 30, 0)}
	bare := arcade("u3", 5, 0)
	bare.GameData.Custom = nil
	subs = append(subs, bare)
	for _, sub := range subs {
		if _, err := e.scores.Submit(ctx, sub); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	stats, _ := load[domain.GameStats](t, e.store, domain.GameStatsPath("pac"))
	if stats.TotalPlayers != 3 || stats.UniqueSubmitters != 2 || stats.SessionsPlayed != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSubmitErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	mismatch := arcade("u1", 10, 0)
	mismatch.GameTypeID = domain.GameTypeQuiz
	missingChallenge := zoneGuess("u1", "x", 1)
	missingChallenge.DailyChallengeID = "2026-01-01"
	dailyWithoutID := zoneGuess("u1", "x", 1)
	dailyWithoutID.DailyChallengeID = ""
	negative := arcade("u1", -5, 0)
	noData := arcade("u1", 0, 0)
	noData.GameData = nil
	slashed := arcade("u1", 1, 0)
	slashed.GameID = "pac/evil"

	cases := []struct {
		name string
		sub  domain.Submission
		kind domain.Kind
	}{
		{"unauthenticated", arcade("", 10, 0), domain.KindUnauthenticated},
		{"game type mismatch", mismatch, domain.KindInvalidArgument},
		{"missing user", arcade("ghost", 10, 0), domain.KindNotFound},
		{"missing challenge", missingChallenge, domain.KindNotFound},
		{"daily without challenge id", dailyWithoutID, domain.KindInvalidArgument},
		{"negative score", negative, domain.KindInvalidArgument},
		{"missing game data", noData, domain.KindInvalidArgument},
		{"path separator in id", slashed, domain.KindInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.scores.Submit(ctx, tc.sub)
			if got := domain.KindOf(err); got != tc.kind {
				t.Fatalf("expected %s, got %s (%v)", tc.kind, got, err)
			}
		})
	}

	if _, ok := load[domain.UserGameRecord](t, e.store, domain.UserGamePath("u1", "pac")); ok {
		t.Fatalf("failed submissions must not write")
	}
}

func TestSameUserRaceIsLastCommitterWins(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	arrangements := [][]string{{"a", "b"}, {"b", "a"}}
	var wg sync.WaitGroup
	errs := make(chan error, len(arrangements))
	for _, slots := range arrangements {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.scores.Submit(ctx, domain.Submission{
				UserID:     "u1",
				GameTypeID: domain.GameTypePyramid,
				GameID:     "pyr",
				GameData: &domain.GameData{
					Score: 10,
					Custom: map[string]any{
						"pyramid": []any{map[string]any{"tier": 1, "slots": []any{slots[0], slots[1]}}},
					},
				},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	record, _ := load[domain.UserGameRecord](t, e.store, domain.UserGamePath("u1", "pyr"))
	entry, _ := load[domain.LeaderboardEntry](t, e.store, domain.LeaderboardPath("pyr", "u1"))
	recordTiers := record.Custom["pyramid"]
	entryTiers := entry.Custom["pyramid"]
	if recordTiers == nil || entryTiers == nil {
		t.Fatalf("expected tiers on record and entry, got %v / %v", record.Custom, entry.Custom)
	}
	if !sameTiers(recordTiers, entryTiers) {
		t.Fatalf("record and entry must come from the same commit: %v vs %v", recordTiers, entryTiers)
	}
	stats, _ := load[domain.GameStats](t, e.store, domain.GameStatsPath("pyr"))
	if stats.SessionsPlayed != 2 || stats.TotalPlayers != 1 {
		t.Fatalf("no increment may be lost or doubled, got %+v", stats)
	}
}

func sameTiers(a, b any) bool {
	return docstore.Compare(firstSlot(a), firstSlot(b)) == 0
}

func firstSlot(v any) any {
	tiers, _ := v.([]any)
	if len(tiers) == 0 {
		return nil
	}
	tier, _ := tiers[0].(map[string]any)
	slots, _ := tier["slots"].([]any)
	if len(slots) == 0 {
		return nil
	}
	return slots[0]
}

type exhaustedStore struct {
	*memory.DocumentStore
}

func (exhaustedStore) RunTransaction(context.Context, func(context.Context, docstore.Tx) error) error {
	return docstore.ErrTooManyAttempts
}

func TestExhaustedRetriesAreRetryable(t *testing.T) {
	e := newEnv(t)
	svc := app.NewScoreService(exhaustedStore{e.store}, games.NewRegistry(nil), nil, nil, nil, app.Options{})
	_, err := svc.Submit(context.Background(), arcade("u1", 10, 0))
	if domain.KindOf(err) != domain.KindInternal || !domain.IsRetryable(err) {
		t.Fatalf("expected retryable internal error, got %v", err)
	}
	if !errors.Is(err, docstore.ErrTooManyAttempts) {
		t.Fatalf("expected cause to be kept, got %v", err)
	}
}
