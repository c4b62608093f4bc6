package challenge

import (
	"testing"
	"time"

	"game-score-engine/internal/answer"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/games"
)

var now = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func zoneInput(distance int, match bool, score int, progress *domain.DailyChallengeProgress) Input {
	return Input{
		GameID:      "g1",
		GameTypeID:  domain.GameTypeZoneReveal,
		ChallengeID: "2026-10-18",
		Challenge:   domain.DailyChallenge{Date: "2026-10-18"},
		Progress:    progress,
		Submission:  domain.Submission{DailyChallengeID: "2026-10-18"},
		Outcome: games.Outcome{
			Score:      score,
			Attempts:   1,
			Evaluation: &answer.Evaluation{Distance: distance, IsMatch: match},
		},
		Now: now,
	}
}

func TestFirstCorrectAttempt(t *testing.T) {
	res := Process(zoneInput(0, true, 123, nil))
	if res.ScoreDelta != 1 || res.StreakDelta != 0 {
		t.Fatalf("expected score credit only, got %+v", res)
	}
	if res.BestScore != 123 || *res.Progress.BestScore != 123 {
		t.Fatalf("expected best score 123, got %d", res.BestScore)
	}
	if !res.Progress.Solved || res.Progress.SolvedAt == "" || res.Progress.AttemptCount != 1 {
		t.Fatalf("unexpected progress %+v", res.Progress)
	}
	if res.Reward.Status != domain.RewardPending || res.Reward.SolveState != domain.SolveStateSolved {
		t.Fatalf("unexpected reward %+v", res.Reward)
	}
	if res.Reward.RevealAt != "2026-10-19T00:00:00Z" {
		t.Fatalf("expected reveal at date+24h, got %s", res.Reward.RevealAt)
	}
	if _, ok := res.Stats["totalPlayers"]; !ok {
		t.Fatalf("first attempt must count a player, got %v", res.Stats)
	}
}

func TestIncorrectThenCorrect(t *testing.T) {
	first := Process(zoneInput(10, false, 0, nil))
	if first.StreakDelta != 1 || first.ScoreDelta != 0 {
		t.Fatalf("first miss must credit streak, got %+v", first)
	}
	if first.Reward.SolveState != domain.SolveStateFailed {
		t.Fatalf("expected failed solve state, got %s", first.Reward.SolveState)
	}

	progress := first.Progress
	in := zoneInput(0, true, 50, &progress)
	in.Reward = &first.Reward
	second := Process(in)
	if second.ScoreDelta != 1 || second.StreakDelta != 0 {
		t.Fatalf("first solve must credit score, got %+v", second)
	}
	if second.Progress.AttemptCount != 2 || second.Progress.Counters["attempts"] != 2 || second.Progress.Counters["correctAttempts"] != 1 {
		t.Fatalf("unexpected progress %+v", second.Progress)
	}
	if !second.Reward.CreatedAt.Equal(first.Reward.CreatedAt) || second.Reward.SolveState != domain.SolveStateSolved {
		t.Fatalf("unexpected reward %+v", second.Reward)
	}
	if _, ok := second.Stats["totalPlayers"]; ok {
		t.Fatalf("returning player must not be counted again")
	}

	progress = second.Progress
	third := Process(zoneInput(4, false, 10, &progress))
	if third.ScoreDelta != 0 || third.StreakDelta != 0 || !third.Progress.Solved || third.BestScore != 50 {
		t.Fatalf("later attempts must not credit again or unsolve, got %+v", third)
	}
}

func TestClaimedRewardStaysClaimed(t *testing.T) {
	claimedAt := now.Add(-time.Hour)
	in := zoneInput(0, true, 1, nil)
	in.Reward = &domain.RewardRecord{Status: domain.RewardClaimed, ClaimedAt: &claimedAt, CreatedAt: now.Add(-48 * time.Hour)}
	res := Process(in)
	if res.Reward.Status != domain.RewardClaimed || res.Reward.ClaimedAt == nil || !res.Reward.ClaimedAt.Equal(claimedAt) {
		t.Fatalf("claimed record must keep its status, got %+v", res.Reward)
	}
}

func TestResolveRevealAtOrder(t *testing.T) {
	ch := domain.DailyChallenge{Date: "2026-10-18", RevealAt: "2026-10-18T20:00:00+02:00"}
	meta := map[string]any{"revealAt": "2026-10-18T12:00:00Z"}
	if got := ResolveRevealAt(meta, ch, "", "c1", now); got != "2026-10-18T12:00:00Z" {
		t.Fatalf("payload metadata must win, got %s", got)
	}
	if got := ResolveRevealAt(nil, ch, "", "c1", now); got != "2026-10-18T18:00:00Z" {
		t.Fatalf("challenge reveal must be used, got %s", got)
	}
	if got := ResolveRevealAt(nil, domain.DailyChallenge{}, "", "c1", now); got != "2026-10-19T09:30:00Z" {
		t.Fatalf("expected now+24h fallback, got %s", got)
	}
}

func TestIsCorrectByGameType(t *testing.T) {
	trivia := games.Outcome{Attempts: 10, Correct: 7, Accuracy: 0.7}
	if IsCorrect(domain.GameTypeTrivia, domain.Game{}, domain.DailyChallenge{}, trivia) {
		t.Fatalf("0.7 accuracy must miss the default threshold")
	}
	lenient := domain.DailyChallenge{Custom: map[string]any{"solveThreshold": 0.6}}
	if !IsCorrect(domain.GameTypeTrivia, domain.Game{}, lenient, trivia) {
		t.Fatalf("challenge threshold must apply")
	}
	target := domain.DailyChallenge{Custom: map[string]any{"targetScore": float64(500)}}
	if IsCorrect(domain.GameTypePacman, domain.Game{}, target, games.Outcome{Score: 499}) {
		t.Fatalf("score below target must not solve")
	}
	if !IsCorrect(domain.GameTypeQuiz, domain.Game{}, domain.DailyChallenge{}, games.Outcome{}) {
		t.Fatalf("completed quiz must solve")
	}
}
