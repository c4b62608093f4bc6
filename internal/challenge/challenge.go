// Package challenge computes a user's progress on a daily challenge and the
// pending reward record an attempt produces. Crediting the main leaderboard
// is left to the claim flow once the challenge is revealed.
package challenge

import (
	"time"

	"game-score-engine/internal/counters"
	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/games"
	"game-score-engine/internal/payload"
)

// DefaultSolveThreshold is the trivia accuracy needed to solve a challenge.
const DefaultSolveThreshold = 0.8

// RevealDelay is added to the challenge date when no reveal time is set.
const RevealDelay = 24 * time.Hour

const dateLayout = "2006-01-02"

// Input is one attempt at a challenge.
type Input struct {
	GameID      string
	GameTypeID  string
	ChallengeID string
	Game        domain.Game
	Challenge   domain.DailyChallenge
	// Progress and Reward are nil when the documents do not exist yet.
	Progress   *domain.DailyChallengeProgress
	Reward     *domain.RewardRecord
	Submission domain.Submission
	Outcome    games.Outcome
	Now        time.Time
}

// Result is everything the orchestrator writes for the attempt.
type Result struct {
	Progress domain.DailyChallengeProgress
	Reward   domain.RewardRecord
	// Correct is the verdict on this attempt alone; Progress.Solved is sticky.
	Correct      bool
	FirstAttempt bool
	// ScoreDelta and StreakDelta apply to the user's aggregated game record.
	ScoreDelta  int
	StreakDelta int
	BestScore   int
	// Stats holds blind increments for the challenge stats document.
	Stats map[string]any
}

// Process applies one attempt. It has no side effects.
func Process(in Input) Result {
	var prev domain.DailyChallengeProgress
	if in.Progress != nil {
		prev = *in.Progress
	}
	nowISO := in.Now.UTC().Format(time.RFC3339Nano)
	firstAttempt := !prev.Played
	correct := IsCorrect(in.GameTypeID, in.Game, in.Challenge, in.Outcome)
	solved := prev.Solved || correct

	next := prev
	next.Played = true
	next.Solved = solved
	next.AttemptCount = prev.AttemptCount + 1
	next.LastPlayedAt = nowISO
	if next.FirstPlayedAt == "" {
		next.FirstPlayedAt = nowISO
	}
	if correct && next.SolvedAt == "" {
		next.SolvedAt = nowISO
	}

	score := in.Outcome.Score
	best := score
	if prev.BestScore != nil && *prev.BestScore > best {
		best = *prev.BestScore
	}
	if prev.BestScore == nil || best > *prev.BestScore {
		next.BestScoreAt = nowISO
	}
	next.BestScore = &best

	metadata := map[string]any{"recordedAt": nowISO}
	for k, v := range in.Outcome.AttemptMetadata {
		metadata[k] = v
	}
	next.AttemptMetadata = metadata

	next.Counters = map[string]int{}
	for k, v := range prev.Counters {
		next.Counters[k] = v
	}
	next.Counters["attempts"]++
	if correct {
		next.Counters["correctAttempts"]++
	}

	res := Result{
		Progress:     next,
		Correct:      correct,
		FirstAttempt: firstAttempt,
		BestScore:    best,
	}
	switch {
	case firstAttempt && solved:
		res.ScoreDelta = 1
	case firstAttempt:
		res.StreakDelta = 1
	case correct && !prev.Solved:
		res.ScoreDelta = 1
	}

	res.Reward = rewardRecord(in, next, metadata)
	res.Stats = statsIncrements(in, prev, best, correct)
	return res
}

// IsCorrect decides whether a single attempt solves the challenge.
func IsCorrect(gameTypeID string, game domain.Game, ch domain.DailyChallenge, out games.Outcome) bool {
	switch gameTypeID {
	case domain.GameTypeTrivia:
		return out.Attempts > 0 && out.Accuracy >= solveThreshold(game, ch)
	case domain.GameTypeZoneReveal:
		return out.Evaluation != nil && out.Evaluation.IsMatch
	case domain.GameTypeQuiz, domain.GameTypePyramid:
		return true
	default:
		target, ok := payload.Float(ch.Custom["targetScore"])
		if !ok {
			return true
		}
		return float64(out.Score) >= target
	}
}

func solveThreshold(game domain.Game, ch domain.DailyChallenge) float64 {
	if v, ok := payload.Float(ch.Custom["solveThreshold"]); ok {
		return v
	}
	if v, ok := payload.Float(game.Custom["solveThreshold"]); ok {
		return v
	}
	return DefaultSolveThreshold
}

// ResolveRevealAt picks the reveal time: the submitted challenge metadata,
// then the challenge document, then the challenge date plus RevealDelay.
// The challenge ID is tried as a date when nothing else parses, and now plus
// RevealDelay is the last resort.
func ResolveRevealAt(meta map[string]any, ch domain.DailyChallenge, date, challengeID string, now time.Time) string {
	for _, candidate := range []string{payload.String(meta["revealAt"]), ch.RevealAt} {
		if t, ok := ParseTime(candidate); ok {
			return t.UTC().Format(time.RFC3339)
		}
	}
	for _, candidate := range []string{date, ch.Date, challengeID} {
		if t, err := time.ParseInLocation(dateLayout, candidate, time.UTC); err == nil {
			return t.Add(RevealDelay).Format(time.RFC3339)
		}
	}
	return now.UTC().Add(RevealDelay).Format(time.RFC3339)
}

// ParseTime accepts RFC 3339 timestamps with or without fractional seconds.
func ParseTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ResolveDate picks the challenge date recorded on the reward.
func ResolveDate(submitted string, ch domain.DailyChallenge, challengeID string) string {
	switch {
	case submitted != "":
		return submitted
	case ch.Date != "":
		return ch.Date
	default:
		return challengeID
	}
}

func rewardRecord(in Input, progress domain.DailyChallengeProgress, metadata map[string]any) domain.RewardRecord {
	now := in.Now.UTC()
	reward := domain.RewardRecord{
		GameID:             in.GameID,
		GameTypeID:         in.GameTypeID,
		DailyChallengeID:   in.ChallengeID,
		DailyChallengeDate: ResolveDate(in.Submission.DailyChallengeDate, in.Challenge, in.ChallengeID),
		RevealAt:           ResolveRevealAt(in.Submission.ChallengeMetadata, in.Challenge, in.Submission.DailyChallengeDate, in.ChallengeID, now),
		Status:             domain.RewardPending,
		SolveState:         domain.SolveStateFailed,
		IsMatch:            progress.Solved,
		CreatedAt:          now,
		UpdatedAt:          now,
		AttemptMetadata:    metadata,
	}
	if progress.Solved {
		reward.SolveState = domain.SolveStateSolved
	}
	if existing := in.Reward; existing != nil {
		if !existing.CreatedAt.IsZero() {
			reward.CreatedAt = existing.CreatedAt
		}
		if existing.Status == domain.RewardClaimed {
			reward.Status = domain.RewardClaimed
			reward.ClaimedAt = existing.ClaimedAt
		}
	}
	return reward
}

func statsIncrements(in Input, prev domain.DailyChallengeProgress, best int, correct bool) map[string]any {
	state := counters.State{counters.TotalPlayers: prev.Played}
	_, delta := counters.Apply([]counters.Update{
		counters.Unique(counters.TotalPlayers, 1),
		counters.Increment(counters.SessionsPlayed, 1),
	}, state)
	fields := delta.Transforms()

	attempts, correctCount := in.Outcome.Attempts, in.Outcome.Correct
	if attempts == 0 {
		attempts = 1
		if correct {
			correctCount = 1
		}
	}
	custom := map[string]any{"totalAttempts": docstore.Increment(attempts)}
	if correctCount > 0 {
		custom["correctAttempts"] = docstore.Increment(correctCount)
	}
	fields["custom"] = custom

	if dist := counters.Distribution(prev.BestScore, best); dist != nil {
		for k, v := range dist {
			fields[k] = v
		}
	}
	fields["updatedAt"] = in.Now.UTC()
	return fields
}
