package games

import (
	"context"
	"fmt"
	"sort"

	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/payload"
	"game-score-engine/internal/separation"
)

type triviaAttempt struct {
	QuestionID string
	Hash       string
	Answer     string
}

type triviaSubmission struct {
	Mode          string
	Attempts      []triviaAttempt
	QuestionIDs   []string
	BestStreak    int
	CurrentStreak int
}

type triviaProcessor struct {
	hasher Hasher
}

func (p *triviaProcessor) Process(ctx context.Context, in *Input) (Outcome, error) {
	const op = "trivia.process"

	sub, err := extractTrivia(in.Custom())
	if err != nil {
		return Outcome{}, err
	}
	if len(sub.Attempts) == 0 {
		return Outcome{}, domain.Invalid(op, "trivia submissions must include at least one answered question")
	}
	if len(sub.QuestionIDs) == 0 {
		return Outcome{}, domain.Invalid(op, "trivia submissions must include question identifiers")
	}
	if sub.Mode == "" {
		sub.Mode = payload.String(in.Game.Custom["mode"])
	}
	if sub.Mode == "" {
		sub.Mode = "fixed"
	}

	paths := make([]string, 0, len(sub.QuestionIDs))
	for _, id := range sub.QuestionIDs {
		paths = append(paths, domain.QuestionPath(in.GameID, id))
	}
	snaps, err := in.Tx.GetAll(ctx, paths...)
	if err != nil {
		return Outcome{}, err
	}
	questions := make(map[string]docstore.Snapshot, len(snaps))
	for i, snap := range snaps {
		if !snap.Exists {
			return Outcome{}, domain.NewError(domain.KindFailedPrecondition, op,
				fmt.Sprintf("trivia question %s does not exist", sub.QuestionIDs[i]), domain.ErrQuestionNotFound)
		}
		questions[sub.QuestionIDs[i]] = snap
	}

	type questionDelta struct {
		counts  map[string]int
		total   int
		correct int
	}
	deltas := map[string]*questionDelta{}
	hashes := make([]string, 0, len(sub.Attempts))
	correct := 0
	for _, attempt := range sub.Attempts {
		snap, ok := questions[attempt.QuestionID]
		if !ok {
			return Outcome{}, domain.Invalid(op, "unknown trivia question attempted: %s", attempt.QuestionID)
		}
		hash := attempt.Hash
		if hash == "" {
			hash, err = p.hasher.Hash(attempt.QuestionID, attempt.Answer, payload.String(snap.Data["salt"]))
			if err != nil {
				return Outcome{}, err
			}
		}
		hashes = append(hashes, hash)

		d := deltas[attempt.QuestionID]
		if d == nil {
			d = &questionDelta{counts: map[string]int{}}
			deltas[attempt.QuestionID] = d
		}
		d.counts[hash]++
		d.total++
		if _, ok := correctHashes(snap.Data)[hash]; ok {
			d.correct++
			correct++
		}
	}

	attempts := len(sub.Attempts)
	accuracy := float64(correct) / float64(attempts)
	streak := maxInt(in.Submission.Data().Streak, sub.BestStreak, sub.CurrentStreak)
	if in.Previous != nil && in.Previous.Streak > streak {
		streak = in.Previous.Streak
	}

	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	patches := make([]Patch, 0, len(ids))
	for _, id := range ids {
		d := deltas[id]
		counts := make(map[string]any, len(d.counts))
		for h, n := range d.counts {
			counts[h] = docstore.Increment(n)
		}
		patches = append(patches, Patch{
			Path: domain.QuestionPath(in.GameID, id),
			Fields: map[string]any{
				"answerCounts": counts,
				"stats": map[string]any{
					"totalAttempts":   docstore.Increment(d.total),
					"correctAttempts": docstore.Increment(d.correct),
				},
				"lastAnsweredAt": in.Now.UTC().Format(timeLayout),
				"updatedAt":      in.Now.UTC(),
			},
		})
	}

	return Outcome{
		Score:  correct,
		Streak: streak,
		Separated: separation.Trivia(separation.TriviaMetrics{
			QuestionIDs:  sub.QuestionIDs,
			AnswerHashes: hashes,
			Mode:         sub.Mode,
			AttemptCount: attempts,
			CorrectCount: correct,
			Accuracy:     accuracy,
			Score:        correct,
			Streak:       streak,
			LastPlayed:   in.Now.UnixMilli(),
		}),
		Attempts: attempts,
		Correct:  correct,
		Accuracy: accuracy,
		AttemptMetadata: map[string]any{
			"trivia": map[string]any{
				"mode":       sub.Mode,
				"score":      correct,
				"attempts":   attempts,
				"correct":    correct,
				"accuracy":   accuracy,
				"bestStreak": streak,
			},
		},
		Patches: patches,
	}, nil
}

// extractTrivia reads the run from custom.trivia, triviaSession,
// triviaMetadata or the custom root, in that order.
func extractTrivia(custom map[string]any) (triviaSubmission, error) {
	const op = "trivia.extract"

	var source map[string]any
	for _, key := range []string{"trivia", "triviaSession", "triviaMetadata"} {
		if m := payload.Map(custom, key); isTriviaSource(m) {
			source = m
			break
		}
	}
	if source == nil && isTriviaSource(custom) {
		source = custom
	}
	if source == nil {
		return triviaSubmission{}, domain.Invalid(op, "submission carries no trivia run")
	}

	sub := triviaSubmission{Mode: payload.String(source["mode"])}
	seen := map[string]bool{}
	addQuestion := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			sub.QuestionIDs = append(sub.QuestionIDs, id)
		}
	}
	for _, id := range payload.Strings(source["questionIds"]) {
		addQuestion(id)
	}
	for _, id := range payload.Strings(source["answeredQuestionIds"]) {
		addQuestion(id)
	}

	for _, raw := range payload.Objects(source["attempts"]) {
		attempt := triviaAttempt{QuestionID: payload.String(raw["questionId"])}
		if attempt.QuestionID == "" {
			attempt.QuestionID = payload.String(raw["id"])
		}
		if attempt.QuestionID == "" {
			continue
		}
		if v, ok := payload.First(raw, "answerHash", "hash"); ok {
			hash, valid := NormalizeHash(payload.String(v))
			if !valid {
				return triviaSubmission{}, domain.Invalid(op, "trivia answer hash has an invalid format")
			}
			attempt.Hash = hash
		} else if answer := payload.String(raw["answer"]); answer != "" {
			attempt.Answer = answer
		} else {
			continue
		}
		sub.Attempts = append(sub.Attempts, attempt)
		addQuestion(attempt.QuestionID)
	}

	for _, key := range []string{"bestStreak", "bestSessionStreak", "sessionBestStreak"} {
		sub.BestStreak = maxInt(sub.BestStreak, payload.Int(source[key], 0))
	}
	sub.CurrentStreak = payload.Int(source["currentStreak"], 0)
	switch s := source["streak"].(type) {
	case map[string]any:
		sub.BestStreak = maxInt(sub.BestStreak, payload.Int(s["best"], 0))
		sub.CurrentStreak = maxInt(sub.CurrentStreak, payload.Int(s["current"], 0))
	default:
		sub.BestStreak = maxInt(sub.BestStreak, payload.Int(s, 0))
	}
	return sub, nil
}

func isTriviaSource(m map[string]any) bool {
	if m == nil {
		return false
	}
	for _, key := range []string{"attempts", "mode", "questionIds", "answeredQuestionIds"} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}
