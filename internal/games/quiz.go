package games

import (
	"context"

	"game-score-engine/internal/domain"
	"game-score-engine/internal/payload"
	"game-score-engine/internal/separation"
)

// Quizzes have no numeric score; the personality or archetype result is the
// artifact, so a changed result is persisted even at an equal score.
func processQuiz(_ context.Context, in *Input) (Outcome, error) {
	custom := in.Custom()
	result, mode := separation.ParseQuizResult(custom)
	if result.ID == "" {
		return Outcome{}, domain.Invalid("quiz.process", "quiz submission missing result")
	}
	if mode == "" {
		mode = payload.String(in.Game.Custom["mode"])
		custom = withQuizMode(custom, mode)
	}

	changed := true
	if in.Previous != nil {
		prevResult := payload.Map(payload.Map(in.Previous.Custom, "quiz"), "result")
		changed = payload.String(prevResult["id"]) != result.ID
	}

	data := in.Submission.Data()
	return Outcome{
		Score:           data.Score,
		Streak:          data.Streak,
		Separated:       separation.Quiz(custom),
		PersistOnChange: changed,
		AttemptMetadata: map[string]any{
			"quiz": map[string]any{"resultId": result.ID, "resultTitle": result.Title, "mode": mode},
		},
	}, nil
}

func withQuizMode(custom map[string]any, mode string) map[string]any {
	out := copyMap(custom)
	quiz := copyMap(payload.Map(custom, "quiz"))
	quiz["mode"] = mode
	out["quiz"] = quiz
	return out
}
