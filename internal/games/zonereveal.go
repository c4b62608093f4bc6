package games

import (
	"context"

	"game-score-engine/internal/answer"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/payload"
	"game-score-engine/internal/separation"
)

// AnswerSpec resolves the accepted answer from a challenge or game config.
// custom.answer may be a plain string or {solution, accepted, ...}.
func AnswerSpec(custom map[string]any) (answer.Spec, bool) {
	var spec answer.Spec
	switch v := custom["answer"].(type) {
	case string:
		spec.Solution = v
	case map[string]any:
		spec.Solution = payload.String(v["solution"])
		spec.AcceptedAnswers = payload.Strings(v["accepted"])
		spec.AcceptedAnswers = append(spec.AcceptedAnswers, payload.Strings(v["acceptedAnswers"])...)
		if raw, ok := v["maxDistance"]; ok {
			n := payload.Int(raw, answer.DefaultMaxDistance)
			spec.MaxDistance = &n
		}
		if f, ok := payload.Float(v["relativeThreshold"]); ok {
			spec.RelativeThreshold = f
		}
	}
	return spec, spec.Solution != "" || len(spec.AcceptedAnswers) > 0
}

// processZoneReveal always re-evaluates the attempt; any client-side match
// claim in the payload is ignored.
func processZoneReveal(_ context.Context, in *Input) (Outcome, error) {
	const op = "zonereveal.process"

	var spec answer.Spec
	found := false
	if in.Challenge != nil {
		spec, found = AnswerSpec(in.Challenge.Custom)
	}
	if !found {
		spec, found = AnswerSpec(in.Game.Custom)
	}
	if !found {
		return Outcome{}, domain.Precondition(op, "zone reveal answer is not configured")
	}

	attempt := zoneAttempt(in.Custom())
	if attempt == "" {
		return Outcome{}, domain.Invalid(op, "zone reveal submission missing answer")
	}

	ev := answer.Evaluate(spec, attempt)
	data := in.Submission.Data()
	correct := 0
	if ev.IsMatch {
		correct = 1
	}
	return Outcome{
		Score:      data.Score,
		Streak:     data.Streak,
		Separated:  separation.ZoneReveal(ev, in.AttemptNumber, data.Score, data.Streak),
		Attempts:   1,
		Correct:    correct,
		Accuracy:   float64(correct),
		Evaluation: &ev,
		AttemptMetadata: map[string]any{
			"normalizedAnswer": ev.NormalizedAnswer,
			"distance":         ev.Distance,
			"isMatch":          ev.IsMatch,
		},
	}, nil
}

func zoneAttempt(custom map[string]any) string {
	switch v := custom["answer"].(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := payload.First(v, "original", "value", "attempt"); ok {
			return payload.String(s)
		}
	}
	return ""
}
