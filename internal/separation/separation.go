// Package separation splits a game's custom payload into the public slice
// stored on leaderboard entries and the private slice stored on the user's
// game record. Every function is total: malformed input yields zero values.
package separation

import (
	"sort"

	"game-score-engine/internal/answer"
	"game-score-engine/internal/payload"
)

// Result holds both slices. Either may be empty but never nil.
type Result struct {
	Leaderboard map[string]any
	User        map[string]any
}

func newResult() Result {
	return Result{Leaderboard: map[string]any{}, User: map[string]any{}}
}

// TriviaMetrics are the server-computed figures of one trivia run.
type TriviaMetrics struct {
	QuestionIDs  []string
	AnswerHashes []string
	Mode         string
	AttemptCount int
	CorrectCount int
	Accuracy     float64
	Score        int
	Streak       int
	LastPlayed   int64
}

// Trivia exposes hashes and accuracy publicly. Plaintext answers never leave
// the processor.
func Trivia(m TriviaMetrics) Result {
	r := newResult()
	mode := m.Mode
	if mode == "" {
		mode = "fixed"
	}
	questionIDs := nonNil(m.QuestionIDs)
	r.Leaderboard["trivia"] = map[string]any{
		"questionIds":     questionIDs,
		"answerHashes":    nonNil(m.AnswerHashes),
		"mode":            mode,
		"attemptCount":    m.AttemptCount,
		"correctCount":    m.CorrectCount,
		"accuracy":        m.Accuracy,
		"score":           m.Score,
		"streak":          m.Streak,
		"lastQuestionIds": questionIDs,
		"lastAccuracy":    m.Accuracy,
	}
	r.User["trivia"] = map[string]any{
		"score":      m.Score,
		"streak":     m.Streak,
		"lastPlayed": m.LastPlayed,
	}
	return r
}

// QuizResult is the personality or archetype outcome of a quiz.
type QuizResult struct {
	ID    string
	Title string
	Image string
}

// ParseQuizResult reads custom.quiz.personalityResult or archetypeResult.
func ParseQuizResult(custom map[string]any) (QuizResult, string) {
	quiz := payload.Map(custom, "quiz")
	mode := payload.String(quiz["mode"])
	result := QuizResult{Image: payload.String(quiz["resultImage"])}
	if p := payload.Map(quiz, "personalityResult"); p != nil {
		result.ID = payload.String(p["bucketId"])
		result.Title = payload.String(p["title"])
		if mode == "" {
			mode = "personality"
		}
	} else if a := payload.Map(quiz, "archetypeResult"); a != nil {
		result.ID = payload.String(a["id"])
		result.Title = payload.String(a["title"])
		if mode == "" {
			mode = "archetype"
		}
	}
	return result, mode
}

// Quiz keeps the answer sheet public for analytics and the result private.
func Quiz(custom map[string]any) Result {
	r := newResult()
	result, mode := ParseQuizResult(custom)
	quiz := payload.Map(custom, "quiz")

	selected := map[string]any{}
	for k, v := range payload.Map(quiz, "selectedAnswers") {
		selected[k] = payload.Int(v, 0)
	}
	questionIDs := payload.Strings(quiz["questionIds"])
	if len(questionIDs) == 0 {
		for k := range selected {
			questionIDs = append(questionIDs, k)
		}
		sort.Strings(questionIDs)
	}

	r.Leaderboard["quiz"] = map[string]any{
		"questionIds":     nonNil(questionIDs),
		"selectedAnswers": selected,
		"result":          map[string]any{"id": result.ID, "title": result.Title},
		"mode":            mode,
	}
	userResult := map[string]any{"id": result.ID, "title": result.Title}
	if result.Image != "" {
		userResult["image"] = result.Image
	}
	r.User["quiz"] = map[string]any{"result": userResult, "mode": mode}
	return r
}

// PyramidTier is one row of a tier ranking. Empty slots are "".
type PyramidTier struct {
	Tier  int
	Slots []string
}

// Pyramid is a user's tier arrangement plus the item they ranked worst.
type Pyramid struct {
	Tiers     []PyramidTier
	WorstItem string
}

// ParsePyramid reads custom.pyramid and custom.worstItem.id.
func ParsePyramid(custom map[string]any) Pyramid {
	var p Pyramid
	for i, tier := range payload.Objects(custom["pyramid"]) {
		row := PyramidTier{Tier: payload.Int(tier["tier"], i+1)}
		slots, _ := tier["slots"].([]any)
		for _, slot := range slots {
			row.Slots = append(row.Slots, slotID(slot))
		}
		p.Tiers = append(p.Tiers, row)
	}
	p.WorstItem = slotID(custom["worstItem"])
	return p
}

// Slots may hold a bare ID or an item object.
func slotID(v any) string {
	if m, ok := v.(map[string]any); ok {
		return payload.String(m["id"])
	}
	return payload.String(v)
}

// Items lists the placed item IDs with their tier.
func (p Pyramid) Items() map[string]int {
	out := map[string]int{}
	for _, tier := range p.Tiers {
		for _, id := range tier.Slots {
			if id != "" {
				out[id] = tier.Tier
			}
		}
	}
	return out
}

func (p Pyramid) toMap() []any {
	tiers := make([]any, 0, len(p.Tiers))
	for _, tier := range p.Tiers {
		slots := make([]any, 0, len(tier.Slots))
		for _, id := range tier.Slots {
			if id == "" {
				slots = append(slots, nil)
				continue
			}
			slots = append(slots, id)
		}
		tiers = append(tiers, map[string]any{"tier": tier.Tier, "slots": slots})
	}
	return tiers
}

// PyramidData publishes the arrangement by item ID only.
func PyramidData(p Pyramid, score int) Result {
	r := newResult()
	r.Leaderboard["pyramid"] = p.toMap()
	r.Leaderboard["worstItem"] = map[string]any{"id": p.WorstItem}
	r.User["pyramid"] = p.toMap()
	r.User["worstItem"] = map[string]any{"id": p.WorstItem}
	r.User["score"] = score
	return r
}

// ZoneReveal publishes only the normalized answer.
func ZoneReveal(ev answer.Evaluation, attemptCount, score, streak int) Result {
	r := newResult()
	if attemptCount <= 0 {
		attemptCount = 1
	}
	r.Leaderboard["zoneReveal"] = map[string]any{
		"answer":       ev.NormalizedAnswer,
		"distance":     ev.Distance,
		"isMatch":      ev.IsMatch,
		"attemptCount": attemptCount,
	}
	r.User["zoneReveal"] = map[string]any{
		"answer": ev.NormalizedAnswer,
		"score":  score,
		"streak": streak,
	}
	return r
}

// Pacman reads custom.pacman, falling back to custom.level.
func Pacman(custom map[string]any, score int) Result {
	r := newResult()
	data := payload.Map(custom, "pacman")
	level := payload.Int(data["level"], payload.Int(custom["level"], 1))
	r.Leaderboard["pacman"] = map[string]any{
		"level":          level,
		"score":          score,
		"livesRemaining": payload.Int(data["livesRemaining"], 0),
		"timeElapsed":    payload.Int(data["timeElapsed"], 0),
	}
	r.User["pacman"] = map[string]any{"score": score, "level": level}
	return r
}

// Fisher reads custom.fisherGame.
func Fisher(custom map[string]any, score int) Result {
	r := newResult()
	data := payload.Map(custom, "fisherGame")
	fish := payload.Int(data["fishCaught"], 0)
	r.Leaderboard["fisherGame"] = map[string]any{
		"score":       score,
		"fishCaught":  fish,
		"timeElapsed": payload.Int(data["timeElapsed"], 0),
	}
	r.User["fisherGame"] = map[string]any{"score": score, "fishCaught": fish}
	return r
}

// Generic keeps unknown payloads private.
func Generic(custom map[string]any) Result {
	r := newResult()
	for k, v := range custom {
		r.User[k] = v
	}
	return r
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
