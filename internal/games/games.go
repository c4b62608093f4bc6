// Package games holds one outcome processor per game type. A processor
// scores a submission, splits its payload into public and private slices and
// returns any auxiliary document patches; it never writes itself.
package games

import (
	"context"
	"time"

	"game-score-engine/internal/answer"
	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/separation"
)

// Input is everything a processor may look at. Tx may be used for reads only;
// all reads happen before the orchestrator buffers any write.
type Input struct {
	Tx         docstore.Reader
	GameID     string
	Game       domain.Game
	Challenge  *domain.DailyChallenge
	Previous   *domain.UserGameRecord
	Submission domain.Submission
	// AttemptNumber is 1 for regular submissions and the challenge attempt
	// count (including this one) for daily submissions.
	AttemptNumber int
	Now           time.Time
}

// Custom returns the submitted custom payload.
func (in *Input) Custom() map[string]any {
	return in.Submission.Data().Custom
}

// Patch is a merge write to a document the processor read.
type Patch struct {
	Path   string
	Fields map[string]any
}

// Outcome is a processor's normalized verdict on one submission.
type Outcome struct {
	Score     int
	Streak    int
	Separated separation.Result

	// PersistOnChange persists the record even without a higher score.
	PersistOnChange bool

	// Attempts and Correct count graded answers; trivia grades many per
	// submission, other game types at most one.
	Attempts   int
	Correct    int
	Accuracy   float64
	Evaluation *answer.Evaluation

	AttemptMetadata map[string]any
	Patches         []Patch
	// StatsCustom is merged into GameStats.custom when the record persists.
	StatsCustom map[string]any
}

// Processor scores one game type.
type Processor interface {
	Process(ctx context.Context, in *Input) (Outcome, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, in *Input) (Outcome, error)

func (f ProcessorFunc) Process(ctx context.Context, in *Input) (Outcome, error) {
	return f(ctx, in)
}

// Registry dispatches on gameTypeId. Unknown types use the generic processor.
type Registry struct {
	processors map[string]Processor
	fallback   Processor
}

// NewRegistry wires the built-in processors. hasher verifies plaintext
// trivia answers.
func NewRegistry(hasher Hasher) *Registry {
	return &Registry{
		processors: map[string]Processor{
			domain.GameTypeTrivia:     &triviaProcessor{hasher: hasher},
			domain.GameTypeQuiz:       ProcessorFunc(processQuiz),
			domain.GameTypeZoneReveal: ProcessorFunc(processZoneReveal),
			domain.GameTypePyramid:    ProcessorFunc(processPyramid),
			domain.GameTypePacman:     arcade(separation.Pacman),
			domain.GameTypeFisher:     arcade(separation.Fisher),
		},
		fallback: ProcessorFunc(processGeneric),
	}
}

// Register adds or replaces the processor for a game type.
func (r *Registry) Register(gameTypeID string, p Processor) {
	r.processors[gameTypeID] = p
}

// Lookup returns the processor for gameTypeID.
func (r *Registry) Lookup(gameTypeID string) Processor {
	if p, ok := r.processors[gameTypeID]; ok {
		return p
	}
	return r.fallback
}

func arcade(separate func(map[string]any, int) separation.Result) Processor {
	return ProcessorFunc(func(_ context.Context, in *Input) (Outcome, error) {
		data := in.Submission.Data()
		return Outcome{
			Score:     data.Score,
			Streak:    data.Streak,
			Separated: separate(data.Custom, data.Score),
		}, nil
	})
}

func processGeneric(_ context.Context, in *Input) (Outcome, error) {
	data := in.Submission.Data()
	return Outcome{
		Score:     data.Score,
		Streak:    data.Streak,
		Separated: separation.Generic(data.Custom),
	}, nil
}
