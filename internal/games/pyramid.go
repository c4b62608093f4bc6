package games

import (
	"context"
	"strconv"

	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/separation"
)

// PyramidChanged reports whether next differs from prev tier by tier and
// slot by slot. Slot order matters.
func PyramidChanged(prev, next separation.Pyramid) bool {
	if prev.WorstItem != next.WorstItem || len(prev.Tiers) != len(next.Tiers) {
		return true
	}
	for i := range prev.Tiers {
		if tierChanged(prev.Tiers[i], next.Tiers[i]) {
			return true
		}
	}
	return false
}

func tierChanged(a, b separation.PyramidTier) bool {
	if a.Tier != b.Tier || len(a.Slots) != len(b.Slots) {
		return true
	}
	for i := range a.Slots {
		if a.Slots[i] != b.Slots[i] {
			return true
		}
	}
	return false
}

func processPyramid(_ context.Context, in *Input) (Outcome, error) {
	next := separation.ParsePyramid(in.Custom())
	if len(next.Tiers) == 0 {
		return Outcome{}, domain.Invalid("pyramid.process", "pyramid submission has no tiers")
	}

	changed := true
	if in.Previous != nil {
		changed = PyramidChanged(separation.ParsePyramid(in.Previous.Custom), next)
	}

	itemRanks := map[string]any{}
	for item, tier := range next.Items() {
		itemRanks[item] = map[string]any{strconv.Itoa(tier): docstore.Increment(1)}
	}
	stats := map[string]any{"itemRanks": itemRanks}
	if next.WorstItem != "" {
		stats["worstItemCounts"] = map[string]any{next.WorstItem: docstore.Increment(1)}
	}

	data := in.Submission.Data()
	return Outcome{
		Score:           data.Score,
		Streak:          data.Streak,
		Separated:       separation.PyramidData(next, data.Score),
		PersistOnChange: changed,
		StatsCustom:     stats,
	}, nil
}
