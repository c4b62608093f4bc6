package docstore

import (
	"testing"
	"time"
)

func TestApplyMergeIsDeep(t *testing.T) {
	base := map[string]any{
		"counters": map[string]any{"sessionsPlayed": float64(2), "favorites": float64(1)},
		"name":     "pacman",
	}
	w, err := newMergeWrite("games/g1/stats/general", map[string]any{
		"counters": map[string]any{"sessionsPlayed": Increment(1)},
	})
	if err != nil {
		t.Fatalf("merge write: %v", err)
	}
	doc := Apply(base, w)

	counters := doc["counters"].(map[string]any)
	if counters["sessionsPlayed"] != float64(3) {
		t.Fatalf("expected sessionsPlayed 3, got %v", counters["sessionsPlayed"])
	}
	if counters["favorites"] != float64(1) {
		t.Fatalf("expected favorites untouched, got %v", counters["favorites"])
	}
	if doc["name"] != "pacman" {
		t.Fatalf("expected name kept, got %v", doc["name"])
	}
	if base["counters"].(map[string]any)["sessionsPlayed"] != float64(2) {
		t.Fatalf("apply must not mutate the base document")
	}
}

func TestApplySetReplacesDocument(t *testing.T) {
	type entry struct {
		Score     int       `json:"score"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
	w, err := newSetWrite("games/g1/leaderboard/u1", entry{Score: 7, UpdatedAt: time.Unix(0, 0).UTC()})
	if err != nil {
		t.Fatalf("set write: %v", err)
	}
	doc := Apply(map[string]any{"stale": true}, w)
	if _, ok := doc["stale"]; ok {
		t.Fatalf("set should drop previous fields")
	}
	if doc["score"] != float64(7) {
		t.Fatalf("expected score 7, got %v", doc["score"])
	}
	if doc["updatedAt"] != "1970-01-01T00:00:00Z" {
		t.Fatalf("expected RFC3339 timestamp, got %v", doc["updatedAt"])
	}
}

func TestApplyUpdateDottedPathsAndArrays(t *testing.T) {
	base := map[string]any{"vip": []any{"u1"}}
	w, err := newUpdateWrite("games/g1", map[string]any{
		"vip":                   ArrayUnion("u1", "u2"),
		"scoreDistribution.10":  Increment(-1),
		"scoreDistribution.12":  Increment(1),
		"custom.worstItem.name": "broccoli",
	})
	if err != nil {
		t.Fatalf("update write: %v", err)
	}
	doc := Apply(base, w)

	vip := doc["vip"].([]any)
	if len(vip) != 2 || vip[1] != "u2" {
		t.Fatalf("expected union to append u2 once, got %v", vip)
	}
	dist := doc["scoreDistribution"].(map[string]any)
	if dist["10"] != float64(-1) || dist["12"] != float64(1) {
		t.Fatalf("unexpected distribution %v", dist)
	}
	worst, ok := Lookup(doc, "custom.worstItem.name")
	if !ok || worst != "broccoli" {
		t.Fatalf("expected nested field, got %v", worst)
	}

	remove, _ := newUpdateWrite("games/g1", map[string]any{"vip": ArrayRemove("u1")})
	doc = Apply(doc, remove)
	if vip := doc["vip"].([]any); len(vip) != 1 || vip[0] != "u2" {
		t.Fatalf("expected u1 removed, got %v", vip)
	}
}

func TestUpdateRejectsEmptySegments(t *testing.T) {
	if _, err := newUpdateWrite("games/g1", map[string]any{"a..b": 1}); err == nil {
		t.Fatalf("expected invalid field path error")
	}
}
