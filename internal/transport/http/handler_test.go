package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"game-score-engine/internal/app"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/games"
	"game-score-engine/internal/infra/memory"
	"game-score-engine/internal/logger"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store := memory.NewDocumentStore()
	seeds := map[string]any{
		domain.UserPath("u1"):  domain.UserProfile{UID: "u1", Username: "alice"},
		domain.GamePath("pac"): domain.Game{GameTypeID: domain.GameTypePacman},
	}
	for path, doc := range seeds {
		if err := store.Seed(path, doc); err != nil {
			t.Fatalf("seed %s: %v", path, err)
		}
	}

	opts := app.Options{}
	cache := memory.NewLeaderboardCache(app.NewLeaderboardReader(store, nil), time.Minute, 10)
	feed := app.NewFeed(memory.NewFeedRegistry(), nil)
	h := NewHandler(
		app.NewScoreService(store, games.NewRegistry(games.NewHMACHasher("secret")), cache, feed, nil, opts),
		app.NewRewardService(store, cache, nil, opts),
		app.NewFavoriteService(store, nil, opts),
		app.NewLeaderboardService(store, cache, feed, opts),
		nil,
	)
	return h.Routes()
}

func do(t *testing.T, h http.Handler, method, path, uid string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if uid != "" {
		req.Header.Set(UserHeader, uid)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubmitScoreAndReadBoard(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/v1/scores", "u1", map[string]any{
		"gameTypeId": domain.GameTypePacman,
		"gameId":     "pac",
		"gameData":   map[string]any{"score": 120, "streak": 2},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}
	var res domain.SubmitResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || res.AggregatedScore != 120 {
		t.Fatalf("unexpected result %+v", res)
	}

	rec = do(t, h, http.MethodGet, "/v1/games/pac/leaderboard?type=top&limit=10", "", nil)
	var lb domain.Leaderboard
	if err := json.NewDecoder(rec.Body).Decode(&lb); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UID != "u1" {
		t.Fatalf("unexpected board %+v", lb)
	}

	rec = do(t, h, http.MethodGet, "/v1/games/pac/rank", "u1", nil)
	var rank domain.RankInfo
	if err := json.NewDecoder(rec.Body).Decode(&rank); err != nil {
		t.Fatalf("decode rank: %v", err)
	}
	if rank.Rank != 1 || rank.TotalPlayers != 1 {
		t.Fatalf("unexpected rank %+v", rank)
	}
}

func TestErrorMapping(t *testing.T) {
	h := newTestHandler(t)
	cases := []struct {
		name   string
		method string
		path   string
		uid    string
		body   any
		status int
		kind   domain.Kind
	}{
		{"missing identity", http.MethodPost, "/v1/scores", "", map[string]any{"gameTypeId": domain.GameTypePacman, "gameId": "pac"}, http.StatusUnauthorized, domain.KindUnauthenticated},
		{"invalid payload", http.MethodPost, "/v1/scores", "u1", map[string]any{"gameId": "pac"}, http.StatusBadRequest, domain.KindInvalidArgument},
		{"missing game data", http.MethodPost, "/v1/scores", "u1", map[string]any{"gameTypeId": domain.GameTypePacman, "gameId": "pac"}, http.StatusBadRequest, domain.KindInvalidArgument},
		{"unknown game", http.MethodPost, "/v1/scores", "u1", map[string]any{"gameTypeId": domain.GameTypePacman, "gameId": "nope", "gameData": map[string]any{"score": 1}}, http.StatusNotFound, domain.KindNotFound},
		{"unknown board type", http.MethodGet, "/v1/games/pac/leaderboard?type=weekly", "u1", nil, http.StatusBadRequest, domain.KindInvalidArgument},
		{"rank without entry", http.MethodGet, "/v1/games/pac/rank", "u1", nil, http.StatusNotFound, domain.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.uid, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error.Kind != tc.kind || body.Error.Message == "" {
				t.Fatalf("unexpected error body %+v", body)
			}
		})
	}
}

func TestClaimAndFavoriteEndpoints(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/v1/rewards/claim", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var claim domain.ClaimResult
	if err := json.NewDecoder(rec.Body).Decode(&claim); err != nil {
		t.Fatalf("decode claim: %v", err)
	}
	if claim.Processed == nil || len(claim.Processed) != 0 {
		t.Fatalf("unexpected claim %+v", claim)
	}

	rec = do(t, h, http.MethodPost, "/v1/favorites", "u1", map[string]any{"gameId": "pac", "favorite": true})
	var fav app.FavoriteResult
	if err := json.NewDecoder(rec.Body).Decode(&fav); err != nil {
		t.Fatalf("decode favorite: %v", err)
	}
	if !fav.Favorite || !fav.Changed {
		t.Fatalf("unexpected favorite %+v", fav)
	}
}

func TestConfigurationErrorsSurfaceAsInternal(t *testing.T) {
	h := &Handler{log: logger.Nop()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/scores", nil)
	h.writeError(rec, req, domain.NewError(domain.KindConfiguration, "trivia.hash", "trivia hash secret is not configured", domain.ErrMissingSecret))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Kind != domain.KindInternal || body.Error.Retryable || body.Error.Message != "internal error" {
		t.Fatalf("configuration detail must stay server-side, got %+v", body.Error)
	}
}

func TestStatusFor(t *testing.T) {
	if StatusFor(domain.KindFailedPrecondition) != http.StatusPreconditionFailed {
		t.Fatalf("failed precondition must map to 412")
	}
	if StatusFor(domain.KindConfiguration) != http.StatusInternalServerError {
		t.Fatalf("configuration errors must map to 500")
	}
	if StatusFor(domain.KindPermissionDenied) != http.StatusForbidden {
		t.Fatalf("permission denied must map to 403")
	}
}
