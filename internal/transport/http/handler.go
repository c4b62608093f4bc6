package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"game-score-engine/internal/app"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/logger"
	"github.com/google/uuid"
)

// UserHeader carries the caller identity set by the upstream auth proxy.
const UserHeader = "X-User-ID"

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type ctxKey int

const (
	userKey ctxKey = iota
	requestIDKey
)

// Handler serves the engine's JSON API.
type Handler struct {
	scores  *app.ScoreService
	rewards *app.RewardService
	favs    *app.FavoriteService
	boards  *app.LeaderboardService
	log     *logger.Logger
}

func NewHandler(scores *app.ScoreService, rewards *app.RewardService, favs *app.FavoriteService, boards *app.LeaderboardService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{scores: scores, rewards: rewards, favs: favs, boards: boards, log: log}
}

// Routes mounts every endpoint, the websocket feed included.
func (h *Handler) Routes() http.Handler {
	ws := NewWSHandler(h.boards, h.log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /v1/scores", h.submitScore)
	mux.HandleFunc("POST /v1/rewards/claim", h.claimRewards)
	mux.HandleFunc("POST /v1/favorites", h.toggleFavorite)
	mux.HandleFunc("GET /v1/games/{gameId}/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /v1/games/{gameId}/rank", h.rank)
	mux.HandleFunc("GET /ws/leaderboard", ws.ServeWS)
	return h.withRequestID(mux)
}

func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		if uid := r.Header.Get(UserHeader); uid != "" {
			ctx = context.WithValue(ctx, userKey, uid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the caller identity attached by the middleware.
func UserID(ctx context.Context) string {
	uid, _ := ctx.Value(userKey).(string)
	return uid
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (h *Handler) submitScore(w http.ResponseWriter, r *http.Request) {
	var sub domain.Submission
	if !h.decode(w, r, "score.submit", &sub) {
		return
	}
	sub.UserID = UserID(r.Context())
	res, err := h.scores.Submit(r.Context(), sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) claimRewards(w http.ResponseWriter, r *http.Request) {
	var req app.ClaimRequest
	if r.ContentLength != 0 && !h.decode(w, r, "reward.claim", &req) {
		return
	}
	res, err := h.rewards.Claim(r.Context(), UserID(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type favoriteRequest struct {
	GameID   string `json:"gameId"`
	Favorite bool   `json:"favorite"`
}

func (h *Handler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if !h.decode(w, r, "favorite.toggle", &req) {
		return
	}
	res, err := h.favs.Toggle(r.Context(), UserID(r.Context()), req.GameID, req.Favorite)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "leaderboard.get"
	gameID := r.PathValue("gameId")
	q := r.URL.Query()
	challengeID := q.Get("challengeId")
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, domain.Invalid(op, "limit must be a number"))
			return
		}
		limit = n
	}

	var (
		lb  domain.Leaderboard
		err error
	)
	switch typ := q.Get("type"); typ {
	case "", "top":
		lb, err = h.boards.Top(r.Context(), gameID, challengeID, limit)
	case "around", "friends":
		uid := UserID(r.Context())
		if uid == "" {
			h.writeError(w, r, domain.NewError(domain.KindUnauthenticated, op, "authentication required", nil))
			return
		}
		if typ == "around" {
			lb, err = h.boards.Around(r.Context(), uid, gameID, challengeID)
		} else {
			lb, err = h.boards.Friends(r.Context(), uid, gameID, challengeID)
		}
	case "vip":
		lb, err = h.boards.VIP(r.Context(), gameID, limit)
	default:
		err = domain.Invalid(op, "unknown leaderboard type %q", typ)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) rank(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		h.writeError(w, r, domain.NewError(domain.KindUnauthenticated, "leaderboard.rank", "authentication required", nil))
		return
	}
	info, err := h.boards.Rank(r.Context(), uid, r.PathValue("gameId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.writeError(w, r, domain.Invalid(op, "malformed request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
