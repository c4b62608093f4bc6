package app

import (
	"context"

	"game-score-engine/internal/counters"
	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/logger"
)

// FavoriteResult reports the stored flag and whether this call moved it.
type FavoriteResult struct {
	Favorite bool `json:"favorite"`
	Changed  bool `json:"changed"`
}

type FavoriteService struct {
	store docstore.Store
	log   *logger.Logger
	opts  Options
}

func NewFavoriteService(store docstore.Store, log *logger.Logger, opts Options) *FavoriteService {
	if log == nil {
		log = logger.Nop()
	}
	return &FavoriteService{store: store, log: log, opts: opts.withDefaults()}
}

// Toggle sets the user's favorite flag for a game. The favorites counter
// moves only when the flag actually flips.
func (s *FavoriteService) Toggle(ctx context.Context, uid, gameID string, favorite bool) (FavoriteResult, error) {
	const op = "favorite.toggle"
	if uid == "" {
		return FavoriteResult{}, domain.NewError(domain.KindUnauthenticated, op, "authentication required", nil)
	}
	if gameID == "" || !docstore.ValidPath(domain.GamePath(gameID)) {
		return FavoriteResult{}, domain.Invalid(op, "gameId is required")
	}

	var res FavoriteResult
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snaps, err := tx.GetAll(ctx, domain.UserPath(uid), domain.GamePath(gameID), domain.CounterStatePath(uid, gameID))
		if err != nil {
			return err
		}
		if !snaps[0].Exists {
			return domain.NotFound(op, domain.ErrUserNotFound)
		}
		if !snaps[1].Exists {
			return domain.NotFound(op, domain.ErrGameNotFound)
		}
		state, _, err := decode[domain.CounterState](snaps[2])
		if err != nil {
			return err
		}

		before := counters.State(state.Flags)
		after, delta := counters.Apply([]counters.Update{counters.Toggle(counters.Favorites, favorite, 1)}, before)
		res = FavoriteResult{Favorite: favorite, Changed: len(delta) > 0}
		if !res.Changed {
			return nil
		}

		now := s.opts.Now().UTC()
		stats := delta.Transforms()
		stats["updatedAt"] = now
		if err := tx.SetMerge(domain.GameStatsPath(gameID), stats); err != nil {
			return err
		}
		if err := tx.SetMerge(domain.CounterStatePath(uid, gameID), map[string]any{"flags": counters.Changed(before, after)}); err != nil {
			return err
		}
		list := docstore.ArrayRemove(gameID)
		if favorite {
			list = docstore.ArrayUnion(gameID)
		}
		return tx.Update(domain.UserPath(uid), map[string]any{"favoriteGames": list})
	})
	if err != nil {
		return FavoriteResult{}, txError(op, err)
	}
	s.log.Debug("favorite toggled", "uid", uid, "game_id", gameID, "favorite", res.Favorite, "changed", res.Changed)
	return res, nil
}
