package app

import (
	"context"

	"game-score-engine/internal/challenge"
	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/logger"
)

// ClaimRequest narrows a claim to one challenge, one game, or neither.
type ClaimRequest struct {
	DailyChallengeID string `json:"dailyChallengeId,omitempty" validate:"omitempty,excludes=/"`
	GameID           string `json:"gameId,omitempty" validate:"omitempty,excludes=/"`
}

// RewardService moves revealed daily challenge rewards onto the main
// leaderboards.
type RewardService struct {
	store  docstore.Store
	boards TopBoards
	log    *logger.Logger
	opts   Options
}

func NewRewardService(store docstore.Store, boards TopBoards, log *logger.Logger, opts Options) *RewardService {
	if log == nil {
		log = logger.Nop()
	}
	return &RewardService{store: store, boards: boards, log: log, opts: opts.withDefaults()}
}

// Claim credits every revealed, pending reward the request selects. Each
// batch commits on its own; a record is credited at most once however many
// claims race for it.
func (s *RewardService) Claim(ctx context.Context, uid string, req ClaimRequest) (domain.ClaimResult, error) {
	const op = "reward.claim"
	result := domain.ClaimResult{Processed: []string{}, Deferred: []string{}, AlreadyClaimed: []string{}}
	if uid == "" {
		return result, domain.NewError(domain.KindUnauthenticated, op, "authentication required", nil)
	}

	ids, specific, err := s.rewardIDs(ctx, uid, req)
	if err != nil {
		return result, domain.Wrap(domain.KindInternal, op, err)
	}

	credited := map[string]struct{}{}
	for start := 0; start < len(ids); start += s.opts.ClaimBatchSize {
		end := min(start+s.opts.ClaimBatchSize, len(ids))
		batch, err := s.claimBatch(ctx, uid, ids[start:end], specific, req.GameID)
		if err != nil {
			s.log.Warn("reward claim batch failed", "uid", uid, "batch_start", start, "error", err)
			return result, txError(op, err)
		}
		result.Processed = append(result.Processed, batch.Processed...)
		result.Deferred = append(result.Deferred, batch.Deferred...)
		result.AlreadyClaimed = append(result.AlreadyClaimed, batch.AlreadyClaimed...)
		for _, gameID := range batch.games {
			credited[gameID] = struct{}{}
		}
	}

	s.log.Info("rewards claimed",
		"uid", uid,
		"processed", len(result.Processed),
		"deferred", len(result.Deferred),
		"already_claimed", len(result.AlreadyClaimed),
	)
	if s.boards != nil {
		for gameID := range credited {
			if err := s.boards.Invalidate(ctx, gameID, ""); err != nil {
				s.log.Warn("leaderboard cache invalidation failed", "game_id", gameID, "error", err)
			}
		}
	}
	return result, nil
}

// rewardIDs lists the candidate records. The listing happens outside the
// batch transactions; each batch re-reads what it acts on.
func (s *RewardService) rewardIDs(ctx context.Context, uid string, req ClaimRequest) ([]string, bool, error) {
	if req.DailyChallengeID != "" {
		return []string{req.DailyChallengeID}, true, nil
	}
	q := docstore.Query{Collection: domain.RewardsCollection(uid)}
	if req.GameID != "" {
		q = q.Where("gameId", docstore.OpEq, req.GameID)
	}
	snaps, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, false, err
	}
	ids := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		ids = append(ids, snap.ID())
	}
	return ids, false, nil
}

type batchResult struct {
	domain.ClaimResult
	games []string
}

func (s *RewardService) claimBatch(ctx context.Context, uid string, ids []string, specific bool, gameFilter string) (batchResult, error) {
	const op = "reward.claimBatch"
	var out batchResult
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		out = batchResult{ClaimResult: domain.ClaimResult{Processed: []string{}, Deferred: []string{}, AlreadyClaimed: []string{}}}
		now := s.opts.Now().UTC()

		paths := make([]string, 0, len(ids)+1)
		paths = append(paths, domain.UserPath(uid))
		for _, id := range ids {
			paths = append(paths, domain.RewardPath(uid, id))
		}
		snaps, err := tx.GetAll(ctx, paths...)
		if err != nil {
			return err
		}
		user, ok, err := decodeUser(snaps[0])
		if err != nil {
			return err
		}
		if !ok {
			return domain.Precondition(op, "user profile missing")
		}

		type claimable struct {
			id     string
			reward domain.RewardRecord
		}
		var ready []claimable
		for i, snap := range snaps[1:] {
			id := ids[i]
			reward, exists, err := decode[domain.RewardRecord](snap)
			if err != nil {
				return err
			}
			switch {
			case !exists:
				if specific {
					out.Deferred = append(out.Deferred, id)
				}
				continue
			case gameFilter != "" && reward.GameID != gameFilter:
				continue
			case reward.Status == domain.RewardClaimed:
				out.AlreadyClaimed = append(out.AlreadyClaimed, id)
				continue
			}
			revealAt, ok := challenge.ParseTime(reward.RevealAt)
			if !ok || now.Before(revealAt) || reward.GameID == "" {
				out.Deferred = append(out.Deferred, id)
				continue
			}
			ready = append(ready, claimable{id: id, reward: reward})
		}
		if len(ready) == 0 {
			return nil
		}

		// Read the entries about to be credited before any write is staged.
		entryPaths := make([]string, 0, len(ready))
		seen := map[string]struct{}{}
		for _, c := range ready {
			p := domain.LeaderboardPath(c.reward.GameID, uid)
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				entryPaths = append(entryPaths, p)
				out.games = append(out.games, c.reward.GameID)
			}
		}
		if _, err := tx.GetAll(ctx, entryPaths...); err != nil {
			return err
		}

		for _, c := range ready {
			fields := displayFields(user)
			if c.reward.SolveState == domain.SolveStateSolved {
				fields["score"] = docstore.Increment(1)
				fields["streak"] = docstore.Increment(0)
			} else {
				fields["score"] = docstore.Increment(0)
				fields["streak"] = docstore.Increment(1)
			}
			fields["updatedAt"] = now
			if err := tx.SetMerge(domain.LeaderboardPath(c.reward.GameID, uid), fields); err != nil {
				return err
			}
			if err := tx.Update(domain.RewardPath(uid, c.id), map[string]any{
				"status":    domain.RewardClaimed,
				"claimedAt": now,
				"updatedAt": now,
			}); err != nil {
				return err
			}
			out.Processed = append(out.Processed, c.id)
		}
		return nil
	})
	return out, err
}
