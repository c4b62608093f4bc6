package app

import (
	"context"

	"github.com/go-playground/validator/v10"

	"game-score-engine/internal/challenge"
	"game-score-engine/internal/counters"
	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
	"game-score-engine/internal/games"
	"game-score-engine/internal/logger"
)

// ScoreService is the submission orchestrator. Every submission is one
// transaction; the store retries it from the first read on conflict.
type ScoreService struct {
	store    docstore.Store
	registry *games.Registry
	validate *validator.Validate
	boards   TopBoards
	feed     *Feed
	log      *logger.Logger
	opts     Options
}

// NewScoreService wires the orchestrator. boards and feed may be nil.
func NewScoreService(store docstore.Store, registry *games.Registry, boards TopBoards, feed *Feed, log *logger.Logger, opts Options) *ScoreService {
	if log == nil {
		log = logger.Nop()
	}
	return &ScoreService{
		store:    store,
		registry: registry,
		validate: validator.New(),
		boards:   boards,
		feed:     feed,
		log:      log,
		opts:     opts.withDefaults(),
	}
}

// submitState is everything read before processing.
type submitState struct {
	user      domain.UserProfile
	game      domain.Game
	record    *domain.UserGameRecord
	counters  counters.State
	challenge *domain.DailyChallenge
	progress  *domain.DailyChallengeProgress
	reward    *domain.RewardRecord
	entry     *domain.LeaderboardEntry
}

// Submit validates, scores and persists one play.
func (s *ScoreService) Submit(ctx context.Context, sub domain.Submission) (domain.SubmitResult, error) {
	const op = "score.submit"
	if sub.UserID == "" {
		return domain.SubmitResult{}, domain.NewError(domain.KindUnauthenticated, op, "authentication required", nil)
	}
	if err := s.validate.StructCtx(ctx, sub); err != nil {
		return domain.SubmitResult{}, domain.Invalid(op, "%s", err.Error())
	}
	if sub.IsDaily() && sub.DailyChallengeID == "" {
		return domain.SubmitResult{}, domain.Invalid(op, "dailyChallengeId is required for daily challenge submissions")
	}

	var result domain.SubmitResult
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		st, err := s.load(ctx, tx, sub)
		if err != nil {
			return err
		}
		if sub.IsDaily() {
			result, err = s.submitDaily(ctx, tx, sub, st)
		} else {
			result, err = s.submitRegular(ctx, tx, sub, st)
		}
		return err
	})
	if err != nil {
		s.log.Warn("score submission failed", "uid", sub.UserID, "game_id", sub.GameID, "kind", domain.KindOf(err), "error", err)
		return domain.SubmitResult{}, txError(op, err)
	}

	s.log.Info("score submitted",
		"uid", sub.UserID,
		"game_id", sub.GameID,
		"challenge_id", sub.DailyChallengeID,
		"success", result.Success,
		"score", result.AggregatedScore,
		"streak", result.AggregatedStreak,
	)
	s.afterCommit(ctx, sub.GameID, sub.DailyChallengeID)
	return result, nil
}

func (s *ScoreService) load(ctx context.Context, tx docstore.Tx, sub domain.Submission) (submitState, error) {
	const op = "score.load"
	uid, gameID := sub.UserID, sub.GameID
	paths := []string{
		domain.UserPath(uid),
		domain.GamePath(gameID),
		domain.UserGamePath(uid, gameID),
		domain.CounterStatePath(uid, gameID),
	}
	if sub.IsDaily() {
		cid := sub.DailyChallengeID
		paths = append(paths,
			domain.ChallengePath(gameID, cid),
			domain.ChallengeProgressPath(uid, gameID, cid),
			domain.RewardPath(uid, cid),
			domain.ChallengeLeaderboardPath(gameID, cid, uid),
		)
	} else {
		paths = append(paths, domain.LeaderboardPath(gameID, uid))
	}
	snaps, err := tx.GetAll(ctx, paths...)
	if err != nil {
		return submitState{}, err
	}

	var st submitState
	user, ok, err := decodeUser(snaps[0])
	if err != nil {
		return st, err
	}
	if !ok {
		return st, domain.NotFound(op, domain.ErrUserNotFound)
	}
	st.user = user

	game, ok, err := decode[domain.Game](snaps[1])
	if err != nil {
		return st, err
	}
	if !ok {
		return st, domain.NotFound(op, domain.ErrGameNotFound)
	}
	if game.GameTypeID != "" && game.GameTypeID != sub.GameTypeID {
		return st, domain.NewError(domain.KindInvalidArgument, op, domain.ErrGameTypeMismatch.Error(), domain.ErrGameTypeMismatch)
	}
	st.game = game

	if st.record, err = decodePtr[domain.UserGameRecord](snaps[2]); err != nil {
		return st, err
	}
	state, _, err := decode[domain.CounterState](snaps[3])
	if err != nil {
		return st, err
	}
	st.counters = counters.State(state.Flags)

	if !sub.IsDaily() {
		if snaps[4].Exists {
			entry, err := decodeEntry(snaps[4])
			if err != nil {
				return st, err
			}
			st.entry = &entry
		}
		return st, nil
	}

	if st.challenge, err = decodePtr[domain.DailyChallenge](snaps[4]); err != nil {
		return st, err
	}
	if st.challenge == nil {
		return st, domain.NotFound(op, domain.ErrChallengeNotFound)
	}
	if st.progress, err = decodePtr[domain.DailyChallengeProgress](snaps[5]); err != nil {
		return st, err
	}
	if st.reward, err = decodePtr[domain.RewardRecord](snaps[6]); err != nil {
		return st, err
	}
	if snaps[7].Exists {
		entry, err := decodeEntry(snaps[7])
		if err != nil {
			return st, err
		}
		st.entry = &entry
	}
	return st, nil
}

func (s *ScoreService) submitRegular(ctx context.Context, tx docstore.Tx, sub domain.Submission, st submitState) (domain.SubmitResult, error) {
	now := s.opts.Now().UTC()
	uid, gameID := sub.UserID, sub.GameID

	out, err := s.registry.Lookup(sub.GameTypeID).Process(ctx, &games.Input{
		Tx:            tx,
		GameID:        gameID,
		Game:          st.game,
		Previous:      st.record,
		Submission:    sub,
		AttemptNumber: 1,
		Now:           now,
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}

	persist := st.record == nil || out.Score > st.record.Score || out.PersistOnChange

	stats, err := s.counterWrites(tx, sub, st)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if persist {
		var previous *int
		if st.record != nil {
			previous = &st.record.Score
		}
		for k, v := range counters.Distribution(previous, out.Score) {
			stats[k] = v
		}
		if len(out.StatsCustom) > 0 {
			stats["custom"] = out.StatsCustom
		}
	}
	stats["updatedAt"] = now
	if err := tx.SetMerge(domain.GameStatsPath(gameID), stats); err != nil {
		return domain.SubmitResult{}, err
	}
	if err := s.sharedWrites(tx, sub, st, out); err != nil {
		return domain.SubmitResult{}, err
	}

	if !persist {
		return domain.SubmitResult{
			Success:          false,
			AggregatedScore:  st.record.Score,
			AggregatedStreak: st.record.Streak,
		}, nil
	}

	record := domain.UserGameRecord{
		GameTypeID: sub.GameTypeID,
		Score:      out.Score,
		Streak:     out.Streak,
		LastPlayed: now.UnixMilli(),
		Custom:     out.Separated.User,
		UpdatedAt:  now,
	}
	if err := tx.Set(domain.UserGamePath(uid, gameID), record); err != nil {
		return domain.SubmitResult{}, err
	}
	entry := newEntry(st.user, out.Score, out.Streak, out.Separated.Leaderboard, now)
	if err := tx.Set(domain.LeaderboardPath(gameID, uid), entry); err != nil {
		return domain.SubmitResult{}, err
	}
	return domain.SubmitResult{
		Success:          true,
		AggregatedScore:  record.Score,
		AggregatedStreak: record.Streak,
	}, nil
}

func (s *ScoreService) submitDaily(ctx context.Context, tx docstore.Tx, sub domain.Submission, st submitState) (domain.SubmitResult, error) {
	now := s.opts.Now().UTC()
	uid, gameID, cid := sub.UserID, sub.GameID, sub.DailyChallengeID

	attempt := 1
	if st.progress != nil {
		attempt = st.progress.AttemptCount + 1
	}
	out, err := s.registry.Lookup(sub.GameTypeID).Process(ctx, &games.Input{
		Tx:            tx,
		GameID:        gameID,
		Game:          st.game,
		Challenge:     st.challenge,
		Previous:      st.record,
		Submission:    sub,
		AttemptNumber: attempt,
		Now:           now,
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}

	res := challenge.Process(challenge.Input{
		GameID:      gameID,
		GameTypeID:  sub.GameTypeID,
		ChallengeID: cid,
		Game:        st.game,
		Challenge:   *st.challenge,
		Progress:    st.progress,
		Reward:      st.reward,
		Submission:  sub,
		Outcome:     out,
		Now:         now,
	})

	record := domain.UserGameRecord{GameTypeID: sub.GameTypeID}
	var previous *int
	if st.record != nil {
		record = *st.record
		previous = &st.record.Score
	}
	record.GameTypeID = sub.GameTypeID
	record.Score += res.ScoreDelta
	record.Streak += res.StreakDelta
	record.LastPlayed = now.UnixMilli()
	record.UpdatedAt = now
	custom := map[string]any{}
	for k, v := range record.Custom {
		custom[k] = v
	}
	for k, v := range out.Separated.User {
		custom[k] = v
	}
	record.Custom = custom

	if err := tx.Set(domain.UserGamePath(uid, gameID), record); err != nil {
		return domain.SubmitResult{}, err
	}
	if err := tx.Set(domain.ChallengeProgressPath(uid, gameID, cid), res.Progress); err != nil {
		return domain.SubmitResult{}, err
	}
	if err := tx.Set(domain.RewardPath(uid, cid), res.Reward); err != nil {
		return domain.SubmitResult{}, err
	}

	boardCustom := map[string]any{}
	for k, v := range out.Separated.Leaderboard {
		boardCustom[k] = v
	}
	boardCustom["challenge"] = map[string]any{
		"solved":       res.Progress.Solved,
		"attemptCount": res.Progress.AttemptCount,
		"bestScore":    res.BestScore,
		"solvedAt":     res.Progress.SolvedAt,
	}
	entry := newEntry(st.user, res.BestScore, out.Streak, boardCustom, now)
	if err := tx.Set(domain.ChallengeLeaderboardPath(gameID, cid, uid), entry); err != nil {
		return domain.SubmitResult{}, err
	}
	if err := tx.SetMerge(domain.ChallengeStatsPath(gameID, cid), res.Stats); err != nil {
		return domain.SubmitResult{}, err
	}

	stats, err := s.counterWrites(tx, sub, st)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if st.record == nil || res.ScoreDelta != 0 {
		for k, v := range counters.Distribution(previous, record.Score) {
			stats[k] = v
		}
	}
	if len(out.StatsCustom) > 0 {
		stats["custom"] = out.StatsCustom
	}
	stats["updatedAt"] = now
	if err := tx.SetMerge(domain.GameStatsPath(gameID), stats); err != nil {
		return domain.SubmitResult{}, err
	}
	if err := s.sharedWrites(tx, sub, st, out); err != nil {
		return domain.SubmitResult{}, err
	}

	return domain.SubmitResult{
		Success:          true,
		AggregatedScore:  record.Score,
		AggregatedStreak: record.Streak,
		RewardInfo: &domain.RewardInfo{
			DailyChallengeID: cid,
			Status:           res.Reward.Status,
			RevealAt:         res.Reward.RevealAt,
		},
	}, nil
}

// counterWrites stages the idempotency flag changes and returns the stats
// increments they produce. The counter state was read in this transaction,
// so the flag write is version-checked.
func (s *ScoreService) counterWrites(tx docstore.Tx, sub domain.Submission, st submitState) (map[string]any, error) {
	updates := []counters.Update{
		counters.Unique(counters.TotalPlayers, 1),
		counters.Increment(counters.SessionsPlayed, 1),
	}
	if len(sub.Data().Custom) > 0 {
		updates = append(updates, counters.Unique(counters.UniqueSubmitters, 1))
	}
	next, delta := counters.Apply(updates, st.counters)
	if changed := counters.Changed(st.counters, next); len(changed) > 0 {
		if err := tx.SetMerge(domain.CounterStatePath(sub.UserID, sub.GameID), map[string]any{"flags": changed}); err != nil {
			return nil, err
		}
	}
	return delta.Transforms(), nil
}

// sharedWrites stages processor patches and the VIP list update.
func (s *ScoreService) sharedWrites(tx docstore.Tx, sub domain.Submission, st submitState, out games.Outcome) error {
	for _, p := range out.Patches {
		if err := tx.SetMerge(p.Path, p.Fields); err != nil {
			return err
		}
	}
	if st.record == nil && st.user.FollowersCount >= s.opts.VIPMinFollowers {
		if err := tx.Update(domain.GamePath(sub.GameID), map[string]any{"vip": docstore.ArrayUnion(sub.UserID)}); err != nil {
			return err
		}
	}
	return nil
}

// afterCommit invalidates cached pages and pushes the fresh top of the board
// to live subscribers. Failures are logged only.
func (s *ScoreService) afterCommit(ctx context.Context, gameID, challengeID string) {
	if s.boards == nil {
		return
	}
	if err := s.boards.Invalidate(ctx, gameID, challengeID); err != nil {
		s.log.Warn("leaderboard cache invalidation failed", "game_id", gameID, "challenge_id", challengeID, "error", err)
	}
	topic := FeedTopic(gameID, challengeID)
	if s.feed == nil || !s.feed.HasSubscribers(topic) {
		return
	}
	lb, err := s.boards.GetTop(ctx, gameID, challengeID, FeedSize)
	if err != nil {
		s.log.Warn("leaderboard feed refresh failed", "topic", topic, "error", err)
		return
	}
	s.feed.Publish(topic, lb)
}
