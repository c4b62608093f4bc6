package app

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
)

// Page size bounds for leaderboard reads.
const (
	MinPageSize = 10
	MaxPageSize = 50
	// AroundWindow is the number of neighbours shown on each side of a user.
	AroundWindow = 5
	// inChunk is the largest "in" filter issued in one query.
	inChunk = 30
)

// ClampLimit keeps a requested page size within bounds.
func ClampLimit(limit int) int {
	switch {
	case limit < MinPageSize:
		return MinPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// LeaderboardReader queries boards straight from the store. Caches wrap it.
type LeaderboardReader struct {
	store docstore.Store
	now   func() time.Time
}

func NewLeaderboardReader(store docstore.Store, now func() time.Time) *LeaderboardReader {
	if now == nil {
		now = time.Now
	}
	return &LeaderboardReader{store: store, now: now}
}

// LoadTop returns the first limit entries by score then streak.
func (r *LeaderboardReader) LoadTop(ctx context.Context, gameID, challengeID string, limit int) (domain.Leaderboard, error) {
	snaps, err := r.store.Query(ctx, docstore.Query{
		Collection: domain.BoardCollection(gameID, challengeID),
		OrderBy:    rankOrder,
		Limit:      limit,
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	entries, err := decodeEntries(snaps)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{GameID: gameID, ChallengeID: challengeID, Entries: entries, UpdatedAt: r.now().UTC()}, nil
}

var rankOrder = []docstore.Order{{Field: "score", Desc: true}, {Field: "streak", Desc: true}}

// LeaderboardService is the read side: top, around-me, friends, VIP and rank.
type LeaderboardService struct {
	store  docstore.Store
	boards TopBoards
	feed   *Feed
	now    func() time.Time
}

func NewLeaderboardService(store docstore.Store, boards TopBoards, feed *Feed, opts Options) *LeaderboardService {
	opts = opts.withDefaults()
	return &LeaderboardService{store: store, boards: boards, feed: feed, now: opts.Now}
}

// Top returns the head of a main or challenge board.
func (s *LeaderboardService) Top(ctx context.Context, gameID, challengeID string, limit int) (domain.Leaderboard, error) {
	lb, err := s.boards.GetTop(ctx, gameID, challengeID, ClampLimit(limit))
	if err != nil {
		return domain.Leaderboard{}, domain.Wrap(domain.KindInternal, "leaderboard.top", err)
	}
	return lb, nil
}

// Around returns up to AroundWindow entries on each side of the user. A user
// without an entry gets an empty page.
func (s *LeaderboardService) Around(ctx context.Context, uid, gameID, challengeID string) (domain.Leaderboard, error) {
	const op = "leaderboard.around"
	col := domain.BoardCollection(gameID, challengeID)
	lb := domain.Leaderboard{GameID: gameID, ChallengeID: challengeID, Entries: []domain.LeaderboardEntry{}, UpdatedAt: s.now().UTC()}

	snap, err := s.store.Get(ctx, col+"/"+uid)
	if err != nil {
		return lb, domain.Wrap(domain.KindInternal, op, err)
	}
	if !snap.Exists {
		return lb, nil
	}
	self, err := decodeEntry(snap)
	if err != nil {
		return lb, domain.Wrap(domain.KindInternal, op, err)
	}

	var above, same, below []docstore.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		above, err = s.store.Query(gctx, docstore.Query{
			Collection: col,
			Filters:    []docstore.Filter{{Field: "score", Op: docstore.OpGt, Value: self.Score}},
			OrderBy:    []docstore.Order{{Field: "score"}, {Field: "streak"}},
			Limit:      AroundWindow,
		})
		return err
	})
	g.Go(func() error {
		var err error
		same, err = s.store.Query(gctx, docstore.Query{
			Collection: col,
			Filters:    []docstore.Filter{{Field: "score", Op: docstore.OpEq, Value: self.Score}},
			OrderBy:    rankOrder,
		})
		return err
	})
	g.Go(func() error {
		var err error
		below, err = s.store.Query(gctx, docstore.Query{
			Collection: col,
			Filters:    []docstore.Filter{{Field: "score", Op: docstore.OpLt, Value: self.Score}},
			OrderBy:    rankOrder,
			Limit:      AroundWindow,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return lb, domain.Wrap(domain.KindInternal, op, err)
	}

	ordered := make([]docstore.Snapshot, 0, len(above)+len(same)+len(below))
	for i := len(above) - 1; i >= 0; i-- {
		ordered = append(ordered, above[i])
	}
	ordered = append(ordered, same...)
	ordered = append(ordered, below...)

	entries, err := decodeEntries(ordered)
	if err != nil {
		return lb, domain.Wrap(domain.KindInternal, op, err)
	}
	idx := 0
	for i, e := range entries {
		if e.UID == uid {
			idx = i
			break
		}
	}
	lo := max(0, idx-AroundWindow)
	hi := min(len(entries), idx+AroundWindow+1)
	lb.Entries = entries[lo:hi]
	return lb, nil
}

// Friends ranks the user's frenemies and the user.
func (s *LeaderboardService) Friends(ctx context.Context, uid, gameID, challengeID string) (domain.Leaderboard, error) {
	const op = "leaderboard.friends"
	snap, err := s.store.Get(ctx, domain.UserPath(uid))
	if err != nil {
		return domain.Leaderboard{}, domain.Wrap(domain.KindInternal, op, err)
	}
	user, ok, err := decodeUser(snap)
	if err != nil {
		return domain.Leaderboard{}, domain.Wrap(domain.KindInternal, op, err)
	}
	if !ok {
		return domain.Leaderboard{}, domain.NotFound(op, domain.ErrUserNotFound)
	}
	entries, err := s.byUIDs(ctx, domain.BoardCollection(gameID, challengeID), append([]string{uid}, user.Frenemies...))
	if err != nil {
		return domain.Leaderboard{}, domain.Wrap(domain.KindInternal, op, err)
	}
	return domain.Leaderboard{GameID: gameID, ChallengeID: challengeID, Entries: entries, UpdatedAt: s.now().UTC()}, nil
}

// VIP ranks the game's VIP players on its main board.
func (s *LeaderboardService) VIP(ctx context.Context, gameID string, limit int) (domain.Leaderboard, error) {
	const op = "leaderboard.vip"
	snap, err := s.store.Get(ctx, domain.GamePath(gameID))
	if err != nil {
		return domain.Leaderboard{}, domain.Wrap(domain.KindInternal, op, err)
	}
	game, ok, err := decode[domain.Game](snap)
	if err != nil {
		return domain.Leaderboard{}, domain.Wrap(domain.KindInternal, op, err)
	}
	if !ok {
		return domain.Leaderboard{}, domain.NotFound(op, domain.ErrGameNotFound)
	}
	entries, err := s.byUIDs(ctx, domain.LeaderboardCollection(gameID), game.VIP)
	if err != nil {
		return domain.Leaderboard{}, domain.Wrap(domain.KindInternal, op, err)
	}
	if limit = ClampLimit(limit); len(entries) > limit {
		entries = entries[:limit]
	}
	return domain.Leaderboard{GameID: gameID, Entries: entries, UpdatedAt: s.now().UTC()}, nil
}

// byUIDs fetches entries in parallel "in" chunks and ranks them. Duplicate
// and missing UIDs are skipped.
func (s *LeaderboardService) byUIDs(ctx context.Context, col string, uids []string) ([]domain.LeaderboardEntry, error) {
	seen := make(map[string]struct{}, len(uids))
	unique := make([]any, 0, len(uids))
	for _, uid := range uids {
		if uid == "" {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		unique = append(unique, uid)
	}

	chunks := make([][]docstore.Snapshot, (len(unique)+inChunk-1)/inChunk)
	g, gctx := errgroup.WithContext(ctx)
	for i := range chunks {
		part := unique[i*inChunk : min(len(unique), (i+1)*inChunk)]
		g.Go(func() error {
			snaps, err := s.store.Query(gctx, docstore.Query{
				Collection: col,
				Filters:    []docstore.Filter{{Field: "uid", Op: docstore.OpIn, Value: part}},
			})
			chunks[i] = snaps
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []docstore.Snapshot
	for _, c := range chunks {
		all = append(all, c...)
	}
	entries, err := decodeEntries(all)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].Streak != entries[j].Streak {
			return entries[i].Streak > entries[j].Streak
		}
		return entries[i].UID < entries[j].UID
	})
}

// Rank computes the user's rank and percentile on the main board.
func (s *LeaderboardService) Rank(ctx context.Context, uid, gameID string) (domain.RankInfo, error) {
	const op = "leaderboard.rank"
	col := domain.LeaderboardCollection(gameID)
	snap, err := s.store.Get(ctx, domain.LeaderboardPath(gameID, uid))
	if err != nil {
		return domain.RankInfo{}, domain.Wrap(domain.KindInternal, op, err)
	}
	if !snap.Exists {
		return domain.RankInfo{}, domain.NotFound(op, domain.ErrLeaderboardEntryNotFound)
	}
	self, err := decodeEntry(snap)
	if err != nil {
		return domain.RankInfo{}, domain.Wrap(domain.KindInternal, op, err)
	}

	var higher, tiedAhead, lower, total int
	base := docstore.Query{Collection: col}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		higher, err = s.store.Count(gctx, base.Where("score", docstore.OpGt, self.Score))
		return err
	})
	g.Go(func() error {
		var err error
		tiedAhead, err = s.store.Count(gctx, base.Where("score", docstore.OpEq, self.Score).Where("streak", docstore.OpGt, self.Streak))
		return err
	})
	g.Go(func() error {
		var err error
		lower, err = s.store.Count(gctx, base.Where("score", docstore.OpLt, self.Score))
		return err
	})
	g.Go(func() error {
		stats, err := s.store.Get(gctx, domain.GameStatsPath(gameID))
		if err != nil {
			return err
		}
		st, _, err := decode[domain.GameStats](stats)
		if err != nil {
			return err
		}
		total = st.TotalPlayers
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.RankInfo{}, domain.Wrap(domain.KindInternal, op, err)
	}
	if total <= 0 {
		if total, err = s.store.Count(ctx, base); err != nil {
			return domain.RankInfo{}, domain.Wrap(domain.KindInternal, op, err)
		}
	}

	return domain.RankInfo{
		Rank:         higher + tiedAhead + 1,
		Percentile:   Percentile(lower, total),
		Score:        self.Score,
		Streak:       self.Streak,
		TotalPlayers: total,
	}, nil
}

// Percentile is the share of players strictly below, rounded and clamped
// to [0, 100].
func Percentile(below, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(below) / float64(total)))
	return min(100, max(0, p))
}

// Subscribe streams the top of a board, starting with the current page.
func (s *LeaderboardService) Subscribe(ctx context.Context, gameID, challengeID string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Top(ctx, gameID, challengeID, FeedSize)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(ctx, FeedTopic(gameID, challengeID), initial)
	return ch, cancel, nil
}
