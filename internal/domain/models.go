package domain

import "time"

// Game type identifiers used for processor dispatch.
const (
	GameTypeTrivia     = "Trivia"
	GameTypeQuiz       = "Quiz"
	GameTypeZoneReveal = "ZoneReveal"
	GameTypePyramid    = "PyramidTier"
	GameTypePacman     = "PacmanGame"
	GameTypeFisher     = "FisherGame"
)

// DefaultLeaderboardPhoto is used when a profile has no photo.
const DefaultLeaderboardPhoto = "https://www.top-x.co/assets/profile.png"

// UserProfile is the subset of the user document the engine reads.
type UserProfile struct {
	UID            string   `json:"uid"`
	Username       string   `json:"username,omitempty"`
	DisplayName    string   `json:"displayName,omitempty"`
	PhotoURL       string   `json:"photoURL,omitempty"`
	FollowersCount int      `json:"followersCount"`
	Frenemies      []string `json:"frenemies,omitempty"`
	FavoriteGames  []string `json:"favoriteGames,omitempty"`
}

// GameData is the client-reported result of one play.
type GameData struct {
	Score      int            `json:"score" validate:"gte=0"`
	Streak     int            `json:"streak" validate:"gte=0"`
	LastPlayed int64          `json:"lastPlayed"`
	Custom     map[string]any `json:"custom,omitempty"`
}

// UserGameRecord is a user's best-known result for one game.
type UserGameRecord struct {
	GameTypeID string         `json:"gameTypeId"`
	Score      int            `json:"score"`
	Streak     int            `json:"streak"`
	LastPlayed int64          `json:"lastPlayed"`
	Custom     map[string]any `json:"custom,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// LeaderboardEntry is the public, rankable record of a user's result.
type LeaderboardEntry struct {
	UID         string         `json:"uid"`
	Username    string         `json:"username,omitempty"`
	DisplayName string         `json:"displayName,omitempty"`
	PhotoURL    string         `json:"photoURL,omitempty"`
	Score       int            `json:"score"`
	Streak      int            `json:"streak"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Custom      map[string]any `json:"custom,omitempty"`
}

// GameStats holds aggregate analytics for a game or challenge.
type GameStats struct {
	TotalPlayers      int            `json:"totalPlayers"`
	SessionsPlayed    int            `json:"sessionsPlayed"`
	UniqueSubmitters  int            `json:"uniqueSubmitters"`
	Favorites         int            `json:"favorites"`
	ScoreDistribution map[string]int `json:"scoreDistribution,omitempty"`
	Custom            map[string]any `json:"custom,omitempty"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Game is the externally authored game definition.
type Game struct {
	GameTypeID string         `json:"gameTypeId"`
	Name       string         `json:"name,omitempty"`
	Custom     map[string]any `json:"custom,omitempty"`
	VIP        []string       `json:"vip,omitempty"`
}

// DailyChallenge is a dated single-instance variant of a game.
type DailyChallenge struct {
	Date     string         `json:"date"`
	RevealAt string         `json:"revealAt,omitempty"`
	Custom   map[string]any `json:"custom,omitempty"`
}

// DailyChallengeProgress is a user's progress on one challenge.
type DailyChallengeProgress struct {
	Played          bool           `json:"played"`
	Solved          bool           `json:"solved"`
	BestScore       *int           `json:"bestScore,omitempty"`
	AttemptCount    int            `json:"attemptCount"`
	FirstPlayedAt   string         `json:"firstPlayedAt,omitempty"`
	LastPlayedAt    string         `json:"lastPlayedAt,omitempty"`
	SolvedAt        string         `json:"solvedAt,omitempty"`
	BestScoreAt     string         `json:"bestScoreAt,omitempty"`
	AttemptMetadata map[string]any `json:"attemptMetadata,omitempty"`
	Counters        map[string]int `json:"counters,omitempty"`
}

// Reward record statuses.
const (
	RewardPending = "pending"
	RewardClaimed = "claimed"
)

// Solve states stored on reward records.
const (
	SolveStateSolved = "solved"
	SolveStateFailed = "failed"
)

// RewardRecord is a deferred credit awaiting its challenge reveal.
type RewardRecord struct {
	GameID             string         `json:"gameId"`
	GameTypeID         string         `json:"gameTypeId"`
	DailyChallengeID   string         `json:"dailyChallengeId"`
	DailyChallengeDate string         `json:"dailyChallengeDate"`
	RevealAt           string         `json:"revealAt"`
	Status             string         `json:"status"`
	SolveState         string         `json:"solveState"`
	IsMatch            bool           `json:"isMatch"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	ClaimedAt          *time.Time     `json:"claimedAt,omitempty"`
	AttemptMetadata    map[string]any `json:"attemptMetadata,omitempty"`
}

// CounterState stores per-user-per-game idempotency flags.
type CounterState struct {
	Flags map[string]bool `json:"flags,omitempty"`
}

// TriviaQuestion is the server-side view of a trivia question.
type TriviaQuestion struct {
	Salt           string         `json:"salt,omitempty"`
	CorrectHash    string         `json:"correctHash,omitempty"`
	CorrectHashes  []string       `json:"correctHashes,omitempty"`
	AcceptedHashes []string       `json:"acceptedHashes,omitempty"`
	Hash           map[string]any `json:"hash,omitempty"`
	AnswerCounts   map[string]int `json:"answerCounts,omitempty"`
	Stats          struct {
		TotalAttempts   int `json:"totalAttempts"`
		CorrectAttempts int `json:"correctAttempts"`
	} `json:"stats"`
}

// Submission is the validated input to the orchestrator.
type Submission struct {
	UserID             string         `json:"-"`
	GameTypeID         string         `json:"gameTypeId" validate:"required,excludes=/"`
	GameID             string         `json:"gameId" validate:"required,excludes=/"`
	GameData           *GameData      `json:"gameData" validate:"required"`
	DailyChallengeID   string         `json:"dailyChallengeId,omitempty" validate:"omitempty,excludes=/"`
	DailyChallengeDate string         `json:"dailyChallengeDate,omitempty"`
	IsDailyChallenge   bool           `json:"isDailyChallenge,omitempty"`
	ChallengeMetadata  map[string]any `json:"challengeMetadata,omitempty"`
}

// IsDaily reports whether the submission targets a daily challenge.
func (s Submission) IsDaily() bool {
	return s.IsDailyChallenge || s.DailyChallengeID != ""
}

// Data returns the reported result, or the zero value when none was sent.
func (s Submission) Data() GameData {
	if s.GameData == nil {
		return GameData{}
	}
	return *s.GameData
}

// RewardInfo summarizes the pending reward created by a daily submission.
type RewardInfo struct {
	DailyChallengeID string `json:"dailyChallengeId"`
	Status           string `json:"status"`
	RevealAt         string `json:"revealAt"`
}

// SubmitResult is returned to the caller after a submission.
type SubmitResult struct {
	Success          bool        `json:"success"`
	AggregatedScore  int         `json:"aggregatedScore"`
	AggregatedStreak int         `json:"aggregatedStreak"`
	RewardInfo       *RewardInfo `json:"rewardInfo,omitempty"`
}

// ClaimResult partitions the reward records seen by a claim call.
type ClaimResult struct {
	Processed      []string `json:"processed"`
	Deferred       []string `json:"deferred"`
	AlreadyClaimed []string `json:"alreadyClaimed"`
}

// Leaderboard is an ordered page of entries.
type Leaderboard struct {
	GameID      string             `json:"gameId"`
	ChallengeID string             `json:"challengeId,omitempty"`
	Entries     []LeaderboardEntry `json:"entries"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// RankInfo is a user's position on a game leaderboard.
type RankInfo struct {
	Rank         int `json:"rank"`
	Percentile   int `json:"percentile"`
	Score        int `json:"score"`
	Streak       int `json:"streak"`
	TotalPlayers int `json:"totalPlayers"`
}
