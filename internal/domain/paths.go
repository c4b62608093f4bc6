package domain

// Document paths. Collections are the path minus the final segment.

func UserPath(uid string) string { return "users/" + uid }

func UserGamePath(uid, gameID string) string { return UserPath(uid) + "/games/" + gameID }

func CounterStatePath(uid, gameID string) string { return UserPath(uid) + "/engagement/" + gameID }

func ChallengeProgressPath(uid, gameID, challengeID string) string {
	return UserGamePath(uid, gameID) + "/daily_challenges/" + challengeID
}

func RewardsCollection(uid string) string { return UserPath(uid) + "/daily_challenge_rewards" }

func RewardPath(uid, challengeID string) string { return RewardsCollection(uid) + "/" + challengeID }

func GamePath(gameID string) string { return "games/" + gameID }

func GameStatsPath(gameID string) string { return GamePath(gameID) + "/stats/general" }

func LeaderboardCollection(gameID string) string { return GamePath(gameID) + "/leaderboard" }

func LeaderboardPath(gameID, uid string) string { return LeaderboardCollection(gameID) + "/" + uid }

func ChallengePath(gameID, challengeID string) string {
	return GamePath(gameID) + "/daily_challenges/" + challengeID
}

func ChallengeLeaderboardCollection(gameID, challengeID string) string {
	return ChallengePath(gameID, challengeID) + "/leaderboard"
}

func ChallengeLeaderboardPath(gameID, challengeID, uid string) string {
	return ChallengeLeaderboardCollection(gameID, challengeID) + "/" + uid
}

func ChallengeStatsPath(gameID, challengeID string) string {
	return ChallengePath(gameID, challengeID) + "/stats/general"
}

func QuestionPath(gameID, questionID string) string {
	return GamePath(gameID) + "/questions/" + questionID
}

// BoardCollection picks the main or challenge-scoped leaderboard collection.
func BoardCollection(gameID, challengeID string) string {
	if challengeID != "" {
		return ChallengeLeaderboardCollection(gameID, challengeID)
	}
	return LeaderboardCollection(gameID)
}

// BoardStatsPath picks the main or challenge-scoped stats document.
func BoardStatsPath(gameID, challengeID string) string {
	if challengeID != "" {
		return ChallengeStatsPath(gameID, challengeID)
	}
	return GameStatsPath(gameID)
}
