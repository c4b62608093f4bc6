package app

import (
	"context"
	"errors"
	"time"

	"game-score-engine/internal/docstore"
	"game-score-engine/internal/domain"
)

// decode reads an existing snapshot into T. ok is false when the document
// does not exist.
func decode[T any](snap docstore.Snapshot) (T, bool, error) {
	var v T
	if !snap.Exists {
		return v, false, nil
	}
	if err := snap.DataTo(&v); err != nil {
		return v, true, err
	}
	return v, true, nil
}

// decodePtr is decode for optional documents.
func decodePtr[T any](snap docstore.Snapshot) (*T, error) {
	v, ok, err := decode[T](snap)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func decodeUser(snap docstore.Snapshot) (domain.UserProfile, bool, error) {
	user, ok, err := decode[domain.UserProfile](snap)
	if ok && user.UID == "" {
		user.UID = snap.ID()
	}
	return user, ok, err
}

func decodeEntry(snap docstore.Snapshot) (domain.LeaderboardEntry, error) {
	entry, _, err := decode[domain.LeaderboardEntry](snap)
	if entry.UID == "" {
		entry.UID = snap.ID()
	}
	if entry.PhotoURL == "" {
		entry.PhotoURL = domain.DefaultLeaderboardPhoto
	}
	return entry, err
}

func decodeEntries(snaps []docstore.Snapshot) ([]domain.LeaderboardEntry, error) {
	entries := make([]domain.LeaderboardEntry, 0, len(snaps))
	for _, snap := range snaps {
		entry, err := decodeEntry(snap)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// newEntry builds a leaderboard entry carrying the user's display fields.
func newEntry(user domain.UserProfile, score, streak int, custom map[string]any, now time.Time) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		UID:         user.UID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		PhotoURL:    photoOf(user),
		Score:       score,
		Streak:      streak,
		UpdatedAt:   now,
		Custom:      custom,
	}
}

// displayFields is the merge payload that refreshes an entry's identity.
func displayFields(user domain.UserProfile) map[string]any {
	return map[string]any{
		"uid":         user.UID,
		"username":    user.Username,
		"displayName": user.DisplayName,
		"photoURL":    photoOf(user),
	}
}

func photoOf(user domain.UserProfile) string {
	if user.PhotoURL == "" {
		return domain.DefaultLeaderboardPhoto
	}
	return user.PhotoURL
}

// txError maps what RunTransaction returned onto the caller-visible surface.
func txError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrTooManyAttempts):
		return &domain.Error{Kind: domain.KindInternal, Op: op, Message: "too much contention, try again", Retryable: true, Cause: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &domain.Error{Kind: domain.KindInternal, Op: op, Message: "request aborted before commit", Retryable: true, Cause: err}
	default:
		return domain.Wrap(domain.KindInternal, op, err)
	}
}
