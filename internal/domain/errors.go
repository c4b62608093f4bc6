package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures into the caller-visible error surface.
type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindInvalidArgument    Kind = "invalid-argument"
	KindNotFound           Kind = "not-found"
	KindFailedPrecondition Kind = "failed-precondition"
	KindPermissionDenied   Kind = "permission-denied"
	KindInternal           Kind = "internal"
	KindConfiguration      Kind = "configuration-fatal"
)

var (
	// ErrUserNotFound is returned when the caller has no profile document.
	ErrUserNotFound = errors.New("user not found")
	// ErrGameNotFound indicates the referenced game does not exist.
	ErrGameNotFound = errors.New("game not found")
	// ErrChallengeNotFound indicates the referenced daily challenge does not exist.
	ErrChallengeNotFound = errors.New("daily challenge not found")
	// ErrQuestionNotFound indicates a trivia question referenced by a submission is missing.
	ErrQuestionNotFound = errors.New("trivia question not found")
	// ErrGameTypeMismatch is returned when the submitted gameTypeId differs from the stored game.
	ErrGameTypeMismatch = errors.New("game type does not match game")
	// ErrMissingSecret means answer hashing was requested without a configured secret.
	ErrMissingSecret = errors.New("trivia hash secret not configured")
	// ErrLeaderboardEntryNotFound means the user has no entry on the requested board.
	ErrLeaderboardEntryNotFound = errors.New("leaderboard entry not found")
)

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Kind)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Kind)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an error with an explicit kind.
func NewError(kind Kind, op, message string, cause error) error {
	return &Error{Kind: kind, Op: strings.TrimSpace(op), Message: strings.TrimSpace(message), Cause: cause}
}

// Wrap annotates err with kind. Errors that already carry a kind are returned untouched.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return NewError(kind, op, err.Error(), err)
}

// Invalid is shorthand for an invalid-argument error.
func Invalid(op, format string, args ...any) error {
	return NewError(KindInvalidArgument, op, fmt.Sprintf(format, args...), nil)
}

// Precondition is shorthand for a failed-precondition error.
func Precondition(op, format string, args ...any) error {
	return NewError(KindFailedPrecondition, op, fmt.Sprintf(format, args...), nil)
}

// NotFound wraps a sentinel as a not-found error.
func NotFound(op string, sentinel error) error {
	return NewError(KindNotFound, op, sentinel.Error(), sentinel)
}

// KindOf extracts the error kind. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the caller may safely retry the request.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
