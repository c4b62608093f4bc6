// Package docstore defines the transactional document store the engine runs on.
//
// Documents are JSON objects addressed by slash-separated paths
// ("games/g1/leaderboard/u1"); a collection is a path with the final
// segment removed. Transactions buffer writes until commit and detect
// conflicts optimistically: every document read inside a transaction is
// version-checked at commit, while writes to documents that were never read
// (blind writes) are applied atomically by the backend without a check.
// Field transforms (Increment, ArrayUnion, ArrayRemove) are resolved against
// the committed document at write time.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrConflict reports that a document read by the transaction changed before commit.
	ErrConflict = errors.New("docstore: concurrent modification")
	// ErrNotFound is returned when Update targets a document that does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrReadAfterWrite is returned when a transaction reads after buffering a write.
	ErrReadAfterWrite = errors.New("docstore: reads must precede writes in a transaction")
	// ErrTooManyAttempts is returned when a transaction kept conflicting.
	ErrTooManyAttempts = errors.New("docstore: transaction retries exhausted")
)

// Reader reads documents inside a transaction. Everything read joins the
// transaction's read set.
type Reader interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	GetAll(ctx context.Context, paths ...string) ([]Snapshot, error)
}

// Writer buffers writes for commit.
type Writer interface {
	// Set replaces the whole document.
	Set(path string, data any) error
	// SetMerge deep-merges data into the document, creating it if needed.
	SetMerge(path string, data any) error
	// Update patches dotted field paths on an existing document.
	Update(path string, fields map[string]any) error
}

// Tx is the handle passed to a transaction function.
type Tx interface {
	Reader
	Writer
}

// Store is implemented by the memory and Postgres backends.
type Store interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	Query(ctx context.Context, q Query) ([]Snapshot, error)
	Count(ctx context.Context, q Query) (int, error)
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Snapshot is a point-in-time copy of a document. Version is zero for
// documents that do not exist.
type Snapshot struct {
	Path    string
	Exists  bool
	Version int64
	Data    map[string]any
}

// ID returns the final path segment.
func (s Snapshot) ID() string {
	return LastSegment(s.Path)
}

// DataTo decodes the document into v.
func (s Snapshot) DataTo(v any) error {
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Collection returns the parent collection of a document path.
func Collection(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// LastSegment returns the final segment of a path.
func LastSegment(path string) string {
	idx := strings.LastIndex(path, "/")
	return path[idx+1:]
}

// ValidPath reports whether path names a document: an even, non-zero number
// of non-empty segments.
func ValidPath(path string) bool {
	parts := strings.Split(path, "/")
	if len(parts) == 0 || len(parts)%2 != 0 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
