package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"game-score-engine/internal/docstore"
)

type storedDoc struct {
	data    map[string]any
	version int64
}

// DocumentStore is an in-process docstore.Store with optimistic concurrency.
// Commits are serialized by a mutex; documents read by the transaction must
// still carry the version observed at read time.
type DocumentStore struct {
	mu          sync.RWMutex
	docs        map[string]storedDoc
	maxAttempts int
	onConflict  docstore.RetryHook
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:        make(map[string]storedDoc),
		maxAttempts: docstore.DefaultMaxAttempts,
	}
}

// WithMaxAttempts overrides the transaction retry bound.
func (s *DocumentStore) WithMaxAttempts(n int) *DocumentStore {
	s.maxAttempts = n
	return s
}

// OnConflict registers a hook called on each conflicting attempt.
func (s *DocumentStore) OnConflict(hook docstore.RetryHook) *DocumentStore {
	s.onConflict = hook
	return s
}

// Seed writes a document outside any transaction. Intended for fixtures.
func (s *DocumentStore) Seed(path string, data any) error {
	return s.RunTransaction(context.Background(), func(_ context.Context, tx docstore.Tx) error {
		return tx.Set(path, data)
	})
}

func (s *DocumentStore) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Snapshot{}, err
	}
	if !docstore.ValidPath(path) {
		return docstore.Snapshot{}, fmt.Errorf("docstore: invalid document path %q", path)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(path), nil
}

func (s *DocumentStore) snapshotLocked(path string) docstore.Snapshot {
	doc, ok := s.docs[path]
	if !ok {
		return docstore.Snapshot{Path: path}
	}
	return docstore.Snapshot{Path: path, Exists: true, Version: doc.version, Data: docstore.DeepCopy(doc.data)}
}

func (s *DocumentStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []docstore.Snapshot
	prefix := q.Collection + "/"
	for path, doc := range s.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		if !q.Matches(doc.data) {
			continue
		}
		out = append(out, docstore.Snapshot{Path: path, Exists: true, Version: doc.version, Data: docstore.DeepCopy(doc.data)})
	}
	s.mu.RUnlock()
	return q.Sort(out), nil
}

func (s *DocumentStore) Count(ctx context.Context, q docstore.Query) (int, error) {
	q.Limit = 0
	q.OrderBy = nil
	snaps, err := s.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(snaps), nil
}

func (s *DocumentStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	return docstore.Retry(ctx, s.maxAttempts, s.onConflict, func(ctx context.Context) error {
		tx := &memoryTx{Buffer: docstore.NewBuffer(), store: s}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.commit(tx.Buffer)
	})
}

func (s *DocumentStore) commit(buf *docstore.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, read := range buf.Reads() {
		current := s.docs[path].version
		if current != read.Version {
			return fmt.Errorf("%w: %s", docstore.ErrConflict, path)
		}
	}

	staged := make(map[string]storedDoc)
	for _, w := range buf.Writes() {
		doc, ok := staged[w.Path]
		if !ok {
			doc, ok = s.docs[w.Path]
		}
		if !ok && w.Kind == docstore.WriteUpdate {
			return fmt.Errorf("%w: %s", docstore.ErrNotFound, w.Path)
		}
		staged[w.Path] = storedDoc{
			data:    docstore.Apply(doc.data, w),
			version: s.docs[w.Path].version + 1,
		}
	}
	for path, doc := range staged {
		s.docs[path] = doc
	}
	return nil
}

type memoryTx struct {
	*docstore.Buffer
	store *DocumentStore
}

func (t *memoryTx) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	if err := t.BeforeRead(path); err != nil {
		return docstore.Snapshot{}, err
	}
	if snap, ok := t.Cached(path); ok {
		return snap, nil
	}
	snap, err := t.store.Get(ctx, path)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	t.Record(snap)
	return snap, nil
}

func (t *memoryTx) GetAll(ctx context.Context, paths ...string) ([]docstore.Snapshot, error) {
	out := make([]docstore.Snapshot, 0, len(paths))
	for _, p := range paths {
		snap, err := t.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}
