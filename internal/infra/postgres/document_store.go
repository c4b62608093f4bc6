package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"game-score-engine/internal/docstore"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// DocumentStore keeps documents as JSONB rows in the documents table.
//
// Transactions run at READ COMMITTED. Documents read by the callback are
// guarded by their version column at commit (UPDATE ... WHERE version = $n,
// or INSERT ... ON CONFLICT DO NOTHING for documents read as missing), and
// read-only documents are re-checked under FOR SHARE. Blind writes are
// applied with jsonb expressions so increments never read-modify-write in Go.
type DocumentStore struct {
	pool        *pgxpool.Pool
	maxAttempts int
	onConflict  docstore.RetryHook
}

func NewDocumentStore(pool *pgxpool.Pool, maxAttempts int) *DocumentStore {
	return &DocumentStore{pool: pool, maxAttempts: maxAttempts}
}

// OnConflict registers a hook called on each conflicting attempt.
func (s *DocumentStore) OnConflict(hook docstore.RetryHook) *DocumentStore {
	s.onConflict = hook
	return s
}

type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (s *DocumentStore) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	if !docstore.ValidPath(path) {
		return docstore.Snapshot{}, fmt.Errorf("docstore: invalid document path %q", path)
	}
	return getDocument(ctx, s.pool, path)
}

func getDocument(ctx context.Context, q rowQueryer, path string) (docstore.Snapshot, error) {
	var raw []byte
	var version int64
	err := q.QueryRow(ctx, `SELECT data, version FROM documents WHERE path = $1`, path).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Snapshot{Path: path}, nil
	}
	if err != nil {
		return docstore.Snapshot{}, mapError("get document", err)
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return docstore.Snapshot{}, fmt.Errorf("unmarshal document %s: %w", path, err)
	}
	return docstore.Snapshot{Path: path, Exists: true, Version: version, Data: data}, nil
}

func (s *DocumentStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	sql, args, err := buildQuery(q, false)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("query documents", err)
	}
	defer rows.Close()

	var out []docstore.Snapshot
	for rows.Next() {
		var path string
		var raw []byte
		var version int64
		if err := rows.Scan(&path, &raw, &version); err != nil {
			return nil, mapError("scan document", err)
		}
		data := map[string]any{}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("unmarshal document %s: %w", path, err)
		}
		out = append(out, docstore.Snapshot{Path: path, Exists: true, Version: version, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("query documents", err)
	}
	return out, nil
}

func (s *DocumentStore) Count(ctx context.Context, q docstore.Query) (int, error) {
	sql, args, err := buildQuery(q, true)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, mapError("count documents", err)
	}
	return n, nil
}

func (s *DocumentStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	return docstore.Retry(ctx, s.maxAttempts, s.onConflict, func(ctx context.Context) error {
		pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return mapError("begin transaction", err)
		}
		defer func() { _ = pgtx.Rollback(context.Background()) }()

		tx := &postgresTx{Buffer: docstore.NewBuffer(), tx: pgtx}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if err := tx.flush(ctx); err != nil {
			return err
		}
		if err := pgtx.Commit(ctx); err != nil {
			return mapError("commit transaction", err)
		}
		return nil
	})
}

type postgresTx struct {
	*docstore.Buffer
	tx pgx.Tx
}

func (t *postgresTx) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	if err := t.BeforeRead(path); err != nil {
		return docstore.Snapshot{}, err
	}
	if snap, ok := t.Cached(path); ok {
		return snap, nil
	}
	snap, err := getDocument(ctx, t.tx, path)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	t.Record(snap)
	return snap, nil
}

func (t *postgresTx) GetAll(ctx context.Context, paths ...string) ([]docstore.Snapshot, error) {
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

// flush validates the read set and applies buffered writes in path order.
func (t *postgresTx) flush(ctx context.Context) error {
	reads := t.Reads()
	byPath := make(map[string][]docstore.Write)
	for _, w := range t.Writes() {
		byPath[w.Path] = append(byPath[w.Path], w)
	}

	var readOnly []string
	for path := range reads {
		if _, written := byPath[path]; !written {
			readOnly = append(readOnly, path)
		}
	}
	if err := t.checkReadOnly(ctx, readOnly, reads); err != nil {
		return err
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, path := range paths {
		writes := byPath[path]
		if read, ok := reads[path]; ok {
			if err := t.writeGuarded(ctx, read, writes); err != nil {
				return err
			}
			continue
		}
		for _, w := range writes {
			if err := t.writeBlind(ctx, w); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *postgresTx) checkReadOnly(ctx context.Context, paths []string, reads map[string]docstore.Snapshot) error {
	if len(paths) == 0 {
		return nil
	}
	sort.Strings(paths)
	rows, err := t.tx.Query(ctx, `SELECT path, version FROM documents WHERE path = ANY($1::text[]) ORDER BY path FOR SHARE`, paths)
	if err != nil {
		return mapError("lock read set", err)
	}
	defer rows.Close()
	current := make(map[string]int64, len(paths))
	for rows.Next() {
		var path string
		var version int64
		if err := rows.Scan(&path, &version); err != nil {
			return mapError("lock read set", err)
		}
		current[path] = version
	}
	if err := rows.Err(); err != nil {
		return mapError("lock read set", err)
	}
	for _, p := range paths {
		if current[p] != reads[p].Version {
			return fmt.Errorf("%w: %s", docstore.ErrConflict, p)
		}
	}
	return nil
}

// writeGuarded materializes the document in Go from the snapshot the
// callback saw and writes it only if nobody committed in between.
func (t *postgresTx) writeGuarded(ctx context.Context, read docstore.Snapshot, writes []docstore.Write) error {
	data := read.Data
	exists := read.Exists
	for _, w := range writes {
		if !exists && w.Kind == docstore.WriteUpdate {
			return fmt.Errorf("%w: %s", docstore.ErrNotFound, read.Path)
		}
		data = docstore.Apply(data, w)
		exists = true
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", read.Path, err)
	}

	var tag pgconn.CommandTag
	if read.Exists {
		tag, err = t.tx.Exec(ctx,
			`UPDATE documents SET data = $2::jsonb, version = version + 1, updated_at = now() WHERE path = $1 AND version = $3`,
			read.Path, string(raw), read.Version)
	} else {
		tag, err = t.tx.Exec(ctx,
			`INSERT INTO documents (path, collection, data, version) VALUES ($1, $2, $3::jsonb, 1) ON CONFLICT (path) DO NOTHING`,
			read.Path, docstore.Collection(read.Path), string(raw))
	}
	if err != nil {
		return mapError("write document", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", docstore.ErrConflict, read.Path)
	}
	return nil
}

// writeBlind applies one write without a version guard. Each field op runs
// as its own statement in a single batch so jsonb expressions stay flat.
func (t *postgresTx) writeBlind(ctx context.Context, w docstore.Write) error {
	if w.Kind == docstore.WriteSet {
		raw, err := json.Marshal(docstore.Apply(nil, w))
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", w.Path, err)
		}
		_, err = t.tx.Exec(ctx,
			`INSERT INTO documents (path, collection, data, version) VALUES ($1, $2, $3::jsonb, 1)
			 ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, version = documents.version + 1, updated_at = now()`,
			w.Path, docstore.Collection(w.Path), string(raw))
		return mapError("set document", err)
	}

	batch := &pgx.Batch{}
	if w.Kind == docstore.WriteMerge {
		batch.Queue(`INSERT INTO documents (path, collection, data, version) VALUES ($1, $2, '{}'::jsonb, 1)
			 ON CONFLICT (path) DO UPDATE SET version = documents.version + 1, updated_at = now()`,
			w.Path, docstore.Collection(w.Path))
	} else {
		batch.Queue(`UPDATE documents SET version = version + 1, updated_at = now() WHERE path = $1`, w.Path)
	}
	for _, op := range w.Fields {
		expr, args, err := fieldExpr(op)
		if err != nil {
			return err
		}
		batch.Queue(`UPDATE documents SET data = `+expr+` WHERE path = $1`, append([]interface{}{w.Path}, args...)...)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return mapError("patch document", err)
		}
		if i == 0 && w.Kind == docstore.WriteUpdate && tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", docstore.ErrNotFound, w.Path)
		}
	}
	return nil
}

// fieldExpr renders one field op against the data column. $1 is reserved for
// the document path.
func fieldExpr(op docstore.FieldOp) (string, []interface{}, error) {
	path := op.Path
	ensured := `docstore_ensure_path(data, $2::text[])`
	if op.Transform == nil {
		raw, err := json.Marshal(op.Value)
		if err != nil {
			return "", nil, fmt.Errorf("marshal field %s: %w", strings.Join(path, "."), err)
		}
		return `jsonb_set(` + ensured + `, $2::text[], $3::jsonb, true)`, []interface{}{path, string(raw)}, nil
	}
	if amount, ok := op.Transform.IsIncrement(); ok {
		return `jsonb_set(` + ensured + `, $2::text[], to_jsonb(COALESCE(CASE WHEN jsonb_typeof(data #> $2::text[]) = 'number' THEN (data #>> $2::text[])::numeric END, 0) + $3::numeric), true)`,
			[]interface{}{path, amount}, nil
	}
	values, remove := op.Transform.ArrayValues()
	raw, err := json.Marshal(values)
	if err != nil {
		return "", nil, fmt.Errorf("marshal array operand: %w", err)
	}
	fn := "docstore_array_union"
	if remove {
		fn = "docstore_array_remove"
	}
	return `jsonb_set(` + ensured + `, $2::text[], ` + fn + `(data #> $2::text[], $3::jsonb), true)`, []interface{}{path, string(raw)}, nil
}

func buildQuery(q docstore.Query, count bool) (string, []interface{}, error) {
	args := []interface{}{q.Collection}
	var sb strings.Builder
	if count {
		sb.WriteString(`SELECT count(*) FROM documents WHERE collection = $1`)
	} else {
		sb.WriteString(`SELECT path, data, version FROM documents WHERE collection = $1`)
	}
	for _, f := range q.Filters {
		args = append(args, strings.Split(f.Field, "."))
		field := fmt.Sprintf("data #> $%d::text[]", len(args))
		var operand any = f.Value
		if f.Op == docstore.OpIn {
			operand = docstore.InValues(f.Value)
		}
		raw, err := json.Marshal(operand)
		if err != nil {
			return "", nil, fmt.Errorf("marshal filter %s: %w", f.Field, err)
		}
		args = append(args, string(raw))
		value := fmt.Sprintf("$%d::jsonb", len(args))
		fmt.Fprintf(&sb, " AND jsonb_typeof(%s) <> 'null'", field)
		switch f.Op {
		case docstore.OpEq:
			fmt.Fprintf(&sb, " AND %s = %s", field, value)
		case docstore.OpLt, docstore.OpLte, docstore.OpGt, docstore.OpGte:
			fmt.Fprintf(&sb, " AND %s %s %s", field, string(f.Op), value)
		case docstore.OpIn:
			fmt.Fprintf(&sb, " AND %s @> jsonb_build_array(%s)", value, field)
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	if count {
		return sb.String(), args, nil
	}
	sb.WriteString(" ORDER BY ")
	for _, o := range q.OrderBy {
		args = append(args, strings.Split(o.Field, "."))
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, "data #> $%d::text[] %s NULLS LAST, ", len(args), dir)
	}
	sb.WriteString("path ASC")
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	return sb.String(), args, nil
}

// mapError classifies Postgres failures: serialization, deadlock and unique
// races become docstore.ErrConflict so the transaction is retried.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%s: %w: %v", op, docstore.ErrConflict, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
