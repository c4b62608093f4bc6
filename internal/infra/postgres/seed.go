package postgres

import (
	"context"
	"time"

	"game-score-engine/internal/docstore"
	"game-score-engine/internal/fixtures"
	"github.com/uptrace/bun"
)

type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	Path       string         `bun:"path,pk"`
	Collection string         `bun:"collection,notnull"`
	Data       map[string]any `bun:"data,type:jsonb"`
	Version    int64          `bun:"version,notnull"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull"`
}

// SeedDocuments upserts docs in one statement. Existing rows are replaced
// and their version bumped so in-flight transactions see a conflict.
func SeedDocuments(ctx context.Context, db bun.IDB, docs []fixtures.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]documentRow, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, documentRow{
			Path:       d.Path,
			Collection: docstore.Collection(d.Path),
			Data:       d.Data,
			Version:    1,
			UpdatedAt:  now,
		})
	}
	_, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (path) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("version = d.version + 1").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return 0, mapError("seed documents", err)
	}
	return len(rows), nil
}
