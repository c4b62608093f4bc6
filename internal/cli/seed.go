package cli

import (
	"context"
	"errors"

	"game-score-engine/internal/config"
	"game-score-engine/internal/fixtures"
	"game-score-engine/internal/games"
	"game-score-engine/internal/infra/memory"
	pgstore "game-score-engine/internal/infra/postgres"
	"game-score-engine/internal/logger"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads YAML fixtures into Postgres.
func NewSeedCmd(configPath, fixturesPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load fixture documents into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Logging.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			if *fixturesPath == "" {
				return errors.New("--fixtures is required")
			}
			docs, err := loadFixtures(cfg, *fixturesPath)
			if err != nil {
				return err
			}
			if err := runMigrations(cmd.Context(), cfg, log); err != nil {
				return err
			}
			return seedPostgres(cmd.Context(), cfg, log, docs)
		},
	}
}

func loadFixtures(cfg config.Config, path string) ([]fixtures.Document, error) {
	f, err := fixtures.Load(path)
	if err != nil {
		return nil, err
	}
	return f.Flatten(games.NewHMACHasher(cfg.TriviaSecret()))
}

func seedPostgres(ctx context.Context, cfg config.Config, log *logger.Logger, docs []fixtures.Document) error {
	db, err := openBun(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := pgstore.SeedDocuments(ctx, db, docs)
	if err != nil {
		return err
	}
	log.Info("fixtures seeded", "documents", n)
	return nil
}

func seedMemory(store *memory.DocumentStore, log *logger.Logger, docs []fixtures.Document) error {
	for _, d := range docs {
		if err := store.Seed(d.Path, d.Data); err != nil {
			return err
		}
	}
	log.Info("fixtures seeded in memory", "documents", len(docs))
	return nil
}
