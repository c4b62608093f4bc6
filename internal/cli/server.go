package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"game-score-engine/internal/app"
	"game-score-engine/internal/config"
	"game-score-engine/internal/docstore"
	"game-score-engine/internal/games"
	"game-score-engine/internal/infra/memory"
	pgstore "game-score-engine/internal/infra/postgres"
	infraredis "game-score-engine/internal/infra/redis"
	"game-score-engine/internal/logger"
	transport "game-score-engine/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port, fixturesPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, *fixturesPath)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag, fixturesPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.TriviaSecret() == "" {
		log.Warn("trivia secret not set; trivia submissions will fail", "env", cfg.Engine.TriviaSecretEnv)
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	onConflict := func(attempt int, err error) {
		log.Debug("transaction conflict, retrying", "attempt", attempt, "error", err)
	}

	var store docstore.Store
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
		if fixturesPath != "" {
			docs, err := loadFixtures(cfg, fixturesPath)
			if err != nil {
				return err
			}
			if err := seedPostgres(ctx, cfg, log, docs); err != nil {
				return err
			}
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewDocumentStore(pool, cfg.Engine.MaxAttempts).OnConflict(onConflict)
	} else {
		log.Warn("postgres url not configured, using in-memory document store")
		mem := memory.NewDocumentStore().WithMaxAttempts(cfg.Engine.MaxAttempts).OnConflict(onConflict)
		if fixturesPath != "" {
			docs, err := loadFixtures(cfg, fixturesPath)
			if err != nil {
				return err
			}
			if err := seedMemory(mem, log, docs); err != nil {
				return err
			}
		}
		store = mem
	}

	reader := app.NewLeaderboardReader(store, nil)
	boardTTL := config.TTLDuration(cfg.Leaderboard.TTL, 30*time.Second)

	var (
		boards   app.TopBoards
		registry app.FeedRegistry
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		boards = infraredis.NewLeaderboardCache(client, reader, boardTTL)
		registry = infraredis.NewFeedRegistry(client, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		boards = memory.NewLeaderboardCache(reader, boardTTL, cfg.Leaderboard.MaxEntries)
		registry = memory.NewFeedRegistry()
	}

	opts := app.Options{
		VIPMinFollowers: cfg.Engine.VIPMinFollowers,
		ClaimBatchSize:  cfg.Engine.ClaimBatchSize,
	}
	feed := app.NewFeed(registry, log)
	handler := transport.NewHandler(
		app.NewScoreService(store, games.NewRegistry(games.NewHMACHasher(cfg.TriviaSecret())), boards, feed, log, opts),
		app.NewRewardService(store, boards, log, opts),
		app.NewFavoriteService(store, log, opts),
		app.NewLeaderboardService(store, boards, feed, opts),
		log,
	)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     handler.Routes(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket connections are long-lived.
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting game score engine", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err := <-errCh:
		log.Error("server failed", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
