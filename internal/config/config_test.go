package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte(`
server:
  port: "9090"
redis:
  addr: "localhost:6379"
leaderboard:
  ttl: "30s"
engine:
  claimBatchSize: 10
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("TRIVIA_HASH_SECRET", "pepper")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Fatalf("expected env override, got %q", cfg.Redis.Addr)
	}
	if cfg.Engine.ClaimBatchSize != 10 || cfg.Engine.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("unexpected engine config %+v", cfg.Engine)
	}
	if cfg.TriviaSecret() != "pepper" {
		t.Fatalf("expected trivia secret from env")
	}
	if got := TTLDuration(cfg.Leaderboard.TTL, time.Minute); got != 30*time.Second {
		t.Fatalf("expected 30s ttl, got %v", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.ClaimBatchSize != DefaultClaimBatchSize || cfg.Leaderboard.MaxEntries != DefaultMaxEntries {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
}
