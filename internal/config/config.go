package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Leaderboard struct {
		TTL        string `yaml:"ttl"`
		MaxEntries int    `yaml:"maxEntries"`
	} `yaml:"leaderboard"`
	Engine struct {
		MaxAttempts     int    `yaml:"maxAttempts"`
		ClaimBatchSize  int    `yaml:"claimBatchSize"`
		VIPMinFollowers int    `yaml:"vipMinFollowers"`
		TriviaSecretEnv string `yaml:"triviaSecretEnv"`
	} `yaml:"engine"`
	Logging struct {
		Mode string `yaml:"mode"`
	} `yaml:"logging"`
}

const (
	DefaultMaxAttempts     = 5
	DefaultClaimBatchSize  = 25
	DefaultMaxEntries      = 100
	DefaultTriviaSecretEnv = "TRIVIA_HASH_SECRET"
)

// Load reads YAML config from path, then applies a .env file next to the
// process (if any) and environment overrides. A missing YAML file yields
// defaults so the service can run purely from the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("LOG_MODE"); v != "" {
		c.Logging.Mode = v
	}
	if v, err := strconv.Atoi(os.Getenv("VIP_MIN_FOLLOWERS")); err == nil {
		c.Engine.VIPMinFollowers = v
	}
}

func (c *Config) applyDefaults() {
	if c.Engine.MaxAttempts <= 0 {
		c.Engine.MaxAttempts = DefaultMaxAttempts
	}
	if c.Engine.ClaimBatchSize <= 0 {
		c.Engine.ClaimBatchSize = DefaultClaimBatchSize
	}
	if c.Engine.TriviaSecretEnv == "" {
		c.Engine.TriviaSecretEnv = DefaultTriviaSecretEnv
	}
	if c.Leaderboard.MaxEntries <= 0 {
		c.Leaderboard.MaxEntries = DefaultMaxEntries
	}
}

// TriviaSecret resolves the hashing secret from the configured variable.
func (c Config) TriviaSecret() string {
	return os.Getenv(c.Engine.TriviaSecretEnv)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
