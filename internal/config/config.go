// Package config loads watcher configuration from environment variables,
// layered over an optional YAML file of defaults. Environment variables
// always win — the YAML file only supplies values the environment didn't
// set (SPEC_FULL.md "Configuration").
//
// Grounded on registry/cmd/registry/main.go's envOr/envIntOr/envDurationOr
// helper pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the watcher orchestrator needs to start.
type Config struct {
	SessionID string `yaml:"sessionId"`

	JournalRoot string `yaml:"journalRoot"`

	TrackerBaseURL string `yaml:"trackerBaseUrl"`
	TrackerToken   string `yaml:"trackerToken"`

	RateLimitPerSecond float64 `yaml:"rateLimitPerSecond"`
	RateLimitBurst     int     `yaml:"rateLimitBurst"`

	CursorDir string `yaml:"cursorDir"`
	LockDir   string `yaml:"lockDir"`

	PollInterval     time.Duration `yaml:"-"`
	SuccessorScanMin time.Duration `yaml:"-"`

	RedisURL  string `yaml:"redisUrl"`
	MongoURI  string `yaml:"mongoUri"`
	MongoDB   string `yaml:"mongoDatabase"`
	MongoColl string `yaml:"mongoCollection"`
}

// Default returns the spec-mandated defaults (spec.md §4.1, §4.7, §4.8).
func Default() Config {
	return Config{
		RateLimitPerSecond: 2,
		RateLimitBurst:     5,
		PollInterval:       500 * time.Millisecond,
		SuccessorScanMin:   3 * time.Second,
		MongoDB:            "linear_agent",
		MongoColl:          "activities",
	}
}

// Load builds a Config from an optional YAML file overlaid with
// environment variables. configPath may be empty.
func Load(configPath string) (Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", configPath, err)
		}
	}

	cfg.SessionID = envOr("LINEAR_AGENT_SESSION_ID", cfg.SessionID)
	cfg.JournalRoot = envOr("LINEAR_AGENT_JOURNAL_ROOT", cfg.JournalRoot)
	cfg.TrackerBaseURL = envOr("LINEAR_AGENT_TRACKER_URL", cfg.TrackerBaseURL)
	cfg.TrackerToken = envOr("LINEAR_AGENT_TRACKER_TOKEN", cfg.TrackerToken)
	cfg.CursorDir = envOr("LINEAR_AGENT_CURSOR_DIR", cfg.CursorDir)
	cfg.LockDir = envOr("LINEAR_AGENT_LOCK_DIR", cfg.LockDir)
	cfg.RedisURL = envOr("LINEAR_AGENT_REDIS_URL", cfg.RedisURL)
	cfg.MongoURI = envOr("LINEAR_AGENT_MONGO_URI", cfg.MongoURI)
	cfg.MongoDB = envOr("LINEAR_AGENT_MONGO_DB", cfg.MongoDB)
	cfg.MongoColl = envOr("LINEAR_AGENT_MONGO_COLLECTION", cfg.MongoColl)
	cfg.RateLimitPerSecond = envFloatOr("LINEAR_AGENT_RATE_PER_SECOND", cfg.RateLimitPerSecond)
	cfg.RateLimitBurst = envIntOr("LINEAR_AGENT_RATE_BURST", cfg.RateLimitBurst)
	cfg.PollInterval = envDurationOr("LINEAR_AGENT_POLL_INTERVAL", cfg.PollInterval)
	cfg.SuccessorScanMin = envDurationOr("LINEAR_AGENT_SUCCESSOR_SCAN_INTERVAL", cfg.SuccessorScanMin)

	if cfg.JournalRoot == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.JournalRoot = home + "/.claude/projects"
		}
	}

	if cfg.SessionID == "" {
		return Config{}, fmt.Errorf("config: LINEAR_AGENT_SESSION_ID is required")
	}

	return cfg, nil
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envFloatOr(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDurationOr(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
