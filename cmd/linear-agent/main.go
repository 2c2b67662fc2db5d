// Command linear-agent tails a Claude Code session's on-disk conversation
// journal and projects it onto a Linear-like issue tracker in near real
// time. See SPEC_FULL.md for the full component design.
//
// # Configuration
//
// Environment variables:
//
//	LINEAR_AGENT_SESSION_ID              - session id to tail (required)
//	LINEAR_AGENT_JOURNAL_ROOT             - journal root dir (default: $HOME/.claude/projects)
//	LINEAR_AGENT_TRACKER_URL               - tracker API base URL
//	LINEAR_AGENT_TRACKER_TOKEN             - tracker bearer token
//	LINEAR_AGENT_RATE_PER_SECOND           - rate-limiter refill rate (default: 2)
//	LINEAR_AGENT_RATE_BURST                - rate-limiter burst capacity (default: 5)
//	LINEAR_AGENT_CURSOR_DIR                - cursor persistence dir (default: os.TempDir())
//	LINEAR_AGENT_LOCK_DIR                  - lock file dir (default: <tmpdir>/linear-agent-locks)
//	LINEAR_AGENT_REDIS_URL                 - optional Redis URL for a cluster-aware lock
//	LINEAR_AGENT_MONGO_URI                 - optional Mongo URI for the activity audit sink
//	LINEAR_AGENT_POLL_INTERVAL             - tailer idle poll interval (default: 500ms)
//	LINEAR_AGENT_SUCCESSOR_SCAN_INTERVAL   - successor-scan cadence floor (default: 3s)
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/boatri/linear-agent/internal/audit"
	"github.com/boatri/linear-agent/internal/config"
	"github.com/boatri/linear-agent/internal/journal"
	"github.com/boatri/linear-agent/internal/locking"
	"github.com/boatri/linear-agent/internal/projector"
	"github.com/boatri/linear-agent/internal/ratelimit"
	"github.com/boatri/linear-agent/internal/telemetry"
	"github.com/boatri/linear-agent/internal/tracker"
	"github.com/boatri/linear-agent/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	logger := telemetry.NewLogger()

	cfg, err := config.Load(os.Getenv("LINEAR_AGENT_CONFIG"))
	if err != nil {
		return err
	}

	lock, err := buildLock(ctx, cfg, logger)
	if err != nil {
		return err
	}

	cursorStore := journal.NewFileCursorStore(cfg.CursorDir, logger)

	var trackerClient tracker.Client
	if cfg.TrackerBaseURL != "" {
		trackerClient = tracker.New(cfg.TrackerBaseURL, tracker.WithBearerToken(cfg.TrackerToken))
	}

	auditSink, err := buildAuditSink(ctx, cfg, logger)
	if err != nil {
		return err
	}

	proj := projector.New(projector.Config{
		SessionID: cfg.SessionID,
		Client:    trackerClient,
		Audit:     auditSink,
		Limiter:   ratelimit.New(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		Logger:    logger,
		Tracer:    telemetry.NewTracer(),
		Metrics:   telemetry.NewMetrics(),
	})

	tailer := journal.NewTailer(proj, logger)

	w := watcher.New(watcher.Config{
		SessionID:        cfg.SessionID,
		JournalRoot:      cfg.JournalRoot,
		PollInterval:     cfg.PollInterval,
		SuccessorScanMin: cfg.SuccessorScanMin,
	}, lock, cursorStore, tailer, logger)

	return w.Run(ctx)
}

func buildLock(ctx context.Context, cfg config.Config, logger telemetry.Logger) (locking.Lock, error) {
	if cfg.RedisURL == "" {
		return locking.NewFileLock(cfg.LockDir, logger), nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse LINEAR_AGENT_REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return locking.NewRedisLock(client, 0, logger), nil
}

func buildAuditSink(ctx context.Context, cfg config.Config, logger telemetry.Logger) (audit.Sink, error) {
	if cfg.MongoURI == "" {
		return audit.NopSink{}, nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return audit.NewMongoSink(client, cfg.MongoDB, cfg.MongoColl, logger), nil
}
