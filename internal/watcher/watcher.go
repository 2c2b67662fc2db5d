// Package watcher binds the rate limiter, cursor store, lock, tailer,
// locator/successor-scanner and projector into the orchestrating main loop
// (spec.md §4.9).
package watcher

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/boatri/linear-agent/internal/journal"
	"github.com/boatri/linear-agent/internal/locking"
	"github.com/boatri/linear-agent/internal/telemetry"
)

// saveEverySeconds and saveEveryLines bound how often cursors are
// persisted during steady-state tailing (spec.md §4.9 step 4).
const (
	saveEverySeconds = 5 * time.Second
	saveEveryLines   = 10
)

// findFileRetryInterval is how long awaitInitialFile waits between
// FindSessionFile retries when the journal file does not exist yet (spec.md §4.7 "File may not
// exist yet").
const findFileRetryInterval = 500 * time.Millisecond

// Config configures the Watcher.
type Config struct {
	SessionID        string
	JournalRoot      string
	PollInterval     time.Duration
	SuccessorScanMin time.Duration
}

// Watcher is the orchestrator loop binding every other component.
type Watcher struct {
	cfg    Config
	lock   locking.Lock
	cursor journal.CursorStore
	tailer *journal.Tailer
	logger telemetry.Logger

	files    map[string]*journal.FileState
	scanner  *journal.SuccessorScanner
	stopping bool
}

// New constructs a Watcher. tailer must forward to the projector.
func New(cfg Config, lock locking.Lock, cursor journal.CursorStore, tailer *journal.Tailer, logger telemetry.Logger) *Watcher {
	if logger == nil {
		logger = telemetry.NewLogger()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = findFileRetryInterval
	}
	return &Watcher{
		cfg:    cfg,
		lock:   lock,
		cursor: cursor,
		tailer: tailer,
		logger: logger,
		files:  make(map[string]*journal.FileState),
	}
}

// Run blocks until ctx is cancelled or a terminate/interrupt signal is
// received, then drains and persists before returning.
func (w *Watcher) Run(ctx context.Context) error {
	ok, err := w.lock.Acquire(ctx, w.cfg.SessionID)
	if err != nil {
		return err
	}
	if !ok {
		// Lock contention is not an error (spec.md §7) — another watcher
		// for this session already owns it.
		w.logger.Info(ctx, "another watcher already owns this session; exiting", "sessionId", w.cfg.SessionID)
		return nil
	}
	defer w.lock.Release(context.Background(), w.cfg.SessionID)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	path, err := w.awaitInitialFile(ctx)
	if err != nil {
		return err
	}
	if path == "" {
		// Context cancelled while waiting.
		return nil
	}

	w.adopt(ctx, path)
	w.scanner = journal.NewSuccessorScanner(filepath.Dir(path), w.cfg.SessionID, w.cfg.SuccessorScanMin, w.logger)

	lastSave := time.Now()
	for {
		select {
		case <-ctx.Done():
			w.drainAndPersist(context.Background())
			return nil
		default:
		}

		total := w.pollOnce(ctx)

		if w.scanner.Due(time.Now()) {
			for _, np := range w.scanner.Scan(ctx, time.Now()) {
				w.adopt(ctx, np)
			}
		}

		if w.shouldSave(lastSave) {
			w.persistAll(ctx)
			lastSave = time.Now()
		}

		if total == 0 {
			select {
			case <-ctx.Done():
				w.drainAndPersist(context.Background())
				return nil
			case <-time.After(w.cfg.PollInterval):
			}
		}
	}
}

func (w *Watcher) awaitInitialFile(ctx context.Context) (string, error) {
	for {
		path, err := journal.FindSessionFile(w.cfg.JournalRoot, w.cfg.SessionID)
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
		select {
		case <-ctx.Done():
			return "", nil
		case <-time.After(findFileRetryInterval):
		}
	}
}

func (w *Watcher) adopt(ctx context.Context, path string) {
	if _, ok := w.files[path]; ok {
		return
	}
	cursor, hasCursor := w.cursor.Load(ctx, path)
	w.files[path] = journal.NewFileState(path, cursor, hasCursor)
	w.logger.Info(ctx, "tailing journal file", "path", path, "resumedOffset", cursor.ByteOffset)
}

func (w *Watcher) pollOnce(ctx context.Context) int64 {
	var total int64
	for path, fs := range w.files {
		n, err := w.tailer.ReadNewLines(ctx, fs)
		if err != nil {
			w.logger.Error(ctx, "tail read failed", err, "path", path)
			continue
		}
		total += n
		for sid := range fs.KnownSessionIDs {
			if w.scanner != nil {
				w.scanner.ObserveSessionID(sid)
			}
		}
	}
	return total
}

func (w *Watcher) shouldSave(lastSave time.Time) bool {
	if time.Since(lastSave) >= saveEverySeconds {
		return true
	}
	for _, fs := range w.files {
		if fs.UnsavedLines >= saveEveryLines {
			return true
		}
	}
	return false
}

func (w *Watcher) persistAll(ctx context.Context) {
	for path, fs := range w.files {
		w.cursor.Save(ctx, path, journal.CursorState{
			ByteOffset: fs.Offset,
			LineCount:  fs.LineCount,
			LastUUID:   fs.LastUUID,
		})
		fs.UnsavedLines = 0
	}
}

func (w *Watcher) drainAndPersist(ctx context.Context) {
	w.pollOnce(ctx)
	w.persistAll(ctx)
	w.logger.Info(ctx, "watcher stopped", "sessionId", w.cfg.SessionID, "filesTailed", len(w.files))
}
