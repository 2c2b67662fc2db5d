// Package locking provides the single-session lock: exactly one watcher
// process per session id per host (or per cluster, for the Redis-backed
// implementation) — spec.md §4.3.
package locking

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/boatri/linear-agent/internal/telemetry"
)

// Lock is acquired once per logical session id for the lifetime of a
// watcher process.
type Lock interface {
	// Acquire attempts to take the lock for sessionID. It returns false
	// (no error) when another live holder already owns it — spec.md §7:
	// "Lock contention ... not an error".
	Acquire(ctx context.Context, sessionID string) (bool, error)
	// Release gives up the lock. Best-effort.
	Release(ctx context.Context, sessionID string) error
}

// lockPayload is the lock file's JSON contents (spec.md §6).
type lockPayload struct {
	PID       int    `json:"pid"`
	SessionID string `json:"sessionId"`
	CreatedAt int64  `json:"createdAt"`
}

// FileLock implements Lock via an exclusively-created file under dir,
// reclaiming locks whose recorded pid is no longer alive.
type FileLock struct {
	dir    string
	logger telemetry.Logger
}

// NewFileLock constructs a FileLock rooted at <tmpdir>/linear-agent-locks
// when dir is empty.
func NewFileLock(dir string, logger telemetry.Logger) *FileLock {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "linear-agent-locks")
	}
	if logger == nil {
		logger = telemetry.NewLogger()
	}
	return &FileLock{dir: dir, logger: logger}
}

func (l *FileLock) path(sessionID string) string {
	return filepath.Join(l.dir, sessionID+".lock")
}

// Acquire implements Lock.
func (l *FileLock) Acquire(ctx context.Context, sessionID string) (bool, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return false, fmt.Errorf("locking: create lock dir: %w", err)
	}

	payload := lockPayload{PID: os.Getpid(), SessionID: sessionID, CreatedAt: time.Now().UnixMilli()}
	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("locking: marshal lock payload: %w", err)
	}

	ok, err := l.tryCreate(l.path(sessionID), data)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	// Lock file exists: probe the recorded pid and reclaim if stale.
	if l.reclaimIfStale(ctx, sessionID) {
		ok, err := l.tryCreate(l.path(sessionID), data)
		if err != nil {
			return false, err
		}
		return ok, nil
	}
	return false, nil
}

func (l *FileLock) tryCreate(path string, data []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("locking: create lock file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return false, fmt.Errorf("locking: write lock file: %w", err)
	}
	return true, nil
}

func (l *FileLock) reclaimIfStale(ctx context.Context, sessionID string) bool {
	path := l.path(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		// File vanished between the failed create and this read; safe to
		// let caller retry.
		return os.IsNotExist(err)
	}
	var payload lockPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		l.logger.Warn(ctx, "removing unreadable lock file", "path", path)
		return os.Remove(path) == nil
	}
	if isAlive(payload.PID) {
		return false
	}
	l.logger.Info(ctx, "reclaiming stale lock", "path", path, "pid", payload.PID)
	return os.Remove(path) == nil
}

// isAlive probes a pid with signal 0, which performs permission/existence
// checks without actually sending a signal.
func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// Release implements Lock.
func (l *FileLock) Release(_ context.Context, sessionID string) error {
	err := os.Remove(l.path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("locking: release lock file: %w", err)
	}
	return nil
}
