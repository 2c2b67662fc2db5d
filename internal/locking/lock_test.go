package locking

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileLock_AcquireThenReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLock(dir, nil)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, "sess-1"))

	ok, err = l.Acquire(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
}

// TestFileLock_SecondAcquireByLiveHolderFails mirrors spec.md §7: lock
// contention is not an error, just a false result, while the original
// holder (this process, still alive) retains the lock.
func TestFileLock_SecondAcquireByLiveHolderFails(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLock(dir, nil)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "sess-2")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Acquire(ctx, "sess-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileLock_ReclaimsStaleLockFromDeadPID(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLock(dir, nil)
	ctx := context.Background()

	payload := lockPayload{PID: deadPID(t), SessionID: "sess-3", CreatedAt: time.Now().UnixMilli()}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(l.path("sess-3"), data, 0o644))

	ok, err := l.Acquire(ctx, "sess-3")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFileLock_RemovesUnreadableLockFile(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLock(dir, nil)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(l.path("sess-4"), []byte("not json"), 0o644))

	ok, err := l.Acquire(ctx, "sess-4")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFileLock_ReleaseOfUnheldLockIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLock(dir, nil)
	require.NoError(t, l.Release(context.Background(), "never-acquired"))
}

func TestFileLock_DefaultDirUnderTempDir(t *testing.T) {
	l := NewFileLock("", nil)
	require.Equal(t, filepath.Join(os.TempDir(), "linear-agent-locks"), l.dir)
}

// deadPID returns a pid that is extremely unlikely to be alive: a freshly
// spawned process that has already exited.
func deadPID(t *testing.T) int {
	t.Helper()
	proc, err := os.StartProcess("/bin/true", []string{"/bin/true"}, &os.ProcAttr{})
	if err != nil {
		// Fall back to a pid unlikely to exist on any system.
		return 1 << 30
	}
	pid := proc.Pid
	_, _ = proc.Wait()
	return pid
}
