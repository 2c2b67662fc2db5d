package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boatri/linear-agent/internal/journal"
	"github.com/boatri/linear-agent/internal/telemetry"
)

type fakeCursorStore struct {
	mu    sync.Mutex
	saved map[string]journal.CursorState
}

func newFakeCursorStore() *fakeCursorStore {
	return &fakeCursorStore{saved: make(map[string]journal.CursorState)}
}

func (s *fakeCursorStore) Load(ctx context.Context, path string) (journal.CursorState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.saved[path]
	return st, ok
}

func (s *fakeCursorStore) Save(ctx context.Context, path string, state journal.CursorState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[path] = state
}

type fakeLock struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires int
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: make(map[string]bool)}
}

func (l *fakeLock) Acquire(ctx context.Context, sessionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.held[sessionID] {
		return false, nil
	}
	l.held[sessionID] = true
	return true, nil
}

func (l *fakeLock) Release(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, sessionID)
	return nil
}

type countingHandler struct {
	mu      sync.Mutex
	records []journal.Record
}

func (h *countingHandler) Handle(ctx context.Context, path string, rec journal.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func newTestWatcher(handler journal.Handler, cursor journal.CursorStore, lock *fakeLock, cfg Config) *Watcher {
	tailer := journal.NewTailer(handler, telemetry.NewLogger())
	return New(cfg, lock, cursor, tailer, telemetry.NewLogger())
}

func TestWatcher_AdoptTracksFileOnlyOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cursor := newFakeCursorStore()
	cursor.saved[path] = journal.CursorState{ByteOffset: 42}

	w := newTestWatcher(&countingHandler{}, cursor, newFakeLock(), Config{})
	ctx := context.Background()

	w.adopt(ctx, path)
	require.Len(t, w.files, 1)
	require.Equal(t, int64(42), w.files[path].Offset)

	w.adopt(ctx, path)
	require.Len(t, w.files, 1, "adopting an already-tracked path must be a no-op")
}

func TestWatcher_PollOnceDispatchesNewLinesAndTracksSessionIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	line := `{"type":"summary","uuid":"a","sessionId":"sess-xyz","summary":"hi"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	handler := &countingHandler{}
	w := newTestWatcher(handler, newFakeCursorStore(), newFakeLock(), Config{})
	ctx := context.Background()

	w.adopt(ctx, path)
	w.scanner = journal.NewSuccessorScanner(dir, "seed-session", 0, telemetry.NewLogger())

	total := w.pollOnce(ctx)
	require.Positive(t, total)
	require.Equal(t, 1, handler.count())

	// sessionId observed in the tailed line must have reached the scanner's
	// known-sessions set so a later successor file naming it is adopted.
	require.True(t, w.scanner.Knows("sess-xyz"))
}

func TestWatcher_PollOnceReturnsZeroWhenNothingNew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w := newTestWatcher(&countingHandler{}, newFakeCursorStore(), newFakeLock(), Config{})
	ctx := context.Background()
	w.adopt(ctx, path)

	require.Zero(t, w.pollOnce(ctx))
}

func TestWatcher_ShouldSaveTriggersOnElapsedTime(t *testing.T) {
	w := newTestWatcher(&countingHandler{}, newFakeCursorStore(), newFakeLock(), Config{})
	require.True(t, w.shouldSave(time.Now().Add(-saveEverySeconds)))
	require.False(t, w.shouldSave(time.Now()))
}

func TestWatcher_ShouldSaveTriggersOnUnsavedLineCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w := newTestWatcher(&countingHandler{}, newFakeCursorStore(), newFakeLock(), Config{})
	w.adopt(context.Background(), path)
	w.files[path].UnsavedLines = saveEveryLines

	require.True(t, w.shouldSave(time.Now()))
}

func TestWatcher_PersistAllSavesCursorAndResetsUnsavedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cursor := newFakeCursorStore()
	w := newTestWatcher(&countingHandler{}, cursor, newFakeLock(), Config{})
	ctx := context.Background()
	w.adopt(ctx, path)
	w.files[path].Offset = 100
	w.files[path].LineCount = 3
	w.files[path].LastUUID = "u-9"
	w.files[path].UnsavedLines = 7

	w.persistAll(ctx)

	saved, ok := cursor.Load(ctx, path)
	require.True(t, ok)
	require.Equal(t, journal.CursorState{ByteOffset: 100, LineCount: 3, LastUUID: "u-9"}, saved)
	require.Zero(t, w.files[path].UnsavedLines)
}

func TestWatcher_DrainAndPersistFlushesPendingLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	line := `{"type":"summary","uuid":"a","sessionId":"s","summary":"x"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	handler := &countingHandler{}
	cursor := newFakeCursorStore()
	w := newTestWatcher(handler, cursor, newFakeLock(), Config{})
	ctx := context.Background()
	w.adopt(ctx, path)

	w.drainAndPersist(ctx)

	require.Equal(t, 1, handler.count())
	saved, ok := cursor.Load(ctx, path)
	require.True(t, ok)
	require.Equal(t, int64(len(line)), saved.ByteOffset)
}

// TestWatcher_RunExitsImmediatelyOnLockContention is spec.md §7: lock
// contention is not an error, and the watcher must neither adopt nor tail
// any file when another holder already owns the session's lock.
func TestWatcher_RunExitsImmediatelyOnLockContention(t *testing.T) {
	handler := &countingHandler{}
	lock := newFakeLock()
	_, err := lock.Acquire(context.Background(), "sess-1")
	require.NoError(t, err)

	w := newTestWatcher(handler, newFakeCursorStore(), lock, Config{SessionID: "sess-1"})

	err = w.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, w.files)
	require.Zero(t, handler.count())
}

// TestWatcher_RunTailsFileThenDrainsOnCancel is an end-to-end pass through
// Run: it finds the already-written journal file, tails its one record,
// then returns promptly once ctx is cancelled, having persisted the cursor.
func TestWatcher_RunTailsFileThenDrainsOnCancel(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))

	sessionID := "11111111-1111-1111-1111-111111111111"
	path := filepath.Join(projectDir, sessionID+".jsonl")
	line := `{"type":"summary","uuid":"a","sessionId":"` + sessionID + `","summary":"hi"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	handler := &countingHandler{}
	cursor := newFakeCursorStore()
	w := newTestWatcher(handler, cursor, newFakeLock(), Config{
		SessionID:        sessionID,
		JournalRoot:      root,
		PollInterval:     10 * time.Millisecond,
		SuccessorScanMin: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return handler.count() > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	saved, ok := cursor.Load(context.Background(), path)
	require.True(t, ok)
	require.Equal(t, int64(len(line)), saved.ByteOffset)
}
