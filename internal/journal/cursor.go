package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boatri/linear-agent/internal/telemetry"
)

// CursorState is the persisted resume point for one tailed file.
type CursorState struct {
	ByteOffset int64  `json:"byteOffset"`
	LineCount  int64  `json:"lineCount"`
	LastUUID   string `json:"lastUuid"`
}

// CursorStore persists CursorState per file, keyed by the file's absolute
// path. Implementations must be best-effort: Save failures are logged, not
// returned, and Load failures (missing or corrupt) are treated as "no
// cursor" rather than an error.
type CursorStore interface {
	Load(ctx context.Context, path string) (CursorState, bool)
	Save(ctx context.Context, path string, state CursorState)
}

// FileCursorStore persists one small JSON file per cursor key under dir,
// matching spec.md §6: /tmp/claude-linear-cursor-<sha256(path)[:16]>.json.
type FileCursorStore struct {
	dir    string
	logger telemetry.Logger
}

// NewFileCursorStore constructs a FileCursorStore rooted at dir. If dir is
// empty, os.TempDir() is used.
func NewFileCursorStore(dir string, logger telemetry.Logger) *FileCursorStore {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = telemetry.NewLogger()
	}
	return &FileCursorStore{dir: dir, logger: logger}
}

func cursorKey(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:16]
}

func (s *FileCursorStore) cursorPath(path string) string {
	return filepath.Join(s.dir, fmt.Sprintf("claude-linear-cursor-%s.json", cursorKey(path)))
}

// Load reads the cursor for path. Any read or decode failure is treated as
// "no cursor" — spec.md §7 "Cursor read failure ... start from offset 0".
func (s *FileCursorStore) Load(ctx context.Context, path string) (CursorState, bool) {
	data, err := os.ReadFile(s.cursorPath(path))
	if err != nil {
		return CursorState{}, false
	}
	var st CursorState
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn(ctx, "discarding corrupt cursor file", "path", path, "error", err.Error())
		return CursorState{}, false
	}
	return st, true
}

// Save writes the cursor for path. Failures are logged and swallowed —
// spec.md §7 "Cursor write failure ... Log; non-fatal".
func (s *FileCursorStore) Save(ctx context.Context, path string, state CursorState) {
	data, err := json.Marshal(state)
	if err != nil {
		s.logger.Error(ctx, "marshal cursor state", err, "path", path)
		return
	}
	target := s.cursorPath(path)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Error(ctx, "write cursor file", err, "path", path)
		return
	}
	if err := os.Rename(tmp, target); err != nil {
		s.logger.Error(ctx, "rename cursor file", err, "path", path)
	}
}
