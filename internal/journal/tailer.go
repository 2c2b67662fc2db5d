package journal

import (
	"context"
	"os"
	"strings"

	"github.com/boatri/linear-agent/internal/telemetry"
)

// Handler is called once per complete, validated journal record. Handler
// errors are logged and otherwise ignored — they never block tailing or
// reverse the byte offset that produced them (spec.md §4.7 step 5).
type Handler interface {
	Handle(ctx context.Context, path string, rec Record) error
}

// FileState tracks everything needed to resume tailing one file across
// restarts: the byte offset of the next unread byte, any partial trailing
// line held in memory, and bookkeeping counters. Zero value is a fresh
// file at offset 0.
type FileState struct {
	Path    string
	Offset  int64
	Partial string

	LineCount       int64
	LastUUID        string
	UnsavedLines    int
	KnownSessionIDs map[string]struct{}
}

// NewFileState constructs a FileState for path, optionally seeded from a
// persisted cursor.
func NewFileState(path string, cursor CursorState, hasCursor bool) *FileState {
	fs := &FileState{Path: path, KnownSessionIDs: make(map[string]struct{})}
	if hasCursor {
		fs.Offset = cursor.ByteOffset
		fs.LineCount = cursor.LineCount
		fs.LastUUID = cursor.LastUUID
	}
	return fs
}

// Tailer reads newly appended bytes from tracked files and dispatches
// complete records to a Handler. It is not safe for concurrent use — the
// watcher orchestrator drives it from a single loop (spec.md §5).
type Tailer struct {
	handler Handler
	logger  telemetry.Logger
}

// NewTailer constructs a Tailer that forwards parsed records to handler.
func NewTailer(handler Handler, logger telemetry.Logger) *Tailer {
	if logger == nil {
		logger = telemetry.NewLogger()
	}
	return &Tailer{handler: handler, logger: logger}
}

// ReadNewLines implements spec.md §4.7's readNewLines algorithm: it reads
// any bytes appended since fs.Offset, splits on newline, re-buffers a
// trailing partial line, and dispatches each complete line to the handler.
// It returns the number of bytes consumed from the file in this call.
func (t *Tailer) ReadNewLines(ctx context.Context, fs *FileState) (int64, error) {
	info, err := os.Stat(fs.Path)
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size <= fs.Offset {
		return 0, nil
	}

	f, err := os.Open(fs.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	chunk := make([]byte, size-fs.Offset)
	if _, err := f.ReadAt(chunk, fs.Offset); err != nil {
		return 0, err
	}

	consumedFrom := fs.Offset
	// fs.Offset sits at the start of any buffered partial line, so chunk
	// already begins with those bytes; fs.Partial must not be prepended.
	data := string(chunk)
	fs.Partial = ""
	fs.Offset = size

	lines := strings.Split(data, "\n")
	// A trailing "\n" produces a final empty element — that is not a
	// partial line, it is the end of the last complete record (spec.md §9
	// open question). Only re-buffer when the data does *not* end in "\n".
	if !strings.HasSuffix(data, "\n") {
		last := lines[len(lines)-1]
		lines = lines[:len(lines)-1]
		fs.Partial = last
		fs.Offset -= int64(len(last))
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if !ValidateShape([]byte(line)) {
			t.logger.Warn(ctx, "dropping malformed journal line", "path", fs.Path)
			continue
		}
		rec, err := ParseRecord([]byte(line))
		if err != nil {
			t.logger.Warn(ctx, "dropping unparsable journal line", "path", fs.Path, "error", err.Error())
			continue
		}
		fs.LineCount++
		fs.UnsavedLines++
		if rec.UUID != "" {
			fs.LastUUID = rec.UUID
		}
		if rec.SessionID != "" {
			if fs.KnownSessionIDs == nil {
				fs.KnownSessionIDs = make(map[string]struct{})
			}
			fs.KnownSessionIDs[rec.SessionID] = struct{}{}
		}
		if err := t.handler.Handle(ctx, fs.Path, rec); err != nil {
			t.logger.Error(ctx, "projector error", err, "path", fs.Path, "uuid", rec.UUID)
		}
	}

	return fs.Offset - consumedFrom, nil
}
