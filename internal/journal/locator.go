package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/boatri/linear-agent/internal/telemetry"
)

// sessionFileName matches the UUID-shaped journal filename spec.md §6/§4.8
// requires for successor discovery.
var sessionFileName = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.jsonl$`)

// successorScanBudget bounds how much of a candidate file is inspected
// when looking for a linking sessionId (spec.md §4.8: "up to the first 32
// KiB").
const successorScanBudget = 32 * 1024

// successorScanLines bounds how many leading non-empty lines are examined.
const successorScanLines = 5

// FindSessionFile searches root (a home-relative agent-project directory)
// for a file matching */{sessionID}.jsonl and returns its path, or "" if
// none is found yet.
func FindSessionFile(root, sessionID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*", sessionID+".jsonl"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	return matches[0], nil
}

// SuccessorScanner discovers sibling journal files that later reveal a
// sessionId already known to this watcher, and adopts them as successor
// sessions. Checked files (matched or not) are never re-examined — spec.md
// §4.8/§9: a known, permanent limitation, not an error.
type SuccessorScanner struct {
	dir           string
	checked       map[string]struct{}
	knownSessions map[string]struct{}
	lastScan      time.Time
	minInterval   time.Duration
	logger        telemetry.Logger
}

// NewSuccessorScanner constructs a scanner over dir (the starting file's
// directory), seeded with the original session id. minInterval bounds the
// scan cadence (spec.md §4.8's "at most every 3s" default); a
// non-positive value falls back to that default.
func NewSuccessorScanner(dir, seedSessionID string, minInterval time.Duration, logger telemetry.Logger) *SuccessorScanner {
	if logger == nil {
		logger = telemetry.NewLogger()
	}
	if minInterval <= 0 {
		minInterval = 3 * time.Second
	}
	s := &SuccessorScanner{
		dir:           dir,
		checked:       make(map[string]struct{}),
		knownSessions: make(map[string]struct{}),
		minInterval:   minInterval,
		logger:        logger,
	}
	if seedSessionID != "" {
		s.knownSessions[seedSessionID] = struct{}{}
	}
	return s
}

// ObserveSessionID adds a session id discovered mid-stream to the
// known-sessions set, per spec.md §3 "known-sessions set ... augmented by
// every record observed".
func (s *SuccessorScanner) ObserveSessionID(id string) {
	if id == "" {
		return
	}
	s.knownSessions[id] = struct{}{}
}

// Knows reports whether id is in the known-sessions set, for callers and
// tests that need to observe the effect of ObserveSessionID without
// reaching into the scanner's internals.
func (s *SuccessorScanner) Knows(id string) bool {
	_, ok := s.knownSessions[id]
	return ok
}

// Due reports whether enough time has elapsed since the last scan.
func (s *SuccessorScanner) Due(now time.Time) bool {
	return now.Sub(s.lastScan) >= s.minInterval
}

// Scan enumerates sibling *.jsonl files not yet checked, reads a capped
// prefix of each, and returns the paths of newly adopted successor files.
func (s *SuccessorScanner) Scan(ctx context.Context, now time.Time) []string {
	s.lastScan = now

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn(ctx, "successor scan: read dir failed", "dir", s.dir, "error", err.Error())
		return nil
	}

	var adopted []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !sessionFileName.MatchString(name) {
			continue
		}
		full := filepath.Join(s.dir, name)
		if _, ok := s.checked[full]; ok {
			continue
		}
		s.checked[full] = struct{}{}

		if s.matchesKnownSession(ctx, full) {
			adopted = append(adopted, full)
		}
	}
	return adopted
}

func (s *SuccessorScanner) matchesKnownSession(ctx context.Context, path string) bool {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn(ctx, "successor scan: open candidate failed", "path", path, "error", err.Error())
		return false
	}
	defer f.Close()

	buf := make([]byte, successorScanBudget)
	n, _ := f.Read(buf)
	buf = buf[:n]

	scanner := bufio.NewScanner(bytes.NewReader(buf))
	checked := 0
	for scanner.Scan() && checked < successorScanLines {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		checked++

		var probe struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			continue
		}
		if probe.SessionID == "" {
			continue
		}
		if _, known := s.knownSessions[probe.SessionID]; known {
			return true
		}
	}
	return false
}
