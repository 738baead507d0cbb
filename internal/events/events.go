// Package events persists every progress event of a server session to an
// append-only NDJSON file under the artifacts directory. The file is the
// durable audit trail of a session; the progress bus is the live view.
//
// Design constraints:
//   - All Sink methods are nil-safe (no-op on nil receiver) so the
//     orchestrator never needs a nil check before logging.
//   - One file per session, named events_<session>_<epoch>.ndjson, so
//     restarts never clobber an earlier session's trail.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

// Sink appends progress events to the session's NDJSON file.
//
// Expectations:
//   - Append writes exactly one JSON line per event, in call order
//   - Append is safe for concurrent callers (mutex-protected)
//   - Append and Close no-op on a nil receiver
type Sink struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// Open creates the session event file under dir. The session ID goes into
// the filename so parallel sessions never share a file.
func Open(dir, sessionID string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("events: create dir %s: %w", dir, err)
	}
	name := fmt.Sprintf("events_%s_%d.ndjson", sessionID, time.Now().Unix())
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("events: open %s: %w", path, err)
	}
	return &Sink{path: path, f: f}, nil
}

// Path returns the file the sink writes to.
func (s *Sink) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Append writes ev as one NDJSON line. Errors are logged, not returned: a
// broken audit trail must not fail a research run.
func (s *Sink) Append(ev types.ProgressEvent) {
	if s == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("[EVENTS] marshal event", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return
	}
	if _, err := fmt.Fprintf(s.f, "%s\n", data); err != nil {
		slog.Error("[EVENTS] write event", "path", s.path, "error", err)
	}
}

// Close flushes and closes the session file.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f != nil {
		_ = s.f.Close()
		s.f = nil
	}
}
