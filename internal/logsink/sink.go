// Package logsink mirrors catalog network activity to an append-only text
// file, one ISO-8601 timestamped line per record. Writers in separate
// processes are serialized through a lock file next to the log.
package logsink

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// BodyPreviewLimit is the number of response bytes kept when verbose output
// is disabled.
const BodyPreviewLimit = 1000

// Sink appends timestamped lines to a file. A nil *Sink discards everything,
// so callers never need to check whether a sink was configured.
type Sink struct {
	mu      sync.Mutex
	file    *os.File
	lock    *flock.Flock
	verbose bool
	now     func() time.Time
}

// Open opens (or creates) path for appending.
func Open(path string, verbose bool) (*Sink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log sink: %w", err)
	}
	return &Sink{
		file:    file,
		lock:    flock.New(path + ".lock"),
		verbose: verbose,
		now:     time.Now,
	}, nil
}

// Verbose reports whether full response bodies are recorded.
func (s *Sink) Verbose() bool {
	return s != nil && s.verbose
}

// Printf appends one formatted line. Write failures are logged and dropped.
func (s *Sink) Printf(format string, args ...any) {
	if s == nil {
		return
	}
	s.write(fmt.Sprintf(format, args...))
}

// Record appends a request line followed by its response body, truncated
// unless the sink is verbose. Both lines are written in one locked append so
// concurrent requests never interleave.
func (s *Sink) Record(line string, body []byte) {
	if s == nil {
		return
	}
	preview := string(body)
	if !s.verbose && len(body) > BodyPreviewLimit {
		preview = string(body[:BodyPreviewLimit]) + "..."
	}
	s.write(line, preview)
}

func (s *Sink) write(entries ...string) {
	stamp := s.now().Format(time.RFC3339Nano)
	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "[%s] %s\n", stamp, entry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		slog.Debug("log sink lock failed", "error", err)
	} else {
		defer func() { _ = s.lock.Unlock() }()
	}
	if _, err := s.file.WriteString(b.String()); err != nil {
		slog.Debug("log sink write failed", "error", err)
	}
}

// Close releases the file.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
