// Package audit accumulates the durable trail of one batch run. Lines are
// buffered in memory and written out in a single flush so that a log file
// exists for every invocation, including ones that abort before any file
// is touched.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event tags classify log lines for post-processing with grep or jq-style
// tooling.
const (
	// EventInit marks the start-of-batch line.
	EventInit = "INIT"

	// EventUploaded marks a file that reached the remote server.
	EventUploaded = "UPLOADED"

	// EventFailed marks a file whose transfer failed; the line carries the cause.
	EventFailed = "FAILED"

	// EventSkipped marks a file excluded from the batch by policy.
	EventSkipped = "SKIPPED"

	// EventError marks a fatal condition that aborted the batch.
	EventError = "ERROR"

	// EventDone marks the end-of-batch summary line.
	EventDone = "DONE"
)

// Log is the in-memory audit buffer for one batch. It is owned by the
// orchestration call; Flush is invoked via defer so every exit path,
// including aborts, produces the file.
type Log struct {
	mu      sync.Mutex
	path    string
	lines   []string
	flushed int // count of lines already written out
}

// New creates a Log that will flush to a file under logDir, named from
// the batch start time so concurrent runs never collide.
func New(logDir string, start time.Time) *Log {
	name := fmt.Sprintf("push-%s.log", start.Format("20060102-150405.000"))
	return &Log{path: filepath.Join(logDir, name)}
}

// Path returns the file the log will be flushed to.
func (l *Log) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Append records one timestamped line. Fields are formatted as key=value
// pairs after the message.
func (l *Log) Append(event, msg string, kv ...any) {
	var sb strings.Builder
	sb.WriteString(time.Now().UTC().Format(time.RFC3339))
	sb.WriteByte(' ')
	sb.WriteString(event)
	sb.WriteByte(' ')
	sb.WriteString(msg)

	for i := 0; i+1 < len(kv); i += 2 {
		sb.WriteString(fmt.Sprintf(" %v=%v", kv[i], kv[i+1]))
	}

	l.mu.Lock()
	l.lines = append(l.lines, sb.String())
	l.mu.Unlock()
}

// Len returns the number of buffered lines.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Flush appends all unwritten lines to the log file, creating the
// directory and file as needed. On failure the lines stay buffered so a
// later flush (or the caller's error report) still has them.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.flushed == len(l.lines) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", l.path, err)
	}

	for _, line := range l.lines[l.flushed:] {
		if _, err := f.WriteString(line + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("failed to write log %s: %w", l.path, err)
		}
		l.flushed++
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync log %s: %w", l.path, err)
	}
	return f.Close()
}
