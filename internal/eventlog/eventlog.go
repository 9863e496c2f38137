// Package eventlog appends machine-readable run records to a JSONL file so
// capture runs can be audited after the fact.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Logger appends events for a single run. All events share one run id.
type Logger struct {
	path  string
	runID string
	now   func() time.Time
}

// New creates a logger writing to path. A fresh run id is assigned.
func New(path string) *Logger {
	return &Logger{
		path:  path,
		runID: uuid.NewString(),
		now:   time.Now,
	}
}

// RunID returns the identifier shared by this run's events.
func (l *Logger) RunID() string {
	return l.runID
}

// Append writes one event record. Event logging must never abort a capture,
// so failures are returned for the caller to log and ignore.
func (l *Logger) Append(event string, fields map[string]any) error {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = event
	entry["run_id"] = l.runID
	entry["timestamp"] = l.now().UTC().Unix()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create event log directory: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
