// Package writer persists capture output: a pretty-printed JSON document for
// Twitter threads and a line-delimited JSON stream for Twitch chat. Paths are
// derived from platform and scope under the ingest log directory, and an
// existing file at the target path is always replaced, never appended to.
package writer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/quill/msgingest/internal/message"
)

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizePathComponent replaces characters unsafe in a filename with "_".
func SanitizePathComponent(value string) string {
	return unsafePathChars.ReplaceAllString(value, "_")
}

// DefaultPath derives the output path for a capture scope. Twitter documents
// get a .json extension, Twitch streams .jsonl.
func DefaultPath(outputDir, platform, scopeID string) string {
	ext := "jsonl"
	if platform == message.PlatformTwitter {
		ext = "json"
	}
	name := fmt.Sprintf("%s_%s.%s", platform, SanitizePathComponent(scopeID), ext)
	return filepath.Join(outputDir, name)
}

// WriteDocument serializes doc as indented JSON at path, creating parent
// directories as needed. The write goes through a temp file and rename so a
// crash never leaves a half-written document.
func WriteDocument(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace output file: %w", err)
	}
	return nil
}

// StreamWriter appends rows to a JSONL file, one object per line. The file is
// truncated at open so a zero-message capture still produces an empty file.
type StreamWriter struct {
	file   *os.File
	writer *bufio.Writer
	count  int
}

// OpenStream creates (or replaces) the JSONL file at path.
func OpenStream(path string) (*StreamWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return &StreamWriter{file: file, writer: bufio.NewWriter(file)}, nil
}

// Append writes one row and flushes it, so rows already captured survive an
// interrupted run.
func (s *StreamWriter) Append(row message.Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}
	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush row: %w", err)
	}
	s.count++
	return nil
}

// Count reports how many rows have been appended.
func (s *StreamWriter) Count() int {
	return s.count
}

// Close flushes and closes the underlying file.
func (s *StreamWriter) Close() error {
	if err := s.writer.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("flush stream: %w", err)
	}
	return s.file.Close()
}
