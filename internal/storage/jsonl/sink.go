// Package jsonl writes the output dataset as newline-delimited JSON, one
// record per line in completion order.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/quarterline/sportscrape/internal/schema"
)

// Sink appends records to a JSONL file.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	closed bool
}

// NewSink opens (or creates) the output file for appending.
func NewSink(path string) (*Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &Sink{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Append writes one record as a single JSON line.
func (s *Sink) Append(_ context.Context, record schema.ExtractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("dataset sink is closed")
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", record.Match.MatchID, err)
	}
	if _, err := s.writer.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write record terminator: %w", err)
	}
	return nil
}

// Close flushes buffered lines and closes the file.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.writer.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("flush dataset: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close dataset file: %w", err)
	}
	return nil
}
