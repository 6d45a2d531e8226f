package memory

import (
	"context"
	"sync"

	"github.com/quarterline/sportscrape/internal/schema"
)

// DatasetSink collects emitted records in memory, preserving append order.
type DatasetSink struct {
	mu      sync.Mutex
	records []schema.ExtractionRecord
	closed  bool
}

// NewDatasetSink creates an empty in-memory sink.
func NewDatasetSink() *DatasetSink {
	return &DatasetSink{}
}

// Append stores one record.
func (s *DatasetSink) Append(_ context.Context, record schema.ExtractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Close marks the sink closed.
func (s *DatasetSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Records returns a copy of everything appended so far.
func (s *DatasetSink) Records() []schema.ExtractionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.ExtractionRecord(nil), s.records...)
}
