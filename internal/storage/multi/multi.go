// Package multi fans dataset appends out to several sinks.
package multi

import (
	"context"
	"errors"

	"github.com/quarterline/sportscrape/internal/extract"
	"github.com/quarterline/sportscrape/internal/schema"
)

// Sink forwards every record to all wrapped sinks. An append fails if any
// sink fails, but the remaining sinks still receive the record.
type Sink struct {
	sinks []extract.DatasetSink
}

// New wraps the given sinks; nil entries are skipped.
func New(sinks ...extract.DatasetSink) *Sink {
	kept := make([]extract.DatasetSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Sink{sinks: kept}
}

// Append writes the record to every sink.
func (s *Sink) Append(ctx context.Context, record schema.ExtractionRecord) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Append(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (s *Sink) Close(ctx context.Context) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
