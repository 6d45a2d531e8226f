// Package runner coordinates a full extraction run: enumerate matches per
// sport, drive the per-match pipeline with bounded parallelism, emit accepted
// records in completion order, and settle with a run report. A run that
// crosses the error-rate threshold stops issuing new matches, drains what is
// in flight, and reports itself aborted.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarterline/sportscrape/internal/dedup"
	"github.com/quarterline/sportscrape/internal/extract"
	"github.com/quarterline/sportscrape/internal/metrics"
	"github.com/quarterline/sportscrape/internal/pipeline"
	"github.com/quarterline/sportscrape/internal/progress"
	"github.com/quarterline/sportscrape/internal/schema"
)

// Config controls one run. IncludePreMatch and IncludePostMatch gate which
// match phases are enumerated; leaving both unset enables both.
type Config struct {
	Sports             []string
	Competitions       []string
	Countries          []string
	DateFrom           time.Time
	DateTo             time.Time
	MaxMatchesPerSport int
	ParallelMatches    int
	ErrorRateThreshold float64
	MinSampleSize      int
	ListingURLTemplate string
	PublishTopic       string
	IncludePreMatch    bool
	IncludePostMatch   bool
}

// Coordinator owns the run lifecycle. One Coordinator drives one run.
type Coordinator struct {
	cfg    Config
	pool   extract.Fetcher
	pipe   *pipeline.Pipeline
	sink   extract.DatasetSink
	pub    extract.Publisher
	hub    *progress.Hub
	seen   *dedup.Store
	clock  extract.Clock
	ids    extract.IDGenerator
	logger *zap.Logger

	mu        sync.Mutex
	report    RunReport
	fetchTime time.Duration
	aborted   bool
	running   bool
}

// New wires a coordinator. pub and hub may be nil.
func New(
	cfg Config,
	pool extract.Fetcher,
	pipe *pipeline.Pipeline,
	sink extract.DatasetSink,
	pub extract.Publisher,
	hub *progress.Hub,
	seen *dedup.Store,
	clock extract.Clock,
	ids extract.IDGenerator,
	logger *zap.Logger,
) *Coordinator {
	if cfg.ParallelMatches <= 0 {
		cfg.ParallelMatches = 3
	}
	if cfg.ErrorRateThreshold <= 0 {
		cfg.ErrorRateThreshold = 0.2
	}
	if cfg.MinSampleSize <= 0 {
		cfg.MinSampleSize = 10
	}
	if !cfg.IncludePreMatch && !cfg.IncludePostMatch {
		cfg.IncludePreMatch = true
		cfg.IncludePostMatch = true
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:    cfg,
		pool:   pool,
		pipe:   pipe,
		sink:   sink,
		pub:    pub,
		hub:    hub,
		seen:   seen,
		clock:  clock,
		ids:    ids,
		logger: logger,
	}
}

// Run executes the full run and returns its report. The error is non-nil only
// when the run could not start or produced nothing enumerable; per-match
// failures and an abort are reported, not returned.
func (c *Coordinator) Run(ctx context.Context) (RunReport, error) {
	runID, err := c.ids.NewID()
	if err != nil {
		return RunReport{}, fmt.Errorf("generate run id: %w", err)
	}
	started := c.clock.Now().UTC()

	c.mu.Lock()
	c.report = newReport(runID, started)
	c.fetchTime = 0
	c.running = true
	c.aborted = false
	c.mu.Unlock()

	runUUID := runIDBytes(runID)
	c.emit(progress.Event{RunID: runUUID, TS: started, Stage: progress.StageRunStart})

	matches, listErr := c.enumerate(ctx, runID)
	if len(matches) == 0 {
		c.settle(runUUID)
		if listErr != nil {
			return c.Report(), fmt.Errorf("enumerate matches: %w", listErr)
		}
		return c.Report(), nil
	}

	c.processAll(ctx, runUUID, matches)
	c.settle(runUUID)
	return c.Report(), nil
}

// Report returns a copy of the current report. Safe during and after a run.
func (c *Coordinator) Report() RunReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	report := c.report
	report.BySport = make(map[string]*SportBreakdown, len(c.report.BySport))
	for sport, b := range c.report.BySport {
		clone := *b
		report.BySport[sport] = &clone
	}
	report.FailureReasons = make(map[string]int, len(c.report.FailureReasons))
	for reason, n := range c.report.FailureReasons {
		report.FailureReasons[reason] = n
	}
	return report
}

// Running reports whether the run is still settling matches.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// enumerate lists, filters, and truncates the matches for every configured
// sport. A sport whose listing fails is logged and skipped; the last listing
// error is returned so a fully empty run can surface it.
func (c *Coordinator) enumerate(ctx context.Context, runID string) ([]schema.Match, error) {
	var (
		all     []schema.Match
		lastErr error
	)
	for _, sport := range c.cfg.Sports {
		listed, err := c.listSport(ctx, sport)
		if err != nil {
			lastErr = err
			c.logger.Error("sport listing failed", zap.String("sport", sport), zap.Error(err))
			continue
		}
		kept := c.filter(listed)
		if c.cfg.MaxMatchesPerSport > 0 && len(kept) > c.cfg.MaxMatchesPerSport {
			kept = kept[:c.cfg.MaxMatchesPerSport]
		}
		c.mu.Lock()
		c.report.TotalListed += len(kept)
		c.report.sport(sport).Listed = len(kept)
		c.mu.Unlock()
		c.logger.Info("sport enumerated",
			zap.String("run_id", runID),
			zap.String("sport", sport),
			zap.Int("listed", len(listed)),
			zap.Int("kept", len(kept)),
		)
		all = append(all, kept...)
	}
	return all, lastErr
}

func (c *Coordinator) listSport(ctx context.Context, sport string) ([]schema.Match, error) {
	target := extract.Target{
		Sport: sport,
		Kind:  extract.KindListing,
		Class: extract.ClassListing,
		URL:   strings.ReplaceAll(c.cfg.ListingURLTemplate, "{sport}", sport),
	}
	frag, err := c.pool.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	rows, err := pipeline.ParseListing(frag.Body)
	if err != nil {
		return nil, err
	}

	matches := make([]schema.Match, 0, len(rows))
	for _, row := range rows {
		if _, ok := row["sport"]; !ok || row["sport"] == "" {
			row["sport"] = sport
		}
		match, err := schema.ValidateMatch(row)
		if err != nil {
			c.logger.Debug("listing row rejected", zap.String("sport", sport), zap.Error(err))
			continue
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// filter applies the phase gates, the date window, and the competition and
// country allowlists. Finished matches belong to the post-match phase;
// everything else is pre-match.
func (c *Coordinator) filter(matches []schema.Match) []schema.Match {
	kept := matches[:0]
	for _, m := range matches {
		if m.Status == schema.StatusFinished {
			if !c.cfg.IncludePostMatch {
				continue
			}
		} else if !c.cfg.IncludePreMatch {
			continue
		}
		if !c.cfg.DateFrom.IsZero() && !m.KickoffAt.IsZero() && m.KickoffAt.Before(c.cfg.DateFrom) {
			continue
		}
		if !c.cfg.DateTo.IsZero() && !m.KickoffAt.IsZero() && m.KickoffAt.After(c.cfg.DateTo) {
			continue
		}
		if !allowed(m.Competition, c.cfg.Competitions) {
			continue
		}
		if !allowed(m.Country, c.cfg.Countries) {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

func allowed(value string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	for _, entry := range allowlist {
		if strings.EqualFold(entry, value) {
			return true
		}
	}
	return false
}

// processAll settles every enumerated match with bounded parallelism. Once
// the run aborts, no new matches are issued; in-flight matches drain.
func (c *Coordinator) processAll(ctx context.Context, runUUID [16]byte, matches []schema.Match) {
	var wg sync.WaitGroup
	slots := make(chan struct{}, c.cfg.ParallelMatches)

	for _, match := range matches {
		if c.isAborted() || ctx.Err() != nil {
			break
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}
		wg.Add(1)
		go func(match schema.Match) {
			defer wg.Done()
			defer func() { <-slots }()
			c.processOne(ctx, runUUID, match)
		}(match)
	}
	wg.Wait()
}

func (c *Coordinator) processOne(ctx context.Context, runUUID [16]byte, match schema.Match) {
	c.emit(progress.Event{
		RunID:   runUUID,
		TS:      c.clock.Now().UTC(),
		Stage:   progress.StageMatchStart,
		Sport:   match.Sport,
		MatchID: match.MatchID,
	})
	started := c.clock.Now()
	result := c.pipe.ProcessMatch(ctx, match)
	c.record(ctx, result)
	c.emit(progress.Event{
		RunID:   runUUID,
		TS:      c.clock.Now().UTC(),
		Stage:   progress.StageMatchSettled,
		Sport:   match.Sport,
		MatchID: match.MatchID,
		State:   string(result.State),
		Dur:     c.clock.Now().Sub(started),
		Note:    result.FailureReason,
	})
}

// record folds one settled match into the report, emits the record, and runs
// the abort check.
func (c *Coordinator) record(ctx context.Context, result pipeline.Result) {
	c.mu.Lock()
	breakdown := c.report.sport(result.Sport)
	c.report.Attempted++
	c.report.FetchAttempts += result.Attempts
	c.report.FetchesSucceeded += result.FetchesOK
	c.report.FetchesFailed += result.FetchesFailed
	c.fetchTime += result.FetchTime
	switch {
	case result.Duplicate:
		c.report.Duplicates++
		breakdown.Duplicates++
	case result.State == pipeline.StateComplete:
		c.report.Complete++
		breakdown.Complete++
	case result.State == pipeline.StateDegraded:
		c.report.Degraded++
		breakdown.Degraded++
	case result.State == pipeline.StateFailed:
		c.report.Failed++
		breakdown.Failed++
		if result.FailureReason != "" {
			c.report.FailureReasons[result.FailureReason]++
		}
	}
	attempted := c.report.Attempted
	rate := c.report.ErrorRate()
	alreadyAborted := c.aborted
	c.mu.Unlock()

	if result.Record != nil {
		c.emitRecord(ctx, *result.Record)
	}

	if alreadyAborted || attempted < c.cfg.MinSampleSize || rate < c.cfg.ErrorRateThreshold {
		return
	}
	c.abort(fmt.Sprintf("error rate %.0f%% over %d matches crossed the %.0f%% threshold",
		rate*100, attempted, c.cfg.ErrorRateThreshold*100))
}

func (c *Coordinator) emitRecord(ctx context.Context, record schema.ExtractionRecord) {
	if err := c.sink.Append(ctx, record); err != nil {
		c.logger.Error("dataset append failed",
			zap.String("match_id", record.Match.MatchID),
			zap.Error(err),
		)
		return
	}
	c.mu.Lock()
	c.report.Emitted++
	c.mu.Unlock()
	metrics.ObserveRecordEmitted(record.Match.Sport)

	if c.pub != nil && c.cfg.PublishTopic != "" {
		if _, err := c.pub.Publish(ctx, c.cfg.PublishTopic, record); err != nil {
			c.logger.Warn("record publish failed",
				zap.String("match_id", record.Match.MatchID),
				zap.Error(err),
			)
		}
	}
}

func (c *Coordinator) abort(reason string) {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return
	}
	c.aborted = true
	c.report.Aborted = true
	c.report.AbortReason = reason
	c.mu.Unlock()
	c.logger.Error("run aborted", zap.String("reason", reason))
}

func (c *Coordinator) isAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// settle finalizes timing and anomaly counts and emits the terminal run event.
func (c *Coordinator) settle(runUUID [16]byte) {
	finished := c.clock.Now().UTC()

	c.mu.Lock()
	c.report.FinishedAt = finished
	c.report.Duration = finished.Sub(c.report.StartedAt)
	if c.report.FetchesSucceeded > 0 {
		c.report.AvgFetchDuration = c.fetchTime / time.Duration(c.report.FetchesSucceeded)
	}
	if c.seen != nil {
		c.report.DedupAnomalies = c.seen.Anomalies()
	}
	if c.hub != nil {
		c.report.EventsDropped = c.hub.Dropped()
	}
	aborted := c.report.Aborted
	duration := c.report.Duration
	reason := c.report.AbortReason
	c.running = false
	c.mu.Unlock()

	stage := progress.StageRunDone
	if aborted {
		stage = progress.StageRunAborted
	}
	c.emit(progress.Event{
		RunID: runUUID,
		TS:    finished,
		Stage: stage,
		Dur:   duration,
		Note:  reason,
	})
}

func (c *Coordinator) emit(evt progress.Event) {
	if c.hub == nil {
		return
	}
	c.hub.Emit(evt)
}

// runIDBytes parses a UUID run id into the progress event form. Non-UUID ids
// are copied byte-for-byte into a stable synthetic identity instead.
func runIDBytes(runID string) [16]byte {
	if id, err := uuid.Parse(runID); err == nil {
		return progress.UUIDToBytes(id)
	}
	var dest [16]byte
	copy(dest[:], runID)
	return dest
}
