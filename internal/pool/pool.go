// Package pool implements the bounded-concurrency fetch executor. Each call
// performs exactly one logical fetch: acquire a rate-limit permit, hit the
// network with a timeout, report the outcome back to the limiter, and return
// the raw content or a typed failure. Retries belong to the caller so that
// retry policy can vary by fetch purpose.
package pool

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quarterline/sportscrape/internal/extract"
	"github.com/quarterline/sportscrape/internal/metrics"
	"github.com/quarterline/sportscrape/internal/schema"
)

// Config controls Pool behavior.
type Config struct {
	Concurrency    int
	FetchTimeout   time.Duration
	SnapshotPrefix string
	ContentType    string
}

// Pool executes fetches with bounded concurrency.
type Pool struct {
	fetcher  extract.Fetcher
	headless extract.Fetcher
	detector extract.HeadlessDetector
	limiter  extract.Limiter
	blobs    extract.BlobStore
	clock    extract.Clock
	cfg      Config
	sem      chan struct{}
	logger   *zap.Logger
}

// New constructs a Pool. headless, detector, and blobs may be nil.
func New(
	fetcher extract.Fetcher,
	headless extract.Fetcher,
	detector extract.HeadlessDetector,
	limiter extract.Limiter,
	blobs extract.BlobStore,
	clock extract.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		fetcher:  fetcher,
		headless: headless,
		detector: detector,
		limiter:  limiter,
		blobs:    blobs,
		clock:    clock,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.Concurrency),
		logger:   logger,
	}
}

// Fetch performs one logical fetch for the target.
func (p *Pool) Fetch(ctx context.Context, target extract.Target) (extract.RawFragment, error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return extract.RawFragment{}, fmt.Errorf("worker slot wait canceled: %w", ctx.Err())
	}

	permit, err := p.limiter.AcquireSlot(ctx, target.Class)
	if err != nil {
		return extract.RawFragment{}, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	frag, fetchErr := p.fetcher.Fetch(fetchCtx, target)
	if fetchErr == nil {
		frag = p.maybePromote(fetchCtx, target, frag)
	}

	outcome := extract.OutcomeFor(fetchErr)
	p.limiter.Report(permit, outcome)
	metrics.ObserveFetch(string(target.Class), string(outcome), time.Since(start))

	if fetchErr != nil {
		p.logger.Debug("fetch failed",
			zap.String("match_id", target.MatchID),
			zap.String("kind", string(target.Kind)),
			zap.Error(fetchErr),
		)
		return extract.RawFragment{}, fetchErr
	}

	frag.BodyHash = schema.BodyHash(frag.Body)
	p.archiveSnapshot(ctx, &frag)
	return frag, nil
}

// maybePromote retries a shell-looking probe response through the headless
// fetcher. A failed promotion falls back to the probe result.
func (p *Pool) maybePromote(ctx context.Context, target extract.Target, frag extract.RawFragment) extract.RawFragment {
	if p.headless == nil || p.detector == nil || !p.detector.ShouldPromote(frag) {
		return frag
	}
	promoted, err := p.headless.Fetch(ctx, target)
	if err != nil {
		p.logger.Warn("headless promotion failed",
			zap.String("match_id", target.MatchID),
			zap.String("kind", string(target.Kind)),
			zap.Error(err),
		)
		return frag
	}
	return promoted
}

// archiveSnapshot writes the raw body to the blob store. Archive failures are
// logged, never surfaced: the snapshot is an audit trail, not output.
func (p *Pool) archiveSnapshot(ctx context.Context, frag *extract.RawFragment) {
	if p.blobs == nil || len(frag.Body) == 0 {
		return
	}
	path := fmt.Sprintf("%s/%s/%s.html", frag.Target.Sport, frag.Target.Kind, frag.BodyHash)
	if p.cfg.SnapshotPrefix != "" {
		path = p.cfg.SnapshotPrefix + "/" + path
	}
	uri, err := p.blobs.PutObject(ctx, path, p.cfg.ContentType, bytes.NewReader(frag.Body))
	if err != nil {
		p.logger.Warn("snapshot archive failed", zap.String("path", path), zap.Error(err))
		return
	}
	frag.SnapshotURI = uri
}
