// Package pipeline assembles one output record per match. Each match moves
// through a small state machine: it starts pending, enters fetching while its
// sub-fetches run, and settles exactly once as complete, degraded, or failed.
// Terminal states are never revisited.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quarterline/sportscrape/internal/dedup"
	"github.com/quarterline/sportscrape/internal/extract"
	"github.com/quarterline/sportscrape/internal/metrics"
	"github.com/quarterline/sportscrape/internal/schema"
)

// State is the extraction lifecycle state of one match.
type State string

// Match states. Complete, Degraded, and Failed are terminal.
const (
	StatePending  State = "pending"
	StateFetching State = "fetching"
	StateComplete State = "complete"
	StateDegraded State = "degraded"
	StateFailed   State = "failed"
)

// Result is the settled outcome for one match. FetchTime sums the durations
// of the successful fetches so the run report can carry a mean.
type Result struct {
	MatchID       string
	Sport         string
	State         State
	Record        *schema.ExtractionRecord
	Duplicate     bool
	FailureReason string
	Attempts      int
	FetchesOK     int
	FetchesFailed int
	FetchTime     time.Duration
}

// Pipeline drives per-match extraction. It is safe for concurrent use.
type Pipeline struct {
	pool    extract.Fetcher
	weather extract.WeatherService
	seen    *dedup.Store
	retry   *extract.RetryPolicy
	clock   extract.Clock
	logger  *zap.Logger
	opts    Options
	source  string
}

// New wires a pipeline. weather may be nil when weather is not requested.
func New(
	pool extract.Fetcher,
	weather extract.WeatherService,
	seen *dedup.Store,
	retry *extract.RetryPolicy,
	clock extract.Clock,
	opts Options,
	source string,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		pool:    pool,
		weather: weather,
		seen:    seen,
		retry:   retry,
		clock:   clock,
		logger:  logger,
		opts:    opts,
		source:  source,
	}
}

// ProcessMatch runs the full extraction for one listed match and returns its
// terminal result. A failed mandatory base fetch fails the match with no
// record; failed optional sections degrade the record instead.
func (p *Pipeline) ProcessMatch(ctx context.Context, listed schema.Match) Result {
	result := Result{MatchID: listed.MatchID, Sport: listed.Sport, State: StateFetching}
	metrics.IncActiveMatches()
	defer metrics.DecActiveMatches()

	record, err := p.extractBase(ctx, listed, &result)
	if err != nil {
		result.State = StateFailed
		result.FailureReason = reasonFor(err)
		p.logger.Warn("match failed",
			zap.String("match_id", listed.MatchID),
			zap.String("sport", listed.Sport),
			zap.String("reason", result.FailureReason),
		)
		metrics.ObserveMatch(listed.Sport, string(StateFailed))
		return result
	}

	p.extractSections(ctx, record, &result)
	p.resolveWeather(ctx, record)

	if len(record.AbsentFields) == 0 {
		record.State = schema.RecordComplete
		result.State = StateComplete
	} else {
		record.State = schema.RecordDegraded
		result.State = StateDegraded
	}
	record.ExtractedAt = p.clock.Now().UTC()
	record.Source = p.source
	schema.SortEvents(record.Events)

	if !p.admit(record) {
		result.Duplicate = true
		metrics.ObserveDedupRejected()
		metrics.ObserveMatch(listed.Sport, string(result.State))
		return result
	}

	result.Record = record
	metrics.ObserveMatch(listed.Sport, string(result.State))
	return result
}

// extractBase performs the mandatory fetch and builds the record skeleton.
func (p *Pipeline) extractBase(ctx context.Context, listed schema.Match, result *Result) (*schema.ExtractionRecord, error) {
	frag, err := p.fetchSection(ctx, p.target(listed, extract.KindBase), result)
	if err != nil {
		return nil, err
	}

	rawMatch, rawHome, rawAway, err := ParseBase(frag.Body)
	if err != nil {
		return nil, err
	}
	match, err := schema.ValidateMatch(rawMatch)
	if err != nil {
		return nil, err
	}
	mergeListing(&match, listed)

	home, err := schema.ValidateTeam(rawHome)
	if err != nil {
		return nil, err
	}
	away, err := schema.ValidateTeam(rawAway)
	if err != nil {
		return nil, err
	}

	record := &schema.ExtractionRecord{Match: match, HomeTeam: home, AwayTeam: away}
	if match.Status == schema.StatusFinished {
		final, half, scoreErr := ParseScores(frag.Body)
		if scoreErr == nil {
			record.FinalScore = final
			record.HalfTime = half
		}
	}
	return record, nil
}

// extractSections runs the optional sub-fetches concurrently and folds their
// results into the record under a lock.
func (p *Pipeline) extractSections(ctx context.Context, record *schema.ExtractionRecord, result *Result) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, req := range ResolveRequirements(p.opts, record.Match.Status) {
		if !req.Optional {
			continue
		}
		wg.Add(1)
		go func(req Requirement) {
			defer wg.Done()
			attempts := Result{}
			err := p.extractSection(ctx, record, req.Kind, &mu, &attempts)
			mu.Lock()
			result.Attempts += attempts.Attempts
			result.FetchesOK += attempts.FetchesOK
			result.FetchesFailed += attempts.FetchesFailed
			result.FetchTime += attempts.FetchTime
			if err != nil {
				record.AbsentFields = append(record.AbsentFields, string(req.Kind))
				p.logger.Info("optional section absent",
					zap.String("match_id", record.Match.MatchID),
					zap.String("section", string(req.Kind)),
					zap.String("reason", reasonFor(err)),
				)
			}
			mu.Unlock()
		}(req)
	}
	wg.Wait()
}

func (p *Pipeline) extractSection(ctx context.Context, record *schema.ExtractionRecord, kind extract.Kind, mu *sync.Mutex, result *Result) error {
	frag, err := p.fetchSection(ctx, p.target(record.Match, kind), result)
	if err != nil {
		return err
	}

	switch kind {
	case extract.KindOdds:
		raw, err := ParseOdds(frag.Body)
		if err != nil {
			return err
		}
		odds, err := schema.ValidateOdds(raw)
		if err != nil {
			return err
		}
		mu.Lock()
		record.Odds = &odds
		mu.Unlock()

	case extract.KindLineups:
		home, away, err := ParseLineups(frag.Body)
		if err != nil {
			return err
		}
		mu.Lock()
		record.HomeLineup = home
		record.AwayLineup = away
		mu.Unlock()

	case extract.KindEvents:
		rows, err := ParseEvents(frag.Body)
		if err != nil {
			return err
		}
		events := make([]schema.MatchEvent, 0, len(rows))
		for _, row := range rows {
			ev, err := schema.ValidateEvent(row)
			if err != nil {
				continue
			}
			events = append(events, ev)
		}
		mu.Lock()
		record.Events = events
		mu.Unlock()

	case extract.KindStats:
		teamStats, playerRows, err := ParseStats(frag.Body, record.Match.MatchID)
		if err != nil {
			return err
		}
		// (player_id, match_id) is the stat row's natural key; a page listing
		// the same player twice keeps only the first row.
		stats := make([]schema.PlayerStat, 0, len(playerRows))
		seenPlayers := make(map[string]bool, len(playerRows))
		for _, row := range playerRows {
			stat, err := schema.ValidateStat(row)
			if err != nil {
				continue
			}
			if seenPlayers[stat.PlayerID] {
				p.logger.Warn("duplicate player stat dropped",
					zap.String("match_id", stat.MatchID),
					zap.String("player_id", stat.PlayerID),
				)
				continue
			}
			seenPlayers[stat.PlayerID] = true
			stats = append(stats, stat)
		}
		mu.Lock()
		record.TeamStats = teamStats
		record.PlayerStats = stats
		mu.Unlock()

	default:
		return fmt.Errorf("unknown section kind %q", kind)
	}
	return nil
}

// fetchSection runs one sub-fetch through the retry policy. Transient errors
// get the remaining attempt budget; permanent and systemic errors return
// immediately.
func (p *Pipeline) fetchSection(ctx context.Context, target extract.Target, result *Result) (extract.RawFragment, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		result.Attempts++
		frag, err := p.pool.Fetch(ctx, target)
		if err == nil {
			result.FetchesOK++
			result.FetchTime += frag.Duration
			return frag, nil
		}
		result.FetchesFailed++
		lastErr = err
		if !p.retry.ShouldRetry(err, attempt) {
			return extract.RawFragment{}, lastErr
		}
		if err := sleep(ctx, p.retry.Backoff(attempt)); err != nil {
			return extract.RawFragment{}, err
		}
	}
}

// resolveWeather asks the external collaborator for match-time conditions.
// Lookup is gated to outdoor sports; missing data is absence, and only a
// lookup error marks the section absent.
func (p *Pipeline) resolveWeather(ctx context.Context, record *schema.ExtractionRecord) {
	if !p.opts.IncludeWeather || p.weather == nil {
		return
	}
	if !WeatherRelevant(record.Match.Sport) || record.Match.Status != schema.StatusUpcoming {
		return
	}
	info, ok, err := p.weather.Lookup(ctx, record.Match.Venue, record.Match.KickoffAt)
	if err != nil {
		record.AbsentFields = append(record.AbsentFields, "weather")
		p.logger.Info("weather lookup failed",
			zap.String("match_id", record.Match.MatchID),
			zap.Error(err),
		)
		return
	}
	if ok {
		record.Weather = &info
	}
}

// admit registers the record's natural key and content fingerprint, reporting
// whether the record may be emitted.
func (p *Pipeline) admit(record *schema.ExtractionRecord) bool {
	fp, err := schema.Fingerprint(fingerprintView(record))
	if err != nil {
		p.logger.Warn("record fingerprint failed",
			zap.String("match_id", record.Match.MatchID),
			zap.Error(err),
		)
		fp = ""
	}
	return p.seen.Admit(record.Match.MatchID, fp) == dedup.Admitted
}

// fingerprintView strips run-varying fields so identical content fingerprints
// identically across runs.
func fingerprintView(record *schema.ExtractionRecord) schema.ExtractionRecord {
	view := *record
	view.ExtractedAt = time.Time{}
	view.Source = ""
	return view
}

// target builds the fetch target for one section of a match.
func (p *Pipeline) target(match schema.Match, kind extract.Kind) extract.Target {
	url := match.DetailURL
	switch kind {
	case extract.KindOdds:
		url += "/odds"
	case extract.KindLineups:
		url += "/lineups"
	case extract.KindEvents:
		url += "/events"
	case extract.KindStats:
		url += "/statistics"
	}
	return extract.Target{
		Sport:   match.Sport,
		MatchID: match.MatchID,
		Kind:    kind,
		Class:   extract.ClassDetail,
		URL:     url,
	}
}

// mergeListing fills detail-page gaps from the listing row. The listing match
// id is authoritative: it is the key the match was scheduled under.
func mergeListing(match *schema.Match, listed schema.Match) {
	if listed.MatchID != "" {
		match.MatchID = listed.MatchID
	}
	if match.Sport == "" {
		match.Sport = listed.Sport
	}
	if match.Competition == "" {
		match.Competition = listed.Competition
	}
	if match.Country == "" {
		match.Country = listed.Country
	}
	if match.Venue == "" {
		match.Venue = listed.Venue
	}
	if match.KickoffAt.IsZero() {
		match.KickoffAt = listed.KickoffAt
	}
	if match.DetailURL == "" {
		match.DetailURL = listed.DetailURL
	}
}

// reasonFor normalizes an error chain into a short failure label for the run
// report: the typed-failure text when one is in the chain, a truncated
// message otherwise.
func reasonFor(err error) string {
	for _, sentinel := range []error{
		extract.ErrTimeout, extract.ErrTransient5xx, extract.ErrRateLimited,
		extract.ErrBlocked, extract.ErrNotFound, extract.ErrParseTargetChanged,
		extract.ErrCircuitOpen, extract.ErrRunAborted,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	msg := err.Error()
	if len(msg) > 80 {
		msg = msg[:80]
	}
	return msg
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("retry wait canceled: %w", ctx.Err())
	}
}
