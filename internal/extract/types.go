// Package extract defines the core types and interfaces shared by the
// extraction subsystems: fetch targets, raw fragments, typed fetch failures,
// and the error taxonomy that drives retry and degrade decisions.
package extract

import (
	"net/http"
	"time"
)

// Class groups fetch targets for rate limiting. Each class has its own token
// bucket, shared backoff, and circuit state.
type Class string

// Resource classes known to the limiter.
const (
	ClassListing Class = "listing"
	ClassDetail  Class = "detail"
)

// Kind names the logical purpose of one fetch within a match.
type Kind string

// Fetch kinds. KindBase is the mandatory identity fetch; the rest are
// optional sections gated by run configuration.
const (
	KindListing Kind = "listing"
	KindBase    Kind = "base"
	KindOdds    Kind = "odds"
	KindLineups Kind = "lineups"
	KindEvents  Kind = "events"
	KindStats   Kind = "stats"
)

// Target captures everything needed to perform one logical fetch.
type Target struct {
	Sport   string
	MatchID string
	Kind    Kind
	Class   Class
	URL     string
	Headers http.Header
}

// RawFragment is the result of a successful fetch, before parsing and
// validation.
type RawFragment struct {
	Target       Target
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	FetchedAt    time.Time
	UsedHeadless bool
	BodyHash     string
	SnapshotURI  string
}

// Outcome is reported back to the rate limiter after each fetch attempt.
type Outcome string

// Limiter outcomes. OutcomeError covers failures that carry no rate signal,
// such as a 404 or an upstream 5xx.
const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeBlocked     Outcome = "blocked"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeError       Outcome = "error"
)
