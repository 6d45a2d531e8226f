package extract

import (
	"context"
	"io"
	"time"

	"github.com/quarterline/sportscrape/internal/schema"
)

// Fetcher performs a single network fetch and returns the raw body plus
// metadata. Retries are the caller's responsibility.
type Fetcher interface {
	Fetch(ctx context.Context, target Target) (RawFragment, error)
}

// Permit is an opaque rate-limit grant returned by a Limiter.
type Permit struct {
	Class    Class
	IssuedAt time.Time
	Probe    bool
}

// Limiter throttles outbound requests per resource class. AcquireSlot may
// suspend the caller; it fails fast with ErrCircuitOpen while a class's
// circuit is open.
type Limiter interface {
	AcquireSlot(ctx context.Context, class Class) (Permit, error)
	Report(permit Permit, outcome Outcome)
}

// HeadlessDetector decides whether a probe fetch should be promoted to a
// headless browser fetch.
type HeadlessDetector interface {
	ShouldPromote(frag RawFragment) bool
}

// BlobStore archives raw page snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// DatasetSink receives emitted records in completion order.
type DatasetSink interface {
	Append(ctx context.Context, record schema.ExtractionRecord) error
	Close(ctx context.Context) error
}

// Publisher announces emitted records to an external topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// WeatherService is the external weather collaborator. The ok result is false
// when no data is available, which is not an error.
type WeatherService interface {
	Lookup(ctx context.Context, venue string, at time.Time) (schema.WeatherInfo, bool, error)
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
