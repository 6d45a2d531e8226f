package pool

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quarterline/sportscrape/internal/extract"
)

type fakeFetcher struct {
	mu    sync.Mutex
	body  []byte
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, target extract.Target) (extract.RawFragment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return extract.RawFragment{}, f.err
	}
	return extract.RawFragment{
		Target:     target,
		StatusCode: 200,
		Body:       f.body,
		FetchedAt:  time.Now(),
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLimiter struct {
	mu       sync.Mutex
	err      error
	outcomes []extract.Outcome
}

func (l *fakeLimiter) AcquireSlot(_ context.Context, class extract.Class) (extract.Permit, error) {
	if l.err != nil {
		return extract.Permit{}, l.err
	}
	return extract.Permit{Class: class, IssuedAt: time.Now()}, nil
}

func (l *fakeLimiter) Report(_ extract.Permit, outcome extract.Outcome) {
	l.mu.Lock()
	l.outcomes = append(l.outcomes, outcome)
	l.mu.Unlock()
}

func (l *fakeLimiter) reported() []extract.Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]extract.Outcome(nil), l.outcomes...)
}

type fakeBlobStore struct {
	mu       sync.Mutex
	lastPath string
	err      error
}

func (b *fakeBlobStore) PutObject(_ context.Context, path, _ string, r io.Reader) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	b.mu.Lock()
	b.lastPath = path
	b.mu.Unlock()
	return "memory://" + path, nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type promoteAlways struct{}

func (promoteAlways) ShouldPromote(extract.RawFragment) bool { return true }

func detailTarget() extract.Target {
	return extract.Target{
		Sport:   "football",
		MatchID: "m1",
		Kind:    extract.KindBase,
		Class:   extract.ClassDetail,
		URL:     "https://example.com/match/m1",
	}
}

func TestPool_Fetch_SuccessArchivesSnapshot(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: []byte("<html>match</html>")}
	limiter := &fakeLimiter{}
	blobs := &fakeBlobStore{}
	p := New(fetcher, nil, nil, limiter, blobs, &fakeClock{now: time.Unix(100, 0)}, Config{}, nil)

	frag, err := p.Fetch(context.Background(), detailTarget())
	require.NoError(t, err)
	require.NotEmpty(t, frag.BodyHash)
	require.Equal(t, "memory://football/base/"+frag.BodyHash+".html", frag.SnapshotURI)
	require.Equal(t, []extract.Outcome{extract.OutcomeSuccess}, limiter.reported())
}

func TestPool_Fetch_CircuitOpenFailsFast(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: []byte("unused")}
	limiter := &fakeLimiter{err: fmt.Errorf("class detail: %w", extract.ErrCircuitOpen)}
	p := New(fetcher, nil, nil, limiter, nil, &fakeClock{}, Config{}, nil)

	_, err := p.Fetch(context.Background(), detailTarget())
	require.ErrorIs(t, err, extract.ErrCircuitOpen)
	require.Zero(t, fetcher.callCount(), "no network call happens once the circuit rejects")
}

func TestPool_Fetch_FailureReportsOutcome(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: fmt.Errorf("fetch: %w", extract.ErrRateLimited)}
	limiter := &fakeLimiter{}
	p := New(fetcher, nil, nil, limiter, nil, &fakeClock{}, Config{}, nil)

	_, err := p.Fetch(context.Background(), detailTarget())
	require.ErrorIs(t, err, extract.ErrRateLimited)
	require.Equal(t, []extract.Outcome{extract.OutcomeRateLimited}, limiter.reported())
}

func TestPool_Fetch_PromotesToHeadless(t *testing.T) {
	t.Parallel()

	probe := &fakeFetcher{body: []byte(`<div id="root"></div>`)}
	rendered := &fakeFetcher{body: []byte("<html>full content</html>")}
	limiter := &fakeLimiter{}
	p := New(probe, rendered, promoteAlways{}, limiter, nil, &fakeClock{}, Config{}, nil)

	frag, err := p.Fetch(context.Background(), detailTarget())
	require.NoError(t, err)
	require.Equal(t, 1, rendered.callCount())
	require.Equal(t, []byte("<html>full content</html>"), frag.Body)
}

func TestPool_Fetch_HeadlessFailureFallsBackToProbe(t *testing.T) {
	t.Parallel()

	probe := &fakeFetcher{body: []byte(`<div id="root"></div>`)}
	rendered := &fakeFetcher{err: extract.ErrTimeout}
	limiter := &fakeLimiter{}
	p := New(probe, rendered, promoteAlways{}, limiter, nil, &fakeClock{}, Config{}, nil)

	frag, err := p.Fetch(context.Background(), detailTarget())
	require.NoError(t, err)
	require.Equal(t, []byte(`<div id="root"></div>`), frag.Body)
}

func TestPool_Fetch_SnapshotFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: []byte("<html>ok</html>")}
	blobs := &fakeBlobStore{err: fmt.Errorf("bucket unavailable")}
	p := New(fetcher, nil, nil, &fakeLimiter{}, blobs, &fakeClock{}, Config{}, nil)

	frag, err := p.Fetch(context.Background(), detailTarget())
	require.NoError(t, err)
	require.Empty(t, frag.SnapshotURI)
}
