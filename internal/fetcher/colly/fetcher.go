// Package collyfetcher implements extract.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/debug"

	"github.com/quarterline/sportscrape/internal/extract"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	Debug         bool
}

// Fetcher performs plain HTTP fetches through a Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a Fetcher with a pooled transport.
func New(cfg Config) *Fetcher {
	opts := []colly.CollectorOption{colly.Async(false)}
	if cfg.Debug {
		opts = append(opts, colly.Debugger(&debug.LogDebugger{}))
	}
	c := colly.NewCollector(opts...)
	transport := newHTTPTransport()
	c.WithTransport(transport)
	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET and classifies failures into the typed
// fetch errors.
func (f *Fetcher) Fetch(ctx context.Context, target extract.Target) (extract.RawFragment, error) {
	var (
		result   extract.RawFragment
		fetchErr error
		status   int
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range target.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = extract.RawFragment{
			Target:     target,
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
			FetchedAt:  start,
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := f.runCollector(ctx, collector, target.URL); err != nil {
		return extract.RawFragment{}, err
	}
	if fetchErr != nil {
		return extract.RawFragment{}, classify(target.URL, status, fetchErr)
	}
	if typed := extract.FailureFromStatus(result.StatusCode); typed != nil {
		return extract.RawFragment{}, typed
	}
	return result, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return classify(url, 0, err)
		}
		return nil
	}
}

func classify(url string, status int, err error) error {
	if typed := extract.FailureFromStatus(status); typed != nil {
		return fmt.Errorf("fetch %s: %w", url, typed)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("fetch %s: %w: %v", url, extract.ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("fetch %s: %w: %v", url, extract.ErrTimeout, err)
	}
	return fmt.Errorf("fetch %s: %w", url, err)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
