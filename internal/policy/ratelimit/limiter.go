// Package ratelimit implements the per-resource-class throttle: token-bucket
// spacing, shared multiplicative backoff, and a circuit breaker with a
// half-open probe.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quarterline/sportscrape/internal/extract"
	"github.com/quarterline/sportscrape/internal/metrics"
)

// Config holds the controller knobs. Interval is the steady-state minimum
// spacing between requests of one class.
type Config struct {
	Interval       time.Duration
	Burst          int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	BlockThreshold int
	Cooldown       time.Duration
}

// Controller owns all mutable rate-limit and circuit state. It is passed by
// reference to every worker and guarded by a single mutex, never ambient
// global state.
type Controller struct {
	mu      sync.Mutex
	cfg     Config
	classes map[extract.Class]*classState
	logger  *zap.Logger
}

type classState struct {
	bucket        *rate.Limiter
	backoff       time.Duration
	backoffUntil  time.Time
	consecBlocked int
	open          bool
	circuitUntil  time.Time
	probing       bool
}

// New builds a Controller, applying defaults for unset fields.
func New(cfg Config, logger *zap.Logger) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = cfg.Interval
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 60 * time.Second
	}
	if cfg.BlockThreshold <= 0 {
		cfg.BlockThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:     cfg,
		classes: make(map[extract.Class]*classState),
		logger:  logger,
	}
}

// AcquireSlot blocks until the class's spacing and shared backoff allow
// another request. While the class's circuit is open it fails immediately
// with ErrCircuitOpen; once the cool-down elapses exactly one caller is let
// through as the half-open probe.
func (c *Controller) AcquireSlot(ctx context.Context, class extract.Class) (extract.Permit, error) {
	now := time.Now()

	c.mu.Lock()
	st := c.state(class)
	if st.open {
		if now.Before(st.circuitUntil) || st.probing {
			c.mu.Unlock()
			return extract.Permit{}, fmt.Errorf("class %s: %w", class, extract.ErrCircuitOpen)
		}
		st.probing = true
		c.mu.Unlock()
		return extract.Permit{Class: class, IssuedAt: now, Probe: true}, nil
	}
	wait := time.Until(st.backoffUntil)
	bucket := st.bucket
	c.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return extract.Permit{}, fmt.Errorf("backoff wait canceled: %w", ctx.Err())
		}
	}

	if err := bucket.Wait(ctx); err != nil {
		return extract.Permit{}, fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(now); waited > time.Millisecond {
		metrics.ObserveRateLimitWait(string(class), waited)
	}
	return extract.Permit{Class: class, IssuedAt: now}, nil
}

// Report feeds the attempt outcome back into the shared class state. One
// worker's backoff throttles its siblings.
func (c *Controller) Report(permit extract.Permit, outcome extract.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state(permit.Class)
	if permit.Probe {
		c.settleProbe(permit.Class, st, outcome)
		return
	}

	switch outcome {
	case extract.OutcomeSuccess:
		st.consecBlocked = 0
		st.backoff = 0
		st.backoffUntil = time.Time{}
	case extract.OutcomeRateLimited:
		c.escalate(permit.Class, st)
	case extract.OutcomeBlocked:
		c.escalate(permit.Class, st)
		st.consecBlocked++
		if st.consecBlocked >= c.cfg.BlockThreshold && !st.open {
			c.trip(permit.Class, st)
		}
	case extract.OutcomeTimeout, extract.OutcomeError:
		// Neither escalation nor reset: a timeout or a plain failed fetch
		// says nothing about whether the target is pushing back.
	}
}

func (c *Controller) settleProbe(class extract.Class, st *classState, outcome extract.Outcome) {
	st.probing = false
	if outcome == extract.OutcomeSuccess {
		st.open = false
		st.consecBlocked = 0
		st.backoff = 0
		st.backoffUntil = time.Time{}
		metrics.SetCircuitOpen(string(class), false)
		c.logger.Info("circuit closed after successful probe", zap.String("class", string(class)))
		return
	}
	st.circuitUntil = time.Now().Add(c.cfg.Cooldown)
	c.logger.Warn("half-open probe failed, circuit stays open",
		zap.String("class", string(class)),
		zap.String("outcome", string(outcome)),
	)
}

func (c *Controller) escalate(class extract.Class, st *classState) {
	if st.backoff == 0 {
		st.backoff = c.cfg.BackoffBase
	} else {
		st.backoff *= 2
	}
	if st.backoff > c.cfg.BackoffMax {
		st.backoff = c.cfg.BackoffMax
	}
	st.backoffUntil = time.Now().Add(st.backoff)
	c.logger.Warn("backoff escalated",
		zap.String("class", string(class)),
		zap.Duration("delay", st.backoff),
	)
}

func (c *Controller) trip(class extract.Class, st *classState) {
	st.open = true
	st.probing = false
	st.circuitUntil = time.Now().Add(c.cfg.Cooldown)
	metrics.SetCircuitOpen(string(class), true)
	c.logger.Warn("circuit opened",
		zap.String("class", string(class)),
		zap.Int("consecutive_blocked", st.consecBlocked),
		zap.Duration("cooldown", c.cfg.Cooldown),
	)
}

// state returns the per-class state, creating it on first use. Caller holds
// the mutex.
func (c *Controller) state(class extract.Class) *classState {
	st, ok := c.classes[class]
	if !ok {
		st = &classState{
			bucket: rate.NewLimiter(rate.Every(c.cfg.Interval), c.cfg.Burst),
		}
		c.classes[class] = st
	}
	return st
}
