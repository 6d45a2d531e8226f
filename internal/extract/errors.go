package extract

import (
	"context"
	"errors"
	"fmt"
)

// Typed fetch failures classified at the worker boundary. Callers match with
// errors.Is; the pipeline never sees an unclassified fault.
var (
	ErrTimeout            = errors.New("fetch timed out")
	ErrTransient5xx       = errors.New("upstream server error")
	ErrRateLimited        = errors.New("rate limited by target")
	ErrBlocked            = errors.New("blocked by target")
	ErrNotFound           = errors.New("target not found")
	ErrParseTargetChanged = errors.New("page structure changed")
	ErrCircuitOpen        = errors.New("circuit open for resource class")
	ErrRunAborted         = errors.New("run aborted")
)

// Severity buckets an error for the retry/degrade/halt decision.
type Severity int

// Severity levels, from retryable to run-stopping.
const (
	Transient Severity = iota
	Permanent
	Systemic
)

// Classify maps an error to its severity. Unknown errors are treated as
// transient so a flaky parse or connection reset gets its retry budget.
func Classify(err error) Severity {
	switch {
	case err == nil:
		return Transient
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrRunAborted),
		errors.Is(err, context.Canceled):
		return Systemic
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrParseTargetChanged):
		return Permanent
	default:
		return Transient
	}
}

// OutcomeFor translates a fetch error into the limiter outcome report. Only a
// nil error counts as success; failures without a rate signal report
// OutcomeError so the limiter neither escalates nor resets its backoff.
func OutcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, ErrBlocked):
		return OutcomeBlocked
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}

// FailureFromStatus maps an HTTP status code to a typed failure, or nil for
// success classes.
func FailureFromStatus(code int) error {
	switch {
	case code == 0:
		return nil
	case code == 404 || code == 410:
		return fmt.Errorf("%w: status %d", ErrNotFound, code)
	case code == 429:
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	case code == 403 || code == 401:
		return fmt.Errorf("%w: status %d", ErrBlocked, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient5xx, code)
	default:
		return nil
	}
}
