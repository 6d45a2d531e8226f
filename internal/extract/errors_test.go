package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want Severity
	}{
		{"timeout", ErrTimeout, Transient},
		{"server error", fmt.Errorf("fetch: %w", ErrTransient5xx), Transient},
		{"rate limited", ErrRateLimited, Transient},
		{"blocked", ErrBlocked, Transient},
		{"not found", fmt.Errorf("fetch: %w", ErrNotFound), Permanent},
		{"layout changed", ErrParseTargetChanged, Permanent},
		{"circuit open", ErrCircuitOpen, Systemic},
		{"run aborted", ErrRunAborted, Systemic},
		{"canceled", context.Canceled, Systemic},
		{"unknown", errors.New("connection reset"), Transient},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestOutcomeFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, OutcomeSuccess, OutcomeFor(nil))
	require.Equal(t, OutcomeRateLimited, OutcomeFor(fmt.Errorf("x: %w", ErrRateLimited)))
	require.Equal(t, OutcomeBlocked, OutcomeFor(ErrBlocked))
	require.Equal(t, OutcomeTimeout, OutcomeFor(ErrTimeout))
	require.Equal(t, OutcomeTimeout, OutcomeFor(context.DeadlineExceeded))
	require.Equal(t, OutcomeError, OutcomeFor(ErrNotFound))
	require.Equal(t, OutcomeError, OutcomeFor(fmt.Errorf("x: %w", ErrTransient5xx)))
	require.Equal(t, OutcomeError, OutcomeFor(errors.New("connection reset")))
}

func TestFailureFromStatus(t *testing.T) {
	t.Parallel()

	require.NoError(t, FailureFromStatus(200))
	require.NoError(t, FailureFromStatus(302))
	require.ErrorIs(t, FailureFromStatus(404), ErrNotFound)
	require.ErrorIs(t, FailureFromStatus(410), ErrNotFound)
	require.ErrorIs(t, FailureFromStatus(429), ErrRateLimited)
	require.ErrorIs(t, FailureFromStatus(403), ErrBlocked)
	require.ErrorIs(t, FailureFromStatus(401), ErrBlocked)
	require.ErrorIs(t, FailureFromStatus(500), ErrTransient5xx)
	require.ErrorIs(t, FailureFromStatus(503), ErrTransient5xx)
}
