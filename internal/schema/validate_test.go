package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateMatch_RequiredFields(t *testing.T) {
	t.Parallel()

	_, err := ValidateMatch(map[string]any{"sport": "football"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ErrMissingField, verr.Kind)
	require.Equal(t, "match_id", verr.Field)

	_, err = ValidateMatch(map[string]any{"match_id": "m1"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "sport", verr.Field)
}

func TestValidateMatch_CoercesFields(t *testing.T) {
	t.Parallel()

	m, err := ValidateMatch(map[string]any{
		"match_id":   "  m1  ",
		"sport":      "football",
		"status":     "LIVE",
		"kickoff_at": "2026-08-26T18:00:00Z",
		"venue":      "Arena",
	})
	require.NoError(t, err)
	require.Equal(t, "m1", m.MatchID)
	require.Equal(t, StatusLive, m.Status)
	require.Equal(t, time.Date(2026, 8, 26, 18, 0, 0, 0, time.UTC), m.KickoffAt)
	require.Equal(t, "Arena", m.Venue)
}

func TestValidateMatch_UnknownStatusDefaultsToUpcoming(t *testing.T) {
	t.Parallel()

	m, err := ValidateMatch(map[string]any{"match_id": "m1", "sport": "tennis", "status": "postponed"})
	require.NoError(t, err)
	require.Equal(t, StatusUpcoming, m.Status)
}

func TestValidateMatch_BadTimestamp(t *testing.T) {
	t.Parallel()

	_, err := ValidateMatch(map[string]any{"match_id": "m1", "sport": "tennis", "kickoff_at": "yesterday"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ErrBadType, verr.Kind)
}

func TestValidateMatch_EmptyTimestampIsAbsent(t *testing.T) {
	t.Parallel()

	m, err := ValidateMatch(map[string]any{"match_id": "m1", "sport": "tennis", "kickoff_at": ""})
	require.NoError(t, err)
	require.True(t, m.KickoffAt.IsZero())
}

func TestValidateStat_EmptyCountIsAbsent(t *testing.T) {
	t.Parallel()

	s, err := ValidateStat(map[string]any{
		"player_id": "p1",
		"match_id":  "m1",
		"name":      "A. Player",
		"goals":     "",
		"assists":   "2",
	})
	require.NoError(t, err)
	require.Zero(t, s.Goals)
	require.Equal(t, 2, s.Assists)
}

func TestValidateOdds_DropsInvalidPricesKeepsRest(t *testing.T) {
	t.Parallel()

	odds, err := ValidateOdds(map[string]any{
		"home_win": 1.85,
		"draw":     "not-a-number",
		"away_win": -3.0,
		"over_under": map[string]any{
			"2.5": "1.92",
			"3.5": 0,
		},
	})
	require.NoError(t, err)
	require.InDelta(t, 1.85, odds.HomeWin, 1e-9)
	require.Zero(t, odds.Draw)
	require.Zero(t, odds.AwayWin)
	require.Equal(t, map[string]float64{"2.5": 1.92}, odds.OverUnder)
}

func TestValidateOdds_AllInvalidRejectsFragment(t *testing.T) {
	t.Parallel()

	_, err := ValidateOdds(map[string]any{"home_win": 0, "draw": -1, "away_win": "x"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ErrInvalidOdds, verr.Kind)
}

func TestValidateEvent_RequiresDescriptionAndMinute(t *testing.T) {
	t.Parallel()

	_, err := ValidateEvent(map[string]any{"minute": 10})
	require.Error(t, err)

	_, err = ValidateEvent(map[string]any{"description": "goal", "minute": -2})
	require.Error(t, err)

	ev, err := ValidateEvent(map[string]any{"description": "goal", "minute": "45", "type": "goal"})
	require.NoError(t, err)
	require.Equal(t, 45, ev.Minute)
}

func TestValidateStat_RejectsNegativeCounts(t *testing.T) {
	t.Parallel()

	_, err := ValidateStat(map[string]any{
		"player_id": "p1",
		"match_id":  "m1",
		"name":      "A. Player",
		"goals":     -1,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ErrBadType, verr.Kind)
}

func TestValidate_UnknownKind(t *testing.T) {
	t.Parallel()

	_, err := Validate(map[string]any{}, Kind("venue"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ErrUnknownKind, verr.Kind)
}

func TestValidate_IsDeterministic(t *testing.T) {
	t.Parallel()

	raw := map[string]any{"match_id": "m1", "sport": "hockey", "kickoff_at": "2026-01-02T15:04:05Z"}
	first, err := Validate(raw, KindMatch)
	require.NoError(t, err)
	second, err := Validate(raw, KindMatch)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSortEvents_StableWithinMinute(t *testing.T) {
	t.Parallel()

	events := []MatchEvent{
		{Minute: 44, Description: "second yellow"},
		{Minute: 12, Description: "goal"},
		{Minute: 44, Description: "red card"},
	}
	SortEvents(events)
	require.Equal(t, 12, events[0].Minute)
	require.Equal(t, "second yellow", events[1].Description)
	require.Equal(t, "red card", events[2].Description)
}

func TestFingerprint_EqualContentEqualDigest(t *testing.T) {
	t.Parallel()

	a := Match{MatchID: "m1", Sport: "football"}
	b := Match{MatchID: "m1", Sport: "football"}
	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)
	require.Equal(t, fpA, fpB)
	require.Len(t, fpA, 64)

	b.Sport = "tennis"
	fpC, err := Fingerprint(b)
	require.NoError(t, err)
	require.NotEqual(t, fpA, fpC)
}
