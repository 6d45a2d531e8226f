package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind names the record shape a raw fragment is expected to satisfy.
type Kind string

// Supported fragment kinds.
const (
	KindMatch Kind = "match"
	KindTeam  Kind = "team"
	KindOdds  Kind = "odds"
	KindEvent Kind = "event"
	KindStat  Kind = "stat"
)

// ErrorKind classifies a validation failure.
type ErrorKind string

// Validation failure classes.
const (
	ErrMissingField ErrorKind = "missing_field"
	ErrBadType      ErrorKind = "bad_type"
	ErrInvalidOdds  ErrorKind = "invalid_odds"
	ErrUnknownKind  ErrorKind = "unknown_kind"
)

// ValidationError is returned as a value, never raised, so callers can decide
// between retry, degrade, and skip.
type ValidationError struct {
	Kind  ErrorKind
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validate: %s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("validate: %s: field %q: %s", e.Kind, e.Field, e.Msg)
}

func missing(field string) error {
	return &ValidationError{Kind: ErrMissingField, Field: field, Msg: "required field is absent or empty"}
}

func badType(field, msg string) error {
	return &ValidationError{Kind: ErrBadType, Field: field, Msg: msg}
}

// Validate normalizes a raw fragment into the typed record for the expected
// kind. It is a pure transformation: identical input always yields identical
// output, and all failures come back as *ValidationError values.
func Validate(raw map[string]any, kind Kind) (any, error) {
	switch kind {
	case KindMatch:
		return ValidateMatch(raw)
	case KindTeam:
		return ValidateTeam(raw)
	case KindOdds:
		return ValidateOdds(raw)
	case KindEvent:
		return ValidateEvent(raw)
	case KindStat:
		return ValidateStat(raw)
	default:
		return nil, &ValidationError{Kind: ErrUnknownKind, Msg: string(kind)}
	}
}

// ValidateMatch enforces the mandatory identity fields for a match fragment.
func ValidateMatch(raw map[string]any) (Match, error) {
	id := str(raw, "match_id")
	if id == "" {
		return Match{}, missing("match_id")
	}
	sport := str(raw, "sport")
	if sport == "" {
		return Match{}, missing("sport")
	}
	m := Match{
		MatchID:     id,
		Sport:       sport,
		Competition: str(raw, "competition"),
		Country:     str(raw, "country"),
		Venue:       str(raw, "venue"),
		Status:      matchStatus(str(raw, "status")),
		DetailURL:   str(raw, "detail_url"),
	}
	if ts, ok, err := timeField(raw, "kickoff_at"); err != nil {
		return Match{}, err
	} else if ok {
		m.KickoffAt = ts
	}
	return m, nil
}

// ValidateTeam requires a name; everything else is descriptive.
func ValidateTeam(raw map[string]any) (TeamInfo, error) {
	name := str(raw, "name")
	if name == "" {
		return TeamInfo{}, missing("name")
	}
	t := TeamInfo{
		TeamID:  str(raw, "team_id"),
		Name:    name,
		Country: str(raw, "country"),
		Form:    str(raw, "form"),
	}
	if n, ok, err := intField(raw, "ranking"); err == nil && ok && n > 0 {
		t.Ranking = n
	}
	return t, nil
}

// ValidateOdds coerces the market prices. A zero, negative, or non-numeric
// price drops that single market; if no market survives the whole fragment is
// rejected with ErrInvalidOdds, since odds are the fragment's sole purpose.
func ValidateOdds(raw map[string]any) (OddsData, error) {
	o := OddsData{}
	kept := 0
	if v, ok := oddsPrice(raw["home_win"]); ok {
		o.HomeWin = v
		kept++
	}
	if v, ok := oddsPrice(raw["draw"]); ok {
		o.Draw = v
		kept++
	}
	if v, ok := oddsPrice(raw["away_win"]); ok {
		o.AwayWin = v
		kept++
	}
	for field, dst := range map[string]*map[string]float64{
		"over_under":       &o.OverUnder,
		"both_teams_score": &o.BothTeamsScore,
		"handicap":         &o.Handicap,
	} {
		if m := oddsMap(raw[field]); len(m) > 0 {
			*dst = m
			kept += len(m)
		}
	}
	if kept == 0 {
		return OddsData{}, &ValidationError{Kind: ErrInvalidOdds, Msg: "no valid odds price in fragment"}
	}
	if ts, ok, err := timeField(raw, "updated_at"); err == nil && ok {
		o.UpdatedAt = ts
	}
	return o, nil
}

// ValidateEvent requires a description and a non-negative minute.
func ValidateEvent(raw map[string]any) (MatchEvent, error) {
	desc := str(raw, "description")
	if desc == "" {
		return MatchEvent{}, missing("description")
	}
	minute, ok, err := intField(raw, "minute")
	if err != nil {
		return MatchEvent{}, err
	}
	if !ok || minute < 0 {
		return MatchEvent{}, badType("minute", "minute must be a non-negative integer")
	}
	return MatchEvent{
		Minute:      minute,
		Type:        str(raw, "type"),
		Player:      str(raw, "player"),
		Team:        str(raw, "team"),
		Description: desc,
	}, nil
}

// ValidateStat requires the (player_id, match_id) natural key and coerces the
// counting stats, rejecting negatives.
func ValidateStat(raw map[string]any) (PlayerStat, error) {
	playerID := str(raw, "player_id")
	if playerID == "" {
		return PlayerStat{}, missing("player_id")
	}
	matchID := str(raw, "match_id")
	if matchID == "" {
		return PlayerStat{}, missing("match_id")
	}
	name := str(raw, "name")
	if name == "" {
		return PlayerStat{}, missing("name")
	}
	s := PlayerStat{
		PlayerID: playerID,
		MatchID:  matchID,
		Name:     name,
		Position: str(raw, "position"),
	}
	for field, dst := range map[string]*int{
		"goals":          &s.Goals,
		"assists":        &s.Assists,
		"yellow_cards":   &s.YellowCards,
		"red_cards":      &s.RedCards,
		"minutes_played": &s.MinutesPlayed,
	} {
		n, ok, err := intField(raw, field)
		if err != nil {
			return PlayerStat{}, err
		}
		if ok {
			if n < 0 {
				return PlayerStat{}, badType(field, "stat counts must be non-negative")
			}
			*dst = n
		}
	}
	if v, ok := numeric(raw["rating"]); ok && v >= 0 && v <= 10 {
		s.Rating = v
	}
	return s, nil
}

func matchStatus(s string) MatchStatus {
	switch MatchStatus(strings.ToLower(s)) {
	case StatusLive:
		return StatusLive
	case StatusFinished:
		return StatusFinished
	default:
		return StatusUpcoming
	}
}

func str(raw map[string]any, field string) string {
	v, ok := raw[field]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// numeric coerces JSON-ish scalar values into a finite float64.
func numeric(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// oddsPrice accepts strictly positive finite prices.
func oddsPrice(v any) (float64, bool) {
	f, ok := numeric(v)
	if !ok || f <= 0 {
		return 0, false
	}
	return f, true
}

func oddsMap(v any) map[string]float64 {
	src, ok := v.(map[string]any)
	if !ok {
		if typed, ok := v.(map[string]float64); ok {
			out := make(map[string]float64, len(typed))
			for k, f := range typed {
				if f > 0 && !math.IsNaN(f) && !math.IsInf(f, 0) {
					out[k] = f
				}
			}
			if len(out) == 0 {
				return nil
			}
			return out
		}
		return nil
	}
	out := make(map[string]float64, len(src))
	for k, raw := range src {
		if f, ok := oddsPrice(raw); ok {
			out[k] = f
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// intField treats a missing value and an empty string the same way: the field
// is absent, not malformed. Source pages frequently carry empty attributes for
// data they do not have.
func intField(raw map[string]any, field string) (int, bool, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return 0, false, nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return 0, false, nil
	}
	f, numOK := numeric(v)
	if !numOK {
		return 0, false, badType(field, "expected an integer")
	}
	return int(f), true, nil
}

// timeField follows the same absent-vs-malformed rule as intField.
func timeField(raw map[string]any, field string) (time.Time, bool, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return time.Time{}, false, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true, nil
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return time.Time{}, false, nil
		}
		parsed, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return time.Time{}, false, badType(field, "expected an RFC3339 timestamp")
		}
		return parsed.UTC(), true, nil
	default:
		return time.Time{}, false, badType(field, "expected an RFC3339 timestamp")
	}
}

// SortEvents orders a timeline by minute, preserving the original order of
// incidents within the same minute.
func SortEvents(events []MatchEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Minute < events[j].Minute
	})
}
