// Package schema defines the canonical record shapes produced by a run and
// the validation layer that turns raw extracted fragments into them.
package schema

import "time"

// MatchStatus represents the lifecycle state of a match as observed on site.
type MatchStatus string

// Match status values. Transitions are observed, never driven, by the scraper.
const (
	StatusUpcoming MatchStatus = "upcoming"
	StatusLive     MatchStatus = "live"
	StatusFinished MatchStatus = "finished"
)

// Match carries the identity and scheduling data for one fixture.
type Match struct {
	MatchID     string      `json:"match_id"`
	Sport       string      `json:"sport"`
	Competition string      `json:"competition,omitempty"`
	Country     string      `json:"country,omitempty"`
	Venue       string      `json:"venue,omitempty"`
	Status      MatchStatus `json:"status"`
	KickoffAt   time.Time   `json:"kickoff_at"`
	DetailURL   string      `json:"detail_url,omitempty"`
}

// TeamInfo describes one side of a match. Each output record carries its own
// denormalized copy even when the same real-world team recurs across matches.
type TeamInfo struct {
	TeamID  string `json:"team_id,omitempty"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Form    string `json:"form,omitempty"`
	Ranking int    `json:"ranking,omitempty"`
}

// PlayerInfo describes a player appearing in a lineup.
type PlayerInfo struct {
	PlayerID    string `json:"player_id,omitempty"`
	Name        string `json:"name"`
	Position    string `json:"position,omitempty"`
	Number      int    `json:"number,omitempty"`
	Nationality string `json:"nationality,omitempty"`
}

// Lineup holds a team sheet for one side.
type Lineup struct {
	Formation   string       `json:"formation,omitempty"`
	Starting    []PlayerInfo `json:"starting,omitempty"`
	Substitutes []PlayerInfo `json:"substitutes,omitempty"`
	Coach       string       `json:"coach,omitempty"`
}

// OddsData is a point-in-time odds snapshot. The last successful fetch wins;
// snapshots are never merged across fetches.
type OddsData struct {
	HomeWin        float64            `json:"home_win,omitempty"`
	Draw           float64            `json:"draw,omitempty"`
	AwayWin        float64            `json:"away_win,omitempty"`
	OverUnder      map[string]float64 `json:"over_under,omitempty"`
	BothTeamsScore map[string]float64 `json:"both_teams_score,omitempty"`
	Handicap       map[string]float64 `json:"handicap,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// WeatherInfo is supplied by the external weather collaborator. Absence is
// never an error.
type WeatherInfo struct {
	TemperatureC  float64 `json:"temperature_c,omitempty"`
	Humidity      float64 `json:"humidity,omitempty"`
	WindSpeedKmh  float64 `json:"wind_speed_kmh,omitempty"`
	Precipitation float64 `json:"precipitation_mm,omitempty"`
	Conditions    string  `json:"conditions,omitempty"`
}

// Score is a full or half-time scoreline.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// MatchEvent is one timeline incident, ordered by minute within a match.
// Events are append-only during post-match extraction and immutable after.
type MatchEvent struct {
	Minute      int    `json:"minute"`
	Type        string `json:"type,omitempty"`
	Player      string `json:"player,omitempty"`
	Team        string `json:"team,omitempty"`
	Description string `json:"description"`
}

// PlayerStat is keyed by (player_id, match_id); duplicate rows for the same
// pair are a deduplication violation.
type PlayerStat struct {
	PlayerID      string  `json:"player_id"`
	MatchID       string  `json:"match_id"`
	Name          string  `json:"name"`
	Position      string  `json:"position,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
	Goals         int     `json:"goals"`
	Assists       int     `json:"assists"`
	YellowCards   int     `json:"yellow_cards"`
	RedCards      int     `json:"red_cards"`
	MinutesPlayed int     `json:"minutes_played,omitempty"`
}

// TeamStats maps a statistic name to home/away values.
type TeamStats map[string]Score

// RecordState marks how completely a record was assembled.
type RecordState string

// Record states carried on emitted records.
const (
	RecordComplete RecordState = "complete"
	RecordDegraded RecordState = "degraded"
)

// ExtractionRecord is the root output unit for one match. Optional sections
// are nil when their sub-fetch was not requested or permanently failed; the
// AbsentFields list names the requested sections that failed.
type ExtractionRecord struct {
	Match        Match        `json:"match"`
	HomeTeam     TeamInfo     `json:"home_team"`
	AwayTeam     TeamInfo     `json:"away_team"`
	Odds         *OddsData    `json:"odds,omitempty"`
	Weather      *WeatherInfo `json:"weather,omitempty"`
	HomeLineup   *Lineup      `json:"home_lineup,omitempty"`
	AwayLineup   *Lineup      `json:"away_lineup,omitempty"`
	FinalScore   *Score       `json:"final_score,omitempty"`
	HalfTime     *Score       `json:"half_time_score,omitempty"`
	Events       []MatchEvent `json:"events,omitempty"`
	TeamStats    TeamStats    `json:"team_stats,omitempty"`
	PlayerStats  []PlayerStat `json:"player_stats,omitempty"`
	State        RecordState  `json:"state"`
	AbsentFields []string     `json:"absent_fields,omitempty"`
	ExtractedAt  time.Time    `json:"extracted_at"`
	Source       string       `json:"source"`
}
