package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quarterline/sportscrape/internal/extract"
)

const listingHTML = `
<ul data-match-list>
  <li data-match-id="m1" data-sport="football" data-competition="Premier League"
      data-country="England" data-kickoff="2026-08-26T18:00:00Z"
      data-status="upcoming" data-detail-url="https://site.test/match/m1"></li>
  <li data-match-id="m2" data-sport="football" data-status="finished"
      data-detail-url="https://site.test/match/m2"></li>
</ul>`

func TestParseListing(t *testing.T) {
	t.Parallel()

	rows, err := ParseListing([]byte(listingHTML))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "m1", rows[0]["match_id"])
	require.Equal(t, "Premier League", rows[0]["competition"])
	require.Equal(t, "https://site.test/match/m2", rows[1]["detail_url"])
}

func TestParseListing_EmptyListIsNotAnError(t *testing.T) {
	t.Parallel()

	rows, err := ParseListing([]byte(`<ul data-match-list></ul>`))
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestParseListing_MissingRootIsLayoutChange(t *testing.T) {
	t.Parallel()

	_, err := ParseListing([]byte(`<html><body><p>maintenance</p></body></html>`))
	require.ErrorIs(t, err, extract.ErrParseTargetChanged)
}

const baseHTML = `
<div data-match-header data-match-id="m1" data-sport="football"
     data-competition="Premier League" data-country="England" data-venue="Arena"
     data-status="upcoming" data-kickoff="2026-08-26T18:00:00Z"></div>
<span data-team="home" data-team-id="t1" data-country="England" data-form="WWDLW">Arsenal</span>
<span data-team="away" data-team-id="t2" data-ranking="4">Chelsea</span>`

func TestParseBase(t *testing.T) {
	t.Parallel()

	match, home, away, err := ParseBase([]byte(baseHTML))
	require.NoError(t, err)
	require.Equal(t, "m1", match["match_id"])
	require.Equal(t, "Arena", match["venue"])
	require.Equal(t, "Arsenal", home["name"])
	require.Equal(t, "WWDLW", home["form"])
	require.Equal(t, "Chelsea", away["name"])
	require.Equal(t, "4", away["ranking"])
}

func TestParseBase_MissingHeaderIsLayoutChange(t *testing.T) {
	t.Parallel()

	_, _, _, err := ParseBase([]byte(`<div class="redesigned"></div>`))
	require.ErrorIs(t, err, extract.ErrParseTargetChanged)
}

const oddsHTML = `
<div data-odds data-updated="2026-08-26T12:00:00Z">
  <span data-market="home_win" data-price="1.85"></span>
  <span data-market="draw" data-price="3.40"></span>
  <span data-market="away_win" data-price="4.10"></span>
  <span data-market="over_under" data-line="2.5" data-price="1.92"></span>
  <span data-market="over_under" data-line="3.5" data-price="2.60"></span>
</div>`

func TestParseOdds(t *testing.T) {
	t.Parallel()

	raw, err := ParseOdds([]byte(oddsHTML))
	require.NoError(t, err)
	require.Equal(t, "1.85", raw["home_win"])
	lines, ok := raw["over_under"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "1.92", lines["2.5"])
	require.Equal(t, "2026-08-26T12:00:00Z", raw["updated_at"])
}

const lineupsHTML = `
<div data-lineup="home" data-formation="4-3-3" data-coach="M. Arteta">
  <li data-player data-player-id="p1" data-position="GK" data-number="1">D. Raya</li>
  <li data-player data-player-id="p2" data-position="FW" data-number="9" data-role="substitute">G. Jesus</li>
</div>
<div data-lineup="away" data-formation="4-2-3-1">
  <li data-player data-player-id="p3">R. Sanchez</li>
</div>`

func TestParseLineups(t *testing.T) {
	t.Parallel()

	home, away, err := ParseLineups([]byte(lineupsHTML))
	require.NoError(t, err)
	require.Equal(t, "4-3-3", home.Formation)
	require.Equal(t, "M. Arteta", home.Coach)
	require.Len(t, home.Starting, 1)
	require.Len(t, home.Substitutes, 1)
	require.Equal(t, 1, home.Starting[0].Number)
	require.Equal(t, "4-2-3-1", away.Formation)
}

const eventsHTML = `
<ol data-events>
  <li data-event data-minute="45" data-type="yellow_card" data-player="B. Silva" data-side="away">Booked for dissent</li>
  <li data-event data-minute="12" data-type="goal" data-player="B. Saka" data-side="home">Right-footed shot</li>
</ol>`

func TestParseEvents(t *testing.T) {
	t.Parallel()

	rows, err := ParseEvents([]byte(eventsHTML))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "45", rows[0]["minute"])
	require.Equal(t, "Right-footed shot", rows[1]["description"])
}

const scoresHTML = `
<div data-match-header data-match-id="m2" data-sport="football" data-status="finished"></div>
<span data-score="final" data-home="2" data-away="1"></span>
<span data-score="halftime" data-home="1" data-away="1"></span>`

func TestParseScores(t *testing.T) {
	t.Parallel()

	final, half, err := ParseScores([]byte(scoresHTML))
	require.NoError(t, err)
	require.Equal(t, 2, final.Home)
	require.Equal(t, 1, final.Away)
	require.Equal(t, 1, half.Home)
}

const statsHTML = `
<div data-stats>
  <div data-team-stat data-name="shots" data-home="14" data-away="9"></div>
  <div data-team-stat data-name="corners" data-home="7" data-away="3"></div>
  <div data-player-stat data-player-id="p1" data-position="FW" data-rating="8.1"
       data-goals="2" data-assists="0" data-yellow="0" data-red="0" data-minutes="90">B. Saka</div>
</div>`

func TestParseStats(t *testing.T) {
	t.Parallel()

	teamStats, players, err := ParseStats([]byte(statsHTML), "m2")
	require.NoError(t, err)
	require.Equal(t, 14, teamStats["shots"].Home)
	require.Equal(t, 3, teamStats["corners"].Away)
	require.Len(t, players, 1)
	require.Equal(t, "m2", players[0]["match_id"])
	require.Equal(t, "2", players[0]["goals"])
}
