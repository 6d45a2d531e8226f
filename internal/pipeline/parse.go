package pipeline

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/quarterline/sportscrape/internal/extract"
	"github.com/quarterline/sportscrape/internal/schema"
)

// The parsers below read the site's data-attribute markup. When an expected
// root element is absent the page layout has changed and the fragment is
// rejected with ErrParseTargetChanged, which is permanent and never retried.

func document(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseListing extracts raw match summaries from a listing page.
func ParseListing(body []byte) ([]map[string]any, error) {
	doc, err := document(body)
	if err != nil {
		return nil, err
	}
	rows := doc.Find("[data-match-id]")
	if rows.Length() == 0 {
		if doc.Find("[data-match-list]").Length() == 0 {
			return nil, fmt.Errorf("listing page: no match list root: %w", extract.ErrParseTargetChanged)
		}
		return nil, nil
	}

	var matches []map[string]any
	rows.Each(func(_ int, s *goquery.Selection) {
		matches = append(matches, map[string]any{
			"match_id":    attr(s, "data-match-id"),
			"sport":       attr(s, "data-sport"),
			"competition": attr(s, "data-competition"),
			"country":     attr(s, "data-country"),
			"venue":       attr(s, "data-venue"),
			"status":      attr(s, "data-status"),
			"kickoff_at":  attr(s, "data-kickoff"),
			"detail_url":  attr(s, "data-detail-url"),
		})
	})
	return matches, nil
}

// ParseBase extracts the match header and both team blocks from a detail page.
// The raw maps are returned unvalidated so the caller can route them through
// the schema layer.
func ParseBase(body []byte) (match, home, away map[string]any, err error) {
	doc, err := document(body)
	if err != nil {
		return nil, nil, nil, err
	}
	header := doc.Find("[data-match-header]").First()
	if header.Length() == 0 {
		return nil, nil, nil, fmt.Errorf("detail page: no match header: %w", extract.ErrParseTargetChanged)
	}

	match = map[string]any{
		"match_id":    attr(header, "data-match-id"),
		"sport":       attr(header, "data-sport"),
		"competition": attr(header, "data-competition"),
		"country":     attr(header, "data-country"),
		"venue":       attr(header, "data-venue"),
		"status":      attr(header, "data-status"),
		"kickoff_at":  attr(header, "data-kickoff"),
	}
	home = parseTeam(doc.Find(`[data-team="home"]`).First())
	away = parseTeam(doc.Find(`[data-team="away"]`).First())
	return match, home, away, nil
}

func parseTeam(s *goquery.Selection) map[string]any {
	if s.Length() == 0 {
		return nil
	}
	return map[string]any{
		"name":    strings.TrimSpace(s.Text()),
		"team_id": attr(s, "data-team-id"),
		"country": attr(s, "data-country"),
		"form":    attr(s, "data-form"),
		"ranking": attr(s, "data-ranking"),
	}
}

// ParseOdds extracts market prices from an odds page into a raw fragment.
func ParseOdds(body []byte) (map[string]any, error) {
	doc, err := document(body)
	if err != nil {
		return nil, err
	}
	root := doc.Find("[data-odds]").First()
	if root.Length() == 0 {
		return nil, fmt.Errorf("odds page: no odds root: %w", extract.ErrParseTargetChanged)
	}

	raw := map[string]any{"updated_at": attr(root, "data-updated")}
	grouped := map[string]map[string]any{}
	root.Find("[data-market]").Each(func(_ int, s *goquery.Selection) {
		market := attr(s, "data-market")
		price := attr(s, "data-price")
		if market == "" || price == "" {
			return
		}
		if line := attr(s, "data-line"); line != "" {
			if grouped[market] == nil {
				grouped[market] = map[string]any{}
			}
			grouped[market][line] = price
			return
		}
		raw[market] = price
	})
	for market, lines := range grouped {
		raw[market] = lines
	}
	return raw, nil
}

// ParseLineups extracts both team sheets from a lineups page.
func ParseLineups(body []byte) (home, away *schema.Lineup, err error) {
	doc, err := document(body)
	if err != nil {
		return nil, nil, err
	}
	homeSel := doc.Find(`[data-lineup="home"]`).First()
	awaySel := doc.Find(`[data-lineup="away"]`).First()
	if homeSel.Length() == 0 && awaySel.Length() == 0 {
		return nil, nil, fmt.Errorf("lineups page: no lineup blocks: %w", extract.ErrParseTargetChanged)
	}
	return parseLineup(homeSel), parseLineup(awaySel), nil
}

func parseLineup(s *goquery.Selection) *schema.Lineup {
	if s.Length() == 0 {
		return nil
	}
	lineup := &schema.Lineup{
		Formation: attr(s, "data-formation"),
		Coach:     attr(s, "data-coach"),
	}
	s.Find("[data-player]").Each(func(_ int, p *goquery.Selection) {
		player := schema.PlayerInfo{
			PlayerID:    attr(p, "data-player-id"),
			Name:        strings.TrimSpace(p.Text()),
			Position:    attr(p, "data-position"),
			Nationality: attr(p, "data-nationality"),
		}
		if n, err := strconv.Atoi(attr(p, "data-number")); err == nil {
			player.Number = n
		}
		if attr(p, "data-role") == "substitute" {
			lineup.Substitutes = append(lineup.Substitutes, player)
		} else {
			lineup.Starting = append(lineup.Starting, player)
		}
	})
	if lineup.Formation == "" && len(lineup.Starting) == 0 && len(lineup.Substitutes) == 0 {
		return nil
	}
	return lineup
}

// ParseEvents extracts raw timeline incidents from an events page.
func ParseEvents(body []byte) ([]map[string]any, error) {
	doc, err := document(body)
	if err != nil {
		return nil, err
	}
	root := doc.Find("[data-events]").First()
	if root.Length() == 0 {
		return nil, fmt.Errorf("events page: no timeline root: %w", extract.ErrParseTargetChanged)
	}

	var events []map[string]any
	root.Find("[data-event]").Each(func(_ int, s *goquery.Selection) {
		events = append(events, map[string]any{
			"minute":      attr(s, "data-minute"),
			"type":        attr(s, "data-type"),
			"player":      attr(s, "data-player"),
			"team":        attr(s, "data-side"),
			"description": strings.TrimSpace(s.Text()),
		})
	})
	return events, nil
}

// ParseScores extracts the final and half-time scorelines from a detail page.
// Either may be absent, for example while a match is still live.
func ParseScores(body []byte) (final, halfTime *schema.Score, err error) {
	doc, err := document(body)
	if err != nil {
		return nil, nil, err
	}
	return parseScore(doc.Find(`[data-score="final"]`).First()),
		parseScore(doc.Find(`[data-score="halftime"]`).First()),
		nil
}

func parseScore(s *goquery.Selection) *schema.Score {
	if s.Length() == 0 {
		return nil
	}
	home, err1 := strconv.Atoi(attr(s, "data-home"))
	away, err2 := strconv.Atoi(attr(s, "data-away"))
	if err1 != nil || err2 != nil || home < 0 || away < 0 {
		return nil
	}
	return &schema.Score{Home: home, Away: away}
}

// ParseStats extracts team statistics and raw per-player stat rows.
func ParseStats(body []byte, matchID string) (schema.TeamStats, []map[string]any, error) {
	doc, err := document(body)
	if err != nil {
		return nil, nil, err
	}
	root := doc.Find("[data-stats]").First()
	if root.Length() == 0 {
		return nil, nil, fmt.Errorf("stats page: no stats root: %w", extract.ErrParseTargetChanged)
	}

	teamStats := schema.TeamStats{}
	root.Find("[data-team-stat]").Each(func(_ int, s *goquery.Selection) {
		name := attr(s, "data-name")
		home, err1 := strconv.Atoi(attr(s, "data-home"))
		away, err2 := strconv.Atoi(attr(s, "data-away"))
		if name == "" || err1 != nil || err2 != nil {
			return
		}
		teamStats[name] = schema.Score{Home: home, Away: away}
	})

	var playerRows []map[string]any
	root.Find("[data-player-stat]").Each(func(_ int, s *goquery.Selection) {
		playerRows = append(playerRows, map[string]any{
			"player_id":      attr(s, "data-player-id"),
			"match_id":       matchID,
			"name":           strings.TrimSpace(s.Text()),
			"position":       attr(s, "data-position"),
			"rating":         attr(s, "data-rating"),
			"goals":          attr(s, "data-goals"),
			"assists":        attr(s, "data-assists"),
			"yellow_cards":   attr(s, "data-yellow"),
			"red_cards":      attr(s, "data-red"),
			"minutes_played": attr(s, "data-minutes"),
		})
	})
	if len(teamStats) == 0 {
		teamStats = nil
	}
	return teamStats, playerRows, nil
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}
