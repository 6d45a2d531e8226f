package pipeline

import (
	"github.com/quarterline/sportscrape/internal/extract"
	"github.com/quarterline/sportscrape/internal/schema"
)

// Options selects which optional sections a run extracts per match.
type Options struct {
	IncludeOdds    bool
	IncludeLineups bool
	IncludeEvents  bool
	IncludeStats   bool
	IncludeWeather bool
}

// Requirement is one resolved sub-fetch for a match. Optional requirements
// degrade the record on permanent failure; the mandatory base fails it.
type Requirement struct {
	Kind     extract.Kind
	Optional bool
}

// outdoorSports lists the sports for which weather lookup is meaningful.
var outdoorSports = map[string]bool{
	"football": true,
	"baseball": true,
	"tennis":   true,
}

// WeatherRelevant reports whether a sport is played outdoors.
func WeatherRelevant(sport string) bool {
	return outdoorSports[sport]
}

// ResolveRequirements turns the include flags and the match status into an
// explicit fetch plan. The base fetch is always first and never optional.
// Odds and lineups only exist before kickoff; events and stats only after the
// final whistle. Weather is resolved by the external collaborator, not a site
// fetch, so it never appears here.
func ResolveRequirements(opts Options, status schema.MatchStatus) []Requirement {
	reqs := []Requirement{{Kind: extract.KindBase}}

	switch status {
	case schema.StatusFinished:
		if opts.IncludeEvents {
			reqs = append(reqs, Requirement{Kind: extract.KindEvents, Optional: true})
		}
		if opts.IncludeStats {
			reqs = append(reqs, Requirement{Kind: extract.KindStats, Optional: true})
		}
		if opts.IncludeLineups {
			reqs = append(reqs, Requirement{Kind: extract.KindLineups, Optional: true})
		}
	default:
		if opts.IncludeOdds {
			reqs = append(reqs, Requirement{Kind: extract.KindOdds, Optional: true})
		}
		if opts.IncludeLineups {
			reqs = append(reqs, Requirement{Kind: extract.KindLineups, Optional: true})
		}
	}
	return reqs
}
