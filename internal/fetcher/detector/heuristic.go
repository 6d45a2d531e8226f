// Package detector decides when a probe fetch should be promoted to the
// headless renderer.
package detector

import (
	"bytes"

	"github.com/quarterline/sportscrape/internal/extract"
)

// Heuristic promotes fetches whose response looks like an empty client-side
// shell or an interstitial challenge page rather than rendered content.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a detector. threshold 0 selects the default.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var shellMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
}

var challengeMarkers = [][]byte{
	[]byte("captcha"),
	[]byte("cf-challenge"),
	[]byte("Checking your browser"),
}

// ShouldPromote reports whether the fragment warrants a headless retry.
func (h *Heuristic) ShouldPromote(frag extract.RawFragment) bool {
	if frag.UsedHeadless {
		return false
	}
	if len(frag.Body) < h.BodyLengthThreshold {
		return true
	}
	lower := bytes.ToLower(frag.Body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, bytes.ToLower(marker)) {
			return true
		}
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(frag.Body, marker) {
			return true
		}
	}
	return false
}
