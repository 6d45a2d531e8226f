// Package progress defines the milestone events emitted while a run executes
// and the hub that buffers and fans them out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageRunDone      Stage = "RUN_DONE"
	StageRunAborted   Stage = "RUN_ABORTED"
	StageMatchStart   Stage = "MATCH_START"
	StageMatchSettled Stage = "MATCH_SETTLED"
	StageFetchDone    Stage = "FETCH_DONE"
)

// Event captures a single milestone of run progress.
type Event struct {
	// RunID identifies the run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Sport scopes match and fetch events.
	Sport string
	// MatchID scopes match events.
	MatchID string
	// State carries the terminal state for MATCH_SETTLED events.
	State string
	// Outcome carries the limiter outcome for FETCH_DONE events.
	Outcome string
	// Dur captures latency for fetches and settled matches.
	Dur time.Duration
	// Note lets emitters attach low-volume context such as a failure reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunAborted:
	case StageMatchStart:
		if e.MatchID == "" {
			return errors.New("match start requires a match id")
		}
	case StageMatchSettled:
		if e.MatchID == "" {
			return errors.New("match settled requires a match id")
		}
		if e.State == "" {
			return errors.New("match settled requires a state")
		}
	case StageFetchDone:
		if e.Outcome == "" {
			return errors.New("fetch done requires an outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
