package runner

import (
	"sort"
	"time"
)

// SportBreakdown summarizes one sport's matches within a run.
type SportBreakdown struct {
	Listed     int `json:"listed"`
	Complete   int `json:"complete"`
	Degraded   int `json:"degraded"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
}

// RunReport is the final accounting for one run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	TotalListed int `json:"total_listed"`
	Attempted   int `json:"attempted"`
	Complete    int `json:"complete"`
	Degraded    int `json:"degraded"`
	Failed      int `json:"failed"`
	Duplicates  int `json:"duplicates"`
	Emitted     int `json:"emitted"`

	BySport        map[string]*SportBreakdown `json:"by_sport"`
	FailureReasons map[string]int             `json:"failure_reasons,omitempty"`

	FetchAttempts    int           `json:"fetch_attempts"`
	FetchesSucceeded int           `json:"fetches_succeeded"`
	FetchesFailed    int           `json:"fetches_failed"`
	AvgFetchDuration time.Duration `json:"avg_fetch_duration"`
	DedupAnomalies   int64         `json:"dedup_anomalies"`
	EventsDropped    int64         `json:"progress_events_dropped"`

	Aborted     bool   `json:"aborted"`
	AbortReason string `json:"abort_reason,omitempty"`
}

func newReport(runID string, startedAt time.Time) RunReport {
	return RunReport{
		RunID:          runID,
		StartedAt:      startedAt,
		BySport:        make(map[string]*SportBreakdown),
		FailureReasons: make(map[string]int),
	}
}

func (r *RunReport) sport(name string) *SportBreakdown {
	b, ok := r.BySport[name]
	if !ok {
		b = &SportBreakdown{}
		r.BySport[name] = b
	}
	return b
}

// ErrorRate is the share of attempted matches that failed or degraded.
func (r *RunReport) ErrorRate() float64 {
	if r.Attempted == 0 {
		return 0
	}
	return float64(r.Failed+r.Degraded) / float64(r.Attempted)
}

// TopFailureReasons returns the failure labels ordered by frequency.
func (r *RunReport) TopFailureReasons() []string {
	reasons := make([]string, 0, len(r.FailureReasons))
	for reason := range r.FailureReasons {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if r.FailureReasons[reasons[i]] != r.FailureReasons[reasons[j]] {
			return r.FailureReasons[reasons[i]] > r.FailureReasons[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})
	return reasons
}
