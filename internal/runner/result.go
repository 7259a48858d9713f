package runner

import (
	"time"

	"github.com/xdung24/restload/internal/metrics"
	"github.com/xdung24/restload/internal/scenario"
	"github.com/xdung24/restload/internal/threshold"
)

// Result is the complete outcome of a run.
type Result struct {
	Scenario    string               `json:"scenario"`
	Description string               `json:"description,omitempty"`
	StartTime   time.Time            `json:"startTime"`
	EndTime     time.Time            `json:"endTime"`
	Duration    time.Duration        `json:"duration"`
	Interrupted bool                 `json:"interrupted"`
	Stages      []scenario.RampStage `json:"stages"`

	// TrendStats are the statistics reported for trend metrics in Summary.
	TrendStats []string `json:"trendStats"`

	Metrics      *metrics.Snapshot               `json:"metrics"`
	Summary      []metrics.MetricSummary         `json:"summary"`
	RequestStats map[string]metrics.LatencyStats `json:"requestStats,omitempty"`
	TimeSeries   []*metrics.TimeBucket           `json:"timeSeries,omitempty"`
	Phases       []metrics.PhaseChange           `json:"phases,omitempty"`

	Thresholds []threshold.Result `json:"thresholds,omitempty"`
	Passed     bool               `json:"passed"`
}

// Metric returns the summary of a metric or submetric by name.
func (r *Result) Metric(name string) (metrics.MetricSummary, bool) {
	for _, ms := range r.Summary {
		if ms.Name == name {
			return ms, true
		}
		for _, sub := range ms.Submetrics {
			if sub.Name == name {
				return sub, true
			}
		}
	}
	return metrics.MetricSummary{}, false
}

// FailedThresholds returns the threshold results that did not pass.
func (r *Result) FailedThresholds() []threshold.Result {
	var out []threshold.Result
	for _, t := range r.Thresholds {
		if !t.Passed {
			out = append(out, t)
		}
	}
	return out
}
