package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xdung24/restload/internal/metrics"
	"github.com/xdung24/restload/internal/runner"
	"github.com/xdung24/restload/internal/threshold"
)

// Summary is the machine-readable form of a run. Metrics are keyed by
// metric or submetric name, mirroring k6's handleSummary data.
type Summary struct {
	Scenario    string                  `json:"scenario"`
	Description string                  `json:"description,omitempty"`
	StartTime   time.Time               `json:"startTime"`
	EndTime     time.Time               `json:"endTime"`
	DurationMs  int64                   `json:"durationMs"`
	Interrupted bool                    `json:"interrupted"`
	Passed      bool                    `json:"passed"`
	Stages      []Stage                 `json:"stages"`
	Metrics     map[string]MetricEntry  `json:"metrics"`
	Requests    map[string]RequestEntry `json:"requests,omitempty"`
	Thresholds  []threshold.Result      `json:"thresholds,omitempty"`
	Phases      []metrics.PhaseChange   `json:"phases,omitempty"`
	TimeSeries  []TimeSeriesPoint       `json:"timeSeries,omitempty"`
}

// Stage is one ramp stage.
type Stage struct {
	Duration string `json:"duration"`
	Target   int    `json:"target"`
}

// MetricEntry holds the values of one metric. Trend values are milliseconds.
type MetricEntry struct {
	Type       metrics.Kind       `json:"type"`
	Values     map[string]float64 `json:"values"`
	Thresholds map[string]bool    `json:"thresholds,omitempty"`
}

// RequestEntry is the latency breakdown of one named request, in
// milliseconds.
type RequestEntry struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Avg   float64 `json:"avg"`
	Med   float64 `json:"med"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// TimeSeriesPoint represents a single point in the time series for JSON export.
type TimeSeriesPoint struct {
	Timestamp         string  `json:"timestamp"`
	ElapsedMs         int64   `json:"elapsedMs"`
	TotalRequests     int64   `json:"totalRequests"`
	TotalFailures     int64   `json:"totalFailures"`
	IntervalRequests  int64   `json:"intervalRequests"`
	IntervalRPS       float64 `json:"intervalRPS"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`
	LatencyP50        float64 `json:"latencyP50"`
	LatencyP95        float64 `json:"latencyP95"`
	LatencyP99        float64 `json:"latencyP99"`
	ActiveVUs         int     `json:"activeVUs"`
	Phase             string  `json:"phase"`
}

// NewSummary converts a run result.
func NewSummary(r *runner.Result) (*Summary, error) {
	if r == nil {
		return nil, fmt.Errorf("result cannot be nil")
	}

	s := &Summary{
		Scenario:    r.Scenario,
		Description: r.Description,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		DurationMs:  r.Duration.Milliseconds(),
		Interrupted: r.Interrupted,
		Passed:      r.Passed,
		Metrics:     make(map[string]MetricEntry),
		Thresholds:  r.Thresholds,
		Phases:      r.Phases,
		TimeSeries:  timeSeriesPoints(r.TimeSeries),
	}

	for _, st := range r.Stages {
		s.Stages = append(s.Stages, Stage{Duration: st.Duration.String(), Target: st.Target})
	}

	add := func(ms metrics.MetricSummary) {
		entry := MetricEntry{Type: ms.Kind, Values: ms.Values}
		for _, t := range r.Thresholds {
			if t.Selector != ms.Name {
				continue
			}
			if entry.Thresholds == nil {
				entry.Thresholds = make(map[string]bool)
			}
			entry.Thresholds[t.Expression] = t.Passed
		}
		s.Metrics[ms.Name] = entry
	}
	for _, ms := range r.Summary {
		add(ms)
		for _, sub := range ms.Submetrics {
			add(sub)
		}
	}

	if len(r.RequestStats) > 0 {
		s.Requests = make(map[string]RequestEntry, len(r.RequestStats))
		for name, st := range r.RequestStats {
			s.Requests[name] = RequestEntry{
				Count: st.Count,
				Min:   millis(st.Min),
				Avg:   millis(st.Mean),
				Med:   millis(st.P50),
				P95:   millis(st.P95),
				P99:   millis(st.P99),
				Max:   millis(st.Max),
			}
		}
	}

	return s, nil
}

// JSON renders the summary of r as indented JSON.
func JSON(r *runner.Result) ([]byte, error) {
	s, err := NewSummary(r)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

// WriteJSON writes the JSON summary of r to w.
func WriteJSON(w io.Writer, r *runner.Result) error {
	data, err := JSON(r)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func timeSeriesPoints(buckets []*metrics.TimeBucket) []TimeSeriesPoint {
	points := make([]TimeSeriesPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, TimeSeriesPoint{
			Timestamp:         b.Timestamp.Format(time.RFC3339),
			ElapsedMs:         b.Elapsed.Milliseconds(),
			TotalRequests:     b.TotalRequests,
			TotalFailures:     b.TotalFailures,
			IntervalRequests:  b.IntervalRequests,
			IntervalRPS:       b.IntervalRPS,
			IntervalErrorRate: b.IntervalErrorRate,
			LatencyP50:        millis(b.LatencyP50),
			LatencyP95:        millis(b.LatencyP95),
			LatencyP99:        millis(b.LatencyP99),
			ActiveVUs:         b.ActiveVUs,
			Phase:             string(b.Phase),
		})
	}
	return points
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
