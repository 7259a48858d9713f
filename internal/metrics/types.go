package metrics

import (
	"fmt"
	"time"

	"github.com/xdung24/restload/internal/threshold"
)

// Built-in metric names.
const (
	HTTPReqs          = "http_reqs"
	HTTPReqDuration   = "http_req_duration"
	HTTPReqFailed     = "http_req_failed"
	Iterations        = "iterations"
	IterationDuration = "iteration_duration"
	DataReceived      = "data_received"
	VUs               = "vus"
)

// Kind is the type of a metric, which decides the aggregations it supports.
type Kind string

const (
	KindCounter Kind = "counter"
	KindTrend   Kind = "trend"
	KindRate    Kind = "rate"
	KindGauge   Kind = "gauge"
)

var builtinKinds = map[string]Kind{
	HTTPReqs:          KindCounter,
	HTTPReqDuration:   KindTrend,
	HTTPReqFailed:     KindRate,
	Iterations:        KindCounter,
	IterationDuration: KindTrend,
	DataReceived:      KindCounter,
	VUs:               KindGauge,
}

// summaryOrder is the order metrics appear in a summary.
var summaryOrder = []string{
	DataReceived,
	HTTPReqDuration,
	HTTPReqFailed,
	HTTPReqs,
	IterationDuration,
	Iterations,
	VUs,
}

// KindOf returns the kind of a built-in metric.
func KindOf(metric string) (Kind, bool) {
	k, ok := builtinKinds[metric]
	return k, ok
}

// isIterationMetric reports whether samples for metric come from iterations
// rather than individual requests.
func isIterationMetric(metric string) bool {
	return metric == Iterations || metric == IterationDuration
}

// CheckAggregation verifies that a threshold aggregation applies to a metric.
func CheckAggregation(metric, agg string) error {
	kind, ok := KindOf(metric)
	if !ok {
		return fmt.Errorf("unknown metric %q", metric)
	}

	switch kind {
	case KindTrend:
		if IsTrendStat(agg) {
			return nil
		}
	case KindRate:
		if agg == "rate" {
			return nil
		}
	case KindCounter:
		if agg == "count" || agg == "rate" {
			return nil
		}
	case KindGauge:
		if agg == "min" || agg == "max" {
			return nil
		}
	}
	return fmt.Errorf("aggregation %q is not supported by %s metric %s", agg, kind, metric)
}

// CheckThresholds validates every selector and aggregation against the
// built-in metrics. The vus gauge cannot be narrowed by tags.
func CheckThresholds(ths []threshold.Threshold) error {
	for _, th := range ths {
		if th.Selector.Metric == VUs && th.Selector.IsSubmetric() {
			return fmt.Errorf("threshold %s: %s does not carry tags", th.Selector, VUs)
		}
		for _, expr := range th.Expressions {
			if err := CheckAggregation(th.Selector.Metric, expr.Aggregation); err != nil {
				return fmt.Errorf("threshold %s: %w", th.Selector, err)
			}
		}
	}
	return nil
}

// Sample is a single completed HTTP request.
type Sample struct {
	Duration time.Duration
	Tags     map[string]string
	Failed   bool
	Bytes    int64
}

// Phase represents a phase of the load test.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseRampUp   Phase = "ramp-up"
	PhaseSteady   Phase = "steady"
	PhaseRampDown Phase = "ramp-down"
	PhaseDone     Phase = "done"
)

// PhaseChange records when a phase transition occurred.
type PhaseChange struct {
	Phase     Phase     `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
	Requests  int64     `json:"requests"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// Snapshot contains a point-in-time view of the request metrics.
type Snapshot struct {
	TotalRequests  int64         `json:"totalRequests"`
	FailedRequests int64         `json:"failedRequests"`
	TotalBytes     int64         `json:"totalBytes"`
	Iterations     int64         `json:"iterations"`
	Latency        LatencyStats  `json:"latency"`
	RPS            float64       `json:"rps"`
	ErrorRate      float64       `json:"errorRate"`
	ActiveVUs      int           `json:"activeVUs"`
	MaxVUs         int           `json:"maxVUs"`
	CurrentPhase   Phase         `json:"currentPhase"`
	Elapsed        time.Duration `json:"elapsed"`
	StartTime      time.Time     `json:"startTime"`
	Timestamp      time.Time     `json:"timestamp"`
}

// MetricSummary is the end-of-test view of one metric or submetric.
//
// Trend values are in milliseconds.
type MetricSummary struct {
	Name       string             `json:"name"`
	Kind       Kind               `json:"kind"`
	Values     map[string]float64 `json:"values"`
	Submetrics []MetricSummary    `json:"submetrics,omitempty"`
}
