// Package scenario defines the load-test scenarios run against the user API.
//
// A Scenario is a plain configuration value (ramp stages, thresholds and
// response-handling options) paired with an iteration function that
// describes the requests one virtual user issues per iteration. Scenarios
// never issue requests themselves: scheduling, HTTP transport, metrics and
// threshold evaluation are the job of the runner packages.
package scenario

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxRedirects is the redirect cap used when a scenario does not set one.
const DefaultMaxRedirects = 10

// DefaultSummaryTrendStats are the trend statistics shown in the end-of-test
// summary when a scenario does not choose its own.
var DefaultSummaryTrendStats = []string{"avg", "min", "med", "max", "p(90)", "p(95)"}

// RampStage is one step of a ramp profile. The runner moves the active VU
// count linearly from the previous stage's target to Target over Duration.
type RampStage struct {
	Duration time.Duration `json:"duration" yaml:"duration"`
	Target   int           `json:"target" yaml:"target"`
}

// Thresholds maps a metric selector such as "http_req_duration{status:200}"
// to the list of assertion expressions evaluated against it.
type Thresholds map[string][]string

// Options holds everything the runner needs to know about a scenario apart
// from the requests themselves.
type Options struct {
	// Stages is the ordered ramp profile.
	Stages []RampStage `json:"stages"`

	// Thresholds are pass/fail (or purely observational) assertions.
	Thresholds Thresholds `json:"thresholds,omitempty"`

	// MaxRedirects caps automatic redirect following. Zero disables it.
	MaxRedirects int `json:"maxRedirects"`

	// DiscardResponseBodies drains bodies instead of buffering them.
	DiscardResponseBodies bool `json:"discardResponseBodies"`

	// SummaryTrendStats selects the statistics reported for trend metrics.
	SummaryTrendStats []string `json:"summaryTrendStats,omitempty"`
}

// TotalDuration returns the sum of all stage durations.
func (o Options) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range o.Stages {
		total += s.Duration
	}
	return total
}

// PeakVUs returns the highest stage target.
func (o Options) PeakVUs() int {
	peak := 0
	for _, s := range o.Stages {
		if s.Target > peak {
			peak = s.Target
		}
	}
	return peak
}

// TrendStats returns the configured summary statistics or the defaults.
func (o Options) TrendStats() []string {
	if len(o.SummaryTrendStats) == 0 {
		return append([]string(nil), DefaultSummaryTrendStats...)
	}
	return append([]string(nil), o.SummaryTrendStats...)
}

// Validate checks the structural invariants of the options.
func (o Options) Validate() error {
	if len(o.Stages) == 0 {
		return fmt.Errorf("at least one stage is required")
	}
	for i, s := range o.Stages {
		if s.Duration < 0 {
			return fmt.Errorf("stage %d: duration cannot be negative", i+1)
		}
		if s.Target < 0 {
			return fmt.Errorf("stage %d: target cannot be negative", i+1)
		}
	}
	if o.MaxRedirects < 0 {
		return fmt.Errorf("maxRedirects cannot be negative")
	}
	return nil
}

// RequestSpec describes a single HTTP request issued during an iteration.
type RequestSpec struct {
	Name    string            `json:"name"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// IterationFunc produces the requests for one virtual-user iteration.
type IterationFunc func() []RequestSpec

// Scenario is a complete, runnable load-test definition.
type Scenario struct {
	Name        string
	Description string
	Options     Options
	Iteration   IterationFunc
}

// Validate checks that the scenario can be handed to a runner.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if s.Iteration == nil {
		return fmt.Errorf("scenario %s: iteration function is required", s.Name)
	}
	if err := s.Options.Validate(); err != nil {
		return fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return nil
}

// defaultStages is the ramp profile shared by both user scenarios:
// up to 10 VUs, up to 20 VUs, back down to zero.
func defaultStages() []RampStage {
	return []RampStage{
		{Duration: 30 * time.Second, Target: 10},
		{Duration: 30 * time.Second, Target: 20},
		{Duration: 20 * time.Second, Target: 0},
	}
}

func cloneHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of the request so callers may not mutate the
// scenario's template.
func (r RequestSpec) Clone() RequestSpec {
	out := r
	out.Headers = cloneHeaders(r.Headers)
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return out
}

func normalizeMethod(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return strings.ToUpper(m)
}
