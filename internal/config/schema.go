// Package config loads scenario definitions from YAML or JSON files.
package config

import (
	"encoding/json"
	"time"
)

// File is the root of a scenario file.
//
// Example YAML:
//
//	name: upsert-user
//	target:
//	  baseUrl: http://localhost:8000
//	  userId: 1
//	options:
//	  stages:
//	    - duration: 30s
//	      target: 10
//	  maxRedirects: 1
//	  thresholds:
//	    "http_req_duration{method:POST}": ["max>=0"]
//	requests:
//	  - name: upsert_user
//	    method: POST
//	    url: "{{baseUrl}}/ns/users/{{userId}}"
//	    headers:
//	      Authorization: "Bearer {{token}}"
//	    body:
//	      firstName: jack
type File struct {
	// Name of the scenario (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the scenario (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Target fills the {{baseUrl}}, {{userId}} and {{token}} placeholders
	Target TargetConfig `json:"target,omitempty" yaml:"target,omitempty"`

	// Settings tune the HTTP client and shutdown
	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Options are the runner options
	Options OptionsConfig `json:"options" yaml:"options"`

	// Requests issued, in order, on every iteration
	Requests []RequestConfig `json:"requests" yaml:"requests"`
}

// TargetConfig identifies the API under test.
type TargetConfig struct {
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	UserID  int    `json:"userId,omitempty" yaml:"userId,omitempty"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Settings contains HTTP client and execution settings.
type Settings struct {
	// Timeout is the per-request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// GracefulStop bounds how long VUs may finish their last iteration
	GracefulStop Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// OptionsConfig mirrors scenario.Options with string durations.
type OptionsConfig struct {
	Stages                []StageConfig       `json:"stages" yaml:"stages"`
	Thresholds            map[string][]string `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	MaxRedirects          *int                `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	DiscardResponseBodies bool                `json:"discardResponseBodies,omitempty" yaml:"discardResponseBodies,omitempty"`
	SummaryTrendStats     []string            `json:"summaryTrendStats,omitempty" yaml:"summaryTrendStats,omitempty"`
}

// StageConfig is one ramp stage.
type StageConfig struct {
	// Duration of this stage (e.g., "30s", "2m", or bare seconds "30")
	Duration string `json:"duration" yaml:"duration"`

	// Target VU count at the end of the stage
	Target int `json:"target" yaml:"target"`
}

// RequestConfig defines a single HTTP request.
type RequestConfig struct {
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body is sent verbatim when it is a string and JSON-encoded otherwise
	Body interface{} `json:"body,omitempty" yaml:"body,omitempty"`

	// ordered is the compact JSON of an object or array body in file order,
	// set when the request was decoded from a file.
	ordered []byte
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" {
		s = ""
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
