// Package threshold parses and evaluates pass/fail criteria for load tests.
//
// A threshold pairs a metric selector with one or more expressions:
//
//	http_req_duration              p(99) < 1000
//	http_req_duration{status:200}  max>=0
//	http_req_failed                rate < 0.01
//
// Trend values (durations) are compared in milliseconds.
package threshold

import (
	"fmt"
	"sort"
	"strings"
)

// Selector identifies a metric, optionally narrowed to samples carrying a
// given set of tags.
type Selector struct {
	Metric string
	Tags   map[string]string
}

// ParseSelector parses "metric" or "metric{key:value,key:value}".
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Selector{}, fmt.Errorf("empty metric selector")
	}

	open := strings.IndexByte(s, '{')
	if open == -1 {
		if strings.ContainsAny(s, "}:, ") {
			return Selector{}, fmt.Errorf("invalid metric name %q", s)
		}
		return Selector{Metric: s}, nil
	}

	if !strings.HasSuffix(s, "}") {
		return Selector{}, fmt.Errorf("selector %q: missing closing brace", s)
	}

	metric := strings.TrimSpace(s[:open])
	if metric == "" {
		return Selector{}, fmt.Errorf("selector %q: missing metric name", s)
	}

	body := strings.TrimSpace(s[open+1 : len(s)-1])
	if body == "" {
		return Selector{Metric: metric}, nil
	}

	tags := make(map[string]string)
	for _, pair := range strings.Split(body, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return Selector{}, fmt.Errorf("selector %q: tag %q must be key:value", s, strings.TrimSpace(pair))
		}
		key := strings.TrimSpace(kv[0])
		value := strings.Trim(strings.TrimSpace(kv[1]), `"'`)
		if key == "" {
			return Selector{}, fmt.Errorf("selector %q: empty tag key", s)
		}
		tags[key] = value
	}

	return Selector{Metric: metric, Tags: tags}, nil
}

// IsSubmetric reports whether the selector filters on tags.
func (s Selector) IsSubmetric() bool {
	return len(s.Tags) > 0
}

// Matches reports whether a sample with the given tags belongs to the
// selector. The metric name is not checked.
func (s Selector) Matches(tags map[string]string) bool {
	for k, v := range s.Tags {
		if tags[k] != v {
			return false
		}
	}
	return true
}

// String returns the canonical form, with tag keys sorted.
func (s Selector) String() string {
	if len(s.Tags) == 0 {
		return s.Metric
	}

	keys := make([]string, 0, len(s.Tags))
	for k := range s.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(s.Metric)
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte(':')
		sb.WriteString(s.Tags[k])
	}
	sb.WriteByte('}')
	return sb.String()
}
