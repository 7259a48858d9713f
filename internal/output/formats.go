package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xdung24/restload/internal/config"
	"github.com/xdung24/restload/internal/scenario"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat validates a format name given on the command line.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// FormatScenario renders a resolved scenario and the requests of one
// iteration. JSON and YAML use the scenario file layout, so the output can be
// saved and run with --file.
func FormatScenario(sc *scenario.Scenario, format OutputFormat, noColor bool) (string, error) {
	switch format {
	case FormatJSON:
		data, err := config.Marshal(config.FromScenario(sc), "scenario.json")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatYAML:
		data, err := config.Marshal(config.FromScenario(sc), "scenario.yaml")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatText, "":
		return formatScenarioText(sc, noColor), nil
	}
	return "", fmt.Errorf("unknown output format %q", format)
}

func formatScenarioText(sc *scenario.Scenario, noColor bool) string {
	scheme := DefaultColorScheme()
	if noColor {
		scheme = NoColorScheme()
	}

	var buf strings.Builder
	opts := sc.Options

	buf.WriteString(scheme.Title.Sprint(sc.Name))
	if sc.Description != "" {
		buf.WriteString(" - " + sc.Description)
	}
	buf.WriteString("\n")

	stages := make([]string, 0, len(opts.Stages))
	for _, st := range opts.Stages {
		stages = append(stages, fmt.Sprintf("%s→%d", st.Duration, st.Target))
	}
	buf.WriteString(fmt.Sprintf("  Stages:        %s (total %s, peak %d VUs)\n",
		strings.Join(stages, ", "), formatDuration(opts.TotalDuration()), opts.PeakVUs()))
	buf.WriteString(fmt.Sprintf("  Max redirects: %d\n", opts.MaxRedirects))
	buf.WriteString(fmt.Sprintf("  Discard body:  %t\n", opts.DiscardResponseBodies))
	buf.WriteString(fmt.Sprintf("  Trend stats:   %s\n", strings.Join(opts.TrendStats(), " ")))

	if len(opts.Thresholds) > 0 {
		buf.WriteString("  Thresholds:\n")
		for _, sel := range sortedKeys(opts.Thresholds) {
			buf.WriteString(fmt.Sprintf("    %s: %s\n", sel, strings.Join(opts.Thresholds[sel], ", ")))
		}
	}

	for _, req := range sc.Iteration() {
		buf.WriteString(formatRequest(req, scheme))
	}

	return buf.String()
}

// formatRequest formats a scenario request for display
func formatRequest(req scenario.RequestSpec, scheme *ColorScheme) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("▶ REQUEST %s: %s %s\n", req.Name, scheme.Method.Sprint(req.Method), req.URL))

	if len(req.Headers) > 0 {
		buf.WriteString("  Headers:\n")
		for _, key := range sortedKeys(req.Headers) {
			buf.WriteString(fmt.Sprintf("    %s: %s\n", scheme.Warning.Sprint(key), req.Headers[key]))
		}
	}

	if len(req.Body) > 0 {
		buf.WriteString("  Body: ")
		buf.WriteString(formatJSONString(string(req.Body)))
		buf.WriteString("\n")
	}

	return buf.String()
}

// formatJSONString attempts to pretty-print a JSON string
func formatJSONString(s string) string {
	var prettyJSON bytes.Buffer
	err := json.Indent(&prettyJSON, []byte(s), "  ", "  ")
	if err != nil {
		return s
	}
	return prettyJSON.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
