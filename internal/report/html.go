package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xdung24/restload/internal/metrics"
	"github.com/xdung24/restload/internal/runner"
)

// reportData contains all data needed to render the HTML report.
type reportData struct {
	*runner.Result
	Rows           []metricRow
	Requests       []requestRow
	TimeSeriesJSON template.JS
}

type metricRow struct {
	Name      string
	Submetric bool
	Values    string
}

type requestRow struct {
	Name  string
	Stats metrics.LatencyStats
}

var reportTemplate = template.Must(template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate))

// HTML renders r as a standalone page.
func HTML(r *runner.Result) (string, error) {
	if r == nil {
		return "", fmt.Errorf("result cannot be nil")
	}

	series, err := json.Marshal(timeSeriesPoints(r.TimeSeries))
	if err != nil {
		return "", fmt.Errorf("failed to convert time series: %w", err)
	}

	data := reportData{
		Result:         r,
		Rows:           metricRows(r),
		Requests:       requestRows(r.RequestStats),
		TimeSeriesJSON: template.JS(series),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func metricRows(r *runner.Result) []metricRow {
	var rows []metricRow
	for _, ms := range r.Summary {
		rows = append(rows, metricRow{Name: ms.Name, Values: describe(ms, r.TrendStats)})
		for _, sub := range ms.Submetrics {
			rows = append(rows, metricRow{
				Name:      strings.TrimPrefix(sub.Name, ms.Name),
				Submetric: true,
				Values:    describe(sub, r.TrendStats),
			})
		}
	}
	return rows
}

// describe renders the values of one metric on a single line.
func describe(ms metrics.MetricSummary, trendStats []string) string {
	v := ms.Values
	switch ms.Kind {
	case metrics.KindTrend:
		var parts []string
		for _, stat := range trendStats {
			val, ok := v[stat]
			if !ok {
				continue
			}
			if stat == "count" {
				parts = append(parts, fmt.Sprintf("count=%d", int64(val)))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s", stat, formatMillis(val)))
		}
		if len(parts) == 0 {
			return "no data"
		}
		return strings.Join(parts, " ")
	case metrics.KindRate:
		if v["total"] == 0 {
			return "no data"
		}
		return fmt.Sprintf("%.2f%% (%d of %d)", v["rate"]*100, int64(v["failed"]), int64(v["total"]))
	case metrics.KindCounter:
		if ms.Name == metrics.DataReceived {
			return fmt.Sprintf("%s (%s/s)", formatBytes(int64(v["count"])), formatBytes(int64(v["rate"])))
		}
		return fmt.Sprintf("%d (%.2f/s)", int64(v["count"]), v["rate"])
	case metrics.KindGauge:
		return fmt.Sprintf("%d (min %d, max %d)", int64(v["value"]), int64(v["min"]), int64(v["max"]))
	}
	return ""
}

func requestRows(stats map[string]metrics.LatencyStats) []requestRow {
	rows := make([]requestRow, 0, len(stats))
	for name, st := range stats {
		rows = append(rows, requestRow{Name: name, Stats: st})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

// templateFuncs returns the template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": formatDuration,
		"formatLatency":  formatLatency,
		"formatNumber":   formatNumber,
		"formatBytes":    formatBytes,
		"percent":        func(f float64) string { return fmt.Sprintf("%.2f%%", f*100) },
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}

// formatLatency formats a latency duration in a human-readable way.
func formatLatency(d time.Duration) string {
	return formatMillis(millis(d))
}

func formatMillis(ms float64) string {
	switch {
	case ms == 0:
		return "0"
	case ms < 1:
		return fmt.Sprintf("%.0fµs", ms*1000)
	case ms < 10:
		return fmt.Sprintf("%.2fms", ms)
	case ms < 1000:
		return fmt.Sprintf("%.1fms", ms)
	default:
		return fmt.Sprintf("%.2fs", ms/1000)
	}
}

// formatNumber formats a large number with commas.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := strconv.FormatInt(n, 10)
	var sb strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
