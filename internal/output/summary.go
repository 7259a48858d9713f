package output

import (
	"fmt"
	"strings"

	"github.com/xdung24/restload/internal/metrics"
	"github.com/xdung24/restload/internal/runner"
	"github.com/xdung24/restload/internal/threshold"
)

const nameWidth = 32

// PrintSummary prints the end-of-test summary: thresholds, then every metric
// with its submetrics indented below it.
func (c *Console) PrintSummary(r *runner.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quiet {
		if r.Passed {
			c.writeln(c.scheme.Success.Sprint("PASSED"))
		} else {
			c.writeln(c.scheme.Error.Sprint("FAILED"))
		}
		return
	}

	if c.isTTY {
		c.clearLive()
	}

	status, statusColor := "Completed ✓", c.scheme.Success
	switch {
	case !r.Passed:
		status, statusColor = "Failed ✗", c.scheme.Error
	case r.Interrupted:
		status, statusColor = "Interrupted", c.scheme.Warning
	}

	rule := c.scheme.Rule.Sprint(strings.Repeat(ruleChar, ruleWidth))
	c.writeln("")
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - %s", c.scheme.Title.Sprint(r.Scenario), statusColor.Sprint(status)))
	c.writeln(rule)
	c.writeln("")

	if len(r.Thresholds) > 0 {
		c.writeln(c.scheme.Title.Sprint("  THRESHOLDS"))
		c.writeln("")
		c.writeThresholds(r.Thresholds)
	}

	c.writeln(c.scheme.Title.Sprint("  TOTAL RESULTS"))
	c.writeln("")
	for _, ms := range r.Summary {
		if !hasData(ms) {
			continue
		}
		c.writeMetric(ms, "    ", ms.Name, r.TrendStats)
		for _, sub := range ms.Submetrics {
			c.writeMetric(sub, "      ", submetricLabel(ms.Name, sub.Name), r.TrendStats)
		}
	}
	c.writeln("")

	if m := r.Metrics; m != nil {
		line := fmt.Sprintf("  running (%s), %d/%d VUs, %s complete iterations",
			formatDuration(r.Duration), m.ActiveVUs, m.MaxVUs, formatNumber(m.Iterations))
		if r.Interrupted {
			line += fmt.Sprintf(" %s interrupted", WarningIcon(c.noColor))
		}
		c.writeln(line)
		c.writeln("")
	}
}

func (c *Console) writeThresholds(results []threshold.Result) {
	last := ""
	for _, t := range results {
		if t.Selector != last {
			if last != "" {
				c.writeln("")
			}
			c.writeln("    " + c.scheme.Metric.Sprint(t.Selector))
			last = t.Selector
		}

		icon := SuccessIcon(c.noColor)
		if !t.Passed {
			icon = ErrorIcon(c.noColor)
		}

		detail := c.scheme.Dots.Sprint("no data")
		if !t.NoData {
			detail = thresholdValue(t)
		}
		c.writeln(fmt.Sprintf("    %s '%s' %s", icon, t.Expression, detail))
	}
	c.writeln("")
}

// thresholdValue renders the observed value of a threshold in the unit of
// its metric, e.g. p(99)=1.2s or rate=0.50%.
func thresholdValue(t threshold.Result) string {
	expr, err := threshold.ParseExpression(t.Expression)
	if err != nil {
		return trimFloat(t.Value, 4)
	}
	sel, err := threshold.ParseSelector(t.Selector)
	if err != nil {
		return trimFloat(t.Value, 4)
	}

	kind, _ := metrics.KindOf(sel.Metric)
	agg := expr.Aggregation
	switch {
	case kind == metrics.KindTrend && agg != "count":
		return fmt.Sprintf("%s=%s", agg, formatMillis(t.Value))
	case kind == metrics.KindRate:
		return fmt.Sprintf("%s=%s%%", agg, trimFloat(t.Value*100, 2))
	default:
		return fmt.Sprintf("%s=%s", agg, trimFloat(t.Value, 2))
	}
}

func (c *Console) writeMetric(ms metrics.MetricSummary, indent, label string, trendStats []string) {
	dots := nameWidth - len(indent) - visibleLen(label)
	if dots < 3 {
		dots = 3
	}
	name := indent + c.scheme.Metric.Sprint(label) + c.scheme.Dots.Sprint(strings.Repeat(".", dots)) + ":"

	if !hasData(ms) {
		c.writeln(name + " " + c.scheme.Dots.Sprint("no data"))
		return
	}
	c.writeln(name + " " + c.metricValues(ms, trendStats))
}

func (c *Console) metricValues(ms metrics.MetricSummary, trendStats []string) string {
	v := ms.Values
	switch ms.Kind {
	case metrics.KindTrend:
		parts := make([]string, 0, len(trendStats))
		for _, stat := range trendStats {
			val, ok := v[stat]
			if !ok {
				continue
			}
			if stat == "count" {
				parts = append(parts, fmt.Sprintf("%s=%s", stat, c.scheme.Value.Sprint(formatNumber(int64(val)))))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s", stat, c.scheme.Value.Sprint(formatMillis(val))))
		}
		return strings.Join(parts, " ")

	case metrics.KindRate:
		rateColor := c.scheme.Success
		if v["rate"] > 0 {
			rateColor = c.scheme.Error
		}
		return fmt.Sprintf("%s  %s out of %s",
			rateColor.Sprintf("%s%%", trimFloat(v["rate"]*100, 2)),
			formatNumber(int64(v["failed"])), formatNumber(int64(v["total"])))

	case metrics.KindCounter:
		if ms.Name == metrics.DataReceived {
			return fmt.Sprintf("%-8s %s/s", c.scheme.Value.Sprint(formatBytes(v["count"])), formatBytes(v["rate"]))
		}
		return fmt.Sprintf("%-8s %s/s", c.scheme.Value.Sprint(formatNumber(int64(v["count"]))), trimFloat(v["rate"], 2))

	case metrics.KindGauge:
		return fmt.Sprintf("%-8s min=%s max=%s",
			c.scheme.Value.Sprint(trimFloat(v["value"], 0)), trimFloat(v["min"], 0), trimFloat(v["max"], 0))
	}
	return ""
}

func hasData(ms metrics.MetricSummary) bool {
	switch ms.Kind {
	case metrics.KindGauge:
		return true
	case metrics.KindRate:
		return ms.Values["total"] > 0
	}
	return len(ms.Values) > 0
}

// submetricLabel turns "http_req_duration{status:200}" into "{ status:200 }".
func submetricLabel(parent, name string) string {
	tags := strings.TrimPrefix(name, parent)
	tags = strings.TrimSuffix(strings.TrimPrefix(tags, "{"), "}")
	return "{ " + strings.ReplaceAll(tags, ",", ", ") + " }"
}
