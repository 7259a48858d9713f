// Package output renders runs on the console: a header, live progress while
// the run is going and a k6-style end-of-test summary.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/xdung24/restload/internal/runner"
	"github.com/xdung24/restload/internal/scenario"
)

// Cursor control
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"
)

const (
	ruleChar       = "━"
	boxHorizontal  = "─"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	progressFilled = "█"
	progressEmpty  = "░"

	ruleWidth = 56
	boxWidth  = 55
)

// DefaultUpdateInterval is the minimum gap between two progress lines when
// the output is not a terminal.
const DefaultUpdateInterval = 10 * time.Second

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer io.Writer

	// Quiet suppresses everything but the final verdict.
	Quiet bool

	NoColor     bool
	ForceColors bool
	ForceTTY    bool

	UpdateInterval time.Duration
}

// Console writes run output to a terminal or a plain stream.
type Console struct {
	writer         io.Writer
	scheme         *ColorScheme
	noColor        bool
	isTTY          bool
	quiet          bool
	updateInterval time.Duration

	mu          sync.Mutex
	linesOutput int
	lastUpdate  time.Time
}

// NewConsole creates a console writer. Colors are used only on a terminal
// that supports them, unless forced.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}

	isTTY := cfg.ForceTTY || isTerminal(cfg.Writer)
	useColors := !cfg.NoColor && (cfg.ForceColors || (isTTY && supportsColors()))

	scheme := NoColorScheme()
	if useColors {
		scheme = DefaultColorScheme()
		scheme.forceColor()
	}

	return &Console{
		writer:         cfg.Writer,
		scheme:         scheme,
		noColor:        !useColors,
		isTTY:          isTTY,
		quiet:          cfg.Quiet,
		updateInterval: cfg.UpdateInterval,
	}
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if f != os.Stdout && f != os.Stderr {
		return false
	}
	return checkIsTerminal(f)
}

func supportsColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// PrintHeader prints the scenario being run and its schedule.
func (c *Console) PrintHeader(sc *scenario.Scenario) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rule := c.scheme.Rule.Sprint(strings.Repeat(ruleChar, ruleWidth))
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - Running [ramping-vus]", c.scheme.Title.Sprint(sc.Name)))
	c.writeln(rule)
	if sc.Description != "" {
		c.writeln(c.scheme.Dots.Sprint(sc.Description))
	}
	c.writeln("")

	var stages []string
	for _, st := range sc.Options.Stages {
		stages = append(stages, fmt.Sprintf("%s→%d", st.Duration, st.Target))
	}
	c.writeln(fmt.Sprintf("Stages:     %s", strings.Join(stages, ", ")))
	c.writeln(fmt.Sprintf("Duration:   %s (max %d VUs)",
		c.scheme.Value.Sprint(formatDuration(sc.Options.TotalDuration())), sc.Options.PeakVUs()))
	if n := len(sc.Options.Thresholds); n > 0 {
		c.writeln(fmt.Sprintf("Thresholds: %d metric(s)", n))
	}
	c.writeln("")
}

// Update renders live progress. On a terminal the previous frame is redrawn
// in place; otherwise a single line is written at most once per
// UpdateInterval.
func (c *Console) Update(p runner.Progress) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isTTY {
		now := time.Now()
		if !c.lastUpdate.IsZero() && now.Sub(c.lastUpdate) < c.updateInterval {
			return
		}
		c.lastUpdate = now
		c.writeln(c.progressLine(p))
		return
	}

	c.clearLive()
	lines := c.renderLive(p)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

// clearLive erases the previous live frame. Callers hold c.mu.
func (c *Console) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

func (c *Console) progressLine(p runner.Progress) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %.0f%%", c.elapsed(p), p.Scenario, p.Percent)
	if ex := p.Executor; ex != nil {
		fmt.Fprintf(&sb, " | VUs: %d/%d", ex.ActiveVUs, ex.TargetVUs)
	}
	if m := p.Metrics; m != nil {
		fmt.Fprintf(&sb, " | Reqs: %d | RPS: %.1f | Errors: %d (%.1f%%) | P95: %s",
			m.TotalRequests, m.RPS, m.FailedRequests, m.ErrorRate*100, formatDurationShort(m.Latency.P95))
	}
	if p.Failing > 0 {
		fmt.Fprintf(&sb, " | failing thresholds: %d", p.Failing)
	}
	return sb.String()
}

func (c *Console) elapsed(p runner.Progress) string {
	switch {
	case p.Metrics != nil:
		return formatDuration(p.Metrics.Elapsed)
	case p.Executor != nil:
		return formatDuration(p.Executor.Elapsed)
	}
	return formatDuration(0)
}

func (c *Console) renderLive(p runner.Progress) []string {
	var lines []string

	total := time.Duration(0)
	stage := ""
	if ex := p.Executor; ex != nil {
		total = ex.TotalDuration
		if ex.TotalStages > 0 {
			stage = fmt.Sprintf(" (%d/%d)", ex.CurrentStage, ex.TotalStages)
		}
	}

	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s / %s",
		c.scheme.Success.Sprint(renderProgressBar(p.Percent/100, 40)),
		c.scheme.Title.Sprintf("%.0f%%", p.Percent),
		c.elapsed(p), formatDuration(total)))

	phase := "init"
	if p.Metrics != nil && p.Metrics.CurrentPhase != "" {
		phase = string(p.Metrics.CurrentPhase)
	}
	lines = append(lines, fmt.Sprintf("Stage:    %s", c.scheme.Phase.Sprint(phase+stage)))
	lines = append(lines, "")

	lines = append(lines, c.scheme.Dots.Sprint(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight))

	active, target := 0, 0
	if ex := p.Executor; ex != nil {
		active, target = ex.ActiveVUs, ex.TargetVUs
	}
	m := p.Metrics
	var reqs, errs int64
	var rps, errRate float64
	var p95, avg time.Duration
	if m != nil {
		reqs, errs = m.TotalRequests, m.FailedRequests
		rps, errRate = m.RPS, m.ErrorRate
		p95, avg = m.Latency.P95, m.Latency.Mean
	}

	lines = append(lines, c.boxRow(
		fmt.Sprintf("VUs:     %s / %d", c.scheme.Value.Sprint(active), target),
		fmt.Sprintf("Requests:    %s", c.scheme.Value.Sprint(formatNumber(reqs)))))

	errColor := c.scheme.Success
	if errRate > 0.01 {
		errColor = c.scheme.Warning
	}
	if errRate > 0.05 {
		errColor = c.scheme.Error
	}
	lines = append(lines, c.boxRow(
		fmt.Sprintf("RPS:     %s", c.scheme.Success.Sprintf("%.1f", rps)),
		fmt.Sprintf("Errors:      %s (%s)", errColor.Sprint(errs), errColor.Sprintf("%.1f%%", errRate*100))))

	lines = append(lines, c.boxRow(
		fmt.Sprintf("P95:     %s", c.scheme.Latency.Sprint(formatDurationShort(p95))),
		fmt.Sprintf("Avg:         %s", c.scheme.Latency.Sprint(formatDurationShort(avg)))))

	lines = append(lines, c.scheme.Dots.Sprint(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight))

	if p.Failing > 0 {
		lines = append(lines, fmt.Sprintf("%s %d threshold(s) currently failing",
			WarningIcon(c.noColor), p.Failing))
	}

	return lines
}

// boxRow formats a row inside the stats box with two columns.
func (c *Console) boxRow(left, right string) string {
	colWidth := (boxWidth - 4) / 2

	leftPadding := colWidth - visibleLen(left)
	if leftPadding < 0 {
		leftPadding = 0
	}
	rightPadding := colWidth - visibleLen(right)
	if rightPadding < 0 {
		rightPadding = 0
	}

	bar := c.scheme.Dots.Sprint(boxVertical)
	return fmt.Sprintf("%s %s%s%s %s%s %s",
		bar, left, strings.Repeat(" ", leftPadding),
		bar, right, strings.Repeat(" ", rightPadding),
		bar)
}

func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

func (c *Console) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}
