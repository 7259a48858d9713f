package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Title     *color.Color
	Method    *color.Color
	Rule      *color.Color
	Metric    *color.Color
	Dots      *color.Color
	Value     *color.Color
	Latency   *color.Color
	Phase     *color.Color
	Success   *color.Color
	Warning   *color.Color
	Error     *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:     color.New(color.Bold),
		Method:    color.New(color.FgBlue, color.Bold),
		Rule:      color.New(color.FgCyan),
		Metric:    color.New(color.FgWhite),
		Dots:      color.New(color.Faint),
		Value:     color.New(color.FgCyan),
		Latency:   color.New(color.FgBlue),
		Phase:     color.New(color.FgMagenta),
		Success:   color.New(color.FgGreen),
		Warning:   color.New(color.FgYellow),
		Error:     color.New(color.FgRed),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()

	for _, c := range scheme.all() {
		c.DisableColor()
	}

	return scheme
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{
		s.Title, s.Method, s.Rule, s.Metric, s.Dots, s.Value, s.Latency,
		s.Phase, s.Success, s.Warning, s.Error, s.Highlight,
	}
}

// forceColor enables every color regardless of the terminal check done by
// the color package.
func (s *ColorScheme) forceColor() {
	for _, c := range s.all() {
		c.EnableColor()
	}
}

// SuccessIcon returns a checkmark symbol with appropriate color
func SuccessIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return color.New(color.FgGreen).Sprint("✓")
}

// ErrorIcon returns an X symbol with appropriate color
func ErrorIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return color.New(color.FgRed).Sprint("✗")
}

// InfoIcon returns an info symbol with appropriate color
func InfoIcon(noColor bool) string {
	if noColor {
		return "ℹ"
	}
	return color.New(color.FgBlue).Sprint("ℹ")
}

// WarningIcon returns a warning symbol with appropriate color
func WarningIcon(noColor bool) string {
	if noColor {
		return "⚠"
	}
	return color.New(color.FgYellow).Sprint("⚠")
}
