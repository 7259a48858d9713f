package threshold

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidExpression is wrapped by every expression parse error.
var ErrInvalidExpression = errors.New("invalid threshold expression")

// Expression is a single comparison such as "p(99) < 1000".
type Expression struct {
	// Source is the expression as written.
	Source string

	// Aggregation is the canonical statistic name: avg, min, max, med,
	// count, rate or p(N).
	Aggregation string

	// Operator is one of <, <=, >, >=, ==, !=.
	Operator string

	// Value is the right-hand side. Durations are converted to milliseconds.
	Value float64
}

var expressionRe = regexp.MustCompile(`^(avg|min|max|med|count|rate|p\(\s*[0-9.]+\s*\)|p[0-9]+(?:\.[0-9]+)?)\s*(<=|>=|==|!=|<|>|=)\s*(-?[0-9]*\.?[0-9]+)\s*([a-zµ]*)$`)

// ParseExpression parses a threshold expression.
//
// Accepted aggregations are avg, min, max, med, count, rate and p(N); the
// shorthand p95 is read as p(95). The value may carry a duration unit
// (ms, s, us, m, h), in which case it is converted to milliseconds.
func ParseExpression(src string) (Expression, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return Expression{}, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	m := expressionRe.FindStringSubmatch(trimmed)
	if m == nil {
		return Expression{}, fmt.Errorf("%w: %q", ErrInvalidExpression, src)
	}

	agg, err := canonicalAggregation(m[1])
	if err != nil {
		return Expression{}, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, src, err)
	}

	op := m[2]
	if op == "=" {
		op = "=="
	}

	value, err := parseValue(m[3], m[4])
	if err != nil {
		return Expression{}, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, src, err)
	}

	return Expression{
		Source:      trimmed,
		Aggregation: agg,
		Operator:    op,
		Value:       value,
	}, nil
}

// canonicalAggregation normalises "p95" and "p( 95 )" to "p(95)" and checks
// the percentile range.
func canonicalAggregation(agg string) (string, error) {
	if !strings.HasPrefix(agg, "p") {
		return agg, nil
	}

	raw := strings.TrimPrefix(agg, "p")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")
	raw = strings.TrimSpace(raw)

	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", fmt.Errorf("invalid percentile %q", agg)
	}
	if pct < 0 || pct > 100 {
		return "", fmt.Errorf("percentile %v out of range [0, 100]", pct)
	}

	return "p(" + strconv.FormatFloat(pct, 'f', -1, 64) + ")", nil
}

func parseValue(number, unit string) (float64, error) {
	if unit == "" {
		return strconv.ParseFloat(number, 64)
	}

	d, err := time.ParseDuration(number + unit)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %s%s", number, unit)
	}
	return float64(d) / float64(time.Millisecond), nil
}

// Percentile returns N for a p(N) aggregation.
func (e Expression) Percentile() (float64, bool) {
	return PercentileOf(e.Aggregation)
}

// PercentileOf parses N out of an aggregation name of the form p(N).
func PercentileOf(agg string) (float64, bool) {
	if !strings.HasPrefix(agg, "p(") || !strings.HasSuffix(agg, ")") {
		return 0, false
	}
	pct, err := strconv.ParseFloat(agg[2:len(agg)-1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

// Compare applies the expression to an observed value.
func (e Expression) Compare(actual float64) bool {
	switch e.Operator {
	case "<":
		return actual < e.Value
	case "<=":
		return actual <= e.Value
	case ">":
		return actual > e.Value
	case ">=":
		return actual >= e.Value
	case "==":
		return actual == e.Value
	case "!=":
		return actual != e.Value
	default:
		return false
	}
}

func (e Expression) String() string {
	return e.Source
}
