package threshold

import (
	"fmt"
	"sort"
	"strconv"
)

// Threshold is a selector together with its expressions.
type Threshold struct {
	Selector    Selector
	Expressions []Expression
}

// Source resolves an aggregation of a (sub)metric.
//
// ok is false when the selector has not received any samples.
type Source interface {
	Aggregate(selector Selector, aggregation string) (value float64, ok bool)
}

// Result is the outcome of one expression.
type Result struct {
	Selector   string  `json:"selector"`
	Expression string  `json:"expression"`
	Value      float64 `json:"value"`
	NoData     bool    `json:"noData,omitempty"`
	Passed     bool    `json:"passed"`
	Message    string  `json:"message,omitempty"`
}

// Parse turns a selector -> expressions map into thresholds, sorted by
// selector so evaluation order is stable.
func Parse(defs map[string][]string) ([]Threshold, error) {
	keys := make([]string, 0, len(defs))
	for k := range defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Threshold, 0, len(defs))
	for _, key := range keys {
		sel, err := ParseSelector(key)
		if err != nil {
			return nil, err
		}

		th := Threshold{Selector: sel}
		for _, src := range defs[key] {
			expr, err := ParseExpression(src)
			if err != nil {
				return nil, fmt.Errorf("threshold %s: %w", key, err)
			}
			th.Expressions = append(th.Expressions, expr)
		}
		out = append(out, th)
	}

	return out, nil
}

// Evaluate checks every expression against src.
//
// An expression whose selector has no samples passes with NoData set, which
// keeps observational thresholds on rare tags from failing a run.
func Evaluate(thresholds []Threshold, src Source) []Result {
	var results []Result

	for _, th := range thresholds {
		name := th.Selector.String()
		for _, expr := range th.Expressions {
			r := Result{Selector: name, Expression: expr.Source}

			value, ok := src.Aggregate(th.Selector, expr.Aggregation)
			if !ok {
				r.NoData = true
				r.Passed = true
				results = append(results, r)
				continue
			}

			r.Value = value
			r.Passed = expr.Compare(value)
			if !r.Passed {
				r.Message = fmt.Sprintf("%s is %s, want %s %s",
					expr.Aggregation, formatFloat(value), expr.Operator, formatFloat(expr.Value))
			}
			results = append(results, r)
		}
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Selectors returns the selectors of all thresholds.
func Selectors(thresholds []Threshold) []Selector {
	out := make([]Selector, 0, len(thresholds))
	for _, th := range thresholds {
		out = append(out, th.Selector)
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
