package threshold

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		input   string
		metric  string
		tags    map[string]string
		canon   string
		wantErr bool
	}{
		{input: "http_req_duration", metric: "http_req_duration", canon: "http_req_duration"},
		{input: "http_req_duration{status:200}", metric: "http_req_duration", tags: map[string]string{"status": "200"}, canon: "http_req_duration{status:200}"},
		{input: "http_req_duration{ method : POST }", metric: "http_req_duration", tags: map[string]string{"method": "POST"}, canon: "http_req_duration{method:POST}"},
		{input: "http_req_duration{status:200,method:GET}", metric: "http_req_duration", tags: map[string]string{"status": "200", "method": "GET"}, canon: "http_req_duration{method:GET,status:200}"},
		{input: "http_req_duration{}", metric: "http_req_duration", canon: "http_req_duration"},
		{input: "", wantErr: true},
		{input: "{status:200}", wantErr: true},
		{input: "http_req_duration{status}", wantErr: true},
		{input: "http_req_duration{status:200", wantErr: true},
		{input: "http req", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sel, err := ParseSelector(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.metric, sel.Metric)
			assert.Equal(t, len(tt.tags), len(sel.Tags))
			for k, v := range tt.tags {
				assert.Equal(t, v, sel.Tags[k])
			}
			assert.Equal(t, tt.canon, sel.String())
		})
	}
}

func TestSelector_Matches(t *testing.T) {
	sel, err := ParseSelector("http_req_duration{status:200}")
	require.NoError(t, err)

	assert.True(t, sel.Matches(map[string]string{"status": "200", "method": "GET"}))
	assert.False(t, sel.Matches(map[string]string{"status": "500"}))
	assert.False(t, sel.Matches(map[string]string{"method": "GET"}))

	all := Selector{Metric: "http_req_duration"}
	assert.True(t, all.Matches(map[string]string{"status": "0"}))
	assert.False(t, all.IsSubmetric())
}

func TestParseExpression(t *testing.T) {
	tests := []struct {
		input string
		agg   string
		op    string
		value float64
	}{
		{"p(99) < 1000", "p(99)", "<", 1000},
		{"p(99)<1000", "p(99)", "<", 1000},
		{"max>=0", "max", ">=", 0},
		{"p95 < 500ms", "p(95)", "<", 500},
		{"avg < 1s", "avg", "<", 1000},
		{"p(99.9) <= 2500", "p(99.9)", "<=", 2500},
		{"rate < 0.01", "rate", "<", 0.01},
		{"count > 100", "count", ">", 100},
		{"med == 5", "med", "==", 5},
		{"min = 5", "min", "==", 5},
		{"min != -1", "min", "!=", -1},
		{"p( 90 ) > 10us", "p(90)", ">", 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := ParseExpression(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.agg, expr.Aggregation)
			assert.Equal(t, tt.op, expr.Operator)
			assert.InDelta(t, tt.value, expr.Value, 1e-9)
		})
	}
}

func TestParseExpression_Invalid(t *testing.T) {
	for _, input := range []string{
		"",
		"p(99)",
		"p99 ~ 10",
		"stddev < 5",
		"p(101) < 5",
		"avg < fast",
		"avg < 10parsecs",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseExpression(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidExpression))
		})
	}
}

func TestGatingThreshold_P99(t *testing.T) {
	expr, err := ParseExpression("p(99) < 1000")
	require.NoError(t, err)

	for _, v := range []float64{0, 1, 250.5, 999, 999.999} {
		assert.True(t, expr.Compare(v), "p99=%v should pass", v)
	}
	for _, v := range []float64{1000, 1000.001, 5000} {
		assert.False(t, expr.Compare(v), "p99=%v should fail", v)
	}
}

func TestObservationalThreshold_NeverFails(t *testing.T) {
	expr, err := ParseExpression("max>=0")
	require.NoError(t, err)

	for _, v := range []float64{0, 0.001, 1, 1000, 3.6e6} {
		assert.True(t, expr.Compare(v), "max=%v", v)
	}
}

type fakeSource map[string]map[string]float64

func (f fakeSource) Aggregate(sel Selector, agg string) (float64, bool) {
	stats, ok := f[sel.String()]
	if !ok {
		return 0, false
	}
	v, ok := stats[agg]
	return v, ok
}

func TestEvaluate(t *testing.T) {
	ths, err := Parse(map[string][]string{
		"http_req_duration":             {"p(99) < 1000", "avg < 200"},
		"http_req_duration{status:502}": {"max>=0"},
	})
	require.NoError(t, err)
	require.Len(t, ths, 2)
	assert.Equal(t, "http_req_duration", ths[0].Selector.String())

	src := fakeSource{
		"http_req_duration": {"p(99)": 1200, "avg": 150},
	}

	results := Evaluate(ths, src)
	require.Len(t, results, 3)

	assert.False(t, results[0].Passed)
	assert.Equal(t, 1200.0, results[0].Value)
	assert.Contains(t, results[0].Message, "p(99) is 1200")

	assert.True(t, results[1].Passed)

	assert.True(t, results[2].Passed)
	assert.True(t, results[2].NoData)

	assert.False(t, AllPassed(results))
	assert.True(t, AllPassed(results[1:]))
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(map[string][]string{"http_req_duration": {"p(99) <"}})
	assert.Error(t, err)

	_, err = Parse(map[string][]string{"http_req_duration{status": {"max>=0"}})
	assert.Error(t, err)
}

func TestPercentileOf(t *testing.T) {
	pct, ok := PercentileOf("p(99.9)")
	assert.True(t, ok)
	assert.Equal(t, 99.9, pct)

	_, ok = PercentileOf("avg")
	assert.False(t, ok)
}
