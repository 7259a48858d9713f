package metrics

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/xdung24/restload/internal/threshold"
)

func reqTags(method, status string) map[string]string {
	return map[string]string{
		"scenario": "upsert-user",
		"name":     "upsert_user",
		"method":   method,
		"url":      "http://localhost:8000/ns/users/1",
		"status":   status,
	}
}

func mustSelector(t *testing.T, s string) threshold.Selector {
	t.Helper()
	sel, err := threshold.ParseSelector(s)
	if err != nil {
		t.Fatalf("ParseSelector(%q) error = %v", s, err)
	}
	return sel
}

func approx(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestNewEngine(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	snapshot := engine.Snapshot()
	if snapshot.TotalRequests != 0 {
		t.Errorf("Initial TotalRequests = %d, want 0", snapshot.TotalRequests)
	}
	if snapshot.CurrentPhase != PhaseInit {
		t.Errorf("Initial phase = %v, want %v", snapshot.CurrentPhase, PhaseInit)
	}
}

func TestEngine_RecordRequest(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.RecordRequest(Sample{Duration: 10 * time.Millisecond, Tags: reqTags("POST", "200"), Bytes: 1000})
	engine.RecordRequest(Sample{Duration: 20 * time.Millisecond, Tags: reqTags("POST", "200"), Bytes: 2000})
	engine.RecordRequest(Sample{Duration: 30 * time.Millisecond, Tags: reqTags("POST", "0"), Failed: true})

	snapshot := engine.Snapshot()
	if snapshot.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", snapshot.TotalRequests)
	}
	if snapshot.FailedRequests != 1 {
		t.Errorf("FailedRequests = %d, want 1", snapshot.FailedRequests)
	}
	if snapshot.TotalBytes != 3000 {
		t.Errorf("TotalBytes = %d, want 3000", snapshot.TotalBytes)
	}

	stats := engine.RequestStats()
	if stats["upsert_user"].Count != 3 {
		t.Errorf("RequestStats[upsert_user].Count = %d, want 3", stats["upsert_user"].Count)
	}
}

func TestTrend_Stat(t *testing.T) {
	trend := newTrend(DefaultEngineConfig())

	if _, ok := trend.Stat("avg"); ok {
		t.Error("Stat(avg) on empty trend should report no data")
	}

	for i := 1; i <= 100; i++ {
		trend.Add(time.Duration(i) * time.Millisecond)
	}

	tests := []struct {
		stat string
		want float64
		tol  float64
	}{
		{"min", 1, 0.01},
		{"max", 100, 0.1},
		{"avg", 50.5, 0.1},
		{"med", 50, 0.1},
		{"p(90)", 90, 0.1},
		{"p(99)", 99, 0.1},
		{"count", 100, 0},
	}

	for _, tt := range tests {
		got, ok := trend.Stat(tt.stat)
		if !ok {
			t.Errorf("Stat(%s) reported no data", tt.stat)
			continue
		}
		if !approx(got, tt.want, tt.tol) {
			t.Errorf("Stat(%s) = %v, want %v", tt.stat, got, tt.want)
		}
	}

	if _, ok := trend.Stat("stddev"); ok {
		t.Error("Stat(stddev) should be unsupported")
	}
}

func TestEngine_Submetrics(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	for _, s := range []string{
		"http_req_duration{status:200}",
		"http_req_duration{status:502}",
		"http_req_duration{method:POST}",
	} {
		engine.RegisterSubmetric(mustSelector(t, s))
	}

	engine.RecordRequest(Sample{Duration: 5 * time.Millisecond, Tags: reqTags("POST", "200")})
	engine.RecordRequest(Sample{Duration: 7 * time.Millisecond, Tags: reqTags("POST", "200")})
	engine.RecordRequest(Sample{Duration: 40 * time.Millisecond, Tags: reqTags("POST", "500"), Failed: true})

	count, ok := engine.Aggregate(mustSelector(t, "http_req_duration{status:200}"), "count")
	if !ok || count != 2 {
		t.Errorf("status:200 count = %v (ok=%v), want 2", count, ok)
	}

	count, ok = engine.Aggregate(mustSelector(t, "http_req_duration{method:POST}"), "count")
	if !ok || count != 3 {
		t.Errorf("method:POST count = %v (ok=%v), want 3", count, ok)
	}

	max, ok := engine.Aggregate(mustSelector(t, "http_req_duration{status:200}"), "max")
	if !ok || !approx(max, 7, 0.01) {
		t.Errorf("status:200 max = %v, want 7", max)
	}

	if _, ok := engine.Aggregate(mustSelector(t, "http_req_duration{status:502}"), "max"); ok {
		t.Error("status:502 received no samples and should report no data")
	}

	// Unregistered submetrics have no data.
	if _, ok := engine.Aggregate(mustSelector(t, "http_req_duration{status:400}"), "max"); ok {
		t.Error("unregistered submetric should report no data")
	}

	rate, ok := engine.Aggregate(threshold.Selector{Metric: HTTPReqFailed}, "rate")
	if !ok || !approx(rate, 1.0/3.0, 1e-9) {
		t.Errorf("http_req_failed rate = %v, want 1/3", rate)
	}
}

func TestEngine_RegisterSubmetric_IgnoresPlainSelectors(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.RegisterSubmetric(threshold.Selector{Metric: HTTPReqDuration})
	engine.RegisterSubmetric(mustSelector(t, "http_req_duration{status:200}"))
	engine.RegisterSubmetric(mustSelector(t, "http_req_duration{status:200}"))

	summary := engine.Summary([]string{"max"})
	for _, ms := range summary {
		if ms.Name == HTTPReqDuration && len(ms.Submetrics) != 1 {
			t.Errorf("http_req_duration submetrics = %d, want 1", len(ms.Submetrics))
		}
	}
}

func TestEngine_Iterations(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	tags := map[string]string{"scenario": "get-user"}
	engine.RecordIteration(100*time.Millisecond, tags)
	engine.RecordIteration(300*time.Millisecond, tags)

	count, ok := engine.Aggregate(threshold.Selector{Metric: Iterations}, "count")
	if !ok || count != 2 {
		t.Errorf("iterations count = %v, want 2", count)
	}

	avg, ok := engine.Aggregate(threshold.Selector{Metric: IterationDuration}, "avg")
	if !ok || !approx(avg, 200, 0.5) {
		t.Errorf("iteration_duration avg = %v, want 200", avg)
	}

	if _, ok := engine.Aggregate(threshold.Selector{Metric: HTTPReqs}, "count"); ok {
		t.Error("http_reqs should have no data when only iterations were recorded")
	}
}

func TestEngine_VUs(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.SetActiveVUs(5)
	engine.SetActiveVUs(12)
	engine.SetActiveVUs(3)

	if got := engine.ActiveVUs(); got != 3 {
		t.Errorf("ActiveVUs() = %d, want 3", got)
	}
	max, _ := engine.Aggregate(threshold.Selector{Metric: VUs}, "max")
	if max != 12 {
		t.Errorf("vus max = %v, want 12", max)
	}
}

func TestEngine_Phases(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.SetPhase(PhaseRampUp)
	engine.SetPhase(PhaseRampUp)
	engine.SetPhase(PhaseSteady)
	engine.SetPhase(PhaseRampDown)

	history := engine.PhaseHistory()
	if len(history) != 3 {
		t.Fatalf("PhaseHistory() len = %d, want 3", len(history))
	}
	if history[0].Phase != PhaseRampUp || history[2].Phase != PhaseRampDown {
		t.Errorf("PhaseHistory() = %v", history)
	}
	if engine.Phase() != PhaseRampDown {
		t.Errorf("Phase() = %v, want %v", engine.Phase(), PhaseRampDown)
	}
}

func TestEngine_SummaryOrderAndValues(t *testing.T) {
	engine := NewEngine()
	engine.RegisterSubmetric(mustSelector(t, "http_req_duration{status:200}"))
	engine.RecordRequest(Sample{Duration: 10 * time.Millisecond, Tags: reqTags("GET", "200"), Bytes: 64})
	engine.RecordIteration(11*time.Millisecond, map[string]string{"scenario": "get-user"})
	engine.Stop()

	summary := engine.Summary([]string{"avg", "p(95)", "count"})
	if len(summary) != len(summaryOrder) {
		t.Fatalf("Summary() len = %d, want %d", len(summary), len(summaryOrder))
	}
	for i, name := range summaryOrder {
		if summary[i].Name != name {
			t.Errorf("Summary()[%d].Name = %s, want %s", i, summary[i].Name, name)
		}
	}

	var duration MetricSummary
	for _, ms := range summary {
		if ms.Name == HTTPReqDuration {
			duration = ms
		}
	}
	if duration.Kind != KindTrend {
		t.Errorf("http_req_duration kind = %s, want trend", duration.Kind)
	}
	if _, ok := duration.Values["p(95)"]; !ok {
		t.Error("http_req_duration summary missing p(95)")
	}
	if _, ok := duration.Values["med"]; ok {
		t.Error("http_req_duration summary should only carry requested stats")
	}
	if len(duration.Submetrics) != 1 || duration.Submetrics[0].Name != "http_req_duration{status:200}" {
		t.Errorf("submetrics = %+v", duration.Submetrics)
	}
}

func TestEngine_StopFreezesElapsed(t *testing.T) {
	engine := NewEngine()
	engine.Stop()
	engine.Stop()

	first := engine.Elapsed()
	time.Sleep(5 * time.Millisecond)
	if engine.Elapsed() != first {
		t.Error("Elapsed() changed after Stop()")
	}
	if len(engine.TimeSeries()) == 0 {
		t.Error("Stop() should emit a final bucket")
	}
}

func TestEngine_ConcurrentRecording(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()
	engine.RegisterSubmetric(mustSelector(t, "http_req_duration{method:POST}"))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				engine.RecordRequest(Sample{Duration: time.Millisecond, Tags: reqTags("POST", "200")})
			}
		}()
	}
	wg.Wait()

	if got := engine.Snapshot().TotalRequests; got != 4000 {
		t.Errorf("TotalRequests = %d, want 4000", got)
	}
	count, _ := engine.Aggregate(mustSelector(t, "http_req_duration{method:POST}"), "count")
	if count != 4000 {
		t.Errorf("method:POST count = %v, want 4000", count)
	}
}

func TestCheckAggregation(t *testing.T) {
	tests := []struct {
		metric  string
		agg     string
		wantErr bool
	}{
		{HTTPReqDuration, "p(99)", false},
		{HTTPReqDuration, "max", false},
		{HTTPReqDuration, "rate", true},
		{HTTPReqFailed, "rate", false},
		{HTTPReqFailed, "avg", true},
		{HTTPReqs, "count", false},
		{VUs, "max", false},
		{"custom_metric", "avg", true},
	}

	for _, tt := range tests {
		err := CheckAggregation(tt.metric, tt.agg)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckAggregation(%s, %s) error = %v, wantErr %v", tt.metric, tt.agg, err, tt.wantErr)
		}
	}
}

func TestTimeBucketStore_Ring(t *testing.T) {
	store := NewTimeBucketStore(3)
	for i := 0; i < 5; i++ {
		store.RecordRequest(i%2 == 0)
		store.Emit(TimeBucket{TotalRequests: int64(i)})
	}

	buckets := store.Buckets()
	if len(buckets) != 3 {
		t.Fatalf("Buckets() len = %d, want 3", len(buckets))
	}
	for i, b := range buckets {
		if b.TotalRequests != int64(i+2) {
			t.Errorf("bucket[%d].TotalRequests = %d, want %d", i, b.TotalRequests, i+2)
		}
		if b.IntervalRequests != 1 {
			t.Errorf("bucket[%d].IntervalRequests = %d, want 1", i, b.IntervalRequests)
		}
	}
	if store.Latest().TotalRequests != 4 {
		t.Errorf("Latest().TotalRequests = %d, want 4", store.Latest().TotalRequests)
	}
}

// Latencies just under the gate sit in a histogram bucket whose upper edge is
// above 1000ms; the reported statistics must not cross it.
func TestEngine_P99GateJustBelowLimit(t *testing.T) {
	ths, err := threshold.Parse(map[string][]string{
		"http_req_duration": {"p(99) < 1000", "max < 1000"},
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	for _, d := range []time.Duration{
		999 * time.Millisecond,
		999940 * time.Microsecond,
		999990 * time.Microsecond,
	} {
		t.Run(d.String(), func(t *testing.T) {
			engine := NewEngine()
			defer engine.Stop()

			for i := 0; i < 100; i++ {
				engine.RecordRequest(Sample{Duration: d, Tags: reqTags("GET", "200")})
			}

			for _, r := range threshold.Evaluate(ths, engine) {
				if !r.Passed {
					t.Errorf("%s failed with value %v", r.Expression, r.Value)
				}
			}

			want := float64(d.Microseconds()) / 1000
			sel := mustSelector(t, "http_req_duration")
			for _, stat := range []string{"max", "p(99)", "min"} {
				got, _ := engine.Aggregate(sel, stat)
				if !approx(got, want, 0.001) {
					t.Errorf("%s = %v, want %v", stat, got, want)
				}
			}
		})
	}
}

func TestTrend_QuantilesStayWithinSeenRange(t *testing.T) {
	tr := newTrend(DefaultEngineConfig())
	tr.Add(999990 * time.Microsecond)
	tr.Add(1234567 * time.Microsecond)

	lat := tr.Latency()
	if lat.Max != 1234567*time.Microsecond {
		t.Errorf("Max = %v, want 1.234567s", lat.Max)
	}
	if lat.Min != 999990*time.Microsecond {
		t.Errorf("Min = %v, want 999.99ms", lat.Min)
	}
	if lat.P99 > lat.Max || lat.P50 < lat.Min {
		t.Errorf("quantiles outside [min, max]: %+v", lat)
	}

	tr.reset()
	if _, ok := tr.Stat("max"); ok {
		t.Error("Stat(max) on a reset trend should report no data")
	}
}
