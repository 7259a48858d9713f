// Package metrics collects samples from a load test run and aggregates them
// into counters, rates and HDR-histogram backed trends.
//
// Every request sample carries tags (scenario, name, method, url, status).
// Submetrics registered from threshold selectors receive each sample whose
// tags match, so "http_req_duration{status:200}" has its own distribution.
package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xdung24/restload/internal/threshold"
)

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// BucketInterval is the interval for time-series buckets (default: 1s)
	BucketInterval time.Duration

	// MaxBuckets is the maximum number of buckets to retain (default: 3600)
	MaxBuckets int

	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BucketInterval:   time.Second,
		MaxBuckets:       3600,
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}

// series holds the aggregates of one metric family for one tag filter.
type series struct {
	trend  *Trend
	count  atomic.Int64
	failed atomic.Int64
	bytes  atomic.Int64
}

func newSeries(cfg EngineConfig) *series {
	return &series{trend: newTrend(cfg)}
}

type submetric struct {
	selector threshold.Selector
	series   *series
}

// Engine collects and aggregates load test metrics.
//
// Engine is safe for concurrent use. Counters are atomics, trends are
// mutex-guarded and the bucket emitter runs in its own goroutine.
type Engine struct {
	config EngineConfig

	requests   *series
	iterations *series

	submetricsMu sync.RWMutex
	submetrics   map[string]*submetric

	byNameMu sync.Mutex
	byName   map[string]*Trend

	activeVUs atomic.Int32
	maxVUs    atomic.Int32

	bucketStore *TimeBucketStore

	mu           sync.RWMutex
	phase        Phase
	phaseHistory []PhaseChange
	startTime    time.Time
	stopTime     time.Time

	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup
	stopOnce      sync.Once
}

// NewEngine creates a metrics engine with the default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a metrics engine and starts its bucket emitter.
// Call Stop when the run is over.
func NewEngineWithConfig(cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.BucketInterval <= 0 {
		cfg.BucketInterval = def.BucketInterval
	}
	if cfg.HistogramMin <= 0 {
		cfg.HistogramMin = def.HistogramMin
	}
	if cfg.HistogramMax <= cfg.HistogramMin {
		cfg.HistogramMax = def.HistogramMax
	}
	if cfg.HistogramSigFigs <= 0 {
		cfg.HistogramSigFigs = def.HistogramSigFigs
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		config:        cfg,
		requests:      newSeries(cfg),
		iterations:    newSeries(cfg),
		submetrics:    make(map[string]*submetric),
		byName:        make(map[string]*Trend),
		bucketStore:   NewTimeBucketStore(cfg.MaxBuckets),
		phase:         PhaseInit,
		startTime:     time.Now(),
		emitterCancel: cancel,
	}

	e.emitterWg.Add(1)
	go e.runEmitter(ctx)

	return e
}

// RegisterSubmetric adds a tag-filtered view of a metric. Selectors without
// tags are ignored since the base metric already covers them.
func (e *Engine) RegisterSubmetric(sel threshold.Selector) {
	if !sel.IsSubmetric() {
		return
	}

	key := sel.String()

	e.submetricsMu.Lock()
	defer e.submetricsMu.Unlock()

	if _, ok := e.submetrics[key]; ok {
		return
	}
	e.submetrics[key] = &submetric{selector: sel, series: newSeries(e.config)}
}

// RecordRequest records one completed HTTP request.
func (e *Engine) RecordRequest(s Sample) {
	e.requests.add(s)
	e.bucketStore.RecordRequest(s.Failed)

	if name := s.Tags["name"]; name != "" {
		e.nameTrend(name).Add(s.Duration)
	}

	e.submetricsMu.RLock()
	for _, sm := range e.submetrics {
		if isIterationMetric(sm.selector.Metric) || sm.selector.Metric == VUs {
			continue
		}
		if sm.selector.Matches(s.Tags) {
			sm.series.add(s)
		}
	}
	e.submetricsMu.RUnlock()
}

// RecordIteration records one completed VU iteration.
func (e *Engine) RecordIteration(d time.Duration, tags map[string]string) {
	s := Sample{Duration: d, Tags: tags}
	e.iterations.add(s)

	e.submetricsMu.RLock()
	for _, sm := range e.submetrics {
		if isIterationMetric(sm.selector.Metric) && sm.selector.Matches(tags) {
			sm.series.add(s)
		}
	}
	e.submetricsMu.RUnlock()
}

func (s *series) add(sample Sample) {
	s.trend.Add(sample.Duration)
	s.count.Add(1)
	s.bytes.Add(sample.Bytes)
	if sample.Failed {
		s.failed.Add(1)
	}
}

func (e *Engine) nameTrend(name string) *Trend {
	e.byNameMu.Lock()
	defer e.byNameMu.Unlock()

	t, ok := e.byName[name]
	if !ok {
		t = newTrend(e.config)
		e.byName[name] = t
	}
	return t
}

// SetActiveVUs updates the active VU count.
func (e *Engine) SetActiveVUs(count int) {
	e.activeVUs.Store(int32(count))
	for {
		peak := e.maxVUs.Load()
		if int32(count) <= peak || e.maxVUs.CompareAndSwap(peak, int32(count)) {
			return
		}
	}
}

// ActiveVUs returns the current active VU count.
func (e *Engine) ActiveVUs() int {
	return int(e.activeVUs.Load())
}

// SetPhase records a phase transition.
func (e *Engine) SetPhase(phase Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == phase {
		return
	}
	e.phase = phase
	e.phaseHistory = append(e.phaseHistory, PhaseChange{
		Phase:     phase,
		Timestamp: time.Now(),
		Requests:  e.requests.count.Load(),
	})
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}

// PhaseHistory returns the phase transitions so far.
func (e *Engine) PhaseHistory() []PhaseChange {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]PhaseChange, len(e.phaseHistory))
	copy(out, e.phaseHistory)
	return out
}

// Elapsed returns the time since the engine started, frozen at Stop.
func (e *Engine) Elapsed() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.stopTime.IsZero() {
		return e.stopTime.Sub(e.startTime)
	}
	return time.Since(e.startTime)
}

// Aggregate implements threshold.Source.
func (e *Engine) Aggregate(sel threshold.Selector, agg string) (float64, bool) {
	if sel.Metric == VUs {
		return e.gauge(agg)
	}

	s := e.seriesFor(sel)
	if s == nil {
		return 0, false
	}
	return e.aggregate(sel.Metric, s, agg)
}

func (e *Engine) seriesFor(sel threshold.Selector) *series {
	if sel.IsSubmetric() {
		e.submetricsMu.RLock()
		defer e.submetricsMu.RUnlock()
		if sm, ok := e.submetrics[sel.String()]; ok {
			return sm.series
		}
		return nil
	}

	if isIterationMetric(sel.Metric) {
		return e.iterations
	}
	if _, ok := KindOf(sel.Metric); ok {
		return e.requests
	}
	return nil
}

func (e *Engine) aggregate(metric string, s *series, agg string) (float64, bool) {
	count := s.count.Load()
	if count == 0 {
		return 0, false
	}

	switch metric {
	case HTTPReqDuration, IterationDuration:
		return s.trend.Stat(agg)
	case HTTPReqFailed:
		if agg != "rate" {
			return 0, false
		}
		return float64(s.failed.Load()) / float64(count), true
	case HTTPReqs, Iterations:
		return e.counter(float64(count), agg)
	case DataReceived:
		return e.counter(float64(s.bytes.Load()), agg)
	}
	return 0, false
}

func (e *Engine) counter(total float64, agg string) (float64, bool) {
	switch agg {
	case "count":
		return total, true
	case "rate":
		secs := e.Elapsed().Seconds()
		if secs <= 0 {
			return 0, false
		}
		return total / secs, true
	}
	return 0, false
}

func (e *Engine) gauge(agg string) (float64, bool) {
	switch agg {
	case "max":
		return float64(e.maxVUs.Load()), true
	case "min":
		return 0, true
	}
	return 0, false
}

// Snapshot returns a point-in-time view of the request metrics.
func (e *Engine) Snapshot() *Snapshot {
	elapsed := e.Elapsed()
	total := e.requests.count.Load()
	failed := e.requests.failed.Load()

	rps := 0.0
	if elapsed > 0 {
		rps = float64(total) / elapsed.Seconds()
	}
	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return &Snapshot{
		TotalRequests:  total,
		FailedRequests: failed,
		TotalBytes:     e.requests.bytes.Load(),
		Iterations:     e.iterations.count.Load(),
		Latency:        e.requests.trend.Latency(),
		RPS:            rps,
		ErrorRate:      errorRate,
		ActiveVUs:      e.ActiveVUs(),
		MaxVUs:         int(e.maxVUs.Load()),
		CurrentPhase:   e.Phase(),
		Elapsed:        elapsed,
		StartTime:      e.startTime,
		Timestamp:      time.Now(),
	}
}

// Summary returns every built-in metric with its submetrics nested under it.
// trendStats selects the statistics reported for trends.
func (e *Engine) Summary(trendStats []string) []MetricSummary {
	e.submetricsMu.RLock()
	children := make(map[string][]*submetric)
	for _, sm := range e.submetrics {
		children[sm.selector.Metric] = append(children[sm.selector.Metric], sm)
	}
	e.submetricsMu.RUnlock()

	var out []MetricSummary
	for _, name := range summaryOrder {
		var ms MetricSummary
		if name == VUs {
			ms = MetricSummary{Name: VUs, Kind: KindGauge, Values: map[string]float64{
				"value": float64(e.ActiveVUs()),
				"min":   0,
				"max":   float64(e.maxVUs.Load()),
			}}
		} else {
			base := e.requests
			if isIterationMetric(name) {
				base = e.iterations
			}
			ms = e.summarize(name, name, base, trendStats)
		}

		subs := children[name]
		sort.Slice(subs, func(i, j int) bool {
			return subs[i].selector.String() < subs[j].selector.String()
		})
		for _, sm := range subs {
			ms.Submetrics = append(ms.Submetrics,
				e.summarize(sm.selector.String(), name, sm.series, trendStats))
		}

		out = append(out, ms)
	}
	return out
}

func (e *Engine) summarize(label, metric string, s *series, trendStats []string) MetricSummary {
	kind := builtinKinds[metric]
	ms := MetricSummary{Name: label, Kind: kind, Values: map[string]float64{}}

	switch kind {
	case KindTrend:
		ms.Values = s.trend.Stats(trendStats)
	case KindRate:
		count := s.count.Load()
		failed := s.failed.Load()
		ms.Values["failed"] = float64(failed)
		ms.Values["total"] = float64(count)
		if count > 0 {
			ms.Values["rate"] = float64(failed) / float64(count)
		}
	case KindCounter:
		for _, agg := range []string{"count", "rate"} {
			if v, ok := e.aggregate(metric, s, agg); ok {
				ms.Values[agg] = v
			}
		}
	}
	return ms
}

// RequestStats returns latency statistics per request name.
func (e *Engine) RequestStats() map[string]LatencyStats {
	e.byNameMu.Lock()
	defer e.byNameMu.Unlock()

	out := make(map[string]LatencyStats, len(e.byName))
	for name, t := range e.byName {
		out[name] = t.Latency()
	}
	return out
}

// TimeSeries returns the emitted time buckets.
func (e *Engine) TimeSeries() []*TimeBucket {
	return e.bucketStore.Buckets()
}

// SteadyStateRPS returns the average RPS over steady-phase buckets.
func (e *Engine) SteadyStateRPS() float64 {
	rps, _ := e.bucketStore.SteadyStateRPS()
	return rps
}

func (e *Engine) runEmitter(ctx context.Context) {
	defer e.emitterWg.Done()

	ticker := time.NewTicker(e.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.emitBucket()
		}
	}
}

func (e *Engine) emitBucket() {
	lat := e.requests.trend.Latency()
	e.bucketStore.Emit(TimeBucket{
		Elapsed:       e.Elapsed(),
		TotalRequests: e.requests.count.Load(),
		TotalFailures: e.requests.failed.Load(),
		LatencyP50:    lat.P50,
		LatencyP95:    lat.P95,
		LatencyP99:    lat.P99,
		ActiveVUs:     e.ActiveVUs(),
		Phase:         e.Phase(),
	})
}

// Stop halts the emitter, emits a final bucket and freezes Elapsed.
// It is safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.emitterCancel()
		e.emitterWg.Wait()
		e.emitBucket()

		e.mu.Lock()
		e.stopTime = time.Now()
		e.mu.Unlock()
	})
}
