package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/xdung24/restload/internal/threshold"
)

// Trend is a latency distribution backed by an HDR histogram.
//
// Values are stored in microseconds and reported in milliseconds. The
// histogram reports the upper edge of a value's bucket, so the exact extremes
// are tracked beside it and every quantile is clamped to them.
type Trend struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
	lo   int64
	hi   int64

	seenMin int64
	seenMax int64
}

func newTrend(cfg EngineConfig) *Trend {
	return &Trend{
		hist: hdrhistogram.New(cfg.HistogramMin, cfg.HistogramMax, cfg.HistogramSigFigs),
		lo:   cfg.HistogramMin,
		hi:   cfg.HistogramMax,
	}
}

// Add records a duration, clamped to the histogram range.
func (t *Trend) Add(d time.Duration) {
	v := d.Microseconds()
	if v < t.lo {
		v = t.lo
	}
	if v > t.hi {
		v = t.hi
	}

	// RecordValue is not safe for concurrent use.
	t.mu.Lock()
	if t.hist.TotalCount() == 0 || v < t.seenMin {
		t.seenMin = v
	}
	if v > t.seenMax {
		t.seenMax = v
	}
	_ = t.hist.RecordValue(v)
	t.mu.Unlock()
}

// Count returns the number of recorded values.
func (t *Trend) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hist.TotalCount()
}

// Stat resolves a trend statistic: min, max, avg, med, count or p(N).
// Durations are returned in milliseconds. ok is false for an empty trend or
// an unknown statistic.
func (t *Trend) Stat(name string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statLocked(name)
}

// Stats resolves several statistics under one lock.
func (t *Trend) Stats(names []string) map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]float64, len(names))
	for _, name := range names {
		if v, ok := t.statLocked(name); ok {
			out[name] = v
		}
	}
	return out
}

func (t *Trend) statLocked(name string) (float64, bool) {
	if t.hist.TotalCount() == 0 {
		return 0, false
	}

	switch name {
	case "count":
		return float64(t.hist.TotalCount()), true
	case "min":
		return toMillis(float64(t.seenMin)), true
	case "max":
		return toMillis(float64(t.seenMax)), true
	case "avg":
		return toMillis(t.clamp(int64(t.hist.Mean()))), true
	case "med":
		return toMillis(t.quantile(50)), true
	}

	if pct, ok := threshold.PercentileOf(name); ok {
		return toMillis(t.quantile(pct)), true
	}
	return 0, false
}

func (t *Trend) quantile(q float64) float64 {
	return t.clamp(t.hist.ValueAtQuantile(q))
}

func (t *Trend) clamp(v int64) float64 {
	if v > t.seenMax {
		v = t.seenMax
	}
	if v < t.seenMin {
		v = t.seenMin
	}
	return float64(v)
}

// Latency returns the full latency breakdown.
func (t *Trend) Latency() LatencyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.hist
	if h.TotalCount() == 0 {
		return LatencyStats{}
	}
	micros := func(v float64) time.Duration { return time.Duration(v) * time.Microsecond }
	return LatencyStats{
		Min:    micros(float64(t.seenMin)),
		Max:    micros(float64(t.seenMax)),
		Mean:   micros(t.clamp(int64(h.Mean()))),
		StdDev: micros(h.StdDev()),
		P50:    micros(t.quantile(50)),
		P90:    micros(t.quantile(90)),
		P95:    micros(t.quantile(95)),
		P99:    micros(t.quantile(99)),
		Count:  h.TotalCount(),
	}
}

func (t *Trend) reset() {
	t.mu.Lock()
	t.hist.Reset()
	t.seenMin, t.seenMax = 0, 0
	t.mu.Unlock()
}

func toMillis(micros float64) float64 {
	return micros / 1000
}

// IsTrendStat reports whether name is a statistic a Trend can produce.
func IsTrendStat(name string) bool {
	switch name {
	case "count", "min", "max", "avg", "med":
		return true
	}
	_, ok := threshold.PercentileOf(name)
	return ok
}
