package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimeBucket is the state of the run at the end of one emit interval.
type TimeBucket struct {
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed"`

	TotalRequests int64 `json:"totalRequests"`
	TotalFailures int64 `json:"totalFailures"`

	IntervalRequests  int64   `json:"intervalRequests"`
	IntervalRPS       float64 `json:"intervalRps"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`

	LatencyP50 time.Duration `json:"latencyP50"`
	LatencyP95 time.Duration `json:"latencyP95"`
	LatencyP99 time.Duration `json:"latencyP99"`

	ActiveVUs int   `json:"activeVUs"`
	Phase     Phase `json:"phase"`
}

// TimeBucketStore keeps the most recent buckets in a ring buffer.
//
// Requests are accumulated with atomics between emits; the ring itself is
// guarded by mu.
type TimeBucketStore struct {
	mu       sync.RWMutex
	buckets  []*TimeBucket
	head     int
	count    int
	lastEmit time.Time

	intervalRequests atomic.Int64
	intervalFailures atomic.Int64
}

// NewTimeBucketStore creates a store retaining at most maxBuckets buckets.
func NewTimeBucketStore(maxBuckets int) *TimeBucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 3600
	}
	return &TimeBucketStore{
		buckets:  make([]*TimeBucket, maxBuckets),
		lastEmit: time.Now(),
	}
}

// RecordRequest counts a request towards the current interval.
func (s *TimeBucketStore) RecordRequest(failed bool) {
	s.intervalRequests.Add(1)
	if failed {
		s.intervalFailures.Add(1)
	}
}

// Emit closes the current interval. The caller fills the cumulative fields
// of b; Emit sets the interval fields and the timestamp.
func (s *TimeBucketStore) Emit(b TimeBucket) *TimeBucket {
	reqs := s.intervalRequests.Swap(0)
	fails := s.intervalFailures.Swap(0)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	interval := now.Sub(s.lastEmit)
	s.lastEmit = now

	b.Timestamp = now
	b.IntervalRequests = reqs
	if interval > 0 {
		b.IntervalRPS = float64(reqs) / interval.Seconds()
	}
	if reqs > 0 {
		b.IntervalErrorRate = float64(fails) / float64(reqs)
	}

	bucket := &b
	s.buckets[s.head] = bucket
	s.head = (s.head + 1) % len(s.buckets)
	if s.count < len(s.buckets) {
		s.count++
	}
	return bucket
}

// Buckets returns the retained buckets, oldest first.
func (s *TimeBucketStore) Buckets() []*TimeBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*TimeBucket, 0, s.count)
	start := (s.head - s.count + len(s.buckets)) % len(s.buckets)
	for i := 0; i < s.count; i++ {
		out = append(out, s.buckets[(start+i)%len(s.buckets)])
	}
	return out
}

// Latest returns the most recent bucket, or nil.
func (s *TimeBucketStore) Latest() *TimeBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil
	}
	return s.buckets[(s.head-1+len(s.buckets))%len(s.buckets)]
}

// Count returns the number of retained buckets.
func (s *TimeBucketStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// SteadyStateRPS averages the interval RPS of buckets in the steady phase.
func (s *TimeBucketStore) SteadyStateRPS() (float64, int) {
	var sum float64
	var n int
	for _, b := range s.Buckets() {
		if b.Phase == PhaseSteady {
			sum += b.IntervalRPS
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
