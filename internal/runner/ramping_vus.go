package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xdung24/restload/internal/metrics"
	"github.com/xdung24/restload/internal/scenario"
)

// DefaultGracefulStop is how long VUs may finish their iteration once the
// ramp schedule has ended.
const DefaultGracefulStop = 30 * time.Second

// controllerInterval is how often the VU count is re-targeted.
const controllerInterval = 100 * time.Millisecond

// Executor generates load for a scenario.
type Executor interface {
	// Run blocks until the schedule completes or ctx is cancelled.
	Run(ctx context.Context, scheduler *VUScheduler, m *metrics.Engine) error

	// Progress returns schedule completion between 0 and 1.
	Progress() float64

	// Stats returns executor statistics.
	Stats() *ExecutorStats
}

// ExecutorStats is a point-in-time view of an executor.
type ExecutorStats struct {
	StartTime     time.Time     `json:"startTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`
	ActiveVUs     int           `json:"activeVUs"`
	TargetVUs     int           `json:"targetVUs"`
	Iterations    int64         `json:"iterations"`
	CurrentStage  int           `json:"currentStage"`
	TotalStages   int           `json:"totalStages"`
}

// RampingVUs ramps the VU count through a list of stages, interpolating
// linearly inside each stage starting from zero VUs.
//
//	stages:
//	  - duration: 30s
//	    target: 10     # 0 -> 10 VUs over 30s
//	  - duration: 30s
//	    target: 20     # 10 -> 20 VUs over 30s
//	  - duration: 20s
//	    target: 0      # 20 -> 0 VUs over 20s
type RampingVUs struct {
	stages       []scenario.RampStage
	gracefulStop time.Duration

	scheduler *VUScheduler
	metrics   *metrics.Engine

	startTime    atomic.Pointer[time.Time]
	activeVUs    atomic.Int32
	targetVUs    atomic.Int32
	iterations   atomic.Int64
	currentStage atomic.Int32
	running      atomic.Bool

	wg    sync.WaitGroup
	vus   []*VirtualUser
	vusMu sync.Mutex
}

// NewRampingVUs creates a ramping executor. A zero gracefulStop means
// DefaultGracefulStop.
func NewRampingVUs(stages []scenario.RampStage, gracefulStop time.Duration) (*RampingVUs, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("ramping-vus requires at least one stage")
	}
	for i, s := range stages {
		if s.Duration < 0 || s.Target < 0 {
			return nil, fmt.Errorf("stage %d: duration and target must be non-negative", i+1)
		}
	}
	if gracefulStop <= 0 {
		gracefulStop = DefaultGracefulStop
	}

	return &RampingVUs{
		stages:       append([]scenario.RampStage(nil), stages...),
		gracefulStop: gracefulStop,
	}, nil
}

// Run starts the executor and blocks until the schedule has ended and every
// VU has stopped. Cancelling ctx interrupts in-flight iterations.
func (e *RampingVUs) Run(ctx context.Context, scheduler *VUScheduler, m *metrics.Engine) error {
	e.scheduler = scheduler
	e.metrics = m
	now := time.Now()
	e.startTime.Store(&now)
	e.running.Store(true)
	defer e.running.Store(false)

	// VUs outlive the schedule by up to gracefulStop.
	vuCtx, cancelVUs := context.WithCancel(ctx)
	defer cancelVUs()

	scheduleCtx, cancel := context.WithTimeout(ctx, e.totalDuration())
	defer cancel()

	e.vuController(scheduleCtx, vuCtx)
	e.gracefulShutdown(cancelVUs)

	m.SetActiveVUs(0)
	m.SetPhase(metrics.PhaseDone)
	return nil
}

func (e *RampingVUs) started() time.Time {
	if t := e.startTime.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

func (e *RampingVUs) totalDuration() time.Duration {
	var total time.Duration
	for _, s := range e.stages {
		total += s.Duration
	}
	return total
}

// vuController re-targets the VU count until the schedule ends.
func (e *RampingVUs) vuController(scheduleCtx, vuCtx context.Context) {
	e.tick(vuCtx)

	ticker := time.NewTicker(controllerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-scheduleCtx.Done():
			return
		case <-ticker.C:
			e.tick(vuCtx)
		}
	}
}

func (e *RampingVUs) tick(vuCtx context.Context) {
	target, stage := TargetVUs(e.stages, time.Since(e.started()))
	e.currentStage.Store(int32(stage))
	e.targetVUs.Store(int32(target))
	e.adjustVUs(vuCtx, target)
	e.updatePhase()
}

// TargetVUs interpolates the VU target at elapsed time into the schedule
// and returns it together with the index of the current stage.
func TargetVUs(stages []scenario.RampStage, elapsed time.Duration) (int, int) {
	var stageStart time.Duration
	prevTarget := 0

	for i, stage := range stages {
		stageEnd := stageStart + stage.Duration

		if elapsed < stageEnd {
			progress := float64(elapsed-stageStart) / float64(stage.Duration)
			if progress < 0 {
				progress = 0
			}
			if progress > 1 {
				progress = 1
			}

			target := float64(prevTarget) + float64(stage.Target-prevTarget)*progress
			return int(target + 0.5), i
		}

		prevTarget = stage.Target
		stageStart = stageEnd
	}

	if len(stages) == 0 {
		return 0, 0
	}
	return stages[len(stages)-1].Target, len(stages) - 1
}

// adjustVUs spawns or stops VUs to match target. Stopped VUs finish their
// current iteration first.
func (e *RampingVUs) adjustVUs(ctx context.Context, target int) {
	e.vusMu.Lock()
	defer e.vusMu.Unlock()

	current := len(e.vus)

	if target > current {
		for i := current; i < target; i++ {
			vu := e.scheduler.SpawnVU()
			e.vus = append(e.vus, vu)
			e.wg.Add(1)
			go e.runVU(ctx, vu)
		}
	} else if target < current {
		for i := current - 1; i >= target; i-- {
			e.vus[i].RequestStop()
		}
		e.vus = e.vus[:target]
	}

	e.metrics.SetActiveVUs(target)
}

// updatePhase derives the metrics phase from the current stage.
func (e *RampingVUs) updatePhase() {
	idx := int(e.currentStage.Load())
	if idx >= len(e.stages) {
		return
	}

	prevTarget := 0
	if idx > 0 {
		prevTarget = e.stages[idx-1].Target
	}

	switch target := e.stages[idx].Target; {
	case target > prevTarget:
		e.metrics.SetPhase(metrics.PhaseRampUp)
	case target < prevTarget:
		e.metrics.SetPhase(metrics.PhaseRampDown)
	default:
		e.metrics.SetPhase(metrics.PhaseSteady)
	}
}

// runVU runs iterations back to back until the VU is asked to stop.
func (e *RampingVUs) runVU(ctx context.Context, vu *VirtualUser) {
	defer e.wg.Done()
	defer e.scheduler.RemoveVU(vu.ID)

	e.activeVUs.Add(1)
	defer e.activeVUs.Add(-1)

	for {
		select {
		case <-ctx.Done():
			return
		case <-vu.Stopping():
			return
		default:
		}

		if err := vu.RunIteration(ctx); err != nil {
			return
		}
		e.iterations.Add(1)
	}
}

// gracefulShutdown stops every VU and waits up to gracefulStop for their
// iterations to finish before interrupting the rest.
func (e *RampingVUs) gracefulShutdown(interrupt context.CancelFunc) {
	e.vusMu.Lock()
	for _, vu := range e.vus {
		vu.RequestStop()
	}
	e.vus = nil
	e.vusMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(e.gracefulStop):
	}

	interrupt()
	<-done
}

// Progress returns schedule completion between 0 and 1.
func (e *RampingVUs) Progress() float64 {
	start := e.started()
	if !e.running.Load() {
		if start.IsZero() {
			return 0
		}
		return 1
	}

	total := e.totalDuration()
	if total == 0 {
		return 1
	}
	p := float64(time.Since(start)) / float64(total)
	if p > 1 {
		p = 1
	}
	return p
}

// Stats returns executor statistics.
func (e *RampingVUs) Stats() *ExecutorStats {
	start := e.started()
	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}

	return &ExecutorStats{
		StartTime:     start,
		Elapsed:       elapsed,
		TotalDuration: e.totalDuration(),
		ActiveVUs:     int(e.activeVUs.Load()),
		TargetVUs:     int(e.targetVUs.Load()),
		Iterations:    e.iterations.Load(),
		CurrentStage:  int(e.currentStage.Load()),
		TotalStages:   len(e.stages),
	}
}

var _ Executor = (*RampingVUs)(nil)
