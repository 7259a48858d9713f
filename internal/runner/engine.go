package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xdung24/restload/internal/metrics"
	"github.com/xdung24/restload/internal/scenario"
	"github.com/xdung24/restload/internal/threshold"
)

// DefaultEvaluationInterval is how often thresholds are checked during a run.
const DefaultEvaluationInterval = time.Second

// Options configures an Engine.
type Options struct {
	// HTTP configures the shared client. The zero value means
	// DefaultHTTPClientConfig.
	HTTP HTTPClientConfig

	// GracefulStop bounds how long VUs may finish their last iteration.
	GracefulStop time.Duration

	// EvaluationInterval is the period of the in-run threshold check.
	EvaluationInterval time.Duration

	// Logger receives run lifecycle events. Nil means no logging.
	Logger *zap.Logger

	// OnTick, if set, is called after every in-run threshold check.
	OnTick func(Progress)
}

// Progress is the live state of a run, passed to Options.OnTick.
type Progress struct {
	Scenario string
	Percent  float64
	Executor *ExecutorStats
	Metrics  *metrics.Snapshot
	Failing  int
}

// Engine runs one scenario end to end.
//
//	sc, _ := scenario.New("get-user", scenario.DefaultTarget())
//	eng, _ := runner.NewEngine(sc, runner.Options{})
//	result, _ := eng.Run(ctx)
//	fmt.Println(result.Passed)
type Engine struct {
	scenario   *scenario.Scenario
	thresholds []threshold.Threshold
	opts       Options
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewEngine validates sc and its thresholds and prepares an engine.
func NewEngine(sc *scenario.Scenario, opts Options) (*Engine, error) {
	if sc == nil {
		return nil, fmt.Errorf("scenario is required")
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	ths, err := threshold.Parse(sc.Options.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if err := metrics.CheckThresholds(ths); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	if opts.HTTP == (HTTPClientConfig{}) {
		opts.HTTP = DefaultHTTPClientConfig()
	}
	if opts.EvaluationInterval <= 0 {
		opts.EvaluationInterval = DefaultEvaluationInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		scenario:   sc,
		thresholds: ths,
		opts:       opts,
		logger:     logger.With(zap.String("scenario", sc.Name)),
	}, nil
}

// Thresholds returns the parsed thresholds of the scenario.
func (e *Engine) Thresholds() []threshold.Threshold {
	return e.thresholds
}

// Run executes the scenario and returns its result.
//
// Cancelling ctx stops the run early; the partial result is still returned
// with Interrupted set. A threshold failure is not an error: check
// Result.Passed.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	opts := e.scenario.Options
	exec, err := NewRampingVUs(opts.Stages, e.opts.GracefulStop)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", e.scenario.Name, err)
	}

	m := metrics.NewEngine()
	defer m.Stop()
	for _, sel := range threshold.Selectors(e.thresholds) {
		m.RegisterSubmetric(sel)
	}

	scheduler := NewVUScheduler(e.scenario, m, e.opts.HTTP)
	defer scheduler.Close()

	e.logger.Info("starting run",
		zap.Duration("duration", opts.TotalDuration()),
		zap.Int("peakVUs", opts.PeakVUs()),
		zap.Int("maxRedirects", opts.MaxRedirects),
		zap.Bool("discardResponseBodies", opts.DiscardResponseBodies),
		zap.Int("thresholds", len(e.thresholds)),
	)

	start := time.Now()
	done := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		return exec.Run(gctx, scheduler, m)
	})
	g.Go(func() error {
		e.watch(gctx, done, exec, m)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", e.scenario.Name, err)
	}

	m.Stop()
	end := time.Now()

	results := threshold.Evaluate(e.thresholds, m)
	passed := threshold.AllPassed(results)

	result := &Result{
		Scenario:     e.scenario.Name,
		Description:  e.scenario.Description,
		StartTime:    start,
		EndTime:      end,
		Duration:     end.Sub(start),
		Interrupted:  ctx.Err() != nil,
		Stages:       append([]scenario.RampStage(nil), opts.Stages...),
		TrendStats:   opts.TrendStats(),
		Metrics:      m.Snapshot(),
		Summary:      m.Summary(opts.TrendStats()),
		RequestStats: m.RequestStats(),
		TimeSeries:   m.TimeSeries(),
		Phases:       m.PhaseHistory(),
		Thresholds:   results,
		Passed:       passed,
	}

	e.logger.Info("run finished",
		zap.Duration("elapsed", result.Duration),
		zap.Int64("requests", result.Metrics.TotalRequests),
		zap.Int64("iterations", result.Metrics.Iterations),
		zap.Bool("interrupted", result.Interrupted),
		zap.Bool("passed", passed),
	)

	return result, nil
}

// watch evaluates thresholds periodically while the executor runs and logs
// expressions as they start or stop failing.
func (e *Engine) watch(ctx context.Context, done <-chan struct{}, exec Executor, m *metrics.Engine) {
	ticker := time.NewTicker(e.opts.EvaluationInterval)
	defer ticker.Stop()

	failing := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
		}

		results := threshold.Evaluate(e.thresholds, m)
		nFailing := 0
		for _, r := range results {
			key := r.Selector + " " + r.Expression
			if !r.Passed {
				nFailing++
			}
			switch {
			case !r.Passed && !failing[key]:
				e.logger.Warn("threshold crossed",
					zap.String("metric", r.Selector),
					zap.String("expression", r.Expression),
					zap.Float64("value", r.Value))
			case r.Passed && failing[key]:
				e.logger.Info("threshold recovered",
					zap.String("metric", r.Selector),
					zap.String("expression", r.Expression),
					zap.Float64("value", r.Value))
			}
			failing[key] = !r.Passed
		}

		if e.opts.OnTick != nil {
			e.opts.OnTick(Progress{
				Scenario: e.scenario.Name,
				Percent:  exec.Progress() * 100,
				Executor: exec.Stats(),
				Metrics:  m.Snapshot(),
				Failing:  nFailing,
			})
		}
	}
}
