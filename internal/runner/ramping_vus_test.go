package runner_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xdung24/restload/internal/metrics"
	"github.com/xdung24/restload/internal/runner"
	"github.com/xdung24/restload/internal/scenario"
)

func TestTargetVUs(t *testing.T) {
	stages := []scenario.RampStage{
		{Duration: 30 * time.Second, Target: 10},
		{Duration: 30 * time.Second, Target: 20},
		{Duration: 20 * time.Second, Target: 0},
	}

	tests := []struct {
		elapsed   time.Duration
		wantVUs   int
		wantStage int
	}{
		{0, 0, 0},
		{3 * time.Second, 1, 0},
		{15 * time.Second, 5, 0},
		{30 * time.Second, 10, 1},
		{45 * time.Second, 15, 1},
		{60 * time.Second, 20, 2},
		{70 * time.Second, 10, 2},
		{79 * time.Second, 1, 2},
		{80 * time.Second, 0, 2},
		{2 * time.Minute, 0, 2},
	}

	for _, tt := range tests {
		vus, stage := runner.TargetVUs(stages, tt.elapsed)
		if vus != tt.wantVUs || stage != tt.wantStage {
			t.Errorf("TargetVUs(%v) = (%d, %d), want (%d, %d)", tt.elapsed, vus, stage, tt.wantVUs, tt.wantStage)
		}
	}
}

func TestTargetVUs_Empty(t *testing.T) {
	if vus, stage := runner.TargetVUs(nil, time.Second); vus != 0 || stage != 0 {
		t.Errorf("TargetVUs(nil) = (%d, %d), want (0, 0)", vus, stage)
	}
}

func TestNewRampingVUs_Invalid(t *testing.T) {
	if _, err := runner.NewRampingVUs(nil, 0); err == nil {
		t.Error("NewRampingVUs(nil) should fail")
	}
	if _, err := runner.NewRampingVUs([]scenario.RampStage{{Duration: time.Second, Target: -1}}, 0); err == nil {
		t.Error("NewRampingVUs() with negative target should fail")
	}
}

func TestRampingVUs_Run(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sc, err := scenario.GetUser(scenario.Target{BaseURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	sc.Options.Stages = []scenario.RampStage{
		{Duration: 300 * time.Millisecond, Target: 3},
		{Duration: 200 * time.Millisecond, Target: 3},
		{Duration: 200 * time.Millisecond, Target: 0},
	}

	m := metrics.NewEngine()
	defer m.Stop()
	sched := runner.NewVUScheduler(sc, m, runner.DefaultHTTPClientConfig())
	defer sched.Close()

	exec, err := runner.NewRampingVUs(sc.Options.Stages, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	if p := exec.Progress(); p != 0 {
		t.Errorf("Progress() before Run = %v, want 0", p)
	}

	start := time.Now()
	if err := exec.Run(context.Background(), sched, m); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 700*time.Millisecond {
		t.Errorf("Run() returned after %v, before the schedule ended", elapsed)
	}
	if p := exec.Progress(); p != 1 {
		t.Errorf("Progress() after Run = %v, want 1", p)
	}

	stats := exec.Stats()
	if stats.Iterations == 0 {
		t.Error("no iterations completed")
	}
	if stats.ActiveVUs != 0 {
		t.Errorf("ActiveVUs after Run = %d, want 0", stats.ActiveVUs)
	}
	if stats.TotalStages != 3 {
		t.Errorf("TotalStages = %d, want 3", stats.TotalStages)
	}
	if sched.ActiveVUCount() != 0 {
		t.Errorf("scheduler still holds %d VUs", sched.ActiveVUCount())
	}

	snap := m.Snapshot()
	if snap.MaxVUs != 3 {
		t.Errorf("MaxVUs = %d, want 3", snap.MaxVUs)
	}
	if snap.CurrentPhase != metrics.PhaseDone {
		t.Errorf("phase = %v, want %v", snap.CurrentPhase, metrics.PhaseDone)
	}

	var phases []metrics.Phase
	for _, pc := range m.PhaseHistory() {
		phases = append(phases, pc.Phase)
	}
	want := []metrics.Phase{metrics.PhaseRampUp, metrics.PhaseSteady, metrics.PhaseRampDown, metrics.PhaseDone}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phases[%d] = %v, want %v", i, phases[i], want[i])
		}
	}
}

func TestRampingVUs_CancelInterruptsRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	sc, err := scenario.GetUser(scenario.Target{BaseURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	m := metrics.NewEngine()
	defer m.Stop()
	sched := runner.NewVUScheduler(sc, m, runner.DefaultHTTPClientConfig())
	defer sched.Close()

	exec, err := runner.NewRampingVUs([]scenario.RampStage{
		{Duration: 10 * time.Millisecond, Target: 2},
		{Duration: time.Minute, Target: 2},
	}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := exec.Run(ctx, sched, m); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run() took %v after cancellation", elapsed)
	}
	if m.Snapshot().TotalRequests != 0 {
		t.Errorf("interrupted requests should not be recorded, got %d", m.Snapshot().TotalRequests)
	}
}
