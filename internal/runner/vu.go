// Package runner executes scenarios: it drives virtual users through a ramp
// profile, records every request into a metrics engine and evaluates the
// scenario's thresholds.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/xdung24/restload/internal/metrics"
	"github.com/xdung24/restload/internal/scenario"
)

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is ready but not currently running.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is in the middle of an iteration.
	VUStateRunning
	// VUStateStopping indicates the VU will stop after its current iteration.
	VUStateStopping
	// VUStateStopped indicates the VU has fully stopped.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VirtualUser is a single simulated user running scenario iterations.
type VirtualUser struct {
	ID int

	scenario      *scenario.Scenario
	client        *http.Client
	metrics       *metrics.Engine
	discardBodies bool

	state     atomic.Int32
	iteration atomic.Int64
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewVirtualUser creates a VU for sc. Requests go through client and are
// recorded into m.
func NewVirtualUser(id int, sc *scenario.Scenario, client *http.Client, m *metrics.Engine) *VirtualUser {
	return &VirtualUser{
		ID:            id,
		scenario:      sc,
		client:        client,
		metrics:       m,
		discardBodies: sc.Options.DiscardResponseBodies,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// State returns the current VU state.
func (vu *VirtualUser) State() VUState {
	return VUState(vu.state.Load())
}

// Iterations returns the number of iterations started by this VU.
func (vu *VirtualUser) Iterations() int64 {
	return vu.iteration.Load()
}

// RunIteration issues every request of one scenario iteration.
//
// A stop request does not interrupt an iteration in progress; cancelling ctx
// does, and an interrupted iteration is not recorded.
func (vu *VirtualUser) RunIteration(ctx context.Context) error {
	st := vu.State()
	if st == VUStateStopping || st == VUStateStopped {
		return fmt.Errorf("VU %d is stopping or stopped", vu.ID)
	}

	vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning))
	defer vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))

	vu.iteration.Add(1)
	start := time.Now()

	for _, req := range vu.scenario.Iteration() {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := vu.executeRequest(ctx, req)
		if res.Error != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		vu.metrics.RecordRequest(metrics.Sample{
			Duration: res.Duration,
			Tags:     vu.requestTags(req, res.StatusCode),
			Failed:   res.Failed(),
			Bytes:    res.BytesReceived,
		})
	}

	vu.metrics.RecordIteration(time.Since(start), map[string]string{"scenario": vu.scenario.Name})
	return nil
}

func (vu *VirtualUser) requestTags(req scenario.RequestSpec, status int) map[string]string {
	return map[string]string{
		"scenario": vu.scenario.Name,
		"name":     req.Name,
		"method":   req.Method,
		"url":      req.URL,
		"status":   strconv.Itoa(status),
	}
}

// executeRequest performs one request. Transport errors leave StatusCode at 0.
func (vu *VirtualUser) executeRequest(ctx context.Context, req scenario.RequestSpec) *RequestResult {
	start := time.Now()
	result := &RequestResult{
		VUID:        vu.ID,
		Iteration:   vu.iteration.Load(),
		RequestName: req.Name,
		StartTime:   start,
	}

	httpReq, err := buildRequest(ctx, req)
	if err != nil {
		result.finish(start)
		result.Error = fmt.Errorf("failed to build request: %w", err)
		return result
	}

	resp, err := vu.client.Do(httpReq)
	if err != nil {
		result.finish(start)
		result.Error = err
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	if vu.discardBodies {
		n, err := io.Copy(io.Discard, resp.Body)
		result.BytesReceived = n
		if err != nil {
			result.Error = fmt.Errorf("failed to drain response body: %w", err)
		}
	} else {
		body, err := io.ReadAll(resp.Body)
		result.BytesReceived = int64(len(body))
		result.ResponseBody = body
		if err != nil {
			result.Error = fmt.Errorf("failed to read response body: %w", err)
		}
	}

	result.finish(start)
	return result
}

func buildRequest(ctx context.Context, req scenario.RequestSpec) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// RequestStop asks the VU to stop after the current iteration.
func (vu *VirtualUser) RequestStop() {
	if vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateStopping)) ||
		vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateStopping)) {
		close(vu.stopCh)
	}
}

// Stopping returns a channel closed once a stop has been requested.
func (vu *VirtualUser) Stopping() <-chan struct{} {
	return vu.stopCh
}

// WaitForStop waits for the VU to stop. It reports false on timeout.
func (vu *VirtualUser) WaitForStop(timeout time.Duration) bool {
	select {
	case <-vu.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// MarkStopped marks the VU as fully stopped.
func (vu *VirtualUser) MarkStopped() {
	prev := VUState(vu.state.Swap(int32(VUStateStopped)))
	if prev == VUStateIdle || prev == VUStateRunning {
		close(vu.stopCh)
	}
	select {
	case <-vu.doneCh:
	default:
		close(vu.doneCh)
	}
}

// RequestResult is the outcome of a single HTTP request.
type RequestResult struct {
	VUID          int           `json:"vuId"`
	Iteration     int64         `json:"iteration"`
	RequestName   string        `json:"requestName"`
	StartTime     time.Time     `json:"startTime"`
	Duration      time.Duration `json:"duration"`
	StatusCode    int           `json:"statusCode"`
	BytesReceived int64         `json:"bytesReceived"`
	Error         error         `json:"-"`
	ResponseBody  []byte        `json:"-"`
}

func (r *RequestResult) finish(start time.Time) {
	r.Duration = time.Since(start)
}

// Failed reports whether the request counts towards http_req_failed:
// a transport error or a status outside 2xx/3xx.
func (r *RequestResult) Failed() bool {
	return r.Error != nil || r.StatusCode < 200 || r.StatusCode >= 400
}
