package runner

import (
	"crypto/tls"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xdung24/restload/internal/metrics"
	"github.com/xdung24/restload/internal/scenario"
)

// HTTPClientConfig contains HTTP client configuration.
type HTTPClientConfig struct {
	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host (0 = unlimited)
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives
	DisableKeepAlives bool

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool
}

// DefaultHTTPClientConfig returns sensible defaults for load testing.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
}

// VUScheduler owns the VU pool and the HTTP client all VUs share.
type VUScheduler struct {
	scenario *scenario.Scenario
	metrics  *metrics.Engine
	client   *http.Client

	vus      map[int]*VirtualUser
	vusMu    sync.RWMutex
	nextVUID atomic.Int32
}

// NewVUScheduler creates a scheduler for sc.
func NewVUScheduler(sc *scenario.Scenario, m *metrics.Engine, cfg HTTPClientConfig) *VUScheduler {
	return &VUScheduler{
		scenario: sc,
		metrics:  m,
		client:   NewHTTPClient(cfg, sc.Options.MaxRedirects),
		vus:      make(map[int]*VirtualUser),
	}
}

// NewHTTPClient builds the load-testing client. Redirects are followed at
// most maxRedirects times; past the cap the last 3xx response is returned
// as is, so it is recorded as a normal sample.
func NewHTTPClient(cfg HTTPClientConfig, maxRedirects int) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// Client returns the shared HTTP client.
func (s *VUScheduler) Client() *http.Client {
	return s.client
}

// SpawnVU creates and registers a new VU. The caller runs it.
func (s *VUScheduler) SpawnVU() *VirtualUser {
	id := int(s.nextVUID.Add(1))
	vu := NewVirtualUser(id, s.scenario, s.client, s.metrics)

	s.vusMu.Lock()
	s.vus[id] = vu
	s.vusMu.Unlock()

	return vu
}

// ActiveVUCount returns the number of VUs that have not stopped.
func (s *VUScheduler) ActiveVUCount() int {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	count := 0
	for _, vu := range s.vus {
		if vu.State() != VUStateStopped {
			count++
		}
	}
	return count
}

// RemoveVU marks a VU stopped and forgets it.
func (s *VUScheduler) RemoveVU(id int) {
	s.vusMu.Lock()
	defer s.vusMu.Unlock()

	if vu, ok := s.vus[id]; ok {
		vu.MarkStopped()
		delete(s.vus, id)
	}
}

// StopAllVUs requests every VU to stop after its current iteration.
func (s *VUScheduler) StopAllVUs() {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	for _, vu := range s.vus {
		vu.RequestStop()
	}
}

// Close releases idle connections held by the shared client.
func (s *VUScheduler) Close() {
	s.client.CloseIdleConnections()
}
