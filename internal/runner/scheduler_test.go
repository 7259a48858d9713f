package runner_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdung24/restload/internal/runner"
	"github.com/xdung24/restload/internal/scenario"
)

// redirectChain serves /ns/users/1 -> /hop1 -> /hop2 -> 200 and counts hits
// on every hop.
type redirectChain struct {
	origin, hop1, hop2 atomic.Int64
}

func (c *redirectChain) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ns/users/1", func(w http.ResponseWriter, r *http.Request) {
		c.origin.Add(1)
		http.Redirect(w, r, "/hop1", http.StatusFound)
	})
	mux.HandleFunc("/hop1", func(w http.ResponseWriter, r *http.Request) {
		c.hop1.Add(1)
		http.Redirect(w, r, "/hop2", http.StatusFound)
	})
	mux.HandleFunc("/hop2", func(w http.ResponseWriter, r *http.Request) {
		c.hop2.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func TestNewHTTPClient_RedirectCap(t *testing.T) {
	tests := []struct {
		name         string
		maxRedirects int
		wantStatus   int
		wantHop1     int64
		wantHop2     int64
	}{
		{"disabled", 0, http.StatusFound, 0, 0},
		{"one hop", 1, http.StatusFound, 1, 0},
		{"two hops", 2, http.StatusOK, 1, 1},
		{"default cap", scenario.DefaultMaxRedirects, http.StatusOK, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &redirectChain{}
			server := httptest.NewServer(chain.handler())
			defer server.Close()

			client := runner.NewHTTPClient(runner.DefaultHTTPClientConfig(), tt.maxRedirects)
			resp, err := client.Get(server.URL + "/ns/users/1")
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, int64(1), chain.origin.Load())
			assert.Equal(t, tt.wantHop1, chain.hop1.Load())
			assert.Equal(t, tt.wantHop2, chain.hop2.Load())
		})
	}
}

func TestUpsertUser_FollowsOneRedirect(t *testing.T) {
	chain := &redirectChain{}
	server := httptest.NewServer(chain.handler())
	defer server.Close()

	sc, err := scenario.UpsertUser(scenario.Target{BaseURL: server.URL})
	require.NoError(t, err)
	require.Equal(t, 1, sc.Options.MaxRedirects)

	vu, m := spawnOne(t, sc)
	m.RegisterSubmetric(mustSelector(t, "http_req_duration{status:302}"))
	require.NoError(t, vu.RunIteration(context.Background()))

	assert.Equal(t, int64(1), chain.hop1.Load(), "exactly one redirect should be followed")
	assert.Equal(t, int64(0), chain.hop2.Load())

	// The capped redirect is an ordinary sample, not a transport error.
	n, ok := m.Aggregate(mustSelector(t, "http_req_duration{status:302}"), "count")
	require.True(t, ok)
	assert.Equal(t, 1.0, n)
	_, ok = m.Aggregate(mustSelector(t, "http_req_duration{status:0}"), "count")
	assert.False(t, ok)
}

func TestGetUser_FollowsRedirectChain(t *testing.T) {
	chain := &redirectChain{}
	server := httptest.NewServer(chain.handler())
	defer server.Close()

	sc, err := scenario.GetUser(scenario.Target{BaseURL: server.URL})
	require.NoError(t, err)

	vu, m := spawnOne(t, sc)
	m.RegisterSubmetric(mustSelector(t, "http_req_duration{status:200}"))
	require.NoError(t, vu.RunIteration(context.Background()))

	assert.Equal(t, int64(1), chain.hop2.Load())
	n, ok := m.Aggregate(mustSelector(t, "http_req_duration{status:200}"), "count")
	require.True(t, ok)
	assert.Equal(t, 1.0, n)
}

func TestVUScheduler_SpawnAndRemove(t *testing.T) {
	sc, err := scenario.GetUser(scenario.DefaultTarget())
	require.NoError(t, err)

	vu, _ := spawnOne(t, sc)
	assert.Equal(t, 1, vu.ID)

	sched := runner.NewVUScheduler(sc, nil, runner.DefaultHTTPClientConfig())
	a := sched.SpawnVU()
	b := sched.SpawnVU()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, sched.ActiveVUCount())

	sched.RemoveVU(a.ID)
	assert.Equal(t, 1, sched.ActiveVUCount())
	assert.Equal(t, runner.VUStateStopped, a.State())

	sched.StopAllVUs()
	assert.Equal(t, runner.VUStateStopping, b.State())
	assert.NotNil(t, sched.Client().CheckRedirect)
}
