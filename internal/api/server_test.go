package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ndtworks/tubescan/internal/clock"
	"github.com/ndtworks/tubescan/internal/clock/manual"
	"github.com/ndtworks/tubescan/internal/engine"
	"github.com/ndtworks/tubescan/internal/inspect"
	"github.com/ndtworks/tubescan/internal/progress"
	"github.com/ndtworks/tubescan/internal/progress/sinks"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine, *sinks.BroadcastSink) {
	t.Helper()
	broadcast := sinks.NewBroadcastSink()
	clk := manual.NewClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	eng, err := engine.New(engine.Config{BatchSize: 4, Seed: 7}, progress.NopEmitter{}, clk, nil)
	require.NoError(t, err)
	srv := NewServer(eng, broadcast, func() clock.Ticker { return manual.NewTicker() }, prometheus.NewRegistry(), nil)
	return srv, eng, broadcast
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	payload := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func layoutJSON(n int) string {
	holes := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		holes = append(holes, fmt.Sprintf(`{"id":"A1-%d","x":%d,"y":%d,"radius":0.5}`, i, i%4, i/4))
	}
	return `{"holes":[` + strings.Join(holes, ",") + `]}`
}

// TestHealthz returns ok without any preconditions.
func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	rec, payload := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", payload["status"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

// TestMetricsEndpoint serves the Prometheus exposition format.
func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

// TestLoadGeometryEndpoint validates the layout boundary.
func TestLoadGeometryEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	rec, payload := doJSON(t, srv.Handler(), http.MethodPost, "/v1/geometry/load", layoutJSON(8))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 8.0, payload["holes"])

	rec, payload = doJSON(t, srv.Handler(), http.MethodPost, "/v1/geometry/load", `{"holes":[]}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, payload["error"], "no holes")

	rec, _ = doJSON(t, srv.Handler(), http.MethodPost, "/v1/geometry/load", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestStatsAndQueries exercises the read-only endpoints after a load.
func TestStatsAndQueries(t *testing.T) {
	t.Parallel()

	srv, eng, _ := newTestServer(t)
	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/v1/geometry/load", layoutJSON(8))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, payload := doJSON(t, srv.Handler(), http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	global, ok := payload["global"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 8.0, global["total"])
	require.Equal(t, "idle", payload["state"])

	rec, payload = doJSON(t, srv.Handler(), http.MethodGet, "/v1/sectors/Q1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Q1", payload["sector"])

	rec, _ = doJSON(t, srv.Handler(), http.MethodGet, "/v1/sectors/Q9", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, srv.Handler(), http.MethodGet, "/v1/sectors/bogus", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, payload = doJSON(t, srv.Handler(), http.MethodGet, "/v1/holes/A1-3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hole, ok := payload["hole"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "A1-3", hole["id"])

	rec, _ = doJSON(t, srv.Handler(), http.MethodGet, "/v1/holes/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Path endpoint reflects the built sequence.
	_, err := eng.BuildPath()
	require.NoError(t, err)
	rec, payload = doJSON(t, srv.Handler(), http.MethodGet, "/v1/path", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 8.0, payload["count"])
}

// TestSimulationLifecycleEndpoints drives start, pause, resume and stop over
// HTTP, including the conflict cases.
func TestSimulationLifecycleEndpoints(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	// No geometry yet.
	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/v1/simulation/start", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = doJSON(t, srv.Handler(), http.MethodPost, "/v1/simulation/pause", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = doJSON(t, srv.Handler(), http.MethodPost, "/v1/geometry/load", layoutJSON(8))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, payload := doJSON(t, srv.Handler(), http.MethodPost, "/v1/simulation/start", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "running", payload["state"])

	rec, _ = doJSON(t, srv.Handler(), http.MethodPost, "/v1/simulation/start", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, payload = doJSON(t, srv.Handler(), http.MethodPost, "/v1/simulation/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "paused", payload["state"])

	rec, payload = doJSON(t, srv.Handler(), http.MethodPost, "/v1/simulation/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "running", payload["state"])

	rec, payload = doJSON(t, srv.Handler(), http.MethodPost, "/v1/simulation/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "stopped", payload["state"])

	// Stop is idempotent over HTTP as well.
	rec, _ = doJSON(t, srv.Handler(), http.MethodPost, "/v1/simulation/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

// TestEventStream subscribes to the SSE feed and receives a broadcast event.
func TestEventStream(t *testing.T) {
	t.Parallel()

	srv, _, broadcast := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	evt := progress.Event{
		RunID:  uuid.New(),
		TS:     time.Now(),
		Kind:   progress.KindHoleResolved,
		HoleID: "A1-1",
		Status: inspect.StatusQualified,
	}
	stopEmitting := make(chan struct{})
	defer close(stopEmitting)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopEmitting:
				return
			case <-ticker.C:
				_ = broadcast.Consume(context.Background(), []progress.Event{evt})
			}
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data)

	var received progress.Event
	require.NoError(t, json.Unmarshal([]byte(data), &received))
	require.Equal(t, evt.RunID, received.RunID)
	require.Equal(t, progress.KindHoleResolved, received.Kind)
}
