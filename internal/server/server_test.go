package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/uboat/internal/board"
	"github.com/lox/uboat/internal/randutil"
	"github.com/lox/uboat/internal/runid"
	"github.com/lox/uboat/internal/sampler"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.WarnLevel})
}

func newTestServer(t *testing.T, mutate func(*ServerConfig)) *Server {
	t.Helper()
	config := DefaultServerConfig()
	config.Server.Workers = 2
	config.Server.MaxRuns = 50000
	config.Simulation.Runs = 1000
	if mutate != nil {
		mutate(config)
	}
	require.NoError(t, config.Validate())
	return NewServer(config, quietLogger(), quartz.NewMock(t))
}

func ptr[T any](v T) *T { return &v }

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerHealth(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Expected body OK, got %q", rec.Body.String())
	}
}

func TestServerRoot(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "U-Boat Game API", body["message"])
	assert.Equal(t, apiVersion, body["version"])

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/nowhere", "").Code)
}

func TestSimulateEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/simulate", `{"runs":2000,"seed":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp SimulateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.NoError(t, runid.Validate(resp.RunID))
	assert.Equal(t, "duplicates", resp.Policy.String())
	assert.Equal(t, 5, resp.Draws)
	assert.Equal(t, int64(3), resp.Seed)
	assert.Equal(t, 2000, resp.Statistics.Trials)
	assert.Nil(t, resp.Statistics.Raw)
	assert.Equal(t, 2000, resp.Comparison.Trials)
	// Mock clock never advances
	assert.Zero(t, resp.ElapsedMS)

	total := 0
	for k, v := range resp.Statistics.Frequency {
		assert.True(t, k >= 1 && k <= 6, "unexpected key %d", k)
		total += v
	}
	assert.Equal(t, 2000, total)
	assert.InDelta(t, 0.4630, resp.Comparison.Theoretical[4], 1e-9)
}

func TestSimulateIsReproducible(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	decode := func() SimulateResponse {
		rec := do(t, srv, http.MethodPost, "/api/simulate", `{"runs":3000,"seed":77,"policy":"duplicates","draws":6}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp SimulateResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp
	}

	first, second := decode(), decode()
	assert.Equal(t, first.Statistics, second.Statistics)
	assert.Equal(t, 6, first.Draws)
}

func TestSimulateDefaultsRuns(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/simulate", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SimulateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1000, resp.Statistics.Trials)
	assert.NotZero(t, resp.Seed)
}

func TestSimulateRejectsBadRequests(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"zero runs", `{"runs":0}`},
		{"negative runs", `{"runs":-1}`},
		{"too many runs", `{"runs":50001}`},
		{"unknown policy", `{"runs":10,"policy":"sideways"}`},
		{"bad draws", `{"runs":10,"draws":9}`},
		{"zero draws", `{"runs":10,"draws":0}`},
		{"no reference table", `{"runs":10,"draws":4}`},
		{"bad json", `{"runs":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/simulate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.NotEmpty(t, body["detail"])
		})
	}

	rec := do(t, srv, http.MethodPost, "/api/simulate", `{"runs":10,"draws":4,"exact":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodGet, "/api/simulate", "").Code)
}

func TestSimulateBusy(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(c *ServerConfig) { c.Server.MaxConcurrent = 1 })

	require.True(t, srv.slots.TryAcquire(1))
	rec := do(t, srv, http.MethodPost, "/api/simulate", `{"runs":10}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv.slots.Release(1)
	rec = do(t, srv, http.MethodPost, "/api/simulate", `{"runs":10}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTheoreticalEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	decode := func(target string) TheoreticalResponse {
		rec := do(t, srv, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp TheoreticalResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp
	}

	ref := decode("/api/theoretical")
	assert.False(t, ref.Exact)
	assert.Equal(t, 5, ref.Draws)
	assert.InDelta(t, 0.4630, ref.Probabilities[4], 1e-9)

	six := decode("/api/theoretical?draws=6")
	assert.InDelta(t, 0.3858, six.Probabilities[4], 1e-9)

	unique := decode("/api/theoretical?policy=unique")
	assert.Equal(t, map[int]float64{1: 0, 2: 0, 3: 0, 4: 0, 5: 1, 6: 0}, unique.Probabilities)

	exact := decode("/api/theoretical?exact=true&draws=5")
	assert.True(t, exact.Exact)
	assert.InDelta(t, 3600.0/7776.0, exact.Probabilities[4], 1e-12)
	assert.InDelta(t, 3.5887, exact.Mean, 1e-4)

	for _, target := range []string{
		"/api/theoretical?draws=x",
		"/api/theoretical?draws=4",
		"/api/theoretical?draws=0",
		"/api/theoretical?policy=sideways",
		"/api/theoretical?exact=maybe",
	} {
		assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, target, "").Code, target)
	}
}

func TestChartEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/chart?runs=300&seed=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Hit Distribution")

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/chart?runs=-5", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/chart?runs=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/chart?draws=0", "").Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/simulate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartAndShutdown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	srv := newTestServer(t, func(c *ServerConfig) {
		c.Server.Address = "127.0.0.1"
		c.Server.Port = port
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, WaitForHealthy(waitCtx, fmt.Sprintf("http://127.0.0.1:%d", port)))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: runs", sampler.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{fmt.Errorf("mark: %w", board.ErrInvalidIndex), http.StatusBadRequest, "invalid_index"},
		{ErrBusy, http.StatusServiceUnavailable, "busy"},
		{fmt.Errorf("%w: eof", randutil.ErrRandomSourceUnavailable), http.StatusServiceUnavailable, "random_source_unavailable"},
		{context.Canceled, http.StatusInternalServerError, "cancelled"},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
		assert.Equal(t, tt.code, errorCode(tt.err), tt.err.Error())
	}
}
