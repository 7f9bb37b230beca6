package server

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/esoimport/pkg/importer"
)

type fakeImporter struct {
	summary importer.Summary
	err     error
	calls   int
}

func (f *fakeImporter) RunCycle(ctx context.Context) (importer.Summary, error) {
	f.calls++
	return f.summary, f.err
}

func newTestServer(imp importRunner) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "esoimport_test_total",
		Help: "test counter",
	}))
	return &Server{
		importer:   imp,
		gatherer:   reg,
		listenAddr: "127.0.0.1:0",
		serverName: "esoimport-test",
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(&fakeImporter{}).setupHandler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.Equal(t, "esoimport-test", rr.Header().Get("Server"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rr.Header().Get("Strict-Transport-Security"))
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestServer(&fakeImporter{}).setupHandler()

	t.Run("Plain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "esoimport_test_total 0")
	})

	t.Run("Gzip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
		gz, err := gzip.NewReader(rr.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(gz)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "esoimport_test_total"))
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/metrics", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func TestRun(t *testing.T) {
	srv := newTestServer(&fakeImporter{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	// give the listener a moment before shutting down
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
