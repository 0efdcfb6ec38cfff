package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/projectanalysis/internal/logging"
)

func TestRequestIDMiddlewareAssignsID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDMiddlewareKeepsIncomingID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRequestIDFromContextMissing(t *testing.T) {
	_, ok := RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.False(t, ok)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&buf, "debug", "json")
	require.NoError(t, err)
	previous := logging.Logger
	logging.SetGlobalLogger(logger)
	t.Cleanup(func() { logging.SetGlobalLogger(previous) })

	handler := RequestIDMiddleware(LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Ctx(r.Context()).Info().Msg("inside")
		http.Error(w, "nope", http.StatusBadGateway)
	})))

	req := httptest.NewRequest(http.MethodGet, "/projects/table", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"request_id":"req-1"`)
	require.Contains(t, lines[0], `"message":"inside"`)
	require.Contains(t, lines[1], `"level":"error"`)
	require.Contains(t, lines[1], `"status":502`)
	require.Contains(t, lines[1], `"path":"/projects/table"`)
	require.Contains(t, lines[1], `"request_id":"req-1"`)
}

func TestMetricsInstrument(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	metrics := NewMetrics(reg)
	handler := metrics.Instrument("projects", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for range 3 {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	require.Equal(t, 3.0, testutil.ToFloat64(metrics.requests.WithLabelValues("projects", "418", "get")))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.inFlight))
	count, err := testutil.GatherAndCount(reg, "analysis_http_request_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
