package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/artevida/askql/internal/config"
)

func TestTraceMiddlewarePreservesIncomingTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := TraceIDFromContext(r.Context()); got != "trace-1" {
			t.Fatalf("TraceIDFromContext() = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
	req.Header.Set(TraceHeader, "trace-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(TraceHeader); got != "trace-1" {
		t.Fatalf("trace header = %q", got)
	}
}

func TestTraceMiddlewareGeneratesTraceID(t *testing.T) {
	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(TraceHeader, strings.Repeat("x", 200))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if len(seen) != 36 {
		t.Fatalf("expected a generated uuid, got %q", seen)
	}
	if rr.Header().Get(TraceHeader) != seen {
		t.Fatalf("header = %q, context = %q", rr.Header().Get(TraceHeader), seen)
	}
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := TraceMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["status"] != float64(http.StatusAccepted) || entry["bytes"] != float64(2) {
		t.Fatalf("log entry = %v", entry)
	}
	if entry["trace_id"] == "" {
		t.Fatal("expected trace_id in request log")
	}
}

func TestNewLoggerRendersDurationsAsMillis(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Profile:       config.ProfileProd,
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}
	NewLogger(cfg, &buf).Info("stage", slog.Duration("generate", 1500*time.Microsecond))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if entry["generate_ms"] != 1.5 {
		t.Fatalf("entry = %v", entry)
	}
	if _, ok := entry["source"]; ok {
		t.Fatal("source should only be added in the dev profile")
	}
}

func TestMetricsMiddlewareTracksInFlight(t *testing.T) {
	var during float64
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		during = gaugeValue(t, "askql_http_in_flight_requests")
		w.WriteHeader(http.StatusNoContent)
	}))
	before := gaugeValue(t, "askql_http_in_flight_requests")
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if during-before != 1 {
		t.Fatalf("in flight during request = %v, before = %v", during, before)
	}
	if after := gaugeValue(t, "askql_http_in_flight_requests"); after != before {
		t.Fatalf("in flight after request = %v, want %v", after, before)
	}
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/widgets/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := MetricsMiddleware(mux)

	labels := map[string]string{"method": http.MethodGet, "path": "GET /v1/widgets/{name}", "status": "200"}
	before := counterValue(t, "askql_http_requests_total", labels)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/widgets/kpis", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/widgets/sales", nil))
	after := counterValue(t, "askql_http_requests_total", labels)
	if after-before != 2 {
		t.Fatalf("requests counted = %v", after-before)
	}
}

func TestDomainMetrics(t *testing.T) {
	ok := map[string]string{"kind": "ok"}
	before := counterValue(t, "askql_sql_validations_total", ok)
	ObserveValidation("")
	if got := counterValue(t, "askql_sql_validations_total", ok); got-before != 1 {
		t.Fatalf("ok validations delta = %v", got-before)
	}

	reason := map[string]string{"reason": "repairs_exhausted"}
	degraded := counterValue(t, "askql_degraded_answers_total", reason)
	IncrementDegraded("repairs_exhausted")
	if got := counterValue(t, "askql_degraded_answers_total", reason); got-degraded != 1 {
		t.Fatalf("degraded delta = %v", got-degraded)
	}

	ObserveGeneration("", errors.New("boom"), time.Second)
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() != "askql_generator_latency_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric.GetLabel(), map[string]string{"provider": "unknown", "result": "error"}) {
				found = metric.GetHistogram().GetSampleCount() > 0
			}
		}
	}
	if !found {
		t.Fatal("expected a generator latency sample for provider=unknown result=error")
	}
}

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func gaugeValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, family := range families {
		if family.GetName() == name && len(family.GetMetric()) > 0 {
			return family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return 0
}

type labelPair interface {
	GetName() string
	GetValue() string
}

func labelsMatch[L labelPair](pairs []L, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, pair := range pairs {
		if want[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestTraceIDContextHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc123")
	if got := TraceIDFromContext(ctx); got != "abc123" {
		t.Fatalf("TraceIDFromContext() = %q", got)
	}
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Fatalf("empty context trace id = %q", got)
	}

	var buf bytes.Buffer
	LoggerFromContext(ctx, slog.New(slog.NewTextHandler(&buf, nil))).Info("hello")
	if !strings.Contains(buf.String(), "trace_id=abc123") {
		t.Fatalf("log line = %q", buf.String())
	}
}

func TestNewLoggerAddsServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Profile:       config.ProfileTest,
		Service:       config.ServiceConfig{Name: "askql-api"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}
	NewLogger(cfg, &buf).Debug("dropped")
	NewLogger(cfg, &buf).Info("kept")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "kept" || entry["service"] != "askql-api" || entry["profile"] != "test" {
		t.Fatalf("entry = %v", entry)
	}
}
