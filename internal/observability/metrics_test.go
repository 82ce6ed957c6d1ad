package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestMetrics_Usable verifies label dimensions match usage across client, http,
// service, storefront and cache packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/shipping/{destination}", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/shipping/{destination}").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("payment", "success").Inc()
	UpstreamDuration.WithLabelValues("exchange_rate", "error").Observe(0.1)
	UpstreamRetriesTotal.WithLabelValues("shipping").Inc()
	UpstreamErrorsTotal.WithLabelValues("payment", "timeout").Inc()
	CacheHitsTotal.WithLabelValues("exchange_rate").Inc()
	CacheErrorsTotal.WithLabelValues("get", "connection").Inc()
	OrdersTotal.WithLabelValues("success").Inc()
	SignupsTotal.WithLabelValues("rejected").Inc()
	EmailsSentTotal.WithLabelValues("log", "success").Inc()
	RecordCircuitBreakerTransition("payment", "closed", "open", 1)
	RecordShutdownInFlight(3)
}

func TestPageViewTracker_TrackView(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracker := NewPageViewTracker(zap.New(core))

	tracker.TrackView(context.Background(), "/home")

	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(w.Body.String(), `pageViewsTotal{path="/home"}`) {
		t.Error("metrics output missing pageViewsTotal for /home")
	}
	if logs.FilterMessage("page view").Len() != 1 {
		t.Errorf("expected one page view log entry, got %d", logs.FilterMessage("page view").Len())
	}
}

func TestPageViewTracker_NilLogger(t *testing.T) {
	NewPageViewTracker(nil).TrackView(context.Background(), "/about")
}

func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	RegisterTrafficGauges(time.Minute)
	HTTPRequestsTotal.WithLabelValues("GET", "/home", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"httpRequestsTotal", "rateLimitRequestsInWindow"} {
		if !strings.Contains(body, name) {
			t.Errorf("MetricsHandler response missing %s", name)
		}
	}
}
