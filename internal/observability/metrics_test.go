package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/auth/login", "POST", 200, 15*time.Millisecond)
	m.RecordRequest("/api/auth/login", "POST", 200, 20*time.Millisecond)
	m.RecordError("UNAUTHORIZED")
	m.RecordLogin(LoginFailed)

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/api/auth/login", "200")); got != 2 {
		t.Fatalf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("UNAUTHORIZED")); got != 1 {
		t.Fatalf("errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.loginsTotal.WithLabelValues(LoginFailed)); got != 1 {
		t.Fatalf("logins = %v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("X")
	m.RecordLogin(LoginSucceeded)
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.RecordLogin(LoginSucceeded)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), `admin_console_logins_total{outcome="succeeded"} 1`) {
		t.Fatalf("metrics output missing login counter:\n%s", body)
	}
}
