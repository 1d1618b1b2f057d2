package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestMetrics_countersExposed(t *testing.T) {
	m := New()
	m.ReadingIngested("http")
	m.ReadingIngested("http")
	m.ReadingIngested("mqtt")
	m.ReadingRejected("http", "validation")
	m.ObserveHTTP(http.MethodPost, "POST /api/v1/readings", http.StatusCreated, 15*time.Millisecond)

	out := scrape(t, m)
	for _, want := range []string{
		`sensorhub_readings_ingested_total{source="http"} 2`,
		`sensorhub_readings_ingested_total{source="mqtt"} 1`,
		`sensorhub_readings_rejected_total{reason="validation",source="http"} 1`,
		`sensorhub_http_request_duration_seconds_count{method="POST",route="POST /api/v1/readings",status="201"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_instancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ReadingIngested("http")

	if strings.Contains(scrape(t, b), `sensorhub_readings_ingested_total{source="http"}`) {
		t.Error("second registry saw a counter incremented on the first")
	}
}

func TestMetrics_nilIsNoop(t *testing.T) {
	var m *Metrics
	m.ReadingIngested("http")
	m.ReadingRejected("http", "validation")
	m.ObserveHTTP(http.MethodGet, "/", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d; want %d", rec.Code, http.StatusNotFound)
	}
}
