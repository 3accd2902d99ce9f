package observability_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"review_toolkit/internal/adapters/observability"
)

func TestRegistryServesCounters(t *testing.T) {
	reg := observability.InitRegistry()

	observability.ObserveHTTP("/v1/operators", "GET", 200, 5*time.Millisecond)
	observability.ObserveRecords("scrape", "ok", 40)
	observability.ObserveCheckpoint("redis", "set")

	h := observability.MetricsHandler(reg)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"reviewtool_http_requests_total",
		"reviewtool_records_total",
		"reviewtool_checkpoint_events_total",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
}
