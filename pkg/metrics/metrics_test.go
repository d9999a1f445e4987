package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRun(t *testing.T) {
	m := New(false)
	m.ObserveRun(Run{Source: "eventbrite", Outcome: OutcomeOK, Since: 100, Pages: 3, Inserted: 5, Skipped: 2, Duration: time.Second})
	m.ObserveRun(Run{Source: "eventbrite", Outcome: OutcomeTruncated, Since: 105, Pages: 1, Inserted: 1})

	if got := testutil.ToFloat64(m.runs.WithLabelValues("eventbrite", OutcomeOK)); got != 1 {
		t.Fatalf("ok runs=%v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("eventbrite", "inserted")); got != 6 {
		t.Fatalf("inserted=%v", got)
	}
	if got := testutil.ToFloat64(m.pages.WithLabelValues("eventbrite")); got != 4 {
		t.Fatalf("pages=%v", got)
	}
	if got := testutil.ToFloat64(m.cursor.WithLabelValues("eventbrite")); got != 105 {
		t.Fatalf("cursor=%v", got)
	}
}

func TestFailedRunLeavesLastSuccess(t *testing.T) {
	m := New(false)
	m.ObserveRun(Run{Source: "eventbrite", Outcome: OutcomeFailed})
	if n := testutil.CollectAndCount(m.lastSuccess); n != 0 {
		t.Fatalf("last success series=%d want 0", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun(Run{Source: "eventbrite"})
}

func TestHandlerAndTextfile(t *testing.T) {
	m := New(false)
	m.ObserveRun(Run{Source: "eventbrite", Outcome: OutcomeOK, Pages: 1})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `locale_crawl_runs_total{outcome="ok",source="eventbrite"} 1`) {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
	}

	path := filepath.Join(t.TempDir(), "locale.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "locale_crawl_pages_total") {
		t.Fatalf("textfile=%s", b)
	}
}
