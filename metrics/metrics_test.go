package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewInstancesAreIsolated(t *testing.T) {
	a, b := New(), New()
	a.Interactions.WithLabelValues("click").Inc()
	if got := testutil.ToFloat64(a.Interactions.WithLabelValues("click")); got != 1 {
		t.Fatalf("a click = %v", got)
	}
	if got := testutil.ToFloat64(b.Interactions.WithLabelValues("click")); got != 0 {
		t.Fatalf("b click = %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.CollaborationTransitions.WithLabelValues("approve", "delivered_to_recipient").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `collaboration_transitions_total{action="approve",status="delivered_to_recipient"} 1`) {
		t.Fatalf("metric missing from output")
	}
}

func TestMetricsLint(t *testing.T) {
	m := New()
	m.AsyncTasks.WithLabelValues("track", "ok").Inc()
	problems, err := testutil.GatherAndLint(m.Registry, "async_tasks_total", "http_requests_total", "collaboration_transitions_total")
	if err != nil {
		t.Fatalf("GatherAndLint: %v", err)
	}
	for _, p := range problems {
		t.Errorf("lint %s: %s", p.Metric, p.Text)
	}
}
