package observability

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWritePrometheusExposition(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveAPI("POST", "/api/planner/generate", "200", 1500*time.Millisecond)
	m.IncGeneration("", "fallback", "sync")
	m.IncAttempt("openai", "gpt-4o-mini", "json", "normalized")
	m.IncCacheLookup("hit")
	m.IncRateLimited("planner:generate")
	m.IncPostgenFailure("persist")

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`planner_api_requests_total{method="POST",route="/api/planner/generate",status="200"} 1`,
		`planner_api_request_duration_seconds_bucket{method="POST",route="/api/planner/generate",status="200",le="2"} 1`,
		`planner_api_request_duration_seconds_bucket{method="POST",route="/api/planner/generate",status="200",le="1"} 0`,
		`planner_generations_total{source="direct",mode="fallback",channel="sync"} 1`,
		`planner_generation_attempts_total{backend="openai",model="gpt-4o-mini",format="json",outcome="normalized"} 1`,
		`planner_cache_lookups_total{result="hit"} 1`,
		`planner_rate_limited_total{namespace="planner:generate"} 1`,
		`planner_postgen_failures_total{step="persist"} 1`,
		"# TYPE planner_api_inflight_requests gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.IncGeneration("x", "ai", "sync")
	m.ApiInflightInc()
	if m.GenerationCount("x", "ai", "sync") != 0 {
		t.Fatalf("nil metrics should count nothing")
	}
	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestLabelEscaping(t *testing.T) {
	t.Parallel()
	got := labelString([]string{"a", "b"}, []string{"x\"y\n", ""})
	if got != `{a="x\"y\n",b="unknown"}` {
		t.Fatalf("labelString=%s", got)
	}
	if withLe("", "+Inf") != `{le="+Inf"}` {
		t.Fatalf("withLe empty")
	}
}
