package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter(t *testing.T) {
	r := New()
	c := r.Counter("llmovies_requests_total", "Total requests")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Fatalf("counter = %d", c.Value())
	}
	// Same name returns same counter.
	if r.Counter("llmovies_requests_total", "") != c {
		t.Fatal("expected identical counter")
	}
}

func TestGauge(t *testing.T) {
	r := New()
	g := r.Gauge("llmovies_active", "Active requests")
	g.Set(3)
	g.Inc()
	g.Dec()
	if g.Value() != 3 {
		t.Fatalf("gauge = %d", g.Value())
	}
}

func TestHistogram_Buckets(t *testing.T) {
	r := New()
	h := r.Histogram("llmovies_latency_seconds", "Latency", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)
	h.Observe(50) // above all buckets, counted only in +Inf

	out := r.Render()
	for _, want := range []string{
		`llmovies_latency_seconds_bucket{le="0.1"} 1`,
		`llmovies_latency_seconds_bucket{le="1"} 2`,
		`llmovies_latency_seconds_bucket{le="10"} 3`,
		`llmovies_latency_seconds_bucket{le="+Inf"} 4`,
		`llmovies_latency_seconds_count 4`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestWithLabels(t *testing.T) {
	got := WithLabels("llmovies_ingest_docs_total", "catalog", "netflix")
	want := `llmovies_ingest_docs_total{catalog="netflix"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	// Odd label pairs are ignored.
	if WithLabels("x", "only") != "x" {
		t.Fatal("odd kvs should return name unchanged")
	}
}

func TestRender_LabelledSeries(t *testing.T) {
	r := New()
	r.Counter(WithLabels("llmovies_docs_total", "catalog", "hulu"), "Docs ingested").Add(2)
	r.Counter(WithLabels("llmovies_docs_total", "catalog", "netflix"), "").Add(3)

	out := r.Render()
	if !strings.Contains(out, "# TYPE llmovies_docs_total counter") {
		t.Fatalf("missing TYPE line:\n%s", out)
	}
	if !strings.Contains(out, `llmovies_docs_total{catalog="hulu"} 2`) ||
		!strings.Contains(out, `llmovies_docs_total{catalog="netflix"} 3`) {
		t.Fatalf("missing labelled series:\n%s", out)
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("llmovies_up", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "llmovies_up 1") {
		t.Fatalf("body: %s", rec.Body.String())
	}
}
