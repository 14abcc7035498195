package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRequest("pages", http.StatusOK)
	m.ObserveRequest("pages", http.StatusOK)
	m.ObserveRequest("", http.StatusMethodNotAllowed)

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("pages", "200")); got != 2 {
		t.Errorf("requests_total{pages,200} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("none", "405")); got != 1 {
		t.Errorf("requests_total{none,405} = %v, want 1", got)
	}
}

func TestMetrics_RateLimitedAndUpstream(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RateLimited()
	m.ObserveUpstream(120*time.Millisecond, nil)
	m.ObserveUpstream(2*time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(m.rateLimitedTotal); got != 1 {
		t.Errorf("rate_limited_total = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.upstreamDuration); got != 2 {
		t.Errorf("upstream_duration_seconds series = %d, want 2", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("content", http.StatusOK)
	m.ObserveUpstream(time.Second, nil)
	m.RateLimited()
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveRequest("seo", http.StatusBadRequest)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `brief_gateway_requests_total{status="400",type="seo"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
}
