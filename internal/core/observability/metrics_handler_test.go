package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)
	t.Cleanup(func() { Init(nil, false) })

	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/", 200, 0.001)

	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `olc_api_build_info{version="test"} 1`) || !strings.Contains(body, "http_requests_total") {
		t.Fatalf("metrics payload did not contain expected metric names; got:\n%s", body)
	}
}

func TestDisabled_IsNoop(t *testing.T) {
	Init(nil, false)
	before := testutil.ToFloat64(reprojectionFailures.WithLabelValues("input"))
	IncReprojectionFailure("input")
	ObserveCacheOp("get", errors.New("boom"), 0.1)
	if got := testutil.ToFloat64(reprojectionFailures.WithLabelValues("input")); got != before {
		t.Fatalf("disabled counter moved from %v to %v", before, got)
	}
	if Enabled() {
		t.Fatalf("Enabled() after Init(nil, false)")
	}
}

func TestCacheOp_ResultLabel(t *testing.T) {
	Init(prometheus.NewRegistry(), true)
	t.Cleanup(func() { Init(nil, false) })

	okBefore := testutil.ToFloat64(cacheOps.WithLabelValues("set", "ok"))
	errBefore := testutil.ToFloat64(cacheOps.WithLabelValues("set", "error"))
	ObserveCacheOp("set", nil, 0.001)
	ObserveCacheOp("set", errors.New("down"), 0.001)
	ObserveCacheOp("set", errors.New("down"), 0.001)
	if got := testutil.ToFloat64(cacheOps.WithLabelValues("set", "ok")) - okBefore; got != 1 {
		t.Fatalf("ok delta=%v want 1", got)
	}
	if got := testutil.ToFloat64(cacheOps.WithLabelValues("set", "error")) - errBefore; got != 2 {
		t.Fatalf("error delta=%v want 2", got)
	}
}
