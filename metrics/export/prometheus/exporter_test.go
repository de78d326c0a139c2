package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:   map[authcore.MetricID]uint64{},
		Histograms: map[authcore.MetricID][]uint64{},
	}})

	if n := testutil.CollectAndCount(exp); n != 0 {
		t.Fatalf("expected no series, got %d", n)
	}
}

func TestCollectCountersAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess:         7,
			authcore.MetricRefreshReuseDetected: 2,
		},
		Histograms: map[authcore.MetricID][]uint64{
			authcore.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
		},
	}})

	expected := `
# HELP authcore_login_success_total Successful logins.
# TYPE authcore_login_success_total counter
authcore_login_success_total 7
# HELP authcore_refresh_reuse_detected_total Consumed refresh tokens presented again.
# TYPE authcore_refresh_reuse_detected_total counter
authcore_refresh_reuse_detected_total 2
`
	if err := testutil.CollectAndCompare(exp, strings.NewReader(expected),
		"authcore_login_success_total", "authcore_refresh_reuse_detected_total"); err != nil {
		t.Fatal(err)
	}

	histogram := `
# HELP authcore_validate_latency_seconds Access token validation latency.
# TYPE authcore_validate_latency_seconds histogram
authcore_validate_latency_seconds_bucket{le="0.001"} 1
authcore_validate_latency_seconds_bucket{le="0.002"} 3
authcore_validate_latency_seconds_bucket{le="0.005"} 6
authcore_validate_latency_seconds_bucket{le="0.01"} 10
authcore_validate_latency_seconds_bucket{le="0.025"} 15
authcore_validate_latency_seconds_bucket{le="0.05"} 21
authcore_validate_latency_seconds_bucket{le="0.1"} 28
authcore_validate_latency_seconds_bucket{le="+Inf"} 36
authcore_validate_latency_seconds_sum 0
authcore_validate_latency_seconds_count 36
`
	if err := testutil.CollectAndCompare(exp, strings.NewReader(histogram), "authcore_validate_latency_seconds"); err != nil {
		t.Fatal(err)
	}
}

func TestExporterRegistersCleanly(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{})
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(exp); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{authcore.MetricLogout: 1},
	}})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "authcore_logout_total 1") {
		t.Fatalf("expected logout counter, got:\n%s", rec.Body.String())
	}
}

func BenchmarkCollect(b *testing.B) {
	exp := NewExporterFromSource(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess:   1000,
			authcore.MetricLoginFailure:   40,
			authcore.MetricRefreshSuccess: 800,
		},
		Histograms: map[authcore.MetricID][]uint64{
			authcore.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
		},
	}})

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ch := make(chan prometheus.Metric, 32)
		exp.Collect(ch)
		close(ch)
	}
}
