package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"

	authsync "github.com/MrEthical07/authsync"
)

type fakeSource struct {
	snapshot authsync.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authsync.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderCountersAndHistogram(t *testing.T) {
	src := &fakeSource{
		snapshot: authsync.MetricsSnapshot{
			Counters: map[authsync.MetricID]uint64{
				authsync.MetricLoginSuccess:         7,
				authsync.MetricChangeEventDiscarded: 4,
			},
			Histograms: map[authsync.MetricID][]uint64{
				authsync.MetricLoginLatency: {2, 0, 0, 0, 0, 0, 0, 1},
			},
		},
		dropped: 5,
	}

	out := NewPrometheusExporterFromSource(src).Render()

	for _, want := range []string{
		"authsync_login_success_total 7",
		"authsync_change_event_discarded_total 4",
		"authsync_audit_dropped_total 5",
		`authsync_login_latency_seconds_bucket{le="0.005"} 2`,
		`authsync_login_latency_seconds_bucket{le="+Inf"} 3`,
		"authsync_login_latency_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmptySource(t *testing.T) {
	src := &fakeSource{snapshot: authsync.MetricsSnapshot{
		Counters:   map[authsync.MetricID]uint64{},
		Histograms: map[authsync.MetricID][]uint64{},
	}}
	if out := NewPrometheusExporterFromSource(src).Render(); out != "" {
		t.Fatalf("expected empty render, got %q", out)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	src := &fakeSource{
		snapshot: authsync.MetricsSnapshot{
			Counters: map[authsync.MetricID]uint64{authsync.MetricLogout: 1},
		},
	}

	rec := httptest.NewRecorder()
	NewPrometheusExporterFromSource(src).Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.Contains(rec.Body.String(), "authsync_logout_total 1") {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}
