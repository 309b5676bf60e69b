// Package internaldefs holds the shared metric name table for the export
// packages. It exists so the Prometheus and OTel exporters agree on names,
// help strings, and bucket layout without importing each other.
package internaldefs

import (
	authsync "github.com/MrEthical07/authsync"
)

// CounterDef binds a metric id to its exported name and help string.
type CounterDef struct {
	ID   authsync.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram id to its exported name and help string.
type HistogramDef struct {
	ID   authsync.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: authsync.MetricLoginSuccess, Name: "authsync_login_success_total", Help: "Applied login completions."},
	{ID: authsync.MetricLoginFailure, Name: "authsync_login_failure_total", Help: "Rejected login attempts."},
	{ID: authsync.MetricLogout, Name: "authsync_logout_total", Help: "Logout operations."},
	{ID: authsync.MetricRefreshSuccess, Name: "authsync_refresh_success_total", Help: "Applied refresh completions."},
	{ID: authsync.MetricRefreshExpired, Name: "authsync_refresh_expired_total", Help: "Refreshes demoted to implicit logout."},
	{ID: authsync.MetricCheckAuth, Name: "authsync_check_auth_total", Help: "Backend state re-derivations."},
	{ID: authsync.MetricStaleCompletionDiscarded, Name: "authsync_stale_completion_discarded_total", Help: "In-flight completions dropped after a newer reset."},
	{ID: authsync.MetricChangeEventDiscarded, Name: "authsync_change_event_discarded_total", Help: "Raw change events deduplicated by the bridge."},
	{ID: authsync.MetricCacheInvalidation, Name: "authsync_cache_invalidation_total", Help: "Session-scoped cache invalidations."},
	{ID: authsync.MetricPersistFailure, Name: "authsync_persist_failure_total", Help: "Swallowed projection write failures."},
	{ID: authsync.MetricStateRestored, Name: "authsync_state_restored_total", Help: "Startups seeded from durable storage."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authsync.MetricLoginLatency, Name: "authsync_login_latency_seconds", Help: "Login round-trip latency histogram."},
}

// HistogramBounds are the upper bounds of the fixed bucket layout, as
// Prometheus le label values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds as OTel-safe name suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative counts
// both exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
