package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/authcore"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricIssue, Name: "authcore_token_pairs_issued_total", Help: "Token pairs issued by login, refresh or direct issuance."},
	{ID: authcore.MetricValidateSuccess, Name: "authcore_validate_success_total", Help: "Tokens accepted by validation."},
	{ID: authcore.MetricValidateFailure, Name: "authcore_validate_failure_total", Help: "Tokens rejected by validation."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Consumed refresh tokens presented again."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed logins."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logouts."},
	{ID: authcore.MetricSessionRevoked, Name: "authcore_session_revoked_total", Help: "Sessions revoked explicitly or after reuse."},
	{ID: authcore.MetricRevocationFailOpen, Name: "authcore_revocation_fail_open_total", Help: "Tokens admitted while the revocation lookup was unavailable."},
	{ID: authcore.MetricPermissionDenied, Name: "authcore_permission_denied_total", Help: "Authorization checks that denied access."},
	{ID: authcore.MetricRateLimited, Name: "authcore_rate_limited_total", Help: "Requests rejected by the rate limiter."},
	{ID: authcore.MetricRateLimiterFailOpen, Name: "authcore_rate_limiter_fail_open_total", Help: "Requests admitted while the rate-limit counter was unavailable."},
	{ID: authcore.MetricAuditRecorded, Name: "authcore_audit_recorded_total", Help: "Audit events persisted."},
	{ID: authcore.MetricAuditDropped, Name: "authcore_audit_dropped_total", Help: "Audit events dropped because the queue was full."},
	{ID: authcore.MetricAuditWriteFailed, Name: "authcore_audit_write_failed_total", Help: "Audit events the store failed to persist."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the bucket upper bounds in seconds. The last bucket is
// unbounded.
var HistogramBounds = [8]float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0}

// BucketLabel formats bucket i as a Prometheus le label value.
func BucketLabel(i int) string {
	if i >= len(HistogramBounds)-1 {
		return "+Inf"
	}
	return strconv.FormatFloat(HistogramBounds[i], 'f', -1, 64)
}

// BucketSuffix formats bucket i for use inside an instrument name.
func BucketSuffix(i int) string {
	if i >= len(HistogramBounds)-1 {
		return "inf"
	}
	out := []byte(BucketLabel(i))
	for j := range out {
		if out[j] == '.' {
			out[j] = '_'
		}
	}
	return string(out)
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
