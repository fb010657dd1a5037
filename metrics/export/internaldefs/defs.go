package internaldefs

import (
	goToken "github.com/MrEthical07/goToken"
)

// BucketCount is the number of latency buckets in every histogram snapshot.
const BucketCount = 8

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter, in exposition order.
var CounterDefs = []CounterDef{
	{ID: goToken.MetricIssueSuccess, Name: "gotoken_issue_success_total", Help: "Tokens signed."},
	{ID: goToken.MetricIssueFailure, Name: "gotoken_issue_failure_total", Help: "Sign calls that returned an error."},
	{ID: goToken.MetricIssueEncryptionRejected, Name: "gotoken_issue_encryption_rejected_total", Help: "Issuance attempts under policies requiring encryption."},
	{ID: goToken.MetricIssueNoKey, Name: "gotoken_issue_no_key_total", Help: "Issuance attempts without a usable signing key."},
	{ID: goToken.MetricValidateSuccess, Name: "gotoken_validate_success_total", Help: "Accepted tokens."},
	{ID: goToken.MetricValidateFailure, Name: "gotoken_validate_failure_total", Help: "Rejected tokens."},
	{ID: goToken.MetricValidateMalformed, Name: "gotoken_validate_malformed_total", Help: "Tokens that could not be decoded."},
	{ID: goToken.MetricValidateUnknownKey, Name: "gotoken_validate_unknown_key_total", Help: "Tokens whose kid did not resolve."},
	{ID: goToken.MetricValidateBaselineRejected, Name: "gotoken_validate_baseline_rejected_total", Help: "Tokens failing signature, algorithm or registered-claim checks."},
	{ID: goToken.MetricValidatorRejected, Name: "gotoken_validator_rejected_total", Help: "Tokens rejected by the validator chain."},
	{ID: goToken.MetricTokenRevoked, Name: "gotoken_token_revoked_total", Help: "Tokens rejected as revoked."},
	{ID: goToken.MetricResolveRejected, Name: "gotoken_resolve_rejected_total", Help: "Requests failing policy or tenant resolution."},
	{ID: goToken.MetricCancelled, Name: "gotoken_cancelled_total", Help: "Operations aborted by the caller context."},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricIssueLatency, Name: "gotoken_issue_latency_seconds", Help: "Sign latency histogram."},
	{ID: goToken.MetricValidateLatency, Name: "gotoken_validate_latency_seconds", Help: "Validate latency histogram."},
}

// AuditDroppedName and AuditDroppedHelp describe the audit backpressure counter.
const (
	AuditDroppedName = "gotoken_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramBounds are the upper bounds, in seconds, of the engine's latency buckets.
var HistogramBounds = [BucketCount]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for use inside instrument names.
var HistogramBoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array. Missing buckets read as zero.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
