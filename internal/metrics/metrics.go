// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Identity resolution metrics
	IncAuthResolved(source string) // source: "claims" or "profile"
	IncAuthFailed(reason string)   // reason: "missing_credential", "invalid_credential"
	IncProfileCacheHit()
	IncProfileCacheMiss()

	// Voucher issuance metrics
	IncVoucherIssued()
	IncVoucherRejected(reason string) // reason: "inactive", "limit_reached", "not_found"
	IncVoucherCodeCollision()
	IncVoucherRaceLost()
	ObserveIssueDuration(duration time.Duration)

	// Side effects
	IncNotification(status string)   // status: "sent", "skipped", "error"
	IncEventPublished(status string) // status: "success", "dropped"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
