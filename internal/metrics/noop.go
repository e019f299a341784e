package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncAuthResolved is a no-op.
func (n *NoopRecorder) IncAuthResolved(source string) {}

// IncAuthFailed is a no-op.
func (n *NoopRecorder) IncAuthFailed(reason string) {}

// IncProfileCacheHit is a no-op.
func (n *NoopRecorder) IncProfileCacheHit() {}

// IncProfileCacheMiss is a no-op.
func (n *NoopRecorder) IncProfileCacheMiss() {}

// IncVoucherIssued is a no-op.
func (n *NoopRecorder) IncVoucherIssued() {}

// IncVoucherRejected is a no-op.
func (n *NoopRecorder) IncVoucherRejected(reason string) {}

// IncVoucherCodeCollision is a no-op.
func (n *NoopRecorder) IncVoucherCodeCollision() {}

// IncVoucherRaceLost is a no-op.
func (n *NoopRecorder) IncVoucherRaceLost() {}

// ObserveIssueDuration is a no-op.
func (n *NoopRecorder) ObserveIssueDuration(duration time.Duration) {}

// IncNotification is a no-op.
func (n *NoopRecorder) IncNotification(status string) {}

// IncEventPublished is a no-op.
func (n *NoopRecorder) IncEventPublished(status string) {}
