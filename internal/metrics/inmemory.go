package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AuthResolved         map[string]uint64
	AuthFailed           map[string]uint64
	ProfileCacheHits     uint64
	ProfileCacheMisses   uint64
	VouchersIssued       uint64
	VouchersRejected     map[string]uint64
	CodeCollisions       uint64
	RacesLost            uint64
	IssueDurationCount   uint64
	IssueDurationTotalNs int64
	Notifications        map[string]uint64
	EventsPublished      map[string]uint64
}

// InMemoryRecorder stores metrics in process memory.
type InMemoryRecorder struct {
	profileCacheHits     uint64
	profileCacheMisses   uint64
	vouchersIssued       uint64
	codeCollisions       uint64
	racesLost            uint64
	issueDurationCount   uint64
	issueDurationTotalNs int64

	mu       sync.Mutex
	labelled map[string]map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{labelled: make(map[string]map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		AuthResolved:         m.copyLabel("auth_resolved"),
		AuthFailed:           m.copyLabel("auth_failed"),
		ProfileCacheHits:     atomic.LoadUint64(&m.profileCacheHits),
		ProfileCacheMisses:   atomic.LoadUint64(&m.profileCacheMisses),
		VouchersIssued:       atomic.LoadUint64(&m.vouchersIssued),
		VouchersRejected:     m.copyLabel("voucher_rejected"),
		CodeCollisions:       atomic.LoadUint64(&m.codeCollisions),
		RacesLost:            atomic.LoadUint64(&m.racesLost),
		IssueDurationCount:   atomic.LoadUint64(&m.issueDurationCount),
		IssueDurationTotalNs: atomic.LoadInt64(&m.issueDurationTotalNs),
		Notifications:        m.copyLabel("notification"),
		EventsPublished:      m.copyLabel("event_published"),
	}
}

func (m *InMemoryRecorder) incLabel(name, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counters, ok := m.labelled[name]
	if !ok {
		counters = make(map[string]uint64)
		m.labelled[name] = counters
	}
	counters[label]++
}

func (m *InMemoryRecorder) copyLabel(name string) map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.labelled[name]))
	for k, v := range m.labelled[name] {
		out[k] = v
	}
	return out
}

// IncAuthResolved increments the resolved counter for the given source.
func (m *InMemoryRecorder) IncAuthResolved(source string) {
	m.incLabel("auth_resolved", source)
}

// IncAuthFailed increments the failure counter for the given reason.
func (m *InMemoryRecorder) IncAuthFailed(reason string) {
	m.incLabel("auth_failed", reason)
}

// IncProfileCacheHit increments profile cache hit counter.
func (m *InMemoryRecorder) IncProfileCacheHit() {
	atomic.AddUint64(&m.profileCacheHits, 1)
}

// IncProfileCacheMiss increments profile cache miss counter.
func (m *InMemoryRecorder) IncProfileCacheMiss() {
	atomic.AddUint64(&m.profileCacheMisses, 1)
}

// IncVoucherIssued increments issued voucher counter.
func (m *InMemoryRecorder) IncVoucherIssued() {
	atomic.AddUint64(&m.vouchersIssued, 1)
}

// IncVoucherRejected increments the rejection counter for the given reason.
func (m *InMemoryRecorder) IncVoucherRejected(reason string) {
	m.incLabel("voucher_rejected", reason)
}

// IncVoucherCodeCollision increments code collision counter.
func (m *InMemoryRecorder) IncVoucherCodeCollision() {
	atomic.AddUint64(&m.codeCollisions, 1)
}

// IncVoucherRaceLost increments the lost-race counter.
func (m *InMemoryRecorder) IncVoucherRaceLost() {
	atomic.AddUint64(&m.racesLost, 1)
}

// ObserveIssueDuration records issuance duration.
func (m *InMemoryRecorder) ObserveIssueDuration(duration time.Duration) {
	atomic.AddUint64(&m.issueDurationCount, 1)
	atomic.AddInt64(&m.issueDurationTotalNs, duration.Nanoseconds())
}

// IncNotification increments the notification counter for the given status.
func (m *InMemoryRecorder) IncNotification(status string) {
	m.incLabel("notification", status)
}

// IncEventPublished increments the event counter for the given status.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	m.incLabel("event_published", status)
}
