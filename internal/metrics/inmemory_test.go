package metrics

import (
	"testing"
	"time"
)

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncAuthResolved("claims")
	m.IncAuthResolved("claims")
	m.IncAuthResolved("profile")
	m.IncAuthFailed("invalid_credential")
	m.IncProfileCacheHit()
	m.IncProfileCacheMiss()
	m.IncProfileCacheMiss()
	m.IncVoucherIssued()
	m.IncVoucherRejected("limit_reached")
	m.IncVoucherRaceLost()
	m.ObserveIssueDuration(3 * time.Millisecond)
	m.IncNotification("sent")
	m.IncEventPublished("dropped")

	snap := m.Snapshot()
	if snap.AuthResolved["claims"] != 2 || snap.AuthResolved["profile"] != 1 {
		t.Errorf("AuthResolved = %v", snap.AuthResolved)
	}
	if snap.AuthFailed["invalid_credential"] != 1 {
		t.Errorf("AuthFailed = %v", snap.AuthFailed)
	}
	if snap.ProfileCacheHits != 1 || snap.ProfileCacheMisses != 2 {
		t.Errorf("cache hits/misses = %d/%d", snap.ProfileCacheHits, snap.ProfileCacheMisses)
	}
	if snap.VouchersIssued != 1 || snap.RacesLost != 1 {
		t.Errorf("issued/races = %d/%d", snap.VouchersIssued, snap.RacesLost)
	}
	if snap.VouchersRejected["limit_reached"] != 1 {
		t.Errorf("VouchersRejected = %v", snap.VouchersRejected)
	}
	if snap.IssueDurationCount != 1 || snap.IssueDurationTotalNs != int64(3*time.Millisecond) {
		t.Errorf("issue duration = %d/%d", snap.IssueDurationCount, snap.IssueDurationTotalNs)
	}
	if snap.Notifications["sent"] != 1 || snap.EventsPublished["dropped"] != 1 {
		t.Errorf("side effects = %v %v", snap.Notifications, snap.EventsPublished)
	}
}

func TestInMemoryRecorder_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncAuthFailed("missing_credential")
	snap := m.Snapshot()
	snap.AuthFailed["missing_credential"] = 99

	if got := m.Snapshot().AuthFailed["missing_credential"]; got != 1 {
		t.Errorf("snapshot mutation leaked into recorder: %d", got)
	}
}
