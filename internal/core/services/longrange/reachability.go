package longrange

import (
	"sync"
	"time"
)

// reachRecord is the hysteresis state for one device. Records are created
// lazily on the first poll attempt and live for the process lifetime. Each
// record is independent: no operation ever touches two devices at once.
type reachRecord struct {
	lastSuccess time.Time
	failures    int
	active      bool
}

// ReachabilityTable tracks which devices are currently reachable over the
// long-range transport. It is written by poll cycles and read concurrently by
// the arbitration check on the short-range path.
type ReachabilityTable struct {
	mu        sync.RWMutex
	records   map[string]*reachRecord
	threshold int
}

// NewReachabilityTable creates a table that flips a device inactive after
// threshold consecutive failures.
func NewReachabilityTable(threshold int) *ReachabilityTable {
	return &ReachabilityTable{
		records:   make(map[string]*reachRecord),
		threshold: threshold,
	}
}

// MarkSuccess records a successful poll. It resets the failure count and
// reports whether the device transitioned from inactive to active.
func (t *ReachabilityTable) MarkSuccess(device string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[device]
	if !ok {
		rec = &reachRecord{}
		t.records[device] = rec
	}
	wasActive := rec.active
	rec.lastSuccess = now
	rec.failures = 0
	rec.active = true
	return !wasActive
}

// MarkFailure records a failed poll. It reports whether this failure crossed
// the threshold and flipped the device from active to inactive.
func (t *ReachabilityTable) MarkFailure(device string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[device]
	if !ok {
		rec = &reachRecord{}
		t.records[device] = rec
	}
	rec.failures++
	if rec.active && rec.failures >= t.threshold {
		rec.active = false
		return true
	}
	return false
}

// IsActive reports whether the device is currently long-range-active.
func (t *ReachabilityTable) IsActive(device string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[device]
	return ok && rec.active
}

// Active returns the ids of all currently active devices.
func (t *ReachabilityTable) Active() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	active := make([]string, 0, len(t.records))
	for device, rec := range t.records {
		if rec.active {
			active = append(active, device)
		}
	}
	return active
}
