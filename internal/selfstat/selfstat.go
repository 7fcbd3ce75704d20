// Package selfstat accounts for the scheduler's own overhead: time spent
// holding a device mutex and CPU consumed inside the timer callback.
// Adapted from melisai's internal/observer, which tracked melisai's own
// PID/CPU/IO footprint so collectors could exclude self-generated noise;
// quiesce has no separate collector process to exclude noise from, so the
// same "observe my own cost" idea is repointed at the scheduler's two
// suspension-adjacent hot paths (spec.md §5: "held only for short, bounded
// work") so an operator can see what the throttler itself costs.
package selfstat

import (
	"sync"
	"time"
)

// Summary is a point-in-time snapshot of the scheduler's self-overhead,
// surfaced in the status report alongside per-device state.
type Summary struct {
	LockAcquisitions  int64         `json:"lock_acquisitions"`
	LockHoldTotal     time.Duration `json:"lock_hold_total"`
	LockHoldMax       time.Duration `json:"lock_hold_max"`
	TimerFires        int64         `json:"timer_fires"`
	TimerCPUTotal     time.Duration `json:"timer_cpu_total"`
	TimerCPUMax       time.Duration `json:"timer_cpu_max"`
}

// Tracker accumulates lock-hold and timer-callback cost across every device
// in a process. One Tracker is shared process-wide, mirroring observer's
// single process-wide PIDTracker.
type Tracker struct {
	mu      sync.Mutex
	summary Summary
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// ObserveLockHold records one device-mutex critical section's duration.
// Device.WithLock does not call it and neither does internal/throttle, so
// the lock-hold figures stay zero unless a caller reports durations here.
func (t *Tracker) ObserveLockHold(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.LockAcquisitions++
	t.summary.LockHoldTotal += d
	if d > t.summary.LockHoldMax {
		t.summary.LockHoldMax = d
	}
}

// ObserveTimerFire records one timer-callback invocation's CPU cost.
func (t *Tracker) ObserveTimerFire(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.TimerFires++
	t.summary.TimerCPUTotal += d
	if d > t.summary.TimerCPUMax {
		t.summary.TimerCPUMax = d
	}
}

// Snapshot returns a copy of the accumulated summary.
func (t *Tracker) Snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary
}

// Timed runs fn and reports its wall-clock duration to observe. Used to
// wrap a timer fire without making it know selfstat exists.
func Timed(observe func(time.Duration), fn func()) {
	start := time.Now()
	fn()
	observe(time.Since(start))
}
