package selfstat

import (
	"testing"
	"time"
)

func TestTrackerAccumulatesLockHold(t *testing.T) {
	tr := New()
	tr.ObserveLockHold(10 * time.Millisecond)
	tr.ObserveLockHold(30 * time.Millisecond)

	snap := tr.Snapshot()
	if snap.LockAcquisitions != 2 {
		t.Errorf("LockAcquisitions = %d, want 2", snap.LockAcquisitions)
	}
	if snap.LockHoldTotal != 40*time.Millisecond {
		t.Errorf("LockHoldTotal = %v, want 40ms", snap.LockHoldTotal)
	}
	if snap.LockHoldMax != 30*time.Millisecond {
		t.Errorf("LockHoldMax = %v, want 30ms", snap.LockHoldMax)
	}
}

func TestTrackerAccumulatesTimerFires(t *testing.T) {
	tr := New()
	tr.ObserveTimerFire(5 * time.Millisecond)
	tr.ObserveTimerFire(2 * time.Millisecond)

	snap := tr.Snapshot()
	if snap.TimerFires != 2 {
		t.Errorf("TimerFires = %d, want 2", snap.TimerFires)
	}
	if snap.TimerCPUMax != 5*time.Millisecond {
		t.Errorf("TimerCPUMax = %v, want 5ms", snap.TimerCPUMax)
	}
}

func TestTimedReportsElapsedDuration(t *testing.T) {
	tr := New()
	Timed(tr.ObserveTimerFire, func() { time.Sleep(time.Millisecond) })
	if tr.Snapshot().TimerFires != 1 {
		t.Error("expected Timed to invoke the observe callback exactly once")
	}
}
