package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/arjunmenon/quiesce/internal/clock"
	"github.com/arjunmenon/quiesce/internal/device"
	"github.com/arjunmenon/quiesce/internal/issuer"
	"github.com/arjunmenon/quiesce/internal/tier"
	"github.com/arjunmenon/quiesce/internal/trace"
	"github.com/arjunmenon/quiesce/internal/tunable"
)

func newTestScheduler(t *testing.T) (*Scheduler, *clock.Fake, *fakeTimerFactory) {
	t.Helper()
	fake := clock.NewFake(0)
	tbl := tunable.NewDefault()
	s := New(fake, tbl, trace.New(16))
	factory := newFakeTimerFactory()
	s.newTimer = factory.new
	return s, fake, factory
}

func TestUpdateOnIssueOpensWindowAndTracksIOCount(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	d := s.Registry.RefByMask(1, false)
	iss := issuer.New(42)

	got := s.UpdateOnIssue(d, iss, tier.Tier2, false, false)
	if got != tier.Tier2 {
		t.Fatalf("UpdateOnIssue returned %v, want Tier2", got)
	}
	count, _ := d.IOCounts()
	if count != 1 {
		t.Errorf("IOCounts count = %d, want 1", count)
	}
	if iss.Device != d {
		t.Error("expected issuer bound to device after a throttleable tier")
	}
}

func TestUpdateOnIssueReturnsNoneWhenDisabled(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	d := s.Registry.RefByMask(1, false)
	iss := issuer.New(1)
	got := s.UpdateOnIssue(d, iss, tier.None, false, false)
	if got != tier.None {
		t.Errorf("expected tier.None passthrough, got %v", got)
	}
}

func TestWillBeThrottledDisengagedBelowThrottleTier(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	d := s.Registry.RefByMask(1, false)
	disposition, _, _ := s.WillBeThrottled(d, tier.Tier0)
	if disposition != Disengaged {
		t.Errorf("disposition = %v, want Disengaged", disposition)
	}
}

func TestWillBeThrottledEngagedWithinWindow(t *testing.T) {
	s, fake, _ := newTestScheduler(t)
	d := s.Registry.RefByMask(1, false)
	iss := issuer.New(1)

	s.UpdateOnIssue(d, iss, tier.Tier0, false, false)
	fake.Advance(1)

	disposition, myLevel, throttlingLevel := s.WillBeThrottled(d, tier.Tier1)
	if disposition == Disengaged {
		t.Fatal("expected throttling to be engaged shortly after tier0 activity")
	}
	if myLevel != tier.Tier1 {
		t.Errorf("myLevel = %v, want Tier1", myLevel)
	}
	if throttlingLevel != tier.Tier0 {
		t.Errorf("throttlingLevel = %v, want Tier0", throttlingLevel)
	}
}

func TestWillBeThrottledDisengagesAfterWindowExpires(t *testing.T) {
	s, fake, _ := newTestScheduler(t)
	d := s.Registry.RefByMask(1, false)
	iss := issuer.New(1)

	s.UpdateOnIssue(d, iss, tier.Tier0, false, false)
	fake.Advance(1000) // past every configured window

	disposition, _, _ := s.WillBeThrottled(d, tier.Tier1)
	if disposition != Disengaged {
		t.Errorf("disposition = %v, want Disengaged once window has elapsed", disposition)
	}
}

func TestBlockIfThrottledReturnsImmediatelyWhenNotBound(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	iss := issuer.New(1)
	n, err := s.BlockIfThrottled(context.Background(), iss, 1)
	if err != nil || n != 0 {
		t.Errorf("expected no-op for an unbound issuer, got n=%d err=%v", n, err)
	}
}

// parkWaiter brings up a blocker/waiter pair such that waiter is guaranteed
// to be engaged at Tier1 and starts BlockIfThrottled in its own goroutine,
// returning once the scheduler has armed a timer for the wait.
func parkWaiter(t *testing.T, s *Scheduler, fake *clock.Fake, factory *fakeTimerFactory, sleepPeriods int) (waiter *issuer.Issuer, done chan error) {
	t.Helper()
	dev := s.Registry.RefByMask(1, false)
	blocker := issuer.New(1)
	s.UpdateOnIssue(dev, blocker, tier.Tier0, false, false)
	fake.Advance(1)

	waiter = issuer.New(2)
	s.UpdateOnIssue(dev, waiter, tier.Tier1, false, false)

	done = make(chan error, 1)
	go func() {
		_, err := s.BlockIfThrottled(context.Background(), waiter, sleepPeriods)
		done <- err
	}()

	select {
	case <-factory.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the scheduler to arm a wait timer")
	}
	return waiter, done
}

func TestBlockIfThrottledWakesOnTimerFire(t *testing.T) {
	s, fake, factory := newTestScheduler(t)
	_, done := parkWaiter(t, s, fake, factory, 5)

	fake.Advance(1000)
	factory.fireLatest()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("BlockIfThrottled did not return after timer fire")
	}
}

func TestBlockIfThrottledHonorsContextCancellation(t *testing.T) {
	s, fake, _ := newTestScheduler(t)
	d := s.Registry.RefByMask(1, false)
	blocker := issuer.New(1)
	s.UpdateOnIssue(d, blocker, tier.Tier0, false, false)
	fake.Advance(1)

	waiter := issuer.New(2)
	s.UpdateOnIssue(d, waiter, tier.Tier1, false, false)

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := make(chan error, 1)
	go func() {
		_, err := s.BlockIfThrottled(ctx, waiter, 5)
		resultCh <- err
	}()
	cancel()

	select {
	case err := <-resultCh:
		if err == nil {
			t.Error("expected context cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("BlockIfThrottled did not return after context cancellation")
	}
}

func TestRethrottleWakesParkedIssuerOnLevelChange(t *testing.T) {
	s, fake, factory := newTestScheduler(t)
	waiter, done := parkWaiter(t, s, fake, factory, 5)

	fake.Advance(500)
	s.Rethrottle(waiter, tier.Tier2)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected Rethrottle to eventually unblock the waiter")
	}
}

func TestEndIODecrementsInflightAndRecordsWriteTime(t *testing.T) {
	s, fake, _ := newTestScheduler(t)
	d := s.Registry.RefByMask(1, false)
	iss := issuer.New(7)

	s.UpdateOnIssue(d, iss, tier.Tier1, false, true)
	d.WithLock(func(st *device.State) {
		if st.Inflight(tier.Tier1) != 1 {
			t.Fatalf("inflight = %d, want 1", st.Inflight(tier.Tier1))
		}
	})

	fake.Advance(10)
	s.EndIO(d, tier.Tier1, true)

	d.WithLock(func(st *device.State) {
		if st.Inflight(tier.Tier1) != 0 {
			t.Errorf("inflight after EndIO = %d, want 0", st.Inflight(tier.Tier1))
		}
	})
	if d.LastWriteTime() != fake.Now() {
		t.Errorf("LastWriteTime = %v, want %v", d.LastWriteTime(), fake.Now())
	}
}

// isReady reports whether w.Ready has been closed without blocking.
func isReady(w *device.Waiter) bool {
	select {
	case <-w.Ready:
		return true
	default:
		return false
	}
}

func TestFireTimerReleasesOnlyOneWaiterPerTierPerFire(t *testing.T) {
	s, fake, _ := newTestScheduler(t)
	d := s.Registry.RefByMask(1, false)

	// An inflight blocker at Tier0 that never calls EndIO keeps Tier1's gate
	// open indefinitely, isolating the round-robin single-wake behavior from
	// the separate obsolete-tier drain (which only fires once nothing gates
	// the waiting tier any more).
	blocker := issuer.New(1)
	s.UpdateOnIssue(d, blocker, tier.Tier0, false, true)
	fake.Advance(1)

	waiterA := &device.Waiter{PID: 2, Ready: make(chan struct{})}
	waiterB := &device.Waiter{PID: 3, Ready: make(chan struct{})}
	d.WithLock(func(st *device.State) {
		st.SetPeriodStart(tier.Tier1, st.Now())
		st.AddWaiter(tier.Tier1, waiterA, false)
		st.AddWaiter(tier.Tier1, waiterB, false)
	})

	fake.Advance(d.PeriodMsecs(tier.Tier1) + 10)
	s.fireTimerLocked(d)

	if isReady(waiterA) == isReady(waiterB) {
		t.Fatalf("expected exactly one waiter released per fire, got A released=%v B released=%v", isReady(waiterA), isReady(waiterB))
	}
	d.WithLock(func(st *device.State) {
		if got := st.WaitQueueLen(tier.Tier1); got != 1 {
			t.Errorf("WaitQueueLen(Tier1) = %d, want 1 remaining after a single-waiter fire", got)
		}
	})

	fake.Advance(d.PeriodMsecs(tier.Tier1) + 10)
	s.fireTimerLocked(d)

	if !isReady(waiterA) || !isReady(waiterB) {
		t.Error("expected both waiters released across two successive period fires")
	}
}

func TestBlockIfThrottledRecordsProcAccounting(t *testing.T) {
	s, fake, factory := newTestScheduler(t)
	_, done := parkWaiter(t, s, fake, factory, 5)

	fake.Advance(1000)
	factory.fireLatest()

	if err := <-done; err != nil {
		t.Fatalf("BlockIfThrottled returned error: %v", err)
	}

	stats := s.ProcAccounting().Stats(2)
	if stats.WasThrottledCount != 1 {
		t.Errorf("WasThrottledCount = %d, want 1", stats.WasThrottledCount)
	}
	blockerStats := s.ProcAccounting().Stats(1)
	if blockerStats.DidThrottleCount != 1 {
		t.Errorf("DidThrottleCount = %d, want 1", blockerStats.DidThrottleCount)
	}
}
