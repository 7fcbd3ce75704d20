// Package throttle implements the tiered I/O throttling algorithm itself:
// recording window/period state as I/O is issued and completed, deciding
// whether a given issuer should be made to wait, and running the per-device
// timer that promotes waiters once their throttle period has elapsed. The
// control flow is adapted from throttle_info_update_internal,
// throttle_info_end_io_internal, throttle_io_will_be_throttled_internal,
// throttle_lowpri_io, throttle_timer_start, and throttle_timer in
// spec_vnops.c, reshaped around goroutines and channels instead of
// thread_block/wakeup/thread_call.
package throttle

import (
	"context"
	"time"

	"github.com/arjunmenon/quiesce/internal/clock"
	"github.com/arjunmenon/quiesce/internal/device"
	"github.com/arjunmenon/quiesce/internal/issuer"
	"github.com/arjunmenon/quiesce/internal/selfstat"
	"github.com/arjunmenon/quiesce/internal/tier"
	"github.com/arjunmenon/quiesce/internal/trace"
	"github.com/arjunmenon/quiesce/internal/tunable"
)

// Disposition is the outcome of asking whether an I/O would currently be
// throttled, mirroring THROTTLE_DISENGAGED/THROTTLE_ENGAGED/THROTTLE_NOW.
type Disposition int

const (
	Disengaged Disposition = iota
	Engaged
	Now
)

func (d Disposition) String() string {
	switch d {
	case Disengaged:
		return "disengaged"
	case Engaged:
		return "engaged"
	case Now:
		return "now"
	default:
		return "unknown"
	}
}

// Scheduler ties a device Registry, a clock source, and a trace recorder
// together into the operations quiesce.go's façade exposes.
type Scheduler struct {
	Registry *Registry
	clk      clock.Source
	tunables *tunable.Table
	trace    *trace.Recorder
	newTimer func() Timer
	procs    *device.ProcAccounting
	stats    *selfstat.Tracker
}

// New constructs a Scheduler whose device timers are NewRealTimer timers;
// tests replace the newTimer field with a fake to drive period expiry
// deterministically.
func New(clk clock.Source, tbl *tunable.Table, tr *trace.Recorder) *Scheduler {
	return &Scheduler{
		Registry: NewRegistry(clk, tbl),
		clk:      clk,
		tunables: tbl,
		trace:    tr,
		newTimer: NewRealTimer,
		procs:    device.NewProcAccounting(),
		stats:    selfstat.New(),
	}
}

// ProcAccounting returns the process-keyed was-throttled/did-throttle
// counters supplemented from throttle_update_proc_stats (SPEC_FULL.md §4),
// consumed by the status CLI command's report.
func (s *Scheduler) ProcAccounting() *device.ProcAccounting { return s.procs }

// SelfStats returns the scheduler's own lock-hold/timer-cost accounting,
// supplemented from melisai's internal/observer (SPEC_FULL.md §4).
func (s *Scheduler) SelfStats() *selfstat.Tracker { return s.stats }

// Tunables returns the shared window/period/enable table, the mutation
// surface the set_tunable and override_enable MCP tools use to retune a
// live scheduler.
func (s *Scheduler) Tunables() *tunable.Table { return s.tunables }

// Trace returns the scheduler's event recorder, the surface `quiescectl
// trace` drains after driving a workload.
func (s *Scheduler) Trace() *trace.Recorder { return s.trace }

// UpdateOnIssue records that an I/O is being issued at the given tier,
// adapted from throttle_info_update_internal. inflight should be true for
// I/O that will later call EndIO (the strategy-routine path); it is false
// for the synchronous read/write path that only ever opens a window. It
// returns the resolved tier, or tier.None if throttling is globally
// disabled or this device has been disabled.
func (s *Scheduler) UpdateOnIssue(d *device.Device, iss *issuer.Issuer, t tier.Tier, passive, inflight bool) tier.Tier {
	if !d.Enabled() || t == tier.None {
		return tier.None
	}

	d.WithLock(func(st *device.State) {
		now := st.Now()
		if !passive {
			st.SetLastIO(t, now, iss.PID)
			if inflight && !iss.Bootcache {
				st.IncInflight(t)
			} else {
				st.SetWindowStart(t, now)
			}
			s.emit(trace.OpenThrottleWindow, d, iss.PID, t, nil)
		}
		st.SetLastIO(t, now, iss.PID)

		if t.Throttleable() {
			st.IncIOCount()
			s.setInitialWindowLocked(st, iss, d, false)
		}
	})
	iss.SetCurrentTier(t)
	return t
}

// EndIO records completion of an in-flight I/O previously opened through
// UpdateOnIssue(inflight=true), adapted from throttle_info_end_io_internal.
// isWrite refreshes Device.LastWriteTime, the throttle_info_get_last_io_time
// query sync daemons use to decide whether a flush is warranted.
func (s *Scheduler) EndIO(d *device.Device, t tier.Tier, isWrite bool) {
	if t == tier.None {
		return
	}
	var now clock.Micros
	d.WithLock(func(st *device.State) {
		now = st.Now()
		st.SetWindowStart(t, now)
		st.DecInflight(t)
	})
	if isWrite {
		d.RecordWrite(now)
	}
}

// setInitialWindowLocked binds iss to d for the duration of its low-priority
// window, adapted from throttle_info_set_initial_window. Must be called
// with d's lock held.
func (s *Scheduler) setInitialWindowLocked(st *device.State, iss *issuer.Issuer, d *device.Device, bootcache bool) {
	if !s.tunables.IsEnabled() || st.Disabled() {
		return
	}
	if iss.Device == nil {
		iss.Device = d
		iss.LowPriWindow = true
		iss.Bootcache = bootcache
	}
}

// WillBeThrottled reports whether I/O at threadTier would currently be
// throttled on d, adapted from throttle_io_will_be_throttled_internal.
func (s *Scheduler) WillBeThrottled(d *device.Device, threadTier tier.Tier) (disposition Disposition, myLevel, throttlingLevel tier.Tier) {
	if threadTier < tier.Tier1 {
		return Disengaged, tier.None, tier.None
	}
	windowMs := d.WindowMsecs(threadTier)
	engaged := false
	var at tier.Tier
	d.WithLock(func(st *device.State) {
		now := st.Now()
		for lvl := tier.Tier0; lvl < threadTier; lvl++ {
			if st.Inflight(lvl) != 0 {
				at = lvl
				engaged = true
				return
			}
			if st.Elapsed(now, st.WindowStart(lvl)) < int64(windowMs) {
				at = lvl
				engaged = true
				return
			}
		}
	})
	if !engaged {
		return Disengaged, tier.None, tier.None
	}
	count, begin := d.IOCounts()
	if count != begin {
		return Now, threadTier, at
	}
	return Engaged, threadTier, at
}

// emit forwards a trace event if a recorder is attached; nil-safe so
// Scheduler works without one wired in (e.g. unit tests).
func (s *Scheduler) emit(point trace.Point, d *device.Device, pid int, t tier.Tier, extra map[string]any) {
	if s.trace == nil {
		return
	}
	s.trace.Emit(trace.Event{Point: point, Device: device.MaskIndex(d.Mask()), PID: pid, Tier: int(t), Extra: extra})
}

// BlockIfThrottled implements throttle_lowpri_io: if the issuer's I/O is
// currently subject to throttling on its bound device, park it on the
// device's wait list until the timer (or a concurrent Rethrottle call)
// releases it, retrying the throttle check on each wake since a rethrottle
// may have moved it to a different tier. sleepPeriods bounds how many
// period rollovers the caller is willing to wait through; with 0 an Engaged
// result returns at once, while a Now result still parks the issuer. It
// returns the number of times the issuer actually
// blocked, or ctx.Err() if ctx is cancelled while waiting.
func (s *Scheduler) BlockIfThrottled(ctx context.Context, iss *issuer.Issuer, sleepPeriods int) (int, error) {
	if !iss.LowPriWindow || iss.Device == nil {
		return 0, nil
	}
	d := iss.Device
	startPeriod := d.PeriodNum()
	sleepCount := 0
	insertTail := true
	var lastThrottlingLevel tier.Tier

	for {
		myTier := iss.CurrentTier()
		disposition, myLevel, throttlingLevel := s.WillBeThrottled(d, myTier)
		if disposition == Disengaged {
			break
		}
		if disposition == Engaged {
			if sleepPeriods == 0 {
				break
			}
			cur := d.PeriodNum()
			if cur < uint32(startPeriod) || cur-uint32(startPeriod) >= uint32(sleepPeriods) {
				break
			}
		}
		lastThrottlingLevel = throttlingLevel

		if iss.OnList() >= tier.Tier1 && iss.OnList() != myLevel {
			if prev := iss.Waiter(); prev != nil {
				d.WithLock(func(st *device.State) { st.RemoveWaiter(iss.OnList(), prev) })
			}
			iss.SetOnList(tier.None)
			iss.SetWaiter(nil)
			insertTail = true
		}

		w := &device.Waiter{PID: iss.PID, Ready: make(chan struct{})}
		if iss.OnList() < tier.Tier1 {
			if end := s.addToWaitList(d, myLevel, w, insertTail); end {
				break
			}
			iss.SetOnList(myLevel)
			iss.SetWaiter(w)
		}

		if !iss.BeginBlocking() {
			continue
		}
		s.emit(trace.ProcessThrottled, d, iss.PID, myLevel, map[string]any{"throttling_level": int(throttlingLevel)})

		select {
		case <-w.Ready:
		case <-ctx.Done():
			iss.EndBlocking()
			d.WithLock(func(st *device.State) { st.RemoveWaiter(iss.OnList(), w) })
			iss.SetOnList(tier.None)
			iss.SetWaiter(nil)
			return sleepCount, ctx.Err()
		}
		iss.EndBlocking()
		sleepCount++

		if sleepPeriods == 0 {
			insertTail = false
		} else {
			cur := d.PeriodNum()
			if cur < uint32(startPeriod) || cur-uint32(startPeriod) >= uint32(sleepPeriods) {
				insertTail = false
				sleepPeriods = 0
			}
		}
	}

	if iss.OnList() >= tier.Tier1 {
		if w := iss.Waiter(); w != nil {
			d.WithLock(func(st *device.State) { st.RemoveWaiter(iss.OnList(), w) })
		}
		iss.SetOnList(tier.None)
		iss.SetWaiter(nil)
	}
	if sleepCount > 0 && lastThrottlingLevel != tier.None {
		throttlingPID := d.LastIOPID(lastThrottlingLevel)
		s.procs.RecordThrottled(iss.PID, throttlingPID)
	}

	iss.Device = nil
	iss.Bootcache = false
	iss.LowPriWindow = false
	d.Rel()
	return sleepCount, nil
}

// addToWaitList enqueues w on d's tier-t wait list, starting the device
// timer if this is the first waiter at that tier, adapted from
// throttle_add_to_list. It returns true if arming the timer discovered the
// throttle window had already closed (tier.End), meaning the caller should
// not block at all.
func (s *Scheduler) addToWaitList(d *device.Device, t tier.Tier, w *device.Waiter, insertTail bool) bool {
	var startTimer bool
	d.WithLock(func(st *device.State) {
		if st.WaitersEmpty(t) {
			st.SetPeriodStart(t, st.LastIO(t))
			startTimer = true
		}
		st.AddWaiter(t, w, !insertTail)
	})
	if !startTimer {
		return false
	}
	level := s.armTimer(d, false, tier.Start)
	return level == tier.End
}

// armTimer implements throttle_timer_start: it computes the next tier that
// still has waiters within its window, schedules the device timer to fire
// at that deadline (a new Timer is started each time one is needed; a timer
// started earlier is not cancelled), taking a device reference when the
// timer first goes active that fireTimer releases once no tier is gated, and
// returns the tier whose own recent activity is still gating some lower
// tier's waiters (tier.End if nothing is gated any more). fireTimerLocked's
// obsolete-tier drain runs from Tier1 through this return value, so it only
// covers tiers Tier1-Tier3: still-gated tiers above it are left alone.
func (s *Scheduler) armTimer(d *device.Device, updateIOCount bool, wakeLevel tier.Tier) tier.Tier {
	var needTimer, takeRef bool
	var deadline time.Duration
	result := tier.End
	periodMs := d.PeriodMsecs(tier.Tier1)

	d.WithLock(func(st *device.State) {
		now := st.Now()
		if updateIOCount {
			st.SetIOCountBegin(st.IOCount())
			st.IncPeriodNum()
			for lvl := wakeLevel; lvl >= tier.Tier1; lvl-- {
				st.SetPeriodStart(lvl, now)
			}
			st.SetMinTimerDeadline(clock.DeadlineMillis(now, periodMs))
		}

		for throttleLevel := tier.Start; throttleLevel < tier.End; throttleLevel++ {
			elapsed := st.Elapsed(now, st.WindowStart(throttleLevel))
			for level := throttleLevel + 1; level <= tier.End; level++ {
				if st.WaitersEmpty(level) {
					continue
				}
				windowMs := d.WindowMsecs(level)
				if elapsed < int64(windowMs) || st.Inflight(throttleLevel) != 0 {
					needTimer = true
					remaining := int64(windowMs) - elapsed
					if remaining < 0 {
						remaining = 0
					}
					cand := time.Duration(remaining) * time.Millisecond
					if deadline == 0 || cand < deadline {
						deadline = cand
					}
					if result == tier.End || throttleLevel < result {
						result = throttleLevel
					}
				}
			}
		}
		if !needTimer {
			result = tier.End
		}
		if needTimer && !st.TimerActive() {
			st.SetTimerActive(true)
			if !st.TimerRef() {
				st.SetTimerRef(true)
				takeRef = true
			}
		}
	})
	if takeRef {
		d.Ref()
	}

	if needTimer {
		t := s.newTimer()
		t.Start(deadline, func() { s.fireTimer(d) })
	}
	return result
}

// fireTimer implements throttle_timer: it wakes one waiter per fire, chosen
// by rotating throttle_next_wake_level across the tiers, then rearms and
// separately drains every tier the rearm made obsolete.
func (s *Scheduler) fireTimer(d *device.Device) {
	selfstat.Timed(s.stats.ObserveTimerFire, func() { s.fireTimerLocked(d) })
}

func (s *Scheduler) fireTimerLocked(d *device.Device) {
	var wakeWaiter *device.Waiter
	var needWakeup bool
	wakeLevel := tier.Start
	periods := d.Periods()

	d.WithLock(func(st *device.State) {
		st.SetTimerActive(false)
		now := st.Now()

		if st.Elapsed(now, st.PeriodStart(tier.Tier1)) >= int64(periods[tier.Tier1]) {
			lvl := st.NextWake()

			for i := tier.Start; i < tier.End; i++ {
				periodMs := periods[clampPeriodTier(lvl)]
				if st.Elapsed(now, st.PeriodStart(lvl)) >= int64(periodMs) && !st.WaitersEmpty(lvl) {
					needWakeup = true
					wakeLevel = lvl

					next := lvl - 1
					if next == tier.Start {
						next = tier.End
					}
					st.SetNextWake(next)
					break
				}
				lvl--
				if lvl == tier.Start {
					lvl = tier.End
				}
			}
		}

		if needWakeup {
			wakeWaiter = st.PopWaiter(wakeLevel)
		} else {
			wakeLevel = tier.Start
		}
	})

	throttleLevel := s.armTimer(d, needWakeup, wakeLevel)

	if wakeWaiter != nil {
		close(wakeWaiter.Ready)
	}

	// Levels from Tier1 through the newly armed tier no longer have any
	// window gating them, so every waiter still parked on them is obsolete
	// and is released in full, distinct from the single round-robin wake
	// above.
	var toDrain []*device.Waiter
	d.WithLock(func(st *device.State) {
		for lvl := tier.Tier1; lvl <= throttleLevel; lvl++ {
			toDrain = append(toDrain, st.DrainWaiters(lvl)...)
		}
	})
	for _, w := range toDrain {
		close(w.Ready)
	}

	stillNeeded := throttleLevel != tier.End
	var release bool
	d.WithLock(func(st *device.State) {
		if !st.TimerActive() && st.TimerRef() && !stillNeeded {
			st.SetTimerRef(false)
			release = true
		}
	})
	if release {
		d.Rel()
	}
}

// clampPeriodTier maps tier.End (which has no configured period) down to
// Tier3's period, since only Tier1-Tier3 carry a period table entry.
func clampPeriodTier(t tier.Tier) tier.Tier {
	if t > tier.Tier3 {
		return tier.Tier3
	}
	if t < tier.Tier1 {
		return tier.Tier1
	}
	return t
}

// Rethrottle re-evaluates iss's classification and, if it is currently
// parked waiting at a tier that no longer matches, wakes it so it can
// re-enter BlockIfThrottled's loop at the right level. Adapted from
// rethrottle_thread.
func (s *Scheduler) Rethrottle(iss *issuer.Issuer, newLevel tier.Tier) {
	if iss.Device == nil {
		return
	}
	iss.SetCurrentTier(newLevel)
	if !iss.Rethrottle(newLevel) {
		return
	}
	// Remove the waiter from its wait list before signaling it, so a
	// concurrent timer fire can't also drain and close the same Ready
	// channel (unlike wakeup() in the original, a Go channel panics on a
	// second close).
	d := iss.Device
	w := iss.Waiter()
	if w == nil {
		return
	}
	d.WithLock(func(st *device.State) { st.RemoveWaiter(iss.OnList(), w) })
	iss.SetWaiter(nil)
	close(w.Ready)
}
