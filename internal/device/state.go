package device

import (
	"github.com/arjunmenon/quiesce/internal/clock"
	"github.com/arjunmenon/quiesce/internal/tier"
)

// WithLock runs fn while holding the device's mutex, giving internal/throttle
// a single serialization point for the multi-field read-modify-write
// sequences that correspond to spec_vnops.c's lck_mtx_lock(&info->throttle_lock)
// critical sections (throttle_timer_start, throttle_timer, throttle_add_to_list
// all run under one lock in the original; quiesce keeps that shape rather than
// striping per-field atomics, since the original's invariants span several
// fields at once).
func (d *Device) WithLock(fn func(s *State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn((*State)(d))
}

// State is Device viewed from inside WithLock, exposing the field-level
// operations internal/throttle composes into the scheduler algorithm. It is
// the same memory as Device; the distinct name only marks "must be called
// under the lock".
type State Device

func (s *State) Now() clock.Micros { return s.clk.Now() }

func (s *State) WindowStart(t tier.Tier) clock.Micros { return s.tiers[t].windowStart }
func (s *State) SetWindowStart(t tier.Tier, at clock.Micros) { s.tiers[t].windowStart = at }

func (s *State) PeriodStart(t tier.Tier) clock.Micros { return s.tiers[t].periodStart }
func (s *State) SetPeriodStart(t tier.Tier, at clock.Micros) { s.tiers[t].periodStart = at }

func (s *State) LastIO(t tier.Tier) clock.Micros { return s.tiers[t].lastIO }
func (s *State) SetLastIO(t tier.Tier, at clock.Micros, pid int) {
	s.tiers[t].lastIO = at
	s.tiers[t].lastIOPID = pid
}
func (s *State) LastIOPID(t tier.Tier) int { return s.tiers[t].lastIOPID }

func (s *State) Inflight(t tier.Tier) int32 { return s.tiers[t].inflight }
func (s *State) IncInflight(t tier.Tier)    { s.tiers[t].inflight++ }
func (s *State) DecInflight(t tier.Tier) {
	if s.tiers[t].inflight > 0 {
		s.tiers[t].inflight--
	}
}

func (s *State) LastWriteTimestamp() clock.Micros     { return s.lastWriteTimestamp }
func (s *State) SetLastWriteTimestamp(at clock.Micros) { s.lastWriteTimestamp = at }

func (s *State) MinTimerDeadline() clock.Micros     { return s.minTimerDeadline }
func (s *State) SetMinTimerDeadline(at clock.Micros) { s.minTimerDeadline = at }

func (s *State) TimerActive() bool      { return s.timerActive }
func (s *State) SetTimerActive(v bool)  { s.timerActive = v }
func (s *State) TimerRef() bool         { return s.timerRef }
func (s *State) SetTimerRef(v bool)     { s.timerRef = v }

func (s *State) NextWake() tier.Tier     { return s.nextWake }
func (s *State) SetNextWake(t tier.Tier) { s.nextWake = t }

func (s *State) IOCount() int32          { return s.ioCount }
func (s *State) IncIOCount()             { s.ioCount++ }
func (s *State) IOCountBegin() int32     { return s.ioCountBegin }
func (s *State) SetIOCountBegin(v int32) { s.ioCountBegin = v }

func (s *State) PeriodNum() uint32  { return s.periodNum }
func (s *State) IncPeriodNum()      { s.periodNum++ }

func (s *State) FusionWithPriority() bool { return s.fusionWithPriority }
func (s *State) Disabled() bool           { return s.disabled }

// WaitersEmpty reports whether tier t currently has any parked waiters,
// mirroring TAILQ_EMPTY(&info->throttle_uthlist[level]).
func (s *State) WaitersEmpty(t tier.Tier) bool { return len(s.tiers[t].waiters) == 0 }

// WaitQueueLen returns the number of threads currently parked at tier t,
// the saturation signal a report snapshot exposes per tier.
func (s *State) WaitQueueLen(t tier.Tier) int { return len(s.tiers[t].waiters) }

// AddWaiter parks w on tier t's wait list. insertHead mirrors
// TAILQ_INSERT_HEAD (used by the priority-inversion-avoidance path in
// throttle_add_to_list); otherwise the waiter goes to the tail like a
// normal arrival.
func (s *State) AddWaiter(t tier.Tier, w *Waiter, insertHead bool) {
	if insertHead {
		s.tiers[t].waiters = append([]*Waiter{w}, s.tiers[t].waiters...)
		return
	}
	s.tiers[t].waiters = append(s.tiers[t].waiters, w)
}

// RemoveWaiter removes w from tier t's wait list if present.
func (s *State) RemoveWaiter(t tier.Tier, w *Waiter) {
	list := s.tiers[t].waiters
	for i, cur := range list {
		if cur == w {
			s.tiers[t].waiters = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// DrainWaiters removes and returns every waiter currently parked at tier t,
// matching the TAILQ_FOREACH_SAFE wakeup loop in throttle_timer that empties
// a level once its period has elapsed.
func (s *State) DrainWaiters(t tier.Tier) []*Waiter {
	list := s.tiers[t].waiters
	s.tiers[t].waiters = nil
	return list
}

// PopWaiter removes and returns the waiter at the head of tier t's wait
// list, or nil if the list is empty. It matches the single
// TAILQ_FIRST/TAILQ_REMOVE pair throttle_timer performs to release exactly
// one waiter per fire, as opposed to DrainWaiters' full-list release.
func (s *State) PopWaiter(t tier.Tier) *Waiter {
	list := s.tiers[t].waiters
	if len(list) == 0 {
		return nil
	}
	w := list[0]
	s.tiers[t].waiters = list[1:]
	return w
}

// Elapsed returns the number of milliseconds elapsed between now and a
// recorded timestamp, clamped to 0.
func (s *State) Elapsed(now, since clock.Micros) int64 {
	return clock.Elapsed(now, since)
}
