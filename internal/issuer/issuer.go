// Package issuer implements the per-thread throttle descriptor
// spec_vnops.c keeps on struct uthread: a reference to the device being
// issued against, the process's low-priority window/bootcache flags, and
// the handshake fields (uu_on_throttlelist, uu_is_throttled,
// uu_was_rethrottled) that let rethrottle_thread safely race with a thread
// that is about to block.
package issuer

import (
	"sync"

	"github.com/arjunmenon/quiesce/internal/device"
	"github.com/arjunmenon/quiesce/internal/tier"
)

// waiter is guarded by the same rethrottleMu as the on-list/throttled state,
// since it is only ever read or written alongside them.

// Issuer is the per-thread (in quiesce: per-goroutine, identified by the
// caller) descriptor threaded through every throttle operation.
type Issuer struct {
	PID int

	// Device is the throttle record this issuer last acquired. It is nil
	// until UpdateOnIssue binds one in.
	Device *device.Device

	// LowPriWindow mirrors the process-level "lowpri" window flag: once a
	// process has been classified into a throttleable tier it stays subject
	// to window checks even across tier transitions within a period.
	LowPriWindow bool

	// Bootcache mirrors the per-thread bootcache override that always
	// forces tier.Tier3 classification regardless of policy.
	Bootcache bool

	rethrottleMu    sync.Mutex
	onList          tier.Tier
	isThrottled     bool
	wasRethrottled  bool
	waiter          *device.Waiter
	currentTier     tier.Tier
}

// CurrentTier returns the tier this issuer was most recently classified
// into, as resolved by UpdateOnIssue or updated by a concurrent Rethrottle.
func (i *Issuer) CurrentTier() tier.Tier {
	i.rethrottleMu.Lock()
	defer i.rethrottleMu.Unlock()
	return i.currentTier
}

// SetCurrentTier records the issuer's resolved tier.
func (i *Issuer) SetCurrentTier(t tier.Tier) {
	i.rethrottleMu.Lock()
	defer i.rethrottleMu.Unlock()
	i.currentTier = t
}

// Waiter returns the wait-list entry this issuer is currently parked on, or
// nil if it isn't parked anywhere.
func (i *Issuer) Waiter() *device.Waiter {
	i.rethrottleMu.Lock()
	defer i.rethrottleMu.Unlock()
	return i.waiter
}

// SetWaiter records the wait-list entry the issuer has just been added to
// (or clears it with nil once the issuer leaves every wait list).
func (i *Issuer) SetWaiter(w *device.Waiter) {
	i.rethrottleMu.Lock()
	defer i.rethrottleMu.Unlock()
	i.waiter = w
}

// New returns a fresh Issuer for the given process id, not yet bound to any
// device and not on any wait list.
func New(pid int) *Issuer {
	return &Issuer{PID: pid, onList: tier.None, currentTier: tier.None}
}

// OnList reports which tier's wait list this issuer currently belongs to,
// or tier.None if it isn't parked anywhere.
func (i *Issuer) OnList() tier.Tier {
	i.rethrottleMu.Lock()
	defer i.rethrottleMu.Unlock()
	return i.onList
}

// SetOnList records which tier's wait list the issuer has been added to.
func (i *Issuer) SetOnList(t tier.Tier) {
	i.rethrottleMu.Lock()
	defer i.rethrottleMu.Unlock()
	i.onList = t
}

// BeginBlocking enters the rethrottle critical section and reports whether
// the issuer should actually block: a concurrent Rethrottle call that fired
// between the caller's decision to block and this call leaves
// wasRethrottled set, which this clears and uses to skip the block, mirroring
// the "uu_was_rethrottled == TRUE" fast path in the I/O-issuing loop.
func (i *Issuer) BeginBlocking() (shouldBlock bool) {
	i.rethrottleMu.Lock()
	defer i.rethrottleMu.Unlock()
	if i.wasRethrottled {
		i.wasRethrottled = false
		return false
	}
	i.isThrottled = true
	return true
}

// EndBlocking leaves the rethrottle critical section once a block attempt
// (successful or short-circuited) has completed.
func (i *Issuer) EndBlocking() {
	i.rethrottleMu.Lock()
	i.isThrottled = false
	i.rethrottleMu.Unlock()
}

// Rethrottle implements rethrottle_thread: if the issuer isn't currently
// blocked, it just marks wasRethrottled so the next BeginBlocking call
// short-circuits; if it is blocked, and newLevel differs from the tier it's
// parked on, the caller (internal/throttle, which holds the device lock and
// can touch the wait lists) is told to wake it by the boolean return.
func (i *Issuer) Rethrottle(newLevel tier.Tier) (shouldWake bool) {
	i.rethrottleMu.Lock()
	defer i.rethrottleMu.Unlock()
	if !i.isThrottled {
		i.wasRethrottled = true
		return false
	}
	if newLevel != i.onList {
		i.isThrottled = false
		return true
	}
	return false
}
