// Package device implements the per-device throttle record: the mutable
// state a single spindle (or SSD) accumulates as I/O is issued against it,
// mirroring struct _throttle_io_info_t in spec_vnops.c. Every device in the
// table is addressed by a one-bit mask (its "devbsdunit"); callers resolve a
// mask to a record with num_trailing_0 semantics (see MaskIndex).
package device

import (
	"sync"

	"github.com/arjunmenon/quiesce/internal/clock"
	"github.com/arjunmenon/quiesce/internal/tier"
	"github.com/arjunmenon/quiesce/internal/tunable"
)

// MaxDevices bounds the device table, matching LOWPRI_MAX_NUM_DEV's role as
// a fixed-size array indexed by mask position.
const MaxDevices = 64

// MaskIndex returns the bit position of the lowest set bit of mask, the
// quiesce equivalent of num_trailing_0. A zero mask returns 64, mirroring
// the C routine's sizeof(n)*8 sentinel for n == 0.
func MaskIndex(mask uint64) int {
	if mask == 0 {
		return 64
	}
	count := 0
	for mask&1 == 0 {
		mask >>= 1
		count++
	}
	return count
}

// LowestSetBitIndex is num_trailing_0 restored verbatim under its original
// name, per SPEC_FULL.md §4 ("supplemented verbatim"); MaskIndex is the same
// function, kept as the name internal/throttle already calls throughout.
func LowestSetBitIndex(mask uint64) int { return MaskIndex(mask) }

// Waiter is a single blocked issuer, parked on a tier's wait list until
// either the timer promotes it or it is woken directly. Ready is closed
// exactly once, by whichever goroutine releases this waiter.
type Waiter struct {
	PID   int
	Ready chan struct{}
}

// perTier holds the window/period/inflight bookkeeping struct
// _throttle_io_info_t keeps once per THROTTLE_LEVEL, indexed by tier.Tier.
type perTier struct {
	windowStart   clock.Micros
	lastIO        clock.Micros
	lastIOPID     int
	periodStart   clock.Micros
	inflight      int32
	waiters       []*Waiter
}

// Device is one entry in the throttle table: the per-tier state above plus
// the fields struct _throttle_io_info_t keeps once per device (timer
// bookkeeping, refcount, io_count, disable/fusion flags).
type Device struct {
	mu sync.Mutex

	tiers [tier.End + 1]perTier

	lastWriteTimestamp clock.Micros
	minTimerDeadline   clock.Micros

	timerActive bool
	timerRef    bool
	nextWake    tier.Tier

	ioCount      int32
	ioCountBegin int32
	periodNum    uint32

	refcnt    int32
	allocated bool

	disabled          bool
	fusionWithPriority bool

	isSSD      bool
	mask       uint64
	clk        clock.Source
	tunables   *tunable.Table
}

// New constructs a Device bound to a mask, clock source, and shared tunable
// table. One Table is shared by every device in the process (spec.md §9),
// the same way _throttle_io_info[] shares throttle_windows_msecs globally.
func New(mask uint64, isSSD bool, clk clock.Source, tunables *tunable.Table) *Device {
	d := &Device{
		mask:               mask,
		isSSD:              isSSD,
		clk:                clk,
		tunables:           tunables,
		allocated:          true,
		refcnt:             1,
		fusionWithPriority: false,
		nextWake:           tier.End,
	}
	now := clk.Now()
	for t := tier.Start; t <= tier.End; t++ {
		d.tiers[t].windowStart = now
		d.tiers[t].periodStart = now
	}
	return d
}

// Ref increments the reference count, mirroring throttle_info_ref. It
// returns the count observed before the increment.
func (d *Device) Ref() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.refcnt
	d.refcnt++
	return old
}

// Rel decrements the reference count, mirroring throttle_info_rel. It
// returns the count observed before the decrement; callers that allocated
// dynamic records (not used by quiesce's fixed table, but kept for parity)
// may free on a 0 result.
func (d *Device) Rel() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.refcnt
	if d.refcnt > 0 {
		d.refcnt--
	}
	return old
}

// SetFusionWithPriority updates the fusion-drive flag and recomputes the
// disabled flag unconditionally, matching the observed spec_vnops.c
// behavior: throttle_disabled is always recomputed as
// !throttle_is_fusion_with_priority on every relevant call rather than
// latched, so repeated calls can never leave disabled=true on a fusion
// device that is currently running with priority.
func (d *Device) SetFusionWithPriority(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fusionWithPriority = v
	d.disabled = !v
}

// Disabled reports whether throttling is currently suppressed for this
// device.
func (d *Device) Disabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disabled
}

// FusionWithPriority reports whether this device is a fusion drive running
// with priority, the flag that keeps Disabled from ever latching true (see
// SetFusionWithPriority).
func (d *Device) FusionWithPriority() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fusionWithPriority
}

// IsSSD reports the media type used to select the period table.
func (d *Device) IsSSD() bool {
	return d.isSSD
}

// Mask returns the device's bit mask.
func (d *Device) Mask() uint64 {
	return d.mask
}

// Periods returns the period table currently in effect for this device.
func (d *Device) Periods() tunable.Periods {
	d.mu.Lock()
	fusion := d.fusionWithPriority
	d.mu.Unlock()
	return d.tunables.PeriodsFor(d.isSSD, fusion)
}

// ResetWindow reinitializes a single tier's window/period timestamps to
// now, matching throttle_info_reset_window.
func (d *Device) ResetWindow(t tier.Tier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clk.Now()
	d.tiers[t].windowStart = now
	d.tiers[t].periodStart = now
}

// SetInitialWindow seeds the window/period start for a tier to an explicit
// timestamp (the handle a fresh first-I/O gets), matching
// throttle_info_set_initial_window.
func (d *Device) SetInitialWindow(t tier.Tier, at clock.Micros) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tiers[t].windowStart = at
	d.tiers[t].periodStart = at
}

// IOCounts returns the device-wide issued-I/O counter and the value it held
// at the start of the current period, for the
// "has anything throttleable already gone out this window" comparison in
// throttle_io_will_be_throttled_internal.
func (d *Device) IOCounts() (count, begin int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ioCount, d.ioCountBegin
}

// PeriodNum returns how many throttle periods the device timer has started,
// the counter BlockIfThrottled measures its sleepPeriods budget against.
func (d *Device) PeriodNum() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.periodNum
}

// PeriodMsecs returns the configured period, in milliseconds, for tier t on
// this device's currently selected period table.
func (d *Device) PeriodMsecs(t tier.Tier) int {
	return d.Periods()[t]
}

// WindowMsecs returns the configured recency window, in milliseconds, for
// tier t (window sizes are process-wide, not per-device).
func (d *Device) WindowMsecs(t tier.Tier) int {
	return d.tunables.Window(t)
}

// Enabled reports the process-wide throttling switch
// (lowpri_throttle_enabled) combined with this device's own disabled flag.
func (d *Device) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunables.IsEnabled() && !d.disabled
}

// LastWriteTime returns the timestamp of the last write completion recorded
// on this device, matching throttle_info_get_last_io_time — used by sync
// daemons to decide whether a flush is warranted.
func (d *Device) LastWriteTime() clock.Micros {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastWriteTimestamp
}

// RecordWrite timestamps a write completion for LastWriteTime, matching the
// write side of throttle_info_end_io_internal's last_io_info bookkeeping.
func (d *Device) RecordWrite(at clock.Micros) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastWriteTimestamp = at
}

// LastIOPID returns the pid that most recently issued I/O at tier t, used
// by BlockIfThrottled to attribute a completed wait to the process that
// caused it (throttle_update_proc_stats).
func (d *Device) LastIOPID(t tier.Tier) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tiers[t].lastIOPID
}

// TierSnapshot is one tier's exported point-in-time state, the unit
// internal/model.TierStats is built from.
type TierSnapshot struct {
	Tier         tier.Tier
	WindowMsecs  int
	PeriodMsecs  int
	Inflight     int32
	WaitQueueLen int
	LastIOPID    int
}

// Snapshot returns a point-in-time view of tiers Tier0 through Tier3 plus the
// device-wide counters a report needs, all read under one lock acquisition
// rather than the several a caller composing Periods/PeriodMsecs/WithLock
// one at a time would take.
func (d *Device) Snapshot() (tiers []TierSnapshot, periodNum uint32, lastWrite clock.Micros, ioCount int32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	periods := d.tunables.PeriodsFor(d.isSSD, d.fusionWithPriority)
	periodNum = d.periodNum
	lastWrite = d.lastWriteTimestamp
	ioCount = d.ioCount

	for t := tier.Tier0; t <= tier.Tier3; t++ {
		tiers = append(tiers, TierSnapshot{
			Tier:         t,
			WindowMsecs:  d.tunables.Window(t),
			PeriodMsecs:  periods[t],
			Inflight:     d.tiers[t].inflight,
			WaitQueueLen: len(d.tiers[t].waiters),
			LastIOPID:    d.tiers[t].lastIOPID,
		})
	}
	return
}
