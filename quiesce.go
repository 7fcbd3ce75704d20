// Package quiesce is the top-level façade re-exporting the tiered I/O
// throttling scheduler's external interface surface as package functions,
// the way cmd/melisai/main.go calls straight into melisai's internal
// packages but collapsed into a single import for library consumers that
// embed the scheduler directly instead of shelling out to quiescectl.
package quiesce

import (
	"context"
	"fmt"
	"sync"

	"github.com/arjunmenon/quiesce/internal/clock"
	"github.com/arjunmenon/quiesce/internal/device"
	"github.com/arjunmenon/quiesce/internal/issuer"
	"github.com/arjunmenon/quiesce/internal/throttle"
	"github.com/arjunmenon/quiesce/internal/tier"
	"github.com/arjunmenon/quiesce/internal/trace"
	"github.com/arjunmenon/quiesce/internal/tunable"
)

var (
	initOnce sync.Once
	initErr  error
	sched    *throttle.Scheduler

	issuerMu sync.Mutex
	issuers  = map[int]*issuer.Issuer{}
)

// Handle is an opaque device reference, the quiesce equivalent of the
// kernel's throttle_info pointer — returned by Create, MountRef,
// AcquireByMask, and UpdateByMount, and threaded into every per-device
// operation below.
type Handle struct {
	dev *device.Device
}

// Init performs the one-time setup spec.md §6 describes: load tunables in
// the built-in-default -> config-file -> environment order
// internal/tunable.Table documents, and construct the scheduler. Init is
// idempotent-safe: later calls observe the same error (or nil) the first
// call produced and do not reinitialize. configPath may be empty to use
// built-in defaults plus QUIESCE_* environment overrides only.
func Init(configPath string) error {
	initOnce.Do(func() {
		tbl := tunable.NewDefault()
		if err := tbl.LoadConfigFile(configPath); err != nil {
			initErr = fmt.Errorf("quiesce: load tunable config: %w", err)
			return
		}
		tbl.LoadEnv()
		sched = throttle.New(clock.NewSystemSource(), tbl, trace.New(4096))
	})
	return initErr
}

// mustScheduler panics if Init has not successfully run, mirroring the
// kernel's assumption that throttle_init() has already completed by the
// time any other entry point is reachable.
func mustScheduler() *throttle.Scheduler {
	if sched == nil {
		panic("quiesce: Init must be called before any other operation")
	}
	return sched
}

// issuerFor returns the Issuer tracking pid, creating one on first use —
// the package-level equivalent of the per-thread uthread descriptor
// spec_vnops.c keeps inline on every thread.
func issuerFor(pid int) *issuer.Issuer {
	issuerMu.Lock()
	defer issuerMu.Unlock()
	iss, ok := issuers[pid]
	if !ok {
		iss = issuer.New(pid)
		issuers[pid] = iss
	}
	return iss
}

// Create allocates a dynamic device record, refcount 1, never installed in
// the mask-indexed table and so never reachable through AcquireByMask or
// RefByMask — the package-level equivalent of throttle_info_create. See
// Registry.CreateDynamic for why this is a distinct allocation path rather
// than RefByMask with a reserved mask value.
func Create(isSSD bool) *Handle {
	s := mustScheduler()
	return &Handle{dev: s.Registry.CreateDynamic(isSSD)}
}

// Release drops one reference on h, matching throttle_info_release.
func Release(h *Handle) {
	h.dev.Rel()
}

// MountRef attaches a reference owned by a filesystem mount, matching
// throttle_info_mount_ref.
func MountRef(mount string, mask uint64, isSSD bool) *Handle {
	s := mustScheduler()
	return &Handle{dev: s.Registry.MountRef(mount, mask, isSSD)}
}

// MountRel detaches the reference owned by mount, matching
// throttle_info_mount_rel.
func MountRel(mount string) {
	mustScheduler().Registry.MountRel(mount)
}

// UpdateByMount returns the device reference currently bound to mount, the
// equivalent of throttle_info_update_by_mount.
func UpdateByMount(mount string) (*Handle, bool) {
	d, ok := mustScheduler().Registry.MountDevice(mount)
	if !ok {
		return nil, false
	}
	return &Handle{dev: d}, true
}

// AcquireByMask obtains a reference using the lowest set bit of mask,
// matching throttle_info_ref_by_mask.
func AcquireByMask(mask uint64, isSSD bool) *Handle {
	return &Handle{dev: mustScheduler().Registry.RefByMask(mask, isSSD)}
}

// ReleaseByMask releases a reference obtained through AcquireByMask,
// matching throttle_info_rel_by_mask.
func ReleaseByMask(mask uint64) {
	mustScheduler().Registry.RelByMask(mask)
}

// UpdateOnIssue notifies the scheduler that pid is issuing I/O against h
// under the given policy. passive skips the window/inflight bookkeeping for
// a synchronous call that only wants the resolved tier (see
// Scheduler.UpdateOnIssue); inflight marks the I/O as outstanding until a
// matching EndIO call. It returns the tier the I/O was resolved to,
// matching throttle_info_update_internal.
func UpdateOnIssue(h *Handle, pid int, policy tier.Policy, bootcache, passive, inflight bool) tier.Tier {
	s := mustScheduler()
	iss := issuerFor(pid)
	bootcache = bootcache || iss.Bootcache
	iss.Bootcache = bootcache
	t := tier.Classify(tier.ClassifyInput{Policy: policy, Bootcache: bootcache})
	return s.UpdateOnIssue(h.dev, iss, t, passive, inflight)
}

// EndIO notifies the scheduler that an I/O previously issued at tier t on h
// has completed, matching throttle_info_end_io.
func EndIO(h *Handle, t tier.Tier, isWrite bool) {
	mustScheduler().EndIO(h.dev, t, isWrite)
}

// BlockIfThrottled parks pid, if its most recently resolved tier is
// currently throttled on its device, for up to sleepPeriods period
// expirations, returning the number of sleeps actually taken. It matches
// throttle_info_io_will_be_throttled combined with the park loop in
// throttle_lowpri_io.
func BlockIfThrottled(ctx context.Context, pid int, sleepPeriods int) (int, error) {
	s := mustScheduler()
	return s.BlockIfThrottled(ctx, issuerFor(pid), sleepPeriods)
}

// ResetWindow drops pid's current-tier window without waiting, matching
// throttle_info_reset_window — used when a bootcache-satisfied read should
// not pay throttle cost.
func ResetWindow(pid int) {
	iss := issuerFor(pid)
	if iss.Device == nil {
		return
	}
	iss.Device = nil
	iss.LowPriWindow = false
	iss.Bootcache = false
}

// Override flips the process-wide throttling enable flag, matching
// throttle_info_override. When disabled, UpdateOnIssue always resolves to
// tier.None and BlockIfThrottled no-ops for every device.
func Override(enable bool) {
	mustScheduler().Tunables().SetEnabled(enable)
}

// Disable disables (or, with isFusion, switches to fusion-with-priority
// mode) the device at mask, matching throttle_info_disable_throttle. See
// spec.md §4.8 and DESIGN.md for the fusion-with-priority "disabled is
// always recomputed as !is_fusion" behavior this preserves.
func Disable(mask uint64, isFusion bool) {
	s := mustScheduler()
	d, ok := s.Registry.Lookup(mask)
	if !ok {
		d = s.Registry.RefByMask(mask, false)
	}
	d.SetFusionWithPriority(isFusion)
}

// IOWillBeThrottled queries, without side effects, what would happen to an
// I/O at the tier policy resolves to on h, matching
// throttle_io_will_be_throttled.
func IOWillBeThrottled(h *Handle, policy tier.Policy) throttle.Disposition {
	t := tier.Classify(tier.ClassifyInput{Policy: policy})
	disposition, _, _ := mustScheduler().WillBeThrottled(h.dev, t)
	return disposition
}

// SetThreadPolicy forwards pid's I/O policy classification input, included
// for completeness with spec.md §6's external interface table — quiesce's
// tier resolution happens per-call in UpdateOnIssue rather than being
// latched ahead of time, so this only updates the bootcache override the
// next UpdateOnIssue call will honor.
func SetThreadPolicy(pid int, bootcache bool) {
	issuerFor(pid).Bootcache = bootcache
}

// Rethrottle re-evaluates pid's tier while it may be blocked, matching
// rethrottle_thread — called when a thread's I/O policy changes out from
// under a pending BlockIfThrottled call.
func Rethrottle(pid int, newLevel tier.Tier) {
	mustScheduler().Rethrottle(issuerFor(pid), newLevel)
}
