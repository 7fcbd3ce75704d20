package throttle

import (
	"sync"

	"github.com/arjunmenon/quiesce/internal/clock"
	"github.com/arjunmenon/quiesce/internal/device"
	"github.com/arjunmenon/quiesce/internal/tunable"
)

// Registry is the fixed-size, mask-indexed device table _throttle_io_info[]
// is in spec_vnops.c: one Device per physical unit, created lazily and
// reference-counted rather than allocated up front for LOWPRI_MAX_NUM_DEV
// entries (Go has no reason to preallocate an array of mostly-unused
// mutexes).
type Registry struct {
	mu      sync.Mutex
	clk     clock.Source
	tbl     *tunable.Table
	devices map[int]*device.Device // keyed by device.MaskIndex(mask)
	mounts  map[string]*device.Device
}

// NewRegistry creates an empty device table sharing one clock source and
// tunable table across every device, mirroring _throttle_io_info[]'s shared
// use of the process-wide throttle_windows_msecs/throttle_io_periods.
func NewRegistry(clk clock.Source, tbl *tunable.Table) *Registry {
	return &Registry{
		clk:     clk,
		tbl:     tbl,
		devices: make(map[int]*device.Device),
		mounts:  make(map[string]*device.Device),
	}
}

// RefByMask returns the device for the given bit mask, creating it on first
// use, and increments its reference count — the quiesce equivalent of
// throttle_info_ref_by_mask (num_trailing_0(mask) selects the slot).
func (r *Registry) RefByMask(mask uint64, isSSD bool) *device.Device {
	idx := device.MaskIndex(mask)
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[idx]
	if !ok {
		d = device.New(mask, isSSD, r.clk, r.tbl)
		r.devices[idx] = d
		return d
	}
	d.Ref()
	return d
}

// RelByMask releases a reference obtained through RefByMask, the
// counterpart of throttle_info_rel_by_mask.
func (r *Registry) RelByMask(mask uint64) {
	idx := device.MaskIndex(mask)
	r.mu.Lock()
	d, ok := r.devices[idx]
	r.mu.Unlock()
	if ok {
		d.Rel()
	}
}

// Lookup returns the device at mask if it has already been created,
// without creating one or changing its refcount.
func (r *Registry) Lookup(mask uint64) (*device.Device, bool) {
	idx := device.MaskIndex(mask)
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[idx]
	return d, ok
}

// CreateDynamic allocates a device record that is never installed in the
// mask-indexed table, the counterpart of throttle_info_create. Dynamic
// records carry mask 0, whose MaskIndex (64) falls outside the 0-63 range
// every real mask produces, so a handle obtained this way can never alias
// one reachable through RefByMask/AcquireByMask — unlike routing it through
// RefByMask with a hand-picked "high" mask, which only changes the mask's
// magnitude and not its lowest-set-bit index.
func (r *Registry) CreateDynamic(isSSD bool) *device.Device {
	return device.New(0, isSSD, r.clk, r.tbl)
}

// MountRef binds mountKey to the device for mask, releasing whatever device
// was previously bound to that mount point, matching throttle_info_mount_ref
// (a mount always holds exactly one throttle reference, swapped atomically
// under the registry lock rather than the vnode's own lock).
func (r *Registry) MountRef(mountKey string, mask uint64, isSSD bool) *device.Device {
	d := r.RefByMask(mask, isSSD)
	r.mu.Lock()
	old, ok := r.mounts[mountKey]
	r.mounts[mountKey] = d
	r.mu.Unlock()
	if ok {
		old.Rel()
	}
	return d
}

// MountRel releases the device currently bound to mountKey, matching
// throttle_info_mount_rel.
func (r *Registry) MountRel(mountKey string) {
	r.mu.Lock()
	d, ok := r.mounts[mountKey]
	delete(r.mounts, mountKey)
	r.mu.Unlock()
	if ok {
		d.Rel()
	}
}

// MountDevice returns the device currently bound to mountKey, if any.
func (r *Registry) MountDevice(mountKey string) (*device.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.mounts[mountKey]
	return d, ok
}

// All returns every device currently tracked, for status/diagnostic
// surfaces that need to enumerate the whole table.
func (r *Registry) All() []*device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*device.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}
