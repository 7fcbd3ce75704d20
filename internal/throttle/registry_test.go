package throttle

import (
	"testing"

	"github.com/arjunmenon/quiesce/internal/clock"
	"github.com/arjunmenon/quiesce/internal/tunable"
)

func newTestRegistry() *Registry {
	return NewRegistry(clock.NewFake(0), tunable.NewDefault())
}

func TestRefByMaskCreatesOnFirstUse(t *testing.T) {
	r := newTestRegistry()
	d := r.RefByMask(1<<4, false)
	if d == nil {
		t.Fatal("expected a device")
	}
	d2, ok := r.Lookup(1 << 4)
	if !ok || d2 != d {
		t.Error("expected Lookup to find the same device created by RefByMask")
	}
}

func TestRefByMaskIncrementsExisting(t *testing.T) {
	r := newTestRegistry()
	d1 := r.RefByMask(1<<2, false)
	d2 := r.RefByMask(1<<2, false)
	if d1 != d2 {
		t.Error("expected the same device instance for the same mask")
	}
}

func TestMountRefSwapsOldBinding(t *testing.T) {
	r := newTestRegistry()
	a := r.RefByMask(1<<0, false)
	_ = a
	bound := r.MountRef("/mnt/data", 1<<0, false)
	d, ok := r.MountDevice("/mnt/data")
	if !ok || d != bound {
		t.Fatal("expected mount binding to be recorded")
	}
	rebind := r.MountRef("/mnt/data", 1<<1, true)
	d, ok = r.MountDevice("/mnt/data")
	if !ok || d != rebind {
		t.Error("expected MountRef to replace the old binding")
	}
}

func TestMountRelClearsBinding(t *testing.T) {
	r := newTestRegistry()
	r.MountRef("/mnt/x", 1<<5, false)
	r.MountRel("/mnt/x")
	if _, ok := r.MountDevice("/mnt/x"); ok {
		t.Error("expected binding to be cleared after MountRel")
	}
}

func TestAllListsEveryDevice(t *testing.T) {
	r := newTestRegistry()
	r.RefByMask(1<<0, false)
	r.RefByMask(1<<1, false)
	if len(r.All()) != 2 {
		t.Errorf("All() returned %d devices, want 2", len(r.All()))
	}
}
