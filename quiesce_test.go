package quiesce

import (
	"context"
	"testing"

	"github.com/arjunmenon/quiesce/internal/tier"
)

func ensureInit(t *testing.T) {
	t.Helper()
	if err := Init(""); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	ensureInit(t)
	if err := Init("/nonexistent/path/should/be/ignored.json"); err != nil {
		t.Fatalf("second Init() call returned %v, want nil (once semantics)", err)
	}
}

func TestAcquireAndReleaseByMask(t *testing.T) {
	ensureInit(t)
	h := AcquireByMask(0x1000, false)
	if h == nil || h.dev == nil {
		t.Fatal("AcquireByMask returned a nil handle")
	}
	ReleaseByMask(0x1000)
}

func TestCreateIsNotBoundToAnAcquirableMask(t *testing.T) {
	ensureInit(t)
	h := Create(true)
	if h == nil || h.dev == nil {
		t.Fatal("Create returned a nil handle")
	}
	defer Release(h)

	for _, mask := range []uint64{1, 2, 4, 8, 16, 32, 64} {
		acquired := AcquireByMask(mask, false)
		if acquired.dev == h.dev {
			t.Fatalf("Create's device aliased the device reachable through AcquireByMask(%#x)", mask)
		}
		ReleaseByMask(mask)
	}

	h2 := Create(false)
	defer Release(h2)
	if h2.dev == h.dev {
		t.Error("two separate Create calls returned the same device record")
	}
}

func TestMountRefRebindsAndMountRelClears(t *testing.T) {
	ensureInit(t)
	MountRef("/mnt/data", 0x2000, false)
	h, ok := UpdateByMount("/mnt/data")
	if !ok || h == nil {
		t.Fatal("UpdateByMount did not find the device bound by MountRef")
	}
	MountRel("/mnt/data")
	if _, ok := UpdateByMount("/mnt/data"); ok {
		t.Error("UpdateByMount still found a device after MountRel")
	}
}

func TestUpdateOnIssueAndEndIORoundTrip(t *testing.T) {
	ensureInit(t)
	h := AcquireByMask(0x4000, false)
	pid := 9001

	resolved := UpdateOnIssue(h, pid, tier.PolicyThrottle, false, false, true)
	if !resolved.Throttleable() {
		t.Fatalf("UpdateOnIssue resolved %v, want a throttleable tier for PolicyThrottle", resolved)
	}
	EndIO(h, resolved, false)
}

func TestUpdateOnIssueRespectsBootcacheOverride(t *testing.T) {
	ensureInit(t)
	h := AcquireByMask(0x8000, false)
	resolved := UpdateOnIssue(h, 9002, tier.PolicyNormal, true, false, false)
	if resolved != tier.Tier3 {
		t.Errorf("bootcache-flagged issuer resolved to %v, want Tier3", resolved)
	}
}

func TestOverrideDisablesSchedulerWide(t *testing.T) {
	ensureInit(t)
	h := AcquireByMask(0x10000, false)
	Override(false)
	defer Override(true)

	resolved := UpdateOnIssue(h, 9003, tier.PolicyThrottle, false, false, false)
	if resolved != tier.None {
		t.Errorf("UpdateOnIssue with Override(false) resolved %v, want tier.None", resolved)
	}
}

func TestDisableFusionKeepsDeviceEnabled(t *testing.T) {
	ensureInit(t)
	h := AcquireByMask(0x20000, false)
	Disable(0x20000, true)
	if h.dev.Disabled() {
		t.Error("fusion-with-priority disable unexpectedly left the device disabled")
	}

	Disable(0x20000, false)
	if !h.dev.Disabled() {
		t.Error("non-fusion disable did not set the device's disabled flag")
	}
}

func TestIOWillBeThrottledQueryHasNoSideEffects(t *testing.T) {
	ensureInit(t)
	h := AcquireByMask(0x40000, false)

	before := IOWillBeThrottled(h, tier.PolicyThrottle)
	after := IOWillBeThrottled(h, tier.PolicyThrottle)
	if before != after {
		t.Errorf("IOWillBeThrottled is not idempotent: %v then %v", before, after)
	}
}

func TestResetWindowWithoutAPriorIssueIsANoop(t *testing.T) {
	ensureInit(t)
	ResetWindow(424242) // never issued against any device; must not panic
}

func TestSetThreadPolicyRecordsBootcacheForNextIssue(t *testing.T) {
	ensureInit(t)
	h := AcquireByMask(0x80000, false)
	SetThreadPolicy(9004, true)
	resolved := UpdateOnIssue(h, 9004, tier.PolicyNormal, false, false, false)
	if resolved != tier.Tier3 {
		t.Errorf("resolved %v after SetThreadPolicy bootcache override, want Tier3", resolved)
	}
}

func TestRethrottleOnAnUnblockedIssuerDoesNotPanic(t *testing.T) {
	ensureInit(t)
	AcquireByMask(0x100000, false)
	Rethrottle(9005, tier.Tier1) // issuer never blocked; must be a safe no-op marker
}

func TestBlockIfThrottledReturnsPromptlyWhenNotThrottled(t *testing.T) {
	ensureInit(t)
	h := AcquireByMask(0x200000, false)
	resolved := UpdateOnIssue(h, 9006, tier.PolicyNormal, false, false, false)
	if resolved.Throttleable() {
		t.Fatalf("PolicyNormal resolved to %v, want a non-throttleable tier", resolved)
	}
	sleeps, err := BlockIfThrottled(context.Background(), 9006, 4)
	if err != nil {
		t.Fatalf("BlockIfThrottled error = %v", err)
	}
	if sleeps != 0 {
		t.Errorf("BlockIfThrottled slept %d times for a non-throttleable issuer, want 0", sleeps)
	}
}
