// Package tier defines the I/O priority tiers used by the throttling
// scheduler and the rules for classifying an issuer into one.
package tier

// Tier is an I/O priority level. Lower numeric value means higher priority.
// Only Tier1, Tier2, and Tier3 are throttleable; Tier0 is pace-setting and
// never blocks.
type Tier int

const (
	// None means the subsystem did not classify (or is disabled for) this I/O.
	None Tier = iota - 1
	// Start is the sentinel preceding Tier0; used as a loop bound.
	Start
	// Tier0 is non-throttleable foreground I/O.
	Tier0
	// Tier1 is the highest-priority throttleable tier.
	Tier1
	// Tier2 is the middle throttleable tier.
	Tier2
	// Tier3 is the lowest-priority throttleable tier (background/maintenance).
	Tier3
	// End is the sentinel following Tier3; used as a loop bound and as the
	// "nothing to wait for" return value from the wait-queue/timer paths.
	End
)

func (t Tier) String() string {
	switch t {
	case None:
		return "none"
	case Start:
		return "start"
	case Tier0:
		return "tier0"
	case Tier1:
		return "tier1"
	case Tier2:
		return "tier2"
	case Tier3:
		return "tier3"
	case End:
		return "end"
	default:
		return "tier(invalid)"
	}
}

// Throttleable reports whether a thread classified at this tier can ever be
// made to block. Only Tier1-Tier3 can.
func (t Tier) Throttleable() bool {
	return t >= Tier1 && t <= Tier3
}

// Policy is the effective I/O policy a thread carries, independent of any
// bootcache or idle-level adjustment. It mirrors the small set of policies
// the kernel's thread-policy subsystem hands back (IOPOL_*).
type Policy int

const (
	PolicyNormal Policy = iota
	PolicyThrottle
	PolicyPassiveThrottle
	PolicyUtility
	PolicyStandard
)

// TierForPolicy maps a thread I/O policy to its base tier, before any
// bootcache or idle-level adjustment is applied. This mirrors
// throttle_info_io_will_be_throttled's policy switch in the original source.
func TierForPolicy(p Policy) Tier {
	switch p {
	case PolicyThrottle, PolicyPassiveThrottle:
		return Tier3
	case PolicyUtility:
		return Tier2
	case PolicyStandard:
		return Tier1
	default:
		return Tier0
	}
}

// ClassifyInput carries everything Classify needs to compute an issuer's
// effective tier (see spec.md §4.1, thread_tier).
type ClassifyInput struct {
	// Policy is the issuer's base I/O policy.
	Policy Policy
	// Bootcache, when true, forces Tier3 regardless of Policy — used when
	// satisfying boot-cache misses, which must always be throttled.
	Bootcache bool
	// UserIdleLevel is the system's current user-idle level. Any positive
	// value means the machine is considered idle for the purpose of
	// promoting Tier3 maintenance work to Tier2.
	UserIdleLevel int
}

// Classify returns the effective tier for an issuer, implementing
// spec.md §4.1 / throttle_get_thread_throttle_level_internal:
//  1. a Bootcache issuer is always Tier3,
//  2. otherwise the tier derives from Policy,
//  3. a Tier3 result is demoted one step to Tier2 while the user is idle,
//     to let maintenance work make more progress.
func Classify(in ClassifyInput) Tier {
	t := TierForPolicy(in.Policy)
	if in.Bootcache {
		t = Tier3
	}
	if t >= Tier3 && in.UserIdleLevel > 0 {
		t--
	}
	return t
}
