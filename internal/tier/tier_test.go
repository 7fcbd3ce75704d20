package tier

import "testing"

func TestThrottleable(t *testing.T) {
	cases := map[Tier]bool{
		None:  false,
		Start: false,
		Tier0: false,
		Tier1: true,
		Tier2: true,
		Tier3: true,
		End:   false,
	}
	for tr, want := range cases {
		if got := tr.Throttleable(); got != want {
			t.Errorf("Tier(%v).Throttleable() = %v, want %v", tr, got, want)
		}
	}
}

func TestClassifyBootcacheAlwaysTier3(t *testing.T) {
	got := Classify(ClassifyInput{Policy: PolicyNormal, Bootcache: true})
	if got != Tier3 {
		t.Errorf("Classify(bootcache) = %v, want Tier3", got)
	}
}

func TestClassifyIdlePromotesTier3ToTier2(t *testing.T) {
	got := Classify(ClassifyInput{Policy: PolicyThrottle, UserIdleLevel: 128})
	if got != Tier2 {
		t.Errorf("Classify(idle) = %v, want Tier2", got)
	}
}

func TestClassifyNotIdleStaysTier3(t *testing.T) {
	got := Classify(ClassifyInput{Policy: PolicyThrottle, UserIdleLevel: 0})
	if got != Tier3 {
		t.Errorf("Classify(not idle) = %v, want Tier3", got)
	}
}

func TestClassifyPolicyMapping(t *testing.T) {
	cases := []struct {
		policy Policy
		want   Tier
	}{
		{PolicyNormal, Tier0},
		{PolicyStandard, Tier1},
		{PolicyUtility, Tier2},
		{PolicyThrottle, Tier3},
		{PolicyPassiveThrottle, Tier3},
	}
	for _, c := range cases {
		if got := Classify(ClassifyInput{Policy: c.policy}); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.policy, got, c.want)
		}
	}
}

func TestIdleDemotionStillAppliesToBootcache(t *testing.T) {
	// Bootcache forces Tier3 directly, bypassing TierForPolicy, but the
	// idle-level demotion still applies afterward since it only looks at
	// the resulting tier.
	got := Classify(ClassifyInput{Policy: PolicyNormal, Bootcache: true, UserIdleLevel: 1})
	if got != Tier2 {
		t.Errorf("Classify(bootcache+idle) = %v, want Tier2", got)
	}
}
