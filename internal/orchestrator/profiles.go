// Package orchestrator assembles a model.Report from the scheduler's live
// state and, when asked, cross-validates it against real kernel block-layer
// behavior. Adapted from melisai's internal/orchestrator, which ran a
// fixed set of collectors in parallel under a profile-scoped timeout;
// quiesce has one always-on "collector" (the registry snapshot, which is
// synchronous and cheap) and a variable set of internal/diagexec
// cross-validators, so the profile now scopes validator depth and overall
// timeout instead of which /proc scrapers run.
package orchestrator

import "time"

// Profile controls how much real-kernel cross-validation a Run performs
// alongside the always-on scheduler snapshot.
type Profile struct {
	// Timeout bounds the whole Run, snapshot plus cross-validation.
	Timeout time.Duration
	// Validators names which internal/diagexec cross-validators to run,
	// or ["all"] for every validator the orchestrator was given.
	Validators []string
}

// profiles contains the built-in profile presets.
var profiles = map[string]Profile{
	"quick": {
		Timeout:    2 * time.Second,
		Validators: nil, // snapshot only, no external processes
	},
	"standard": {
		Timeout:    15 * time.Second,
		Validators: []string{"iostat"},
	},
	"deep": {
		Timeout:    60 * time.Second,
		Validators: []string{"all"},
	},
}

// GetProfile returns the named profile, falling back to "standard" if name
// is unrecognized.
func GetProfile(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles["standard"]
}

// ProfileNames returns the built-in profile names.
func ProfileNames() []string {
	return []string{"quick", "standard", "deep"}
}

// wantsValidator reports whether p's validator list includes name, treating
// ["all"] as matching everything.
func (p Profile) wantsValidator(name string) bool {
	for _, v := range p.Validators {
		if v == "all" || v == name {
			return true
		}
	}
	return false
}
