// Package tunable holds the per-tier window/period tables and the global
// enable flag, and implements the three-tier override order spec.md §3 and
// §6 describe: built-in defaults, then platform-tree properties, then boot
// arguments (the quiesce equivalents being a JSON config file and
// QUIESCE_* environment variables, loaded in that order — see
// SPEC_FULL.md §2).
package tunable

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/arjunmenon/quiesce/internal/tier"
)

// Windows holds the per-tier recency window in milliseconds, indexed by
// tier.Tier. Only Tier1-Tier3 entries are meaningful.
type Windows [tier.End + 1]int

// Periods holds the per-tier throttle period in milliseconds.
type Periods [tier.End + 1]int

// DefaultWindows returns the built-in window defaults from spec.md §3.
func DefaultWindows() Windows {
	var w Windows
	w[tier.Tier1] = 25
	w[tier.Tier2] = 100
	w[tier.Tier3] = 500
	return w
}

// DefaultPeriodsHDD returns the built-in rotational-media period defaults.
func DefaultPeriodsHDD() Periods {
	var p Periods
	p[tier.Tier1] = 40
	p[tier.Tier2] = 85
	p[tier.Tier3] = 200
	return p
}

// DefaultPeriodsSSD returns the built-in solid-state period defaults.
func DefaultPeriodsSSD() Periods {
	var p Periods
	p[tier.Tier1] = 5
	p[tier.Tier2] = 15
	p[tier.Tier3] = 25
	return p
}

// Table is the full set of runtime-tunable parameters: the per-tier window
// table (shared across devices) and both period tables (HDD/SSD, selected
// per-device by Device.IsSSD), plus the global enable flag. One Table is
// shared by every device record in the process, matching the "process-wide
// state with a single initialization point" design note in spec.md §9.
type Table struct {
	mu sync.RWMutex

	Windows    Windows
	PeriodsHDD Periods
	PeriodsSSD Periods
	Enabled    bool
}

// NewDefault returns a Table seeded entirely from built-in defaults.
func NewDefault() *Table {
	return &Table{
		Windows:    DefaultWindows(),
		PeriodsHDD: DefaultPeriodsHDD(),
		PeriodsSSD: DefaultPeriodsSSD(),
		Enabled:    true,
	}
}

// fileOverrides mirrors the JSON config file shape (the quiesce stand-in
// for platform-tree properties in throttle_init_throttle_window/
// throttle_init_throttle_period). Any absent field is left alone.
type fileOverrides struct {
	WindowTier1Msecs *int `json:"window_tier1_msecs"`
	WindowTier2Msecs *int `json:"window_tier2_msecs"`
	WindowTier3Msecs *int `json:"window_tier3_msecs"`

	PeriodTier1Msecs *int `json:"period_tier1_msecs"`
	PeriodTier2Msecs *int `json:"period_tier2_msecs"`
	PeriodTier3Msecs *int `json:"period_tier3_msecs"`

	PeriodSSDTier1Msecs *int `json:"period_ssd_tier1_msecs"`
	PeriodSSDTier2Msecs *int `json:"period_ssd_tier2_msecs"`
	PeriodSSDTier3Msecs *int `json:"period_ssd_tier3_msecs"`
}

// LoadConfigFile applies platform-tree-equivalent overrides from a JSON
// file, matching melisai's encoding/json use (output.WriteJSON,
// diff.LoadReport) rather than pulling in a config library the example
// corpus never reaches for. A missing path is not an error — most devices
// never need an override file.
func (t *Table) LoadConfigFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read tunable config %s: %w", path, err)
	}
	var ov fileOverrides
	if err := json.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("parse tunable config %s: %w", path, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	apply := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&t.Windows[tier.Tier1], ov.WindowTier1Msecs)
	apply(&t.Windows[tier.Tier2], ov.WindowTier2Msecs)
	apply(&t.Windows[tier.Tier3], ov.WindowTier3Msecs)
	apply(&t.PeriodsHDD[tier.Tier1], ov.PeriodTier1Msecs)
	apply(&t.PeriodsHDD[tier.Tier2], ov.PeriodTier2Msecs)
	apply(&t.PeriodsHDD[tier.Tier3], ov.PeriodTier3Msecs)
	apply(&t.PeriodsSSD[tier.Tier1], ov.PeriodSSDTier1Msecs)
	apply(&t.PeriodsSSD[tier.Tier2], ov.PeriodSSDTier2Msecs)
	apply(&t.PeriodsSSD[tier.Tier3], ov.PeriodSSDTier3Msecs)
	return nil
}

// SaveConfigFile writes the table's current values to path in the same
// shape LoadConfigFile reads, letting quiescectl's tune command persist an
// offline change for the next process that loads this config file.
func (t *Table) SaveConfigFile(path string) error {
	t.mu.RLock()
	w1, w2, w3 := t.Windows[tier.Tier1], t.Windows[tier.Tier2], t.Windows[tier.Tier3]
	p1, p2, p3 := t.PeriodsHDD[tier.Tier1], t.PeriodsHDD[tier.Tier2], t.PeriodsHDD[tier.Tier3]
	s1, s2, s3 := t.PeriodsSSD[tier.Tier1], t.PeriodsSSD[tier.Tier2], t.PeriodsSSD[tier.Tier3]
	t.mu.RUnlock()

	ov := fileOverrides{
		WindowTier1Msecs:    &w1,
		WindowTier2Msecs:    &w2,
		WindowTier3Msecs:    &w3,
		PeriodTier1Msecs:    &p1,
		PeriodTier2Msecs:    &p2,
		PeriodTier3Msecs:    &p3,
		PeriodSSDTier1Msecs: &s1,
		PeriodSSDTier2Msecs: &s2,
		PeriodSSDTier3Msecs: &s3,
	}

	data, err := json.MarshalIndent(ov, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tunable config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write tunable config %s: %w", path, err)
	}
	return nil
}

// envOverride names, in the order applied, the QUIESCE_* environment
// variables understood at the boot-argument layer (the last layer applied,
// so the highest precedence).
var envOverride = []struct {
	env    string
	target func(*Table) *int
}{
	{"QUIESCE_WINDOW_TIER1_MSECS", func(t *Table) *int { return &t.Windows[tier.Tier1] }},
	{"QUIESCE_WINDOW_TIER2_MSECS", func(t *Table) *int { return &t.Windows[tier.Tier2] }},
	{"QUIESCE_WINDOW_TIER3_MSECS", func(t *Table) *int { return &t.Windows[tier.Tier3] }},
	{"QUIESCE_PERIOD_TIER1_MSECS", func(t *Table) *int { return &t.PeriodsHDD[tier.Tier1] }},
	{"QUIESCE_PERIOD_TIER2_MSECS", func(t *Table) *int { return &t.PeriodsHDD[tier.Tier2] }},
	{"QUIESCE_PERIOD_TIER3_MSECS", func(t *Table) *int { return &t.PeriodsHDD[tier.Tier3] }},
	{"QUIESCE_PERIOD_SSD_TIER1_MSECS", func(t *Table) *int { return &t.PeriodsSSD[tier.Tier1] }},
	{"QUIESCE_PERIOD_SSD_TIER2_MSECS", func(t *Table) *int { return &t.PeriodsSSD[tier.Tier2] }},
	{"QUIESCE_PERIOD_SSD_TIER3_MSECS", func(t *Table) *int { return &t.PeriodsSSD[tier.Tier3] }},
}

// LoadEnv applies boot-argument-equivalent overrides from the environment.
func (t *Table) LoadEnv() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ov := range envOverride {
		raw, ok := os.LookupEnv(ov.env)
		if !ok {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		*ov.target(t) = v
	}
}

// PeriodsFor returns the period table to use for a device, per
// throttle_init_throttle_period: SSD media uses the SSD table unless the
// device is running in fusion-with-priority mode, in which case it always
// uses the HDD table regardless of media type.
func (t *Table) PeriodsFor(isSSD, fusionWithPriority bool) Periods {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if isSSD && !fusionWithPriority {
		return t.PeriodsSSD
	}
	return t.PeriodsHDD
}

// Window returns the recency window for a tier.
func (t *Table) Window(tr tier.Tier) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Windows[tr]
}

// SetWindow changes the recency window for a tier, live. Takes effect the
// next time a throttle check or timer arm reads it, for any device sharing
// this table.
func (t *Table) SetWindow(tr tier.Tier, msecs int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Windows[tr] = msecs
}

// SetPeriod changes the throttle period for a tier on the given media
// type, live.
func (t *Table) SetPeriod(tr tier.Tier, isSSD bool, msecs int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if isSSD {
		t.PeriodsSSD[tr] = msecs
	} else {
		t.PeriodsHDD[tr] = msecs
	}
}

// IsEnabled reports the global enable flag.
func (t *Table) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Enabled
}

// SetEnabled changes the global enable flag, the quiesce equivalent of
// spec.md's override(enable_flag) operation.
func (t *Table) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Enabled = enabled
}
