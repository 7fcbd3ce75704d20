package tunable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arjunmenon/quiesce/internal/tier"
)

func TestNewDefault(t *testing.T) {
	tbl := NewDefault()
	if tbl.Windows[tier.Tier1] != 25 || tbl.Windows[tier.Tier2] != 100 || tbl.Windows[tier.Tier3] != 500 {
		t.Errorf("unexpected default windows: %+v", tbl.Windows)
	}
	if tbl.PeriodsHDD[tier.Tier1] != 40 || tbl.PeriodsSSD[tier.Tier1] != 5 {
		t.Errorf("unexpected default periods: hdd=%+v ssd=%+v", tbl.PeriodsHDD, tbl.PeriodsSSD)
	}
	if !tbl.Enabled {
		t.Error("expected Enabled=true by default")
	}
}

func TestLoadConfigFileOverridesOnlyPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.json")
	if err := os.WriteFile(path, []byte(`{"window_tier3_msecs": 750}`), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl := NewDefault()
	if err := tbl.LoadConfigFile(path); err != nil {
		t.Fatal(err)
	}
	if tbl.Windows[tier.Tier3] != 750 {
		t.Errorf("Windows[Tier3] = %d, want 750", tbl.Windows[tier.Tier3])
	}
	if tbl.Windows[tier.Tier1] != 25 {
		t.Errorf("Windows[Tier1] should stay default, got %d", tbl.Windows[tier.Tier1])
	}
}

func TestLoadConfigFileMissingIsNotError(t *testing.T) {
	tbl := NewDefault()
	if err := tbl.LoadConfigFile(filepath.Join(t.TempDir(), "missing.json")); err != nil {
		t.Errorf("missing config file should not error, got %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("QUIESCE_WINDOW_TIER1_MSECS", "99")
	tbl := NewDefault()
	tbl.LoadEnv()
	if tbl.Windows[tier.Tier1] != 99 {
		t.Errorf("Windows[Tier1] = %d, want 99", tbl.Windows[tier.Tier1])
	}
}

func TestPeriodsForFusionForcesHDD(t *testing.T) {
	tbl := NewDefault()
	got := tbl.PeriodsFor(true, true)
	if got != tbl.PeriodsHDD {
		t.Errorf("fusion-with-priority should force HDD periods")
	}
}

func TestPeriodsForSSD(t *testing.T) {
	tbl := NewDefault()
	got := tbl.PeriodsFor(true, false)
	if got != tbl.PeriodsSSD {
		t.Errorf("ssd, non-fusion should select SSD periods")
	}
}

func TestSetWindowAndSetPeriod(t *testing.T) {
	tbl := NewDefault()
	tbl.SetWindow(tier.Tier2, 111)
	if got := tbl.Window(tier.Tier2); got != 111 {
		t.Errorf("Window(Tier2) = %d, want 111", got)
	}
	tbl.SetPeriod(tier.Tier1, true, 7)
	if got := tbl.PeriodsFor(true, false)[tier.Tier1]; got != 7 {
		t.Errorf("SSD period[Tier1] = %d, want 7", got)
	}
	tbl.SetPeriod(tier.Tier1, false, 9)
	if got := tbl.PeriodsFor(false, false)[tier.Tier1]; got != 9 {
		t.Errorf("HDD period[Tier1] = %d, want 9", got)
	}
}

func TestSetEnabled(t *testing.T) {
	tbl := NewDefault()
	tbl.SetEnabled(false)
	if tbl.IsEnabled() {
		t.Error("expected IsEnabled()=false after SetEnabled(false)")
	}
}

func TestSaveConfigFileRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.json")

	tbl := NewDefault()
	tbl.SetWindow(tier.Tier3, 321)
	if err := tbl.SaveConfigFile(path); err != nil {
		t.Fatalf("SaveConfigFile: %v", err)
	}

	loaded := NewDefault()
	if err := loaded.LoadConfigFile(path); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if got := loaded.Window(tier.Tier3); got != 321 {
		t.Errorf("reloaded Window(Tier3) = %d, want 321", got)
	}
}
