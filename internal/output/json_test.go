package output

import (
	"path/filepath"
	"testing"

	"github.com/arjunmenon/quiesce/internal/model"
)

func sampleReport() *model.Report {
	return model.BuildReport(
		model.Metadata{Tool: "quiesce", Hostname: "testhost"},
		[]model.DeviceSnapshot{{Index: 0, Tiers: []model.TierStats{{Tier: "tier1"}}}},
		nil,
		model.SelfOverhead{},
	)
}

func TestWriteAndLoadReportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	report := sampleReport()

	if err := WriteJSON(report, path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	loaded, err := LoadReport(path)
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if loaded.Metadata.Hostname != report.Metadata.Hostname {
		t.Errorf("Hostname = %q, want %q", loaded.Metadata.Hostname, report.Metadata.Hostname)
	}
	if loaded.Summary.HealthScore != report.Summary.HealthScore {
		t.Errorf("HealthScore = %d, want %d", loaded.Summary.HealthScore, report.Summary.HealthScore)
	}
}

func TestLoadReportMissingFile(t *testing.T) {
	if _, err := LoadReport("/nonexistent/report.json"); err == nil {
		t.Error("expected an error for a missing report file")
	}
}
