package diffreport

import (
	"strings"
	"testing"

	"github.com/arjunmenon/quiesce/internal/model"
)

func TestCompareReportsTierRegression(t *testing.T) {
	baseline := &model.Report{
		Metadata: model.Metadata{Timestamp: "2026-07-30T00:00:00Z"},
		Summary: model.Summary{
			HealthScore: 90,
			Resources: map[string]model.USEMetric{
				"tier3": {Utilization: 40, Saturation: 0},
			},
		},
	}
	current := &model.Report{
		Metadata: model.Metadata{Timestamp: "2026-07-31T00:00:00Z"},
		Summary: model.Summary{
			HealthScore: 60,
			Resources: map[string]model.USEMetric{
				"tier3": {Utilization: 90, Saturation: 20},
			},
		},
	}

	diff := Compare(baseline, current)

	if diff.HealthDelta != -30 {
		t.Errorf("HealthDelta = %d, want -30", diff.HealthDelta)
	}
	if diff.Regressions == 0 {
		t.Fatal("expected at least one regression")
	}

	found := false
	for _, c := range diff.Changes {
		if c.Category == "tier3" && c.Metric == "utilization" {
			found = true
			if c.Direction != "regression" {
				t.Errorf("direction = %q, want regression", c.Direction)
			}
			if c.Significance != "high" {
				t.Errorf("significance = %q, want high (125%% change)", c.Significance)
			}
		}
	}
	if !found {
		t.Error("missing tier3 utilization change")
	}
}

func TestCompareDevicesWaitQueueLen(t *testing.T) {
	baseline := &model.Report{
		Devices: []model.DeviceSnapshot{
			{Index: 0, Mask: 1, Tiers: []model.TierStats{{Tier: "tier3", WaitQueueLen: 1}}},
		},
		Summary: model.Summary{Resources: map[string]model.USEMetric{}},
	}
	current := &model.Report{
		Devices: []model.DeviceSnapshot{
			{Index: 0, Mask: 1, Tiers: []model.TierStats{{Tier: "tier3", WaitQueueLen: 9}}},
		},
		Summary: model.Summary{Resources: map[string]model.USEMetric{}},
	}

	diff := Compare(baseline, current)
	found := false
	for _, c := range diff.Changes {
		if strings.Contains(c.Category, "device[0]/tier3") && c.Metric == "wait_queue_len" {
			found = true
			if c.Direction != "regression" {
				t.Errorf("direction = %q, want regression for a growing wait queue", c.Direction)
			}
		}
	}
	if !found {
		t.Error("expected a wait_queue_len change for the matched device/tier")
	}
}

func TestCompareIgnoresUnmatchedDevices(t *testing.T) {
	baseline := &model.Report{
		Devices: []model.DeviceSnapshot{{Index: 0, Mask: 1}},
		Summary: model.Summary{Resources: map[string]model.USEMetric{}},
	}
	current := &model.Report{
		Devices: []model.DeviceSnapshot{{Index: 1, Mask: 2}},
		Summary: model.Summary{Resources: map[string]model.USEMetric{}},
	}
	diff := Compare(baseline, current)
	if len(diff.Changes) != 0 {
		t.Errorf("expected no changes for devices with no overlapping mask, got %d", len(diff.Changes))
	}
}

func TestFormatIncludesHealthScoreAndSections(t *testing.T) {
	baseline := &model.Report{
		Metadata: model.Metadata{Timestamp: "t0"},
		Summary: model.Summary{
			HealthScore: 90,
			Resources:   map[string]model.USEMetric{"tier1": {Utilization: 10}},
		},
	}
	current := &model.Report{
		Metadata: model.Metadata{Timestamp: "t1"},
		Summary: model.Summary{
			HealthScore: 50,
			Resources:   map[string]model.USEMetric{"tier1": {Utilization: 95}},
		},
	}
	out := Format(Compare(baseline, current))
	if !strings.Contains(out, "Health Score") {
		t.Error("expected Format output to mention Health Score")
	}
	if !strings.Contains(out, "Regressions:") {
		t.Error("expected Format output to list regressions")
	}
}
