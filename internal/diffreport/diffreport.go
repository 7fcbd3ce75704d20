// Package diffreport compares two quiesce report snapshots over time,
// highlighting which tiers got more or less contended and whether the
// scheduler's own overhead moved. Adapted from melisai's internal/diff,
// which compared two sysdiag reports' CPU/memory/histogram metrics the
// same addChange-with-direction-and-significance way; quiesce repoints the
// same comparison machinery at per-tier USE metrics and self-overhead
// instead of system resources.
package diffreport

import (
	"fmt"
	"math"
	"strings"

	"github.com/arjunmenon/quiesce/internal/model"
)

// Diff contains the comparison between two reports.
type Diff struct {
	Baseline     string         `json:"baseline"`
	Current      string         `json:"current"`
	Changes      []MetricChange `json:"changes"`
	Regressions  int            `json:"regressions"`
	Improvements int            `json:"improvements"`
	HealthDelta  int            `json:"health_delta"` // positive = improved
}

// MetricChange represents a single metric difference between reports.
type MetricChange struct {
	Category     string  `json:"category"`
	Metric       string  `json:"metric"`
	OldValue     float64 `json:"old_value"`
	NewValue     float64 `json:"new_value"`
	Delta        float64 `json:"delta"`
	DeltaPct     float64 `json:"delta_pct"`
	Direction    string  `json:"direction"`    // "regression", "improvement", "unchanged"
	Significance string  `json:"significance"` // "high", "medium", "low"
}

// Compare computes the differences between baseline and current reports.
func Compare(baseline, current *model.Report) *Diff {
	diff := &Diff{
		Baseline:    baseline.Metadata.Timestamp,
		Current:     current.Metadata.Timestamp,
		HealthDelta: current.Summary.HealthScore - baseline.Summary.HealthScore,
	}

	for tierName, newMetric := range current.Summary.Resources {
		if oldMetric, ok := baseline.Summary.Resources[tierName]; ok {
			addChange(diff, tierName, "utilization", oldMetric.Utilization, newMetric.Utilization, true)
			addChange(diff, tierName, "saturation", oldMetric.Saturation, newMetric.Saturation, true)
			addChange(diff, tierName, "errors", float64(oldMetric.Errors), float64(newMetric.Errors), true)
		}
	}

	compareSelfOverhead(diff, baseline.SelfOverhead, current.SelfOverhead)
	compareDevices(diff, baseline.Devices, current.Devices)

	for _, c := range diff.Changes {
		switch c.Direction {
		case "regression":
			diff.Regressions++
		case "improvement":
			diff.Improvements++
		}
	}

	return diff
}

// compareSelfOverhead diffs the scheduler's own cost between snapshots;
// every field here is higher-is-worse.
func compareSelfOverhead(diff *Diff, old, cur model.SelfOverhead) {
	addChange(diff, "self_overhead", "lock_hold_total_ms", old.LockHoldTotalMs, cur.LockHoldTotalMs, true)
	addChange(diff, "self_overhead", "lock_hold_max_ms", old.LockHoldMaxMs, cur.LockHoldMaxMs, true)
	addChange(diff, "self_overhead", "timer_cpu_total_ms", old.TimerCPUTotalMs, cur.TimerCPUTotalMs, true)
}

// compareDevices diffs per-tier wait-queue length for devices present in
// both snapshots (matched by mask), the signal an operator watches after a
// tunable change to see whether contention actually eased.
func compareDevices(diff *Diff, oldDevices, newDevices []model.DeviceSnapshot) {
	oldByMask := make(map[uint64]model.DeviceSnapshot, len(oldDevices))
	for _, d := range oldDevices {
		oldByMask[d.Mask] = d
	}

	for _, newDev := range newDevices {
		oldDev, ok := oldByMask[newDev.Mask]
		if !ok {
			continue
		}
		oldTiers := make(map[string]model.TierStats, len(oldDev.Tiers))
		for _, t := range oldDev.Tiers {
			oldTiers[t.Tier] = t
		}
		for _, newTier := range newDev.Tiers {
			oldTier, ok := oldTiers[newTier.Tier]
			if !ok {
				continue
			}
			category := fmt.Sprintf("device[%d]/%s", newDev.Index, newTier.Tier)
			addChange(diff, category, "wait_queue_len",
				float64(oldTier.WaitQueueLen), float64(newTier.WaitQueueLen), true)
		}
	}
}

// addChange appends a MetricChange unless the move is negligible, scoring
// direction and significance exactly as melisai's diff.addChange does.
func addChange(diff *Diff, category, metric string, oldVal, newVal float64, higherIsWorse bool) {
	delta := newVal - oldVal
	deltaPct := 0.0
	if oldVal != 0 {
		deltaPct = (delta / math.Abs(oldVal)) * 100
	}

	if math.Abs(deltaPct) < 1.0 && math.Abs(delta) < 0.1 {
		return
	}

	direction := "unchanged"
	if higherIsWorse {
		if deltaPct > 5 {
			direction = "regression"
		} else if deltaPct < -5 {
			direction = "improvement"
		}
	} else {
		if deltaPct < -5 {
			direction = "regression"
		} else if deltaPct > 5 {
			direction = "improvement"
		}
	}

	significance := "low"
	if absPct := math.Abs(deltaPct); absPct >= 50 {
		significance = "high"
	} else if absPct >= 20 {
		significance = "medium"
	}

	diff.Changes = append(diff.Changes, MetricChange{
		Category:     category,
		Metric:       metric,
		OldValue:     oldVal,
		NewValue:     newVal,
		Delta:        delta,
		DeltaPct:     deltaPct,
		Direction:    direction,
		Significance: significance,
	})
}

// Format returns a human-readable diff summary, matching melisai's
// diff.FormatDiff layout (regressions first, then improvements).
func Format(d *Diff) string {
	var sb strings.Builder

	sb.WriteString("=== Report Diff ===\n")
	sb.WriteString(fmt.Sprintf("Baseline: %s\n", d.Baseline))
	sb.WriteString(fmt.Sprintf("Current:  %s\n\n", d.Current))

	symbol := "→"
	if d.HealthDelta > 0 {
		symbol = "↑"
	} else if d.HealthDelta < 0 {
		symbol = "↓"
	}
	sb.WriteString(fmt.Sprintf("Health Score: %+d %s\n", d.HealthDelta, symbol))
	sb.WriteString(fmt.Sprintf("Regressions: %d, Improvements: %d\n\n", d.Regressions, d.Improvements))

	if d.Regressions > 0 {
		sb.WriteString("Regressions:\n")
		for _, c := range d.Changes {
			if c.Direction == "regression" {
				sb.WriteString(fmt.Sprintf("  [%s] %s/%s: %.2f -> %.2f (%+.1f%%)\n",
					strings.ToUpper(c.Significance), c.Category, c.Metric, c.OldValue, c.NewValue, c.DeltaPct))
			}
		}
		sb.WriteString("\n")
	}

	if d.Improvements > 0 {
		sb.WriteString("Improvements:\n")
		for _, c := range d.Changes {
			if c.Direction == "improvement" {
				sb.WriteString(fmt.Sprintf("  [%s] %s/%s: %.2f -> %.2f (%+.1f%%)\n",
					strings.ToUpper(c.Significance), c.Category, c.Metric, c.OldValue, c.NewValue, c.DeltaPct))
			}
		}
	}

	return sb.String()
}
