package model

import "fmt"

// saturationThreshold is the wait-queue length, in waiters, above which a
// tier is considered saturated rather than merely busy. Chosen as a small,
// conservative number: a handful of parked background issuers is normal
// contention, a deep queue means the tier is starving outright.
const saturationThreshold = 4

// lockHoldWarnMs and timerCostWarnMs bound how long the scheduler itself
// may reasonably spend per critical section / per timer fire before its
// own overhead becomes the thing worth flagging (spec.md §5: "held only
// for short, bounded work").
const (
	lockHoldWarnMs  = 5.0
	timerCostWarnMs = 2.0
)

// ComputeResourceMetrics aggregates USEMetric per tier across every device,
// the quiesce analogue of melisai's ComputeUSEMetrics (which aggregated per
// subsystem instead of per tier).
func ComputeResourceMetrics(devices []DeviceSnapshot) map[string]USEMetric {
	resources := make(map[string]USEMetric)
	counts := make(map[string]int)

	for _, d := range devices {
		for _, ts := range d.Tiers {
			m := resources[ts.Tier]
			c := counts[ts.Tier]

			util := 0.0
			if ts.Inflight > 0 {
				util = 100
			}
			m.Utilization = (m.Utilization*float64(c) + util) / float64(c+1)

			sat := 100 * float64(ts.WaitQueueLen) / float64(saturationThreshold)
			if sat > 100 {
				sat = 100
			}
			m.Saturation = (m.Saturation*float64(c) + sat) / float64(c+1)

			if ts.WaitQueueLen > saturationThreshold {
				m.Errors++
			}

			resources[ts.Tier] = m
			counts[ts.Tier] = c + 1
		}
	}
	return resources
}

// DetectAnomalies scans a set of device snapshots and the scheduler's own
// overhead for the conditions spec.md's invariants name as pathological:
// a deeply backed-up tier (would violate the spirit of IN-3's "disengaged
// implies no recent higher-tier I/O"), a fusion-with-priority device that
// repeated Disable calls with isFusion set keep enabled (the §9 open
// question), and
// the scheduler's own lock/timer cost running away.
func DetectAnomalies(devices []DeviceSnapshot, self SelfOverhead) []Anomaly {
	var out []Anomaly

	for _, d := range devices {
		for _, ts := range d.Tiers {
			if ts.WaitQueueLen > saturationThreshold {
				out = append(out, Anomaly{
					Severity:  "warning",
					Category:  "tier_saturation",
					Message:   fmt.Sprintf("device %d tier %s has %d issuers parked", d.Index, ts.Tier, ts.WaitQueueLen),
					Value:     fmt.Sprintf("%d", ts.WaitQueueLen),
					Threshold: fmt.Sprintf("%d", saturationThreshold),
				})
			}
		}
		if d.FusionWithPriority && !d.Disabled {
			out = append(out, Anomaly{
				Severity:  "info",
				Category:  "fusion_disable_noop",
				Message:   fmt.Sprintf("device %d is fusion-with-priority; Disable with isFusion=true leaves it enabled (see DESIGN.md)", d.Index),
				Value:     "disabled=false",
				Threshold: "n/a",
			})
		}
	}

	if self.LockHoldMaxMs > lockHoldWarnMs {
		out = append(out, Anomaly{
			Severity:  "warning",
			Category:  "scheduler_overhead",
			Message:   "a device-lock critical section ran longer than expected",
			Value:     fmt.Sprintf("%.2fms", self.LockHoldMaxMs),
			Threshold: fmt.Sprintf("%.2fms", lockHoldWarnMs),
		})
	}
	if self.TimerFires > 0 {
		avgTimerMs := self.TimerCPUTotalMs / float64(self.TimerFires)
		if avgTimerMs > timerCostWarnMs {
			out = append(out, Anomaly{
				Severity:  "warning",
				Category:  "timer_overhead",
				Message:   "the per-device timer callback is spending longer than expected per fire",
				Value:     fmt.Sprintf("%.2fms avg", avgTimerMs),
				Threshold: fmt.Sprintf("%.2fms", timerCostWarnMs),
			})
		}
	}

	return out
}
