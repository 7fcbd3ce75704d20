package model

import "fmt"

// GenerateRecommendations maps each detected Anomaly to a suggested
// tunable change, adapted from melisai's recommendations.go (which mapped
// USE anomalies to kernel-tuning commands); quiesce's equivalent command is
// a tunable name/value pair a caller would feed to the `tune` CLI command
// or the set_tunable MCP tool rather than a shell command.
func GenerateRecommendations(anomalies []Anomaly) []Recommendation {
	var out []Recommendation
	for _, a := range anomalies {
		switch a.Category {
		case "tier_saturation":
			out = append(out, Recommendation{
				Category:         a.Category,
				Message:          "a throttleable tier is backing up; shorten its period so waiters are promoted sooner, or shorten the higher tier's window so it stops re-engaging the check",
				SuggestedTunable: "period_msecs",
				SuggestedValue:   "decrease by ~25%",
			})
		case "fusion_disable_noop":
			out = append(out, Recommendation{
				Category: a.Category,
				Message:  "this is the preserved XNU behavior (DESIGN.md open question #1), not a bug; clear fusion_with_priority first if the device must be fully disabled",
			})
		case "scheduler_overhead":
			out = append(out, Recommendation{
				Category: a.Category,
				Message:  "device-lock critical sections are running long; check for an oversized wait queue or a slow clock.Source implementation",
			})
		case "timer_overhead":
			out = append(out, Recommendation{
				Category: a.Category,
				Message:  "timer callback cost is elevated; this usually means a large wait queue is being drained on every fire",
			})
		default:
			out = append(out, Recommendation{
				Category: a.Category,
				Message:  fmt.Sprintf("no canned recommendation for category %q yet", a.Category),
			})
		}
	}
	return out
}
