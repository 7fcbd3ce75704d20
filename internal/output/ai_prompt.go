package output

import (
	"fmt"
	"strings"

	"github.com/arjunmenon/quiesce/internal/model"
)

// GenerateAIPrompt builds a natural-language prompt summarizing report for
// an AI operations agent, adapted from melisai's GenerateAIPrompt (same
// methodology-name/known-patterns/prompt-body shape, repointed at tier
// queues instead of CPU/memory/disk/network).
func GenerateAIPrompt(report *model.Report) *model.AIContext {
	ctx := &model.AIContext{
		Methodology:   "USE Method (Utilization, Saturation, Errors) by Brendan Gregg, applied per throttle tier",
		KnownPatterns: knownThrottlePatterns(),
	}

	var sb strings.Builder
	sb.WriteString("You are a storage performance expert reviewing a tiered I/O throttling scheduler. ")
	sb.WriteString("Analyze the following report and provide:\n")
	sb.WriteString("1. Root cause analysis for any detected anomalies\n")
	sb.WriteString("2. Tunable changes to relieve tier contention, with suggested values\n")
	sb.WriteString("3. Risk assessment: is any tier at risk of starving foreground I/O\n\n")

	sb.WriteString(fmt.Sprintf("Host: %s, devices: %d, collected: %s\n",
		report.Metadata.Hostname, report.Metadata.DeviceCount, report.Metadata.Timestamp))

	sb.WriteString(fmt.Sprintf("\nHealth Score: %d/100\n", report.Summary.HealthScore))

	if len(report.Summary.Anomalies) > 0 {
		sb.WriteString(fmt.Sprintf("\nDetected Anomalies (%d):\n", len(report.Summary.Anomalies)))
		for _, a := range report.Summary.Anomalies {
			sb.WriteString(fmt.Sprintf("  [%s] %s: %s (value=%s, threshold=%s)\n",
				strings.ToUpper(a.Severity), a.Category, a.Message, a.Value, a.Threshold))
		}
	}

	if len(report.Summary.Resources) > 0 {
		sb.WriteString("\nPer-tier USE metrics:\n")
		for tier, use := range report.Summary.Resources {
			sb.WriteString(fmt.Sprintf("  %s: util=%.1f%%, sat=%.1f%%, err=%d\n",
				tier, use.Utilization, use.Saturation, use.Errors))
		}
	}

	sb.WriteString(fmt.Sprintf(
		"\nSCHEDULER OVERHEAD NOTE: quiesce's own cost during this snapshot: "+
			"%d lock acquisitions totaling %.2fms (max %.2fms single hold), "+
			"%d timer fires totaling %.2fms CPU. Elevated values here point at "+
			"the scheduler itself, not the underlying storage.\n",
		report.SelfOverhead.LockAcquisitions, report.SelfOverhead.LockHoldTotalMs, report.SelfOverhead.LockHoldMaxMs,
		report.SelfOverhead.TimerFires, report.SelfOverhead.TimerCPUTotalMs))

	sb.WriteString("\nProvide actionable, specific tunable changes (window_msecs / period_msecs per tier).\n")

	ctx.Prompt = sb.String()
	return ctx
}

// knownThrottlePatterns lists quiesce's equivalent of melisai's
// known-anti-patterns list, scoped to tiered I/O throttling.
func knownThrottlePatterns() []string {
	return []string{
		"T1: Background maintenance (tier3) permanently starved by a steady trickle of tier0 foreground I/O — window never closes",
		"T2: Fusion-with-priority device administratively 'disabled' but still throttling low-priority work (see DESIGN.md open question #1)",
		"T3: Timer thrash — period too short relative to the I/O rate, causing the device lock to be reacquired far more often than waiters actually need waking",
		"T4: A single runaway process dominating did_throttle_count, worth nicing or moving to a dedicated tier",
		"T5: SSD device misclassified as rotational (period table mismatch) making background I/O wait far longer than the media requires",
	}
}
