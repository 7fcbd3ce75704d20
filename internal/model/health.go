package model

// ComputeHealthScore derives a 0-100 score from resource-level USE metrics
// plus detected anomalies, adapted from melisai's ComputeHealthScore: start
// at 100 and deduct for utilization/saturation/error severity, weighted,
// then apply a further deduction per anomaly severity so a device that is
// merely busy scores better than one that is actively starving a tier.
func ComputeHealthScore(resources map[string]USEMetric, anomalies []Anomaly) int {
	score := 100

	for _, use := range resources {
		if use.Utilization >= 95 {
			score -= 10
		} else if use.Utilization >= 80 {
			score -= 4
		}
		if use.Saturation > 75 {
			score -= 20
		} else if use.Saturation > 40 {
			score -= 10
		} else if use.Saturation > 10 {
			score -= 3
		}
		if use.Errors > 10 {
			score -= 15
		} else if use.Errors > 0 {
			score -= 5
		}
	}

	for _, a := range anomalies {
		switch a.Severity {
		case "critical":
			score -= 20
		case "warning":
			score -= 8
		case "info":
			score -= 2
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
