package model

// BuildReport assembles a complete Report from already-collected snapshots,
// computing the derived Summary (resource metrics, anomalies,
// recommendations, health score). Adapted from melisai's report.go, which
// split metric computation (ComputeUSEMetrics) from the top-level
// assembly; quiesce keeps that split but folds it into one entry point
// since internal/orchestrator has no other report-shaping step to run
// between them.
func BuildReport(meta Metadata, devices []DeviceSnapshot, procs []ProcStat, self SelfOverhead) *Report {
	meta.DeviceCount = len(devices)

	resources := ComputeResourceMetrics(devices)
	anomalies := DetectAnomalies(devices, self)
	recs := GenerateRecommendations(anomalies)
	score := ComputeHealthScore(resources, anomalies)

	return &Report{
		Metadata:     meta,
		Devices:      devices,
		ProcStats:    procs,
		SelfOverhead: self,
		Summary: Summary{
			HealthScore:     score,
			Resources:       resources,
			Anomalies:       anomalies,
			Recommendations: recs,
		},
	}
}
