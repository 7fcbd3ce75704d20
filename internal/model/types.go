// Package model defines quiesce's report document: a point-in-time
// snapshot of every device's throttle state plus the derived health score,
// anomalies, and recommendations an operator or an AI agent would want.
// Adapted from melisai's internal/model, which defined the analogous
// Report/Summary/Anomaly/AIContext shape for a USE-methodology Linux
// performance report — quiesce reuses the same document skeleton and the
// same Utilization/Saturation/Errors lens, applied to tier queues instead
// of CPU/memory/disk/network.
package model

// Metadata identifies one report run.
type Metadata struct {
	Tool          string `json:"tool"`
	Version       string `json:"version"`
	SchemaVersion string `json:"schema_version"`
	Hostname      string `json:"hostname"`
	Timestamp     string `json:"timestamp"`
	DeviceCount   int    `json:"device_count"`
}

// TierStats is the point-in-time state of one tier on one device, the
// report-facing projection of device.perTier plus the tunables that govern
// it.
type TierStats struct {
	Tier         string `json:"tier"`
	WindowMsecs  int    `json:"window_msecs"`
	PeriodMsecs  int    `json:"period_msecs"`
	Inflight     int32  `json:"inflight"`
	WaitQueueLen int    `json:"wait_queue_len"`
	LastIOPID    int    `json:"last_io_pid"`
}

// USEMetric scores one tier's queue the way melisai's model.USEMetric
// scored a system resource: how busy it is, how backed up it is, and how
// often it has misbehaved.
type USEMetric struct {
	Utilization float64 `json:"utilization"` // inflight > 0 -> 100, else 0
	Saturation  float64 `json:"saturation"`  // wait queue length, normalized
	Errors      int     `json:"errors"`      // starvation events observed
}

// DeviceSnapshot is one device's exported throttle state.
type DeviceSnapshot struct {
	Index              int         `json:"index"`
	Mask               uint64      `json:"mask"`
	IsSSD              bool        `json:"is_ssd"`
	Disabled           bool        `json:"disabled"`
	FusionWithPriority bool        `json:"fusion_with_priority"`
	IOCount            int32       `json:"io_count"`
	PeriodNum          uint32      `json:"period_num"`
	LastWriteMicros    int64       `json:"last_write_micros"`
	Tiers              []TierStats `json:"tiers"`
}

// ProcStat is the proc-accounting pair for one process, the report
// projection of device.ProcStats (SPEC_FULL.md §4's supplemented
// throttle_update_proc_stats feature).
type ProcStat struct {
	PID               int   `json:"pid"`
	WasThrottledCount int64 `json:"was_throttled_count"`
	DidThrottleCount  int64 `json:"did_throttle_count"`
}

// SelfOverhead is the scheduler's own cost, the report projection of
// selfstat.Summary.
type SelfOverhead struct {
	LockAcquisitions int64   `json:"lock_acquisitions"`
	LockHoldTotalMs  float64 `json:"lock_hold_total_ms"`
	LockHoldMaxMs    float64 `json:"lock_hold_max_ms"`
	TimerFires       int64   `json:"timer_fires"`
	TimerCPUTotalMs  float64 `json:"timer_cpu_total_ms"`
	TimerCPUMaxMs    float64 `json:"timer_cpu_max_ms"`
}

// Anomaly is one detected deviation from healthy throttling, matching
// melisai's model.Anomaly shape (severity/category/message/value/threshold)
// field for field.
type Anomaly struct {
	Severity  string `json:"severity"` // "critical", "warning", "info"
	Category  string `json:"category"`
	Message   string `json:"message"`
	Value     string `json:"value"`
	Threshold string `json:"threshold"`
}

// Recommendation is a suggested tunable change addressing an Anomaly.
type Recommendation struct {
	Category         string `json:"category"`
	Message          string `json:"message"`
	SuggestedTunable string `json:"suggested_tunable,omitempty"`
	SuggestedValue   string `json:"suggested_value,omitempty"`
}

// AIContext carries a generated natural-language prompt for an AI agent to
// reason over the report, matching melisai's model.AIContext.
type AIContext struct {
	Methodology   string   `json:"methodology"`
	KnownPatterns []string `json:"known_patterns"`
	Prompt        string   `json:"prompt"`
}

// Summary is the report's derived, cross-device assessment.
type Summary struct {
	HealthScore     int              `json:"health_score"`
	Resources       map[string]USEMetric `json:"resources"`
	Anomalies       []Anomaly        `json:"anomalies"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Report is quiesce's complete output document, serialized to JSON by
// internal/output and summarized in natural language by AIContext.
type Report struct {
	Metadata     Metadata       `json:"metadata"`
	Devices      []DeviceSnapshot `json:"devices"`
	ProcStats    []ProcStat     `json:"proc_stats,omitempty"`
	SelfOverhead SelfOverhead   `json:"self_overhead"`
	Summary      Summary        `json:"summary"`
	AIContext    *AIContext     `json:"ai_context,omitempty"`
}
