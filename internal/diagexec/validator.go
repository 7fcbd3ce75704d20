package diagexec

import (
	"context"
	"fmt"
	"time"
)

// Validator runs one diagnostic tool against a real block device and turns
// its output into a one-line note, implementing internal/orchestrator's
// CrossValidator interface without orchestrator needing to import diagexec.
type Validator struct {
	spec       *ToolSpec
	exec       Executor
	deviceName string // e.g. "sda", "nvme0n1" — not the internal bitmask
	duration   time.Duration
}

// NewValidator builds a Validator for the named registry tool, targeting
// deviceName for duration. Returns an error if name isn't registered.
func NewValidator(name, deviceName string, duration time.Duration, exec Executor) (*Validator, error) {
	spec, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("diagexec: unknown tool %q", name)
	}
	return &Validator{spec: spec, exec: exec, deviceName: deviceName, duration: duration}, nil
}

// Name returns the underlying tool name, the key orchestrator's profile
// validator-selection matches against.
func (v *Validator) Name() string { return v.spec.Name }

// Validate runs the tool and interprets its output, skipping (note="",
// err=nil) rather than failing when the binary simply isn't installed —
// an unavailable tool is not itself an anomaly.
func (v *Validator) Validate(ctx context.Context) (string, error) {
	if !v.exec.Available(v.spec.Binary) {
		return "", nil
	}

	args := v.spec.BuildArgs(v.deviceName, v.duration)
	raw, err := v.exec.Run(ctx, v.spec.Binary, args)
	if err != nil {
		return "", fmt.Errorf("run %s: %w", v.spec.Name, err)
	}
	if raw.Truncated {
		return "", fmt.Errorf("%s output truncated before a full sample could be captured", v.spec.Name)
	}

	switch v.spec.Name {
	case "iostat":
		util, err := ParseIostatUtil(raw.Stdout, v.deviceName)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s reports %.1f%% utilization over the sample window", v.deviceName, util), nil

	case "biolatency":
		avg, samples, err := ParseBiolatencyAverage(raw.Stdout)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("observed average I/O latency %.0fus across %d samples", avg, samples), nil

	case "blktrace":
		queued, err := ParseBlktraceQueueDepth(raw.Stderr + raw.Stdout)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("kernel block layer queued %d requests for %s during the sample window", queued, v.deviceName), nil

	default:
		return "", fmt.Errorf("diagexec: no interpreter registered for tool %q", v.spec.Name)
	}
}
