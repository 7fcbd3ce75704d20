// Package orchestrator assembles a model.Report from the scheduler's live
// state and, when asked, cross-validates it against real kernel block-layer
// behavior. Adapted from melisai's internal/orchestrator, which ran a fixed
// set of collectors in parallel under a profile-scoped timeout with
// graceful SIGINT/SIGTERM handling; quiesce keeps that same parallel-fan-
// out-with-signal-handling shape but applies it to cross-validators instead
// of collectors, since the scheduler snapshot itself is synchronous and
// needs no timeout.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/arjunmenon/quiesce/internal/device"
	"github.com/arjunmenon/quiesce/internal/model"
	"github.com/arjunmenon/quiesce/internal/output"
	"github.com/arjunmenon/quiesce/internal/throttle"
)

// CrossValidator cross-checks the simulated scheduler's view of a device
// against real kernel block-layer behavior (e.g. blktrace, iostat), the
// role internal/diagexec fills. Kept as an interface here so orchestrator
// carries no import-time dependency on the external-process machinery.
type CrossValidator interface {
	Name() string
	Validate(ctx context.Context) (note string, err error)
}

// Orchestrator assembles a model.Report from a live scheduler's registry,
// optionally cross-validated against real kernel behavior.
type Orchestrator struct {
	scheduler  *throttle.Scheduler
	validators []CrossValidator
	progress   *output.Progress
	hostname   string
}

// New creates an Orchestrator over sched's registry, running validators
// that match whatever profile Run is called with. quiet suppresses
// progress lines.
func New(sched *throttle.Scheduler, validators []CrossValidator, quiet bool) *Orchestrator {
	hostname, _ := os.Hostname()
	return &Orchestrator{
		scheduler:  sched,
		validators: validators,
		progress:   output.NewProgress(!quiet),
		hostname:   hostname,
	}
}

// Run snapshots the scheduler's state and, per profileName, runs any
// matching cross-validators in parallel before deriving anomalies,
// recommendations, and a health score. A SIGINT/SIGTERM during validator
// execution cancels the remaining validators but still returns the
// snapshot-only report built so far, mirroring melisai's partial-report-on-
// interrupt behavior.
func (o *Orchestrator) Run(ctx context.Context, profileName string) (*model.Report, error) {
	profile := GetProfile(profileName)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, profile.Timeout)
	defer timeoutCancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			o.progress.Log("received %v, cancelling cross-validation (snapshot already captured)", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	devices, procs, self := o.snapshot()
	o.progress.Log("snapshot: %d devices, %d tracked processes", len(devices), len(procs))

	meta := model.Metadata{
		Tool:          "quiesce",
		SchemaVersion: "1",
		Hostname:      o.hostname,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	report := model.BuildReport(meta, devices, procs, self)

	if notes := o.runValidators(ctx, profile); len(notes) > 0 {
		report.Summary.Anomalies = append(report.Summary.Anomalies, notes...)
		report.Summary.HealthScore = model.ComputeHealthScore(report.Summary.Resources, report.Summary.Anomalies)
		report.Summary.Recommendations = model.GenerateRecommendations(report.Summary.Anomalies)
	}

	o.progress.Log("done: health=%d/100, anomalies=%d", report.Summary.HealthScore, len(report.Summary.Anomalies))
	return report, nil
}

// snapshot walks the registry's devices, converting each device.Device into
// a model.DeviceSnapshot, and gathers the scheduler's proc accounting and
// self-overhead summaries.
func (o *Orchestrator) snapshot() ([]model.DeviceSnapshot, []model.ProcStat, model.SelfOverhead) {
	all := o.scheduler.Registry.All()
	devices := make([]model.DeviceSnapshot, 0, len(all))
	for _, d := range all {
		tiers, periodNum, lastWrite, ioCount := d.Snapshot()
		tierStats := make([]model.TierStats, 0, len(tiers))
		for _, ts := range tiers {
			tierStats = append(tierStats, model.TierStats{
				Tier:         ts.Tier.String(),
				WindowMsecs:  ts.WindowMsecs,
				PeriodMsecs:  ts.PeriodMsecs,
				Inflight:     ts.Inflight,
				WaitQueueLen: ts.WaitQueueLen,
				LastIOPID:    ts.LastIOPID,
			})
		}
		devices = append(devices, model.DeviceSnapshot{
			Index:              device.MaskIndex(d.Mask()),
			Mask:                d.Mask(),
			IsSSD:               d.IsSSD(),
			Disabled:            d.Disabled(),
			FusionWithPriority:  d.FusionWithPriority(),
			IOCount:             ioCount,
			PeriodNum:           periodNum,
			LastWriteMicros:     int64(lastWrite),
			Tiers:               tierStats,
		})
	}

	var procs []model.ProcStat
	for pid, st := range o.scheduler.ProcAccounting().All() {
		procs = append(procs, model.ProcStat{
			PID:               pid,
			WasThrottledCount: st.WasThrottledCount,
			DidThrottleCount:  st.DidThrottleCount,
		})
	}

	sum := o.scheduler.SelfStats().Snapshot()
	self := model.SelfOverhead{
		LockAcquisitions: sum.LockAcquisitions,
		LockHoldTotalMs:  sum.LockHoldTotal.Seconds() * 1000,
		LockHoldMaxMs:    sum.LockHoldMax.Seconds() * 1000,
		TimerFires:       sum.TimerFires,
		TimerCPUTotalMs:  sum.TimerCPUTotal.Seconds() * 1000,
		TimerCPUMaxMs:    sum.TimerCPUMax.Seconds() * 1000,
	}

	return devices, procs, self
}

// runValidators runs every validator the profile selects in parallel,
// turning each result into an info/warning anomaly so cross-validation
// findings show up alongside scheduler-detected ones in the same report.
func (o *Orchestrator) runValidators(ctx context.Context, profile Profile) []model.Anomaly {
	var active []CrossValidator
	for _, v := range o.validators {
		if profile.wantsValidator(v.Name()) {
			active = append(active, v)
		}
	}
	if len(active) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []model.Anomaly
	)
	for _, v := range active {
		wg.Add(1)
		go func(v CrossValidator) {
			defer wg.Done()
			o.progress.Log("  [%s] cross-validating...", v.Name())
			note, err := v.Validate(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results = append(results, model.Anomaly{
					Severity: "warning",
					Category: "cross_validation",
					Message:  fmt.Sprintf("%s: %v", v.Name(), err),
				})
				return
			}
			if note != "" {
				results = append(results, model.Anomaly{
					Severity: "info",
					Category: "cross_validation",
					Message:  fmt.Sprintf("%s: %s", v.Name(), note),
				})
			}
		}(v)
	}
	wg.Wait()
	return results
}
