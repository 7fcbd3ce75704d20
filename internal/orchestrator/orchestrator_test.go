package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/arjunmenon/quiesce/internal/clock"
	"github.com/arjunmenon/quiesce/internal/throttle"
	"github.com/arjunmenon/quiesce/internal/trace"
	"github.com/arjunmenon/quiesce/internal/tunable"
)

type stubValidator struct {
	name string
	note string
	err  error
}

func (s stubValidator) Name() string { return s.name }
func (s stubValidator) Validate(ctx context.Context) (string, error) { return s.note, s.err }

func newTestOrchestrator(t *testing.T, validators []CrossValidator) (*Orchestrator, *throttle.Registry) {
	t.Helper()
	fake := clock.NewFake(0)
	tbl := tunable.NewDefault()
	sched := throttle.New(fake, tbl, trace.New(16))
	return New(sched, validators, true), sched.Registry
}

func TestRunProducesReportFromRegisteredDevices(t *testing.T) {
	o, reg := newTestOrchestrator(t, nil)
	reg.RefByMask(1, false)
	reg.RefByMask(2, true)

	report, err := o.Run(context.Background(), "quick")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Devices) != 2 {
		t.Fatalf("Devices = %d, want 2", len(report.Devices))
	}
	if report.Metadata.DeviceCount != 2 {
		t.Errorf("DeviceCount = %d, want 2", report.Metadata.DeviceCount)
	}
}

func TestRunWithNoDevicesStillBuildsReport(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	report, err := o.Run(context.Background(), "quick")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Devices) != 0 {
		t.Errorf("Devices = %d, want 0", len(report.Devices))
	}
}

func TestRunAppendsValidatorNoteAsAnomaly(t *testing.T) {
	o, _ := newTestOrchestrator(t, []CrossValidator{
		stubValidator{name: "iostat", note: "device nvme0n1 matches simulated tier0 rate"},
	})
	report, err := o.Run(context.Background(), "standard")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	found := false
	for _, a := range report.Summary.Anomalies {
		if a.Category == "cross_validation" {
			found = true
		}
	}
	if !found {
		t.Error("expected a cross_validation anomaly from the stub validator's note")
	}
}

func TestRunAppendsValidatorErrorAsWarning(t *testing.T) {
	o, _ := newTestOrchestrator(t, []CrossValidator{
		stubValidator{name: "iostat", err: errors.New("iostat: command not found")},
	})
	report, err := o.Run(context.Background(), "standard")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, a := range report.Summary.Anomalies {
		if a.Category == "cross_validation" && a.Severity == "warning" {
			return
		}
	}
	t.Error("expected a warning-severity cross_validation anomaly from the failing validator")
}

func TestRunSkipsValidatorsNotSelectedByQuickProfile(t *testing.T) {
	called := false
	v := stubValidatorFunc{stubValidator{name: "iostat", note: "should not run"}, &called}
	o, _ := newTestOrchestrator(t, []CrossValidator{v})
	if _, err := o.Run(context.Background(), "quick"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("quick profile should not run any validators")
	}
}

// stubValidatorFunc records whether Validate was invoked, to verify profile
// filtering actually skips validators rather than just dropping their output.
type stubValidatorFunc struct {
	stubValidator
	called *bool
}

func (s stubValidatorFunc) Validate(ctx context.Context) (string, error) {
	*s.called = true
	return s.stubValidator.Validate(ctx)
}
