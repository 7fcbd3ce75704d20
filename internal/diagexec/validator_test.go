package diagexec

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeExecutor struct {
	available bool
	raw       *RawOutput
	runErr    error
}

func (f fakeExecutor) Available(tool string) bool { return f.available }
func (f fakeExecutor) Run(ctx context.Context, tool string, args []string) (*RawOutput, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.raw, nil
}

func TestValidatorSkipsWhenToolUnavailable(t *testing.T) {
	v, err := NewValidator("iostat", "sda", time.Second, fakeExecutor{available: false})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	note, err := v.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if note != "" {
		t.Errorf("note = %q, want empty when the tool isn't installed", note)
	}
}

func TestValidatorIostatProducesNote(t *testing.T) {
	raw := &RawOutput{Stdout: "Device r/s %util\nsda 1.0 12.5\n"}
	v, err := NewValidator("iostat", "sda", time.Second, fakeExecutor{available: true, raw: raw})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	note, err := v.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if note == "" {
		t.Error("expected a non-empty note from a successful iostat run")
	}
}

func TestValidatorPropagatesRunError(t *testing.T) {
	v, err := NewValidator("iostat", "sda", time.Second, fakeExecutor{available: true, runErr: errors.New("boom")})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if _, err := v.Validate(context.Background()); err == nil {
		t.Error("expected Validate to propagate a Run error")
	}
}

func TestValidatorRejectsTruncatedOutput(t *testing.T) {
	v, err := NewValidator("iostat", "sda", time.Second, fakeExecutor{available: true, raw: &RawOutput{Truncated: true}})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if _, err := v.Validate(context.Background()); err == nil {
		t.Error("expected an error when tool output was truncated")
	}
}

func TestNewValidatorUnknownTool(t *testing.T) {
	if _, err := NewValidator("nonexistent", "sda", time.Second, fakeExecutor{}); err == nil {
		t.Error("expected an error for an unregistered tool name")
	}
}
