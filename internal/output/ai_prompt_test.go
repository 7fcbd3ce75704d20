package output

import (
	"strings"
	"testing"
)

func TestGenerateAIPromptIncludesHealthScoreAndAnomalies(t *testing.T) {
	report := sampleReport()
	ctx := GenerateAIPrompt(report)

	if !strings.Contains(ctx.Prompt, "Health Score") {
		t.Error("expected prompt to mention the health score")
	}
	if len(ctx.KnownPatterns) == 0 {
		t.Error("expected known throttle patterns to be populated")
	}
	if ctx.Methodology == "" {
		t.Error("expected a methodology description")
	}
}

func TestGenerateAIPromptMentionsSchedulerOverhead(t *testing.T) {
	report := sampleReport()
	report.SelfOverhead.LockAcquisitions = 42
	ctx := GenerateAIPrompt(report)
	if !strings.Contains(ctx.Prompt, "SCHEDULER OVERHEAD") {
		t.Error("expected the scheduler overhead note in the generated prompt")
	}
}
