package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/arjunmenon/quiesce/internal/diagexec"
	"github.com/arjunmenon/quiesce/internal/orchestrator"
	"github.com/arjunmenon/quiesce/internal/output"
)

func newStatusCmd() *cobra.Command {
	var (
		configPath string
		profile    string
		outputPath string
		aiPrompt   bool
		devices    []string // "mask:ssd" or "mask:hdd"
		validate   []string // "tool:devname", e.g. "iostat:sda"
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Snapshot the scheduler's live state into a report",
		Long:  "Builds a scheduler, references the requested devices, optionally cross-validates against real kernel tools, and prints a structured report.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, _, err := buildScheduler(configPath, 256)
			if err != nil {
				return err
			}

			for _, spec := range devices {
				mask, isSSD, err := parseDeviceSpec(spec)
				if err != nil {
					return err
				}
				sched.Registry.RefByMask(mask, isSSD)
			}

			validators, err := buildValidators(validate, orchestrator.GetProfile(profile).Timeout)
			if err != nil {
				return err
			}

			orch := orchestrator.New(sched, validators, quiet)
			report, err := orch.Run(context.Background(), profile)
			if err != nil {
				return err
			}

			if aiPrompt {
				report.AIContext = output.GenerateAIPrompt(report)
			}
			return output.WriteJSON(report, outputPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Tunable config file (JSON)")
	cmd.Flags().StringVarP(&profile, "profile", "p", "standard", "Profile: "+strings.Join(orchestrator.ProfileNames(), ", "))
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output file path (- for stdout)")
	cmd.Flags().BoolVar(&aiPrompt, "ai-prompt", false, "Include an AI analysis prompt in the report")
	cmd.Flags().StringSliceVar(&devices, "device", nil, "Device to reference, as mask:ssd or mask:hdd (repeatable)")
	cmd.Flags().StringSliceVar(&validate, "validate", nil, "Cross-validator to run, as tool:devname, e.g. iostat:sda (repeatable)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")

	return cmd
}

// parseDeviceSpec parses a "mask:ssd" or "mask:hdd" flag value.
func parseDeviceSpec(spec string) (mask uint64, isSSD bool, err error) {
	parts := strings.SplitN(spec, ":", 2)
	mask, err = parseMask(parts[0])
	if err != nil {
		return 0, false, err
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "ssd":
			isSSD = true
		case "hdd":
			isSSD = false
		default:
			return 0, false, fmt.Errorf("invalid device media %q: want ssd or hdd", parts[1])
		}
	}
	return mask, isSSD, nil
}

// buildValidators turns "tool:devname" flag values into diagexec
// Validators, implementing orchestrator.CrossValidator.
func buildValidators(specs []string, timeout time.Duration) ([]orchestrator.CrossValidator, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	exec := diagexec.NewToolExecutor(false)
	out := make([]orchestrator.CrossValidator, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --validate value %q: want tool:devname", spec)
		}
		v, err := diagexec.NewValidator(parts[0], parts[1], timeout, exec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
