package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arjunmenon/quiesce/internal/diffreport"
	"github.com/arjunmenon/quiesce/internal/output"
)

func newDiffCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "diff <baseline.json> <current.json>",
		Short: "Compare two quiesce status reports",
		Long:  "Loads two reports written by `quiescectl status -o` and shows which tiers' contention and self-overhead moved.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := output.LoadReport(args[0])
			if err != nil {
				return fmt.Errorf("load baseline: %w", err)
			}
			current, err := output.LoadReport(args[1])
			if err != nil {
				return fmt.Errorf("load current: %w", err)
			}

			result := diffreport.Compare(baseline, current)

			if outputPath == "" || outputPath == "-" {
				fmt.Print(diffreport.Format(result))
				return nil
			}
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			return os.WriteFile(outputPath, data, 0644)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output diff file path (- for human-readable stdout)")
	return cmd
}
