package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOverrideCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "override <true|false>",
		Short: "Flip the global throttling enable flag and print the resulting state",
		Long: "Override is a live, per-process operation with nothing to persist. Use the mcp server's " +
			"override_enable tool to apply this to an already-running process instead of a throwaway one.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var enable bool
			switch args[0] {
			case "true":
				enable = true
			case "false":
				enable = false
			default:
				return fmt.Errorf("invalid value %q: want true or false", args[0])
			}

			_, tbl, err := buildScheduler(configPath, 16)
			if err != nil {
				return err
			}
			tbl.SetEnabled(enable)
			fmt.Printf("global throttling enable flag set to %v\n", tbl.IsEnabled())
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Tunable config file (JSON)")
	return cmd
}
