package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDisableCmd() *cobra.Command {
	var (
		configPath string
		isFusion   bool
	)

	cmd := &cobra.Command{
		Use:   "disable <mask>",
		Short: "Disable (or fusion-with-priority) one device and print the resulting state",
		Long: "Disable is a live, per-process operation with nothing to persist: it references the device, " +
			"applies the change, and prints the result. Use the mcp server's disable_device tool to apply this " +
			"to an already-running process instead of a throwaway one.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mask, err := parseMask(args[0])
			if err != nil {
				return err
			}

			sched, _, err := buildScheduler(configPath, 16)
			if err != nil {
				return err
			}
			d := sched.Registry.RefByMask(mask, false)
			d.SetFusionWithPriority(isFusion)

			if isFusion {
				fmt.Printf("device mask %d switched to fusion-with-priority mode (disabled=%v)\n", mask, d.Disabled())
			} else {
				fmt.Printf("device mask %d disabled=%v\n", mask, d.Disabled())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Tunable config file (JSON)")
	cmd.Flags().BoolVar(&isFusion, "fusion", false, "Enter fusion-with-priority mode instead of a full disable")
	return cmd
}
