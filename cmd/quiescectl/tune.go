package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arjunmenon/quiesce/internal/tier"
	"github.com/arjunmenon/quiesce/internal/tunable"
)

func newTuneCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tune <window|period_hdd|period_ssd> <tier1|tier2|tier3> <msecs>",
		Short: "Change a window or period value in a tunable config file",
		Long:  "Loads --config (required; a path that does not exist yet starts from the built-in defaults), applies one change, and writes the result back to --config so the next process that loads it picks up the change.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("tune requires --config: there is no running process to retune live (use the mcp server's set_tunable tool for that)")
			}

			t, err := parseTunableTier(args[1])
			if err != nil {
				return err
			}
			var msecs int
			if _, err := fmt.Sscanf(args[2], "%d", &msecs); err != nil {
				return fmt.Errorf("invalid msecs %q: %w", args[2], err)
			}

			tbl := tunable.NewDefault()
			if err := tbl.LoadConfigFile(configPath); err != nil {
				return err
			}

			switch args[0] {
			case "window":
				tbl.SetWindow(t, msecs)
			case "period_hdd":
				tbl.SetPeriod(t, false, msecs)
			case "period_ssd":
				tbl.SetPeriod(t, true, msecs)
			default:
				return fmt.Errorf("unknown kind %q: want window, period_hdd, or period_ssd", args[0])
			}

			if err := tbl.SaveConfigFile(configPath); err != nil {
				return err
			}
			fmt.Printf("%s/%s set to %dms in %s\n", args[0], args[1], msecs, configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Tunable config file to read and rewrite (required)")
	return cmd
}

func parseTunableTier(name string) (tier.Tier, error) {
	switch name {
	case "tier1":
		return tier.Tier1, nil
	case "tier2":
		return tier.Tier2, nil
	case "tier3":
		return tier.Tier3, nil
	default:
		return tier.None, fmt.Errorf("unknown tier %q: want tier1, tier2, or tier3", name)
	}
}
