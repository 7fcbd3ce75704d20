package main

import (
	"github.com/spf13/cobra"

	"github.com/arjunmenon/quiesce/internal/installer"
)

func newInstallCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the blktrace/sysstat/bcc/bpftrace packages diagexec's validators shell out to",
		RunE: func(cmd *cobra.Command, args []string) error {
			inst := &installer.Installer{DryRun: dryRun}
			return inst.Run()
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be installed")
	return cmd
}
