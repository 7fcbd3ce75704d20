package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arjunmenon/quiesce/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		configPath    string
		traceCapacity int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the quiesce MCP tool surface over stdio",
		Long:  "Builds a scheduler and exposes it to an MCP client (list_devices, get_device_state, set_tunable, disable_device, override_enable) until the process is interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, _, err := buildScheduler(configPath, traceCapacity)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := mcp.NewServer(version, sched)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Tunable config file (JSON)")
	cmd.Flags().IntVar(&traceCapacity, "trace-capacity", 4096, "Ring buffer capacity for the trace recorder")
	return cmd
}
