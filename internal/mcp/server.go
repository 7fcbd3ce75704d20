// Package mcp exposes a live quiesce scheduler as a set of MCP tools, so an
// AI operations agent can inspect device state and retune the scheduler
// without shelling out to quiescectl. Adapted from melisai's internal/mcp,
// which exposed get_health/collect_metrics/explain_anomaly/list_anomalies
// over the same mark3labs/mcp-go stdio transport; quiesce repoints the tool
// set at SPEC_FULL.md §3's external interface surface instead of melisai's
// collector reports.
package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/arjunmenon/quiesce/internal/throttle"
)

// Server wraps the MCP server instance bound to a live scheduler.
type Server struct {
	mcpServer *server.MCPServer
	sched     *throttle.Scheduler
}

// NewServer creates a new MCP server with registered tools for sched.
func NewServer(version string, sched *throttle.Scheduler) *Server {
	s := server.NewMCPServer("quiesce", version, server.WithLogging())

	srv := &Server{mcpServer: s, sched: sched}
	srv.registerTools()

	return srv
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools adds every supported tool to the server.
func (s *Server) registerTools() {
	listTool := mcp.NewTool("list_devices",
		mcp.WithDescription("List every device currently tracked by the scheduler: mask, media type, enabled/disabled, fusion-with-priority mode."),
	)
	s.mcpServer.AddTool(listTool, s.handleListDevices)

	stateTool := mcp.NewTool("get_device_state",
		mcp.WithDescription("Point-in-time state of one device: per-tier window/period, inflight count, wait-queue length, last I/O pid, period number, last write time."),
		mcp.WithNumber("mask",
			mcp.Required(),
			mcp.Description("Device bit mask, as reported by list_devices."),
		),
	)
	s.mcpServer.AddTool(stateTool, s.handleGetDeviceState)

	tuneTool := mcp.NewTool("set_tunable",
		mcp.WithDescription("Change a window or period value, live, for every device sharing the process-wide tunable table."),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Which table to change."),
			mcp.Enum("window", "period_hdd", "period_ssd"),
		),
		mcp.WithString("tier",
			mcp.Required(),
			mcp.Description("Tier to change."),
			mcp.Enum("tier1", "tier2", "tier3"),
		),
		mcp.WithNumber("msecs",
			mcp.Required(),
			mcp.Description("New value, in milliseconds."),
		),
	)
	s.mcpServer.AddTool(tuneTool, s.handleSetTunable)

	disableTool := mcp.NewTool("disable_device",
		mcp.WithDescription("Disable or re-enable software throttling for one device. is_fusion=true switches it into fusion-with-priority mode (forces HDD periods, only throttles threads with an explicit low-priority window) instead of fully disabling it."),
		mcp.WithNumber("mask",
			mcp.Required(),
			mcp.Description("Device bit mask, as reported by list_devices."),
		),
		mcp.WithBoolean("is_fusion",
			mcp.Description("Enter fusion-with-priority mode instead of a full disable."),
			mcp.DefaultBool(false),
		),
	)
	s.mcpServer.AddTool(disableTool, s.handleDisableDevice)

	overrideTool := mcp.NewTool("override_enable",
		mcp.WithDescription("Flip the process-wide throttling enable flag. When false, update_on_issue always returns NONE and block_if_throttled no-ops for every device."),
		mcp.WithBoolean("enable",
			mcp.Required(),
			mcp.Description("New value of the global enable flag."),
		),
	)
	s.mcpServer.AddTool(overrideTool, s.handleOverrideEnable)
}
