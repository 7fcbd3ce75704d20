package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/arjunmenon/quiesce/internal/tier"
)

// deviceSummary is list_devices' per-device entry.
type deviceSummary struct {
	Mask               uint64 `json:"mask"`
	IsSSD              bool   `json:"is_ssd"`
	Disabled           bool   `json:"disabled"`
	FusionWithPriority bool   `json:"fusion_with_priority"`
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices := s.sched.Registry.All()
	out := make([]deviceSummary, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceSummary{
			Mask:               d.Mask(),
			IsSSD:              d.IsSSD(),
			Disabled:           d.Disabled(),
			FusionWithPriority: d.FusionWithPriority(),
		})
	}
	return jsonResult(out)
}

// tierState is get_device_state's per-tier entry.
type tierState struct {
	Tier         string `json:"tier"`
	WindowMsecs  int    `json:"window_msecs"`
	PeriodMsecs  int    `json:"period_msecs"`
	Inflight     int32  `json:"inflight"`
	WaitQueueLen int    `json:"wait_queue_len"`
	LastIOPID    int    `json:"last_io_pid"`
}

// deviceState is get_device_state's result shape.
type deviceState struct {
	Mask            uint64      `json:"mask"`
	PeriodNum       uint32      `json:"period_num"`
	LastWriteMicros int64       `json:"last_write_micros"`
	IOCount         int32       `json:"io_count"`
	Tiers           []tierState `json:"tiers"`
}

func (s *Server) handleGetDeviceState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	mask, ok := numberArg(args, "mask")
	if !ok {
		return errResult("mask is required"), nil
	}

	d, found := s.sched.Registry.Lookup(uint64(mask))
	if !found {
		return errResult(fmt.Sprintf("no device with mask %d has been referenced yet", uint64(mask))), nil
	}

	tiers, periodNum, lastWrite, ioCount := d.Snapshot()
	state := deviceState{
		Mask:            d.Mask(),
		PeriodNum:       periodNum,
		LastWriteMicros: int64(lastWrite),
		IOCount:         ioCount,
	}
	for _, t := range tiers {
		state.Tiers = append(state.Tiers, tierState{
			Tier:         t.Tier.String(),
			WindowMsecs:  t.WindowMsecs,
			PeriodMsecs:  t.PeriodMsecs,
			Inflight:     t.Inflight,
			WaitQueueLen: t.WaitQueueLen,
			LastIOPID:    t.LastIOPID,
		})
	}
	return jsonResult(state)
}

func (s *Server) handleSetTunable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	kind := stringArg(args, "kind", "")
	tierName := stringArg(args, "tier", "")
	msecs, ok := numberArg(args, "msecs")
	if !ok {
		return errResult("msecs is required"), nil
	}

	t, err := parseTunableTier(tierName)
	if err != nil {
		return errResult(err.Error()), nil
	}

	tbl := s.sched.Tunables()
	switch kind {
	case "window":
		tbl.SetWindow(t, int(msecs))
	case "period_hdd":
		tbl.SetPeriod(t, false, int(msecs))
	case "period_ssd":
		tbl.SetPeriod(t, true, int(msecs))
	default:
		return errResult(fmt.Sprintf("unknown kind %q: want window, period_hdd, or period_ssd", kind)), nil
	}

	return newTextResult(fmt.Sprintf("%s/%s set to %dms", kind, tierName, int(msecs))), nil
}

func (s *Server) handleDisableDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	mask, ok := numberArg(args, "mask")
	if !ok {
		return errResult("mask is required"), nil
	}
	isFusion := boolArg(args, "is_fusion", false)

	d, found := s.sched.Registry.Lookup(uint64(mask))
	if !found {
		return errResult(fmt.Sprintf("no device with mask %d has been referenced yet", uint64(mask))), nil
	}
	d.SetFusionWithPriority(isFusion)

	if isFusion {
		return newTextResult(fmt.Sprintf("device mask %d switched to fusion-with-priority mode", uint64(mask))), nil
	}
	return newTextResult(fmt.Sprintf("device mask %d disabled", uint64(mask))), nil
}

func (s *Server) handleOverrideEnable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	enable := boolArg(args, "enable", true)
	s.sched.Tunables().SetEnabled(enable)
	return newTextResult(fmt.Sprintf("global throttling enable flag set to %v", enable)), nil
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

// getArgs safely extracts the arguments map from a CallToolRequest. Returns
// an empty map if Arguments is nil or not a map.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

// numberArg extracts a numeric argument. JSON-RPC numbers decode as
// float64, matching the rest of the mcp-go tool surface.
func numberArg(args map[string]interface{}, key string) (float64, bool) {
	val, ok := args[key]
	if !ok || val == nil {
		return 0, false
	}
	n, ok := val.(float64)
	return n, ok
}

// boolArg extracts a boolean argument with a default value.
func boolArg(args map[string]interface{}, key string, defaultVal bool) bool {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	b, ok := val.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

// newTextResult creates a successful MCP tool result with text content.
func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// errResult creates a tool-level error result (IsError=true), not a
// transport-level JSON-RPC error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}
