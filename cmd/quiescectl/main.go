// quiescectl — operator CLI for the quiesce tiered I/O throttling
// scheduler: inspect and exercise a scheduler instance, tune its
// window/period tables, disable or override throttling, diff two status
// reports, check host capabilities, and serve the MCP tool surface.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/arjunmenon/quiesce/internal/clock"
	"github.com/arjunmenon/quiesce/internal/throttle"
	"github.com/arjunmenon/quiesce/internal/trace"
	"github.com/arjunmenon/quiesce/internal/tunable"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "quiescectl",
		Short:   "Operate and inspect a quiesce tiered I/O throttling scheduler",
		Version: version,
	}

	rootCmd.AddCommand(
		newStatusCmd(),
		newSimulateCmd(),
		newTuneCmd(),
		newDisableCmd(),
		newOverrideCmd(),
		newCapabilitiesCmd(),
		newTraceCmd(),
		newDiffCmd(),
		newInstallCmd(),
		newMCPCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildScheduler constructs a fresh in-process scheduler seeded from
// defaults, an optional config file, and the QUIESCE_* environment — the
// same three-layer precedence internal/tunable.Table documents. Every
// quiescectl subcommand that needs a scheduler builds one this way; there
// is no resident daemon to attach to, so each invocation is a self-
// contained session (load config, act, optionally persist tunable changes
// back to the same file).
func buildScheduler(configPath string, traceCapacity int) (*throttle.Scheduler, *tunable.Table, error) {
	tbl := tunable.NewDefault()
	if err := tbl.LoadConfigFile(configPath); err != nil {
		return nil, nil, fmt.Errorf("load tunable config: %w", err)
	}
	tbl.LoadEnv()

	clk := clock.NewSystemSource()
	tr := trace.New(traceCapacity)
	sched := throttle.New(clk, tbl, tr)
	return sched, tbl, nil
}

// writeJSON serializes v as indented JSON to path, or stdout if path is
// "-" or empty — the same shape output.WriteJSON uses for model.Report,
// generalized for the ad hoc summaries simulate and trace print.
func writeJSON(v interface{}, path string) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseMask parses a device mask given as decimal or 0x-prefixed hex.
func parseMask(s string) (uint64, error) {
	var mask uint64
	_, err := fmt.Sscanf(s, "0x%x", &mask)
	if err == nil {
		return mask, nil
	}
	_, err = fmt.Sscanf(s, "%d", &mask)
	if err != nil {
		return 0, fmt.Errorf("invalid device mask %q: want decimal or 0x-prefixed hex", s)
	}
	return mask, nil
}
