package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/arjunmenon/quiesce/internal/issuer"
	"github.com/arjunmenon/quiesce/internal/tier"
)

func newSimulateCmd() *cobra.Command {
	var (
		configPath string
		deviceSpec string
		issuers    int
		duration   time.Duration
		policy     string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive synthetic I/O against one device to observe throttling behavior",
		Long:  "Spawns a pool of synthetic issuers that repeatedly issue and complete I/O against one device at the given policy, then prints the resulting device state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, _, err := buildScheduler(configPath, 1024)
			if err != nil {
				return err
			}
			mask, isSSD, err := parseDeviceSpec(deviceSpec)
			if err != nil {
				return err
			}
			pol, err := parsePolicy(policy)
			if err != nil {
				return err
			}

			d := sched.Registry.RefByMask(mask, isSSD)
			ctx, cancel := context.WithTimeout(context.Background(), duration)
			defer cancel()

			var wg sync.WaitGroup
			for i := 0; i < issuers; i++ {
				wg.Add(1)
				go func(pid int) {
					defer wg.Done()
					iss := issuer.New(pid)
					for ctx.Err() == nil {
						t := tier.Classify(tier.ClassifyInput{Policy: pol})
						resolved := sched.UpdateOnIssue(d, iss, t, false, true)
						if resolved.Throttleable() {
							if _, err := sched.BlockIfThrottled(ctx, iss, 4); err != nil {
								return
							}
						}
						sched.EndIO(d, resolved, i%7 == 0)
						time.Sleep(time.Duration(1+rand.Intn(4)) * time.Millisecond)
					}
				}(10000 + i)
			}
			wg.Wait()

			tiers, periodNum, lastWrite, ioCount := d.Snapshot()
			tierSummaries := make([]map[string]interface{}, 0, len(tiers))
			for _, t := range tiers {
				tierSummaries = append(tierSummaries, map[string]interface{}{
					"tier":           t.Tier.String(),
					"window_msecs":   t.WindowMsecs,
					"period_msecs":   t.PeriodMsecs,
					"inflight":       t.Inflight,
					"wait_queue_len": t.WaitQueueLen,
					"last_io_pid":    t.LastIOPID,
				})
			}
			summary := map[string]interface{}{
				"mask":              d.Mask(),
				"period_num":        periodNum,
				"io_count":          ioCount,
				"last_write_micros": int64(lastWrite),
				"tiers":             tierSummaries,
			}
			return writeJSON(summary, outputPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Tunable config file (JSON)")
	cmd.Flags().StringVar(&deviceSpec, "device", "1:hdd", "Device to drive, as mask:ssd or mask:hdd")
	cmd.Flags().IntVar(&issuers, "issuers", 8, "Number of concurrent synthetic issuers")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "How long to drive synthetic I/O")
	cmd.Flags().StringVar(&policy, "policy", "throttle", "I/O policy: normal, throttle, passive_throttle, utility, standard")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output file path (- for stdout)")

	return cmd
}

func parsePolicy(name string) (tier.Policy, error) {
	switch name {
	case "normal":
		return tier.PolicyNormal, nil
	case "throttle":
		return tier.PolicyThrottle, nil
	case "passive_throttle":
		return tier.PolicyPassiveThrottle, nil
	case "utility":
		return tier.PolicyUtility, nil
	case "standard":
		return tier.PolicyStandard, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", name)
	}
}
