package main

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/arjunmenon/quiesce/internal/issuer"
	"github.com/arjunmenon/quiesce/internal/tier"
)

func newTraceCmd() *cobra.Command {
	var (
		configPath string
		deviceSpec string
		issuers    int
		duration   time.Duration
		policy     string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Drive synthetic I/O and dump the OPEN_THROTTLE_WINDOW/PROCESS_THROTTLED events it produced",
		Long:  "Same workload generator as simulate, but prints the scheduler's trace recorder instead of device state — useful for checking trace-point ordering.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, _, err := buildScheduler(configPath, 4096)
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
				}(20000 + i)
			}
			wg.Wait()

			return writeJSON(sched.Trace().Events(), outputPath)
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
