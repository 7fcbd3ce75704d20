package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arjunmenon/quiesce/internal/kprobe"
)

func newCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Show BTF/CO-RE and block-tracepoint capabilities on this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := kprobe.DetectCapabilities()
			fmt.Print(kprobe.FormatCapabilities(caps))

			btf := kprobe.DetectBTF()
			fmt.Printf("Kernel: %s\n", btf.KernelVersion)
			fmt.Printf("BTF: %v\n", btf.Available)
			fmt.Printf("CO-RE: %v\n", btf.CORESupport)
			return nil
		},
	}
}
