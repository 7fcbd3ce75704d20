// Package kprobe provides BTF/CO-RE capability detection and optional
// kprobe attachment to the kernel's block-layer request functions (see
// BlockLayerPrograms). No probe result is wired to a device disable:
// nothing in this package calls quiesce.Disable or
// Device.SetFusionWithPriority. Adapted from melisai's internal/ebpf, which detected the
// same capability to decide whether it could load a native tcpretrans
// probe; the detection logic carries over unchanged, only the attach
// target and the consumer of a successful load differ.
package kprobe

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// BTFInfo describes the BTF/CO-RE availability on the running kernel.
type BTFInfo struct {
	Available     bool   `json:"available"`
	VmlinuxPath   string `json:"vmlinux_path,omitempty"`
	KernelVersion string `json:"kernel_version"`
	MajorVersion  int    `json:"major_version"`
	MinorVersion  int    `json:"minor_version"`
	CORESupport   bool   `json:"core_support"`
}

// DetectBTF inspects the host for BTF availability and CO-RE eligibility
// (kernel >= 5.8).
func DetectBTF() *BTFInfo {
	info := &BTFInfo{}
	info.KernelVersion = readKernelVersion()
	info.MajorVersion, info.MinorVersion = parseKernelVersion(info.KernelVersion)

	if _, err := os.Stat("/sys/kernel/btf/vmlinux"); err == nil {
		info.Available = true
		info.VmlinuxPath = "/sys/kernel/btf/vmlinux"
	}
	if info.MajorVersion > 5 || (info.MajorVersion == 5 && info.MinorVersion >= 8) {
		info.CORESupport = true
	}
	return info
}

// DetectCapabilities reports what block-layer tracing features the running
// kernel exposes, mirroring DetectBPFCapabilities but scoped to what
// kprobe.Attacher actually needs (kprobe events, BTF, the bpf syscall).
func DetectCapabilities() map[string]bool {
	caps := make(map[string]bool)
	caps["bpf_syscall"] = fileExists("/proc/sys/kernel/unprivileged_bpf_disabled")
	caps["btf_vmlinux"] = fileExists("/sys/kernel/btf/vmlinux")
	caps["bpffs"] = fileExists("/sys/fs/bpf")
	caps["kprobes"] = fileExists("/sys/kernel/debug/kprobes/list") ||
		fileExists("/sys/kernel/tracing/kprobe_events")
	caps["block_tracepoints"] = fileExists("/sys/kernel/tracing/events/block/block_rq_issue") ||
		fileExists("/sys/kernel/debug/tracing/events/block/block_rq_issue")
	return caps
}

func readKernelVersion() string {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return ""
	}
	fields := strings.Fields(string(data))
	if len(fields) >= 3 {
		return fields[2]
	}
	return ""
}

func parseKernelVersion(version string) (int, int) {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return 0, 0
	}
	major, _ := strconv.Atoi(parts[0])
	minorStr := parts[1]
	if idx := strings.IndexAny(minorStr, "-+~"); idx >= 0 {
		minorStr = minorStr[:idx]
	}
	minor, _ := strconv.Atoi(minorStr)
	return major, minor
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FormatCapabilities renders a human-readable summary, used by the
// `quiescectl capabilities` command.
func FormatCapabilities(caps map[string]bool) string {
	var sb strings.Builder
	keys := []string{"bpf_syscall", "btf_vmlinux", "bpffs", "kprobes", "block_tracepoints"}
	for _, k := range keys {
		status := "no"
		if caps[k] {
			status = "yes"
		}
		sb.WriteString(fmt.Sprintf("%-20s %s\n", k, status))
	}
	return sb.String()
}
