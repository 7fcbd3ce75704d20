// Package installer detects the running Linux distribution and installs
// the packages internal/diagexec's cross-validators need: blktrace,
// sysstat (iostat), and bpftrace/bcc-tools for biolatency. Adapted from
// melisai's internal/installer, which did the same distro-detect-then-
// package-manager-dispatch dance for BCC/bpftrace/perf; quiesce keeps that
// shape and trims the package set to the block-I/O tools SPEC_FULL.md's
// diagexec package actually shells out to (dropping perf and the
// FlameGraph clone step, which quiesce's domain stack has no use for).
package installer

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Installer detects the Linux distribution and installs diagexec's
// dependencies.
type Installer struct {
	DryRun bool
}

// DistroInfo holds OS and package manager details.
type DistroInfo struct {
	ID         string // "ubuntu", "centos", "fedora", "arch"
	VersionID  string
	PkgManager string // "apt", "yum", "dnf", "pacman", "zypper"
}

// PackageSet defines the packages for one installation step.
type PackageSet struct {
	Step     string
	Packages map[string][]string // pkg manager -> package names
}

// Run performs the installation.
func (inst *Installer) Run() error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("quiesce install is only supported on Linux (current: %s)", runtime.GOOS)
	}
	if os.Geteuid() != 0 {
		return fmt.Errorf("quiesce install requires root privileges (use sudo)")
	}

	distro, err := DetectDistro()
	if err != nil {
		return fmt.Errorf("detect distro: %w", err)
	}
	fmt.Printf("Detected: %s %s (package manager: %s)\n", distro.ID, distro.VersionID, distro.PkgManager)

	if kernel, err := KernelVersion(); err == nil {
		fmt.Printf("Kernel: %s\n", kernel)
	}

	if !inst.DryRun {
		fmt.Println("\nUpdating package index...")
		if err := updatePackageIndex(distro.PkgManager); err != nil {
			fmt.Printf("  WARNING: %v\n", err)
		}
	}

	for _, step := range BuildPackageSteps(distro) {
		pkgs := step.Packages[distro.PkgManager]
		if len(pkgs) == 0 {
			continue
		}
		fmt.Printf("\n[%s] Installing: %s\n", step.Step, strings.Join(pkgs, " "))

		if inst.DryRun {
			fmt.Printf("  (dry-run) Would run: %s install %s\n", distro.PkgManager, strings.Join(pkgs, " "))
			continue
		}

		for _, pkg := range pkgs {
			if err := installPackages(distro.PkgManager, []string{pkg}); err != nil {
				fmt.Printf("  WARNING: failed to install %s: %v\n", pkg, err)
			} else {
				fmt.Printf("  OK: %s\n", pkg)
			}
		}
	}

	fmt.Println("\nInstallation complete. Run 'quiescectl capabilities' to verify.")
	return nil
}

// DetectDistro reads /etc/os-release to identify the distribution.
func DetectDistro() (*DistroInfo, error) {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return nil, fmt.Errorf("read /etc/os-release: %w", err)
	}

	info := &DistroInfo{}
	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		val := strings.Trim(parts[1], "\"")
		switch parts[0] {
		case "ID":
			info.ID = val
		case "VERSION_ID":
			info.VersionID = val
		}
	}

	switch info.ID {
	case "ubuntu", "debian", "linuxmint", "pop":
		info.PkgManager = "apt"
	case "centos", "rhel", "rocky", "almalinux", "ol":
		info.PkgManager = "yum"
	case "fedora":
		info.PkgManager = "dnf"
	case "arch", "manjaro":
		info.PkgManager = "pacman"
	case "opensuse", "sles":
		info.PkgManager = "zypper"
	default:
		return nil, fmt.Errorf("unsupported distribution: %s", info.ID)
	}

	return info, nil
}

// KernelVersion returns the running kernel version.
func KernelVersion() (string, error) {
	out, err := exec.Command("uname", "-r").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// BuildPackageSteps returns the ordered list of package installations
// needed for internal/kprobe (kernel headers, bpftrace/bcc) and
// internal/diagexec (blktrace, sysstat).
func BuildPackageSteps(distro *DistroInfo) []PackageSet {
	kernelVer, _ := KernelVersion()

	aptHeaders := []string{"linux-headers-" + kernelVer}
	if kernelVer != "" {
		aptHeaders = append(aptHeaders, "linux-headers-generic")
	}

	return []PackageSet{
		{
			Step: "kernel-headers",
			Packages: map[string][]string{
				"apt":    aptHeaders,
				"yum":    {"kernel-devel-" + kernelVer, "kernel-devel"},
				"dnf":    {"kernel-devel"},
				"pacman": {"linux-headers"},
			},
		},
		{
			Step: "blktrace",
			Packages: map[string][]string{
				"apt":    {"blktrace"},
				"yum":    {"blktrace"},
				"dnf":    {"blktrace"},
				"pacman": {"blktrace"},
			},
		},
		{
			Step: "sysstat", // iostat
			Packages: map[string][]string{
				"apt":    {"sysstat"},
				"yum":    {"sysstat"},
				"dnf":    {"sysstat"},
				"pacman": {"sysstat"},
			},
		},
		{
			Step: "bcc-tools", // biolatency and friends
			Packages: map[string][]string{
				"apt":    {"bpfcc-tools", "python3-bpfcc"},
				"yum":    {"bcc-tools", "python3-bcc"},
				"dnf":    {"bcc-tools", "python3-bcc"},
				"pacman": {"bcc-tools", "python-bcc"},
			},
		},
		{
			Step: "bpftrace",
			Packages: map[string][]string{
				"apt":    {"bpftrace"},
				"yum":    {"bpftrace"},
				"dnf":    {"bpftrace"},
				"pacman": {"bpftrace"},
			},
		},
	}
}

func updatePackageIndex(pkgManager string) error {
	var cmd *exec.Cmd
	switch pkgManager {
	case "apt":
		cmd = exec.Command("apt-get", "update", "-qq")
		cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")
	case "yum":
		cmd = exec.Command("yum", "makecache", "-q")
	case "dnf":
		cmd = exec.Command("dnf", "makecache", "-q")
	case "pacman":
		cmd = exec.Command("pacman", "-Sy")
	default:
		return nil
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func installPackages(pkgManager string, packages []string) error {
	var cmd *exec.Cmd
	switch pkgManager {
	case "apt":
		args := append([]string{"install", "-y", "-qq"}, packages...)
		cmd = exec.Command("apt-get", args...)
		cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")
	case "yum":
		args := append([]string{"install", "-y"}, packages...)
		cmd = exec.Command("yum", args...)
	case "dnf":
		args := append([]string{"install", "-y"}, packages...)
		cmd = exec.Command("dnf", args...)
	case "pacman":
		args := append([]string{"-S", "--noconfirm"}, packages...)
		cmd = exec.Command("pacman", args...)
	case "zypper":
		args := append([]string{"install", "-y"}, packages...)
		cmd = exec.Command("zypper", args...)
	default:
		return fmt.Errorf("unsupported package manager: %s", pkgManager)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
