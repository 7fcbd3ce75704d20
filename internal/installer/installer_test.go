package installer

import "testing"

func TestBuildPackageStepsCoversAllManagers(t *testing.T) {
	managers := []string{"apt", "yum", "dnf", "pacman"}
	distro := &DistroInfo{ID: "ubuntu", PkgManager: "apt"}
	steps := BuildPackageSteps(distro)

	if len(steps) == 0 {
		t.Fatal("expected at least one package step")
	}

	for _, step := range steps {
		for _, mgr := range managers {
			if mgr == "pacman" && step.Step == "kernel-headers" {
				continue // pacman's linux-headers has no per-kernel variant
			}
			if len(step.Packages[mgr]) == 0 {
				t.Errorf("step %q has no packages for %q", step.Step, mgr)
			}
		}
	}
}

func TestBuildPackageStepsIncludesDiagexecDeps(t *testing.T) {
	steps := BuildPackageSteps(&DistroInfo{PkgManager: "apt"})
	names := map[string]bool{}
	for _, step := range steps {
		names[step.Step] = true
	}
	for _, want := range []string{"blktrace", "sysstat", "bcc-tools", "bpftrace"} {
		if !names[want] {
			t.Errorf("expected a %q step covering diagexec's tool dependencies", want)
		}
	}
}
