package kprobe

import "testing"

func TestParseKernelVersion(t *testing.T) {
	cases := []struct {
		in              string
		major, minor    int
	}{
		{"5.15.0-91-generic", 5, 15},
		{"6.8.0+", 6, 8},
		{"", 0, 0},
	}
	for _, c := range cases {
		major, minor := parseKernelVersion(c.in)
		if major != c.major || minor != c.minor {
			t.Errorf("parseKernelVersion(%q) = %d.%d, want %d.%d", c.in, major, minor, c.major, c.minor)
		}
	}
}

func TestDetectBTFNeverPanics(t *testing.T) {
	info := DetectBTF()
	if info == nil {
		t.Fatal("DetectBTF returned nil")
	}
}

func TestFormatCapabilitiesListsKnownKeys(t *testing.T) {
	out := FormatCapabilities(map[string]bool{"bpf_syscall": true})
	if out == "" {
		t.Error("expected non-empty capability report")
	}
}
