package diagexec

import (
	"strconv"
	"time"
)

// ToolSpec defines how to invoke one diagnostic tool, matching melisai's
// executor.ToolSpec (Name/Binary/BuildArgs) narrowed to quiesce's three
// block-layer cross-validators.
type ToolSpec struct {
	Name      string
	Binary    string
	NeedsRoot bool
	BuildArgs func(deviceName string, duration time.Duration) []string
}

// Registry maps a cross-validator name to its tool specification.
var Registry = map[string]*ToolSpec{
	"iostat": {
		Name: "iostat", Binary: "iostat", NeedsRoot: false,
		BuildArgs: func(deviceName string, d time.Duration) []string {
			return []string{"-x", deviceName, strconv.Itoa(secondsFloor(d)), "2"}
		},
	},
	"biolatency": {
		Name: "biolatency", Binary: "biolatency", NeedsRoot: true,
		BuildArgs: func(deviceName string, d time.Duration) []string {
			return []string{"-D", strconv.Itoa(secondsFloor(d)), "1"}
		},
	},
	"blktrace": {
		Name: "blktrace", Binary: "blktrace", NeedsRoot: true,
		BuildArgs: func(deviceName string, d time.Duration) []string {
			return []string{"-d", "/dev/" + deviceName, "-w", strconv.Itoa(secondsFloor(d)), "-o", "-"}
		},
	},
}

// secondsFloor rounds d down to whole seconds, with a floor of 1 — every
// tool here samples in whole-second windows.
func secondsFloor(d time.Duration) int {
	secs := int(d.Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}
