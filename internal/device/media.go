// media.go detects whether a block device is solid-state by reading the
// same sysfs attribute melisai's disk collector reads to enrich iostat
// output, adapted here to pick a device's period table instead of to
// report a dashboard field.
package device

import (
	"os"
	"path/filepath"
	"strings"
)

// DetectSSD reports whether the named block device (e.g. "sda", "nvme0n1")
// is non-rotational, by reading sysRoot/block/<name>/queue/rotational. A
// missing or unreadable attribute is treated as rotational (isSSD=false),
// the conservative choice: HDD periods are the more cautious (less
// aggressive) of the two tables.
func DetectSSD(sysRoot, name string) bool {
	path := filepath.Join(sysRoot, "block", name, "queue", "rotational")
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "0"
}

// DefaultSysRoot is the conventional sysfs mount point.
const DefaultSysRoot = "/sys"
