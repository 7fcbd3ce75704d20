package diagexec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// histBucketRe matches one BCC-style power-of-2 histogram line, the same
// shape melisai's parsers.go scans for biolatency/runqlat output:
//
//	usecs               : count     distribution
//	512 -> 1023         : 42       |****                    |
var histBucketRe = regexp.MustCompile(`^\s*(\d+)\s*->\s*(\d+)\s*:\s*(\d+)`)

// ParseBiolatencyAverage computes the I/O-count-weighted average latency in
// microseconds from a biolatency histogram, or an error if no buckets were
// found (a quiet device during the sample window, not a parse failure).
func ParseBiolatencyAverage(raw string) (avgUsecs float64, sampleCount int64, err error) {
	var totalWeighted float64
	var total int64
	for _, line := range strings.Split(raw, "\n") {
		m := histBucketRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		low, _ := strconv.ParseInt(m[1], 10, 64)
		high, _ := strconv.ParseInt(m[2], 10, 64)
		count, _ := strconv.ParseInt(m[3], 10, 64)
		mid := float64(low+high) / 2
		totalWeighted += mid * float64(count)
		total += count
	}
	if total == 0 {
		return 0, 0, fmt.Errorf("no biolatency histogram buckets found in sample window")
	}
	return totalWeighted / float64(total), total, nil
}

// iostatFields splits one `iostat -x` device row on whitespace; the field order quiesce
// cares about is device name (col 1) and %util (last column).
var iostatFields = regexp.MustCompile(`\s+`)

// ParseIostatUtil extracts the %util figure for deviceName from `iostat -x`
// output, scanning for deviceName as the first field of a data row and
// taking the last whitespace-separated field as %util (iostat's layout
// keeps %util last across every -x variant quiesce targets).
func ParseIostatUtil(raw, deviceName string) (utilPercent float64, err error) {
	for _, line := range strings.Split(raw, "\n") {
		fields := iostatFields.Split(strings.TrimSpace(line), -1)
		if len(fields) == 0 || fields[0] != deviceName {
			continue
		}
		last := fields[len(fields)-1]
		v, perr := strconv.ParseFloat(last, 64)
		if perr != nil {
			continue
		}
		return v, nil
	}
	return 0, fmt.Errorf("device %q not found in iostat output", deviceName)
}

// blktraceQueuedRe matches blkparse's per-device summary total, e.g.
// "Total (sda):" followed eventually by "Reads Queued:    1234,   512KiB".
var blktraceQueuedRe = regexp.MustCompile(`Reads Queued:\s*(\d+)`)
var blktraceWritesQueuedRe = regexp.MustCompile(`Writes Queued:\s*(\d+)`)

// ParseBlktraceQueueDepth sums the queued-read and queued-write counts out
// of a blkparse summary, the real-kernel signal orchestrator compares
// against the simulated scheduler's own inflight+wait-queue counters.
func ParseBlktraceQueueDepth(raw string) (queued int64, err error) {
	r := blktraceQueuedRe.FindStringSubmatch(raw)
	w := blktraceWritesQueuedRe.FindStringSubmatch(raw)
	if r == nil && w == nil {
		return 0, fmt.Errorf("no blkparse queue summary found in output")
	}
	if r != nil {
		n, _ := strconv.ParseInt(r[1], 10, 64)
		queued += n
	}
	if w != nil {
		n, _ := strconv.ParseInt(w[1], 10, 64)
		queued += n
	}
	return queued, nil
}
