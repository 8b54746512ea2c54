//go:build linux

package proc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ClockTicks returns the number of jiffies (clock ticks) per second.
// It first checks the env var CLK_TCK (useful for testing), otherwise
// falls back to 100 (common default).
//
// Note: On real systems, the authoritative way is `sysconf(_SC_CLK_TCK)`,
// but calling that requires cgo. For portability in a pure-Go library,
// this simplified approach is acceptable.
func ClockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	return 100
}

// SelfCPUTimeNs returns the CPU time consumed by the whole process in
// nanoseconds, derived from the utime+stime jiffy counters in
// /proc/self/stat. The counter is monotonic; callers take deltas.
func SelfCPUTimeNs() (int64, error) {
	return statCPUTimeNs("/proc/self/stat")
}

// ThreadCPUTimeNs returns the CPU time consumed by one thread of the
// current process in nanoseconds, from /proc/self/task/<tid>/stat.
// Returns an error if the thread has already exited.
func ThreadCPUTimeNs(tid int) (int64, error) {
	return statCPUTimeNs(fmt.Sprintf("/proc/self/task/%d/stat", tid))
}

func statCPUTimeNs(path string) (int64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	ut, st, err := parseStatCPU(string(b))
	if err != nil {
		return 0, err
	}
	jiffies := ut + st
	return int64(jiffies) * (1e9 / int64(ClockTicks())), nil
}

// parseStatCPU extracts utime and stime from a /proc stat line.
//
// Field order is fixed, but comm (2nd field) is in parens and may contain
// spaces. We strip everything before the closing ") " safely.
// utime is the 14th field overall, stime the 15th.
func parseStatCPU(line string) (utime, stime uint64, err error) {
	i := strings.LastIndex(line, ") ")
	if i < 0 {
		return 0, 0, ErrNoStat
	}
	fields := strings.Fields(line[i+2:])
	if len(fields) < 13 {
		return 0, 0, ErrShortStat
	}
	utime, _ = strconv.ParseUint(fields[11], 10, 64)
	stime, _ = strconv.ParseUint(fields[12], 10, 64)
	return utime, stime, nil
}
