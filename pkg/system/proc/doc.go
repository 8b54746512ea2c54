// Package proc reads per-process and per-thread CPU time counters from
// /proc on Linux.
//
// It backs the process-wide CPU accounting fallback in
// pkg/profiler/cputime and serves as an independent oracle in tests that
// cross-check the per-thread clock path.
//
//   - SelfCPUTimeNs:   utime+stime of the whole process, in nanoseconds.
//   - ThreadCPUTimeNs: utime+stime of a single thread (task) of this process.
//   - ClockTicks:      jiffies per second used to scale the counters.
//
// All counters are monotonic; callers are expected to take deltas between
// samples. Jiffy resolution (typically 10ms) is coarse compared to the
// per-thread POSIX clocks, which is why these readers are the fallback and
// not the primary source.
package proc
