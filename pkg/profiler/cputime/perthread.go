//go:build linux

package cputime

import (
	"golang.org/x/sys/unix"
)

// threadKey is the composite identity the per-thread cache is keyed by.
// OS thread ids are reused after a thread dies; the
// (runtime id, native id) pair is stable-unique for practical purposes.
type threadKey struct {
	tid  int64
	ntid int
}

// perThread reads each thread's own CPU-time clock. The cache holds
// exactly the keys seen in the most recent Delta call.
type perThread struct {
	last map[threadKey]int64
}

func newPerThread() *perThread {
	return &perThread{last: make(map[threadKey]int64)}
}

func (t *perThread) Close() error { return nil }

func (t *perThread) Delta(live map[int64]int) map[int64]int64 {
	out := make(map[int64]int64, len(live))
	next := make(map[threadKey]int64, len(live))
	for tid, ntid := range live {
		k := threadKey{tid: tid, ntid: ntid}
		now, err := threadCPUTimeNs(ntid)
		if err != nil {
			// Thread gone or clock unreadable: reuse the cached
			// value so this pass sees a zero delta.
			now = t.last[k]
		}
		prev, ok := t.last[k]
		if !ok {
			prev = now
		}
		d := now - prev
		if d < 0 {
			// native id reuse collision
			d = 0
		}
		out[tid] = d
		next[k] = now
	}
	t.last = next
	return out
}

// threadClockID composes the clockid of a thread's CPU-time clock the
// way pthread_getcpuclockid(3) does: the bitwise complement of the
// thread id shifted left three, with CPUCLOCK_PERTHREAD|CPUCLOCK_SCHED
// in the low bits.
func threadClockID(ntid int) int32 {
	const perThreadSched = 6 // CPUCLOCK_PERTHREAD | CPUCLOCK_SCHED
	return int32(^uint32(ntid)<<3 | perThreadSched)
}

// threadCPUTimeNs reads the CPU-time clock of one thread of this
// process. The kernel rejects ids of threads that no longer exist with
// EINVAL, which callers treat as "charge nothing this pass".
func threadCPUTimeNs(ntid int) (int64, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(threadClockID(ntid), &ts); err != nil {
		return 0, err
	}
	return ts.Nano(), nil
}

// PerThreadSupported reports whether per-thread CPU clocks can be read
// on this system, probed against the calling thread.
func PerThreadSupported() bool {
	_, err := threadCPUTimeNs(unix.Gettid())
	return err == nil
}
