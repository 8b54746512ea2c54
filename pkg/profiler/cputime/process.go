//go:build linux

package cputime

import (
	"github.com/laminarasm9/threadprof/pkg/system/proc"
)

// processWide divides whole-process CPU time evenly across the live
// threads. Unfair to individual threads but unbiased in aggregate; used
// when per-thread clocks are unavailable.
type processWide struct {
	lastNs int64
	read   func() (int64, error)
}

func newProcessWide() *processWide {
	t := &processWide{read: proc.SelfCPUTimeNs}
	if ns, err := t.read(); err == nil {
		t.lastNs = ns
	}
	return t
}

func (t *processWide) Close() error { return nil }

func (t *processWide) Delta(live map[int64]int) map[int64]int64 {
	out := make(map[int64]int64, len(live))
	now, err := t.read()
	if err != nil {
		now = t.lastNs
	}
	d := now - t.lastNs
	if d < 0 {
		d = 0
	}
	t.lastNs = now
	if len(live) == 0 {
		return out
	}
	share := d / int64(len(live))
	for tid := range live {
		out[tid] = share
	}
	return out
}
