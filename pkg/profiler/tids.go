package profiler

import "sync"

// profilerTIDs is the process-wide set of runtime thread ids owned by
// the profiler subsystem. Written on sampler start/stop, read during
// each pass so samplers never observe themselves or each other.
var profilerTIDs = struct {
	sync.Mutex
	m map[int64]struct{}
}{m: make(map[int64]struct{})}

func addProfilerTID(tid int64) {
	profilerTIDs.Lock()
	profilerTIDs.m[tid] = struct{}{}
	profilerTIDs.Unlock()
}

func removeProfilerTID(tid int64) {
	profilerTIDs.Lock()
	delete(profilerTIDs.m, tid)
	profilerTIDs.Unlock()
}

func profilerTIDSnapshot() map[int64]struct{} {
	profilerTIDs.Lock()
	out := make(map[int64]struct{}, len(profilerTIDs.m))
	for tid := range profilerTIDs.m {
		out[tid] = struct{}{}
	}
	profilerTIDs.Unlock()
	return out
}
