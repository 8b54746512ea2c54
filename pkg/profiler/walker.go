//go:build linux

package profiler

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/laminarasm9/threadprof/pkg/host"
	"github.com/laminarasm9/threadprof/pkg/profiler/cputime"
)

// Walker performs one sampling pass over the host runtime's threads.
// It holds no state between passes.
type Walker struct {
	Registry       *host.Registry
	Symbolizer     Symbolizer
	MaxNFrames     int
	IgnoreProfiler bool
}

type threadFrame struct {
	tid   int64
	frame any
}

type threadExc struct {
	tid int64
	typ string
	tb  any
}

// Walk freezes the thread table, captures every thread's top frame and
// topmost pending exception, then attributes CPU time and span context
// to the captures and converts them to events. wallNs is the wall time
// elapsed since the previous pass; intervalS the interval that governed
// this pass.
func (w *Walker) Walk(tracker cputime.Tracker, links SpanLinker, intervalS float64, wallNs int64) ([]StackSampleEvent, []StackExceptionSampleEvent, error) {
	frames, excs := w.capture()

	live := make(map[int64]struct{}, len(frames))
	for _, tf := range frames {
		live[tf.tid] = struct{}{}
	}
	for _, te := range excs {
		live[te.tid] = struct{}{}
	}

	if links != nil {
		links.ClearThreads(live)
	}

	if w.IgnoreProfiler {
		for tid := range profilerTIDSnapshot() {
			delete(live, tid)
		}
	}

	nativeIDs := make(map[int64]int, len(live))
	for tid := range live {
		nativeIDs[tid] = w.nativeID(tid)
	}

	// CPU deltas are taken strictly after frame capture, so the charged
	// window ends at or after the snapshot.
	cpu := tracker.Delta(nativeIDs)

	period := int64(math.Round(intervalS * 1e9))

	stacks := make([]StackSampleEvent, 0, len(frames))
	for _, tf := range frames {
		if _, ok := live[tf.tid]; !ok {
			continue
		}
		var traceIDs []uint64
		if links != nil {
			traceIDs = links.LeafTraceIDs(tf.tid)
		}
		fr, n, err := w.Symbolizer.Framify(tf.frame, w.MaxNFrames)
		if err != nil {
			return nil, nil, err
		}
		stacks = append(stacks, StackSampleEvent{
			ThreadID:         tf.tid,
			ThreadNativeID:   nativeIDs[tf.tid],
			ThreadName:       w.Registry.ThreadName(tf.tid),
			TraceIDs:         traceIDs,
			Frames:           fr,
			NFrames:          n,
			WallTimeNs:       wallNs,
			CPUTimeNs:        cpu[tf.tid],
			SamplingPeriodNs: period,
		})
	}

	excEvents := make([]StackExceptionSampleEvent, 0, len(excs))
	for _, te := range excs {
		if _, ok := live[te.tid]; !ok {
			continue
		}
		fr, n, err := w.Symbolizer.TracebackFramify(te.tb, w.MaxNFrames)
		if err != nil {
			return nil, nil, err
		}
		excEvents = append(excEvents, StackExceptionSampleEvent{
			ThreadID:         te.tid,
			ThreadNativeID:   nativeIDs[te.tid],
			ThreadName:       w.Registry.ThreadName(te.tid),
			Frames:           fr,
			NFrames:          n,
			SamplingPeriodNs: period,
			ExcType:          te.typ,
		})
	}
	return stacks, excEvents, nil
}

// capture freezes the thread table and enumerates every interpreter's
// thread states. While frozen it only walks lists and copies
// references: no logging, no foreign calls, nothing that could block
// against the runtime's own lock paths. If the table cannot be frozen
// it falls back to the runtime's best-effort live-frame snapshot and
// skips exception enumeration.
func (w *Walker) capture() ([]threadFrame, []threadExc) {
	if !w.Registry.TryFreeze() {
		var frames []threadFrame
		for tid, f := range w.Registry.CurrentFrames() {
			frames = append(frames, threadFrame{tid: tid, frame: f})
		}
		return frames, nil
	}
	var frames []threadFrame
	var excs []threadExc
	for _, in := range w.Registry.Interpreters() {
		for _, ts := range in.Threads() {
			if f := ts.Frame(); f != nil {
				frames = append(frames, threadFrame{tid: ts.ID(), frame: f})
			}
			if typ, tb, ok := ts.Exception(); ok && typ != "" && tb != nil {
				excs = append(excs, threadExc{tid: ts.ID(), typ: typ, tb: tb})
			}
		}
	}
	w.Registry.Unfreeze()
	return frames, excs
}

// nativeID resolves the OS handle for a runtime thread: the registered
// native id, a stable hash of the runtime id when the OS handle is
// unknown, or the runtime id itself for threads missing from the
// registry entirely.
func (w *Walker) nativeID(tid int64) int {
	id, ok := w.Registry.Lookup(tid)
	if !ok {
		return int(tid)
	}
	if id.NativeID != 0 {
		return id.NativeID
	}
	return stableHash(tid)
}

func stableHash(tid int64) int {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(tid))
	h := fnv.New32a()
	h.Write(b[:])
	return int(h.Sum32())
}
