// Package profiler implements a periodic stack-sampling CPU/wall
// profiler for a managed runtime embedded in the process.
//
// A dedicated OS-level sampler thread wakes at a self-regulated cadence
// and performs one pass: it freezes the host runtime's thread table
// (pkg/host), captures every thread's current frame and topmost pending
// exception, charges per-thread CPU time (pkg/profiler/cputime),
// correlates samples with the spans active on each thread
// (pkg/profiler/spanlink), and emits typed events to a downstream
// Handler. After each pass the sleep interval is recomputed so the
// sampler consumes at most the configured fraction of wall time.
//
// Frame symbolication, event transport, and the tracer are external
// collaborators, consumed through the Symbolizer, Handler, and Tracer
// interfaces.
package profiler
