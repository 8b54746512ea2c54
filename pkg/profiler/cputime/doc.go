// Package cputime charges CPU nanoseconds to runtime threads between
// sampling passes.
//
// Two variants exist, chosen at start time by platform capability:
//
//   - per-thread (preferred): reads each thread's POSIX CPU-time clock
//     via clock_gettime, keyed by the composite (runtime id, native id)
//     so a recycled OS thread id cannot inherit another thread's
//     counter. The internal cache holds exactly the keys observed in
//     the most recent call.
//
//   - process-wide (fallback): one /proc/self/stat counter, its delta
//     split evenly across whatever threads are live.
//
// Delta never returns an error. A thread whose clock cannot be read —
// it died between snapshot and lookup, or the clock is denied — is
// charged zero for that pass, and negative raw deltas from id-reuse
// collisions are clamped to zero.
package cputime
