//go:build linux

package host

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Registry is the host runtime's thread table: the list of runtime
// instances (interpreters) and the thread states bound to them, plus the
// identity registry mapping runtime thread ids to names and native ids.
//
// The table is guarded by a single internal mutex. Freeze exposes that
// mutex to the sampler: while the table is frozen no thread state can be
// bound or unbound, which is what makes frame capture and subsequent
// CPU-clock lookups safe.
type Registry struct {
	tableMu sync.Mutex
	interps []*Interpreter

	// framesMu guards the flat tid -> state index used by the degraded
	// snapshot path. Always acquired after tableMu, never before.
	framesMu sync.Mutex
	states   map[int64]*ThreadState

	identMu  sync.Mutex
	idents   map[int64]Identity
	byNative map[int]int64

	nextTID atomic.Int64
	mainTID int64
}

// Identity is one entry of the thread identity registry.
type Identity struct {
	Name     string
	NativeID int
}

// NewRegistry creates an empty thread table and records the calling
// thread as the bootstrap (main) thread. The bootstrap id is captured
// here, before any threading primitives can be patched, so the main
// thread keeps its name even if it is later deregistered.
func NewRegistry() *Registry {
	r := &Registry{
		states:   make(map[int64]*ThreadState),
		idents:   make(map[int64]Identity),
		byNative: make(map[int]int64),
	}
	r.mainTID = r.Register("MainThread", unix.Gettid())
	return r
}

// MainThreadID returns the runtime id of the bootstrap thread.
func (r *Registry) MainThreadID() int64 { return r.mainTID }

// NewInterpreter adds a runtime instance to the table.
func (r *Registry) NewInterpreter() *Interpreter {
	in := &Interpreter{reg: r}
	r.tableMu.Lock()
	r.interps = append(r.interps, in)
	r.tableMu.Unlock()
	return in
}

// Register adds a thread to the identity registry and returns its
// assigned runtime id. A zero nativeID means the OS handle is unknown.
func (r *Registry) Register(name string, nativeID int) int64 {
	tid := r.nextTID.Add(1)
	r.identMu.Lock()
	r.idents[tid] = Identity{Name: name, NativeID: nativeID}
	if nativeID != 0 {
		r.byNative[nativeID] = tid
	}
	r.identMu.Unlock()
	return tid
}

// RegisterCurrent registers the calling thread under its OS thread id.
// The caller is expected to be locked to its OS thread.
func (r *Registry) RegisterCurrent(name string) int64 {
	return r.Register(name, unix.Gettid())
}

// Deregister removes a thread from the identity registry. Thread states
// bound in interpreters are unaffected; a state whose thread is missing
// from the registry is reported as anonymous.
func (r *Registry) Deregister(tid int64) {
	r.identMu.Lock()
	if id, ok := r.idents[tid]; ok && id.NativeID != 0 {
		delete(r.byNative, id.NativeID)
	}
	delete(r.idents, tid)
	r.identMu.Unlock()
}

// Lookup returns the registered identity for a runtime thread id.
func (r *Registry) Lookup(tid int64) (Identity, bool) {
	r.identMu.Lock()
	id, ok := r.idents[tid]
	r.identMu.Unlock()
	return id, ok
}

// CurrentThreadID resolves the calling OS thread to its runtime id.
// Only threads registered with a native id can be resolved.
func (r *Registry) CurrentThreadID() (int64, bool) {
	ntid := unix.Gettid()
	r.identMu.Lock()
	tid, ok := r.byNative[ntid]
	r.identMu.Unlock()
	return tid, ok
}

// ThreadName resolves the human-readable name for a runtime thread id.
// The bootstrap thread is always "MainThread", even after deregistration.
func (r *Registry) ThreadName(tid int64) string {
	if tid == r.mainTID {
		return "MainThread"
	}
	if id, ok := r.Lookup(tid); ok {
		return id.Name
	}
	return fmt.Sprintf("Anonymous Thread %d", tid)
}

// Freeze acquires the thread-table mutex, blocking thread creation and
// destruction until Unfreeze.
func (r *Registry) Freeze() { r.tableMu.Lock() }

// TryFreeze attempts to acquire the thread-table mutex without blocking.
func (r *Registry) TryFreeze() bool { return r.tableMu.TryLock() }

// Unfreeze releases the thread-table mutex.
func (r *Registry) Unfreeze() { r.tableMu.Unlock() }

// Interpreters returns the runtime instances. The caller must hold the
// freeze for the duration of any walk over the result.
func (r *Registry) Interpreters() []*Interpreter { return r.interps }

// CurrentFrames returns a best-effort snapshot of every bound thread's
// current frame without taking the table mutex. It is the degraded path
// used when the table cannot be frozen; threads may appear or vanish
// concurrently.
func (r *Registry) CurrentFrames() map[int64]any {
	out := make(map[int64]any)
	r.framesMu.Lock()
	for tid, ts := range r.states {
		if f := ts.Frame(); f != nil {
			out[tid] = f
		}
	}
	r.framesMu.Unlock()
	return out
}

func (r *Registry) trackState(ts *ThreadState) {
	r.framesMu.Lock()
	r.states[ts.tid] = ts
	r.framesMu.Unlock()
}

func (r *Registry) untrackState(ts *ThreadState) {
	r.framesMu.Lock()
	delete(r.states, ts.tid)
	r.framesMu.Unlock()
}
