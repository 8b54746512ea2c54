package spanlink

import (
	"slices"
	"sync"
	"weak"
)

// SpanPtr constrains the span type the link table can hold: a pointer,
// so it can be referenced weakly, exposing the read surface the
// profiler needs from a tracer span.
type SpanPtr[T any] interface {
	*T
	TraceID() uint64
	Finished() bool
	Parent() *T
}

// Links binds runtime threads to the set of unfinished spans started on
// them. Spans are held weakly: the table never extends a span's
// lifetime, and a span collected by the garbage collector vanishes from
// the table without explicit removal.
type Links[T any, S SpanPtr[T]] struct {
	mu   sync.Mutex
	tids map[int64]map[weak.Pointer[T]]struct{}
}

// New creates an empty link table.
func New[T any, S SpanPtr[T]]() *Links[T, S] {
	return &Links[T, S]{tids: make(map[int64]map[weak.Pointer[T]]struct{})}
}

// Link binds span to the given runtime thread. Installed as the
// tracer's span-start hook and called synchronously from the thread
// starting the span.
func (l *Links[T, S]) Link(tid int64, span S) {
	wp := weak.Make((*T)(span))
	l.mu.Lock()
	set, ok := l.tids[tid]
	if !ok {
		set = make(map[weak.Pointer[T]]struct{})
		l.tids[tid] = set
	}
	set[wp] = struct{}{}
	l.mu.Unlock()
}

// ClearThreads drops entries for threads not in live. Called once per
// sampling pass before attribution. Calling it twice with the same set
// is equivalent to calling it once.
func (l *Links[T, S]) ClearThreads(live map[int64]struct{}) {
	l.mu.Lock()
	for tid := range l.tids {
		if _, ok := live[tid]; !ok {
			delete(l.tids, tid)
		}
	}
	l.mu.Unlock()
}

// LeafSpans returns the unfinished leaf spans on a thread: spans with
// no unfinished child in the current link set. A span with an
// unfinished child is not a leaf; the child is what a sample belongs
// to.
//
// The snapshot is taken under the mutex; the finished/parent inspection
// runs on the snapshot outside it, so the lock is never held across
// calls into span objects.
func (l *Links[T, S]) LeafSpans(tid int64) []S {
	l.mu.Lock()
	set := l.tids[tid]
	snapshot := make([]S, 0, len(set))
	for wp := range set {
		p := wp.Value()
		if p == nil {
			// span was collected; drop the dead entry while here
			delete(set, wp)
			continue
		}
		snapshot = append(snapshot, S(p))
	}
	l.mu.Unlock()

	candidates := make(map[*T]struct{}, len(snapshot))
	for _, s := range snapshot {
		candidates[(*T)(s)] = struct{}{}
	}
	for _, s := range snapshot {
		if !s.Finished() {
			delete(candidates, s.Parent())
		}
	}
	leaves := make([]S, 0, len(candidates))
	for _, s := range snapshot {
		if _, ok := candidates[(*T)(s)]; !ok {
			continue
		}
		if !s.Finished() {
			leaves = append(leaves, s)
		}
	}
	return leaves
}

// LeafTraceIDs returns the deduplicated, sorted trace ids of the leaf
// spans on a thread. This is the view the stack walker consumes.
func (l *Links[T, S]) LeafTraceIDs(tid int64) []uint64 {
	spans := l.LeafSpans(tid)
	if len(spans) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(spans))
	for _, s := range spans {
		if id := s.TraceID(); !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
