package host

import "sync/atomic"

// ThreadState is the per-thread slot of an interpreter: the current
// frame reference and the topmost pending exception of one runtime
// thread. The owning thread publishes into it; the sampler reads it
// while the table is frozen. Both fields are opaque runtime objects to
// everything but the symbolizer.
type ThreadState struct {
	tid   int64
	frame atomic.Pointer[any]
	exc   atomic.Pointer[Exception]
}

// Exception is a pending exception: its type name and the raw traceback
// object.
type Exception struct {
	Type      string
	Traceback any
}

// ID returns the runtime thread id this state belongs to.
func (ts *ThreadState) ID() int64 { return ts.tid }

// SetFrame publishes the thread's current frame reference. Passing nil
// marks the thread as having no frame (not executing runtime code).
func (ts *ThreadState) SetFrame(f any) {
	if f == nil {
		ts.frame.Store(nil)
		return
	}
	p := new(any)
	*p = f
	ts.frame.Store(p)
}

// Frame returns the thread's current frame reference, or nil.
func (ts *ThreadState) Frame() any {
	p := ts.frame.Load()
	if p == nil {
		return nil
	}
	return *p
}

// SetException publishes the thread's topmost pending exception.
func (ts *ThreadState) SetException(typ string, tb any) {
	ts.exc.Store(&Exception{Type: typ, Traceback: tb})
}

// ClearException drops the pending exception, if any.
func (ts *ThreadState) ClearException() { ts.exc.Store(nil) }

// Exception returns the pending exception. ok is false when none is set.
func (ts *ThreadState) Exception() (typ string, tb any, ok bool) {
	e := ts.exc.Load()
	if e == nil {
		return "", nil, false
	}
	return e.Type, e.Traceback, true
}
