//go:build linux

package host

import "runtime"

// ThreadHandle tracks a thread started with SpawnThread.
type ThreadHandle struct {
	tid     int64
	started chan struct{}
	done    chan struct{}
}

// TID returns the runtime id assigned to the thread, blocking until the
// thread has registered itself.
func (h *ThreadHandle) TID() int64 {
	<-h.started
	return h.tid
}

// Wait blocks until the thread function has returned and the thread has
// been unbound and deregistered.
func (h *ThreadHandle) Wait() { <-h.done }

// SpawnThread runs fn on a dedicated OS thread bound to the interpreter
// as a named runtime thread. The thread is registered with its OS thread
// id, bound into the table, and fully torn down when fn returns. This is
// how the demo harness and the tests stand in for a real embedding
// runtime starting user threads.
func SpawnThread(in *Interpreter, name string, fn func(*ThreadState)) *ThreadHandle {
	h := &ThreadHandle{started: make(chan struct{}), done: make(chan struct{})}
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(h.done)

		tid := in.reg.RegisterCurrent(name)
		ts := in.Bind(tid)
		defer in.Unbind(ts)
		defer in.reg.Deregister(tid)

		h.tid = tid
		close(h.started)
		fn(ts)
	}()
	return h
}
