//go:build linux

package host

// Interpreter is one runtime instance hosted in the process. A registry
// normally holds a single interpreter, but the walker supports several.
type Interpreter struct {
	reg     *Registry
	threads []*ThreadState
}

// Bind creates a thread state for the given runtime thread id and adds
// it to this interpreter. The id does not have to be present in the
// identity registry; such threads sample as anonymous.
func (in *Interpreter) Bind(tid int64) *ThreadState {
	ts := &ThreadState{tid: tid}
	in.reg.tableMu.Lock()
	in.threads = append(in.threads, ts)
	in.reg.trackState(ts)
	in.reg.tableMu.Unlock()
	return ts
}

// Unbind removes a thread state from this interpreter. The captured
// frame and exception references stay valid for anyone already holding
// them.
func (in *Interpreter) Unbind(ts *ThreadState) {
	in.reg.tableMu.Lock()
	for i, t := range in.threads {
		if t == ts {
			in.threads = append(in.threads[:i], in.threads[i+1:]...)
			break
		}
	}
	in.reg.untrackState(ts)
	in.reg.tableMu.Unlock()
}

// Threads returns the states bound to this interpreter. The caller must
// hold the registry freeze.
func (in *Interpreter) Threads() []*ThreadState { return in.threads }
