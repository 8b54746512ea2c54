//go:build linux

package main

import (
	"context"
	"time"

	"github.com/laminarasm9/threadprof/pkg/host"
)

// callFrame is the demo runtime's raw frame object: a linked list from
// leaf to root, the shape a bytecode interpreter would maintain.
type callFrame struct {
	fn     string
	file   string
	line   int
	parent *callFrame
}

// traceback is the demo runtime's raw traceback object.
type traceback struct {
	frame *callFrame
}

func frameChain(name string, fns ...string) *callFrame {
	var f *callFrame
	for i, fn := range fns {
		f = &callFrame{fn: fn, file: name + ".src", line: 10 * (i + 1), parent: f}
	}
	return f
}

// busyWorker burns CPU while publishing alternating leaf frames, the
// way an interpreter's call stack churns under real work.
func busyWorker(ctx context.Context, ts *host.ThreadState, name string) {
	base := frameChain(name, "main", "workLoop")
	crunch := &callFrame{fn: "crunch", file: name + ".src", line: 31, parent: base}
	mix := &callFrame{fn: "mix", file: name + ".src", line: 37, parent: base}

	acc := uint64(1)
	for i := 0; ; i++ {
		if i%1024 == 0 {
			select {
			case <-ctx.Done():
				ts.SetFrame(nil)
				return
			default:
			}
			if i%2048 == 0 {
				ts.SetFrame(crunch)
			} else {
				ts.SetFrame(mix)
			}
		}
		acc = acc*6364136223846793005 + 1442695040888963407
	}
}

// idleWorker sleeps in short slices, optionally keeping a pending
// exception published so exception sampling has something to see.
func idleWorker(ctx context.Context, ts *host.ThreadState, name string, raise bool) {
	wait := frameChain(name, "main", "waitLoop", "sleep")
	ts.SetFrame(wait)
	if raise {
		ts.SetException("DemoError", &traceback{frame: wait})
		defer ts.ClearException()
	}
	defer ts.SetFrame(nil)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
