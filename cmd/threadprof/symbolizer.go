//go:build linux

package main

import (
	"fmt"

	"github.com/laminarasm9/threadprof/pkg/profiler"
)

// stackFrame is the symbolic frame the demo symbolizer produces.
type stackFrame struct {
	Func string `json:"func"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// demoSymbolizer walks the demo runtime's linked call frames. A real
// deployment plugs its runtime's symbolizer in here instead.
type demoSymbolizer struct{}

func (demoSymbolizer) Framify(frame any, maxN int) ([]profiler.Frame, int, error) {
	switch f := frame.(type) {
	case profiler.SamplerFrame:
		return []profiler.Frame{stackFrame{Func: f.Name}}, 1, nil
	case *callFrame:
		out := make([]profiler.Frame, 0, maxN)
		for cur := f; cur != nil && len(out) < maxN; cur = cur.parent {
			out = append(out, stackFrame{Func: cur.fn, File: cur.file, Line: cur.line})
		}
		return out, len(out), nil
	}
	return nil, 0, fmt.Errorf("symbolize: unknown frame object %T", frame)
}

func (s demoSymbolizer) TracebackFramify(tb any, maxN int) ([]profiler.Frame, int, error) {
	t, ok := tb.(*traceback)
	if !ok {
		return nil, 0, fmt.Errorf("symbolize: unknown traceback object %T", tb)
	}
	return s.Framify(t.frame, maxN)
}
