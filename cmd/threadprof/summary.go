//go:build linux

package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"sync"
	"text/tabwriter"

	"github.com/laminarasm9/threadprof/pkg/profiler"
)

// row is the per-thread aggregate the harness prints and dumps.
type row struct {
	ThreadID   int64   `json:"thread_id"`
	NativeID   int     `json:"thread_native_id"`
	Name       string  `json:"thread_name"`
	Samples    int     `json:"samples"`
	CPUMs      float64 `json:"cpu_ms"`
	WallMs     float64 `json:"wall_ms"`
	Exceptions int     `json:"exceptions"`
	Traces     int     `json:"traces"`
}

// summary is the downstream collaborator of the demo: it aggregates the
// profiler's event stream into per-thread totals.
type summary struct {
	mu    sync.Mutex
	byTID map[int64]*row
}

func newSummary() *summary {
	return &summary{byTID: make(map[int64]*row)}
}

func (s *summary) HandleEvents(stacks []profiler.StackSampleEvent, excs []profiler.StackExceptionSampleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range stacks {
		r := s.row(e.ThreadID, e.ThreadNativeID, e.ThreadName)
		r.Samples++
		r.CPUMs += float64(e.CPUTimeNs) / 1e6
		r.WallMs += float64(e.WallTimeNs) / 1e6
		r.Traces += len(e.TraceIDs)
	}
	for _, e := range excs {
		r := s.row(e.ThreadID, e.ThreadNativeID, e.ThreadName)
		r.Exceptions++
	}
}

func (s *summary) row(tid int64, ntid int, name string) *row {
	r, ok := s.byTID[tid]
	if !ok {
		r = &row{ThreadID: tid, NativeID: ntid, Name: name}
		s.byTID[tid] = r
	}
	return r
}

func (s *summary) rows() []row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]row, 0, len(s.byTID))
	for _, r := range s.byTID {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b row) int {
		switch {
		case a.ThreadID < b.ThreadID:
			return -1
		case a.ThreadID > b.ThreadID:
			return 1
		default:
			return 0
		}
	})
	return out
}

func printTable(w io.Writer, rows []row) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TID\tNATIVE\tTHREAD\tSAMPLES\tCPU (ms)\tWALL (ms)\tEXC\tTRACES")
	fmt.Fprintln(tw, "---\t------\t------\t-------\t--------\t---------\t---\t------")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%.3f\t%.3f\t%d\t%d\n",
			r.ThreadID, r.NativeID, r.Name, r.Samples, r.CPUMs, r.WallMs, r.Exceptions, r.Traces)
	}
	tw.Flush()
}

func writeCSV(path string, rows []row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"thread_id", "thread_native_id", "thread_name", "samples",
		"cpu_ms", "wall_ms", "exceptions", "traces",
	}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			strconv.FormatInt(r.ThreadID, 10),
			strconv.Itoa(r.NativeID),
			r.Name,
			strconv.Itoa(r.Samples),
			strconv.FormatFloat(r.CPUMs, 'f', 3, 64),
			strconv.FormatFloat(r.WallMs, 'f', 3, 64),
			strconv.Itoa(r.Exceptions),
			strconv.Itoa(r.Traces),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, rows []row) error {
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
