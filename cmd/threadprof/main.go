//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/laminarasm9/threadprof/pkg/host"
	"github.com/laminarasm9/threadprof/pkg/profiler"
)

type opts struct {
	// sampling
	duration time.Duration
	pct      float64
	nframes  int
	self     bool

	// workload harness
	busy int
	idle int
	exc  bool

	// outputs
	csvPath     string
	jsonPath    string
	metricsAddr string
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "threadprof",
		Short: "Stack-sampling CPU/wall profiler demo harness",
		Long: `threadprof embeds a demo managed runtime, spawns busy and idle user
threads against it, and runs the periodic stack sampler for a fixed
duration. Per-thread CPU and wall time attribution is printed as a
table and can be dumped to CSV or JSON.

Examples:
  threadprof --duration 5s --busy 2 --idle 2
  threadprof --pct 5 --csv out.csv --metrics-addr :9102`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o)
		},
	}

	root.Flags().DurationVarP(&o.duration, "duration", "d", 5*time.Second, "how long to run the sampler")
	root.Flags().Float64Var(&o.pct, "pct", profiler.DefaultMaxTimeUsagePct, "max fraction of wall time the sampler may use, in percent")
	root.Flags().IntVar(&o.nframes, "nframes", profiler.DefaultMaxNFrames, "max stack depth per sample")
	root.Flags().BoolVar(&o.self, "profile-self", false, "include the sampler's own thread in samples")

	root.Flags().IntVar(&o.busy, "busy", 2, "number of CPU-bound demo threads")
	root.Flags().IntVar(&o.idle, "idle", 2, "number of sleeping demo threads")
	root.Flags().BoolVar(&o.exc, "exceptions", false, "have one demo thread keep a pending exception")

	root.Flags().StringVar(&o.csvPath, "csv", "", "write per-thread totals to CSV file")
	root.Flags().StringVar(&o.jsonPath, "json", "", "write per-thread totals to JSON file")
	root.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "expose sampler prometheus metrics on this address")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	if o.duration <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if o.busy+o.idle == 0 {
		return fmt.Errorf("no demo threads requested")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := host.NewRegistry()
	in := reg.NewInterpreter()

	sum := newSummary()
	cfg := profiler.Config{
		Registry:        reg,
		Symbolizer:      demoSymbolizer{},
		Handler:         sum,
		MaxTimeUsagePct: o.pct,
		MaxNFrames:      o.nframes,
		ProfileSelf:     o.self,
		Interpreter:     in,
	}

	if o.metricsAddr != "" {
		cfg.Metrics = prometheus.DefaultRegisterer
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(o.metricsAddr, nil); err != nil {
				slog.Error("metrics endpoint", "err", err)
			}
		}()
	}

	p, err := profiler.New(cfg)
	if err != nil {
		return fmt.Errorf("profiler: %w", err)
	}

	feats := p.Features()
	fmt.Printf("threadprof: sampling for %s (pct=%.1f, cpu-time=%v, stack-exceptions=%v)\n\n",
		o.duration, o.pct, feats.CPUTime, feats.StackExceptions)

	// Demo workload: busy threads spin, idle threads sleep, all publish
	// synthetic frames the way a real embedding runtime would.
	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	var handles []*host.ThreadHandle
	for i := 0; i < o.busy; i++ {
		name := fmt.Sprintf("busy-%d", i)
		handles = append(handles, host.SpawnThread(in, name, func(ts *host.ThreadState) {
			busyWorker(workCtx, ts, name)
		}))
	}
	for i := 0; i < o.idle; i++ {
		name := fmt.Sprintf("idle-%d", i)
		raise := o.exc && i == 0
		handles = append(handles, host.SpawnThread(in, name, func(ts *host.ThreadState) {
			idleWorker(workCtx, ts, name, raise)
		}))
	}

	if err := p.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	select {
	case <-ctx.Done():
		slog.Info("interrupted")
	case <-time.After(o.duration):
	}

	if err := p.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	cancelWork()
	for _, h := range handles {
		h.Wait()
	}

	rows := sum.rows()
	printTable(os.Stdout, rows)

	if o.csvPath != "" {
		if err := writeCSV(o.csvPath, rows); err != nil {
			slog.Error("write csv", "err", err)
		}
	}
	if o.jsonPath != "" {
		if err := writeJSON(o.jsonPath, rows); err != nil {
			slog.Error("write json", "err", err)
		}
	}
	return nil
}
