//go:build linux

package profiler

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/laminarasm9/threadprof/pkg/host"
	"github.com/laminarasm9/threadprof/pkg/profiler/cputime"
	"github.com/laminarasm9/threadprof/pkg/profiler/spanlink"
)

// MinInterval is the lower bound on the sampler's sleep between passes.
const MinInterval = 10 * time.Millisecond

const (
	// DefaultMaxTimeUsagePct is the default cap on the fraction of wall
	// time the sampler may consume, in percent.
	DefaultMaxTimeUsagePct = 2.0

	// DefaultMaxNFrames is the default bound on symbolized stack depth.
	DefaultMaxNFrames = 64
)

// Config configures a Profiler.
type Config struct {
	// Registry is the host runtime thread table to sample. Required.
	Registry *host.Registry

	// Symbolizer converts captured frame and traceback objects to
	// symbolic frames. Required.
	Symbolizer Symbolizer

	// Handler receives the events of each pass. Nil drops them.
	Handler Handler

	// MaxTimeUsagePct caps the fraction of wall time the sampler may
	// consume, in percent. Zero means DefaultMaxTimeUsagePct;
	// otherwise must satisfy 0 < pct <= 100.
	MaxTimeUsagePct float64

	// MaxNFrames bounds the depth of symbolized stacks. Zero means
	// DefaultMaxNFrames.
	MaxNFrames int

	// ProfileSelf includes the profiler's own threads in samples. By
	// default they are excluded.
	ProfileSelf bool

	// Interpreter, when set, is where the sampler binds its own thread
	// state, making it visible to the host runtime like any other
	// thread.
	Interpreter *host.Interpreter

	// Metrics, when set, receives the sampler's self-metrics.
	Metrics prometheus.Registerer
}

// Tracer is the span source the profiler subscribes to while running.
type Tracer[T any, S spanlink.SpanPtr[T]] interface {
	// OnStartSpan registers fn to be called synchronously, from the
	// thread starting the span, on every span start. The returned
	// function deregisters it.
	OnStartSpan(fn func(span S)) (cancel func())
}

// Profiler is the periodic collector: a dedicated OS-level sampler
// thread that repeatedly walks the host runtime's threads, measures its
// own cost, and stretches its sleep interval so sampling stays within
// the configured time budget.
type Profiler struct {
	cfg     Config
	links   SpanLinker
	arm     func()
	disarm  func()
	metrics *metricsSet

	mu      sync.Mutex
	running bool
	tracker cputime.Tracker
	stopc   chan struct{}
	done    chan struct{}
}

// New creates a profiler without span correlation. It fails loudly on
// invalid configuration.
func New(cfg Config) (*Profiler, error) {
	if cfg.Registry == nil {
		return nil, ErrNoRegistry
	}
	if cfg.Symbolizer == nil {
		return nil, ErrNoSymbolizer
	}
	if cfg.MaxTimeUsagePct == 0 {
		cfg.MaxTimeUsagePct = DefaultMaxTimeUsagePct
	}
	if cfg.MaxTimeUsagePct <= 0 || cfg.MaxTimeUsagePct > 100 {
		return nil, ErrBadTimeUsage
	}
	if cfg.MaxNFrames < 0 {
		return nil, ErrBadNFrames
	}
	if cfg.MaxNFrames == 0 {
		cfg.MaxNFrames = DefaultMaxNFrames
	}
	p := &Profiler{cfg: cfg}
	if cfg.Metrics != nil {
		p.metrics = newMetricsSet(cfg.Metrics)
	}
	return p, nil
}

// NewWithTracer creates a profiler that correlates samples with the
// spans started on each thread. The tracer's span-start hook is armed
// by Start and disarmed by Stop.
func NewWithTracer[T any, S spanlink.SpanPtr[T]](cfg Config, tracer Tracer[T, S]) (*Profiler, error) {
	p, err := New(cfg)
	if err != nil {
		return nil, err
	}
	links := spanlink.New[T, S]()
	reg := p.cfg.Registry
	var cancel func()
	p.links = links
	p.arm = func() {
		cancel = tracer.OnStartSpan(func(span S) {
			if tid, ok := reg.CurrentThreadID(); ok {
				links.Link(tid, span)
			}
		})
	}
	p.disarm = func() {
		if cancel != nil {
			cancel()
			cancel = nil
		}
	}
	return p, nil
}

// Features reports which optional capabilities are active on this
// platform.
func (p *Profiler) Features() Features {
	return Features{
		CPUTime:         cputime.PerThreadSupported(),
		StackExceptions: true,
	}
}

// Features reports optional profiler capabilities.
type Features struct {
	CPUTime         bool // per-thread CPU clocks readable
	StackExceptions bool // pending-exception enumeration available
}

// Start launches the sampler thread.
func (p *Profiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrRunning
	}
	p.tracker = cputime.New()
	if p.arm != nil {
		p.arm()
	}
	p.stopc = make(chan struct{})
	p.done = make(chan struct{})
	p.running = true
	go p.run(p.stopc, p.done)
	return nil
}

// Stop terminates the sampler thread, joins it, disarms the span hook,
// and empties the span link table.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrNotRunning
	}
	close(p.stopc)
	<-p.done
	if p.disarm != nil {
		p.disarm()
	}
	if p.links != nil {
		// An empty live set drops every thread's links, so a restart
		// begins with an empty table.
		p.links.ClearThreads(map[int64]struct{}{})
	}
	_ = p.tracker.Close()
	p.tracker = nil
	p.running = false
	return nil
}

func (p *Profiler) run(stopc, done chan struct{}) {
	defer close(done)

	// The sampler must be a real OS thread: cooperative scheduling
	// cannot preempt CPU-bound user work.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tid := p.cfg.Registry.RegisterCurrent("threadprof.sampler")
	addProfilerTID(tid)
	defer removeProfilerTID(tid)
	defer p.cfg.Registry.Deregister(tid)

	if p.cfg.Interpreter != nil {
		ts := p.cfg.Interpreter.Bind(tid)
		ts.SetFrame(SamplerFrame{Name: "threadprof.sampler"})
		defer p.cfg.Interpreter.Unbind(ts)
	}

	walker := &Walker{
		Registry:       p.cfg.Registry,
		Symbolizer:     p.cfg.Symbolizer,
		MaxNFrames:     p.cfg.MaxNFrames,
		IgnoreProfiler: !p.cfg.ProfileSelf,
	}

	interval := MinInterval.Seconds()
	lastWall := time.Now()
	for {
		select {
		case <-stopc:
			return
		default:
		}

		t0 := time.Now()
		wallNs := t0.Sub(lastWall).Nanoseconds()
		lastWall = t0

		stacks, excs, err := walker.Walk(p.tracker, p.links, interval, wallNs)
		used := time.Since(t0)
		interval = adapt(used, p.cfg.MaxTimeUsagePct)

		if err != nil {
			// Pass loss is acceptable, state loss is not. Logging here
			// is outside the frozen section.
			slog.Warn("threadprof: sampling pass aborted", "err", err)
		} else {
			p.metrics.observePass(used, interval, len(stacks), len(excs))
			if p.cfg.Handler != nil {
				p.cfg.Handler.HandleEvents(stacks, excs)
			}
		}

		timer := time.NewTimer(time.Duration(interval * float64(time.Second)))
		select {
		case <-stopc:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// adapt stretches the sleep interval so the sampler's duty cycle stays
// within pct: if a pass cost used and the permitted fraction is
// f = pct/100, the next sleep s must satisfy used/(used+s) = f, giving
// s = used/f - used.
func adapt(used time.Duration, pct float64) float64 {
	s := used.Seconds()/(pct/100) - used.Seconds()
	if floor := MinInterval.Seconds(); s < floor {
		return floor
	}
	return s
}
