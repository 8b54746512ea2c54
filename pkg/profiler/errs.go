package profiler

import "errors"

var (
	// ErrNoRegistry means the configuration lacks a host registry.
	ErrNoRegistry = errors.New("profiler: registry is required")

	// ErrNoSymbolizer means the configuration lacks a symbolizer.
	ErrNoSymbolizer = errors.New("profiler: symbolizer is required")

	// ErrBadTimeUsage rejects a max time usage percentage outside (0, 100].
	ErrBadTimeUsage = errors.New("profiler: max time usage percentage must be in (0, 100]")

	// ErrBadNFrames rejects a negative stack depth bound.
	ErrBadNFrames = errors.New("profiler: max frame count must be >= 0")

	// ErrRunning means Start was called on a running profiler.
	ErrRunning = errors.New("profiler: already running")

	// ErrNotRunning means Stop was called on a stopped profiler.
	ErrNotRunning = errors.New("profiler: not running")
)
