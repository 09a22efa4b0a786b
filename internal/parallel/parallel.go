// Package parallel provides parallel execution utilities for the inference kernels
// and the evaluation harness.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on the physical core count
// reported by cpuid, falling back to runtime.NumCPU when it is unknown.
func DefaultConfig() Config {
	n := cpuid.CPU.PhysicalCores
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4, // One output plane is already thousands of MACs.
	}
}

// Sequential returns a config that runs everything on the calling goroutine.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// WithWorkers returns a copy of cfg using n workers. n <= 1 disables parallelism.
func (cfg Config) WithWorkers(n int) Config {
	if n <= 1 {
		return Config{Enabled: false, NumWorkers: 1, MinChunkSize: cfg.MinChunkSize}
	}
	cfg.Enabled = true
	cfg.NumWorkers = n
	return cfg
}

// Workers returns how many goroutines For and ForWorker may use at most.
func (cfg Config) Workers() int {
	if !cfg.Enabled || cfg.NumWorkers < 1 {
		return 1
	}
	return cfg.NumWorkers
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	ForWorker(n, func(_, i int) { f(i) }, cfg)
}

// ForWorker executes f(worker, i) for i in [0, n). Items are split into at most
// cfg.Workers() contiguous chunks and worker is the chunk number, so callers can
// give each worker its own scratch state indexed by worker.
func ForWorker(n int, f func(worker, i int), cfg Config) {
	if n <= 0 {
		return
	}
	workers := cfg.Workers()
	if workers == 1 || n < cfg.MinChunkSize {
		// Sequential fallback.
		for i := 0; i < n; i++ {
			f(0, i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+workers-1)/workers, cfg.MinChunkSize, 1)

	for w, start := 0, 0; start < n; w, start = w+1, start+chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(w, s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(w, i)
			}
		}(w, start, end)
	}
	wg.Wait()
}

// ForGrid executes f(r, c) over a rows x cols grid.
// Common in CNN operations (output channel x output row).
func ForGrid(rows, cols int, f func(r, c int), cfg Config) {
	n := rows * cols
	For(n, func(k int) {
		f(k/cols, k%cols)
	}, cfg)
}
