// Package cpu implements the fixed-point inference kernels on CPU.
//
// Every kernel accumulates int16 x int16 products in an int32 at scale 2^(2F),
// rescales once after the full reduction and narrows under the backend's
// fixed.Format overflow policy. Kernels write into caller-owned outputs and
// keep no state between calls, so one backend can serve concurrent callers
// as long as each passes its own output buffers.
package cpu

import (
	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/parallel"
)

// CPUBackend runs fixed-point kernels on CPU.
type CPUBackend struct {
	format fixed.Format
	par    parallel.Config
}

// New creates a sequential CPU backend for the given format.
func New(format fixed.Format) *CPUBackend {
	return &CPUBackend{
		format: format,
		par:    parallel.Sequential(),
	}
}

// NewParallel creates a CPU backend that splits convolution and dense outputs
// across workers. Results are bit-identical to the sequential backend.
func NewParallel(format fixed.Format, cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		format: format,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Format returns the fixed-point format used by every kernel.
func (cpu *CPUBackend) Format() fixed.Format {
	return cpu.format
}

// Parallel returns the parallel execution config.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.par
}

// relu clamps negative fixed-point values to zero.
func relu(v int16) int16 {
	if v > 0 {
		return v
	}
	return 0
}
