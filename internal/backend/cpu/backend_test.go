package cpu

import (
	"math/rand"
	"testing"

	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/parallel"
	"github.com/born-ml/qlenet/internal/tensor"
)

// Helper to create test backend.
func newTestBackend() *CPUBackend {
	return New(fixed.Default())
}

// randomTensor fills a tensor with values in [-limit, limit].
func randomTensor(rng *rand.Rand, limit int, dims ...int) *tensor.Tensor {
	t := tensor.Zeros(dims...)
	data := t.Data()
	for i := range data {
		data[i] = int16(rng.Intn(2*limit+1) - limit)
	}
	return t
}

// TestCPUBackend_New tests backend creation.
func TestCPUBackend_New(t *testing.T) {
	backend := newTestBackend()
	if backend == nil {
		t.Fatal("New() returned nil")
	}
	if backend.Name() != "CPU" {
		t.Errorf("Expected name 'CPU', got '%s'", backend.Name())
	}
	if backend.Format() != fixed.Default() {
		t.Errorf("Expected default format, got %v", backend.Format())
	}
	if backend.Parallel().Enabled {
		t.Error("Expected sequential backend")
	}
}

// TestCPUBackend_ParallelMatchesSequential checks that splitting work across
// workers does not change a single bit of the result.
func TestCPUBackend_ParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seq := newTestBackend()
	par := NewParallel(fixed.Default(), parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})

	input := randomTensor(rng, 256, 3, 12, 12)
	kernel := randomTensor(rng, 64, 8, 3, 5, 5)
	bias := randomTensor(rng, 128, 8).Data()

	a := seq.Conv2D(input, kernel, bias)
	b := par.Conv2D(input, kernel, bias)
	if !a.Equal(b) {
		t.Fatal("parallel Conv2D differs from sequential")
	}

	flat := a.Data()
	weight := randomTensor(rng, 32, 16, len(flat))
	dBias := randomTensor(rng, 64, 16).Data()
	da := seq.Dense(flat, weight, dBias, true)
	db := par.Dense(flat, weight, dBias, true)
	for i := range da {
		if da[i] != db[i] {
			t.Fatalf("parallel Dense differs at %d: %d vs %d", i, da[i], db[i])
		}
	}
}
