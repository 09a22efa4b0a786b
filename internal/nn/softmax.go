package nn

import (
	"github.com/born-ml/qlenet/internal/backend/cpu"
)

// Softmax turns fixed-point logits into float32 class probabilities.
// It is the only floating-point stage of the pipeline.
type Softmax struct {
	backend *cpu.CPUBackend
}

// NewSoftmax creates a softmax stage using the backend's fixed-point format.
func NewSoftmax(backend *cpu.CPUBackend) *Softmax {
	return &Softmax{backend: backend}
}

// Forward returns a newly allocated probability vector.
func (s *Softmax) Forward(logits []int16) []float32 {
	out := make([]float32, len(logits))
	s.backend.Softmax(out, logits)
	return out
}

// ForwardInto writes probabilities into a caller-owned slice of len(logits).
func (s *Softmax) ForwardInto(output []float32, logits []int16) {
	s.backend.Softmax(output, logits)
}

// String returns a string representation of the layer.
func (s *Softmax) String() string {
	return "Softmax()"
}
