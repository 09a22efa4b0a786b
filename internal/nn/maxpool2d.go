package nn

import (
	"fmt"

	"github.com/born-ml/qlenet/internal/backend/cpu"
	"github.com/born-ml/qlenet/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Max pooling reduces spatial dimensions by taking the maximum value in each
// window. It has no parameters and does not rescale.
//
// Input shape:  [channels, height, width]
// Output shape: [channels, (height-kernelSize)/stride+1, (width-kernelSize)/stride+1]
type MaxPool2D struct {
	kernelSize int
	stride     int
	backend    *cpu.CPUBackend
}

// NewMaxPool2D creates a new 2D max pooling layer.
//
// NewMaxPool2D(2, 2, backend) is the standard non-overlapping 2x2 pool.
func NewMaxPool2D(kernelSize, stride int, backend *cpu.CPUBackend) *MaxPool2D {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}

	return &MaxPool2D{
		kernelSize: kernelSize,
		stride:     stride,
		backend:    backend,
	}
}

// OutputShape returns the pooled shape. Windows must tile the input exactly.
func (m *MaxPool2D) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(input) != 3 {
		return nil, fmt.Errorf("maxpool2d: expected 3D input [C,H,W], got shape %v", input)
	}
	h, w := input[1], input[2]
	if h < m.kernelSize || w < m.kernelSize {
		return nil, fmt.Errorf("maxpool2d: input %v smaller than window %d", input, m.kernelSize)
	}
	if (h-m.kernelSize)%m.stride != 0 || (w-m.kernelSize)%m.stride != 0 {
		return nil, fmt.Errorf("maxpool2d: input %v not tiled by window %d stride %d", input, m.kernelSize, m.stride)
	}
	return tensor.Shape{input[0], (h-m.kernelSize)/m.stride + 1, (w-m.kernelSize)/m.stride + 1}, nil
}

// Forward performs max pooling, allocating the output.
func (m *MaxPool2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape, err := m.OutputShape(input.Shape())
	if err != nil {
		panic(err.Error())
	}
	output := tensor.Zeros(shape...)
	m.ForwardInto(output, input)
	return output
}

// ForwardInto performs max pooling into a caller-owned output.
func (m *MaxPool2D) ForwardInto(output, input *tensor.Tensor) {
	m.backend.MaxPool2DInto(output, input, m.kernelSize, m.stride)
}

// Parameters returns an empty slice (MaxPool2D has no parameters).
func (m *MaxPool2D) Parameters() []*Parameter {
	return []*Parameter{}
}

// KernelSize returns the pooling window size.
func (m *MaxPool2D) KernelSize() int {
	return m.kernelSize
}

// Stride returns the pooling stride.
func (m *MaxPool2D) Stride() int {
	return m.stride
}

// String returns a string representation of the layer.
func (m *MaxPool2D) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d)", m.kernelSize, m.stride)
}
