package tensor

import "fmt"

// Float32 is a dense row-major float32 array. It carries weights in training
// framework layouts before quantization and never enters the inference path.
type Float32 struct {
	Shape Shape
	Data  []float32
}

// NewFloat32 wraps data in a Float32 after checking its length.
func NewFloat32(shape Shape, data []float32) (*Float32, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Float32{Shape: shape.Clone(), Data: data}, nil
}

// ZerosFloat32 creates a zero-filled Float32 and panics on an invalid shape.
func ZerosFloat32(dims ...int) *Float32 {
	shape := Shape(dims)
	if err := shape.Validate(); err != nil {
		panic(err)
	}
	return &Float32{Shape: shape.Clone(), Data: make([]float32, shape.NumElements())}
}
