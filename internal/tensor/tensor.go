// Package tensor provides dense fixed-point tensors and the index arithmetic
// that pins down their element order.
package tensor

import (
	"fmt"
)

// Tensor is a dense row-major array of int16 fixed-point values.
//
// A Tensor owns its backing slice unless it was created with FromData or
// Reshape, in which case it shares memory with the source.
type Tensor struct {
	shape Shape
	data  []int16
}

// New creates a zero-filled tensor.
func New(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]int16, shape.NumElements()),
	}, nil
}

// Zeros creates a zero-filled tensor and panics on an invalid shape.
//
// Example:
//
//	t := tensor.Zeros(20, 24, 24)
func Zeros(dims ...int) *Tensor {
	t, err := New(Shape(dims))
	if err != nil {
		panic(err)
	}
	return t
}

// FromData wraps data (without copying) in a tensor of the given shape.
func FromData(shape Shape, data []int16) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Tensor{shape: shape.Clone(), data: data}, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Data returns the backing slice.
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor) Data() []int16 {
	return t.data
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) At(indices ...int) int16 {
	return t.data[t.shape.Offset(indices...)]
}

// Set stores v at the given indices.
func (t *Tensor) Set(v int16, indices ...int) {
	t.data[t.shape.Offset(indices...)] = v
}

// Fill sets every element to v.
func (t *Tensor) Fill(v int16) {
	for i := range t.data {
		t.data[i] = v
	}
}

// Reshape returns a view with a new shape over the same data.
func (t *Tensor) Reshape(dims ...int) (*Tensor, error) {
	return FromData(Shape(dims), t.data)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]int16, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data}
}

// Equal reports whether both tensors have the same shape and bit-identical data.
func (t *Tensor) Equal(other *Tensor) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		if other.data[i] != v {
			return false
		}
	}
	return true
}

// CHW returns the tensor's dims as a feature map.
// Panics if the tensor is not 3D.
func (t *Tensor) CHW() CHW {
	if len(t.shape) != 3 {
		panic(fmt.Sprintf("tensor: expected 3D [C,H,W], got shape %v", t.shape))
	}
	return CHW{C: t.shape[0], H: t.shape[1], W: t.shape[2]}
}

// OIHW returns the tensor's dims as a kernel bank.
// Panics if the tensor is not 4D.
func (t *Tensor) OIHW() OIHW {
	if len(t.shape) != 4 {
		panic(fmt.Sprintf("tensor: expected 4D [Out,In,KH,KW], got shape %v", t.shape))
	}
	return OIHW{Out: t.shape[0], In: t.shape[1], KH: t.shape[2], KW: t.shape[3]}
}
