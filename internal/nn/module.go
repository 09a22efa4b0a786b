// Package nn implements the fixed-point inference layers.
//
// This package provides building blocks for the forward pass:
//   - Module interface: shape propagation and buffer-filling forward pass
//   - Parameter: named, read-only fixed-point weight tensors
//   - Conv2D: valid convolution + bias + ReLU
//   - MaxPool2D: max pooling
//   - Linear: fully connected layer with optional ReLU
//   - Softmax: fixed-point logits to float32 probabilities
//
// Layers hold no per-call state. Their parameters are written once by
// LoadStateDict and only read afterwards, so a layer may be shared by
// concurrent forward passes that each own their output buffers.
package nn

import (
	"github.com/born-ml/qlenet/internal/tensor"
)

// Module is the common interface of fixed-point layers.
type Module interface {
	// OutputShape returns the output shape for the given input shape, or an
	// error if the layer cannot consume it.
	OutputShape(input tensor.Shape) (tensor.Shape, error)

	// Forward allocates and returns the output for input.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// ForwardInto fully overwrites output, which must have OutputShape(input.Shape()).
	ForwardInto(output, input *tensor.Tensor)

	// Parameters returns the layer's parameters (empty for pooling).
	Parameters() []*Parameter
}

// Stateful is implemented by layers whose parameters can be saved and restored.
type Stateful interface {
	Module
	StateDict() map[string]*tensor.Tensor
	LoadStateDict(stateDict map[string]*tensor.Tensor) error
}
