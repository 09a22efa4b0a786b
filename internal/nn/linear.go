package nn

import (
	"fmt"

	"github.com/born-ml/qlenet/internal/backend/cpu"
	"github.com/born-ml/qlenet/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs y = x @ W.T + b, optionally followed by ReLU, where:
//   - x is the input flattened in its row-major order (a [C,H,W] map is read
//     channel-major), with in_features elements
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output vector with shape [out_features]
//
// Example:
//
//	fc1 := nn.NewLinear(640, 400, true, backend)  // hidden layer with ReLU
//	fc2 := nn.NewLinear(400, 10, false, backend)  // logits
type Linear struct {
	inFeatures  int
	outFeatures int
	useReLU     bool
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
	backend     *cpu.CPUBackend
}

// NewLinear creates a new Linear layer with zero weights and bias.
func NewLinear(inFeatures, outFeatures int, useReLU bool, backend *cpu.CPUBackend) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		useReLU:     useReLU,
		weight:      NewParameter("linear.weight", tensor.Zeros(outFeatures, inFeatures)),
		bias:        NewParameter("linear.bias", tensor.Zeros(outFeatures)),
		backend:     backend,
	}
}

// OutputShape returns [out_features] for any input with in_features elements.
func (l *Linear) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if input.NumElements() != l.inFeatures || len(input) == 0 {
		return nil, fmt.Errorf("linear: expected input with %d features, got shape %v", l.inFeatures, input)
	}
	return tensor.Shape{l.outFeatures}, nil
}

// Forward computes the output of the linear layer, allocating it.
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	if _, err := l.OutputShape(input.Shape()); err != nil {
		panic(err.Error())
	}
	output := tensor.Zeros(l.outFeatures)
	l.ForwardInto(output, input)
	return output
}

// ForwardInto computes the output into a caller-owned [out_features] tensor.
func (l *Linear) ForwardInto(output, input *tensor.Tensor) {
	l.backend.DenseInto(output.Data(), input.Data(), l.weight.Tensor(), l.bias.Tensor().Data(), l.useReLU)
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// ReLU reports whether the layer applies ReLU.
func (l *Linear) ReLU() bool {
	return l.useReLU
}

// StateDict returns a map of parameter names to tensors.
func (l *Linear) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"weight": l.weight.Tensor(),
		"bias":   l.bias.Tensor(),
	}
}

// LoadStateDict loads "weight" and "bias" after validating their shapes.
func (l *Linear) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	return loadParams(stateDict, map[string]*Parameter{"weight": l.weight, "bias": l.bias})
}

// String returns a string representation of the layer.
func (l *Linear) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d, relu=%v)", l.inFeatures, l.outFeatures, l.useReLU)
}
