// Package lenet wires the fixed-point layers into the LeNet classifier:
//
//	input 1x28x28
//	  -> conv1 5x5, 20 filters, ReLU   20x24x24
//	  -> maxpool 2x2                   20x12x12
//	  -> conv2 5x5, 40 filters, ReLU   40x8x8
//	  -> maxpool 2x2                   40x4x4 (640, channel-major)
//	  -> fc1 400, ReLU
//	  -> fc2 10 (logits)
//	  -> softmax (float32)
//
// The Network holds only immutable weights. All intermediate activations
// live in a caller-owned Buffers arena, one per concurrent classification.
package lenet

import "github.com/born-ml/qlenet/internal/tensor"

// Network dimensions.
const (
	ImageSize    = 28
	ImagePixels  = ImageSize * ImageSize
	NumClasses   = 10
	KernelSize   = 5
	PoolSize     = 2
	Conv1Filters = 20
	Conv2Filters = 40
	HiddenUnits  = 400
)

// Activation shapes of every pipeline stage.
var (
	InputDims = tensor.CHW{C: 1, H: ImageSize, W: ImageSize}
	Conv1Dims = tensor.CHW{C: Conv1Filters, H: 24, W: 24}
	Pool1Dims = tensor.CHW{C: Conv1Filters, H: 12, W: 12}
	Conv2Dims = tensor.CHW{C: Conv2Filters, H: 8, W: 8}
	Pool2Dims = tensor.CHW{C: Conv2Filters, H: 4, W: 4}
)

// FlatFeatures is the length of the flattened pool2 output fed to fc1.
const FlatFeatures = 40 * 4 * 4

// Tensor names used in weight files.
const (
	Conv1Weight = "conv1.weight"
	Conv1Bias   = "conv1.bias"
	Conv2Weight = "conv2.weight"
	Conv2Bias   = "conv2.bias"
	FC1Weight   = "fc1.weight"
	FC1Bias     = "fc1.bias"
	FC2Weight   = "fc2.weight"
	FC2Bias     = "fc2.bias"
)

// TensorNames lists every parameter tensor in pipeline order.
var TensorNames = []string{
	Conv1Weight, Conv1Bias,
	Conv2Weight, Conv2Bias,
	FC1Weight, FC1Bias,
	FC2Weight, FC2Bias,
}

// FixedShapes returns the fixed-point (output-major) shape of every parameter.
func FixedShapes() map[string]tensor.Shape {
	return map[string]tensor.Shape{
		Conv1Weight: {Conv1Filters, 1, KernelSize, KernelSize},
		Conv1Bias:   {Conv1Filters},
		Conv2Weight: {Conv2Filters, Conv1Filters, KernelSize, KernelSize},
		Conv2Bias:   {Conv2Filters},
		FC1Weight:   {HiddenUnits, FlatFeatures},
		FC1Bias:     {HiddenUnits},
		FC2Weight:   {NumClasses, HiddenUnits},
		FC2Bias:     {NumClasses},
	}
}

// FloatShapes returns the shape of every parameter as exported by a
// channels-last training framework.
func FloatShapes() map[string]tensor.Shape {
	return map[string]tensor.Shape{
		Conv1Weight: {KernelSize, KernelSize, 1, Conv1Filters},
		Conv1Bias:   {Conv1Filters},
		Conv2Weight: {KernelSize, KernelSize, Conv1Filters, Conv2Filters},
		Conv2Bias:   {Conv2Filters},
		FC1Weight:   {FlatFeatures, HiddenUnits},
		FC1Bias:     {HiddenUnits},
		FC2Weight:   {HiddenUnits, NumClasses},
		FC2Bias:     {NumClasses},
	}
}
