package nn

import (
	"fmt"

	"github.com/born-ml/qlenet/internal/backend/cpu"
	"github.com/born-ml/qlenet/internal/tensor"
)

// Conv2D is a valid (unpadded, stride 1) 2D convolution followed by bias and ReLU.
//
// Input shape:  [in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [out_channels, height-kernel_h+1, width-kernel_w+1]
//
// Example:
//
//	// LeNet conv1: 1 channel -> 20 channels, 5x5 kernel
//	conv := nn.NewConv2D(1, 20, 5, 5, backend)
//	output := conv.Forward(input) // [20, 24, 24]
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int

	weight *Parameter // [out_channels, in_channels, kernel_h, kernel_w]
	bias   *Parameter // [out_channels]

	backend *cpu.CPUBackend
}

// NewConv2D creates a convolution layer with zero weights and bias.
func NewConv2D(inChannels, outChannels, kernelH, kernelW int, backend *cpu.CPUBackend) *Conv2D {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	}

	return &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  [2]int{kernelH, kernelW},
		weight:      NewParameter("conv2d.weight", tensor.Zeros(outChannels, inChannels, kernelH, kernelW)),
		bias:        NewParameter("conv2d.bias", tensor.Zeros(outChannels)),
		backend:     backend,
	}
}

// OutputShape returns [out_channels, H-kH+1, W-kW+1].
func (c *Conv2D) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(input) != 3 {
		return nil, fmt.Errorf("conv2d: expected 3D input [C,H,W], got shape %v", input)
	}
	if input[0] != c.inChannels {
		return nil, fmt.Errorf("conv2d: input channels %d != expected %d", input[0], c.inChannels)
	}
	outH := input[1] - c.kernelSize[0] + 1
	outW := input[2] - c.kernelSize[1] + 1
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("conv2d: input %v smaller than kernel %dx%d", input, c.kernelSize[0], c.kernelSize[1])
	}
	return tensor.Shape{c.outChannels, outH, outW}, nil
}

// Forward performs the forward pass, allocating the output.
func (c *Conv2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape, err := c.OutputShape(input.Shape())
	if err != nil {
		panic(err.Error())
	}
	output := tensor.Zeros(shape...)
	c.ForwardInto(output, input)
	return output
}

// ForwardInto performs the forward pass into a caller-owned output.
func (c *Conv2D) ForwardInto(output, input *tensor.Tensor) {
	c.backend.Conv2DInto(output, input, c.weight.Tensor(), c.bias.Tensor().Data())
}

// Parameters returns [weight, bias].
func (c *Conv2D) Parameters() []*Parameter {
	return []*Parameter{c.weight, c.bias}
}

// Weight returns the kernel parameter.
func (c *Conv2D) Weight() *Parameter {
	return c.weight
}

// Bias returns the bias parameter.
func (c *Conv2D) Bias() *Parameter {
	return c.bias
}

// StateDict returns a map of parameter names to tensors.
func (c *Conv2D) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"weight": c.weight.Tensor(),
		"bias":   c.bias.Tensor(),
	}
}

// LoadStateDict loads "weight" and "bias" after validating their shapes.
func (c *Conv2D) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	return loadParams(stateDict, map[string]*Parameter{"weight": c.weight, "bias": c.bias})
}

// String returns a string representation of the layer.
func (c *Conv2D) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d))",
		c.inChannels, c.outChannels, c.kernelSize[0], c.kernelSize[1])
}

// InChannels returns the number of input channels.
func (c *Conv2D) InChannels() int {
	return c.inChannels
}

// OutChannels returns the number of output channels.
func (c *Conv2D) OutChannels() int {
	return c.outChannels
}

// KernelSize returns the kernel size [height, width].
func (c *Conv2D) KernelSize() [2]int {
	return c.kernelSize
}
