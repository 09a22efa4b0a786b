package cpu

import (
	"fmt"

	"github.com/born-ml/qlenet/internal/parallel"
	"github.com/born-ml/qlenet/internal/tensor"
)

// Conv2D performs a valid (no padding, stride 1) 2D convolution with bias and
// ReLU, allocating the output.
//
// Input shape:  [in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [out_channels, height-kernel_h+1, width-kernel_w+1]
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.Tensor, bias []int16) *tensor.Tensor {
	in := input.CHW()
	k := kernel.OIHW()
	out := tensor.Zeros(k.Out, in.H-k.KH+1, in.W-k.KW+1)
	cpu.Conv2DInto(out, input, kernel, bias)
	return out
}

// Conv2DInto is Conv2D writing into a caller-owned output, which it fully
// overwrites.
//
// For output channel k and position (y, x):
//
//	acc = bias[k] << F
//	acc += input[c][y+ky][x+kx] * kernel[k][c][ky][kx]   for all c, ky, kx
//	out[k][y][x] = relu(narrow(acc >> F))
//
// Intermediate products are never rescaled individually. Narrowing happens
// before the ReLU so a wrapped overflow clamps to zero instead of surfacing as
// a negative activation.
func (cpu *CPUBackend) Conv2DInto(output, input, kernel *tensor.Tensor, bias []int16) {
	in := input.CHW()
	k := kernel.OIHW()
	out := output.CHW()

	if in.C != k.In {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", in.C, k.In))
	}
	if len(bias) != k.Out {
		panic(fmt.Sprintf("conv2d: bias length %d != output channels %d", len(bias), k.Out))
	}
	hOut := in.H - k.KH + 1
	wOut := in.W - k.KW + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("conv2d: kernel %dx%d larger than input %dx%d", k.KH, k.KW, in.H, in.W))
	}
	if out.C != k.Out || out.H != hOut || out.W != wOut {
		panic(fmt.Sprintf("conv2d: output shape %v, want [%dx%dx%d]", output.Shape(), k.Out, hOut, wOut))
	}

	src := input.Data()
	weights := kernel.Data()
	dst := output.Data()
	f := cpu.format

	// One task per output row of one output channel; rows are independent.
	parallel.ForGrid(k.Out, hOut, func(ko, y int) {
		filter := weights[k.Index(ko, 0, 0, 0) : k.Index(ko, 0, 0, 0)+k.In*k.KH*k.KW]
		rowOut := dst[out.Index(ko, y, 0) : out.Index(ko, y, 0)+wOut]
		b := f.Promote(bias[ko])

		for x := 0; x < wOut; x++ {
			acc := b
			tap := 0
			for c := 0; c < in.C; c++ {
				for ky := 0; ky < k.KH; ky++ {
					// Pre-slice input row: one bounds check per kernel row
					start := in.Index(c, y+ky, x)
					row := src[start : start+k.KW]
					for kx, v := range row {
						acc += int32(v) * int32(filter[tap+kx])
					}
					tap += k.KW
				}
			}
			rowOut[x] = relu(f.Narrow(f.Rescale(acc)))
		}
	}, cpu.par)
}
