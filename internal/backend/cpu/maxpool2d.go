package cpu

import (
	"fmt"

	"github.com/born-ml/qlenet/internal/tensor"
)

// MaxPool2D performs 2D max pooling, allocating the output.
//
// Input shape:  [channels, height, width]
// Output shape: [channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.Tensor, kernelSize, stride int) *tensor.Tensor {
	in := input.CHW()
	hOut, wOut := poolDims(in, kernelSize, stride)
	out := tensor.Zeros(in.C, hOut, wOut)
	cpu.MaxPool2DInto(out, input, kernelSize, stride)
	return out
}

// MaxPool2DInto is MaxPool2D writing into a caller-owned output.
// Values are copied verbatim: max is scale-invariant, so no rescale happens.
func (cpu *CPUBackend) MaxPool2DInto(output, input *tensor.Tensor, kernelSize, stride int) {
	in := input.CHW()
	out := output.CHW()
	hOut, wOut := poolDims(in, kernelSize, stride)
	if out.C != in.C || out.H != hOut || out.W != wOut {
		panic(fmt.Sprintf("maxpool2d: output shape %v, want [%dx%dx%d]", output.Shape(), in.C, hOut, wOut))
	}

	src := input.Data()
	dst := output.Data()

	for c := 0; c < in.C; c++ {
		// Pre-slice channel plane: eliminates c*H*W bounds check
		plane := src[in.Index(c, 0, 0) : in.Index(c, 0, 0)+in.H*in.W]

		for outH := 0; outH < hOut; outH++ {
			hStart := outH * stride

			for outW := 0; outW < wOut; outW++ {
				wStart := outW * stride

				// The window's top-left element seeds the max.
				maxVal := plane[hStart*in.W+wStart]
				for kh := 0; kh < kernelSize; kh++ {
					rowStart := (hStart + kh) * in.W
					row := plane[rowStart+wStart : rowStart+wStart+kernelSize]
					for _, v := range row {
						if v > maxVal {
							maxVal = v
						}
					}
				}

				dst[out.Index(c, outH, outW)] = maxVal
			}
		}
	}
}

func poolDims(in tensor.CHW, kernelSize, stride int) (int, int) {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if kernelSize > in.H || kernelSize > in.W {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, in.H, in.W))
	}
	return (in.H-kernelSize)/stride + 1, (in.W-kernelSize)/stride + 1
}
