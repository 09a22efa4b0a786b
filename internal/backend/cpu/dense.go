package cpu

import (
	"fmt"

	"github.com/born-ml/qlenet/internal/parallel"
	"github.com/born-ml/qlenet/internal/tensor"
)

// Dense computes a fully connected layer, allocating the output vector.
//
// Input:  [in_features] (a CHW map is consumed in its channel-major flat order)
// Weight: [out_features, in_features]
// Bias:   [out_features]
// Output: [out_features]
func (cpu *CPUBackend) Dense(input []int16, weight *tensor.Tensor, bias []int16, useReLU bool) []int16 {
	out := make([]int16, weight.Shape()[0])
	cpu.DenseInto(out, input, weight, bias, useReLU)
	return out
}

// DenseInto is Dense writing into a caller-owned output slice.
//
// For each output unit k:
//
//	acc = bias[k] << F + sum_i input[i] * weight[k][i]
//	out[k] = narrow(acc >> F), then ReLU if useReLU
func (cpu *CPUBackend) DenseInto(output, input []int16, weight *tensor.Tensor, bias []int16, useReLU bool) {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("dense: weight must be 2D [out,in], got shape %v", shape))
	}
	outFeatures, inFeatures := shape[0], shape[1]
	if len(input) != inFeatures {
		panic(fmt.Sprintf("dense: expected %d input features, got %d", inFeatures, len(input)))
	}
	if len(bias) != outFeatures {
		panic(fmt.Sprintf("dense: bias length %d != output features %d", len(bias), outFeatures))
	}
	if len(output) != outFeatures {
		panic(fmt.Sprintf("dense: output length %d != output features %d", len(output), outFeatures))
	}

	w := weight.Data()
	f := cpu.format

	parallel.For(outFeatures, func(k int) {
		row := w[k*inFeatures : (k+1)*inFeatures]
		acc := f.Promote(bias[k])
		for i, v := range input {
			acc += int32(v) * int32(row[i])
		}
		q := f.Narrow(f.Rescale(acc))
		if useReLU {
			q = relu(q)
		}
		output[k] = q
	}, cpu.par)
}
