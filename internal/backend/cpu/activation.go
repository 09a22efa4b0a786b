package cpu

import (
	"fmt"
	"math"
)

// SoftmaxEpsilon is the exponential-sum floor below which Softmax falls back
// to a uniform distribution.
const SoftmaxEpsilon = 1e-12

// Softmax converts fixed-point logits to a float32 probability distribution
// into a caller-owned slice of the same length.
//
// Logits are dequantized and shifted by their maximum before exponentiation,
// so every exponent is non-positive. If the exponential sum falls below
// SoftmaxEpsilon the output is uniform.
func (cpu *CPUBackend) Softmax(output []float32, logits []int16) {
	if len(output) != len(logits) {
		panic(fmt.Sprintf("softmax: output length %d != logits length %d", len(output), len(logits)))
	}
	if len(logits) == 0 {
		return
	}

	f := cpu.format
	maxVal := f.Dequantize(logits[0])
	for _, q := range logits[1:] {
		if v := f.Dequantize(q); v > maxVal {
			maxVal = v
		}
	}

	var sum float32
	for i, q := range logits {
		e := float32(math.Exp(float64(f.Dequantize(q) - maxVal)))
		output[i] = e
		sum += e
	}

	if sum < SoftmaxEpsilon {
		uniform := 1 / float32(len(output))
		for i := range output {
			output[i] = uniform
		}
		return
	}

	for i := range output {
		output[i] /= sum
	}
}

// Argmax returns the index of the first maximum of v, or -1 if v is empty.
func Argmax(v []float32) int {
	if len(v) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
