// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lenet

import (
	"context"

	"github.com/born-ml/qlenet/internal/dataset"
	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/lenet"
	"github.com/born-ml/qlenet/internal/parallel"
	"github.com/born-ml/qlenet/internal/quantize"
	"github.com/born-ml/qlenet/internal/tensor"
)

// Format is the fixed-point number format (fractional bits and overflow policy).
type Format = fixed.Format

// Overflow selects wrapping or saturating narrowing.
type Overflow = fixed.Overflow

// Overflow policies.
const (
	Wrap     Overflow = fixed.Wrap
	Saturate Overflow = fixed.Saturate
)

// DefaultFormat returns Q8 with wrapping overflow.
func DefaultFormat() Format {
	return fixed.Default()
}

// NewFormat returns a validated format.
func NewFormat(fracBits uint, overflow Overflow) (Format, error) {
	return fixed.New(fracBits, overflow)
}

// Tensor is a dense int16 fixed-point tensor.
type Tensor = tensor.Tensor

// FloatTensor is a float32 tensor in training-framework layout.
type FloatTensor = tensor.Float32

// Network is the fixed-point classifier. Safe for concurrent use with one
// Buffers per goroutine.
type Network = lenet.Network

// Weights holds the fixed-point parameters of a Network.
type Weights = lenet.Weights

// Buffers is the per-call activation arena.
type Buffers = lenet.Buffers

// Prediction is the result of one classification.
type Prediction = lenet.Prediction

// QuantizationReport describes per-tensor quantization error.
type QuantizationReport = quantize.Report

// ParallelConfig controls worker fan-out.
type ParallelConfig = parallel.Config

// EvalConfig and EvalResult configure and summarize Evaluate.
type (
	EvalConfig = lenet.EvalConfig
	EvalResult = lenet.EvalResult
)

// Images is a set of 8-bit greyscale images.
type Images = dataset.Images

// Common errors.
var (
	ErrShapeMismatch  = lenet.ErrShapeMismatch
	ErrMissingTensor  = lenet.ErrMissingTensor
	ErrFormatMismatch = lenet.ErrFormatMismatch
)

// NumClasses is the number of output classes.
const NumClasses = lenet.NumClasses

// New builds a sequential network.
func New(w *Weights) (*Network, error) {
	return lenet.New(w)
}

// NewParallel builds a network that splits each layer across workers.
func NewParallel(w *Weights, cfg ParallelConfig) (*Network, error) {
	return lenet.NewParallel(w, cfg)
}

// DefaultParallelConfig sizes workers from the physical core count.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}

// NewBuffers allocates an activation arena.
func NewBuffers() *Buffers {
	return lenet.NewBuffers()
}

// LoadWeights reads fixed-point weights from a SafeTensors file.
func LoadWeights(path string) (*Weights, error) {
	return lenet.LoadWeights(path)
}

// QuantizeWeights converts channels-last float parameters to fixed point.
func QuantizeWeights(f Format, params map[string]*FloatTensor) (*Weights, *QuantizationReport, error) {
	return lenet.QuantizeWeights(f, params)
}

// Classify runs net on a normalized 1x28x28 image using buf.
func Classify(net *Network, buf *Buffers, input *Tensor) (Prediction, error) {
	return net.Classify(buf, input)
}

// Normalize maps 28x28 8-bit pixels to a fixed-point input tensor.
func Normalize(pixels []byte, f Format) *Tensor {
	return dataset.Normalize(pixels, lenet.ImageSize, lenet.ImageSize, f)
}

// Argmax returns the index of the first maximum.
func Argmax(probs []float32) int {
	return lenet.Argmax(probs)
}

// Evaluate classifies labelled images and tallies accuracy.
func Evaluate(ctx context.Context, net *Network, images *Images, labels []byte, cfg EvalConfig) (*EvalResult, error) {
	return lenet.Evaluate(ctx, net, images, labels, cfg)
}
