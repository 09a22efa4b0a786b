// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package lenet provides fixed-point LeNet inference for 28x28 greyscale digits.
//
// Every activation, weight and bias is a signed 16-bit fixed-point value with
// a configurable number of fractional bits (Q8 by default). Convolution and
// dense layers accumulate in int32 and rescale once per output element; only
// the final softmax runs in float32.
//
// Example usage:
//
//	import "github.com/born-ml/qlenet/lenet"
//
//	weights, err := lenet.LoadWeights("lenet_q8.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	net, err := lenet.New(weights)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	buf := lenet.NewBuffers() // one per goroutine
//	pred, err := net.ClassifyPixels(buf, pixels)
//	fmt.Printf("digit %d (p=%.3f)\n", pred.Class, pred.Probabilities[pred.Class])
//
// Float weights exported from a channels-last training framework are
// converted once with QuantizeWeights and stored with Weights.Save.
package lenet
