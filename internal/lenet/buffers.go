package lenet

import "github.com/born-ml/qlenet/internal/tensor"

// Buffers is the per-call activation arena. Every stage of a forward pass
// fully overwrites its buffer, so an arena can be reused for any number of
// sequential classifications without resetting. Concurrent classifications
// need one arena each.
type Buffers struct {
	Input  *tensor.Tensor // 1x28x28
	Conv1  *tensor.Tensor // 20x24x24
	Pool1  *tensor.Tensor // 20x12x12
	Conv2  *tensor.Tensor // 40x8x8
	Pool2  *tensor.Tensor // 40x4x4
	FC1    *tensor.Tensor // 400
	Logits *tensor.Tensor // 10
	Probs  []float32      // 10
}

// NewBuffers allocates an arena sized for the network. Arenas assembled by
// hand must match it stage for stage; Forward and Classify reject anything
// else with a ShapeError.
func NewBuffers() *Buffers {
	return &Buffers{
		Input:  tensor.Zeros(InputDims.Shape()...),
		Conv1:  tensor.Zeros(Conv1Dims.Shape()...),
		Pool1:  tensor.Zeros(Pool1Dims.Shape()...),
		Conv2:  tensor.Zeros(Conv2Dims.Shape()...),
		Pool2:  tensor.Zeros(Pool2Dims.Shape()...),
		FC1:    tensor.Zeros(HiddenUnits),
		Logits: tensor.Zeros(NumClasses),
		Probs:  make([]float32, NumClasses),
	}
}

// stageNames labels the pipeline stages in the order of stages().
var stageNames = []string{"conv1", "pool1", "conv2", "pool2", "fc1", "fc2"}

// stages returns the stage outputs in pipeline order.
func (b *Buffers) stages() []*tensor.Tensor {
	return []*tensor.Tensor{b.Conv1, b.Pool1, b.Conv2, b.Pool2, b.FC1, b.Logits}
}

// stageShapes returns the expected shape of each entry of stages().
func stageShapes() []tensor.Shape {
	return []tensor.Shape{
		Conv1Dims.Shape(), Pool1Dims.Shape(), Conv2Dims.Shape(), Pool2Dims.Shape(),
		{HiddenUnits}, {NumClasses},
	}
}

// validate checks that b is a complete arena. Input is only checked when
// withInput is set, since Forward and Classify take their input separately.
func (b *Buffers) validate(withInput bool) error {
	if b == nil {
		return &ShapeError{Tensor: "buffers"}
	}
	expected := stageShapes()
	for i, t := range b.stages() {
		if t == nil {
			return &ShapeError{Tensor: stageNames[i], Expected: expected[i]}
		}
		if !t.Shape().Equal(expected[i]) {
			return &ShapeError{Tensor: stageNames[i], Expected: expected[i], Got: t.Shape()}
		}
	}
	if len(b.Probs) != NumClasses {
		return &ShapeError{Tensor: "probs", Expected: tensor.Shape{NumClasses}, Got: tensor.Shape{len(b.Probs)}}
	}
	if withInput {
		if b.Input == nil {
			return &ShapeError{Tensor: "input", Expected: InputDims.Shape()}
		}
		if !b.Input.Shape().Equal(InputDims.Shape()) {
			return &ShapeError{Tensor: "input", Expected: InputDims.Shape(), Got: b.Input.Shape()}
		}
	}
	return nil
}
