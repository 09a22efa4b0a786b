package lenet

import (
	"fmt"

	"github.com/born-ml/qlenet/internal/backend/cpu"
	"github.com/born-ml/qlenet/internal/dataset"
	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/nn"
	"github.com/born-ml/qlenet/internal/parallel"
	"github.com/born-ml/qlenet/internal/tensor"
)

// Prediction is the result of classifying one image. It is a value copy,
// independent of the Buffers used to compute it.
type Prediction struct {
	Class         int
	Probabilities [NumClasses]float32
	Logits        [NumClasses]int16
}

// Network is the fixed-point LeNet classifier. It is safe for concurrent use
// as long as each goroutine passes its own Buffers.
type Network struct {
	backend *cpu.CPUBackend

	conv1    *nn.Conv2D
	conv2    *nn.Conv2D
	fc1      *nn.Linear
	fc2      *nn.Linear
	pipeline *nn.Sequential // conv1 pool1 conv2 pool2 fc1 fc2
	softmax  *nn.Softmax
}

// New builds a sequential network from w.
func New(w *Weights) (*Network, error) {
	return NewParallel(w, parallel.Sequential())
}

// NewParallel builds a network whose convolution and dense kernels split
// their output channels across cfg's workers. Outputs are bit-identical to
// the sequential network.
func NewParallel(w *Weights, cfg parallel.Config) (*Network, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	backend := cpu.NewParallel(w.Format, cfg)

	n := &Network{
		backend: backend,
		conv1:   nn.NewConv2D(InputDims.C, Conv1Filters, KernelSize, KernelSize, backend),
		conv2:   nn.NewConv2D(Conv1Filters, Conv2Filters, KernelSize, KernelSize, backend),
		fc1:     nn.NewLinear(FlatFeatures, HiddenUnits, true, backend),
		fc2:     nn.NewLinear(HiddenUnits, NumClasses, false, backend),
		softmax: nn.NewSoftmax(backend),
	}
	n.pipeline = nn.NewSequential(
		n.conv1,
		nn.NewMaxPool2D(PoolSize, PoolSize, backend),
		n.conv2,
		nn.NewMaxPool2D(PoolSize, PoolSize, backend),
		n.fc1, // reads the pool2 map flattened channel-major
		n.fc2,
	)

	layers := []struct {
		prefix string
		layer  nn.Stateful
	}{
		{"conv1", n.conv1},
		{"conv2", n.conv2},
		{"fc1", n.fc1},
		{"fc2", n.fc2},
	}
	for _, l := range layers {
		sd := map[string]*tensor.Tensor{
			"weight": w.Params[l.prefix+".weight"],
			"bias":   w.Params[l.prefix+".bias"],
		}
		if err := l.layer.LoadStateDict(sd); err != nil {
			return nil, fmt.Errorf("%s: %w", l.prefix, err)
		}
	}

	if err := n.checkShapes(); err != nil {
		return nil, err
	}
	return n, nil
}

// checkShapes propagates the input shape through the pipeline and compares
// every stage against the arena shapes.
func (n *Network) checkShapes() error {
	shapes, err := n.pipeline.Shapes(InputDims.Shape())
	if err != nil {
		return err
	}
	for i, t := range NewBuffers().stages() {
		if !shapes[i].Equal(t.Shape()) {
			return &ShapeError{Tensor: stageNames[i], Expected: t.Shape(), Got: shapes[i]}
		}
	}
	return nil
}

// Format returns the fixed-point format of the network.
func (n *Network) Format() fixed.Format {
	return n.backend.Format()
}

// ValidateImage checks that input is a 1x28x28 tensor.
func (n *Network) ValidateImage(input *tensor.Tensor) error {
	if input == nil {
		return &ShapeError{Tensor: "input", Expected: InputDims.Shape()}
	}
	if !input.Shape().Equal(InputDims.Shape()) {
		return &ShapeError{Tensor: "input", Expected: InputDims.Shape(), Got: input.Shape()}
	}
	return nil
}

// Forward runs the integer pipeline on a normalized image and returns the
// logits, which alias buf.Logits.
func (n *Network) Forward(buf *Buffers, input *tensor.Tensor) (*tensor.Tensor, error) {
	if err := n.ValidateImage(input); err != nil {
		return nil, err
	}
	if err := buf.validate(false); err != nil {
		return nil, err
	}
	n.forward(buf, input)
	return buf.Logits, nil
}

func (n *Network) forward(buf *Buffers, input *tensor.Tensor) {
	n.pipeline.ForwardStages(buf.stages(), input)
}

// Classify runs the full pipeline including softmax on a normalized image.
func (n *Network) Classify(buf *Buffers, input *tensor.Tensor) (Prediction, error) {
	if err := n.ValidateImage(input); err != nil {
		return Prediction{}, err
	}
	if err := buf.validate(false); err != nil {
		return Prediction{}, err
	}
	n.forward(buf, input)
	return n.predict(buf), nil
}

// ClassifyPixels normalizes 28x28 8-bit pixels into buf.Input and classifies them.
func (n *Network) ClassifyPixels(buf *Buffers, pixels []byte) (Prediction, error) {
	if len(pixels) != ImagePixels {
		return Prediction{}, &ShapeError{
			Tensor:   "input",
			Expected: tensor.Shape{ImagePixels},
			Got:      tensor.Shape{len(pixels)},
		}
	}
	if err := buf.validate(true); err != nil {
		return Prediction{}, err
	}
	dataset.NormalizeInto(buf.Input.Data(), pixels, n.Format())
	n.forward(buf, buf.Input)
	return n.predict(buf), nil
}

func (n *Network) predict(buf *Buffers) Prediction {
	n.softmax.ForwardInto(buf.Probs, buf.Logits.Data())

	var p Prediction
	copy(p.Probabilities[:], buf.Probs)
	copy(p.Logits[:], buf.Logits.Data())
	p.Class = Argmax(buf.Probs)
	return p
}

// Argmax returns the index of the first maximum of probs.
func Argmax(probs []float32) int {
	return cpu.Argmax(probs)
}

// String returns a layer summary.
func (n *Network) String() string {
	return fmt.Sprintf("LeNet[%s] %v -> %v", n.Format(), n.pipeline, n.softmax)
}
