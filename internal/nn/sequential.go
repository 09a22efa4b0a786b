package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/qlenet/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. Intermediate outputs
// can be kept in caller-owned buffers with ForwardStages, which is how a
// forward pass runs without allocating.
//
// Example:
//
//	features := nn.NewSequential(
//	    nn.NewConv2D(1, 20, 5, 5, backend),
//	    nn.NewMaxPool2D(2, 2, backend),
//	)
//	out := features.Forward(input)
type Sequential struct {
	modules []Module
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Add appends a module to the sequence.
func (s *Sequential) Add(module Module) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Modules returns the contained modules in order.
func (s *Sequential) Modules() []Module {
	return s.modules
}

// Shapes propagates input through every module and returns the output shape
// of each stage.
func (s *Sequential) Shapes(input tensor.Shape) ([]tensor.Shape, error) {
	shapes := make([]tensor.Shape, len(s.modules))
	shape := input
	for i, m := range s.modules {
		out, err := m.OutputShape(shape)
		if err != nil {
			return nil, fmt.Errorf("sequential: stage %d: %w", i, err)
		}
		shapes[i] = out
		shape = out
	}
	return shapes, nil
}

// OutputShape returns the output shape of the last module.
func (s *Sequential) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(s.modules) == 0 {
		return input, nil
	}
	shapes, err := s.Shapes(input)
	if err != nil {
		return nil, err
	}
	return shapes[len(shapes)-1], nil
}

// Forward applies all modules in sequence, allocating every intermediate.
func (s *Sequential) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := input
	for _, m := range s.modules {
		output = m.Forward(output)
	}
	return output
}

// ForwardInto writes the last module's output into output. Intermediates
// are allocated; use ForwardStages to supply them.
func (s *Sequential) ForwardInto(output, input *tensor.Tensor) {
	if len(s.modules) == 0 {
		copy(output.Data(), input.Data())
		return
	}
	last := len(s.modules) - 1
	h := input
	for _, m := range s.modules[:last] {
		h = m.Forward(h)
	}
	s.modules[last].ForwardInto(output, h)
}

// ForwardStages runs the pipeline writing module i's output into stages[i].
// Panics if len(stages) != Len().
func (s *Sequential) ForwardStages(stages []*tensor.Tensor, input *tensor.Tensor) {
	if len(stages) != len(s.modules) {
		panic(fmt.Sprintf("sequential: %d stage buffers for %d modules", len(stages), len(s.modules)))
	}
	h := input
	for i, m := range s.modules {
		m.ForwardInto(stages[i], h)
		h = stages[i]
	}
}

// Parameters returns the parameters of all modules in order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// String lists the modules one per line.
func (s *Sequential) String() string {
	var b strings.Builder
	b.WriteString("Sequential(\n")
	for i, m := range s.modules {
		fmt.Fprintf(&b, "  (%d): %v\n", i, m)
	}
	b.WriteString(")")
	return b.String()
}
