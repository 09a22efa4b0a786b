package nn

import (
	"fmt"

	"github.com/born-ml/qlenet/internal/tensor"
)

// Parameter is a named fixed-point weight or bias tensor.
//
// Parameters are written by LoadStateDict at setup time and treated as
// immutable during inference.
type Parameter struct {
	name   string
	tensor *tensor.Tensor
}

// NewParameter creates a parameter around t.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Load copies src into the parameter after checking its shape.
func (p *Parameter) Load(src *tensor.Tensor) error {
	if src == nil {
		return fmt.Errorf("missing %s in state dict", p.name)
	}
	if !src.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v",
			p.name, p.tensor.Shape(), src.Shape())
	}
	copy(p.tensor.Data(), src.Data())
	return nil
}

// loadParams loads every parameter from stateDict under its short key.
func loadParams(stateDict map[string]*tensor.Tensor, params map[string]*Parameter) error {
	for key, p := range params {
		if err := p.Load(stateDict[key]); err != nil {
			return err
		}
	}
	return nil
}
