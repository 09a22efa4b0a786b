package lenet

import (
	"errors"
	"fmt"

	"github.com/born-ml/qlenet/internal/tensor"
)

// Sentinel errors.
var (
	ErrShapeMismatch  = errors.New("shape mismatch")
	ErrMissingTensor  = errors.New("missing tensor")
	ErrFormatMismatch = errors.New("fixed-point format mismatch")
	ErrInvalidLabel   = errors.New("invalid label")
)

// ShapeError reports a tensor or image whose shape differs from the one the
// network was built for. It matches ErrShapeMismatch with errors.Is.
type ShapeError struct {
	Tensor   string // Tensor name, or "input" for images
	Expected tensor.Shape
	Got      tensor.Shape
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: tensor %q: expected %v, got %v", ErrShapeMismatch, e.Tensor, e.Expected, e.Got)
}

// Unwrap returns ErrShapeMismatch.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}
