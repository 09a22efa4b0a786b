package loader

import "errors"

// Common errors.
var (
	ErrTensorNotFound    = errors.New("tensor not found")
	ErrUnsupportedDType  = errors.New("unsupported dtype")
	ErrInvalidOffsets    = errors.New("invalid data offsets")
	ErrHeaderTooLarge    = errors.New("header exceeds maximum size")
	ErrTooManyTensors    = errors.New("too many tensors in file")
	ErrInvalidTensorName = errors.New("invalid tensor name")
	ErrChecksumMismatch  = errors.New("checksum mismatch: file may be corrupted")
)
