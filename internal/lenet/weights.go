package lenet

import (
	"fmt"
	"strconv"

	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/loader"
	"github.com/born-ml/qlenet/internal/quantize"
	"github.com/born-ml/qlenet/internal/tensor"
)

// Metadata keys written alongside fixed-point weights.
const (
	MetaFracBits = "frac_bits"
	MetaOverflow = "overflow"
	MetaFormat   = "format"
)

// Weights holds every fixed-point parameter of the network in output-major
// layout, together with the format they were quantized in. Weights are
// immutable once handed to New.
type Weights struct {
	Format fixed.Format
	Params map[string]*tensor.Tensor
}

// ZeroWeights returns all-zero weights of the right shapes.
func ZeroWeights(f fixed.Format) *Weights {
	w := &Weights{Format: f, Params: make(map[string]*tensor.Tensor, len(TensorNames))}
	for name, shape := range FixedShapes() {
		w.Params[name] = tensor.Zeros(shape...)
	}
	return w
}

// Validate checks the format and that every parameter is present with the
// expected shape. Unknown extra tensors are rejected too.
func (w *Weights) Validate() error {
	if err := w.Format.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	shapes := FixedShapes()
	for _, name := range TensorNames {
		t, ok := w.Params[name]
		if !ok || t == nil {
			return fmt.Errorf("weights: %w: %s", ErrMissingTensor, name)
		}
		if !t.Shape().Equal(shapes[name]) {
			return &ShapeError{Tensor: name, Expected: shapes[name], Got: t.Shape()}
		}
	}
	for name := range w.Params {
		if _, ok := shapes[name]; !ok {
			return fmt.Errorf("weights: unexpected tensor %q", name)
		}
	}
	return nil
}

// Metadata returns the header metadata describing w.Format.
func (w *Weights) Metadata() map[string]string {
	return map[string]string{
		MetaFracBits: strconv.Itoa(int(w.Format.FracBits)),
		MetaOverflow: w.Format.Overflow.String(),
		MetaFormat:   "qlenet-fixed",
	}
}

// Save writes w as an I16 SafeTensors file.
func (w *Weights) Save(path string) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if err := loader.WriteInt16File(path, w.Params, w.Metadata()); err != nil {
		return fmt.Errorf("save weights: %w", err)
	}
	return nil
}

// LoadWeights reads fixed-point weights written by Save. The data checksum is
// verified when present and every tensor must be I16. Missing or unexpected
// tensors are rejected by Validate. The format comes from the file's metadata; files
// without it are assumed to be Q8 wrapping.
func LoadWeights(path string) (*Weights, error) {
	r, err := loader.NewSafeTensorsReader(path)
	if err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}
	defer r.Close()

	if err := r.VerifyChecksum(); err != nil {
		return nil, fmt.Errorf("load weights %s: %w", path, err)
	}
	f, err := formatFromMetadata(r.Metadata())
	if err != nil {
		return nil, fmt.Errorf("load weights %s: %w", path, err)
	}

	params, err := r.LoadAllInt16()
	if err != nil {
		return nil, fmt.Errorf("load weights %s: %w", path, err)
	}
	w := &Weights{Format: f, Params: params}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("load weights %s: %w", path, err)
	}
	return w, nil
}

func formatFromMetadata(meta map[string]string) (fixed.Format, error) {
	f := fixed.Default()
	if s, ok := meta[MetaFracBits]; ok {
		bits, err := strconv.Atoi(s)
		if err != nil || bits < 0 {
			return fixed.Format{}, fmt.Errorf("%w: bad %s %q", ErrFormatMismatch, MetaFracBits, s)
		}
		f.FracBits = uint(bits)
	}
	if s, ok := meta[MetaOverflow]; ok {
		o, err := fixed.ParseOverflow(s)
		if err != nil {
			return fixed.Format{}, fmt.Errorf("%w: %w", ErrFormatMismatch, err)
		}
		f.Overflow = o
	}
	if err := f.Validate(); err != nil {
		return fixed.Format{}, fmt.Errorf("%w: %w", ErrFormatMismatch, err)
	}
	return f, nil
}

// QuantizeWeights converts float parameters in channels-last training layout
// (see FloatShapes) to fixed-point weights in format f. The returned report
// carries per-tensor quantization error and overflow counts.
func QuantizeWeights(f fixed.Format, params map[string]*tensor.Float32) (*Weights, *quantize.Report, error) {
	if err := f.Validate(); err != nil {
		return nil, nil, fmt.Errorf("quantize weights: %w", err)
	}
	shapes := FloatShapes()
	for _, name := range TensorNames {
		p, ok := params[name]
		if !ok || p == nil {
			return nil, nil, fmt.Errorf("quantize weights: %w: %s", ErrMissingTensor, name)
		}
		if !p.Shape.Equal(shapes[name]) {
			return nil, nil, &ShapeError{Tensor: name, Expected: shapes[name], Got: p.Shape}
		}
	}

	w := &Weights{Format: f, Params: make(map[string]*tensor.Tensor, len(TensorNames))}
	report := &quantize.Report{Format: f}
	for _, name := range TensorNames {
		var (
			q   *tensor.Tensor
			err error
		)
		src := params[name]
		switch name {
		case Conv1Weight, Conv2Weight:
			q, err = quantize.ConvKernel(f, src)
		case FC1Weight:
			q, err = quantize.FlattenedDense(f, src, Pool2Dims)
		case FC2Weight:
			q, err = quantize.Dense(f, src)
		default:
			q, err = quantize.Bias(f, src)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("quantize %s: %w", name, err)
		}
		w.Params[name] = q
		report.Add(quantize.Measure(name, f, src))
	}
	return w, report, nil
}
