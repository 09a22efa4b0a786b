package quantize

import (
	"fmt"
	"io"
	"math"

	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/tensor"
	"gonum.org/v1/gonum/floats"
)

// LayerStats describes the quantization error of one parameter tensor.
type LayerStats struct {
	Name         string
	Elements     int
	Min, Max     float64 // Range of the float values.
	MaxAbsError  float64 // Largest |dequantize(quantize(r)) - r|.
	MeanAbsError float64
	Overflows    int // Values outside the representable range.
}

// Report collects per-tensor quantization statistics.
type Report struct {
	Format fixed.Format
	Layers []LayerStats
}

// Measure computes the quantization error of src under f. Errors are taken
// element-wise against the dequantized encoding, so layout does not matter.
func Measure(name string, f fixed.Format, src *tensor.Float32) LayerStats {
	s := LayerStats{Name: name, Elements: len(src.Data)}
	if len(src.Data) == 0 {
		return s
	}

	values := make([]float64, len(src.Data))
	errs := make([]float64, len(src.Data))
	for i, r := range src.Data {
		values[i] = float64(r)
		errs[i] = math.Abs(float64(f.Dequantize(f.Quantize(r))) - float64(r))
		if f.Overflows(r) {
			s.Overflows++
		}
	}

	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	s.MaxAbsError = floats.Max(errs)
	s.MeanAbsError = floats.Sum(errs) / float64(len(errs))
	return s
}

// Add appends the stats of one tensor.
func (r *Report) Add(s LayerStats) {
	r.Layers = append(r.Layers, s)
}

// Overflows returns the total number of out-of-range values.
func (r *Report) Overflows() int {
	n := 0
	for _, s := range r.Layers {
		n += s.Overflows
	}
	return n
}

// WriteTo prints a human-readable table.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var total int64
	n, err := fmt.Fprintf(w, "format %s, resolution %g\n", r.Format, r.Format.Resolution())
	total += int64(n)
	if err != nil {
		return total, err
	}
	n, err = fmt.Fprintf(w, "%-14s %8s %10s %10s %12s %12s %9s\n",
		"tensor", "elements", "min", "max", "max|err|", "mean|err|", "overflow")
	total += int64(n)
	if err != nil {
		return total, err
	}
	for _, s := range r.Layers {
		n, err = fmt.Fprintf(w, "%-14s %8d %10.4f %10.4f %12.3e %12.3e %9d\n",
			s.Name, s.Elements, s.Min, s.Max, s.MaxAbsError, s.MeanAbsError, s.Overflows)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
