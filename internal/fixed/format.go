// Package fixed defines the signed 16-bit fixed-point format shared by every
// tensor, weight and bias in the inference pipeline.
//
// A real value r is stored as round(r * 2^F) in an int16, where F is the
// number of fractional bits. Products of two fixed values are accumulated in
// int32 at scale 2^(2F) and brought back to scale 2^F by a single arithmetic
// right shift (Rescale) once the whole reduction is done.
package fixed

import (
	"fmt"
	"math"
	"strings"
)

// DefaultFracBits is the reference Q8 format: 8 fractional bits, range [-128, 128).
const DefaultFracBits = 8

// MaxFracBits is the largest fractional-bit count for which 1.0 is still representable.
const MaxFracBits = 14

// Overflow selects what happens when a value leaves the int16 range on narrowing.
type Overflow int

const (
	// Wrap keeps the low 16 bits (two's complement), bit-exact with the
	// reference integer pipeline.
	Wrap Overflow = iota
	// Saturate clamps to [math.MinInt16, math.MaxInt16].
	Saturate
)

// String returns the flag spelling of the policy.
func (o Overflow) String() string {
	switch o {
	case Wrap:
		return "wrap"
	case Saturate:
		return "saturate"
	default:
		return "unknown"
	}
}

// ParseOverflow parses "wrap" or "saturate".
func ParseOverflow(s string) (Overflow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wrap", "":
		return Wrap, nil
	case "saturate", "sat":
		return Saturate, nil
	default:
		return Wrap, fmt.Errorf("unknown overflow policy %q (want wrap or saturate)", s)
	}
}

// Format is the fixed-point parameterization threaded through every operator.
// The zero value is Q0 with wrapping, so callers normally start from Default.
type Format struct {
	FracBits uint     // Number of fractional bits (F).
	Overflow Overflow // Narrowing policy.
}

// Default returns the reference Q8 wrapping format.
func Default() Format {
	return Format{FracBits: DefaultFracBits, Overflow: Wrap}
}

// New returns a validated format.
func New(fracBits uint, overflow Overflow) (Format, error) {
	f := Format{FracBits: fracBits, Overflow: overflow}
	if err := f.Validate(); err != nil {
		return Format{}, err
	}
	return f, nil
}

// Validate checks that the format can represent 1.0 and has a known policy.
func (f Format) Validate() error {
	if f.FracBits > MaxFracBits {
		return fmt.Errorf("fractional bits %d out of range [0, %d]", f.FracBits, MaxFracBits)
	}
	if f.Overflow != Wrap && f.Overflow != Saturate {
		return fmt.Errorf("invalid overflow policy %d", f.Overflow)
	}
	return nil
}

// String renders the format as "Q<F> (<policy>)".
func (f Format) String() string {
	return fmt.Sprintf("Q%d (%s)", f.FracBits, f.Overflow)
}

// Scale returns 2^F.
func (f Format) Scale() float64 {
	return float64(int64(1) << f.FracBits)
}

// One returns the fixed-point encoding of 1.0.
func (f Format) One() int16 {
	return int16(1 << f.FracBits)
}

// Resolution returns the smallest representable increment 2^-F.
func (f Format) Resolution() float32 {
	return float32(1 / f.Scale())
}

// Range returns the smallest and largest representable real values.
func (f Format) Range() (lo, hi float32) {
	s := f.Scale()
	return float32(math.MinInt16 / s), float32(math.MaxInt16 / s)
}

// Quantize encodes r as round(r * 2^F) narrowed to int16 under the format's
// overflow policy. NaN encodes as zero. Under Wrap, magnitudes beyond the
// int32 range are clamped to it before the low 16 bits are kept.
func (f Format) Quantize(r float32) int16 {
	v := math.Round(float64(r) * f.Scale())
	if math.IsNaN(v) {
		return 0
	}
	if f.Overflow == Saturate {
		return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, v)))
	}
	v = math.Max(math.MinInt32, math.Min(math.MaxInt32, v))
	return int16(int32(v))
}

// Dequantize decodes q to q / 2^F.
func (f Format) Dequantize(q int16) float32 {
	return float32(float64(q) / f.Scale())
}

// Promote lifts a value at scale 2^F to the accumulator scale 2^(2F).
func (f Format) Promote(q int16) int32 {
	return int32(q) << f.FracBits
}

// Rescale brings an accumulator at scale 2^(2F) back to scale 2^F with an
// arithmetic right shift (rounds toward negative infinity).
func (f Format) Rescale(acc int32) int32 {
	return acc >> f.FracBits
}

// Narrow converts a rescaled accumulator to int16 under the overflow policy.
func (f Format) Narrow(v int32) int16 {
	if f.Overflow == Saturate {
		switch {
		case v > math.MaxInt16:
			return math.MaxInt16
		case v < math.MinInt16:
			return math.MinInt16
		}
	}
	return int16(v)
}

// QuantizeSlice encodes src into dst element-wise. dst must be at least len(src).
func (f Format) QuantizeSlice(dst []int16, src []float32) {
	for i, r := range src {
		dst[i] = f.Quantize(r)
	}
}

// DequantizeSlice decodes src into dst element-wise. dst must be at least len(src).
func (f Format) DequantizeSlice(dst []float32, src []int16) {
	for i, q := range src {
		dst[i] = f.Dequantize(q)
	}
}

// Overflows reports whether r lies outside the representable range, i.e.
// whether Quantize(r) wraps or saturates.
func (f Format) Overflows(r float32) bool {
	v := math.Round(float64(r) * f.Scale())
	return v > math.MaxInt16 || v < math.MinInt16
}
