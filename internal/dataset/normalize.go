package dataset

import (
	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/tensor"
)

// Normalize maps 8-bit pixels to a 1 x rows x cols fixed-point tensor.
// Panics if len(pixels) != rows*cols.
func Normalize(pixels []byte, rows, cols int, f fixed.Format) *tensor.Tensor {
	out := tensor.Zeros(1, rows, cols)
	NormalizeInto(out.Data(), pixels, f)
	return out
}

// NormalizeInto writes (p << F) / 255 for every pixel p into dst, with
// truncating division, so 255 maps exactly to 1.0 and 0 to 0.
// Panics if the lengths differ.
func NormalizeInto(dst []int16, pixels []byte, f fixed.Format) {
	if len(dst) != len(pixels) {
		panic("normalize: destination and pixel lengths differ")
	}
	for i, p := range pixels {
		dst[i] = int16((int32(p) << f.FracBits) / 255)
	}
}
