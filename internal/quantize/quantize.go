// Package quantize converts float layer parameters exported by a channels-last
// training framework into the fixed-point, output-channel-major layouts the
// inference kernels consume.
//
// Layout contracts:
//
//	conv kernel   [KH, KW, In, Out]  ->  [Out, In, KH, KW]
//	dense kernel  [In, Out]          ->  [Out, In]
//	flatten dense [H*W*C, Out]       ->  [Out, C*H*W]   (row (y*W+x)*C+c feeds column (c*H+y)*W+x)
//	bias          [N]                ->  [N]
//
// The flatten case exists because the training graph flattens its last
// feature map in (height, width, channel) order, while the fixed pipeline
// flattens channel-major. Reordering the weight columns once here keeps the
// dense kernel a plain dot product.
package quantize

import (
	"fmt"

	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// ConvKernel quantizes a [KH, KW, In, Out] kernel into [Out, In, KH, KW].
func ConvKernel(f fixed.Format, w *tensor.Float32) (*tensor.Tensor, error) {
	if len(w.Shape) != 4 {
		return nil, fmt.Errorf("conv kernel: expected 4D [KH,KW,In,Out], got shape %v", w.Shape)
	}
	src := tensor.HWIO{KH: w.Shape[0], KW: w.Shape[1], In: w.Shape[2], Out: w.Shape[3]}
	dst := tensor.OIHW{Out: src.Out, In: src.In, KH: src.KH, KW: src.KW}

	out := tensor.Zeros(dst.Out, dst.In, dst.KH, dst.KW)
	data := out.Data()
	for k := 0; k < dst.Out; k++ {
		for c := 0; c < dst.In; c++ {
			for y := 0; y < dst.KH; y++ {
				for x := 0; x < dst.KW; x++ {
					data[dst.Index(k, c, y, x)] = f.Quantize(w.Data[src.Index(y, x, c, k)])
				}
			}
		}
	}
	return out, nil
}

// Dense quantizes an input-major [In, Out] kernel into [Out, In].
func Dense(f fixed.Format, w *tensor.Float32) (*tensor.Tensor, error) {
	if len(w.Shape) != 2 {
		return nil, fmt.Errorf("dense kernel: expected 2D [In,Out], got shape %v", w.Shape)
	}
	transposed := transpose(w)
	out := tensor.Zeros(w.Shape[1], w.Shape[0])
	data := out.Data()
	for i, v := range transposed.RawMatrix().Data {
		data[i] = f.Quantize(float32(v))
	}
	return out, nil
}

// FlattenedDense quantizes a dense kernel whose input rows follow the
// (height, width, channel) flatten of an in-shaped feature map, producing
// [Out, C*H*W] columns in channel-major order.
func FlattenedDense(f fixed.Format, w *tensor.Float32, in tensor.CHW) (*tensor.Tensor, error) {
	if len(w.Shape) != 2 {
		return nil, fmt.Errorf("dense kernel: expected 2D [In,Out], got shape %v", w.Shape)
	}
	if w.Shape[0] != in.Len() {
		return nil, fmt.Errorf("dense kernel: %d input rows, feature map %dx%dx%d has %d elements",
			w.Shape[0], in.C, in.H, in.W, in.Len())
	}
	hwc := tensor.HWC{H: in.H, W: in.W, C: in.C}
	transposed := transpose(w) // [Out, H*W*C]

	outUnits := w.Shape[1]
	out := tensor.Zeros(outUnits, in.Len())
	data := out.Data()
	for k := 0; k < outUnits; k++ {
		row := data[k*in.Len() : (k+1)*in.Len()]
		for c := 0; c < in.C; c++ {
			for y := 0; y < in.H; y++ {
				for x := 0; x < in.W; x++ {
					row[in.Index(c, y, x)] = f.Quantize(float32(transposed.At(k, hwc.Index(y, x, c))))
				}
			}
		}
	}
	return out, nil
}

// Bias quantizes a 1D bias vector.
func Bias(f fixed.Format, b *tensor.Float32) (*tensor.Tensor, error) {
	if len(b.Shape) != 1 {
		return nil, fmt.Errorf("bias: expected 1D, got shape %v", b.Shape)
	}
	out := tensor.Zeros(b.Shape[0])
	f.QuantizeSlice(out.Data(), b.Data)
	return out, nil
}

// transpose returns w^T as a dense [Out, In] matrix.
func transpose(w *tensor.Float32) *mat.Dense {
	rows, cols := w.Shape[0], w.Shape[1]
	data := make([]float64, len(w.Data))
	for i, v := range w.Data {
		data[i] = float64(v)
	}
	return mat.DenseCopyOf(mat.NewDense(rows, cols, data).T())
}
