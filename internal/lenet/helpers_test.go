package lenet

import (
	"math"
	"math/rand"

	"github.com/born-ml/qlenet/internal/dataset"
	"github.com/born-ml/qlenet/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// randomFloatParams returns channels-last float parameters uniform in [-scale, scale].
func randomFloatParams(rng *rand.Rand, scale float32) map[string]*tensor.Float32 {
	params := make(map[string]*tensor.Float32)
	for name, shape := range FloatShapes() {
		p := tensor.ZerosFloat32(shape...)
		for i := range p.Data {
			p.Data[i] = (rng.Float32()*2 - 1) * scale
		}
		params[name] = p
	}
	return params
}

func randomImages(rng *rand.Rand, n int) *dataset.Images {
	images := &dataset.Images{Count: n, Rows: ImageSize, Cols: ImageSize, Pixels: make([]byte, n*ImagePixels)}
	rng.Read(images.Pixels)
	return images
}

// floatForward is an independent float64 rendition of the network operating
// on channels-last activations and the untransformed training layouts.
func floatForward(params map[string]*tensor.Float32, pixels []byte) []float64 {
	x := make([]float64, len(pixels)) // 28x28x1
	for i, p := range pixels {
		x[i] = float64(p) / 255
	}
	h, w, c := ImageSize, ImageSize, 1

	x, h, w, c = floatConv(x, h, w, c, params[Conv1Weight], params[Conv1Bias])
	x, h, w = floatPool(x, h, w, c)
	x, h, w, c = floatConv(x, h, w, c, params[Conv2Weight], params[Conv2Bias])
	x, _, _ = floatPool(x, h, w, c)

	hidden := floatDense(x, params[FC1Weight], params[FC1Bias], true)
	return floatDense(hidden, params[FC2Weight], params[FC2Bias], false)
}

func floatConv(in []float64, h, w, c int, kernel, bias *tensor.Float32) ([]float64, int, int, int) {
	k := tensor.HWIO{KH: kernel.Shape[0], KW: kernel.Shape[1], In: kernel.Shape[2], Out: kernel.Shape[3]}
	src := tensor.HWC{H: h, W: w, C: c}
	dst := tensor.HWC{H: h - k.KH + 1, W: w - k.KW + 1, C: k.Out}
	out := make([]float64, dst.Len())
	for y := 0; y < dst.H; y++ {
		for x := 0; x < dst.W; x++ {
			for o := 0; o < k.Out; o++ {
				acc := float64(bias.Data[o])
				for ky := 0; ky < k.KH; ky++ {
					for kx := 0; kx < k.KW; kx++ {
						for ci := 0; ci < c; ci++ {
							acc += in[src.Index(y+ky, x+kx, ci)] * float64(kernel.Data[k.Index(ky, kx, ci, o)])
						}
					}
				}
				out[dst.Index(y, x, o)] = math.Max(acc, 0)
			}
		}
	}
	return out, dst.H, dst.W, dst.C
}

func floatPool(in []float64, h, w, c int) ([]float64, int, int) {
	src := tensor.HWC{H: h, W: w, C: c}
	dst := tensor.HWC{H: h / 2, W: w / 2, C: c}
	out := make([]float64, dst.Len())
	for y := 0; y < dst.H; y++ {
		for x := 0; x < dst.W; x++ {
			for ci := 0; ci < c; ci++ {
				m := in[src.Index(2*y, 2*x, ci)]
				m = math.Max(m, in[src.Index(2*y, 2*x+1, ci)])
				m = math.Max(m, in[src.Index(2*y+1, 2*x, ci)])
				m = math.Max(m, in[src.Index(2*y+1, 2*x+1, ci)])
				out[dst.Index(y, x, ci)] = m
			}
		}
	}
	return out, dst.H, dst.W
}

func floatDense(in []float64, weight, bias *tensor.Float32, relu bool) []float64 {
	rows, cols := weight.Shape[0], weight.Shape[1]
	wd := make([]float64, len(weight.Data))
	for i, v := range weight.Data {
		wd[i] = float64(v)
	}
	var y mat.Dense
	y.Mul(mat.NewDense(1, rows, in), mat.NewDense(rows, cols, wd))

	out := make([]float64, cols)
	for k := range out {
		out[k] = y.At(0, k) + float64(bias.Data[k])
		if relu {
			out[k] = math.Max(out[k], 0)
		}
	}
	return out
}
