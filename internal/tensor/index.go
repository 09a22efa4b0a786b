package tensor

// CHW describes a channel-major feature map: C planes of H rows of W columns.
// Element (c, y, x) lives at (c*H+y)*W + x. Flattening a CHW map for a dense
// layer uses this same order.
type CHW struct {
	C, H, W int
}

// Index returns the flat offset of (c, y, x).
func (d CHW) Index(c, y, x int) int {
	return (c*d.H+y)*d.W + x
}

// Len returns C*H*W.
func (d CHW) Len() int {
	return d.C * d.H * d.W
}

// Shape returns the dims as a Shape.
func (d CHW) Shape() Shape {
	return Shape{d.C, d.H, d.W}
}

// HWC describes a channel-last map as produced by channels-last training
// frameworks. Element (y, x, c) lives at (y*W+x)*C + c.
type HWC struct {
	H, W, C int
}

// Index returns the flat offset of (y, x, c).
func (d HWC) Index(y, x, c int) int {
	return (y*d.W+x)*d.C + c
}

// Len returns H*W*C.
func (d HWC) Len() int {
	return d.H * d.W * d.C
}

// OIHW describes a convolution kernel bank laid out output-channel major:
// Out filters of In planes of KH x KW taps.
type OIHW struct {
	Out, In, KH, KW int
}

// Index returns the flat offset of tap (ky, kx) of input plane c in filter k.
func (d OIHW) Index(k, c, ky, kx int) int {
	return ((k*d.In+c)*d.KH+ky)*d.KW + kx
}

// Len returns Out*In*KH*KW.
func (d OIHW) Len() int {
	return d.Out * d.In * d.KH * d.KW
}

// Shape returns the dims as a Shape.
func (d OIHW) Shape() Shape {
	return Shape{d.Out, d.In, d.KH, d.KW}
}

// HWIO describes a convolution kernel bank laid out spatial-first, the native
// layout of channels-last training frameworks.
type HWIO struct {
	KH, KW, In, Out int
}

// Index returns the flat offset of tap (ky, kx), input plane c, filter k.
func (d HWIO) Index(ky, kx, c, k int) int {
	return ((ky*d.KW+kx)*d.In+c)*d.Out + k
}

// Len returns KH*KW*In*Out.
func (d HWIO) Len() int {
	return d.KH * d.KW * d.In * d.Out
}

// Shape returns the dims as a Shape.
func (d HWIO) Shape() Shape {
	return Shape{d.KH, d.KW, d.In, d.Out}
}
