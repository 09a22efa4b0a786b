package lenet

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/qlenet/internal/dataset"
	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/loader"
	"github.com/born-ml/qlenet/internal/parallel"
	"github.com/born-ml/qlenet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffers_Shapes(t *testing.T) {
	buf := NewBuffers()
	assert.Equal(t, tensor.Shape{1, 28, 28}, buf.Input.Shape())
	assert.Equal(t, tensor.Shape{20, 24, 24}, buf.Conv1.Shape())
	assert.Equal(t, tensor.Shape{20, 12, 12}, buf.Pool1.Shape())
	assert.Equal(t, tensor.Shape{40, 8, 8}, buf.Conv2.Shape())
	assert.Equal(t, tensor.Shape{40, 4, 4}, buf.Pool2.Shape())
	assert.Equal(t, FlatFeatures, buf.Pool2.NumElements())
	assert.Equal(t, tensor.Shape{400}, buf.FC1.Shape())
	assert.Equal(t, tensor.Shape{10}, buf.Logits.Shape())
	assert.Len(t, buf.Probs, 10)
}

func TestZeroNetwork_UniformOutput(t *testing.T) {
	net, err := New(ZeroWeights(fixed.Default()))
	require.NoError(t, err)

	buf := NewBuffers()
	logits, err := net.Forward(buf, tensor.Zeros(1, 28, 28))
	require.NoError(t, err)
	assert.Equal(t, make([]int16, NumClasses), logits.Data())

	p, err := net.Classify(buf, tensor.Zeros(1, 28, 28))
	require.NoError(t, err)
	for _, v := range p.Probabilities {
		assert.InDelta(t, 0.1, v, 1e-6)
	}
	assert.Equal(t, 0, p.Class) // first maximum wins
}

func TestNetwork_IdentityConv1(t *testing.T) {
	f := fixed.Default()
	w := ZeroWeights(f)
	// Filter 3 copies the input with a (2, 2) crop; every other filter is zero.
	k := w.Params[Conv1Weight]
	k.Set(f.One(), 3, 0, 2, 2)

	net, err := New(w)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	input := tensor.Zeros(1, 28, 28)
	for i := range input.Data() {
		input.Data()[i] = int16(rng.Intn(int(f.One()) + 1))
	}

	buf := NewBuffers()
	_, err = net.Forward(buf, input)
	require.NoError(t, err)

	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			require.Equal(t, input.At(0, y+2, x+2), buf.Conv1.At(3, y, x), "y=%d x=%d", y, x)
			require.Zero(t, buf.Conv1.At(0, y, x))
		}
	}
}

func TestNetwork_RejectsBadInput(t *testing.T) {
	net, err := New(ZeroWeights(fixed.Default()))
	require.NoError(t, err)
	buf := NewBuffers()

	_, err = net.Forward(buf, tensor.Zeros(1, 32, 32))
	var se *ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "input", se.Tensor)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = net.Classify(buf, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = net.ClassifyPixels(buf, make([]byte, 100))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestNetwork_RejectsIncompleteBuffers(t *testing.T) {
	net, err := New(ZeroWeights(fixed.Default()))
	require.NoError(t, err)
	input := tensor.Zeros(InputDims.Shape()...)
	pixels := make([]byte, ImagePixels)

	var se *ShapeError
	_, err = net.Forward(nil, input)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "buffers", se.Tensor)

	_, err = net.Classify(&Buffers{}, input)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "conv1", se.Tensor)

	buf := NewBuffers()
	buf.Pool2 = tensor.Zeros(40, 5, 5)
	_, err = net.Forward(buf, input)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "pool2", se.Tensor)
	assert.Equal(t, tensor.Shape{40, 5, 5}, se.Got)

	buf = NewBuffers()
	buf.Probs = nil
	_, err = net.Classify(buf, input)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	buf = NewBuffers()
	buf.Input = nil
	_, err = net.ClassifyPixels(buf, pixels)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "input", se.Tensor)

	// Input is supplied separately, so Forward does not need buf.Input.
	_, err = net.Forward(buf, input)
	assert.NoError(t, err)
}

func TestWeights_Validate(t *testing.T) {
	w := ZeroWeights(fixed.Default())
	require.NoError(t, w.Validate())

	delete(w.Params, FC1Bias)
	assert.ErrorIs(t, w.Validate(), ErrMissingTensor)

	w = ZeroWeights(fixed.Default())
	w.Params[FC1Weight] = tensor.Zeros(400, 10)
	var se *ShapeError
	require.ErrorAs(t, w.Validate(), &se)
	assert.Equal(t, FC1Weight, se.Tensor)

	w = ZeroWeights(fixed.Default())
	w.Params["fc3.weight"] = tensor.Zeros(1)
	assert.Error(t, w.Validate())

	_, err := New(w)
	assert.Error(t, err)
}

func TestQuantizeWeights_SaveLoad(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	f, err := fixed.New(10, fixed.Saturate)
	require.NoError(t, err)

	w, report, err := QuantizeWeights(f, randomFloatParams(rng, 0.5))
	require.NoError(t, err)
	require.Len(t, report.Layers, len(TensorNames))
	assert.Zero(t, report.Overflows())
	for _, s := range report.Layers {
		assert.LessOrEqual(t, s.MaxAbsError, float64(f.Resolution())/2+1e-7, s.Name)
	}

	path := filepath.Join(t.TempDir(), "lenet.safetensors")
	require.NoError(t, w.Save(path))

	got, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, f, got.Format)
	for _, name := range TensorNames {
		assert.True(t, w.Params[name].Equal(got.Params[name]), name)
	}
}

func TestQuantizeWeights_Errors(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	params := randomFloatParams(rng, 0.1)
	delete(params, Conv2Bias)
	_, _, err := QuantizeWeights(fixed.Default(), params)
	assert.ErrorIs(t, err, ErrMissingTensor)

	params = randomFloatParams(rng, 0.1)
	// Already output-major: rejected rather than silently misread.
	params[FC2Weight] = tensor.ZerosFloat32(NumClasses, HiddenUnits)
	_, _, err = QuantizeWeights(fixed.Default(), params)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLoadWeights_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadWeights(filepath.Join(dir, "absent.safetensors"))
	assert.Error(t, err)

	w := ZeroWeights(fixed.Default())
	bad := filepath.Join(dir, "bad-format.safetensors")
	require.NoError(t, loader.WriteInt16File(bad, w.Params, map[string]string{MetaFracBits: "20"}))
	_, err = LoadWeights(bad)
	assert.ErrorIs(t, err, ErrFormatMismatch)

	partial := filepath.Join(dir, "partial.safetensors")
	delete(w.Params, FC2Weight)
	require.NoError(t, loader.WriteInt16File(partial, w.Params, nil))
	_, err = LoadWeights(partial)
	assert.ErrorIs(t, err, ErrMissingTensor)

	extra := filepath.Join(dir, "extra.safetensors")
	w = ZeroWeights(fixed.Default())
	w.Params["fc3.weight"] = tensor.Zeros(2, 2)
	require.NoError(t, loader.WriteInt16File(extra, w.Params, nil))
	_, err = LoadWeights(extra)
	assert.ErrorContains(t, err, "fc3.weight")

	floats := filepath.Join(dir, "float.safetensors")
	require.NoError(t, loader.WriteFloat32File(floats, randomFloatParams(rand.New(rand.NewSource(9)), 0.1), loader.SafeTensorsF32, nil))
	_, err = LoadWeights(floats)
	assert.ErrorIs(t, err, loader.ErrUnsupportedDType)
}

func TestLoadWeights_NoMetadataDefaultsToQ8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.safetensors")
	require.NoError(t, loader.WriteInt16File(path, ZeroWeights(fixed.Default()).Params, nil))

	w, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, fixed.Default(), w.Format)
}

// The fixed pipeline must track a float64 channels-last reference. A wrong
// fc1 column order would pair activations with unrelated weights and blow
// far past the tolerance.
func TestNetwork_TracksFloatReference(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	params := randomFloatParams(rng, 0.1)

	w, _, err := QuantizeWeights(fixed.Default(), params)
	require.NoError(t, err)
	net, err := New(w)
	require.NoError(t, err)

	images := randomImages(rng, 5)
	buf := NewBuffers()
	for i := 0; i < images.Count; i++ {
		want := floatForward(params, images.Image(i))
		p, err := net.ClassifyPixels(buf, images.Image(i))
		require.NoError(t, err)

		for k := 0; k < NumClasses; k++ {
			got := float64(net.Format().Dequantize(p.Logits[k]))
			assert.InDelta(t, want[k], got, 0.1, "image %d logit %d", i, k)
		}
	}
}

func TestNetwork_ParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	w, _, err := QuantizeWeights(fixed.Default(), randomFloatParams(rng, 0.2))
	require.NoError(t, err)

	seq, err := New(w)
	require.NoError(t, err)
	par, err := NewParallel(w, parallel.DefaultConfig().WithWorkers(4))
	require.NoError(t, err)

	images := randomImages(rng, 4)
	b1, b2 := NewBuffers(), NewBuffers()
	for i := 0; i < images.Count; i++ {
		p1, err := seq.ClassifyPixels(b1, images.Image(i))
		require.NoError(t, err)
		p2, err := par.ClassifyPixels(b2, images.Image(i))
		require.NoError(t, err)
		assert.Equal(t, p1, p2)
	}
}

// Stateless between calls: reusing an arena gives the same answer as a fresh one.
func TestNetwork_ArenaReuse(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	w, _, err := QuantizeWeights(fixed.Default(), randomFloatParams(rng, 0.2))
	require.NoError(t, err)
	net, err := New(w)
	require.NoError(t, err)

	images := randomImages(rng, 3)
	shared := NewBuffers()
	for i := 0; i < images.Count; i++ {
		reused, err := net.ClassifyPixels(shared, images.Image(i))
		require.NoError(t, err)
		fresh, err := net.ClassifyPixels(NewBuffers(), images.Image(i))
		require.NoError(t, err)
		assert.Equal(t, fresh, reused)
	}
}

func TestEvaluate(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	w, _, err := QuantizeWeights(fixed.Default(), randomFloatParams(rng, 0.2))
	require.NoError(t, err)
	net, err := New(w)
	require.NoError(t, err)

	images := randomImages(rng, 24)
	labels := make([]byte, images.Count)
	buf := NewBuffers()
	for i := range labels {
		p, err := net.ClassifyPixels(buf, images.Image(i))
		require.NoError(t, err)
		labels[i] = byte(p.Class)
	}
	// Corrupt two labels so exactly two samples are wrong.
	labels[0] = (labels[0] + 1) % NumClasses
	labels[5] = (labels[5] + 3) % NumClasses

	for _, workers := range []int{1, 3, 8} {
		cfg := EvalConfig{Parallel: parallel.Config{Enabled: true, NumWorkers: workers, MinChunkSize: 1}}
		res, err := Evaluate(context.Background(), net, images, labels, cfg)
		require.NoError(t, err)

		assert.Equal(t, 24, res.Samples)
		assert.Equal(t, 22, res.Correct)
		assert.Equal(t, 2, res.Errors())
		assert.InDelta(t, 22.0/24.0, res.Accuracy(), 1e-12)

		total := 0
		for l := range res.Confusion {
			for _, n := range res.Confusion[l] {
				total += n
			}
		}
		assert.Equal(t, 24, total)
	}

	res, err := Evaluate(context.Background(), net, images, labels, EvalConfig{Samples: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Samples)
	assert.Len(t, res.Predictions, 4)
}

func TestEvaluate_Errors(t *testing.T) {
	net, err := New(ZeroWeights(fixed.Default()))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(8))
	images := randomImages(rng, 3)

	_, err = Evaluate(context.Background(), net, images, []byte{1, 2}, EvalConfig{})
	assert.Error(t, err)

	_, err = Evaluate(context.Background(), net, images, []byte{1, 2, 10}, EvalConfig{})
	assert.ErrorIs(t, err, ErrInvalidLabel)

	small := &dataset.Images{Count: 1, Rows: 8, Cols: 8, Pixels: make([]byte, 64)}
	_, err = Evaluate(context.Background(), net, small, []byte{0}, EvalConfig{})
	assert.ErrorIs(t, err, dataset.ErrImageSize)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Evaluate(ctx, net, images, []byte{1, 2, 3}, EvalConfig{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEvalResult_ClassAccuracy(t *testing.T) {
	var r EvalResult
	r.Confusion[2][2] = 3
	r.Confusion[2][7] = 1
	assert.InDelta(t, 0.75, r.ClassAccuracy(2), 1e-12)
	assert.Zero(t, r.ClassAccuracy(5))
	assert.Zero(t, r.Accuracy())
	assert.False(t, math.IsNaN(r.Accuracy()))
}

func TestNetwork_String(t *testing.T) {
	net, err := New(ZeroWeights(fixed.Default()))
	require.NoError(t, err)
	s := net.String()
	assert.Contains(t, s, "Q8 (wrap)")
	assert.Contains(t, s, "Conv2D(in_channels=20, out_channels=40, kernel_size=(5, 5))")
	assert.Contains(t, s, "Linear(in_features=640, out_features=400, relu=true)")
}

func TestLoadWeights_DetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w.safetensors")
	require.NoError(t, ZeroWeights(fixed.Default()).Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] = 0x7f
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = LoadWeights(path)
	assert.ErrorIs(t, err, loader.ErrChecksumMismatch)
}
