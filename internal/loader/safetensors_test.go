package loader

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/qlenet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestSafeTensorsFile writes a minimal F32/F64/BF16 file by hand, the
// way a training framework export would look.
func createTestSafeTensorsFile(t *testing.T, path string) {
	t.Helper()

	tensors := map[string]SafeTensorInfo{
		"weight": {
			DType:       SafeTensorsF32,
			Shape:       []int{2, 3},
			DataOffsets: [2]int64{0, 24}, // 2*3*4 = 24 bytes
		},
		"bias": {
			DType:       SafeTensorsF64,
			Shape:       []int{3},
			DataOffsets: [2]int64{24, 48}, // 3*8 = 24 bytes
		},
		"scale": {
			DType:       SafeTensorsBF16,
			Shape:       []int{2},
			DataOffsets: [2]int64{48, 52},
		},
	}

	headerMap := make(map[string]interface{})
	headerMap["__metadata__"] = map[string]string{"format": "keras"}
	for name, info := range tensors {
		headerMap[name] = info
	}

	headerJSON, err := json.Marshal(headerMap)
	require.NoError(t, err)

	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, binary.Write(file, binary.LittleEndian, uint64(len(headerJSON))))
	_, err = file.Write(headerJSON)
	require.NoError(t, err)

	// weight: [2, 3] = [[1, 2, 3], [4, 5, 6]]
	for _, v := range []float32{1, 2, 3, 4, 5, 6} {
		require.NoError(t, binary.Write(file, binary.LittleEndian, v))
	}
	// bias: [3] = [0.1, 0.2, 0.3]
	for _, v := range []float64{0.1, 0.2, 0.3} {
		require.NoError(t, binary.Write(file, binary.LittleEndian, v))
	}
	// scale: [2] = [1.5, -2] as bfloat16
	for _, v := range []float32{1.5, -2} {
		require.NoError(t, binary.Write(file, binary.LittleEndian, uint16(math.Float32bits(v)>>16)))
	}
}

func TestNewSafeTensorsReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, path)

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "keras", reader.Metadata()["format"])
	assert.Equal(t, []string{"bias", "scale", "weight"}, reader.TensorNames())

	info, err := reader.TensorInfo("weight")
	require.NoError(t, err)
	assert.Equal(t, SafeTensorsF32, info.DType)
	assert.Equal(t, []int{2, 3}, info.Shape)

	_, err = reader.TensorInfo("missing")
	assert.True(t, errors.Is(err, ErrTensorNotFound))
}

func TestSafeTensorsReader_LoadFloat32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, path)

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	w, err := reader.LoadFloat32("weight")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, w.Shape)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, w.Data)

	b, err := reader.LoadFloat32("bias")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, b.Data, 1e-7)

	s, err := reader.LoadFloat32("scale")
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2}, s.Data)

	all, err := reader.LoadAllFloat32()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Float tensors are not fixed-point.
	_, err = reader.LoadInt16("weight")
	assert.True(t, errors.Is(err, ErrUnsupportedDType))
}

func TestSafeTensors_Int16RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixed.safetensors")

	w, err := tensor.FromData(tensor.Shape{2, 2}, []int16{-32768, -1, 256, 32767})
	require.NoError(t, err)
	b, err := tensor.FromData(tensor.Shape{2}, []int16{7, -7})
	require.NoError(t, err)

	meta := map[string]string{"frac_bits": "8"}
	require.NoError(t, WriteInt16File(path, map[string]*tensor.Tensor{"fc.weight": w, "fc.bias": b}, meta))

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "8", reader.Metadata()["frac_bits"])

	all, err := reader.LoadAllInt16()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all["fc.weight"].Equal(w))
	assert.True(t, all["fc.bias"].Equal(b))

	_, err = reader.LoadFloat32("fc.weight")
	assert.True(t, errors.Is(err, ErrUnsupportedDType))
}

func TestSafeTensors_Float16RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "half.safetensors")

	src, err := tensor.NewFloat32(tensor.Shape{4}, []float32{0.5, -0.25, 1024, 0.0999755859375})
	require.NoError(t, err)
	require.NoError(t, WriteFloat32File(path, map[string]*tensor.Float32{"x": src}, SafeTensorsF16, nil))

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	info, err := reader.TensorInfo("x")
	require.NoError(t, err)
	assert.Equal(t, SafeTensorsF16, info.DType)

	got, err := reader.LoadFloat32("x")
	require.NoError(t, err)
	// All inputs are exactly representable in binary16.
	assert.Equal(t, src.Data, got.Data)
}

func TestSafeTensorsReader_BadFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := NewSafeTensorsReader(filepath.Join(dir, "absent.safetensors"))
	require.Error(t, err)

	// Header size far beyond the limit.
	huge := filepath.Join(dir, "huge.safetensors")
	f, err := os.Create(huge)
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint64(1<<40)))
	require.NoError(t, f.Close())
	_, err = NewSafeTensorsReader(huge)
	assert.True(t, errors.Is(err, ErrHeaderTooLarge))

	// Offsets that disagree with the declared shape.
	bad := filepath.Join(dir, "bad.safetensors")
	header, err := json.Marshal(map[string]SafeTensorInfo{
		"x": {DType: SafeTensorsF32, Shape: []int{4}, DataOffsets: [2]int64{0, 8}},
	})
	require.NoError(t, err)
	f, err = os.Create(bad)
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint64(len(header))))
	_, err = f.Write(header)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 8))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reader, err := NewSafeTensorsReader(bad)
	require.NoError(t, err)
	defer reader.Close()
	_, err = reader.LoadFloat32("x")
	assert.True(t, errors.Is(err, ErrInvalidOffsets))
}

func TestSafeTensorsWriter_Closed(t *testing.T) {
	w, err := NewSafeTensorsWriter(filepath.Join(t.TempDir(), "x.safetensors"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.Error(t, w.WriteInt16(map[string]*tensor.Tensor{}, nil))

	_, err = NewSafeTensorsWriter(filepath.Join(t.TempDir(), "missing-dir", "x.safetensors"))
	require.Error(t, err)
}
