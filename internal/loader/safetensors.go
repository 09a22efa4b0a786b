package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/qlenet/internal/tensor"
	"github.com/x448/float16"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

// maxHeaderSize bounds the JSON header (100MB).
const maxHeaderSize = 100 * 1024 * 1024

// SafeTensorsDType represents supported SafeTensors data types.
type SafeTensorsDType string

// Supported SafeTensors dtypes.
const (
	SafeTensorsF16  SafeTensorsDType = "F16"
	SafeTensorsBF16 SafeTensorsDType = "BF16"
	SafeTensorsF32  SafeTensorsDType = "F32"
	SafeTensorsF64  SafeTensorsDType = "F64"
	SafeTensorsI16  SafeTensorsDType = "I16"
)

// Size returns the element size in bytes, or 0 for an unknown dtype.
func (d SafeTensorsDType) Size() int {
	switch d {
	case SafeTensorsF16, SafeTensorsBF16, SafeTensorsI16:
		return 2
	case SafeTensorsF32:
		return 4
	case SafeTensorsF64:
		return 8
	default:
		return 0
	}
}

// SafeTensorInfo describes a tensor in SafeTensors format.
type SafeTensorInfo struct {
	DType       SafeTensorsDType `json:"dtype"`
	Shape       []int            `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"` // [start, end]
}

// SafeTensorsHeader is the JSON header in SafeTensors format.
type SafeTensorsHeader struct {
	Metadata map[string]string         `json:"__metadata__"`
	Tensors  map[string]SafeTensorInfo `json:"-"`
}

// UnmarshalJSON implements custom JSON unmarshaling for SafeTensorsHeader.
func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	// First parse as generic map
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	// Extract metadata
	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	// Extract tensors (everything except __metadata__)
	h.Tensors = make(map[string]SafeTensorInfo)
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info SafeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}

	return nil
}

// SafeTensorsReader reads SafeTensors format files.
type SafeTensorsReader struct {
	file       *os.File
	header     SafeTensorsHeader
	dataOffset int64 // Offset where tensor data starts
	dataSize   int64 // Length of the tensor data section
}

// NewSafeTensorsReader opens path and parses its header.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for weight loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	// Read header size (8 bytes, little-endian uint64)
	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}

	if headerSize > maxHeaderSize {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header SafeTensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	dataOffset := int64(8 + headerSize) //nolint:gosec // G115: bounded by maxHeaderSize.
	dataSize := stat.Size() - dataOffset

	if err := validateHeader(&header, dataSize); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	return &SafeTensorsReader{
		file:       file,
		header:     header,
		dataOffset: dataOffset,
		dataSize:   dataSize,
	}, nil
}

// Close closes the SafeTensors file.
func (r *SafeTensorsReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the metadata map from the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in the file, sorted.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TensorInfo returns information about a specific tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (*SafeTensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return &info, nil
}

// ReadTensorData reads raw tensor bytes for a given tensor name, checking that
// the byte range matches the declared dtype and shape.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	size := info.DataOffsets[1] - info.DataOffsets[0]
	if info.DataOffsets[0] < 0 || size < 0 {
		return nil, fmt.Errorf("%w for tensor %s: [%d, %d]",
			ErrInvalidOffsets, name, info.DataOffsets[0], info.DataOffsets[1])
	}
	if elem := info.DType.Size(); elem == 0 {
		return nil, fmt.Errorf("%w %s for tensor %s", ErrUnsupportedDType, info.DType, name)
	} else if want := int64(tensor.Shape(info.Shape).NumElements() * elem); size != want {
		return nil, fmt.Errorf("%w for tensor %s: %d bytes, shape %v needs %d",
			ErrInvalidOffsets, name, size, info.Shape, want)
	}

	if _, err := r.file.Seek(r.dataOffset+info.DataOffsets[0], io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r.file, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	return data, nil
}

// LoadFloat32 loads a floating-point tensor, decoding F16, BF16 and F64 to float32.
func (r *SafeTensorsReader) LoadFloat32(name string) (*tensor.Float32, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	n := len(data) / info.DType.Size()
	out := make([]float32, n)
	switch info.DType {
	case SafeTensorsF32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
	case SafeTensorsF64:
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:])))
		}
	case SafeTensorsF16:
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
		}
	case SafeTensorsBF16:
		// bfloat16 is the high half of an IEEE float32.
		for i := range out {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(data[2*i:])) << 16)
		}
	default:
		return nil, fmt.Errorf("%w %s for float tensor %s", ErrUnsupportedDType, info.DType, name)
	}

	t, err := tensor.NewFloat32(tensor.Shape(info.Shape), out)
	if err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}
	return t, nil
}

// LoadInt16 loads an I16 fixed-point tensor.
func (r *SafeTensorsReader) LoadInt16(name string) (*tensor.Tensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	if info.DType != SafeTensorsI16 {
		return nil, fmt.Errorf("%w %s for fixed-point tensor %s (want I16)", ErrUnsupportedDType, info.DType, name)
	}
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}

	t, err := tensor.FromData(tensor.Shape(info.Shape), out)
	if err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}
	return t, nil
}

// LoadAllInt16 loads every tensor of the file as I16.
func (r *SafeTensorsReader) LoadAllInt16() (map[string]*tensor.Tensor, error) {
	out := make(map[string]*tensor.Tensor, len(r.header.Tensors))
	for _, name := range r.TensorNames() {
		t, err := r.LoadInt16(name)
		if err != nil {
			return nil, err
		}
		out[name] = t
	}
	return out, nil
}

// LoadAllFloat32 loads every tensor of the file as float32.
func (r *SafeTensorsReader) LoadAllFloat32() (map[string]*tensor.Float32, error) {
	out := make(map[string]*tensor.Float32, len(r.header.Tensors))
	for _, name := range r.TensorNames() {
		t, err := r.LoadFloat32(name)
		if err != nil {
			return nil, err
		}
		out[name] = t
	}
	return out, nil
}
