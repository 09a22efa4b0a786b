package loader

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/born-ml/qlenet/internal/tensor"
	"github.com/x448/float16"
)

// SafeTensorsWriter writes tensors in SafeTensors format.
type SafeTensorsWriter struct {
	file   *os.File
	closed bool
}

// entry is one encoded tensor waiting to be written.
type entry struct {
	dtype SafeTensorsDType
	shape []int
	data  []byte
}

// NewSafeTensorsWriter creates a new SafeTensors file writer.
func NewSafeTensorsWriter(path string) (*SafeTensorsWriter, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for weight saving
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &SafeTensorsWriter{
		file:   file,
		closed: false,
	}, nil
}

// WriteInt16File writes fixed-point tensors as I16 to path.
func WriteInt16File(path string, tensors map[string]*tensor.Tensor, metadata map[string]string) error {
	writer, err := NewSafeTensorsWriter(path)
	if err != nil {
		return err
	}
	if err := writer.WriteInt16(tensors, metadata); err != nil {
		_ = writer.Close() // Best effort close
		return err
	}
	return writer.Close()
}

// WriteFloat32File writes float tensors to path, encoded as dtype (F32 or F16).
func WriteFloat32File(path string, tensors map[string]*tensor.Float32, dtype SafeTensorsDType, metadata map[string]string) error {
	writer, err := NewSafeTensorsWriter(path)
	if err != nil {
		return err
	}
	if err := writer.WriteFloat32(tensors, dtype, metadata); err != nil {
		_ = writer.Close() // Best effort close
		return err
	}
	return writer.Close()
}

// WriteInt16 writes fixed-point tensors as I16.
func (w *SafeTensorsWriter) WriteInt16(tensors map[string]*tensor.Tensor, metadata map[string]string) error {
	entries := make(map[string]entry, len(tensors))
	for name, t := range tensors {
		data := make([]byte, 2*t.NumElements())
		for i, v := range t.Data() {
			binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
		}
		entries[name] = entry{dtype: SafeTensorsI16, shape: t.Shape(), data: data}
	}
	return w.write(entries, metadata)
}

// WriteFloat32 writes float tensors encoded as F32 or F16.
func (w *SafeTensorsWriter) WriteFloat32(tensors map[string]*tensor.Float32, dtype SafeTensorsDType, metadata map[string]string) error {
	entries := make(map[string]entry, len(tensors))
	for name, t := range tensors {
		var data []byte
		switch dtype {
		case SafeTensorsF32:
			data = make([]byte, 4*len(t.Data))
			for i, v := range t.Data {
				binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
			}
		case SafeTensorsF16:
			data = make([]byte, 2*len(t.Data))
			for i, v := range t.Data {
				binary.LittleEndian.PutUint16(data[2*i:], float16.Fromfloat32(v).Bits())
			}
		default:
			return fmt.Errorf("%w %s for float tensor %s", ErrUnsupportedDType, dtype, name)
		}
		entries[name] = entry{dtype: dtype, shape: t.Shape, data: data}
	}
	return w.write(entries, metadata)
}

// write lays out the header and data. Tensors are written in alphabetical
// order by name.
func (w *SafeTensorsWriter) write(entries map[string]entry, metadata map[string]string) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	// The checksum covers the data section, which is the concatenation of
	// the tensors in name order.
	h := sha256.New()
	for _, name := range names {
		h.Write(entries[name].data)
	}
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[MetaChecksum] = hex.EncodeToString(h.Sum(nil))

	header := map[string]interface{}{"__metadata__": meta}

	var currentOffset int64
	for _, name := range names {
		e := entries[name]
		size := int64(len(e.data))
		header[name] = SafeTensorInfo{
			DType:       e.dtype,
			Shape:       e.shape,
			DataOffsets: [2]int64{currentOffset, currentOffset + size},
		}
		currentOffset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	// Write header size (8 bytes, little-endian uint64)
	if err := binary.Write(w.file, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, name := range names {
		if _, err := w.file.Write(entries[name].data); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the writer and the underlying file.
func (w *SafeTensorsWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
