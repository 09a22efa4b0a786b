// Package dataset reads MNIST-style test data (IDX image and label files,
// binary PGM images) and normalizes 8-bit pixels into fixed-point tensors.
package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// IDX magic numbers.
const (
	imageMagic = 2051 // 0x00000803: ubyte, 3 dims
	labelMagic = 2049 // 0x00000801: ubyte, 1 dim
)

// maxIDXItems bounds header-declared counts so a corrupt header cannot
// trigger a huge allocation.
const maxIDXItems = 1 << 24

var (
	// ErrInvalidMagic is returned when an IDX header carries an unexpected magic number.
	ErrInvalidMagic = errors.New("invalid IDX magic number")
	// ErrImageSize is returned when an image does not have the expected dimensions.
	ErrImageSize = errors.New("unexpected image size")
)

// Images is a decoded IDX image file. Pixels holds Count images of
// Rows*Cols bytes, row-major, back to back.
type Images struct {
	Count, Rows, Cols int
	Pixels            []byte
}

// Image returns the pixels of image i (a view into Pixels).
func (im *Images) Image(i int) []byte {
	n := im.Rows * im.Cols
	return im.Pixels[i*n : (i+1)*n]
}

// ReadIDXImages reads an IDX image file.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes (28)
//	number of cols: 4 bytes (28)
//	pixel data: unsigned bytes (0-255)
func ReadIDXImages(filename string) (*Images, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	images, err := DecodeIDXImages(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return images, nil
}

// DecodeIDXImages decodes an IDX image stream.
func DecodeIDXImages(r io.Reader) (*Images, error) {
	if err := readMagic(r, imageMagic); err != nil {
		return nil, err
	}
	var header [3]uint32 // count, rows, cols
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	count, rows, cols := header[0], header[1], header[2]
	if count > maxIDXItems || rows == 0 || cols == 0 || rows > 4096 || cols > 4096 {
		return nil, fmt.Errorf("implausible image header: %d images of %dx%d", count, rows, cols)
	}

	images := &Images{
		Count:  int(count),
		Rows:   int(rows),
		Cols:   int(cols),
		Pixels: make([]byte, int(count)*int(rows)*int(cols)),
	}
	if _, err := io.ReadFull(r, images.Pixels); err != nil {
		return nil, fmt.Errorf("failed to read pixel data: %w", err)
	}
	return images, nil
}

// ReadIDXLabels reads an IDX label file.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes (0-9)
func ReadIDXLabels(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	labels, err := DecodeIDXLabels(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return labels, nil
}

// DecodeIDXLabels decodes an IDX label stream.
func DecodeIDXLabels(r io.Reader) ([]byte, error) {
	if err := readMagic(r, labelMagic); err != nil {
		return nil, err
	}
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if count > maxIDXItems {
		return nil, fmt.Errorf("implausible label count %d", count)
	}

	labels := make([]byte, count)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}

// readMagic reads the leading magic number and checks it before anything
// else in the header is consumed.
func readMagic(r io.Reader, want uint32) error {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return fmt.Errorf("failed to read magic number: %w", err)
	}
	if magic != want {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidMagic, magic, want)
	}
	return nil
}

// EncodeIDXImages writes images in IDX format.
func EncodeIDXImages(w io.Writer, images *Images) error {
	header := [4]uint32{imageMagic, uint32(images.Count), uint32(images.Rows), uint32(images.Cols)}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	_, err := w.Write(images.Pixels)
	return err
}

// EncodeIDXLabels writes labels in IDX format.
func EncodeIDXLabels(w io.Writer, labels []byte) error {
	header := [2]uint32{labelMagic, uint32(len(labels))}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	_, err := w.Write(labels)
	return err
}
