package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// PGM is a decoded 8-bit binary (P5) greymap.
type PGM struct {
	Width, Height int
	Pixels        []byte
}

// ReadPGM reads a binary PGM file.
func ReadPGM(filename string) (*PGM, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := DecodePGM(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return img, nil
}

// ReadPGMSize reads a binary PGM file and checks its dimensions.
func ReadPGMSize(filename string, width, height int) (*PGM, error) {
	img, err := ReadPGM(filename)
	if err != nil {
		return nil, err
	}
	if img.Width != width || img.Height != height {
		return nil, fmt.Errorf("%s: %w: got %dx%d, want %dx%d",
			filename, ErrImageSize, img.Width, img.Height, width, height)
	}
	return img, nil
}

// ReadPGMSequence reads count numbered PGM files into one Images set.
// pattern is a fmt format with a single integer verb, for example
// "t10k-images-idx3-ubyte[%05d].pgm"; file i is fmt.Sprintf(pattern, i).
// Every file must be width x height.
func ReadPGMSequence(pattern string, count, width, height int) (*Images, error) {
	if count <= 0 {
		return nil, fmt.Errorf("pgm sequence: count must be positive, got %d", count)
	}
	if fmt.Sprintf(pattern, 0) == fmt.Sprintf(pattern, 1) || strings.Contains(fmt.Sprintf(pattern, 0), "%!") {
		return nil, fmt.Errorf("pgm sequence: pattern %q needs exactly one integer verb", pattern)
	}

	images := &Images{Count: count, Rows: height, Cols: width, Pixels: make([]byte, count*width*height)}
	for i := 0; i < count; i++ {
		img, err := ReadPGMSize(fmt.Sprintf(pattern, i), width, height)
		if err != nil {
			return nil, fmt.Errorf("pgm sequence sample %d: %w", i, err)
		}
		copy(images.Image(i), img.Pixels)
	}
	return images, nil
}

// DecodePGM decodes a P5 stream. Only 8-bit images (maxval <= 255) are
// accepted. Header comments ('#' to end of line) are skipped.
func DecodePGM(r io.Reader) (*PGM, error) {
	br := bufio.NewReader(r)

	magic, err := pgmToken(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != "P5" {
		return nil, fmt.Errorf("unsupported PGM magic %q (want P5)", magic)
	}

	var dims [3]int // width, height, maxval
	for i := range dims {
		tok, err := pgmToken(br)
		if err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid header field %q: %w", tok, err)
		}
		dims[i] = n
	}
	width, height, maxval := dims[0], dims[1], dims[2]
	if width <= 0 || height <= 0 || width > 4096 || height > 4096 {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageSize, width, height)
	}
	if maxval <= 0 || maxval > 255 {
		return nil, fmt.Errorf("unsupported maxval %d (want 1..255)", maxval)
	}

	// pgmToken consumed exactly one whitespace byte after maxval.
	img := &PGM{Width: width, Height: height, Pixels: make([]byte, width*height)}
	if _, err := io.ReadFull(br, img.Pixels); err != nil {
		return nil, fmt.Errorf("failed to read pixel data: %w", err)
	}
	return img, nil
}

// EncodePGM writes img as a P5 stream with maxval 255.
func EncodePGM(w io.Writer, img *PGM) error {
	if _, err := fmt.Fprintf(w, "P5\n%d %d\n255\n", img.Width, img.Height); err != nil {
		return err
	}
	_, err := w.Write(img.Pixels)
	return err
}

// pgmToken returns the next whitespace-delimited header token and consumes
// the single whitespace byte that terminates it.
func pgmToken(br *bufio.Reader) (string, error) {
	var tok []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && len(tok) > 0 {
				return string(tok), nil
			}
			return "", err
		}
		switch {
		case b == '#' && len(tok) == 0:
			if _, err := br.ReadString('\n'); err != nil {
				return "", err
			}
		case isSpace(b):
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}
