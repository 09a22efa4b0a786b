package cpu

import (
	"math/rand"
	"testing"

	"github.com/born-ml/qlenet/internal/tensor"
)

// TestMaxPool2D_ForwardValues tests forward pass with known values.
func TestMaxPool2D_ForwardValues(t *testing.T) {
	backend := newTestBackend()

	// Input: [1, 4, 4] with sequential values 1-16
	input := tensor.Zeros(1, 4, 4)
	for i := range input.Data() {
		input.Data()[i] = int16(i + 1)
	}

	output := backend.MaxPool2D(input, 2, 2)

	// [[1,2,3,4],      -> [[6,8],
	//  [5,6,7,8],         [14,16]]
	//  [9,10,11,12],
	//  [13,14,15,16]]
	expected := []int16{6, 8, 14, 16}
	for i, exp := range expected {
		if output.Data()[i] != exp {
			t.Errorf("Output[%d]: expected %d, got %d", i, exp, output.Data()[i])
		}
	}
}

// TestMaxPool2D_AllNegative checks that the max seed comes from the window,
// not from an implicit zero.
func TestMaxPool2D_AllNegative(t *testing.T) {
	backend := newTestBackend()

	input := tensor.Zeros(1, 2, 2)
	copy(input.Data(), []int16{-9, -3, -7, -32768})

	output := backend.MaxPool2D(input, 2, 2)
	if got := output.At(0, 0, 0); got != -3 {
		t.Errorf("Expected -3, got %d", got)
	}
}

// TestMaxPool2D_BruteForce compares against a window scan on random tensors.
func TestMaxPool2D_BruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	backend := newTestBackend()

	for _, dims := range [][3]int{{20, 24, 24}, {40, 8, 8}, {3, 6, 10}} {
		input := randomTensor(rng, 32767, dims[0], dims[1], dims[2])
		output := backend.MaxPool2D(input, 2, 2)

		expectedShape := tensor.Shape{dims[0], dims[1] / 2, dims[2] / 2}
		if !output.Shape().Equal(expectedShape) {
			t.Fatalf("Expected shape %v, got %v", expectedShape, output.Shape())
		}

		o := output.CHW()
		for c := 0; c < o.C; c++ {
			for y := 0; y < o.H; y++ {
				for x := 0; x < o.W; x++ {
					want := input.At(c, 2*y, 2*x)
					for _, v := range []int16{
						input.At(c, 2*y, 2*x+1),
						input.At(c, 2*y+1, 2*x),
						input.At(c, 2*y+1, 2*x+1),
					} {
						if v > want {
							want = v
						}
					}
					if got := output.At(c, y, x); got != want {
						t.Fatalf("out[%d][%d][%d] = %d, want %d", c, y, x, got, want)
					}
				}
			}
		}
	}
}

// TestMaxPool2D_InvalidParams tests precondition panics.
func TestMaxPool2D_InvalidParams(t *testing.T) {
	backend := newTestBackend()
	input := tensor.Zeros(1, 4, 4)

	for _, p := range [][2]int{{0, 2}, {2, 0}, {5, 1}} {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Expected panic for kernel=%d stride=%d", p[0], p[1])
				}
			}()
			backend.MaxPool2D(input, p[0], p[1])
		}()
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for wrong output shape")
		}
	}()
	backend.MaxPool2DInto(tensor.Zeros(1, 3, 3), input, 2, 2)
}
