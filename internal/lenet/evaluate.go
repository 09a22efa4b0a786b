package lenet

import (
	"context"
	"fmt"
	"time"

	"github.com/born-ml/qlenet/internal/dataset"
	"github.com/born-ml/qlenet/internal/parallel"
)

// EvalConfig controls Evaluate.
type EvalConfig struct {
	// Parallel splits samples across workers, each with its own Buffers.
	Parallel parallel.Config
	// Samples limits evaluation to the first N samples. Zero means all.
	Samples int
}

// EvalResult summarizes a labelled evaluation run.
type EvalResult struct {
	Samples     int
	Correct     int
	Confusion   [NumClasses][NumClasses]int // [label][predicted]
	Predictions []int                       // Predicted class per sample
	Duration    time.Duration
}

// Errors returns the number of misclassified samples.
func (r *EvalResult) Errors() int {
	return r.Samples - r.Correct
}

// Accuracy returns the fraction of correctly classified samples.
func (r *EvalResult) Accuracy() float64 {
	if r.Samples == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Samples)
}

// ClassAccuracy returns the recall of class c.
func (r *EvalResult) ClassAccuracy(c int) float64 {
	total := 0
	for _, n := range r.Confusion[c] {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(r.Confusion[c][c]) / float64(total)
}

// Evaluate classifies images against labels and tallies accuracy and the
// confusion matrix. The context is checked before every sample; on
// cancellation the partial result is discarded and ctx.Err() is returned.
func Evaluate(ctx context.Context, net *Network, images *dataset.Images, labels []byte, cfg EvalConfig) (*EvalResult, error) {
	if images.Rows != ImageSize || images.Cols != ImageSize {
		return nil, fmt.Errorf("evaluate: %w: images are %dx%d, want %dx%d",
			dataset.ErrImageSize, images.Rows, images.Cols, ImageSize, ImageSize)
	}
	n := images.Count
	if cfg.Samples > 0 && cfg.Samples < n {
		n = cfg.Samples
	}
	if len(labels) < n {
		return nil, fmt.Errorf("evaluate: %d labels for %d images", len(labels), n)
	}
	for i, l := range labels[:n] {
		if int(l) >= NumClasses {
			return nil, fmt.Errorf("evaluate: %w: sample %d has label %d", ErrInvalidLabel, i, l)
		}
	}

	start := time.Now()
	arenas := make([]*Buffers, cfg.Parallel.Workers())
	for i := range arenas {
		arenas[i] = NewBuffers()
	}
	errs := make([]error, len(arenas))
	predictions := make([]int, n)

	parallel.ForWorker(n, func(worker, i int) {
		if errs[worker] != nil || ctx.Err() != nil {
			return
		}
		p, err := net.ClassifyPixels(arenas[worker], images.Image(i))
		if err != nil {
			errs[worker] = fmt.Errorf("sample %d: %w", i, err)
			return
		}
		predictions[i] = p.Class
	}, cfg.Parallel)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("evaluate: %w", err)
		}
	}

	res := &EvalResult{Samples: n, Predictions: predictions}
	for i, pred := range predictions {
		label := int(labels[i])
		res.Confusion[label][pred]++
		if pred == label {
			res.Correct++
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}
