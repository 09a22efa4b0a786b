package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/born-ml/qlenet/internal/dataset"
	"github.com/born-ml/qlenet/internal/lenet"
)

// MNIST test set file names.
const (
	testImagesFile = "t10k-images-idx3-ubyte"
	testLabelsFile = "t10k-labels-idx1-ubyte"
)

func runEval(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	weightsPath := fs.String("weights", "lenet_fixed.safetensors", "Fixed-point weights")
	dataDir := fs.String("data", "./data", "Directory containing the MNIST test set")
	imagesPath := fs.String("images", "", "IDX image file (default: <data>/"+testImagesFile+")")
	labelsPath := fs.String("labels", "", "IDX label file (default: <data>/"+testLabelsFile+")")
	pgmPattern := fs.String("pgm", "", "Read sample i from fmt.Sprintf(pattern, i) instead of the IDX image file,\n"+
		"e.g. <data>/"+testImagesFile+"[%05d].pgm")
	samples := fs.Int("samples", 0, "Max samples to evaluate (0 = all)")
	var rt runtimeFlags
	rt.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *imagesPath == "" {
		*imagesPath = filepath.Join(*dataDir, testImagesFile)
	}
	if *labelsPath == "" {
		*labelsPath = filepath.Join(*dataDir, testLabelsFile)
	}

	net, err := loadNetwork(*weightsPath, &rt, false)
	if err != nil {
		return err
	}

	labels, err := dataset.ReadIDXLabels(*labelsPath)
	if err != nil {
		return err
	}
	images, err := readEvalImages(*imagesPath, *pgmPattern, len(labels), *samples)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := lenet.EvalConfig{Parallel: rt.parallel(), Samples: *samples}
	fmt.Fprintf(stdout, "Evaluating %s on %d workers\n", net.Format(), cfg.Parallel.Workers())

	res, err := lenet.Evaluate(ctx, net, images, labels, cfg)
	if err != nil {
		return err
	}

	if rt.verbose {
		for i, pred := range res.Predictions {
			if int(labels[i]) != pred {
				fmt.Fprintf(stdout, "  sample %5d: label %d, predicted %d\n", i, labels[i], pred)
			}
		}
	}
	printEvalResult(stdout, res)
	return nil
}

// readEvalImages loads the evaluation images either from an IDX file or, when
// pattern is set, from one numbered PGM file per labelled sample.
func readEvalImages(idxPath, pattern string, labels, samples int) (*dataset.Images, error) {
	if pattern == "" {
		return dataset.ReadIDXImages(idxPath)
	}
	n := labels
	if samples > 0 && samples < n {
		n = samples
	}
	return dataset.ReadPGMSequence(pattern, n, lenet.ImageSize, lenet.ImageSize)
}

func printEvalResult(w io.Writer, res *lenet.EvalResult) {
	fmt.Fprintf(w, "Samples:  %d\n", res.Samples)
	fmt.Fprintf(w, "Errors:   %d\n", res.Errors())
	fmt.Fprintf(w, "Accuracy: %.2f%%\n", 100*res.Accuracy())
	fmt.Fprintf(w, "Time:     %v\n", res.Duration)

	fmt.Fprintln(w, "\nConfusion matrix (rows: label, columns: predicted)")
	fmt.Fprint(w, "     ")
	for c := 0; c < lenet.NumClasses; c++ {
		fmt.Fprintf(w, "%6d", c)
	}
	fmt.Fprintln(w, "  recall")
	for l := 0; l < lenet.NumClasses; l++ {
		fmt.Fprintf(w, "%4d ", l)
		for c := 0; c < lenet.NumClasses; c++ {
			fmt.Fprintf(w, "%6d", res.Confusion[l][c])
		}
		fmt.Fprintf(w, "  %5.1f%%\n", 100*res.ClassAccuracy(l))
	}
}

// loadNetwork loads weights, applies the runtime overrides and builds the
// network. Layer-level parallelism is only used when intraLayer is set;
// otherwise workers fan out across images.
func loadNetwork(path string, rt *runtimeFlags, intraLayer bool) (*lenet.Network, error) {
	w, err := lenet.LoadWeights(path)
	if err != nil {
		return nil, err
	}
	if w.Format, err = rt.apply(w.Format); err != nil {
		return nil, err
	}
	if intraLayer {
		return lenet.NewParallel(w, rt.parallel())
	}
	return lenet.New(w)
}
