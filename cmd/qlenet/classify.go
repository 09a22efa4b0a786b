package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/born-ml/qlenet/internal/dataset"
	"github.com/born-ml/qlenet/internal/lenet"
)

func runClassify(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	weightsPath := fs.String("weights", "lenet_fixed.safetensors", "Fixed-point weights")
	var rt runtimeFlags
	rt.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no images given (usage: qlenet classify -weights w.safetensors image.pgm...)")
	}

	net, err := loadNetwork(*weightsPath, &rt, true)
	if err != nil {
		return err
	}
	if rt.verbose {
		fmt.Fprintln(stdout, net)
	}

	buf := lenet.NewBuffers()
	logits := make([]float32, lenet.NumClasses)
	for _, path := range fs.Args() {
		img, err := dataset.ReadPGMSize(path, lenet.ImageSize, lenet.ImageSize)
		if err != nil {
			return err
		}
		pred, err := net.ClassifyPixels(buf, img.Pixels)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		fmt.Fprintf(stdout, "%s: %d (p=%.4f)\n", path, pred.Class, pred.Probabilities[pred.Class])
		if rt.verbose {
			net.Format().DequantizeSlice(logits, pred.Logits[:])
			for c, p := range pred.Probabilities {
				fmt.Fprintf(stdout, "  %d: %.6f  logit %8.4f\n", c, p, logits[c])
			}
		}
	}
	return nil
}
