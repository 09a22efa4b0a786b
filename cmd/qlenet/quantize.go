package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/lenet"
	"github.com/born-ml/qlenet/internal/loader"
)

func runQuantize(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("quantize", flag.ContinueOnError)
	in := fs.String("in", "", "Float weights (SafeTensors, channels-last layout)")
	out := fs.String("out", "lenet_fixed.safetensors", "Output fixed-point weights")
	fracBits := fs.Uint("frac-bits", fixed.DefaultFracBits, "Fractional bits F")
	overflow := fs.String("overflow", "wrap", "Narrowing policy stored with the weights: wrap or saturate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("-in is required")
	}

	o, err := fixed.ParseOverflow(*overflow)
	if err != nil {
		return err
	}
	f, err := fixed.New(*fracBits, o)
	if err != nil {
		return err
	}

	r, err := loader.NewSafeTensorsReader(*in)
	if err != nil {
		return err
	}
	defer r.Close()

	params, err := r.LoadAllFloat32()
	if err != nil {
		return fmt.Errorf("read %s: %w", *in, err)
	}

	w, report, err := lenet.QuantizeWeights(f, params)
	if err != nil {
		return err
	}
	if _, err := report.WriteTo(stdout); err != nil {
		return err
	}
	if n := report.Overflows(); n > 0 {
		action := "wrapped"
		if f.Overflow == fixed.Saturate {
			action = "clamped"
		}
		fmt.Fprintf(stdout, "warning: %d values outside the %s range were %s\n", n, f, action)
	}

	if err := w.Save(*out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", *out)
	return nil
}
