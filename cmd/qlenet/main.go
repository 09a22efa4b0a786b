// Package main provides the qlenet CLI: quantize LeNet weights, classify
// digits and measure test-set accuracy with the fixed-point pipeline.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/parallel"
)

const version = "v0.1.0"

func main() {
	log.SetFlags(0)
	log.SetPrefix("qlenet: ")

	if len(os.Args) < 2 {
		usage(os.Stdout)
		return
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "version":
		fmt.Printf("qlenet %s\n", version)
	case "info":
		err = runInfo(args, os.Stdout)
	case "quantize":
		err = runQuantize(args, os.Stdout)
	case "eval":
		err = runEval(args, os.Stdout)
	case "classify":
		err = runClassify(args, os.Stdout)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "qlenet - fixed-point LeNet inference")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "  info       Show CPU features and default worker count")
	fmt.Fprintln(w, "  quantize   Convert float SafeTensors weights to fixed point")
	fmt.Fprintln(w, "  eval       Measure accuracy on an MNIST test set (IDX or numbered PGMs)")
	fmt.Fprintln(w, "  classify   Classify 28x28 PGM images")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'qlenet <command> -h' for command flags.")
}

// runtimeFlags are shared by the commands that run inference.
type runtimeFlags struct {
	overflow string
	workers  int
	verbose  bool
}

func (r *runtimeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.overflow, "overflow", "", "Override narrowing policy: wrap or saturate (default: from weights file)")
	fs.IntVar(&r.workers, "workers", 0, "Worker goroutines (0 = physical cores)")
	fs.BoolVar(&r.verbose, "verbose", false, "Print per-sample details")
}

// apply overrides f's overflow policy if the flag was given.
func (r *runtimeFlags) apply(f fixed.Format) (fixed.Format, error) {
	if r.overflow == "" {
		return f, nil
	}
	o, err := fixed.ParseOverflow(r.overflow)
	if err != nil {
		return f, err
	}
	f.Overflow = o
	return f, nil
}

func (r *runtimeFlags) parallel() parallel.Config {
	cfg := parallel.DefaultConfig()
	if r.workers > 0 {
		cfg = cfg.WithWorkers(r.workers)
	}
	return cfg
}
