package main

import (
	"flag"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/born-ml/qlenet/internal/fixed"
	"github.com/born-ml/qlenet/internal/parallel"
)

func runInfo(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cpu := parallel.DescribeCPU()
	cfg := parallel.DefaultConfig()
	f := fixed.Default()
	lo, hi := f.Range()

	fmt.Fprintf(stdout, "qlenet %s (%s, %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(stdout, "CPU:        %s (%s)\n", cpu.Brand, cpu.Vendor)
	fmt.Fprintf(stdout, "Cores:      %d physical, %d logical\n", cpu.PhysicalCores, cpu.LogicalCores)
	fmt.Fprintf(stdout, "Cache line: %d bytes\n", cpu.CacheLine)
	simd := "none detected"
	if len(cpu.SIMD) > 0 {
		simd = strings.Join(cpu.SIMD, " ")
	}
	fmt.Fprintf(stdout, "SIMD:       %s\n", simd)
	fmt.Fprintf(stdout, "Workers:    %d (parallel=%v)\n", cfg.Workers(), cfg.Enabled)
	fmt.Fprintf(stdout, "Format:     %s, step %g, range [%g, %g]\n", f, f.Resolution(), lo, hi)
	return nil
}
