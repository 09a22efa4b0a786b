package parallel

import (
	"github.com/klauspost/cpuid/v2"
)

// CPUInfo summarizes the host processor as seen by cpuid.
type CPUInfo struct {
	Brand         string
	Vendor        string
	PhysicalCores int
	LogicalCores  int
	CacheLine     int
	SIMD          []string // Vector extensions relevant to int16 MAC loops.
}

// simdFeatures are reported in this order when present.
var simdFeatures = []struct {
	id   cpuid.FeatureID
	name string
}{
	{cpuid.SSE2, "SSE2"},
	{cpuid.SSE4, "SSE4.1"},
	{cpuid.AVX2, "AVX2"},
	{cpuid.AVX512F, "AVX512F"},
	{cpuid.AVX512BW, "AVX512BW"},
	{cpuid.AVX512VNNI, "AVX512VNNI"},
	{cpuid.AVXVNNI, "AVXVNNI"},
	{cpuid.ASIMD, "ASIMD"},
	{cpuid.ASIMDDP, "ASIMDDP"},
}

// DescribeCPU reports the host processor.
func DescribeCPU() CPUInfo {
	info := CPUInfo{
		Brand:         cpuid.CPU.BrandName,
		Vendor:        cpuid.CPU.VendorString,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		CacheLine:     cpuid.CPU.CacheLine,
	}
	for _, f := range simdFeatures {
		if cpuid.CPU.Supports(f.id) {
			info.SIMD = append(info.SIMD, f.name)
		}
	}
	return info
}
