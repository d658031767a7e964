package engine

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"

	"github.com/spikemat/spikemat/pkg/engine/native"
)

// Capabilities describes what the host can execute. The dispatcher takes
// it at construction; nothing in the engine consults mutable globals, so
// tests inject whatever host they want to pretend to be.
type Capabilities struct {
	// Workers is the degree of data parallelism available to the
	// parallel backend. Zero makes that backend unavailable.
	Workers int

	// SIMD reports a vector unit (AVX2 with FMA, or NEON class) that
	// makes the fused backend worth selecting.
	SIMD bool

	// NativeKernels reports that the optional accelerator library was
	// found and bound.
	NativeKernels bool
}

// Detect probes the host: logical CPUs, vector instruction sets via
// cpuid, and the optional accelerator library.
func Detect() Capabilities {
	simd := cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3)
	if runtime.GOARCH == "arm64" {
		simd = simd || cpuid.CPU.Supports(cpuid.ASIMD)
	}
	return Capabilities{
		Workers:       runtime.NumCPU(),
		SIMD:          simd,
		NativeKernels: native.Available(),
	}
}
