// Dynamic loader for the optional accelerator kernels via purego (no cgo).
// Adapted from kelindar/search (MIT License).

// Package native binds the optional spikemat accelerator library when it
// is installed. Everything degrades gracefully: a missing library means
// Available reports false and the engine stays on its pure Go kernels.
package native

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ebitengine/purego"
)

// Kernels holds the bound entry points of the accelerator library.
type Kernels struct {
	// Axpy computes dst[i] += alpha * x[i] for i in [0, n).
	Axpy func(dst []float64, x []float64, alpha float64, n int32)
}

var (
	libptr   uintptr
	libOnce  sync.Once
	libErr   error
	snn_axpy func(dst []float64, x []float64, alpha float64, n int32)
)

// Load resolves and binds the accelerator library on first call and
// memoizes the result.
func Load() (*Kernels, error) {
	libOnce.Do(func() {
		libpath, err := findKernels()
		if err != nil {
			libErr = err
			return
		}
		if libptr, err = load(libpath); err != nil {
			libErr = err
			return
		}

		purego.RegisterLibFunc(&snn_axpy, libptr, "snn_axpy")
	})
	if libErr != nil {
		return nil, libErr
	}
	return &Kernels{Axpy: snn_axpy}, nil
}

// Available reports whether the accelerator library could be bound.
func Available() bool {
	_, err := Load()
	return err == nil
}

// --------------------------------- Library Lookup ---------------------------------

func findKernels() (string, error) {
	switch runtime.GOOS {
	case "windows":
		return findLibrary("spikemat_kernels.dll", runtime.GOOS)
	case "darwin":
		return findLibrary("libspikemat_kernels.dylib", runtime.GOOS)
	default:
		return findLibrary("libspikemat_kernels.so", runtime.GOOS)
	}
}

func findLibrary(name, goos string) (string, error) {
	dirs := libDirs(goos)
	checked := make([]string, 0, len(dirs))

	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		checked = append(checked, path)
	}

	return "", fmt.Errorf("library '%s' not found, checked following paths:\n\t - %s",
		name, strings.Join(checked, "\n\t - "))
}

func libDirs(goos string) []string {
	dirs := []string{"/usr/lib", "/usr/local/lib"}

	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}

	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}

	switch goos {
	case "windows":
		if sys := os.Getenv("SYSTEMROOT"); sys != "" {
			dirs = append(dirs, filepath.Join(sys, "System32"))
		}
	case "darwin":
		dirs = append(dirs, "/opt/homebrew/lib")
	}

	for _, envKey := range []string{"LD_LIBRARY_PATH", "DYLD_LIBRARY_PATH"} {
		if val := os.Getenv(envKey); val != "" {
			dirs = append(dirs, strings.Split(val, ":")...)
		}
	}

	if goos == "windows" {
		if val := os.Getenv("PATH"); val != "" {
			dirs = append(dirs, strings.Split(val, ";")...)
		}
	}

	return dirs
}
