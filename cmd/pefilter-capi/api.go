// Command pefilter-capi builds the PE Filter SDK C interface on top of the
// Go implementation:
//
//	go build -buildmode=c-shared -o libPE_Filter_SDK.so ./cmd/pefilter-capi
//
// Handles given to C callers are registry ids, never Go pointers.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/photonetc/lltf-device-plugin/pefilter"
)

// LogLevelEnv selects the level of the library log written to stderr.
const LogLevelEnv = "PEFILTER_LOG_LEVEL"

var (
	handles = pefilter.NewRegistry()
	logger  = newLogger(os.Getenv(LogLevelEnv))
)

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func status(err error) pefilter.Status {
	return pefilter.StatusOf(err)
}

func create(path string) (uintptr, pefilter.Status) {
	h, err := pefilter.Create(path, pefilter.WithLogger(logger))
	if err != nil {
		logger.Warn("PE_Create failed", "config", path, "error", err)
		return 0, status(err)
	}
	return handles.Register(h), pefilter.PE_SUCCESS
}

func destroy(id uintptr) pefilter.Status {
	return status(handles.Release(id))
}

func lookup(id uintptr) pefilter.Filter {
	f, err := handles.Lookup(id)
	if err != nil {
		return nil
	}
	return f
}

func systemCount(id uintptr) int {
	f := lookup(id)
	if f == nil {
		return -1
	}
	return f.SystemCount()
}

// systemName follows the C buffer contract: a nil buf is a null pointer,
// an empty one a non-positive size.
func systemName(id uintptr, index int, buf []byte) pefilter.Status {
	f := lookup(id)
	if f == nil {
		return pefilter.PE_INVALID_HANDLE
	}
	return status(f.SystemNameInto(index, buf))
}

func open(id uintptr, name string) pefilter.Status {
	f := lookup(id)
	if f == nil {
		return pefilter.PE_INVALID_HANDLE
	}
	return status(f.Open(context.Background(), name))
}

func closeSystem(id uintptr) pefilter.Status {
	f := lookup(id)
	if f == nil {
		return pefilter.PE_INVALID_HANDLE
	}
	return status(f.Close(context.Background()))
}

func wavelength(id uintptr) (float64, pefilter.Status) {
	f := lookup(id)
	if f == nil {
		return 0, pefilter.PE_INVALID_HANDLE
	}
	nm, err := f.Wavelength()
	return nm, status(err)
}

func setWavelength(id uintptr, nm float64) pefilter.Status {
	f := lookup(id)
	if f == nil {
		return pefilter.PE_INVALID_HANDLE
	}
	return status(f.SetWavelength(context.Background(), nm))
}

func wavelengthRange(id uintptr) (float64, float64, pefilter.Status) {
	f := lookup(id)
	if f == nil {
		return 0, 0, pefilter.PE_INVALID_HANDLE
	}
	lo, hi, err := f.WavelengthRange()
	return lo, hi, status(err)
}

func hasHarmonicFilter(id uintptr) bool {
	f := lookup(id)
	return f != nil && f.HasHarmonicFilter()
}

func harmonicFilterEnabled(id uintptr) (bool, pefilter.Status) {
	f := lookup(id)
	if f == nil {
		return false, pefilter.PE_INVALID_HANDLE
	}
	on, err := f.HarmonicFilterEnabled()
	return on, status(err)
}

func setHarmonicFilterEnabled(id uintptr, enable bool) pefilter.Status {
	f := lookup(id)
	if f == nil {
		return pefilter.PE_INVALID_HANDLE
	}
	return status(f.SetHarmonicFilterEnabled(context.Background(), enable))
}

func gratingCount(id uintptr) (int, pefilter.Status) {
	f := lookup(id)
	if f == nil {
		return 0, pefilter.PE_INVALID_HANDLE
	}
	n, err := f.GratingCount()
	return n, status(err)
}

func gratingName(id uintptr, index int, buf []byte) pefilter.Status {
	f := lookup(id)
	if f == nil {
		return pefilter.PE_INVALID_HANDLE
	}
	return status(f.GratingNameInto(index, buf))
}

func gratingRange(id uintptr, index int, extended bool) (float64, float64, pefilter.Status) {
	f := lookup(id)
	if f == nil {
		return 0, 0, pefilter.PE_INVALID_HANDLE
	}
	var lo, hi float64
	var err error
	if extended {
		lo, hi, err = f.GratingWavelengthExtendedRange(index)
	} else {
		lo, hi, err = f.GratingWavelengthRange(index)
	}
	return lo, hi, status(err)
}

func setWavelengthOnGrating(id uintptr, index int, nm float64) pefilter.Status {
	f := lookup(id)
	if f == nil {
		return pefilter.PE_INVALID_HANDLE
	}
	return status(f.SetWavelengthOnGrating(context.Background(), index, nm))
}

func grating(id uintptr) (int, pefilter.Status) {
	f := lookup(id)
	if f == nil {
		return 0, pefilter.PE_INVALID_HANDLE
	}
	g, err := f.Grating()
	return g, status(err)
}

func main() {}
