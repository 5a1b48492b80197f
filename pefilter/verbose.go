package pefilter

import (
	"context"
	"log/slog"
	"time"
)

// VerboseFilter is a wrapper that provides verbose debug output for a Filter
// implementation.
type VerboseFilter struct {
	impl Filter
	log  *slog.Logger
}

// Verbose creates a verbose wrapper around an existing Filter implementation.
func Verbose(impl Filter, log *slog.Logger) Filter {
	if log == nil {
		log = slog.Default()
	}
	return &VerboseFilter{impl: impl, log: log}
}

// result logs the outcome of a call together with its duration.
func (v *VerboseFilter) result(call string, start time.Time, err error, args ...any) {
	args = append(args, "elapsed", time.Since(start), "status", StatusOf(err).String())
	if err != nil {
		v.log.Info(call+" failed", append(args, "error", err)...)
		return
	}
	v.log.Info(call, args...)
}

func (v *VerboseFilter) Destroy() error {
	start := time.Now()
	err := v.impl.Destroy()
	v.result("Destroy", start, err)
	return err
}

func (v *VerboseFilter) SystemCount() int {
	start := time.Now()
	count := v.impl.SystemCount()
	v.result("SystemCount", start, nil, "count", count)
	return count
}

func (v *VerboseFilter) SystemName(index int) (string, error) {
	start := time.Now()
	name, err := v.impl.SystemName(index)
	v.result("SystemName", start, err, "index", index, "name", name)
	return name, err
}

func (v *VerboseFilter) SystemNameInto(index int, buf []byte) error {
	start := time.Now()
	err := v.impl.SystemNameInto(index, buf)
	v.result("SystemNameInto", start, err, "index", index, "size", len(buf))
	return err
}

func (v *VerboseFilter) Open(ctx context.Context, name string) error {
	v.log.Info("Opening filter system", "system", name)
	start := time.Now()
	err := v.impl.Open(ctx, name)
	v.result("Open", start, err, "system", name)
	return err
}

func (v *VerboseFilter) Close(ctx context.Context) error {
	start := time.Now()
	err := v.impl.Close(ctx)
	v.result("Close", start, err)
	return err
}

func (v *VerboseFilter) Wavelength() (float64, error) {
	start := time.Now()
	nm, err := v.impl.Wavelength()
	v.result("Wavelength", start, err, "wavelength_nm", nm)
	return nm, err
}

func (v *VerboseFilter) SetWavelength(ctx context.Context, nm float64) error {
	start := time.Now()
	err := v.impl.SetWavelength(ctx, nm)
	v.result("SetWavelength", start, err, "wavelength_nm", nm)
	return err
}

func (v *VerboseFilter) WavelengthRange() (minimum, maximum float64, err error) {
	start := time.Now()
	minimum, maximum, err = v.impl.WavelengthRange()
	v.result("WavelengthRange", start, err, "min_nm", minimum, "max_nm", maximum)
	return minimum, maximum, err
}

func (v *VerboseFilter) HasHarmonicFilter() bool {
	start := time.Now()
	ok := v.impl.HasHarmonicFilter()
	v.result("HasHarmonicFilter", start, nil, "available", ok)
	return ok
}

func (v *VerboseFilter) HarmonicFilterEnabled() (bool, error) {
	start := time.Now()
	on, err := v.impl.HarmonicFilterEnabled()
	v.result("HarmonicFilterEnabled", start, err, "enabled", on)
	return on, err
}

func (v *VerboseFilter) SetHarmonicFilterEnabled(ctx context.Context, enable bool) error {
	start := time.Now()
	err := v.impl.SetHarmonicFilterEnabled(ctx, enable)
	v.result("SetHarmonicFilterEnabled", start, err, "enabled", enable)
	return err
}

func (v *VerboseFilter) GratingCount() (int, error) {
	start := time.Now()
	count, err := v.impl.GratingCount()
	v.result("GratingCount", start, err, "count", count)
	return count, err
}

func (v *VerboseFilter) GratingName(index int) (string, error) {
	start := time.Now()
	name, err := v.impl.GratingName(index)
	v.result("GratingName", start, err, "index", index, "name", name)
	return name, err
}

func (v *VerboseFilter) GratingNameInto(index int, buf []byte) error {
	start := time.Now()
	err := v.impl.GratingNameInto(index, buf)
	v.result("GratingNameInto", start, err, "index", index, "size", len(buf))
	return err
}

func (v *VerboseFilter) GratingWavelengthRange(index int) (minimum, maximum float64, err error) {
	start := time.Now()
	minimum, maximum, err = v.impl.GratingWavelengthRange(index)
	v.result("GratingWavelengthRange", start, err, "index", index, "min_nm", minimum, "max_nm", maximum)
	return minimum, maximum, err
}

func (v *VerboseFilter) GratingWavelengthExtendedRange(index int) (minimum, maximum float64, err error) {
	start := time.Now()
	minimum, maximum, err = v.impl.GratingWavelengthExtendedRange(index)
	v.result("GratingWavelengthExtendedRange", start, err, "index", index, "min_nm", minimum, "max_nm", maximum)
	return minimum, maximum, err
}

func (v *VerboseFilter) SetWavelengthOnGrating(ctx context.Context, index int, nm float64) error {
	start := time.Now()
	err := v.impl.SetWavelengthOnGrating(ctx, index, nm)
	v.result("SetWavelengthOnGrating", start, err, "index", index, "wavelength_nm", nm)
	return err
}

func (v *VerboseFilter) Grating() (int, error) {
	start := time.Now()
	index, err := v.impl.Grating()
	v.result("Grating", start, err, "index", index)
	return index, err
}
