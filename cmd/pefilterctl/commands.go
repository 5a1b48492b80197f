package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/photonetc/lltf-device-plugin/pefilter"
)

type VersionCmd struct{}

func (cmd *VersionCmd) Run(globals *Globals) error {
	v := pefilter.LibraryVersion()
	backend := "go"
	if pefilter.Native {
		backend = "native"
	}
	fmt.Fprintf(globals.stdout(), "pefilter %s (0x%06x, %s backend)\n", pefilter.VersionString(v), v, backend)
	return nil
}

type StatusCmd struct {
	Code int `arg:"" required:"" help:"Status code."`
}

func (cmd *StatusCmd) Run(globals *Globals) error {
	fmt.Fprintf(globals.stdout(), "%d: %s\n", cmd.Code, pefilter.StatusString(pefilter.Status(cmd.Code)))
	return nil
}

type SystemsCmd struct{}

func (cmd *SystemsCmd) Run(globals *Globals) error {
	f, err := globals.open()
	if err != nil {
		return err
	}
	defer f.Destroy()

	out := globals.stdout()
	for i := 0; i < f.SystemCount(); i++ {
		name, err := f.SystemName(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t%s\n", i, name)
	}
	return nil
}

type InfoCmd struct {
	System string `arg:"" required:"" help:"System name."`
}

func (cmd *InfoCmd) Run(globals *Globals) error {
	ctx := context.Background()
	f, err := globals.openSystem(ctx, cmd.System)
	if err != nil {
		return err
	}
	defer f.Destroy()
	return describe(globals.stdout(), cmd.System, f)
}

type SetCmd struct {
	System     string  `arg:"" required:"" help:"System name."`
	Wavelength float64 `arg:"" required:"" help:"Central wavelength in nanometers."`
	Grating    int     `help:"Grating index; -1 selects one automatically." default:"-1"`
}

func (cmd *SetCmd) Run(globals *Globals) error {
	ctx := context.Background()
	f, err := globals.openSystem(ctx, cmd.System)
	if err != nil {
		return err
	}
	defer f.Destroy()

	if cmd.Grating < 0 {
		err = f.SetWavelength(ctx, cmd.Wavelength)
	} else {
		err = f.SetWavelengthOnGrating(ctx, cmd.Grating, cmd.Wavelength)
	}
	if err != nil {
		return err
	}
	return printState(globals.stdout(), f)
}

type HarmonicCmd struct {
	System string `arg:"" required:"" help:"System name."`
	State  string `arg:"" required:"" help:"on or off."`
}

func (cmd *HarmonicCmd) Run(globals *Globals) error {
	enable, err := parseOnOff(cmd.State)
	if err != nil {
		return err
	}
	ctx := context.Background()
	f, err := globals.openSystem(ctx, cmd.System)
	if err != nil {
		return err
	}
	defer f.Destroy()

	if err := f.SetHarmonicFilterEnabled(ctx, enable); err != nil {
		return err
	}
	return printState(globals.stdout(), f)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "enable":
		return true, nil
	case "off", "false", "0", "disable":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// describe prints the ranges, gratings and state of the open system.
func describe(out io.Writer, name string, f pefilter.ReadOnly) error {
	minimum, maximum, err := f.WavelengthRange()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "System:     %s\n", name)
	fmt.Fprintf(out, "Range:      %g - %g nm\n", minimum, maximum)
	fmt.Fprintf(out, "Accessory:  harmonic filter %s\n", availability(f.HasHarmonicFilter()))
	if err := printGratings(out, f); err != nil {
		return err
	}
	return printState(out, f)
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "not installed"
}

func printGratings(out io.Writer, f pefilter.ReadOnly) error {
	count, err := f.GratingCount()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Gratings:")
	for i := 0; i < count; i++ {
		name, err := f.GratingName(i)
		if err != nil {
			return err
		}
		lo, hi, err := f.GratingWavelengthRange(i)
		if err != nil {
			return err
		}
		elo, ehi, err := f.GratingWavelengthExtendedRange(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  [%d] %-10s %g - %g nm (extended %g - %g nm)\n", i, name, lo, hi, elo, ehi)
	}
	return nil
}

// stateReader is satisfied by every Filter; Grating is not part of the
// read-only group in the vendor API.
type stateReader interface {
	pefilter.ReadOnly
	Grating() (int, error)
}

func printState(out io.Writer, f pefilter.ReadOnly) error {
	nm, err := f.Wavelength()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wavelength: %g nm\n", nm)
	if sr, ok := f.(stateReader); ok {
		g, err := sr.Grating()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Grating:    %d\n", g)
	}
	if f.HasHarmonicFilter() {
		on, err := f.HarmonicFilterEnabled()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Harmonic:   %s\n", onOff(on))
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
