package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonetc/lltf-device-plugin/pefilter"
)

const testConfig = `<PEFilterConfiguration version="1">
  <System name="LLTF-VIS" harmonicFilter="true">
    <Grating name="VIS" min="400" max="1000" extendedMin="390" extendedMax="1010"/>
    <Grating name="NIR" min="1000" max="2300"/>
  </System>
  <System name="LLTF-SWIR">
    <Grating name="SWIR" min="1200" max="2000"/>
  </System>
</PEFilterConfiguration>`

func newGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	t.Setenv(pefilter.SimSpecEnv, "")
	path := filepath.Join(t.TempDir(), "filter.xml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))

	var out bytes.Buffer
	return &Globals{
		Config:  path,
		Timeout: time.Second,
		out:     &out,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, &out
}

func TestVersionCmd(t *testing.T) {
	g, out := newGlobals(t)
	require.NoError(t, (&VersionCmd{}).Run(g))
	assert.Equal(t, "pefilter 1.2.0 (0x010200, go backend)\n", out.String())
}

func TestStatusCmd(t *testing.T) {
	g, out := newGlobals(t)
	require.NoError(t, (&StatusCmd{Code: 13}).Run(g))
	require.NoError(t, (&StatusCmd{Code: 99}).Run(g))
	assert.Equal(t, "13: No filter is connected\n99: Unknown status\n", out.String())
}

func TestSystemsCmd(t *testing.T) {
	g, out := newGlobals(t)
	require.NoError(t, (&SystemsCmd{}).Run(g))
	assert.Equal(t, "0\tLLTF-VIS\n1\tLLTF-SWIR\n", out.String())
}

func TestSystemsCmd_MissingConfig(t *testing.T) {
	g, _ := newGlobals(t)
	g.Config = filepath.Join(t.TempDir(), "missing.xml")
	err := (&SystemsCmd{}).Run(g)
	assert.ErrorIs(t, err, pefilter.ErrMissingConfigFile)
}

func TestInfoCmd(t *testing.T) {
	g, out := newGlobals(t)
	require.NoError(t, (&InfoCmd{System: "LLTF-VIS"}).Run(g))

	s := out.String()
	assert.Contains(t, s, "Range:      400 - 2300 nm\n")
	assert.Contains(t, s, "Accessory:  harmonic filter available\n")
	assert.Contains(t, s, "[0] VIS        400 - 1000 nm (extended 390 - 1010 nm)\n")
	assert.Contains(t, s, "[1] NIR        1000 - 2300 nm (extended 1000 - 2300 nm)\n")
	assert.Contains(t, s, "Wavelength: 700 nm\n")
	assert.Contains(t, s, "Harmonic:   off\n")
}

func TestInfoCmd_UnknownSystem(t *testing.T) {
	g, _ := newGlobals(t)
	err := (&InfoCmd{System: "nope"}).Run(g)
	assert.Equal(t, pefilter.PE_INVALID_FILTER, pefilter.StatusOf(err))
}

func TestSetCmd(t *testing.T) {
	g, out := newGlobals(t)
	require.NoError(t, (&SetCmd{System: "LLTF-VIS", Wavelength: 1500, Grating: -1}).Run(g))
	assert.Contains(t, out.String(), "Wavelength: 1500 nm\nGrating:    1\n")

	out.Reset()
	require.NoError(t, (&SetCmd{System: "LLTF-VIS", Wavelength: 395, Grating: 0}).Run(g))
	assert.Contains(t, out.String(), "Wavelength: 395 nm\nGrating:    0\n")

	err := (&SetCmd{System: "LLTF-VIS", Wavelength: 3000, Grating: -1}).Run(g)
	assert.ErrorIs(t, err, pefilter.ErrInvalidWavelength)
}

func TestHarmonicCmd(t *testing.T) {
	g, out := newGlobals(t)
	require.NoError(t, (&HarmonicCmd{System: "LLTF-VIS", State: "on"}).Run(g))
	assert.Contains(t, out.String(), "Harmonic:   on\n")

	err := (&HarmonicCmd{System: "LLTF-SWIR", State: "on"}).Run(g)
	assert.ErrorIs(t, err, pefilter.ErrMissingHarmonicFilter)

	err = (&HarmonicCmd{System: "LLTF-VIS", State: "maybe"}).Run(g)
	assert.Error(t, err)
}

func TestGlobals_Verbose(t *testing.T) {
	g, _ := newGlobals(t)
	var logs bytes.Buffer
	g.log = slog.New(slog.NewTextHandler(&logs, nil))
	g.Verbose = true

	require.NoError(t, (&SystemsCmd{}).Run(g))
	assert.Contains(t, logs.String(), "msg=SystemName")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelWarn, parseLevel("bogus"))
}
