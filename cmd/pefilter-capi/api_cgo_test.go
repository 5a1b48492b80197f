//go:build cgo

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonetc/lltf-device-plugin/pefilter"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	t.Setenv(pefilter.SimSpecEnv, "")
	path := filepath.Join(t.TempDir(), "filter.xml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

func TestExports_CreateDestroy(t *testing.T) {
	path := writeTestConfig(t)

	id, s := cCreate(&path, false)
	require.Equal(t, pefilter.PE_SUCCESS, s)
	require.NotZero(t, id)

	// The PE_HANDLE carries the registry id unchanged.
	f, err := handles.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, 2, f.SystemCount())

	assert.Equal(t, pefilter.PE_SUCCESS, cDestroy(id))
	assert.Equal(t, pefilter.PE_INVALID_HANDLE, cDestroy(id))
	assert.Equal(t, pefilter.PE_INVALID_HANDLE, cDestroy(0))
}

func TestExports_CreateNullArguments(t *testing.T) {
	path := writeTestConfig(t)

	id, s := cCreate(nil, false)
	assert.Equal(t, pefilter.PE_MISSING_CONFIGFILE, s)
	assert.Zero(t, id, "handle is cleared on failure")

	_, s = cCreate(&path, true)
	assert.Equal(t, pefilter.PE_INVALID_BUFFER, s)

	missing := filepath.Join(t.TempDir(), "missing.xml")
	id, s = cCreate(&missing, false)
	assert.Equal(t, pefilter.PE_MISSING_CONFIGFILE, s)
	assert.Zero(t, id)
}

func TestExports_NullOutputs(t *testing.T) {
	id := newTestID(t)
	require.Equal(t, pefilter.PE_SUCCESS, open(id, "LLTF-VIS"))

	for fn, s := range cNullOutputs(id) {
		assert.Equal(t, pefilter.PE_INVALID_BUFFER, s, fn)
	}

	// A null name is an unknown system.
	assert.Equal(t, pefilter.PE_INVALID_FILTER, cOpen(id, nil))
}

func TestExports_Session(t *testing.T) {
	id := newTestID(t)

	name, s := cSystemName(id, 1, 16)
	require.Equal(t, pefilter.PE_SUCCESS, s)
	assert.Equal(t, "LLTF-SWIR", name)
	_, s = cSystemName(id, 1, 4)
	assert.Equal(t, pefilter.PE_INVALID_BUFFER_SIZE, s)
	_, s = cSystemName(id, 0, 0)
	assert.Equal(t, pefilter.PE_INVALID_BUFFER_SIZE, s)

	_, s = cWavelength(id)
	assert.Equal(t, pefilter.PE_NO_FILTER_CONNECTED, s)

	vis := "LLTF-VIS"
	require.Equal(t, pefilter.PE_SUCCESS, cOpen(id, &vis))
	require.Equal(t, pefilter.PE_SUCCESS, cSetWavelength(id, 550))
	nm, s := cWavelength(id)
	require.Equal(t, pefilter.PE_SUCCESS, s)
	assert.Equal(t, 550.0, nm)

	assert.Equal(t, pefilter.PE_INVALID_WAVELENGTH, cSetWavelength(id, 5000))
	nm, _ = cWavelength(id)
	assert.Equal(t, 550.0, nm)

	grating, s := cGratingName(id, 1, 8)
	require.Equal(t, pefilter.PE_SUCCESS, s)
	assert.Equal(t, "NIR", grating)

	lo, hi, s := cGratingRange(id, 0, true)
	require.Equal(t, pefilter.PE_SUCCESS, s)
	assert.Equal(t, 390.0, lo)
	assert.Equal(t, 1010.0, hi)
	_, _, s = cGratingRange(id, 2, false)
	assert.Equal(t, pefilter.PE_INVALID_GRATING, s)
}

func TestExports_StatusStr(t *testing.T) {
	p, text := cStatusStr(int(pefilter.PE_INVALID_WAVELENGTH))
	assert.Equal(t, pefilter.StatusString(pefilter.PE_INVALID_WAVELENGTH), text)

	again, _ := cStatusStr(int(pefilter.PE_INVALID_WAVELENGTH))
	assert.Equal(t, p, again, "status strings are not reallocated")

	unknown, text := cStatusStr(int(pefilter.PE_UNKNOWN))
	assert.Equal(t, pefilter.StatusString(pefilter.PE_UNKNOWN), text)
	for _, code := range []int{99, -1} {
		fallback, _ := cStatusStr(code)
		assert.Equal(t, unknown, fallback, code)
	}
}
