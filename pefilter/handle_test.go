package pefilter

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandle(t *testing.T, content string, opts ...Option) *Handle {
	t.Helper()
	t.Setenv(SimSpecEnv, "")
	h, err := Create(writeConfig(t, content), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Destroy() })
	return h
}

func openTestHandle(t *testing.T, system string) *Handle {
	t.Helper()
	h := newTestHandle(t, testConfig)
	require.NoError(t, h.Open(context.Background(), system))
	return h
}

func TestHandle_DestroyTwice(t *testing.T) {
	h := newTestHandle(t, testConfig)
	require.NoError(t, h.Destroy())
	assert.ErrorIs(t, h.Destroy(), ErrInvalidHandle)

	var nilHandle *Handle
	assert.ErrorIs(t, nilHandle.Destroy(), ErrInvalidHandle)
}

func TestHandle_UseAfterDestroy(t *testing.T) {
	h := newTestHandle(t, testConfig)
	require.NoError(t, h.Destroy())
	ctx := context.Background()

	assert.Equal(t, -1, h.SystemCount())
	_, err := h.SystemName(0)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.ErrorIs(t, h.Open(ctx, "LLTF-VIS"), ErrInvalidHandle)
	assert.ErrorIs(t, h.Close(ctx), ErrInvalidHandle)
	_, err = h.Wavelength()
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.ErrorIs(t, h.SetWavelength(ctx, 500), ErrInvalidHandle)
	assert.False(t, h.HasHarmonicFilter())
}

func TestHandle_Systems(t *testing.T) {
	h := newTestHandle(t, testConfig)

	assert.Equal(t, 2, h.SystemCount())
	name, err := h.SystemName(1)
	require.NoError(t, err)
	assert.Equal(t, "LLTF-SWIR", name)

	_, err = h.SystemName(2)
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = h.SystemName(-1)
	assert.ErrorIs(t, err, ErrInvalidFilter)

	systems, err := h.Systems()
	require.NoError(t, err)
	require.Len(t, systems, 2)
	systems[0].Gratings[0].Name = "mutated"
	again, _ := h.Systems()
	assert.Equal(t, "VIS", again[0].Gratings[0].Name)
}

func TestHandle_SystemNameInto(t *testing.T) {
	h := newTestHandle(t, testConfig)

	buf := make([]byte, len("LLTF-VIS")+1)
	require.NoError(t, h.SystemNameInto(0, buf))
	assert.Equal(t, []byte("LLTF-VIS\x00"), buf)

	assert.ErrorIs(t, h.SystemNameInto(0, nil), ErrInvalidBuffer)

	small := bytes.Repeat([]byte{0xAA}, len("LLTF-VIS"))
	assert.ErrorIs(t, h.SystemNameInto(0, small), ErrInvalidBufferSize)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, len("LLTF-VIS")), small, "buffer must be untouched")

	assert.ErrorIs(t, h.SystemNameInto(0, []byte{}), ErrInvalidBufferSize)
	assert.ErrorIs(t, h.SystemNameInto(9, make([]byte, 64)), ErrInvalidFilter)
}

func TestHandle_RequiresOpenSystem(t *testing.T) {
	h := newTestHandle(t, testConfig)
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["Wavelength"] = h.Wavelength()
	checks["SetWavelength"] = h.SetWavelength(ctx, 500)
	_, _, checks["WavelengthRange"] = h.WavelengthRange()
	_, checks["HarmonicFilterEnabled"] = h.HarmonicFilterEnabled()
	checks["SetHarmonicFilterEnabled"] = h.SetHarmonicFilterEnabled(ctx, true)
	_, checks["GratingCount"] = h.GratingCount()
	_, checks["GratingName"] = h.GratingName(0)
	checks["GratingNameInto"] = h.GratingNameInto(0, make([]byte, 16))
	_, _, checks["GratingWavelengthRange"] = h.GratingWavelengthRange(0)
	_, _, checks["GratingWavelengthExtendedRange"] = h.GratingWavelengthExtendedRange(0)
	checks["SetWavelengthOnGrating"] = h.SetWavelengthOnGrating(ctx, 0, 500)
	_, checks["Grating"] = h.Grating()
	_, checks["System"] = h.System()

	for op, err := range checks {
		assert.ErrorIs(t, err, ErrNoFilterConnected, op)
	}
	assert.False(t, h.HasHarmonicFilter())
}

func TestHandle_OpenUnknownSystem(t *testing.T) {
	h := newTestHandle(t, testConfig)

	err := h.Open(context.Background(), "LLTF-UV")
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = h.Wavelength()
	assert.ErrorIs(t, err, ErrNoFilterConnected)
}

func TestHandle_OpenInitialState(t *testing.T) {
	h := openTestHandle(t, "LLTF-VIS")

	nm, err := h.Wavelength()
	require.NoError(t, err)
	assert.Equal(t, 700.0, nm)

	g, err := h.Grating()
	require.NoError(t, err)
	assert.Equal(t, 0, g)

	minimum, maximum, err := h.WavelengthRange()
	require.NoError(t, err)
	assert.Equal(t, 400.0, minimum)
	assert.Equal(t, 2300.0, maximum)

	sys, err := h.System()
	require.NoError(t, err)
	assert.Equal(t, "LLTF-VIS", sys.Name)
}

func TestHandle_SetWavelength(t *testing.T) {
	h := openTestHandle(t, "LLTF-VIS")
	ctx := context.Background()

	require.NoError(t, h.SetWavelength(ctx, 550))
	nm, _ := h.Wavelength()
	assert.Equal(t, 550.0, nm)

	// 1500 nm is only covered by the second grating.
	require.NoError(t, h.SetWavelength(ctx, 1500))
	g, _ := h.Grating()
	assert.Equal(t, 1, g)

	// 1000 nm is covered by both; the current grating is kept.
	require.NoError(t, h.SetWavelength(ctx, 1000))
	g, _ = h.Grating()
	assert.Equal(t, 1, g)
}

func TestHandle_SetWavelengthOutOfRange(t *testing.T) {
	h := openTestHandle(t, "LLTF-VIS")
	ctx := context.Background()

	minimum, maximum, err := h.WavelengthRange()
	require.NoError(t, err)

	for _, nm := range []float64{minimum - 0.01, maximum + 0.01, 0, -5} {
		err := h.SetWavelength(ctx, nm)
		assert.ErrorIs(t, err, ErrInvalidWavelength, "%g nm", nm)
		got, _ := h.Wavelength()
		assert.Equal(t, 700.0, got, "wavelength must not change")
	}

	// Extended range is not reachable through SetWavelength.
	assert.ErrorIs(t, h.SetWavelength(ctx, 395), ErrInvalidWavelength)
}

func TestHandle_SetWavelengthOnGrating(t *testing.T) {
	h := openTestHandle(t, "LLTF-VIS")
	ctx := context.Background()

	require.NoError(t, h.SetWavelengthOnGrating(ctx, 1, 990))
	g, _ := h.Grating()
	assert.Equal(t, 1, g)
	nm, _ := h.Wavelength()
	assert.Equal(t, 990.0, nm)

	// Extended range of grating 0.
	require.NoError(t, h.SetWavelengthOnGrating(ctx, 0, 395))
	g, _ = h.Grating()
	assert.Equal(t, 0, g)

	for _, idx := range []int{-1, 2, 10} {
		assert.ErrorIs(t, h.SetWavelengthOnGrating(ctx, idx, 500), ErrInvalidGrating)
		g, _ = h.Grating()
		assert.Equal(t, 0, g, "grating must not change")
	}

	assert.ErrorIs(t, h.SetWavelengthOnGrating(ctx, 0, 1500), ErrInvalidWavelength)
	nm, _ = h.Wavelength()
	assert.Equal(t, 395.0, nm)
}

func TestHandle_Gratings(t *testing.T) {
	h := openTestHandle(t, "LLTF-VIS")

	count, err := h.GratingCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	name, err := h.GratingName(1)
	require.NoError(t, err)
	assert.Equal(t, "NIR", name)
	_, err = h.GratingName(2)
	assert.ErrorIs(t, err, ErrInvalidGrating)

	buf := make([]byte, 4)
	require.NoError(t, h.GratingNameInto(0, buf))
	assert.Equal(t, []byte("VIS\x00"), buf)
	assert.ErrorIs(t, h.GratingNameInto(0, buf[:3]), ErrInvalidBufferSize)
	assert.ErrorIs(t, h.GratingNameInto(0, nil), ErrInvalidBuffer)

	minimum, maximum, err := h.GratingWavelengthRange(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{400, 1000}, []float64{minimum, maximum})

	minimum, maximum, err = h.GratingWavelengthExtendedRange(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{980, 2350}, []float64{minimum, maximum})

	_, _, err = h.GratingWavelengthExtendedRange(-1)
	assert.ErrorIs(t, err, ErrInvalidGrating)
}

func TestHandle_HarmonicFilter(t *testing.T) {
	h := openTestHandle(t, "LLTF-VIS")
	ctx := context.Background()

	assert.True(t, h.HasHarmonicFilter())
	on, err := h.HarmonicFilterEnabled()
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, h.SetHarmonicFilterEnabled(ctx, true))
	on, _ = h.HarmonicFilterEnabled()
	assert.True(t, on)

	require.NoError(t, h.Open(ctx, "LLTF-SWIR"))
	assert.False(t, h.HasHarmonicFilter())
	_, err = h.HarmonicFilterEnabled()
	assert.ErrorIs(t, err, ErrMissingHarmonicFilter)
	assert.ErrorIs(t, h.SetHarmonicFilterEnabled(ctx, true), ErrMissingHarmonicFilter)
}

func TestHandle_CloseIsIdempotent(t *testing.T) {
	h := openTestHandle(t, "LLTF-VIS")
	ctx := context.Background()

	require.NoError(t, h.SetWavelength(ctx, 900))
	require.NoError(t, h.Close(ctx))
	require.NoError(t, h.Close(ctx))

	_, err := h.Wavelength()
	assert.ErrorIs(t, err, ErrNoFilterConnected)

	// The unit was reset on close.
	require.NoError(t, h.Open(ctx, "LLTF-VIS"))
	nm, _ := h.Wavelength()
	assert.Equal(t, 700.0, nm)
}

func TestHandle_ExclusiveOpen(t *testing.T) {
	path := writeConfig(t, testConfig)
	ctx := context.Background()

	h1, err := Create(path)
	require.NoError(t, err)
	defer h1.Destroy()
	h2, err := Create(path)
	require.NoError(t, err)
	defer h2.Destroy()

	require.NoError(t, h1.Open(ctx, "LLTF-VIS"))
	err = h2.Open(ctx, "LLTF-VIS")
	assert.Equal(t, PE_FAILURE, StatusOf(err))

	// Different unit is fine.
	require.NoError(t, h2.Open(ctx, "LLTF-SWIR"))

	// An unknown name leaves h1 on its current system.
	assert.ErrorIs(t, h1.Open(ctx, "LLTF-UV"), ErrInvalidFilter)
	sys, err := h1.System()
	require.NoError(t, err)
	assert.Equal(t, "LLTF-VIS", sys.Name)

	// Destroying h1 releases the VIS unit.
	require.NoError(t, h1.Destroy())
	require.NoError(t, h2.Open(ctx, "LLTF-VIS"))
}

const slowConfig = `<PEFilterConfiguration>
  <System name="LLTF-SLOW" driver="slow-test">
    <Grating name="VIS" min="400" max="1000"/>
  </System>
  <System name="LLTF-STALL" driver="stalled-test">
    <Grating name="VIS" min="400" max="1000"/>
  </System>
</PEFilterConfiguration>`

func init() {
	RegisterDriver("slow-test", SimulatedDriver{Spec: &SimulationSpec{Latency: 200 * time.Millisecond}})
	RegisterDriver("stalled-test", SimulatedDriver{Spec: &SimulationSpec{FaultyTuning: []string{"LLTF-STALL"}}})
}

func TestHandle_IOTimeout(t *testing.T) {
	h := newTestHandle(t, slowConfig, WithIOTimeout(20*time.Millisecond))

	start := time.Now()
	err := h.Open(context.Background(), "LLTF-SLOW")
	assert.Equal(t, PE_FAILURE, StatusOf(err))
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	_, err = h.Wavelength()
	assert.ErrorIs(t, err, ErrNoFilterConnected)
}

func TestHandle_TuningFailure(t *testing.T) {
	h := newTestHandle(t, slowConfig)
	ctx := context.Background()
	require.NoError(t, h.Open(ctx, "LLTF-STALL"))

	err := h.SetWavelength(ctx, 500)
	assert.Equal(t, PE_FAILURE, StatusOf(err))
	assert.ErrorIs(t, err, ErrSimStalled)

	nm, _ := h.Wavelength()
	assert.Equal(t, 700.0, nm)
}

func TestHandle_Observer(t *testing.T) {
	var mu sync.Mutex
	var ops []string
	obs := func(op, system string, err error, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		ops = append(ops, op+":"+system+":"+StatusOf(err).String())
	}
	h := newTestHandle(t, testConfig, WithObserver(obs))
	ctx := context.Background()

	require.NoError(t, h.Open(ctx, "LLTF-VIS"))
	require.NoError(t, h.SetWavelength(ctx, 450))
	require.NoError(t, h.Close(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"open:LLTF-VIS:Successful operation",
		"tune:LLTF-VIS:Successful operation",
		"reset:LLTF-VIS:Successful operation",
	}, ops)
}

func TestHandle_ReadOnlyView(t *testing.T) {
	h := openTestHandle(t, "LLTF-VIS")
	ro := h.ReadOnly()

	_, isFilter := ro.(Filter)
	assert.False(t, isFilter, "read-only view must not expose mutating methods")
	assert.Equal(t, 2, ro.SystemCount())
	nm, err := ro.Wavelength()
	require.NoError(t, err)
	assert.Equal(t, 700.0, nm)
}

func TestHandle_ConcurrentUse(t *testing.T) {
	h := openTestHandle(t, "LLTF-VIS")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, h.SetWavelength(ctx, 500+float64(i)))
			_, err := h.Wavelength()
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	nm, err := h.Wavelength()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, nm, 500.0)
	assert.Less(t, nm, 508.0)
}
