package pefilter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIOTimeout bounds every call into a Device.
const DefaultIOTimeout = 5 * time.Second

// Observer is notified after every call that talks to hardware.
type Observer func(op string, system string, err error, elapsed time.Duration)

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the logger used by the handle.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handle) {
		if log != nil {
			h.log = log
		}
	}
}

// WithIOTimeout overrides DefaultIOTimeout. Non-positive values are ignored.
func WithIOTimeout(d time.Duration) Option {
	return func(h *Handle) {
		if d > 0 {
			h.ioTimeout = d
		}
	}
}

// WithObserver registers an observer for hardware calls.
func WithObserver(o Observer) Option {
	return func(h *Handle) { h.observer = o }
}

// Handle is a filter resource: a loaded configuration plus at most one open
// filter system. A Handle is safe for concurrent use.
type Handle struct {
	mu        sync.Mutex
	id        string
	cfg       *Config
	log       *slog.Logger
	ioTimeout time.Duration
	observer  Observer
	destroyed bool

	sys   *SystemDescriptor
	dev   Device
	state DeviceState
}

// Create loads the configuration file at path. No system is opened.
func Create(path string, opts ...Option) (*Handle, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		id:        uuid.NewString(),
		cfg:       cfg,
		log:       slog.Default(),
		ioTimeout: DefaultIOTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("handle", h.id)
	h.log.Debug("Filter resource created", "config", path, "systems", len(cfg.Systems))
	return h, nil
}

// ID returns the unique identifier of the handle.
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

// Destroy closes any open system and invalidates the handle. Calling it on
// a destroyed or nil handle returns ErrInvalidHandle.
func (h *Handle) Destroy() error {
	if h == nil {
		return ErrInvalidHandle
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return ErrInvalidHandle
	}
	if h.dev != nil {
		h.closeLocked(context.Background())
	}
	h.destroyed = true
	h.cfg = nil
	h.log.Debug("Filter resource destroyed")
	return nil
}

func (h *Handle) checkLocked() error {
	if h.destroyed {
		return ErrInvalidHandle
	}
	return nil
}

func (h *Handle) requireOpenLocked() error {
	if err := h.checkLocked(); err != nil {
		return err
	}
	if h.dev == nil {
		return ErrNoFilterConnected
	}
	return nil
}

// lock acquires the mutex and validates the handle. On success the caller
// owns the lock.
func (h *Handle) lock(needOpen bool) error {
	if h == nil {
		return ErrInvalidHandle
	}
	h.mu.Lock()
	var err error
	if needOpen {
		err = h.requireOpenLocked()
	} else {
		err = h.checkLocked()
	}
	if err != nil {
		h.mu.Unlock()
	}
	return err
}

// io runs fn with the I/O timeout applied. Errors that already carry a
// status pass through; everything else becomes a communication failure.
func (h *Handle) io(ctx context.Context, op, system string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, h.ioTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		var s Status
		if !errors.As(err, &s) {
			err = fmt.Errorf("%s %q: %w: %w", op, system, ErrFailure, err)
		}
	}
	if h.observer != nil {
		h.observer(op, system, err, time.Since(start))
	}
	return err
}

// SystemCount returns the number of configured systems, or -1 for an
// invalid handle.
func (h *Handle) SystemCount() int {
	if err := h.lock(false); err != nil {
		return -1
	}
	defer h.mu.Unlock()
	return len(h.cfg.Systems)
}

// Systems returns a copy of all configured system descriptors.
func (h *Handle) Systems() ([]SystemDescriptor, error) {
	if err := h.lock(false); err != nil {
		return nil, err
	}
	defer h.mu.Unlock()
	out := make([]SystemDescriptor, len(h.cfg.Systems))
	for i, s := range h.cfg.Systems {
		out[i] = copySystem(s)
	}
	return out, nil
}

// SystemName returns the name of the system at index.
func (h *Handle) SystemName(index int) (string, error) {
	if err := h.lock(false); err != nil {
		return "", err
	}
	defer h.mu.Unlock()
	return h.systemNameLocked(index)
}

// SystemNameInto writes the NUL-terminated name of the system at index into
// buf, following the C API buffer contract.
func (h *Handle) SystemNameInto(index int, buf []byte) error {
	if err := h.lock(false); err != nil {
		return err
	}
	defer h.mu.Unlock()
	if buf == nil {
		return ErrInvalidBuffer
	}
	name, err := h.systemNameLocked(index)
	if err != nil {
		return err
	}
	return copyName(buf, name)
}

func (h *Handle) systemNameLocked(index int) (string, error) {
	if index < 0 || index >= len(h.cfg.Systems) {
		return "", fmt.Errorf("system index %d of %d: %w", index, len(h.cfg.Systems), ErrInvalidFilter)
	}
	return h.cfg.Systems[index].Name, nil
}

// Open connects to the named system. Opening the system that is already
// open is a no-op; opening another one closes the current system first.
func (h *Handle) Open(ctx context.Context, name string) error {
	if err := h.lock(false); err != nil {
		return err
	}
	defer h.mu.Unlock()

	sys, ok := h.cfg.System(name)
	if !ok {
		return fmt.Errorf("open %q: %w", name, ErrInvalidFilter)
	}
	if h.sys != nil {
		if h.sys.Name == name {
			return nil
		}
		h.closeLocked(ctx)
	}

	driver, ok := lookupDriver(sys.Driver)
	if !ok {
		return fmt.Errorf("open %q: driver %q: %w", name, sys.Driver, ErrUnsupportedConfiguration)
	}
	if err := claimSystem(sys, h.id); err != nil {
		return err
	}

	var dev Device
	var state DeviceState
	err := h.io(ctx, "open", name, func(ctx context.Context) error {
		var err error
		dev, err = driver.Connect(ctx, sys)
		if err != nil {
			return err
		}
		state, err = dev.State(ctx)
		if err == nil {
			err = checkState(sys, state)
		}
		if err != nil {
			_ = dev.Close()
		}
		return err
	})
	if err != nil {
		releaseSystem(sys, h.id)
		h.log.Warn("Failed to open filter system", "system", name, "error", err)
		return err
	}

	sys = copySystem(sys)
	h.sys = &sys
	h.dev = dev
	h.state = state
	h.log.Info("Filter system opened", "system", name, "grating", state.Grating, "wavelength_nm", state.Wavelength)
	return nil
}

// Ping checks that the named system answers and reports a consistent
// state. Unlike Open followed by Close it never retunes or resets the unit,
// and it leaves the system open on h untouched. A unit held elsewhere
// yields an error wrapping ErrDeviceBusy.
func (h *Handle) Ping(ctx context.Context, name string) error {
	if err := h.lock(false); err != nil {
		return err
	}
	defer h.mu.Unlock()

	sys, ok := h.cfg.System(name)
	if !ok {
		return fmt.Errorf("ping %q: %w", name, ErrInvalidFilter)
	}
	if h.sys != nil && h.sys.Name == name {
		return nil
	}
	driver, ok := lookupDriver(sys.Driver)
	if !ok {
		return fmt.Errorf("ping %q: driver %q: %w", name, sys.Driver, ErrUnsupportedConfiguration)
	}
	if err := claimSystem(sys, h.id); err != nil {
		return err
	}
	defer releaseSystem(sys, h.id)

	return h.io(ctx, "ping", name, func(ctx context.Context) error {
		dev, err := driver.Connect(ctx, sys)
		if err != nil {
			return err
		}
		defer dev.Close()
		state, err := dev.State(ctx)
		if err != nil {
			return err
		}
		return checkState(sys, state)
	})
}

// Close resets and disconnects the open system. It is a no-op when no
// system is open; device errors during reset are logged, not returned.
func (h *Handle) Close(ctx context.Context) error {
	if err := h.lock(false); err != nil {
		return err
	}
	defer h.mu.Unlock()
	if h.dev != nil {
		h.closeLocked(ctx)
	}
	return nil
}

func (h *Handle) closeLocked(ctx context.Context) {
	name := h.sys.Name
	if err := h.io(ctx, "reset", name, h.dev.Reset); err != nil {
		h.log.Warn("Failed to reset filter system", "system", name, "error", err)
	}
	if err := h.dev.Close(); err != nil {
		h.log.Warn("Failed to close filter system", "system", name, "error", err)
	}
	releaseSystem(*h.sys, h.id)
	h.sys = nil
	h.dev = nil
	h.state = DeviceState{}
	h.log.Info("Filter system closed", "system", name)
}

// System returns the descriptor of the open system.
func (h *Handle) System() (SystemDescriptor, error) {
	if err := h.lock(true); err != nil {
		return SystemDescriptor{}, err
	}
	defer h.mu.Unlock()
	return copySystem(*h.sys), nil
}

// Wavelength returns the current central wavelength in nanometers.
func (h *Handle) Wavelength() (float64, error) {
	if err := h.lock(true); err != nil {
		return 0, err
	}
	defer h.mu.Unlock()
	return h.state.Wavelength, nil
}

// SetWavelength tunes the open system to nm. The current grating is kept
// when it covers nm, otherwise the first grating covering nm is selected.
func (h *Handle) SetWavelength(ctx context.Context, nm float64) error {
	if err := h.lock(true); err != nil {
		return err
	}
	defer h.mu.Unlock()

	if math.IsNaN(nm) || nm < h.sys.MinWavelength || nm > h.sys.MaxWavelength {
		return fmt.Errorf("%g nm outside [%g, %g]: %w", nm, h.sys.MinWavelength, h.sys.MaxWavelength, ErrInvalidWavelength)
	}
	grating := -1
	if h.sys.Gratings[h.state.Grating].Contains(nm) {
		grating = h.state.Grating
	} else {
		for _, g := range h.sys.Gratings {
			if g.Contains(nm) {
				grating = g.Index
				break
			}
		}
	}
	if grating < 0 {
		return fmt.Errorf("%g nm not covered by any grating: %w", nm, ErrInvalidWavelength)
	}
	return h.tuneLocked(ctx, grating, nm)
}

func (h *Handle) tuneLocked(ctx context.Context, grating int, nm float64) error {
	err := h.io(ctx, "tune", h.sys.Name, func(ctx context.Context) error {
		return h.dev.Tune(ctx, grating, nm)
	})
	if err != nil {
		h.log.Warn("Failed to tune filter", "system", h.sys.Name, "grating", grating, "wavelength_nm", nm, "error", err)
		return err
	}
	h.state.Grating = grating
	h.state.Wavelength = nm
	h.log.Debug("Filter tuned", "system", h.sys.Name, "grating", grating, "wavelength_nm", nm)
	return nil
}

// WavelengthRange returns the regular tuning bounds of the open system.
func (h *Handle) WavelengthRange() (minimum, maximum float64, err error) {
	if err := h.lock(true); err != nil {
		return 0, 0, err
	}
	defer h.mu.Unlock()
	return h.sys.MinWavelength, h.sys.MaxWavelength, nil
}

// HasHarmonicFilter reports whether the open system has the harmonic filter
// accessory. It returns false when nothing is open.
func (h *Handle) HasHarmonicFilter() bool {
	if err := h.lock(true); err != nil {
		return false
	}
	defer h.mu.Unlock()
	return h.sys.HarmonicFilter
}

// HarmonicFilterEnabled returns the state of the harmonic filter.
func (h *Handle) HarmonicFilterEnabled() (bool, error) {
	if err := h.lock(true); err != nil {
		return false, err
	}
	defer h.mu.Unlock()
	if !h.sys.HarmonicFilter {
		return false, ErrMissingHarmonicFilter
	}
	return h.state.HarmonicFilter, nil
}

// SetHarmonicFilterEnabled switches the harmonic filter on or off.
func (h *Handle) SetHarmonicFilterEnabled(ctx context.Context, enable bool) error {
	if err := h.lock(true); err != nil {
		return err
	}
	defer h.mu.Unlock()
	if !h.sys.HarmonicFilter {
		return fmt.Errorf("system %q: %w", h.sys.Name, ErrMissingHarmonicFilter)
	}
	err := h.io(ctx, "harmonic", h.sys.Name, func(ctx context.Context) error {
		return h.dev.SetHarmonicFilter(ctx, enable)
	})
	if err != nil {
		return err
	}
	h.state.HarmonicFilter = enable
	return nil
}

// GratingCount returns the number of gratings of the open system.
func (h *Handle) GratingCount() (int, error) {
	if err := h.lock(true); err != nil {
		return 0, err
	}
	defer h.mu.Unlock()
	return len(h.sys.Gratings), nil
}

func (h *Handle) gratingLocked(index int) (GratingDescriptor, error) {
	if index < 0 || index >= len(h.sys.Gratings) {
		return GratingDescriptor{}, fmt.Errorf("grating %d of %d: %w", index, len(h.sys.Gratings), ErrInvalidGrating)
	}
	return h.sys.Gratings[index], nil
}

// GratingName returns the name of the grating at index.
func (h *Handle) GratingName(index int) (string, error) {
	if err := h.lock(true); err != nil {
		return "", err
	}
	defer h.mu.Unlock()
	g, err := h.gratingLocked(index)
	return g.Name, err
}

// GratingNameInto writes the NUL-terminated grating name into buf.
func (h *Handle) GratingNameInto(index int, buf []byte) error {
	if err := h.lock(true); err != nil {
		return err
	}
	defer h.mu.Unlock()
	if buf == nil {
		return ErrInvalidBuffer
	}
	g, err := h.gratingLocked(index)
	if err != nil {
		return err
	}
	return copyName(buf, g.Name)
}

// GratingWavelengthRange returns the regular range of the grating at index.
func (h *Handle) GratingWavelengthRange(index int) (minimum, maximum float64, err error) {
	if err := h.lock(true); err != nil {
		return 0, 0, err
	}
	defer h.mu.Unlock()
	g, err := h.gratingLocked(index)
	return g.Min, g.Max, err
}

// GratingWavelengthExtendedRange returns the extended range of the grating
// at index. Tuning in the extended range trades accuracy for reach.
func (h *Handle) GratingWavelengthExtendedRange(index int) (minimum, maximum float64, err error) {
	if err := h.lock(true); err != nil {
		return 0, 0, err
	}
	defer h.mu.Unlock()
	g, err := h.gratingLocked(index)
	return g.ExtendedMin, g.ExtendedMax, err
}

// SetWavelengthOnGrating selects the grating at index and tunes it to nm,
// which may lie anywhere in the grating's extended range.
func (h *Handle) SetWavelengthOnGrating(ctx context.Context, index int, nm float64) error {
	if err := h.lock(true); err != nil {
		return err
	}
	defer h.mu.Unlock()
	g, err := h.gratingLocked(index)
	if err != nil {
		return err
	}
	if math.IsNaN(nm) || !g.ContainsExtended(nm) {
		return fmt.Errorf("%g nm outside grating %q [%g, %g]: %w", nm, g.Name, g.ExtendedMin, g.ExtendedMax, ErrInvalidWavelength)
	}
	return h.tuneLocked(ctx, index, nm)
}

// Grating returns the index of the selected grating.
func (h *Handle) Grating() (int, error) {
	if err := h.lock(true); err != nil {
		return 0, err
	}
	defer h.mu.Unlock()
	return h.state.Grating, nil
}

func copyName(buf []byte, name string) error {
	if len(buf) < len(name)+1 {
		return fmt.Errorf("need %d bytes, have %d: %w", len(name)+1, len(buf), ErrInvalidBufferSize)
	}
	n := copy(buf, name)
	buf[n] = 0
	return nil
}

func copySystem(s SystemDescriptor) SystemDescriptor {
	s.Gratings = append([]GratingDescriptor(nil), s.Gratings...)
	return s
}
