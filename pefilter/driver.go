package pefilter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// DeviceState is the tuning state reported by a device.
type DeviceState struct {
	Grating        int
	Wavelength     float64
	HarmonicFilter bool
}

// ErrDeviceBusy marks a unit held by another connection. Drivers wrap it
// when the hardware refuses a second client.
var ErrDeviceBusy = errors.New("filter unit is in use")

// Driver connects to physical filter units of one kind.
type Driver interface {
	Connect(ctx context.Context, sys SystemDescriptor) (Device, error)
}

// Device is an open connection to one filter unit. Calls may block on I/O
// and must honor ctx.
type Device interface {
	State(ctx context.Context) (DeviceState, error)
	Tune(ctx context.Context, grating int, wavelength float64) error
	SetHarmonicFilter(ctx context.Context, enabled bool) error
	// Reset returns the unit to its power-on state.
	Reset(ctx context.Context) error
	Close() error
}

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{
		SimulatedDriverName: SimulatedDriver{},
	}
)

// RegisterDriver makes a driver available to configuration files under name.
// Registering the same name twice replaces the previous driver.
func RegisterDriver(name string, d Driver) {
	if d == nil {
		panic("pefilter: RegisterDriver driver is nil")
	}
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = d
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupDriver(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return d, ok
}

// Physical units are held by at most one open handle per process.
var (
	claimsMu sync.Mutex
	claims   = map[string]string{}
)

func claimKey(sys SystemDescriptor) string {
	return sys.Driver + "://" + sys.Address
}

func claimSystem(sys SystemDescriptor, owner string) error {
	claimsMu.Lock()
	defer claimsMu.Unlock()
	key := claimKey(sys)
	if holder, ok := claims[key]; ok && holder != owner {
		return fmt.Errorf("system %q (%s) is already open by handle %s: %w: %w", sys.Name, key, holder, ErrFailure, ErrDeviceBusy)
	}
	claims[key] = owner
	return nil
}

func releaseSystem(sys SystemDescriptor, owner string) {
	claimsMu.Lock()
	defer claimsMu.Unlock()
	key := claimKey(sys)
	if claims[key] == owner {
		delete(claims, key)
	}
}

// checkState rejects device-reported state that does not fit sys.
func checkState(sys SystemDescriptor, state DeviceState) error {
	if state.Grating < 0 || state.Grating >= len(sys.Gratings) {
		return fmt.Errorf("system %q reports grating %d of %d: %w", sys.Name, state.Grating, len(sys.Gratings), ErrFailure)
	}
	if !finite(state.Wavelength) {
		return fmt.Errorf("system %q reports wavelength %g: %w", sys.Name, state.Wavelength, ErrFailure)
	}
	return nil
}
