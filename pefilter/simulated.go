package pefilter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v2"
)

// SimulatedDriverName is the driver used when a system does not name one.
const SimulatedDriverName = "simulated"

// SimSpecEnv holds either inline YAML or a path to a YAML file describing
// simulated faults.
const SimSpecEnv = "PEFILTER_SIM_SPEC"

var (
	ErrSimUnreachable = errors.New("simulated unit does not answer")
	ErrSimStalled     = errors.New("simulated tuning stage stalled")
)

// SimulationSpec configures the simulated driver. Unreachable, Busy and
// FaultyTuning match system names or addresses.
type SimulationSpec struct {
	Latency      time.Duration `yaml:"Latency"`
	Unreachable  []string      `yaml:"Unreachable"`
	Busy         []string      `yaml:"Busy"`
	FaultyTuning []string      `yaml:"FaultyTuning"`
}

func (s *SimulationSpec) matches(list []string, sys SystemDescriptor) bool {
	for _, v := range list {
		if v == sys.Name || v == sys.Address {
			return true
		}
	}
	return false
}

// ParseSimulationSpec parses a YAML simulation spec.
func ParseSimulationSpec(data []byte) (*SimulationSpec, error) {
	spec := &SimulationSpec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("error parsing simulation spec: %v", err)
	}
	if spec.Latency < 0 {
		return nil, fmt.Errorf("negative simulated latency %s", spec.Latency)
	}
	return spec, nil
}

// LoadSimulationSpec interprets value the way SimSpecEnv is interpreted:
// empty or "default" yields no faults, an existing file path is read,
// anything else is parsed as inline YAML.
func LoadSimulationSpec(value string) (*SimulationSpec, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "default" {
		return &SimulationSpec{}, nil
	}
	if fi, err := os.Stat(value); err == nil && !fi.IsDir() {
		data, err := os.ReadFile(value)
		if err != nil {
			return nil, fmt.Errorf("read simulation spec %s: %w", value, err)
		}
		return ParseSimulationSpec(data)
	}
	return ParseSimulationSpec([]byte(value))
}

// SimulatedDriver drives in-memory filter units. A nil Spec is loaded from
// SimSpecEnv on every Connect.
type SimulatedDriver struct {
	Spec *SimulationSpec
}

// Connect implements Driver.
func (d SimulatedDriver) Connect(ctx context.Context, sys SystemDescriptor) (Device, error) {
	spec := d.Spec
	if spec == nil {
		var err error
		spec, err = LoadSimulationSpec(os.Getenv(SimSpecEnv))
		if err != nil {
			return nil, err
		}
	}

	dev := &simDevice{sys: sys, spec: spec}
	if err := dev.wait(ctx); err != nil {
		return nil, err
	}
	if spec.matches(spec.Unreachable, sys) {
		return nil, fmt.Errorf("connect %s: %w", sys.Address, ErrSimUnreachable)
	}
	if spec.matches(spec.Busy, sys) {
		return nil, fmt.Errorf("connect %s: %w", sys.Address, ErrDeviceBusy)
	}
	dev.state = dev.powerOnState()
	return dev, nil
}

type simDevice struct {
	mu     sync.Mutex
	sys    SystemDescriptor
	spec   *SimulationSpec
	state  DeviceState
	closed bool
}

// powerOnState parks the unit on its first grating, centred in the regular
// range, with the harmonic filter off.
func (d *simDevice) powerOnState() DeviceState {
	g := d.sys.Gratings[0]
	return DeviceState{Grating: 0, Wavelength: (g.Min + g.Max) / 2}
}

func (d *simDevice) wait(ctx context.Context) error {
	if d.spec.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d.spec.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *simDevice) begin(ctx context.Context) error {
	if err := d.wait(ctx); err != nil {
		return err
	}
	if d.closed {
		return errors.New("simulated unit is closed")
	}
	return nil
}

func (d *simDevice) State(ctx context.Context) (DeviceState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx); err != nil {
		return DeviceState{}, err
	}
	return d.state, nil
}

func (d *simDevice) Tune(ctx context.Context, grating int, wavelength float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx); err != nil {
		return err
	}
	if grating < 0 || grating >= len(d.sys.Gratings) {
		return fmt.Errorf("grating %d: %w", grating, ErrInvalidGrating)
	}
	if !d.sys.Gratings[grating].ContainsExtended(wavelength) {
		return fmt.Errorf("%g nm: %w", wavelength, ErrInvalidWavelength)
	}
	if d.spec.matches(d.spec.FaultyTuning, d.sys) {
		return ErrSimStalled
	}
	d.state.Grating = grating
	d.state.Wavelength = wavelength
	return nil
}

func (d *simDevice) SetHarmonicFilter(ctx context.Context, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx); err != nil {
		return err
	}
	if !d.sys.HarmonicFilter {
		return ErrMissingHarmonicFilter
	}
	d.state.HarmonicFilter = enabled
	return nil
}

func (d *simDevice) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx); err != nil {
		return err
	}
	d.state = d.powerOnState()
	return nil
}

func (d *simDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
