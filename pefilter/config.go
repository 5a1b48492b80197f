package pefilter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ConfigVersion is the only configuration format version understood.
const ConfigVersion = 1

// GratingDescriptor describes one selectable grating of a system.
type GratingDescriptor struct {
	Index       int
	Name        string
	Min         float64
	Max         float64
	ExtendedMin float64
	ExtendedMax float64
}

// Contains reports whether nm lies in the regular (calibrated) range.
func (g GratingDescriptor) Contains(nm float64) bool {
	return nm >= g.Min && nm <= g.Max
}

// ContainsExtended reports whether nm lies in the extended range.
func (g GratingDescriptor) ContainsExtended(nm float64) bool {
	return nm >= g.ExtendedMin && nm <= g.ExtendedMax
}

// SystemDescriptor describes one configured filter unit. MinWavelength and
// MaxWavelength span the regular ranges of all gratings.
type SystemDescriptor struct {
	Name           string
	Driver         string
	Address        string
	HarmonicFilter bool
	MinWavelength  float64
	MaxWavelength  float64
	Gratings       []GratingDescriptor
}

// Config is a parsed configuration file.
type Config struct {
	Path    string
	Version int
	Systems []SystemDescriptor
}

// System looks up a system by name.
func (c *Config) System(name string) (SystemDescriptor, bool) {
	for _, s := range c.Systems {
		if s.Name == name {
			return s, true
		}
	}
	return SystemDescriptor{}, false
}

type xmlConfig struct {
	XMLName xml.Name    `xml:"PEFilterConfiguration"`
	Version string      `xml:"version,attr"`
	Systems []xmlSystem `xml:"System"`
}

type xmlSystem struct {
	Name           string       `xml:"name,attr"`
	Driver         string       `xml:"driver,attr"`
	Address        string       `xml:"address,attr"`
	HarmonicFilter bool         `xml:"harmonicFilter,attr"`
	Gratings       []xmlGrating `xml:"Grating"`
}

type xmlGrating struct {
	Name        string   `xml:"name,attr"`
	Min         float64  `xml:"min,attr"`
	Max         float64  `xml:"max,attr"`
	ExtendedMin *float64 `xml:"extendedMin,attr"`
	ExtendedMax *float64 `xml:"extendedMax,attr"`
}

// LoadConfig reads and validates the XML configuration at path.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("empty configuration path: %w", ErrMissingConfigFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration %s: %v: %w", path, err, ErrMissingConfigFile)
	}
	cfg, err := ParseConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("configuration %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// ParseConfig decodes and validates a configuration document.
func ParseConfig(r io.Reader) (*Config, error) {
	var doc xmlConfig
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %v: %w", err, ErrInvalidConfiguration)
	}

	cfg := &Config{Version: ConfigVersion}
	if v := strings.TrimSpace(doc.Version); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("version %q: %w", v, ErrInvalidConfiguration)
		}
		if n != ConfigVersion {
			return nil, fmt.Errorf("version %d: %w", n, ErrUnsupportedConfiguration)
		}
		cfg.Version = n
	}

	if len(doc.Systems) == 0 {
		return nil, fmt.Errorf("no systems defined: %w", ErrInvalidConfiguration)
	}

	seen := make(map[string]bool, len(doc.Systems))
	for _, xs := range doc.Systems {
		sys, err := xs.descriptor()
		if err != nil {
			return nil, err
		}
		if seen[sys.Name] {
			return nil, fmt.Errorf("duplicate system %q: %w", sys.Name, ErrInvalidConfiguration)
		}
		seen[sys.Name] = true
		cfg.Systems = append(cfg.Systems, sys)
	}
	return cfg, nil
}

func (xs xmlSystem) descriptor() (SystemDescriptor, error) {
	name := strings.TrimSpace(xs.Name)
	if name == "" {
		return SystemDescriptor{}, fmt.Errorf("system without name: %w", ErrInvalidConfiguration)
	}

	sys := SystemDescriptor{
		Name:           name,
		Driver:         strings.TrimSpace(xs.Driver),
		Address:        strings.TrimSpace(xs.Address),
		HarmonicFilter: xs.HarmonicFilter,
	}
	if sys.Driver == "" {
		sys.Driver = SimulatedDriverName
	}
	if sys.Address == "" {
		sys.Address = name
	}
	if _, ok := lookupDriver(sys.Driver); !ok {
		return SystemDescriptor{}, fmt.Errorf("system %q: driver %q: %w", name, sys.Driver, ErrUnsupportedConfiguration)
	}
	if len(xs.Gratings) == 0 {
		return SystemDescriptor{}, fmt.Errorf("system %q has no grating: %w", name, ErrUnsupportedConfiguration)
	}

	for i, xg := range xs.Gratings {
		g := GratingDescriptor{
			Index:       i,
			Name:        strings.TrimSpace(xg.Name),
			Min:         xg.Min,
			Max:         xg.Max,
			ExtendedMin: xg.Min,
			ExtendedMax: xg.Max,
		}
		if xg.ExtendedMin != nil {
			g.ExtendedMin = *xg.ExtendedMin
		}
		if xg.ExtendedMax != nil {
			g.ExtendedMax = *xg.ExtendedMax
		}
		if g.Name == "" {
			return SystemDescriptor{}, fmt.Errorf("system %q: grating %d without name: %w", name, i, ErrInvalidConfiguration)
		}
		if !finite(g.Min, g.Max, g.ExtendedMin, g.ExtendedMax) {
			return SystemDescriptor{}, fmt.Errorf("system %q: grating %q: non-finite wavelength: %w", name, g.Name, ErrInvalidConfiguration)
		}
		if g.Min <= 0 || g.Min >= g.Max {
			return SystemDescriptor{}, fmt.Errorf("system %q: grating %q: range [%g, %g]: %w", name, g.Name, g.Min, g.Max, ErrInvalidConfiguration)
		}
		if g.ExtendedMin > g.Min || g.ExtendedMax < g.Max {
			return SystemDescriptor{}, fmt.Errorf("system %q: grating %q: extended range [%g, %g] does not contain [%g, %g]: %w",
				name, g.Name, g.ExtendedMin, g.ExtendedMax, g.Min, g.Max, ErrInvalidConfiguration)
		}

		if i == 0 || g.Min < sys.MinWavelength {
			sys.MinWavelength = g.Min
		}
		if i == 0 || g.Max > sys.MaxWavelength {
			sys.MaxWavelength = g.Max
		}
		sys.Gratings = append(sys.Gratings, g)
	}
	return sys, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
