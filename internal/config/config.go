package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid indicates a configuration that cannot describe a run.
var ErrInvalid = errors.New("config: invalid configuration")

const (
	DefaultN         = 32
	DefaultViscosity = 0.01
	DefaultTEnd      = 2.0
	DefaultDt        = 0.005
	DefaultCFL       = 0.5
	DefaultNAdapt    = 10
	DefaultMethod    = "RK44"
	DefaultStartup   = "RK44"
)

type Config struct {
	Case       string           `yaml:"case"`
	Grid       GridConfig       `yaml:"grid"`
	Viscosity  float64          `yaml:"viscosity"`
	Method     MethodConfig     `yaml:"method"`
	Convection ConvectionConfig `yaml:"convection"`
	Pressure   string           `yaml:"pressure"`
	Time       TimeConfig       `yaml:"time"`
	Initial    InitialConfig    `yaml:"initial"`
	Force      ForceConfig      `yaml:"force"`
	Lid        LidConfig        `yaml:"lid"`
	Output     OutputConfig     `yaml:"output"`
	Seed       int64            `yaml:"seed"`
}

type GridConfig struct {
	N      []int     `yaml:"n"`
	Length []float64 `yaml:"length"`
	Wide   bool      `yaml:"wide"`
}

type MethodConfig struct {
	Name     string  `yaml:"name"`
	Startup  string  `yaml:"startup"`
	NStartup int     `yaml:"nstartup"`
	Newton   string  `yaml:"newton"`
	MaxIter  int     `yaml:"maxiter"`
	AbsTol   float64 `yaml:"abstol"`
	RelTol   float64 `yaml:"reltol"`
	// Theta and Beta are nil when unset; the method then uses its own default.
	Theta *float64 `yaml:"theta,omitempty"`
	Beta  *float64 `yaml:"beta,omitempty"`
}

type ConvectionConfig struct {
	Regularization string  `yaml:"regularization"`
	Order4         bool    `yaml:"order4"`
	FilterAlpha    float64 `yaml:"filter_alpha"`
	NewtonFactor   float64 `yaml:"newton_factor"`
	Parallel       bool    `yaml:"parallel"`
}

// TimeConfig selects a fixed step when Dt is positive and an adaptive one
// otherwise.
type TimeConfig struct {
	TEnd   float64 `yaml:"tend"`
	Dt     float64 `yaml:"dt"`
	CFL    float64 `yaml:"cfl"`
	NAdapt int     `yaml:"nadapt"`
	MaxDt  float64 `yaml:"max_dt"`
}

type InitialConfig struct {
	Kind      string  `yaml:"kind"`
	Amplitude float64 `yaml:"amplitude"`
	Width     float64 `yaml:"width"`
}

type ForceConfig struct {
	Kind       string  `yaml:"kind"`
	Amplitude  float64 `yaml:"amplitude"`
	Wavenumber int     `yaml:"wavenumber"`
	Sigma      float64 `yaml:"sigma"`
}

type LidConfig struct {
	Velocity  float64 `yaml:"velocity"`
	Frequency float64 `yaml:"frequency"`
}

type OutputConfig struct {
	Every     int `yaml:"every"`
	Snapshots int `yaml:"snapshots"`
}

func DefaultConfig() *Config {
	return &Config{
		Case:      "cavity",
		Grid:      GridConfig{N: []int{DefaultN, DefaultN}},
		Viscosity: DefaultViscosity,
		Method: MethodConfig{
			Name:     DefaultMethod,
			Startup:  DefaultStartup,
			NStartup: 1,
			Newton:   "approximate",
			MaxIter:  10,
			AbsTol:   1e-12,
			RelTol:   1e-10,
		},
		Convection: ConvectionConfig{Regularization: "none", NewtonFactor: 1},
		Pressure:   "auto",
		Time:       TimeConfig{TEnd: DefaultTEnd, Dt: DefaultDt, CFL: DefaultCFL, NAdapt: DefaultNAdapt},
		Initial:    InitialConfig{Kind: "zero", Amplitude: 1, Width: 0.05},
		Force:      ForceConfig{Kind: "none"},
		Lid:        LidConfig{Velocity: 1},
		Output:     OutputConfig{Every: 10, Snapshots: 20},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Grid.N = append([]int(nil), c.Grid.N...)
	out.Grid.Length = append([]float64(nil), c.Grid.Length...)
	if c.Method.Theta != nil {
		out.Method.Theta = Float(*c.Method.Theta)
	}
	if c.Method.Beta != nil {
		out.Method.Beta = Float(*c.Method.Beta)
	}
	return &out
}

// Validate checks the parts that do not need the method and model
// registries. Names are resolved when the case is built.
func (c *Config) Validate() error {
	switch c.Case {
	case "cavity", "periodic", "channel":
	default:
		return fmt.Errorf("%w: unknown case %q", ErrInvalid, c.Case)
	}
	d := len(c.Grid.N)
	if d < 2 || d > 3 {
		return fmt.Errorf("%w: grid needs 2 or 3 axes, got %d", ErrInvalid, d)
	}
	if len(c.Grid.Length) != 0 && len(c.Grid.Length) != d {
		return fmt.Errorf("%w: %d grid lengths for %d axes", ErrInvalid, len(c.Grid.Length), d)
	}
	for i, n := range c.Grid.N {
		if n < 3 {
			return fmt.Errorf("%w: axis %d has %d cells", ErrInvalid, i, n)
		}
	}
	for i, l := range c.Grid.Length {
		if l <= 0 {
			return fmt.Errorf("%w: axis %d length %g", ErrInvalid, i, l)
		}
	}
	if c.Viscosity < 0 {
		return fmt.Errorf("%w: negative viscosity %g", ErrInvalid, c.Viscosity)
	}
	if c.Method.Name == "" {
		return fmt.Errorf("%w: no method", ErrInvalid)
	}
	if c.Time.TEnd <= 0 {
		return fmt.Errorf("%w: end time must be positive, got %g", ErrInvalid, c.Time.TEnd)
	}
	if c.Time.Dt <= 0 && (c.Time.CFL <= 0 || c.Time.NAdapt <= 0) {
		return fmt.Errorf("%w: need a positive dt or a positive cfl and nadapt", ErrInvalid)
	}
	if c.Convection.FilterAlpha < 0 {
		return fmt.Errorf("%w: negative filter width %g", ErrInvalid, c.Convection.FilterAlpha)
	}
	if c.Output.Every < 0 || c.Output.Snapshots < 0 {
		return fmt.Errorf("%w: negative output cadence", ErrInvalid)
	}
	return nil
}

// Float returns a pointer to v, for the optional settings.
func Float(v float64) *float64 { return &v }

// Lengths returns the domain size, defaulting every axis to 1.
func (c *Config) Lengths() []float64 {
	if len(c.Grid.Length) == len(c.Grid.N) {
		return c.Grid.Length
	}
	out := make([]float64, len(c.Grid.N))
	for i := range out {
		out[i] = 1
	}
	return out
}
