package config

import "sort"

var Presets = map[string]map[string]*Config{
	"cavity": {
		"re100": preset(func(c *Config) {
			c.Grid.N = []int{32, 32}
			c.Viscosity = 0.01
			c.Time = TimeConfig{TEnd: 5, CFL: 0.5, NAdapt: 10, MaxDt: 0.02}
		}),
		"re1000": preset(func(c *Config) {
			c.Grid.N = []int{48, 48}
			c.Viscosity = 0.001
			c.Method.Name = "SSP43"
			c.Time = TimeConfig{TEnd: 10, CFL: 0.4, NAdapt: 5, MaxDt: 0.01}
		}),
		"oscillating": preset(func(c *Config) {
			c.Grid.N = []int{24, 24}
			c.Viscosity = 0.01
			c.Lid.Frequency = 0.5
			c.Method.Name = "ABCN"
			c.Time = TimeConfig{TEnd: 4, Dt: 0.005}
		}),
		"implicit": preset(func(c *Config) {
			c.Grid.N = []int{10, 10}
			c.Viscosity = 0.02
			c.Method.Name = "GL1"
			c.Method.Newton = "full"
			c.Time = TimeConfig{TEnd: 1, Dt: 0.05}
		}),
		"box3d": preset(func(c *Config) {
			c.Grid.N = []int{10, 10, 10}
			c.Viscosity = 0.02
			c.Time = TimeConfig{TEnd: 1, Dt: 0.01}
		}),
	},
	"periodic": {
		"taylor_green": preset(func(c *Config) {
			c.Case = "periodic"
			c.Grid.N = []int{32, 32}
			c.Viscosity = 0.01
			c.Initial = InitialConfig{Kind: "taylor_green", Amplitude: 1}
			c.Time = TimeConfig{TEnd: 2, Dt: 0.01}
		}),
		"shear_layer": preset(func(c *Config) {
			c.Case = "periodic"
			c.Grid.N = []int{64, 64}
			c.Viscosity = 1e-4
			c.Initial = InitialConfig{Kind: "shear_layer", Amplitude: 1, Width: 1.0 / 30}
			c.Method.Name = "OneLeg"
			c.Time = TimeConfig{TEnd: 2, CFL: 0.3, NAdapt: 5, MaxDt: 0.01}
		}),
		"filtered": preset(func(c *Config) {
			c.Case = "periodic"
			c.Grid.N = []int{32, 32}
			c.Grid.Wide = true
			c.Viscosity = 1e-4
			c.Initial = InitialConfig{Kind: "random", Amplitude: 1}
			c.Convection = ConvectionConfig{Regularization: "c2", Order4: true, FilterAlpha: 1e-4, NewtonFactor: 1}
			c.Time = TimeConfig{TEnd: 1, CFL: 0.5, NAdapt: 10}
		}),
		"leray": preset(func(c *Config) {
			c.Case = "periodic"
			c.Grid.N = []int{32, 32}
			c.Viscosity = 1e-4
			c.Initial = InitialConfig{Kind: "shear_layer", Amplitude: 1, Width: 1.0 / 30}
			c.Convection = ConvectionConfig{Regularization: "leray", FilterAlpha: 5e-4, NewtonFactor: 1}
			c.Time = TimeConfig{TEnd: 1, Dt: 0.005}
		}),
		"kolmogorov": preset(func(c *Config) {
			c.Case = "periodic"
			c.Grid.N = []int{32, 32}
			c.Viscosity = 0.01
			c.Initial = InitialConfig{Kind: "random", Amplitude: 0.1}
			c.Force = ForceConfig{Kind: "kolmogorov", Amplitude: 1, Wavenumber: 4, Sigma: 0.1}
			c.Time = TimeConfig{TEnd: 5, CFL: 0.5, NAdapt: 10, MaxDt: 0.02}
		}),
	},
	"channel": {
		"poiseuille": preset(func(c *Config) {
			c.Case = "channel"
			c.Grid.N = []int{16, 16}
			c.Viscosity = 0.05
			c.Force = ForceConfig{Kind: "constant", Amplitude: 1}
			c.Method.Name = "ABCN"
			c.Time = TimeConfig{TEnd: 3, Dt: 0.01}
		}),
	},
}

func preset(edit func(c *Config)) *Config {
	c := DefaultConfig()
	edit(c)
	return c
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(kind, name string) *Config {
	casePresets, ok := Presets[kind]
	if !ok {
		return nil
	}
	cfg, ok := casePresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(kind string) []string {
	casePresets, ok := Presets[kind]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(casePresets))
	for name := range casePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Cases() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
