package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Case != "cavity" {
		t.Errorf("expected case cavity, got %s", cfg.Case)
	}
	if cfg.Time.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Time.TEnd <= 0 {
		t.Error("end time should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("periodic", "taylor_green")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Initial.Kind != "taylor_green" {
		t.Errorf("expected taylor_green initial field, got %s", cfg.Initial.Kind)
	}
	if cfg.Case != "periodic" {
		t.Errorf("expected periodic case, got %s", cfg.Case)
	}
}

func TestGetPreset_Copy(t *testing.T) {
	a := GetPreset("cavity", "re100")
	a.Grid.N[0] = 99
	a.Viscosity = 5

	b := GetPreset("cavity", "re100")
	if b.Grid.N[0] == 99 || b.Viscosity == 5 {
		t.Error("preset was modified through a returned copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("cavity", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "re100")
	if cfg != nil {
		t.Error("expected nil for nonexistent case")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("periodic")
	if len(presets) == 0 {
		t.Fatal("expected presets for periodic")
	}
	for i := 1; i < len(presets); i++ {
		if presets[i-1] > presets[i] {
			t.Errorf("presets not sorted: %v", presets)
		}
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent case")
	}
}

func TestPresetsValid(t *testing.T) {
	for _, kind := range Cases() {
		for _, name := range ListPresets(kind) {
			cfg := GetPreset(kind, name)
			if cfg.Case != kind {
				t.Errorf("%s/%s: case %q", kind, name, cfg.Case)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s/%s: %v", kind, name, err)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(c *Config)
	}{
		{"unknown case", func(c *Config) { c.Case = "pipe" }},
		{"one axis", func(c *Config) { c.Grid.N = []int{8} }},
		{"length mismatch", func(c *Config) { c.Grid.Length = []float64{1} }},
		{"too few cells", func(c *Config) { c.Grid.N = []int{2, 8} }},
		{"zero length", func(c *Config) { c.Grid.Length = []float64{1, 0} }},
		{"negative viscosity", func(c *Config) { c.Viscosity = -1 }},
		{"no method", func(c *Config) { c.Method.Name = "" }},
		{"no end time", func(c *Config) { c.Time.TEnd = 0 }},
		{"adaptive without cfl", func(c *Config) { c.Time.Dt = 0; c.Time.CFL = 0 }},
		{"negative filter", func(c *Config) { c.Convection.FilterAlpha = -1 }},
		{"negative cadence", func(c *Config) { c.Output.Every = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLengths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grid.N = []int{8, 8, 8}
	cfg.Grid.Length = nil

	l := cfg.Lengths()
	if len(l) != 3 {
		t.Fatalf("expected 3 lengths, got %d", len(l))
	}
	for _, v := range l {
		if v != 1 {
			t.Errorf("expected unit length, got %f", v)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("periodic", "leray")

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Convection.Regularization != "leray" {
		t.Errorf("expected leray, got %s", loaded.Convection.Regularization)
	}
	if loaded.Convection.FilterAlpha != cfg.Convection.FilterAlpha {
		t.Errorf("filter width %g, want %g", loaded.Convection.FilterAlpha, cfg.Convection.FilterAlpha)
	}
	if loaded.Grid.N[0] != 32 {
		t.Errorf("expected 32 cells, got %d", loaded.Grid.N[0])
	}
}

func TestLoad_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte("case: periodic\nviscosity: 0.001\nmethod:\n  name: SSP33\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Method.Name != "SSP33" {
		t.Errorf("expected SSP33, got %s", cfg.Method.Name)
	}
	if cfg.Method.Startup != DefaultStartup {
		t.Errorf("expected default startup, got %s", cfg.Method.Startup)
	}
	if cfg.Time.TEnd != DefaultTEnd {
		t.Errorf("expected default end time, got %f", cfg.Time.TEnd)
	}
}

func TestLoad_ThreeAxesWithoutLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box.yaml")
	data := []byte("case: cavity\ngrid:\n  n: [6, 6, 6]\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Grid.Length != nil {
		t.Errorf("expected no explicit lengths, got %v", cfg.Grid.Length)
	}
	if l := cfg.Lengths(); len(l) != 3 || l[2] != 1 {
		t.Errorf("expected three unit lengths, got %v", l)
	}
}

func TestLoad_MethodParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte("method:\n  name: ABCN\n  theta: 0\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Method.Theta == nil || *cfg.Method.Theta != 0 {
		t.Errorf("expected explicit theta 0, got %v", cfg.Method.Theta)
	}
	if cfg.Method.Beta != nil {
		t.Errorf("expected unset beta, got %v", *cfg.Method.Beta)
	}

	c := cfg.Clone()
	*c.Method.Theta = 1
	if *cfg.Method.Theta != 0 {
		t.Error("clone shares theta with the original")
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("case: pipe\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
