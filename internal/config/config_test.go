package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/layers"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Steps() != 180 {
		t.Errorf("expected 180 steps, got %d", cfg.Steps())
	}
	if cfg.Gravity()[1] != -9.81 {
		t.Errorf("gravity = %v", cfg.Gravity())
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range ListPresets() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("preset %s missing", name)
		}
		if cfg.Scene != name {
			t.Errorf("preset %s has scene %q", name, cfg.Scene)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestGetPresetReturnsCopy(t *testing.T) {
	a := GetPreset("drop")
	a.Bodies[1].Position[1] = 100
	if b := GetPreset("drop"); b.Bodies[1].Position[1] != 5 {
		t.Error("preset mutation leaked")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"negative duration", func(c *Config) { c.Duration = -1 }},
		{"zero sub steps", func(c *Config) { c.SubSteps = 0 }},
		{"zero pairs", func(c *Config) { c.World.MaxBodyPairs = 0 }},
		{"unknown motion", func(c *Config) { c.Bodies[1].Motion = "floating" }},
		{"unknown layer", func(c *Config) { c.Bodies[1].Layer = "nowhere" }},
		{"unknown shape", func(c *Config) { c.Bodies[1].Shape = "torus" }},
		{"degenerate shape", func(c *Config) { c.Bodies[1].Params["hy"] = 0 }},
		{"too many bodies", func(c *Config) { c.World.MaxBodies = 1 }},
		{"layer mismatch", func(c *Config) {
			c.Layers = &LayerConfig{Names: []string{"a", "b"}, BroadPhase: []uint8{0}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetPreset("drop")
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	want := GetPreset("stack")
	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	cfg := GetPreset("drop")
	cfg.Dt = -1
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load = %v, want ErrInvalidConfig", err)
	}
}

func TestCustomLayers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Layers = &LayerConfig{
		Names:      []string{"static", "props", "ghosts"},
		BroadPhase: []uint8{0, 1, 1},
		Collide:    [][2]string{{"static", "props"}, {"props", "props"}},
	}
	table, objVsBp, pairs, err := cfg.LayerTable()
	if err != nil {
		t.Fatal(err)
	}
	if table.NumLayers() != 3 || table.NumBroadPhaseLayers() != 2 {
		t.Fatalf("table has %d layers, %d bp layers", table.NumLayers(), table.NumBroadPhaseLayers())
	}
	if !pairs(0, 1) || !pairs(1, 1) || pairs(2, 1) || pairs(0, 0) {
		t.Error("pair filter does not follow collide list")
	}
	if !objVsBp(1, 0) || objVsBp(2, 0) || objVsBp(2, 1) {
		t.Error("broad-phase filter does not follow collide list")
	}
}

func TestCreationSettings(t *testing.T) {
	friction := 0.8
	b := BodyConfig{
		Shape:    "box",
		Motion:   "kinematic",
		Layer:    "moving",
		Position: [3]float64{1, 2, 3},
		Spacing:  [3]float64{0, 1, 0},
		Count:    3,
		Friction: &friction,
		Asleep:   true,
	}
	s, err := b.BuildShape()
	if err != nil {
		t.Fatal(err)
	}
	cs, err := b.CreationSettings(layers.DefaultTable(), s, 2)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Position[1] != 4 || cs.MotionType != body.Kinematic || cs.ObjectLayer != layers.Moving {
		t.Errorf("settings = %+v", cs)
	}
	if cs.Friction != 0.8 || b.Activation() != body.DontActivate || b.Copies() != 3 {
		t.Errorf("friction %v activation %v copies %d", cs.Friction, b.Activation(), b.Copies())
	}
}
