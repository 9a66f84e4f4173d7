package config

import "sort"

func ground() BodyConfig {
	return BodyConfig{
		Name:     "ground",
		Shape:    "box",
		Params:   map[string]float64{"hx": 50, "hy": 0.5, "hz": 50},
		Motion:   "static",
		Layer:    "non_moving",
		Position: [3]float64{0, -0.5, 0},
	}
}

func cube(name string, y float64) BodyConfig {
	return BodyConfig{
		Name:     name,
		Shape:    "box",
		Params:   map[string]float64{"hx": 0.5, "hy": 0.5, "hz": 0.5},
		Motion:   "dynamic",
		Layer:    "moving",
		Position: [3]float64{0, y, 0},
	}
}

func preset(scene string, duration float64, bodies ...BodyConfig) *Config {
	c := DefaultConfig()
	c.Scene = scene
	c.Duration = duration
	c.Bodies = bodies
	return c
}

// Presets are ready-made scenes on the default layer table.
var Presets = map[string]func() *Config{
	"drop": func() *Config {
		return preset("drop", 3, ground(), cube("box", 5))
	},
	"stack": func() *Config {
		s := cube("box", 0.5)
		s.Count = 5
		s.Spacing = [3]float64{0, 1.05, 0}
		return preset("stack", 5, ground(), s)
	},
	"debris": func() *Config {
		d := BodyConfig{
			Name:     "debris",
			Shape:    "sphere",
			Params:   map[string]float64{"radius": 0.2},
			Motion:   "dynamic",
			Layer:    "debris",
			Position: [3]float64{-4, 3, 0},
			Count:    9,
			Spacing:  [3]float64{1, 0.5, 0},
		}
		return preset("debris", 4, ground(), d, cube("box", 6))
	},
	"sensor": func() *Config {
		trigger := BodyConfig{
			Name:     "trigger",
			Shape:    "box",
			Params:   map[string]float64{"hx": 2, "hy": 0.5, "hz": 2},
			Motion:   "static",
			Layer:    "sensor",
			Position: [3]float64{0, 2, 0},
			Sensor:   true,
		}
		return preset("sensor", 3, ground(), trigger, cube("box", 5))
	},
}

// GetPreset returns a fresh copy of the named scene, or nil.
func GetPreset(name string) *Config {
	f, ok := Presets[name]
	if !ok {
		return nil
	}
	return f()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
