package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-logr/logr"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/solver"
)

// Settings are fixed when the world is created.
type Settings struct {
	Layers             *layers.Table
	ObjectVsBroadPhase layers.ObjectVsBroadPhaseLayerFilter
	PairFilter         layers.ObjectLayerPairFilter

	MaxBodies uint
	// NumBodyMutexes of 0 picks a count based on the CPU count.
	NumBodyMutexes        uint
	MaxBodyPairs          uint
	MaxContactConstraints uint

	Gravity mgl64.Vec3

	// Bodies moving slower than SleepVelocity for TimeBeforeSleep seconds
	// are put to sleep.
	SleepVelocity   float64
	TimeBeforeSleep float64
}

func DefaultSettings() Settings {
	return Settings{
		Layers:                layers.DefaultTable(),
		ObjectVsBroadPhase:    layers.DefaultObjectVsBroadPhase,
		PairFilter:            layers.DefaultPairFilter,
		MaxBodies:             1024,
		MaxBodyPairs:          1024,
		MaxContactConstraints: 1024,
		Gravity:               mgl64.Vec3{0, -9.81, 0},
		SleepVelocity:         0.03,
		TimeBeforeSleep:       0.5,
	}
}

func (s *Settings) validate() error {
	switch {
	case s.Layers == nil:
		return fmt.Errorf("%w: nil layer table", ErrInvalidSettings)
	case s.ObjectVsBroadPhase == nil || s.PairFilter == nil:
		return fmt.Errorf("%w: nil layer filter", ErrInvalidSettings)
	case s.MaxBodies == 0:
		return fmt.Errorf("%w: max bodies must be positive", ErrInvalidSettings)
	case s.MaxBodyPairs == 0 || s.MaxContactConstraints == 0:
		return fmt.Errorf("%w: pair and contact limits must be positive", ErrInvalidSettings)
	case s.SleepVelocity < 0 || s.TimeBeforeSleep <= 0:
		return fmt.Errorf("%w: sleep parameters", ErrInvalidSettings)
	}
	for _, g := range s.Gravity {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return fmt.Errorf("%w: non-finite gravity", ErrInvalidSettings)
		}
	}
	return nil
}

type Option func(*World)

// WithSolver replaces the default AABB contact solver.
func WithSolver(s solver.Service) Option {
	return func(w *World) { w.solver = s }
}

func WithLogger(l logr.Logger) Option {
	return func(w *World) { w.log = l }
}
