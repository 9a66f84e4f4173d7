package body

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/shape"
)

// CreationSettings describes a body to create. It is consumed by value.
type CreationSettings struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	UserData        uint64
	ObjectLayer     layers.ObjectLayer
	CollisionGroup  CollisionGroup
	MotionType      MotionType
	IsSensor        bool
	AllowSleeping   bool

	Friction           float64
	Restitution        float64
	LinearDamping      float64
	AngularDamping     float64
	MaxLinearVelocity  float64
	MaxAngularVelocity float64
	GravityFactor      float64

	// MassOverride replaces the mass computed from the shape when > 0.
	MassOverride      float64
	InertiaMultiplier float64

	Shape shape.Shape
}

func DefaultCreationSettings() CreationSettings {
	return CreationSettings{
		Rotation:           mgl64.QuatIdent(),
		MotionType:         Dynamic,
		AllowSleeping:      true,
		Friction:           0.2,
		Restitution:        0,
		LinearDamping:      0.05,
		AngularDamping:     0.05,
		MaxLinearVelocity:  500,
		MaxAngularVelocity: 0.25 * math.Pi * 60,
		GravityFactor:      1,
		InertiaMultiplier:  1,
	}
}

func NewCreationSettings(s shape.Shape, pos mgl64.Vec3, rot mgl64.Quat, motion MotionType, layer layers.ObjectLayer) CreationSettings {
	c := DefaultCreationSettings()
	c.Shape = s
	c.Position = pos
	c.Rotation = rot
	c.MotionType = motion
	c.ObjectLayer = layer
	return c
}

func (s *CreationSettings) validate(table *layers.Table) error {
	if s.Shape == nil {
		return fmt.Errorf("%w: nil shape", ErrInvalidShape)
	}
	if !s.Shape.Valid() {
		return fmt.Errorf("%w: degenerate %s", ErrInvalidShape, s.Shape.Type())
	}
	if !table.Valid(s.ObjectLayer) {
		return fmt.Errorf("%w: %d", layers.ErrInvalidLayer, s.ObjectLayer)
	}
	if s.MotionType > Dynamic {
		return fmt.Errorf("%w: motion type %d", ErrInvalidSettings, s.MotionType)
	}
	if !finite(s.Position) || !finite(s.LinearVelocity) || !finite(s.AngularVelocity) {
		return fmt.Errorf("%w: non-finite transform or velocity", ErrInvalidSettings)
	}
	if s.Friction < 0 || s.Restitution < 0 || s.LinearDamping < 0 || s.AngularDamping < 0 {
		return fmt.Errorf("%w: negative material parameter", ErrInvalidSettings)
	}
	if s.MaxLinearVelocity <= 0 || s.MaxAngularVelocity <= 0 {
		return fmt.Errorf("%w: velocity limits must be positive", ErrInvalidSettings)
	}
	if s.InertiaMultiplier <= 0 {
		return fmt.Errorf("%w: inertia multiplier must be positive", ErrInvalidSettings)
	}
	return nil
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
