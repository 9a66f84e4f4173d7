// Package shape is the narrow shape service consumed by the physics
// runtime: world-space bounds and mass properties of collision shapes.
package shape

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultDensity of solid shapes in kg/m^3.
const DefaultDensity = 1000.0

var (
	ErrDegenerate   = errors.New("shape: degenerate shape")
	ErrUnknownShape = errors.New("shape: unknown shape type")
)

type MassProperties struct {
	Mass float64
	// Inertia is the diagonal of the local-space inertia tensor.
	Inertia mgl64.Vec3
}

type Shape interface {
	Type() string
	// Bounds returns the world-space box enclosing the shape at the given transform.
	Bounds(pos mgl64.Vec3, rot mgl64.Quat) AABB
	MassProperties() MassProperties
	// Valid reports whether the shape has a usable, non-degenerate volume.
	Valid() bool
}

type Box struct {
	HalfExtent   mgl64.Vec3
	ConvexRadius float64
	Density      float64
}

func NewBox(halfExtent mgl64.Vec3, convexRadius float64) *Box {
	return &Box{HalfExtent: halfExtent, ConvexRadius: convexRadius, Density: DefaultDensity}
}

func (b *Box) Type() string { return "box" }

func (b *Box) Valid() bool {
	h := b.HalfExtent
	for i := 0; i < 3; i++ {
		if !(h[i] > 0) || math.IsInf(h[i], 0) {
			return false
		}
	}
	minHalf := math.Min(h[0], math.Min(h[1], h[2]))
	return b.ConvexRadius >= 0 && b.ConvexRadius <= minHalf && b.Density > 0
}

func (b *Box) Bounds(pos mgl64.Vec3, rot mgl64.Quat) AABB {
	r := rot.Normalize().Mat4().Mat3()
	h := b.HalfExtent
	var ext mgl64.Vec3
	for i := 0; i < 3; i++ {
		ext[i] = math.Abs(r.At(i, 0))*h[0] + math.Abs(r.At(i, 1))*h[1] + math.Abs(r.At(i, 2))*h[2]
	}
	return AABB{Min: pos.Sub(ext), Max: pos.Add(ext)}
}

func (b *Box) MassProperties() MassProperties {
	h := b.HalfExtent
	m := b.Density * 8 * h[0] * h[1] * h[2]
	return MassProperties{
		Mass: m,
		Inertia: mgl64.Vec3{
			m / 3 * (h[1]*h[1] + h[2]*h[2]),
			m / 3 * (h[0]*h[0] + h[2]*h[2]),
			m / 3 * (h[0]*h[0] + h[1]*h[1]),
		},
	}
}

type Sphere struct {
	Radius  float64
	Density float64
}

func NewSphere(radius float64) *Sphere {
	return &Sphere{Radius: radius, Density: DefaultDensity}
}

func (s *Sphere) Type() string { return "sphere" }

func (s *Sphere) Valid() bool {
	return s.Radius > 0 && !math.IsInf(s.Radius, 0) && s.Density > 0
}

func (s *Sphere) Bounds(pos mgl64.Vec3, _ mgl64.Quat) AABB {
	r := mgl64.Vec3{s.Radius, s.Radius, s.Radius}
	return AABB{Min: pos.Sub(r), Max: pos.Add(r)}
}

func (s *Sphere) MassProperties() MassProperties {
	m := s.Density * 4.0 / 3.0 * math.Pi * s.Radius * s.Radius * s.Radius
	i := 0.4 * m * s.Radius * s.Radius
	return MassProperties{Mass: m, Inertia: mgl64.Vec3{i, i, i}}
}
