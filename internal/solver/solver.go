// Package solver defines the collision and constraint service the world
// step hands contact pairs to, and a reference implementation that
// resolves overlapping bounding boxes.
//
// Inputs are pointer-free so the step can carve them out of its scratch
// arena.
package solver

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/shape"
)

var ErrInvalidPair = errors.New("solver: pair index out of range")

// Body is the working copy of one body for a collision step.
type Body struct {
	ID              body.BodyID
	Layer           layers.ObjectLayer
	Motion          body.MotionType
	Sensor          bool
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	InvMass         float64
	InvInertia      mgl64.Vec3
	Friction        float64
	Restitution     float64
	GravityFactor   float64
	Bounds          shape.AABB
}

// Pair indexes two entries of Input.Bodies.
type Pair struct {
	A, B int32
}

// Result is the response for one body. Impulses are applied as
// v += LinearImpulse * InvMass; PositionCorrection is added to the position.
type Result struct {
	Body               int32
	LinearImpulse      mgl64.Vec3
	AngularImpulse     mgl64.Vec3
	PositionCorrection mgl64.Vec3
}

type Input struct {
	Bodies  []Body
	Pairs   []Pair
	Dt      float64
	Gravity mgl64.Vec3
}

// Service resolves contacts between candidate pairs. Solve must not keep
// references to the input slices after returning.
type Service interface {
	Solve(in Input) ([]Result, error)
}

// Func adapts a function to Service.
type Func func(in Input) ([]Result, error)

func (f Func) Solve(in Input) ([]Result, error) { return f(in) }
