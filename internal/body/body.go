package body

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/shape"
)

type MotionType uint8

const (
	Static MotionType = iota
	Kinematic
	Dynamic
)

func (m MotionType) String() string {
	switch m {
	case Static:
		return "static"
	case Kinematic:
		return "kinematic"
	case Dynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

type Activation uint32

const (
	Activate Activation = iota
	DontActivate
)

// MotionState is the part of a body the simulation step reads and writes.
type MotionState struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	SleepTimer      float64
}

// Body is a rigid body record. Fields other than the motion state and
// user data never change after creation and may be read by anyone holding
// the store's structural lock; everything else needs the body's shard lock.
type Body struct {
	id            BodyID
	layer         layers.ObjectLayer
	motion        MotionType
	sensor        bool
	allowSleeping bool
	group         CollisionGroup
	shape         shape.Shape

	friction       float64
	restitution    float64
	linearDamping  float64
	angularDamping float64
	maxLinearVel   float64
	maxAngularVel  float64
	gravityFactor  float64
	invMass        float64
	invInertia     mgl64.Vec3

	state    MotionState
	userData uint64
	// bumped by every locked motion or activation write
	writes uint32

	inBroadPhase bool
	// guarded by the store's active set lock
	activeIndex int32
}

func newBody(id BodyID, s *CreationSettings) *Body {
	b := &Body{
		id:             id,
		layer:          s.ObjectLayer,
		motion:         s.MotionType,
		sensor:         s.IsSensor,
		allowSleeping:  s.AllowSleeping,
		group:          s.CollisionGroup,
		shape:          s.Shape,
		friction:       s.Friction,
		restitution:    s.Restitution,
		linearDamping:  s.LinearDamping,
		angularDamping: s.AngularDamping,
		maxLinearVel:   s.MaxLinearVelocity,
		maxAngularVel:  s.MaxAngularVelocity,
		gravityFactor:  s.GravityFactor,
		userData:       s.UserData,
		activeIndex:    -1,
	}

	rot := s.Rotation
	if rot.Len() == 0 {
		rot = mgl64.QuatIdent()
	}
	b.state = MotionState{Position: s.Position, Rotation: rot.Normalize()}
	if s.MotionType != Static {
		b.state.LinearVelocity = s.LinearVelocity
		b.state.AngularVelocity = s.AngularVelocity
	}

	if s.MotionType == Dynamic {
		mp := s.Shape.MassProperties()
		mass := mp.Mass
		if s.MassOverride > 0 {
			mass = s.MassOverride
		}
		scale := s.InertiaMultiplier
		if mp.Mass > 0 {
			scale *= mass / mp.Mass
		}
		b.invMass = 1 / mass
		for i := 0; i < 3; i++ {
			if in := mp.Inertia[i] * scale; in > 0 {
				b.invInertia[i] = 1 / in
			}
		}
	}
	return b
}

func (b *Body) ID() BodyID                      { return b.id }
func (b *Body) ObjectLayer() layers.ObjectLayer { return b.layer }
func (b *Body) MotionType() MotionType          { return b.motion }
func (b *Body) IsStatic() bool                  { return b.motion == Static }
func (b *Body) IsDynamic() bool                 { return b.motion == Dynamic }
func (b *Body) IsSensor() bool                  { return b.sensor }
func (b *Body) AllowSleeping() bool             { return b.allowSleeping }
func (b *Body) CollisionGroup() CollisionGroup  { return b.group }
func (b *Body) Shape() shape.Shape              { return b.shape }
func (b *Body) Friction() float64               { return b.friction }
func (b *Body) Restitution() float64            { return b.restitution }
func (b *Body) LinearDamping() float64          { return b.linearDamping }
func (b *Body) AngularDamping() float64         { return b.angularDamping }
func (b *Body) MaxLinearVelocity() float64      { return b.maxLinearVel }
func (b *Body) MaxAngularVelocity() float64     { return b.maxAngularVel }
func (b *Body) GravityFactor() float64          { return b.gravityFactor }
func (b *Body) InverseMass() float64            { return b.invMass }
func (b *Body) InverseInertia() mgl64.Vec3      { return b.invInertia }
func (b *Body) IsInBroadPhase() bool            { return b.inBroadPhase }
func (b *Body) Position() mgl64.Vec3            { return b.state.Position }
func (b *Body) Rotation() mgl64.Quat            { return b.state.Rotation }
func (b *Body) LinearVelocity() mgl64.Vec3      { return b.state.LinearVelocity }
func (b *Body) AngularVelocity() mgl64.Vec3     { return b.state.AngularVelocity }
func (b *Body) UserData() uint64                { return b.userData }
func (b *Body) SetUserData(tag uint64)          { b.userData = tag }
func (b *Body) MotionState() MotionState        { return b.state }
func (b *Body) SetMotionState(s MotionState)    { b.state = s }

// Writes counts the motion and activation writes made through the body
// interface. The step compares it at commit to keep writes made meanwhile.
func (b *Body) Writes() uint32 { return b.writes }

// Mass returns the body mass, or +Inf for static and kinematic bodies.
func (b *Body) Mass() float64 {
	if b.invMass == 0 {
		return math.Inf(1)
	}
	return 1 / b.invMass
}

func (b *Body) Bounds() shape.AABB {
	return b.shape.Bounds(b.state.Position, b.state.Rotation)
}
