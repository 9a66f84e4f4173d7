package abi

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/body"
)

// Vec4 is the boundary vector: four float32 lanes, 16 bytes. Positions
// and velocities ignore W; rotations are quaternions with W as the scalar.
type Vec4 struct {
	X, Y, Z, W float32
}

type BodyID = body.BodyID

const InvalidBodyID = body.InvalidBodyID

// BodyCreationSettings is the flat form of body.CreationSettings.
type BodyCreationSettings struct {
	Position           Vec4
	Rotation           Vec4
	LinearVelocity     Vec4
	AngularVelocity    Vec4
	UserData           uint64
	ObjectLayer        uint16
	MotionType         uint8
	IsSensor           bool
	AllowSleeping      bool
	Friction           float32
	Restitution        float32
	LinearDamping      float32
	AngularDamping     float32
	MaxLinearVelocity  float32
	MaxAngularVelocity float32
	GravityFactor      float32
	InertiaMultiplier  float32
	MassOverride       float32
	GroupID            uint32
	SubGroupID         uint32
	GroupFilter        Handle
	Shape              Handle
}

// BodyLockRead holds a shared lock on one body between Construct and Destruct.
type BodyLockRead struct {
	lock  body.ReadLock
	store *body.Store
}

type BodyLockWrite struct {
	lock  body.WriteLock
	store *body.Store
}

func SizeOfVec4() uintptr                 { return unsafe.Sizeof(Vec4{}) }
func SizeOfHandle() uintptr               { return unsafe.Sizeof(Handle(0)) }
func SizeOfBodyID() uintptr               { return unsafe.Sizeof(BodyID(0)) }
func SizeOfBodyCreationSettings() uintptr { return unsafe.Sizeof(BodyCreationSettings{}) }
func SizeOfBodyLockRead() uintptr         { return unsafe.Sizeof(BodyLockRead{}) }
func SizeOfBodyLockWrite() uintptr        { return unsafe.Sizeof(BodyLockWrite{}) }

func vec3(v Vec4) mgl64.Vec3 {
	return mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)}
}

func quat(v Vec4) mgl64.Quat {
	return mgl64.Quat{W: float64(v.W), V: mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)}}
}

func fromVec3(v mgl64.Vec3) Vec4 {
	return Vec4{X: float32(v[0]), Y: float32(v[1]), Z: float32(v[2])}
}

func fromQuat(q mgl64.Quat) Vec4 {
	return Vec4{X: float32(q.V[0]), Y: float32(q.V[1]), Z: float32(q.V[2]), W: float32(q.W)}
}

func flatten(c body.CreationSettings, shapeH Handle) BodyCreationSettings {
	return BodyCreationSettings{
		Position:           fromVec3(c.Position),
		Rotation:           fromQuat(c.Rotation),
		LinearVelocity:     fromVec3(c.LinearVelocity),
		AngularVelocity:    fromVec3(c.AngularVelocity),
		UserData:           c.UserData,
		ObjectLayer:        uint16(c.ObjectLayer),
		MotionType:         uint8(c.MotionType),
		IsSensor:           c.IsSensor,
		AllowSleeping:      c.AllowSleeping,
		Friction:           float32(c.Friction),
		Restitution:        float32(c.Restitution),
		LinearDamping:      float32(c.LinearDamping),
		AngularDamping:     float32(c.AngularDamping),
		MaxLinearVelocity:  float32(c.MaxLinearVelocity),
		MaxAngularVelocity: float32(c.MaxAngularVelocity),
		GravityFactor:      float32(c.GravityFactor),
		InertiaMultiplier:  float32(c.InertiaMultiplier),
		MassOverride:       float32(c.MassOverride),
		GroupID:            c.CollisionGroup.GroupID,
		SubGroupID:         c.CollisionGroup.SubGroupID,
		Shape:              shapeH,
	}
}
