package abi

import (
	"fmt"

	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/physics"
)

// system is a physics system handle's target. world stays nil until
// PhysicsSystemInit.
type system struct {
	world *physics.World
}

func (r *Runtime) NewPhysicsSystem() (Handle, error) {
	if err := r.live(); err != nil {
		return 0, err
	}
	return r.systems.Insert(&system{}), nil
}

func (r *Runtime) DeletePhysicsSystem(h Handle) error {
	_, err := r.systems.Remove(h)
	return err
}

// PhysicsSystemInit creates the world behind h. A zero layer handle or a
// nil filter selects the default tables.
func (r *Runtime) PhysicsSystemInit(h Handle, maxBodies, numBodyMutexes, maxBodyPairs, maxContactConstraints uint32,
	layerH Handle, objVsBp layers.ObjectVsBroadPhaseLayerFilter, pairFilter layers.ObjectLayerPairFilter,
) error {
	sys, err := r.systems.Get(h)
	if err != nil {
		return err
	}
	if sys.world != nil {
		return ErrAlreadyInitialized
	}
	s := physics.DefaultSettings()
	if layerH != 0 {
		if s.Layers, err = r.tables.Get(layerH); err != nil {
			return fmt.Errorf("layer table: %w", err)
		}
	}
	if objVsBp != nil {
		s.ObjectVsBroadPhase = objVsBp
	}
	if pairFilter != nil {
		s.PairFilter = pairFilter
	}
	s.MaxBodies = uint(maxBodies)
	s.NumBodyMutexes = uint(numBodyMutexes)
	s.MaxBodyPairs = uint(maxBodyPairs)
	s.MaxContactConstraints = uint(maxContactConstraints)

	w, err := physics.New(s, physics.WithLogger(r.log.WithName("physics")))
	if err != nil {
		return err
	}
	sys.world = w
	return nil
}

func (r *Runtime) world(h Handle) (*physics.World, error) {
	if err := r.live(); err != nil {
		return nil, err
	}
	sys, err := r.systems.Get(h)
	if err != nil {
		return nil, err
	}
	if sys.world == nil {
		return nil, ErrNotInitialized
	}
	return sys.world, nil
}

// PhysicsSystemUpdate steps the system once with the given scratch arena
// and job pool.
func (r *Runtime) PhysicsSystemUpdate(h Handle, dt float32, collisionSteps, subSteps int32, allocH, poolH Handle) error {
	w, err := r.world(h)
	if err != nil {
		return err
	}
	alloc, err := r.allocators.Get(allocH)
	if err != nil {
		return fmt.Errorf("temp allocator: %w", err)
	}
	pool, err := r.pools.Get(poolH)
	if err != nil {
		return fmt.Errorf("job system: %w", err)
	}
	return w.Step(float64(dt), int(collisionSteps), int(subSteps), alloc, pool)
}

func (r *Runtime) PhysicsSystemGetGravity(h Handle) (Vec4, error) {
	w, err := r.world(h)
	if err != nil {
		return Vec4{}, err
	}
	return fromVec3(w.Gravity()), nil
}

func (r *Runtime) PhysicsSystemGetNumBodies(h Handle) (int, error) {
	w, err := r.world(h)
	if err != nil {
		return 0, err
	}
	return w.NumBodies(), nil
}

func (r *Runtime) PhysicsSystemGetNumActiveBodies(h Handle) (int, error) {
	w, err := r.world(h)
	if err != nil {
		return 0, err
	}
	return w.NumActiveBodies(), nil
}

// PhysicsSystemGetActiveBodies copies up to len(out) active ids into out
// and returns how many were written.
func (r *Runtime) PhysicsSystemGetActiveBodies(h Handle, out []BodyID) (int, error) {
	w, err := r.world(h)
	if err != nil {
		return 0, err
	}
	return w.Store().CopyActive(out), nil
}

// BodyCreationSettingsConstruct returns settings with the engine defaults
// and no shape.
func BodyCreationSettingsConstruct() BodyCreationSettings {
	return flatten(body.DefaultCreationSettings(), 0)
}

func BodyCreationSettingsConstruct2(shapeH Handle, pos, rot Vec4, motion uint8, layer uint16) BodyCreationSettings {
	c := BodyCreationSettingsConstruct()
	c.Shape = shapeH
	c.Position = pos
	c.Rotation = rot
	c.MotionType = motion
	c.ObjectLayer = layer
	return c
}

func (r *Runtime) creationSettings(c *BodyCreationSettings) (body.CreationSettings, error) {
	out := body.DefaultCreationSettings()
	if c.Shape != 0 {
		s, err := r.shapes.Get(c.Shape)
		if err != nil {
			return out, fmt.Errorf("shape: %w", err)
		}
		out.Shape = s
	}
	out.Position = vec3(c.Position)
	out.Rotation = quat(c.Rotation)
	out.LinearVelocity = vec3(c.LinearVelocity)
	out.AngularVelocity = vec3(c.AngularVelocity)
	out.UserData = c.UserData
	out.ObjectLayer = layers.ObjectLayer(c.ObjectLayer)
	out.MotionType = body.MotionType(c.MotionType)
	out.IsSensor = c.IsSensor
	out.AllowSleeping = c.AllowSleeping
	out.Friction = float64(c.Friction)
	out.Restitution = float64(c.Restitution)
	out.LinearDamping = float64(c.LinearDamping)
	out.AngularDamping = float64(c.AngularDamping)
	out.MaxLinearVelocity = float64(c.MaxLinearVelocity)
	out.MaxAngularVelocity = float64(c.MaxAngularVelocity)
	out.GravityFactor = float64(c.GravityFactor)
	out.InertiaMultiplier = float64(c.InertiaMultiplier)
	out.MassOverride = float64(c.MassOverride)
	out.CollisionGroup = body.CollisionGroup{GroupID: c.GroupID, SubGroupID: c.SubGroupID}
	if c.GroupFilter != 0 {
		f, err := r.filters.Get(c.GroupFilter)
		if err != nil {
			return out, fmt.Errorf("group filter: %w", err)
		}
		out.CollisionGroup.Filter = f
	}
	return out, nil
}

// BodyInterfaceCreateBody creates a body without adding it to the world.
func (r *Runtime) BodyInterfaceCreateBody(sysH Handle, c *BodyCreationSettings) (BodyID, error) {
	w, err := r.world(sysH)
	if err != nil {
		return InvalidBodyID, err
	}
	cs, err := r.creationSettings(c)
	if err != nil {
		return InvalidBodyID, err
	}
	return w.BodyInterface().Create(cs)
}

// BodyInterfaceAddBody adds id to the world. activation 0 activates the
// body, any other value leaves it asleep.
func (r *Runtime) BodyInterfaceAddBody(sysH Handle, id BodyID, activation uint32) error {
	w, err := r.world(sysH)
	if err != nil {
		return err
	}
	act := body.Activate
	if activation != 0 {
		act = body.DontActivate
	}
	return w.BodyInterface().Add(id, act)
}

func (r *Runtime) BodyInterfaceRemoveBody(sysH Handle, id BodyID) error {
	w, err := r.world(sysH)
	if err != nil {
		return err
	}
	return w.BodyInterface().RemoveFromWorld(id)
}

func (r *Runtime) BodyInterfaceDestroyBody(sysH Handle, id BodyID) error {
	w, err := r.world(sysH)
	if err != nil {
		return err
	}
	return w.BodyInterface().Destroy(id)
}

func (r *Runtime) BodyInterfaceSetLinearVelocity(sysH Handle, id BodyID, v Vec4) error {
	w, err := r.world(sysH)
	if err != nil {
		return err
	}
	return w.BodyInterface().SetLinearVelocity(id, vec3(v))
}

func (r *Runtime) BodyInterfaceGetLinearVelocity(sysH Handle, id BodyID) (Vec4, error) {
	w, err := r.world(sysH)
	if err != nil {
		return Vec4{}, err
	}
	v, err := w.BodyInterface().GetLinearVelocity(id)
	return fromVec3(v), err
}

func (r *Runtime) BodyInterfaceIsActive(sysH Handle, id BodyID) (bool, error) {
	w, err := r.world(sysH)
	if err != nil {
		return false, err
	}
	return w.BodyInterface().IsActive(id), nil
}
