package metrics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/physics"
)

// MechanicalEnergy returns translational kinetic plus gravitational potential
// energy of the dynamic bodies. Potential is zero at the origin.
func MechanicalEnergy(bodies []physics.BodyState, gravity mgl64.Vec3) float64 {
	var e float64
	for i := range bodies {
		b := &bodies[i]
		if b.Motion != body.Dynamic || math.IsInf(b.Mass, 0) {
			continue
		}
		v := b.LinearVelocity
		e += 0.5*b.Mass*v.Dot(v) - b.Mass*gravity.Dot(b.Position)
	}
	return e
}

// Energy is the mean mechanical energy over the run.
type Energy struct {
	name        string
	samples     int
	totalEnergy float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(bodies []physics.BodyState, gravity mgl64.Vec3, t float64) {
	e.totalEnergy += MechanicalEnergy(bodies, gravity)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift is the largest energy gain seen relative to the first
// sample. Contacts only remove energy, so growth means the solver added
// some.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(bodies []physics.BodyState, gravity mgl64.Vec3, t float64) {
	energy := MechanicalEnergy(bodies, gravity)
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	scale := math.Max(math.Abs(e.initialEnergy), 1)
	e.maxDrift = math.Max(e.maxDrift, (energy-e.initialEnergy)/scale)
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
