package metrics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/physics"
)

// MaxSpeed is the highest linear speed any body reached.
type MaxSpeed struct {
	name string
	max  float64
}

func NewMaxSpeed() *MaxSpeed {
	return &MaxSpeed{name: "max_speed"}
}

func (m *MaxSpeed) Name() string { return m.name }

func (m *MaxSpeed) Observe(bodies []physics.BodyState, _ mgl64.Vec3, _ float64) {
	for i := range bodies {
		m.max = math.Max(m.max, bodies[i].LinearVelocity.Len())
	}
}

func (m *MaxSpeed) Value() float64 { return m.max }
func (m *MaxSpeed) Reset()         { m.max = 0 }

// ActiveRatio is the mean fraction of non-static bodies that were awake.
// A scene that settles drives it toward zero.
type ActiveRatio struct {
	name    string
	sum     float64
	samples int
}

func NewActiveRatio() *ActiveRatio {
	return &ActiveRatio{name: "active_ratio"}
}

func (a *ActiveRatio) Name() string { return a.name }

func (a *ActiveRatio) Observe(bodies []physics.BodyState, _ mgl64.Vec3, _ float64) {
	var movable, active int
	for i := range bodies {
		if bodies[i].Motion == body.Static {
			continue
		}
		movable++
		if bodies[i].Active {
			active++
		}
	}
	if movable == 0 {
		return
	}
	a.sum += float64(active) / float64(movable)
	a.samples++
}

func (a *ActiveRatio) Value() float64 {
	if a.samples == 0 {
		return 0
	}
	return a.sum / float64(a.samples)
}

func (a *ActiveRatio) Reset() {
	a.sum = 0
	a.samples = 0
}
