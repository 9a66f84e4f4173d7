package solver

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/shape"
)

var gravity = mgl64.Vec3{0, -9.81, 0}

func boxBody(pos, half mgl64.Vec3, motion body.MotionType, invMass float64) Body {
	return Body{
		Motion:        motion,
		Position:      pos,
		Rotation:      mgl64.QuatIdent(),
		InvMass:       invMass,
		Friction:      0.2,
		GravityFactor: 1,
		Bounds:        shape.AABB{Min: pos.Sub(half), Max: pos.Add(half)},
	}
}

func ground() Body {
	return boxBody(mgl64.Vec3{0, -0.5, 0}, mgl64.Vec3{10, 0.5, 10}, body.Static, 0)
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRestingContactCancelsGravity(t *testing.T) {
	dt := 1.0 / 60
	box := boxBody(mgl64.Vec3{0, 0.49, 0}, mgl64.Vec3{0.5, 0.5, 0.5}, body.Dynamic, 1)
	in := Input{Bodies: []Body{ground(), box}, Pairs: []Pair{{0, 1}}, Dt: dt, Gravity: gravity}

	res, err := NewAABBContact().Solve(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Body != 1 {
		t.Fatalf("results = %+v", res)
	}
	vy := box.LinearVelocity[1] + res[0].LinearImpulse[1]*box.InvMass + gravity[1]*dt
	if !approx(vy, 0) {
		t.Errorf("velocity after integration = %v, want 0", vy)
	}
	if res[0].PositionCorrection[1] != 0 {
		t.Errorf("penetration within slop corrected: %v", res[0].PositionCorrection)
	}
}

func TestRestitution(t *testing.T) {
	box := boxBody(mgl64.Vec3{0, 0.45, 0}, mgl64.Vec3{0.5, 0.5, 0.5}, body.Dynamic, 1)
	box.LinearVelocity = mgl64.Vec3{0, -5, 0}
	box.Restitution = 1

	tests := []struct {
		name  string
		speed float64
		want  float64
	}{
		{"bounces above threshold", -5, 5},
		{"rests below threshold", -0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := box
			b.LinearVelocity = mgl64.Vec3{0, tt.speed, 0}
			in := Input{Bodies: []Body{ground(), b}, Pairs: []Pair{{0, 1}}, Dt: 1.0 / 60}
			res, err := NewAABBContact().Solve(in)
			if err != nil || len(res) != 1 {
				t.Fatalf("res=%v err=%v", res, err)
			}
			vy := tt.speed + res[0].LinearImpulse[1]
			if !approx(vy, tt.want) {
				t.Errorf("vy = %v, want %v", vy, tt.want)
			}
		})
	}
}

func TestFrictionSlowsSliding(t *testing.T) {
	box := boxBody(mgl64.Vec3{0, 0.45, 0}, mgl64.Vec3{0.5, 0.5, 0.5}, body.Dynamic, 1)
	box.LinearVelocity = mgl64.Vec3{3, 0, 0}
	in := Input{Bodies: []Body{ground(), box}, Pairs: []Pair{{0, 1}}, Dt: 1.0 / 60, Gravity: gravity}

	res, err := NewAABBContact().Solve(in)
	if err != nil || len(res) != 1 {
		t.Fatalf("res=%v err=%v", res, err)
	}
	vx := 3 + res[0].LinearImpulse[0]
	if vx >= 3 || vx <= 0 {
		t.Errorf("vx = %v, want slowed but not reversed", vx)
	}
}

func TestPositionCorrectionSplitsByMass(t *testing.T) {
	half := mgl64.Vec3{0.5, 0.5, 0.5}
	a := boxBody(mgl64.Vec3{0, 0, 0}, half, body.Dynamic, 1)
	b := boxBody(mgl64.Vec3{0.8, 0, 0}, half, body.Dynamic, 1)
	in := Input{Bodies: []Body{a, b}, Pairs: []Pair{{0, 1}}, Dt: 1.0 / 60}

	res, err := NewAABBContact().Solve(in)
	if err != nil || len(res) != 2 {
		t.Fatalf("res=%v err=%v", res, err)
	}
	ca, cb := res[0].PositionCorrection, res[1].PositionCorrection
	if ca[0] >= 0 || cb[0] <= 0 || !approx(ca[0], -cb[0]) {
		t.Errorf("corrections %v %v", ca, cb)
	}
}

func TestSensorsAndSeparatedBoxesIgnored(t *testing.T) {
	half := mgl64.Vec3{0.5, 0.5, 0.5}
	sensor := boxBody(mgl64.Vec3{0, 0.4, 0}, half, body.Dynamic, 1)
	sensor.Sensor = true
	far := boxBody(mgl64.Vec3{0, 5, 0}, half, body.Dynamic, 1)

	in := Input{Bodies: []Body{ground(), sensor, far}, Pairs: []Pair{{0, 1}, {0, 2}}, Dt: 1.0 / 60, Gravity: gravity}
	res, err := NewAABBContact().Solve(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 0 {
		t.Errorf("results = %+v", res)
	}
}

func TestInvalidPair(t *testing.T) {
	in := Input{Bodies: []Body{ground()}, Pairs: []Pair{{0, 3}}}
	if _, err := NewAABBContact().Solve(in); !errors.Is(err, ErrInvalidPair) {
		t.Fatalf("got %v", err)
	}
}

func TestFuncAdapter(t *testing.T) {
	calls := 0
	var s Service = Func(func(in Input) ([]Result, error) {
		calls += len(in.Pairs)
		return nil, nil
	})
	_, _ = s.Solve(Input{Pairs: []Pair{{0, 1}, {1, 2}}})
	if calls != 2 {
		t.Errorf("calls = %d", calls)
	}
}
