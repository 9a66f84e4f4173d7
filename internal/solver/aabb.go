package solver

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/body"
)

// AABBContact treats every body as its bounding box and solves contacts
// with sequential impulses along the axis of least penetration.
// Axis-aligned contacts carry no lever arm, so no angular impulse is produced.
type AABBContact struct {
	Iterations int
	// Slop is the penetration left uncorrected to keep contacts alive.
	Slop      float64
	Baumgarte float64
	// RestitutionThreshold is the approach speed below which bodies do not bounce.
	RestitutionThreshold float64
}

func NewAABBContact() *AABBContact {
	return &AABBContact{
		Iterations:           4,
		Slop:                 0.02,
		Baumgarte:            0.2,
		RestitutionThreshold: 1,
	}
}

type contact struct {
	a, b    int32
	normal  mgl64.Vec3
	depth   float64
	target  float64
	mu      float64
	effMass float64
	nAcc    float64
	tAcc    mgl64.Vec3
}

func (c *AABBContact) Solve(in Input) ([]Result, error) {
	n := len(in.Bodies)
	for i, p := range in.Pairs {
		if p.A < 0 || p.B < 0 || int(p.A) >= n || int(p.B) >= n {
			return nil, fmt.Errorf("%w: pair %d (%d, %d) with %d bodies", ErrInvalidPair, i, p.A, p.B, n)
		}
	}

	// velocities include the gravity the next integration adds, so a
	// resting contact cancels it
	v := make([]mgl64.Vec3, n)
	v0 := make([]mgl64.Vec3, n)
	for i := range in.Bodies {
		b := &in.Bodies[i]
		v[i] = b.LinearVelocity
		if b.Motion == body.Dynamic && b.InvMass > 0 {
			v[i] = v[i].Add(in.Gravity.Mul(b.GravityFactor * in.Dt))
		}
		v0[i] = v[i]
	}

	contacts := make([]contact, 0, len(in.Pairs))
	for _, p := range in.Pairs {
		if ct, ok := c.newContact(in.Bodies, v, p); ok {
			contacts = append(contacts, ct)
		}
	}
	if len(contacts) == 0 {
		return nil, nil
	}

	iters := max(c.Iterations, 1)
	for it := 0; it < iters; it++ {
		for k := range contacts {
			c.applyImpulse(&contacts[k], in.Bodies, v)
		}
	}

	corr := make([]mgl64.Vec3, n)
	for _, ct := range contacts {
		a, b := &in.Bodies[ct.a], &in.Bodies[ct.b]
		push := math.Max(ct.depth-c.Slop, 0) * c.Baumgarte
		if push == 0 {
			continue
		}
		sum := a.InvMass + b.InvMass
		corr[ct.a] = corr[ct.a].Sub(ct.normal.Mul(push * a.InvMass / sum))
		corr[ct.b] = corr[ct.b].Add(ct.normal.Mul(push * b.InvMass / sum))
	}

	var out []Result
	for i := range in.Bodies {
		im := in.Bodies[i].InvMass
		if im == 0 {
			continue
		}
		dv := v[i].Sub(v0[i])
		if dv == (mgl64.Vec3{}) && corr[i] == (mgl64.Vec3{}) {
			continue
		}
		out = append(out, Result{
			Body:               int32(i),
			LinearImpulse:      dv.Mul(1 / im),
			PositionCorrection: corr[i],
		})
	}
	return out, nil
}

func (c *AABBContact) newContact(bodies []Body, v []mgl64.Vec3, p Pair) (contact, bool) {
	a, b := &bodies[p.A], &bodies[p.B]
	if a.Sensor || b.Sensor {
		return contact{}, false
	}
	sum := a.InvMass + b.InvMass
	if sum == 0 || !a.Bounds.Overlaps(b.Bounds) {
		return contact{}, false
	}

	axis, depth := 0, math.Inf(1)
	for i := 0; i < 3; i++ {
		d := math.Min(a.Bounds.Max[i], b.Bounds.Max[i]) - math.Max(a.Bounds.Min[i], b.Bounds.Min[i])
		if d < depth {
			axis, depth = i, d
		}
	}
	var normal mgl64.Vec3
	normal[axis] = 1
	if b.Bounds.Center()[axis] < a.Bounds.Center()[axis] {
		normal[axis] = -1
	}

	ct := contact{
		a:       p.A,
		b:       p.B,
		normal:  normal,
		depth:   depth,
		mu:      math.Sqrt(a.Friction * b.Friction),
		effMass: 1 / sum,
	}
	vn := v[p.B].Sub(v[p.A]).Dot(normal)
	if -vn > c.RestitutionThreshold {
		ct.target = -math.Max(a.Restitution, b.Restitution) * vn
	}
	return ct, true
}

func (c *AABBContact) applyImpulse(ct *contact, bodies []Body, v []mgl64.Vec3) {
	imA, imB := bodies[ct.a].InvMass, bodies[ct.b].InvMass

	vn := v[ct.b].Sub(v[ct.a]).Dot(ct.normal)
	acc := math.Max(ct.nAcc+(ct.target-vn)*ct.effMass, 0)
	dj := acc - ct.nAcc
	ct.nAcc = acc
	p := ct.normal.Mul(dj)
	v[ct.a] = v[ct.a].Sub(p.Mul(imA))
	v[ct.b] = v[ct.b].Add(p.Mul(imB))

	rel := v[ct.b].Sub(v[ct.a])
	vt := rel.Sub(ct.normal.Mul(rel.Dot(ct.normal)))
	t := ct.tAcc.Sub(vt.Mul(ct.effMass))
	if limit := ct.mu * ct.nAcc; t.Len() > limit {
		if l := t.Len(); l > 0 {
			t = t.Mul(limit / l)
		}
	}
	dt := t.Sub(ct.tAcc)
	ct.tAcc = t
	v[ct.a] = v[ct.a].Sub(dt.Mul(imA))
	v[ct.b] = v[ct.b].Add(dt.Mul(imB))
}
