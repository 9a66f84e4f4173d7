package shape

import "github.com/go-gl/mathgl/mgl64"

type AABB struct {
	Min, Max mgl64.Vec3
}

func (a AABB) Overlaps(b AABB) bool {
	return a.Min[0] <= b.Max[0] && a.Max[0] >= b.Min[0] &&
		a.Min[1] <= b.Max[1] && a.Max[1] >= b.Min[1] &&
		a.Min[2] <= b.Max[2] && a.Max[2] >= b.Min[2]
}

// Expand grows the box by margin on every side.
func (a AABB) Expand(margin float64) AABB {
	m := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: a.Min.Sub(m), Max: a.Max.Add(m)}
}

func (a AABB) Center() mgl64.Vec3 { return a.Min.Add(a.Max).Mul(0.5) }

func (a AABB) HalfExtent() mgl64.Vec3 { return a.Max.Sub(a.Min).Mul(0.5) }
