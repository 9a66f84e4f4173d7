package viz

import (
	"math"

	"github.com/san-kum/rigidsim/internal/shape"
)

// Viewport maps the world's x/y plane onto canvas pixels with a uniform
// scale.
type Viewport struct {
	MinX, MinY float64
	Scale      float64
	W, H       int
}

// FitViewport frames the given bounds with a margin of one world unit and
// always keeps y = 0 in view.
func FitViewport(bounds []shape.AABB, w, h int) Viewport {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := 0.0, 0.0
	for _, b := range bounds {
		minX, maxX = math.Min(minX, b.Min[0]), math.Max(maxX, b.Max[0])
		minY, maxY = math.Min(minY, b.Min[1]), math.Max(maxY, b.Max[1])
	}
	if math.IsInf(minX, 1) {
		minX, maxX = -5, 5
	}
	minX, maxX, minY, maxY = minX-1, maxX+1, minY-1, maxY+1

	scale := math.Min(float64(w)/(maxX-minX), float64(h)/(maxY-minY))
	// center the framed region along the axis with slack
	cx := (minX + maxX) / 2
	cy := (minY + maxY) / 2
	return Viewport{
		MinX:  cx - float64(w)/scale/2,
		MinY:  cy - float64(h)/scale/2,
		Scale: scale,
		W:     w,
		H:     h,
	}
}

// ToPixel maps world (x, y) to a pixel. Pixel y grows downward.
func (v Viewport) ToPixel(x, y float64) (int, int) {
	px := int(math.Floor((x - v.MinX) * v.Scale))
	py := v.H - 1 - int(math.Floor((y-v.MinY)*v.Scale))
	return px, py
}
