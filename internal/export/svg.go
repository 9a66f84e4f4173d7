package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/viz"
)

var ErrNoPaths = errors.New("export: no trajectory to draw")

// Path is the side view (x, y) trajectory of one body.
type Path struct {
	Name   string
	Points []mgl64.Vec2
}

// PathsFromStates pulls every name.x / name.y column pair out of a stored
// trajectory.
func PathsFromStates(columns []string, states [][]float64) []Path {
	var paths []Path
	for i, col := range columns {
		name, ok := strings.CutSuffix(col, ".x")
		if !ok {
			continue
		}
		j := indexOf(columns, name+".y")
		if j < 0 {
			continue
		}
		p := Path{Name: name, Points: make([]mgl64.Vec2, 0, len(states))}
		for _, row := range states {
			if i < len(row) && j < len(row) {
				p.Points = append(p.Points, mgl64.Vec2{row[i], row[j]})
			}
		}
		paths = append(paths, p)
	}
	return paths
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// TrajectorySVG draws the paths over a ground line at y = 0, one stroke
// color per body cycling through the theme.
func TrajectorySVG(w io.Writer, paths []Path, width, height int, theme viz.Theme) error {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := 0.0, 0.0
	n := 0
	for _, p := range paths {
		for _, pt := range p.Points {
			minX, maxX = math.Min(minX, pt.X()), math.Max(maxX, pt.X())
			minY, maxY = math.Min(minY, pt.Y()), math.Max(maxY, pt.Y())
			n++
		}
	}
	if n == 0 {
		return ErrNoPaths
	}

	// Same scale on both axes.
	span := math.Max(math.Max(maxX-minX, maxY-minY), 1) * 1.2
	cx := (minX + maxX) / 2
	cy := (minY + maxY) / 2
	scale := math.Min(float64(width), float64(height)) / span
	toPixel := func(v mgl64.Vec2) (float64, float64) {
		return float64(width)/2 + (v.X()-cx)*scale, float64(height)/2 - (v.Y()-cy)*scale
	}

	palette := []string{string(theme.Primary), string(theme.Accent), string(theme.Warning), string(theme.Text)}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	_, gy := toPixel(mgl64.Vec2{0, 0})
	fmt.Fprintf(&sb, `<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-width="1"/>
`, gy, width, gy, string(theme.Muted))

	for i, p := range paths {
		if len(p.Points) == 0 {
			continue
		}
		fmt.Fprintf(&sb, `<path id="%s" fill="none" stroke="%s" stroke-width="1.5" d="`, p.Name, palette[i%len(palette)])
		for k, pt := range p.Points {
			x, y := toPixel(pt)
			if k == 0 {
				fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
