// gradient.go - Parse CSS-style linear-gradient descriptors and paint them.
package ogimage

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
)

// Stop is one color stop at Offset in [0, 1].
type Stop struct {
	Offset float64
	Color  color.NRGBA
}

// Gradient is a parsed linear gradient. Angle follows CSS: 0deg points up,
// 90deg points right, 180deg (the default) points down.
type Gradient struct {
	Angle float64
	Stops []Stop
}

// ParseGradient parses "linear-gradient(<angle>deg, <color> [<pct>%], ...)".
// Stops without an explicit position are spread evenly between their neighbours.
func ParseGradient(desc string) (Gradient, error) {
	const prefix = "linear-gradient("

	s := strings.TrimSpace(desc)
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, ")") {
		return Gradient{}, fmt.Errorf("unsupported gradient %q", desc)
	}
	parts := strings.Split(s[len(prefix):len(s)-1], ",")

	g := Gradient{Angle: 180}
	first := strings.TrimSpace(parts[0])
	if strings.HasSuffix(first, "deg") {
		a, err := strconv.ParseFloat(strings.TrimSuffix(first, "deg"), 64)
		if err != nil {
			return Gradient{}, fmt.Errorf("gradient angle %q: %w", first, err)
		}
		g.Angle = a
		parts = parts[1:]
	}
	if len(parts) < 2 {
		return Gradient{}, fmt.Errorf("gradient %q: need at least two color stops", desc)
	}

	offsets := make([]float64, len(parts))
	for i, p := range parts {
		fields := strings.Fields(p)
		if len(fields) == 0 || len(fields) > 2 {
			return Gradient{}, fmt.Errorf("gradient stop %q: expected \"<color> [<pct>%%]\"", p)
		}
		c, err := ParseHexColor(fields[0])
		if err != nil {
			return Gradient{}, err
		}
		offsets[i] = math.NaN()
		if len(fields) == 2 {
			pct, err := strconv.ParseFloat(strings.TrimSuffix(fields[1], "%"), 64)
			if err != nil || !strings.HasSuffix(fields[1], "%") {
				return Gradient{}, fmt.Errorf("gradient stop position %q", fields[1])
			}
			offsets[i] = clamp01(pct / 100)
		}
		g.Stops = append(g.Stops, Stop{Color: c})
	}

	fillOffsets(offsets)
	for i := range g.Stops {
		g.Stops[i].Offset = offsets[i]
	}
	return g, nil
}

// fillOffsets pins missing end offsets to 0 and 1 and interpolates the rest.
func fillOffsets(o []float64) {
	last := len(o) - 1
	if math.IsNaN(o[0]) {
		o[0] = 0
	}
	if math.IsNaN(o[last]) {
		o[last] = 1
	}
	for i := 1; i < last; i++ {
		if !math.IsNaN(o[i]) {
			continue
		}
		j := i
		for math.IsNaN(o[j]) {
			j++
		}
		step := (o[j] - o[i-1]) / float64(j-i+1)
		for k := i; k < j; k++ {
			o[k] = o[k-1] + step
		}
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Paint fills the whole w×h canvas with the gradient.
func (g Gradient) Paint(dc *gg.Context, w, h float64) {
	rad := g.Angle * math.Pi / 180
	dx, dy := math.Sin(rad), -math.Cos(rad)
	// CSS gradient line length: the box projected onto the gradient direction.
	half := (math.Abs(w*dx) + math.Abs(h*dy)) / 2
	cx, cy := w/2, h/2

	lg := gg.NewLinearGradient(cx-dx*half, cy-dy*half, cx+dx*half, cy+dy*half)
	for _, s := range g.Stops {
		lg.AddColorStop(s.Offset, s.Color)
	}

	dc.SetFillStyle(lg)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()
}
