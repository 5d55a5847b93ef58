package diagram

import (
	"fmt"
	"math"
	"strconv"
)

// Scale bounds for any View. Every update clamps into this range.
const (
	MinScale = 0.4
	MaxScale = 4.0
)

// View is the affine transform applied to diagram content: a translation
// followed by a uniform scale. Content point (cx, cy) lands on screen at
// (cx*Scale + X, cy*Scale + Y).
type View struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// DefaultView returns the identity-like transform used at mount and on reset.
func DefaultView() View {
	return View{X: 0, Y: 0, Scale: 1}
}

// ClampScale bounds s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}

// Clamped returns v with its scale clamped.
func (v View) Clamped() View {
	v.Scale = ClampScale(v.Scale)
	return v
}

// WithScale returns a copy of v with a new (clamped) scale and the same translation.
func (v View) WithScale(s float64) View {
	v.Scale = ClampScale(s)
	return v
}

// WithTranslation returns a copy of v translated to (x, y).
func (v View) WithTranslation(x, y float64) View {
	v.X, v.Y = x, y
	return v
}

// ScreenToContent maps a screen-space point into content space.
func (v View) ScreenToContent(px, py float64) (float64, float64) {
	return (px - v.X) / v.Scale, (py - v.Y) / v.Scale
}

// ContentToScreen maps a content-space point onto the screen.
func (v View) ContentToScreen(cx, cy float64) (float64, float64) {
	return cx*v.Scale + v.X, cy*v.Scale + v.Y
}

// SVGTransform renders v as an SVG group transform attribute value.
func (v View) SVGTransform() string {
	return fmt.Sprintf("translate(%s,%s) scale(%s)", fmtFloat(v.X), fmtFloat(v.Y), fmtFloat(v.Scale))
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
