// Package geom holds the floating point rectangles and transforms the video
// wall is laid out with.
package geom

import (
	"errors"
	"fmt"
	"math"
)

// ErrQuadrantIndex is returned for quadrant indexes outside 0..3.
var ErrQuadrantIndex = errors.New("geom: quadrant index out of range")

type Point struct {
	X, Y float64
}

type Size struct {
	W, H float64
}

// Rect is an origin + size rectangle, like a CGRect.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

func (r Rect) MinX() float64 { return r.X }
func (r Rect) MinY() float64 { return r.Y }
func (r Rect) MaxX() float64 { return r.X + r.W }
func (r Rect) MaxY() float64 { return r.Y + r.H }

func (r Rect) Size() Size { return Size{W: r.W, H: r.H} }

func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// WithCenter moves r so that its center is p, keeping its size.
func (r Rect) WithCenter(p Point) Rect {
	r.X = p.X - r.W/2
	r.Y = p.Y - r.H/2
	return r
}

// Inset shrinks r by d on every side.
func (r Rect) Inset(d float64) Rect {
	r.X += d
	r.Y += d
	r.W -= 2 * d
	r.H -= 2 * d
	return r
}

// Contains reports whether s lies entirely inside r.
func (r Rect) Contains(s Rect) bool {
	return s.X >= r.X && s.Y >= r.Y && s.MaxX() <= r.MaxX() && s.MaxY() <= r.MaxY()
}

// Overlaps reports whether r and s share any area.
func (r Rect) Overlaps(s Rect) bool {
	return r.X < s.MaxX() && s.X < r.MaxX() && r.Y < s.MaxY() && s.Y < r.MaxY()
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g,%g,%g)", r.X, r.Y, r.W, r.H)
}

// Transform is a uniform scale followed by a rotation of Angle radians about
// the axis (AX, AY, AZ). The zero value is not the identity; use Identity.
type Transform struct {
	Scale      float64
	Angle      float64
	AX, AY, AZ float64
}

var Identity = Transform{Scale: 1, AZ: 1}

func (t Transform) IsIdentity() bool {
	return t.Scale == 1 && t.Angle == 0
}

// ProjectedScale is the on-screen horizontal and vertical scale of t once
// the rotation is flattened onto the screen plane.
func (t Transform) ProjectedScale() (sx, sy float64) {
	sx, sy = t.Scale, t.Scale
	if t.Angle == 0 {
		return sx, sy
	}
	n := math.Sqrt(t.AX*t.AX + t.AY*t.AY + t.AZ*t.AZ)
	if n == 0 {
		return sx, sy
	}
	ax, ay := t.AX/n, t.AY/n
	c := math.Cos(t.Angle)
	// rotation about an axis lying in the screen plane foreshortens the
	// perpendicular screen direction
	sx *= math.Abs(1 - ay*ay*(1-c))
	sy *= math.Abs(1 - ax*ax*(1-c))
	return sx, sy
}
