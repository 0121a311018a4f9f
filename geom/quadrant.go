package geom

// Origin is the corner the y axis starts from.
type Origin int

const (
	// OriginLowerLeft has y growing upwards, as in Core Animation layers.
	OriginLowerLeft Origin = iota
	// OriginUpperLeft has y growing downwards, as in image.Image.
	OriginUpperLeft
)

func (o Origin) String() string {
	switch o {
	case OriginLowerLeft:
		return "lower-left"
	case OriginUpperLeft:
		return "upper-left"
	default:
		return "unknown"
	}
}

// DefaultBorder is the inset applied on every side of a quadrant.
const DefaultBorder = 2

// Quadrants splits a rectangle into a 2x2 grid. Index 0 is top-left, 1
// top-right, 2 bottom-left and 3 bottom-right.
type Quadrants struct {
	Origin Origin
	Border float64
}

// DefaultQuadrants uses a lower-left origin and a 2 unit border.
var DefaultQuadrants = Quadrants{Origin: OriginLowerLeft, Border: DefaultBorder}

// Rect computes the frame of quadrant idx within r.
func (q Quadrants) Rect(idx int, r Rect) (Rect, error) {
	if idx < 0 || idx > 3 {
		return Rect{}, ErrQuadrantIndex
	}

	out := r
	out.W /= 2
	out.H /= 2

	if idx%2 == 1 {
		out.X += out.W
	}

	bottom := idx >= 2
	switch q.Origin {
	case OriginUpperLeft:
		if bottom {
			out.Y += out.H
		}
	default:
		if !bottom {
			out.Y += out.H
		}
	}

	return out.Inset(q.Border), nil
}

// RectForQuadrant is DefaultQuadrants.Rect.
func RectForQuadrant(idx int, r Rect) (Rect, error) {
	return DefaultQuadrants.Rect(idx, r)
}
