package ui

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/dialup-inc/photobooth/geom"
	"github.com/dialup-inc/photobooth/wall"
)

var (
	wallBackground = image.NewUniform(color.RGBA{0x00, 0x00, 0x00, 0xff})
	missingFrame   = image.NewUniform(color.RGBA{0x22, 0x22, 0x22, 0xff})
	flashShade     = image.NewUniform(color.RGBA{0x00, 0x00, 0x00, 0xcc})
)

// Compose draws the wall into a width pixel wide canvas with the root's
// aspect ratio. Tiles are drawn in order, so later tiles cover earlier
// ones. It returns nil when there is no root to draw.
func Compose(s State, width int) *image.RGBA {
	if s.Root.Empty() || width <= 0 {
		return nil
	}
	height := int(math.Round(float64(width) * s.Root.H / s.Root.W))
	if height <= 0 {
		return nil
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), wallBackground, image.Point{}, draw.Src)

	kx := float64(width) / s.Root.W
	ky := float64(height) / s.Root.H

	for _, t := range s.Tiles {
		var src image.Image = missingFrame
		sr := image.Rect(0, 0, 16, 16)
		if img := s.Frames[t.DeviceID]; img != nil {
			src, sr = img, img.Bounds()
		}
		if sr.Empty() {
			continue
		}

		m, ok := tileMatrix(t, s.Root, s.Origin, kx, ky, sr)
		if !ok {
			continue
		}
		draw.ApproxBiLinear.Transform(canvas, m, src, sr, draw.Over, nil)
	}

	if s.Flash {
		draw.Draw(canvas, canvas.Bounds(), flashShade, image.Point{}, draw.Over)
	}
	return canvas
}

// tileMatrix maps source pixels onto the canvas: centre the source, flip
// it, scale it to the tile with its transform, rotate it in the screen
// plane and move it to the tile's centre. ok is false when the tile has
// collapsed to nothing.
func tileMatrix(t wall.Tile, root geom.Rect, origin geom.Origin, kx, ky float64, sr image.Rectangle) (f64.Aff3, bool) {
	r := t.Rect
	cx := (r.X - root.X + r.W/2) * kx
	cy := (r.Y - root.Y + r.H/2) * ky
	if origin == geom.OriginLowerLeft {
		cy = (root.MaxY() - r.Y - r.H/2) * ky
	}

	tr := t.Transform
	if tr.Scale == 0 && tr.Angle == 0 {
		tr = geom.Identity
	}
	psx, psy := tr.ProjectedScale()

	fx := r.W * kx * psx / float64(sr.Dx())
	fy := r.H * ky * psy / float64(sr.Dy())
	if math.Abs(fx) < 1e-6 || math.Abs(fy) < 1e-6 {
		return f64.Aff3{}, false
	}
	if t.Mirrored {
		fx = -fx
	}
	if t.UpsideDown {
		fy = -fy
	}

	theta := planeAngle(tr)
	if origin == geom.OriginLowerLeft {
		theta = -theta
	}
	sin, cos := math.Sincos(theta)

	scx := float64(sr.Min.X) + float64(sr.Dx())/2
	scy := float64(sr.Min.Y) + float64(sr.Dy())/2

	m := translate(-scx, -scy)
	m = mul(f64.Aff3{fx, 0, 0, 0, fy, 0}, m)
	m = mul(f64.Aff3{cos, -sin, 0, sin, cos, 0}, m)
	m = mul(translate(cx, cy), m)
	return m, true
}

// planeAngle is the part of t's rotation that turns the tile within the
// screen plane.
func planeAngle(t geom.Transform) float64 {
	n := math.Sqrt(t.AX*t.AX + t.AY*t.AY + t.AZ*t.AZ)
	if n == 0 {
		return 0
	}
	return t.Angle * t.AZ / n
}

func translate(x, y float64) f64.Aff3 {
	return f64.Aff3{1, 0, x, 0, 1, y}
}

// mul returns a*b, the transform that applies b and then a.
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3],
		a[0]*b[1] + a[1]*b[4],
		a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3],
		a[3]*b[1] + a[4]*b[4],
		a[3]*b[2] + a[4]*b[5] + a[5],
	}
}
