package face

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"math"
	"os"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// Mustache draws a mustache under the nose of every face the finder sees.
type Mustache struct {
	Image  image.Image
	Finder Finder
}

// LoadMustache reads a PNG (or any registered format) from path. An empty
// path gives the built-in drawing.
func LoadMustache(path string) (image.Image, error) {
	if path == "" {
		return DefaultMustache(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mustache: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("mustache %s: %w", path, err)
	}
	return img, nil
}

// DefaultMustache is a plain black handlebar.
func DefaultMustache() image.Image {
	const w, h = 200, 60
	dc := gg.NewContext(w, h)
	dc.SetColor(color.Black)
	for _, side := range []float64{-1, 1} {
		dc.MoveTo(w/2, h*0.35)
		dc.CubicTo(w/2+side*w*0.15, 0, w/2+side*w*0.35, h*0.2, w/2+side*w*0.48, h*0.1)
		dc.CubicTo(w/2+side*w*0.42, h*0.9, w/2+side*w*0.2, h*0.9, w/2, h*0.6)
		dc.ClosePath()
		dc.Fill()
	}
	return dc.Image()
}

// Placement is where the mustache goes on one face: a w x h box centered
// on Center, turned by Angle radians.
type Placement struct {
	Center image.Point
	W, H   int
	Angle  float64
}

// Place fits the mustache to a face: as wide as the face and a fifth as
// tall, resting on the mouth, centered between the mouth and the eyes
// horizontally and tilted with the eye line.
func Place(f Face) Placement {
	mouthY := f.Center.Y + f.Size*30/100
	eyeX := f.Center.X

	var angle float64
	if f.HasEyes() {
		eyeX = (f.LeftEye.X + f.RightEye.X) / 2
		angle = math.Atan2(float64(f.RightEye.Y-f.LeftEye.Y), float64(f.RightEye.X-f.LeftEye.X))
	}

	w := f.Size
	h := f.Size / 5
	if h < 1 {
		h = 1
	}
	return Placement{
		Center: image.Pt((f.Center.X+eyeX)/2, mouthY-h/2),
		W:      w,
		H:      h,
		Angle:  angle,
	}
}

// Apply returns img with a mustache on every face. Without faces img comes
// back unchanged.
func (m *Mustache) Apply(img image.Image) (image.Image, error) {
	if m.Finder == nil || m.Image == nil {
		return img, nil
	}
	faces := m.Finder.Detect(img)
	if len(faces) == 0 {
		return img, nil
	}

	dc := gg.NewContextForImage(img)
	origin := img.Bounds().Min
	for _, f := range faces {
		p := Place(f)
		if p.W <= 0 {
			continue
		}
		scaled := image.NewRGBA(image.Rect(0, 0, p.W, p.H))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), m.Image, m.Image.Bounds(), draw.Over, nil)

		cx := float64(p.Center.X - origin.X)
		cy := float64(p.Center.Y - origin.Y)
		dc.Push()
		dc.RotateAbout(p.Angle, cx, cy)
		dc.DrawImageAnchored(scaled, int(cx), int(cy), 0.5, 0.5)
		dc.Pop()
	}
	return dc.Image(), nil
}
