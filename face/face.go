// Package face finds faces in captured stills and decorates them.
package face

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// Face is one detection in image coordinates. Size is the side of the
// square the face fits in.
type Face struct {
	Center image.Point
	Size   int
	Score  float32

	// LeftEye and RightEye are zero when the finder doesn't locate eyes.
	LeftEye, RightEye image.Point
}

func (f Face) Bounds() image.Rectangle {
	half := f.Size / 2
	return image.Rect(f.Center.X-half, f.Center.Y-half, f.Center.X+half, f.Center.Y+half)
}

func (f Face) HasEyes() bool {
	return f.LeftEye != f.RightEye
}

// Finder locates faces in an image.
type Finder interface {
	Detect(img image.Image) []Face
}

// Detector runs a pigo cascade over the grayscale image.
type Detector struct {
	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	Angle       float64
	IoU         float64
	MinScore    float32

	classifier *pigo.Pigo
}

// LoadDetector unpacks the cascade file at path.
func LoadDetector(path string) (*Detector, error) {
	model, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load face finder model: %w", err)
	}
	return NewDetector(model)
}

func NewDetector(model []byte) (*Detector, error) {
	classifier, err := pigo.NewPigo().Unpack(model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize face classifier: %w", err)
	}
	return &Detector{
		MinSize:     60,
		MaxSize:     1000,
		ShiftFactor: 0.15,
		ScaleFactor: 1.1,
		IoU:         0.2,
		MinScore:    5.0,
		classifier:  classifier,
	}, nil
}

func (d *Detector) Detect(img image.Image) []Face {
	b := img.Bounds()
	params := pigo.CascadeParams{
		MinSize:     d.MinSize,
		MaxSize:     d.MaxSize,
		ShiftFactor: d.ShiftFactor,
		ScaleFactor: d.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   b.Dy(),
			Cols:   b.Dx(),
			Dim:    b.Dx(),
		},
	}

	dets := d.classifier.RunCascade(params, d.Angle)
	dets = d.classifier.ClusterDetections(dets, d.IoU)

	var faces []Face
	for _, det := range dets {
		if det.Q < d.MinScore {
			continue
		}
		faces = append(faces, Face{
			Center: image.Pt(b.Min.X+det.Col, b.Min.Y+det.Row),
			Size:   det.Scale,
			Score:  det.Q,
		})
	}
	return faces
}
