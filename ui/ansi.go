package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"

	"github.com/dialup-inc/photobooth/term"
)

// ramp runs from dark to bright.
var ramp = []byte(" .,:;i1tfLCG08@")

// letterbox is where an image of size src lands inside a cols x rows grid
// once cells are stretched by aspect.
func letterbox(src image.Rectangle, cols, rows int, aspect float64) image.Rectangle {
	w, h := float64(src.Dx())*aspect, float64(src.Dy())
	if w == 0 || h == 0 {
		return image.Rectangle{}
	}
	k := float64(cols) / w
	if kh := float64(rows) / h; kh < k {
		k = kh
	}
	fw, fh := int(w*k), int(h*k)
	x, y := (cols-fw)/2, (rows-fh)/2
	return image.Rect(x, y, x+fw, y+fh)
}

func shade(c color.Color, light bool) byte {
	k, _, _, _ := color.GrayModel.Convert(c).RGBA()
	i := int(k) * (len(ramp) - 1) / 0xffff
	if light {
		i = len(ramp) - 1 - i
	}
	return ramp[i]
}

// Image2ANSI renders img as coloured characters filling cols x rows, letter
// boxed. aspect is the cell height to width ratio.
func Image2ANSI(img image.Image, cols, rows int, aspect float64, lightBackground bool) []byte {
	canvas := image.NewPaletted(image.Rect(0, 0, cols, rows), term.ANSIPalette)
	if img != nil {
		if r := letterbox(img.Bounds(), cols, rows, aspect); !r.Empty() {
			scaled := resize.Resize(uint(r.Dx()), uint(r.Dy()), img, resize.Bilinear)
			draw.Draw(canvas, r, scaled, image.Point{}, draw.Over)
		}
	}

	var buf bytes.Buffer
	a := term.ANSI{W: &buf}
	last := -1
	for _, p := range canvas.Pix {
		c := canvas.Palette[p]
		if int(p) != last {
			a.Foreground(c)
			last = int(p)
		}
		buf.WriteByte(shade(c, lightBackground))
	}
	return buf.Bytes()
}
