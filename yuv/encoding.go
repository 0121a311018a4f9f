package yuv

import (
	"fmt"
	"image"
)

// Format is a raw pixel layout a camera can hand out.
type Format int

const (
	YUYV Format = iota
	I420
	NV21
)

func (f Format) String() string {
	switch f {
	case YUYV:
		return "YUYV"
	case I420:
		return "I420"
	case NV21:
		return "NV21"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Decode wraps a raw frame in f's layout as an image. The returned image
// shares memory with frame.
func Decode(f Format, frame []byte, width, height int) (*image.YCbCr, error) {
	switch f {
	case YUYV:
		return FromYUYV(frame, width, height)
	case I420:
		return FromI420(frame, width, height)
	case NV21:
		return FromNV21(frame, width, height)
	default:
		return nil, fmt.Errorf("unsupported raw format %v", f)
	}
}

// FromI420 decodes an i420-encoded YUV image into a Go Image.
//
// See https://www.fourcc.org/pixel-format/yuv-i420/
func FromI420(frame []byte, width, height int) (*image.YCbCr, error) {
	yi := width * height
	cbi := yi + width*height/4
	cri := cbi + width*height/4

	if cri > len(frame) {
		return nil, fmt.Errorf("frame length (%d) less than expected (%d)", len(frame), cri)
	}

	return &image.YCbCr{
		Y:              frame[:yi],
		YStride:        width,
		Cb:             frame[yi:cbi],
		Cr:             frame[cbi:cri],
		CStride:        width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, width, height),
	}, nil
}

// FromNV21 decodes an NV21-encoded YUV image into a Go Image. The chroma
// plane interleaves V before U.
//
// See https://www.fourcc.org/pixel-format/yuv-nv21/
func FromNV21(frame []byte, width, height int) (*image.YCbCr, error) {
	yi := width * height
	ci := yi + width*height/2

	if ci > len(frame) {
		return nil, fmt.Errorf("frame length (%d) less than expected (%d)", len(frame), ci)
	}

	n := (ci - yi) / 2
	cb := make([]byte, 0, n)
	cr := make([]byte, 0, n)
	for i := yi; i+1 < ci; i += 2 {
		cr = append(cr, frame[i])
		cb = append(cb, frame[i+1])
	}

	return &image.YCbCr{
		Y:              frame[:yi],
		YStride:        width,
		Cb:             cb,
		Cr:             cr,
		CStride:        width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, width, height),
	}, nil
}

// FromYUYV decodes a packed YUYV 4:2:2 image, the usual uncompressed UVC
// webcam format, into a Go Image.
//
// See https://www.fourcc.org/pixel-format/yuv-yuy2/
func FromYUYV(frame []byte, width, height int) (*image.YCbCr, error) {
	n := width * height * 2
	if n > len(frame) {
		return nil, fmt.Errorf("frame length (%d) less than expected (%d)", len(frame), n)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := frame[y*width*2 : (y+1)*width*2]
		for x := 0; x+1 < width; x += 2 {
			i := x * 2
			img.Y[y*img.YStride+x] = row[i]
			img.Y[y*img.YStride+x+1] = row[i+2]

			ci := img.COffset(x, y)
			img.Cb[ci] = row[i+1]
			img.Cr[ci] = row[i+3]
		}
	}
	return img, nil
}
