// Package camera enumerates capture devices and opens them as frame
// sources. Platform specifics live behind the Driver interface.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
)

// MediaKind is a kind of media a capture device can produce.
type MediaKind int

const (
	Video MediaKind = iota
	Muxed
	Audio
)

func (k MediaKind) String() string {
	switch k {
	case Video:
		return "video"
	case Muxed:
		return "muxed"
	case Audio:
		return "audio"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Device describes a capture device known to the platform. Devices are
// enumerated, never created by this package.
type Device struct {
	ID    string
	Name  string
	Kinds []MediaKind
}

func (d Device) Has(k MediaKind) bool {
	for _, dk := range d.Kinds {
		if dk == k {
			return true
		}
	}
	return false
}

func (d Device) String() string {
	if d.Name == "" || d.Name == d.ID {
		return d.ID
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.ID)
}

// FrameCallback receives preview frames. A non-nil error means the stream
// hit a problem; the image is nil in that case.
type FrameCallback func(image.Image, error)

// Driver lists and opens devices on one platform backend.
type Driver interface {
	Name() string
	Devices() ([]Device, error)
	Open(dev Device) (Source, error)
}

// Source is an opened device.
type Source interface {
	// Start begins delivering preview frames to cb. Calling Start on a
	// running source replaces the callback.
	Start(cb FrameCallback) error
	// Still captures one frame. It blocks until a frame is available or ctx
	// is done.
	Still(ctx context.Context) (image.Image, error)
	Close() error
}

// DevicesProducingVideo keeps the devices that can produce video or muxed
// media, in the order given.
func DevicesProducingVideo(devs []Device) []Device {
	out := make([]Device, 0, len(devs))
	for _, d := range devs {
		if d.Has(Video) || d.Has(Muxed) {
			out = append(out, d)
		}
	}
	return out
}

// Enumerate lists the driver's devices and filters them to video producers.
// An empty result is not an error.
func Enumerate(d Driver) ([]Device, error) {
	devs, err := d.Devices()
	if err != nil {
		return nil, fmt.Errorf("%s: list devices: %w", d.Name(), err)
	}
	return DevicesProducingVideo(devs), nil
}

// Options configure a driver.
type Options struct {
	Width  int
	Height int

	// PreviewInterval is used by drivers that poll for preview frames.
	PreviewInterval time.Duration

	// SyntheticCount is the number of fake cameras the synthetic driver has.
	SyntheticCount int
}

var errUnknownDriver = errors.New("unknown camera driver")

// NewDriver returns the named driver. "auto" picks the platform driver.
func NewDriver(name string, opts Options) (Driver, error) {
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = 640, 480
	}
	if opts.PreviewInterval == 0 {
		opts.PreviewInterval = time.Second
	}

	switch strings.ToLower(name) {
	case "", "auto":
		return platformDriver(opts)
	case "synthetic", "fake":
		n := opts.SyntheticCount
		if n == 0 {
			n = 1
		}
		return NewSynthetic(n, opts.Width, opts.Height), nil
	case "v4l2", "imagesnap":
		d, err := platformDriver(opts)
		if err != nil {
			return nil, err
		}
		if d.Name() != strings.ToLower(name) {
			return nil, fmt.Errorf("%w: %s is not available on this platform", errUnknownDriver, name)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownDriver, name)
	}
}
