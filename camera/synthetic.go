package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
)

// Synthetic is a driver with generated cameras. Each camera shows colour
// bars that scroll a little with every frame. It also lists one audio-only
// device, which Enumerate filters out like the real thing.
type Synthetic struct {
	Count         int
	Width, Height int
	FrameInterval time.Duration

	// FailOpen makes Open fail for these device ids.
	FailOpen map[string]bool
}

func NewSynthetic(count, width, height int) *Synthetic {
	return &Synthetic{
		Count:         count,
		Width:         width,
		Height:        height,
		FrameInterval: 100 * time.Millisecond,
	}
}

func (s *Synthetic) Name() string { return "synthetic" }

func (s *Synthetic) Devices() ([]Device, error) {
	devs := make([]Device, 0, s.Count+1)
	for i := 0; i < s.Count; i++ {
		devs = append(devs, Device{
			ID:    fmt.Sprintf("synthetic%d", i),
			Name:  fmt.Sprintf("Synthetic Camera %d", i),
			Kinds: []MediaKind{Video},
		})
		if i == 0 {
			devs = append(devs, Device{ID: "synthetic-mic", Name: "Synthetic Microphone", Kinds: []MediaKind{Audio}})
		}
	}
	return devs, nil
}

func (s *Synthetic) Open(dev Device) (Source, error) {
	if s.FailOpen[dev.ID] {
		return nil, fmt.Errorf("camera %s: %w", dev.ID, ErrCamOpenFailed)
	}
	if !dev.Has(Video) {
		return nil, fmt.Errorf("camera %s: %w", dev.ID, ErrCamNoFormat)
	}
	var seed int
	fmt.Sscanf(dev.ID, "synthetic%d", &seed)
	return &syntheticSource{
		w:        s.Width,
		h:        s.Height,
		interval: s.FrameInterval,
		offset:   seed * 37,
		done:     make(chan struct{}),
	}, nil
}

var bars = []color.RGBA{
	{0xc0, 0xc0, 0xc0, 0xff},
	{0xc0, 0xc0, 0x00, 0xff},
	{0x00, 0xc0, 0xc0, 0xff},
	{0x00, 0xc0, 0x00, 0xff},
	{0xc0, 0x00, 0xc0, 0xff},
	{0xc0, 0x00, 0x00, 0xff},
	{0x00, 0x00, 0xc0, 0xff},
}

type syntheticSource struct {
	w, h     int
	interval time.Duration
	offset   int

	mu       sync.Mutex
	frame    int
	callback FrameCallback
	running  bool
	closed   bool
	done     chan struct{}
}

func (s *syntheticSource) render() image.Image {
	s.mu.Lock()
	s.frame++
	shift := s.frame*4 + s.offset
	s.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	barW := s.w/len(bars) + 1
	for x := 0; x < s.w; x++ {
		c := bars[((x+shift)/barW)%len(bars)]
		for y := 0; y < s.h; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func (s *syntheticSource) Start(cb FrameCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrCamClosed
	}
	s.callback = cb
	if s.running {
		return nil
	}
	s.running = true

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
			img := s.render()
			s.mu.Lock()
			cb := s.callback
			s.mu.Unlock()
			if cb != nil {
				cb(img, nil)
			}
		}
	}()
	return nil
}

func (s *syntheticSource) Still(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrCamClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrCamTimeout
	}
	return s.render(), nil
}

func (s *syntheticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}
