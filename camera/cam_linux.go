package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blackjack/webcam"

	"github.com/dialup-inc/photobooth/yuv"
)

const webcamReadTimeout = 5

// fourcc codes of the uncompressed layouts yuv can decode
var rawFormats = map[webcam.PixelFormat]yuv.Format{
	0x56595559: yuv.YUYV, // YUYV
	0x32315559: yuv.I420, // YU12
	0x3132564e: yuv.NV21, // NV21
}

type v4l2Driver struct {
	opts Options
}

func platformDriver(opts Options) (Driver, error) {
	return &v4l2Driver{opts: opts}, nil
}

func (d *v4l2Driver) Name() string { return "v4l2" }

// Devices walks /dev for video character devices. Nodes that can't be
// opened or that expose no pixel formats (metadata nodes) are listed
// without the Video kind so that filtering drops them.
func (d *v4l2Driver) Devices() ([]Device, error) {
	var devs []Device
	err := filepath.WalkDir("/dev", func(path string, info fs.DirEntry, err error) error {
		if err != nil || info.IsDir() || !strings.HasPrefix(info.Name(), "video") {
			return nil
		}
		if info.Type()&os.ModeCharDevice == 0 {
			return nil
		}
		cam, err := webcam.Open(path)
		if err != nil {
			return nil // busy or unsupported, skip
		}
		defer cam.Close()

		dev := Device{ID: path, Name: path}
		if name, err := cam.GetName(); err == nil && name != "" {
			dev.Name = name
		}
		if len(cam.GetSupportedFormats()) > 0 {
			dev.Kinds = []MediaKind{Video}
		}
		devs = append(devs, dev)
		return nil
	})
	if len(devs) == 0 && err != nil {
		return nil, err
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].ID < devs[j].ID })
	return devs, nil
}

func (d *v4l2Driver) Open(dev Device) (Source, error) {
	cam, err := webcam.Open(dev.ID)
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w: %v", dev.ID, ErrCamOpenFailed, err)
	}

	var (
		selected webcam.PixelFormat
		isJPEG   bool
		raw      yuv.Format
	)
	for f, name := range cam.GetSupportedFormats() {
		if strings.HasPrefix(name, "Motion-JPEG") {
			selected, isJPEG = f, true
			break
		}
		if rf, ok := rawFormats[f]; ok && selected == 0 {
			selected, raw = f, rf
		}
	}
	if selected == 0 {
		cam.Close()
		return nil, fmt.Errorf("camera %s: %w", dev.ID, ErrCamNoFormat)
	}

	_, w, h, err := cam.SetImageFormat(selected, uint32(d.opts.Width), uint32(d.opts.Height))
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("camera %s: %w: %v", dev.ID, ErrCamOpenFailed, err)
	}
	if err := cam.SetBufferCount(2); err != nil {
		cam.Close()
		return nil, fmt.Errorf("camera %s: %w: %v", dev.ID, ErrCamOpenFailed, err)
	}

	s := &v4l2Source{
		dev:    dev,
		cam:    cam,
		isJPEG: isJPEG,
		raw:    raw,
		width:  int(w),
		height: int(h),
		next:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	return s, nil
}

// stream is the part of *webcam.Webcam a source reads frames through.
type stream interface {
	StartStreaming() error
	StopStreaming() error
	WaitForFrame(timeout uint32) error
	ReadFrame() ([]byte, error)
	Close() error
}

type v4l2Source struct {
	dev    Device
	cam    stream
	isJPEG bool
	raw    yuv.Format
	width  int
	height int

	mu       sync.Mutex
	callback FrameCallback
	running  bool
	closed   bool
	latest   image.Image
	lastErr  error
	next     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (s *v4l2Source) Start(cb FrameCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrCamClosed
	}
	s.callback = cb
	if s.running {
		return nil
	}
	if err := s.cam.StartStreaming(); err != nil {
		return fmt.Errorf("camera %s: %w: %v", s.dev.ID, ErrCamOpenFailed, err)
	}
	s.running = true
	go s.readLoop()
	return nil
}

func (s *v4l2Source) readLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		err := s.cam.WaitForFrame(webcamReadTimeout)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			s.halt()
			s.publish(nil, fmt.Errorf("camera %s: %w", s.dev.ID, err))
			return
		}

		frame, err := s.cam.ReadFrame()
		if len(frame) == 0 {
			if err != nil {
				s.publish(nil, err)
			}
			continue
		}
		img, err := s.decode(frame)
		s.publish(img, err)
	}
}

// halt marks a stream that died as stopped, so the next Start or Still
// starts it again.
func (s *v4l2Source) halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.closed {
		return
	}
	s.running = false
	s.cam.StopStreaming()
}

func (s *v4l2Source) decode(frame []byte) (image.Image, error) {
	if s.isJPEG {
		return jpeg.Decode(bytes.NewReader(frame))
	}
	// the driver reuses the buffer on the next read
	buf := make([]byte, len(frame))
	copy(buf, frame)
	return yuv.Decode(s.raw, buf, s.width, s.height)
}

func (s *v4l2Source) publish(img image.Image, err error) {
	s.mu.Lock()
	cb := s.callback
	if err == nil {
		s.latest = img
	}
	s.lastErr = err
	close(s.next)
	s.next = make(chan struct{})
	s.mu.Unlock()

	if cb != nil {
		cb(img, err)
	}
}

// Still waits for the next frame the stream produces.
func (s *v4l2Source) Still(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrCamClosed
	}
	if !s.running {
		s.mu.Unlock()
		if err := s.Start(nil); err != nil {
			return nil, err
		}
		s.mu.Lock()
	}
	next := s.next
	s.mu.Unlock()

	select {
	case <-next:
	case <-ctx.Done():
		return nil, fmt.Errorf("camera %s: %w", s.dev.ID, ErrCamTimeout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil {
		return nil, s.lastErr
	}
	return s.latest, nil
}

func (s *v4l2Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	running := s.running
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.done) })
	if running {
		s.cam.StopStreaming()
	}
	return s.cam.Close()
}
