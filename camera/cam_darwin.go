package camera

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type imagesnapDriver struct {
	opts Options
}

func platformDriver(opts Options) (Driver, error) {
	if _, err := exec.LookPath("imagesnap"); err != nil {
		return nil, fmt.Errorf("%w: imagesnap not installed: %v", ErrCamInitFailed, err)
	}
	return &imagesnapDriver{opts: opts}, nil
}

func (d *imagesnapDriver) Name() string { return "imagesnap" }

// Devices lists what imagesnap -l reports. imagesnap only exposes video
// capable devices, muxed ones (DV cameras) included.
func (d *imagesnapDriver) Devices() ([]Device, error) {
	out, err := exec.Command("imagesnap", "-l").Output()
	if err != nil {
		return nil, fmt.Errorf("imagesnap -l: %w", err)
	}
	return parseImagesnapDevices(string(out)), nil
}

func (d *imagesnapDriver) Open(dev Device) (Source, error) {
	dir, err := os.MkdirTemp("", "photobooth-imagesnap-")
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w: %v", dev.ID, ErrCamOpenFailed, err)
	}
	return &imagesnapSource{dev: dev, opts: d.opts, dir: dir}, nil
}

type imagesnapSource struct {
	dev  Device
	opts Options
	dir  string

	mu       sync.Mutex
	callback FrameCallback
	cancel   context.CancelFunc
	watcher  *fsnotify.Watcher
	closed   bool
}

// Start runs imagesnap in time-lapse mode into a scratch directory and hands
// every written frame to cb.
func (s *imagesnapSource) Start(cb FrameCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrCamClosed
	}
	s.callback = cb
	if s.cancel != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("camera %s: watch frames: %w", s.dev.ID, err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("camera %s: watch frames: %w", s.dev.ID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "imagesnap", "-q",
		"-d", s.dev.ID,
		"-t", fmt.Sprintf("%.2f", s.opts.PreviewInterval.Seconds()),
	)
	cmd.Dir = s.dir
	if err := cmd.Start(); err != nil {
		cancel()
		watcher.Close()
		return fmt.Errorf("camera %s: %w: %v", s.dev.ID, ErrCamOpenFailed, err)
	}
	go cmd.Wait()

	s.cancel = cancel
	s.watcher = watcher
	go s.watch(watcher)
	return nil
}

func (s *imagesnapSource) watch(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) || !strings.HasSuffix(ev.Name, ".jpg") {
				continue
			}
			img, err := readJPEG(ev.Name)
			if err != nil {
				// imagesnap may still be writing the file
				continue
			}
			os.Remove(ev.Name)

			s.mu.Lock()
			cb := s.callback
			s.mu.Unlock()
			if cb != nil {
				cb(img, nil)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.mu.Lock()
			cb := s.callback
			s.mu.Unlock()
			if cb != nil {
				cb(nil, err)
			}
		}
	}
}

// Still runs a separate one-shot imagesnap with a short warmup.
func (s *imagesnapSource) Still(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrCamClosed
	}

	path := filepath.Join(s.dir, "still.jpeg")
	cmd := exec.CommandContext(ctx, "imagesnap", "-q", "-w", "1", "-d", s.dev.ID, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("camera %s: %w", s.dev.ID, ErrCamTimeout)
		}
		return nil, fmt.Errorf("camera %s: imagesnap: %v: %s", s.dev.ID, err, strings.TrimSpace(string(out)))
	}
	defer os.Remove(path)
	return readJPEG(path)
}

func (s *imagesnapSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	return os.RemoveAll(s.dir)
}

func readJPEG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return jpeg.Decode(f)
}
