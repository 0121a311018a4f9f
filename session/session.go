// Package session wires camera inputs to preview tiles and owns the single
// still image output.
package session

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dialup-inc/photobooth/camera"
)

var (
	ErrStillOutputActive = errors.New("session: a still output is already active")
	ErrUnknownDevice     = errors.New("session: device is not an input")
	ErrRunning           = errors.New("session: cannot reconfigure a running session")
	ErrNoStillOutput     = errors.New("session: no still output")
)

// FrameFunc receives preview frames tagged with the device they came from.
type FrameFunc func(deviceID string, img image.Image, err error)

// Session owns the opened camera sources. Devices themselves belong to the
// platform; a session only holds them by id.
type Session struct {
	driver camera.Driver
	log    zerolog.Logger

	mu          sync.Mutex
	order       []string
	inputs      map[string]camera.Source
	connections map[string][]string
	still       string
	running     bool
}

func New(driver camera.Driver, log zerolog.Logger) *Session {
	return &Session{
		driver:      driver,
		log:         log,
		inputs:      map[string]camera.Source{},
		connections: map[string][]string{},
	}
}

// AddInput opens dev and adds it as an input. Adding a device twice is a
// no-op.
func (s *Session) AddInput(dev camera.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}
	if _, ok := s.inputs[dev.ID]; ok {
		return nil
	}

	src, err := s.driver.Open(dev)
	if err != nil {
		return err
	}
	s.inputs[dev.ID] = src
	s.order = append(s.order, dev.ID)
	s.log.Debug().Str("device", dev.ID).Msg("input added")
	return nil
}

// RemoveInput closes the device's source and drops its connections.
func (s *Session) RemoveInput(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.inputs[deviceID]
	if !ok {
		return ErrUnknownDevice
	}
	delete(s.inputs, deviceID)
	delete(s.connections, deviceID)
	for i, id := range s.order {
		if id == deviceID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.still == deviceID {
		s.still = ""
	}
	return src.Close()
}

// Connect routes the device's preview to a tile.
func (s *Session) Connect(deviceID, tileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inputs[deviceID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	s.connections[deviceID] = append(s.connections[deviceID], tileID)
	return nil
}

// Connections lists the tiles fed by a device, in connection order.
func (s *Session) Connections(deviceID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.connections[deviceID]...)
}

// Inputs lists the input device ids in the order they were added.
func (s *Session) Inputs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// SetStillOutput makes deviceID the source of still captures. Only one
// still output may be active; setting the same device again is allowed.
func (s *Session) SetStillOutput(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inputs[deviceID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	if s.still != "" && s.still != deviceID {
		return ErrStillOutputActive
	}
	s.still = deviceID
	return nil
}

func (s *Session) ClearStillOutput() {
	s.mu.Lock()
	s.still = ""
	s.mu.Unlock()
}

// StillOutput returns the device and source stills are taken from.
func (s *Session) StillOutput() (string, camera.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.still == "" {
		return "", nil, ErrNoStillOutput
	}
	return s.still, s.inputs[s.still], nil
}

// Start begins streaming previews from every input to fn. Starting a
// running session does nothing.
func (s *Session) Start(fn FrameFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	for _, id := range s.order {
		id := id
		err := s.inputs[id].Start(func(img image.Image, err error) {
			if fn != nil {
				fn(id, img, err)
			}
		})
		if err != nil {
			return fmt.Errorf("start %s: %w", id, err)
		}
	}
	s.running = true
	s.log.Info().Int("inputs", len(s.order)).Msg("session started")
	return nil
}

// Stop pauses preview delivery. Stopping a stopped session does nothing.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	for _, id := range s.order {
		s.inputs[id].Start(nil)
	}
	s.running = false
	s.log.Info().Msg("session stopped")
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Close stops the session and closes every input.
func (s *Session) Close() error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, id := range s.order {
		if err := s.inputs[id].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	s.order = nil
	s.inputs = map[string]camera.Source{}
	s.connections = map[string][]string{}
	s.still = ""
	return errors.Join(errs...)
}
