// Package wall lays camera previews out as a video wall and animates the
// tiles.
package wall

import (
	"fmt"
	"time"

	"github.com/dialup-inc/photobooth/camera"
	"github.com/dialup-inc/photobooth/geom"
)

// Tile is one preview slot on the wall. Home is fixed at assembly time.
type Tile struct {
	ID       string
	DeviceID string

	// Quadrant is the tile's position in its device's 2x2 square, or -1
	// when the device has a single tile.
	Quadrant   int
	Mirrored   bool
	UpsideDown bool

	Rect      geom.Rect
	Home      geom.Rect
	Transform geom.Transform

	// Transition is how long the last change to Rect and Transform takes
	// to animate.
	Transition time.Duration
}

// AtHome reports whether the tile sits untransformed at its home rect.
func (t Tile) AtHome() bool {
	return t.Rect == t.Home && t.Transform.IsIdentity()
}

// Wall is the ordered set of tiles, in creation order.
type Wall struct {
	Root  geom.Rect
	Tiles []*Tile
}

func (w *Wall) Empty() bool { return w == nil || len(w.Tiles) == 0 }

func (w *Wall) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Tiles)
}

func (w *Wall) Tile(id string) (*Tile, bool) {
	if w == nil {
		return nil, false
	}
	for _, t := range w.Tiles {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Snapshot copies the tiles so they can leave the main loop.
func (w *Wall) Snapshot() []Tile {
	if w == nil {
		return nil
	}
	out := make([]Tile, len(w.Tiles))
	for i, t := range w.Tiles {
		out[i] = *t
	}
	return out
}

// Devices lists the distinct devices on the wall in tile order.
func (w *Wall) Devices() []string {
	if w == nil {
		return nil
	}
	var ids []string
	seen := map[string]bool{}
	for _, t := range w.Tiles {
		if !seen[t.DeviceID] {
			seen[t.DeviceID] = true
			ids = append(ids, t.DeviceID)
		}
	}
	return ids
}

// AssemblyError reports the device whose wiring failed. Devices before it
// stay on the wall.
type AssemblyError struct {
	DeviceID string
	Err      error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assemble %s: %v", e.DeviceID, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Connector is the part of a capture session the assembler wires tiles
// into.
type Connector interface {
	AddInput(dev camera.Device) error
	Connect(deviceID, tileID string) error
}
