package wall

import (
	"fmt"

	"github.com/dialup-inc/photobooth/camera"
	"github.com/dialup-inc/photobooth/geom"
)

// Layout selects the wall variant.
type Layout struct {
	// TilesPerDevice is 1 (the device fills its slot) or 4 (a 2x2 square).
	TilesPerDevice int
	// Mirror flips quadrants so the square reads like a kaleidoscope.
	Mirror bool
}

var (
	SingleLayout   = Layout{TilesPerDevice: 1}
	QuadrantLayout = Layout{TilesPerDevice: 4, Mirror: true}
)

func (l Layout) Validate() error {
	if l.TilesPerDevice != 1 && l.TilesPerDevice != 4 {
		return fmt.Errorf("wall: tiles per device must be 1 or 4, got %d", l.TilesPerDevice)
	}
	return nil
}

type Assembler struct {
	Layout    Layout
	Quadrants geom.Quadrants
}

func NewAssembler(l Layout) *Assembler {
	return &Assembler{Layout: l, Quadrants: geom.DefaultQuadrants}
}

// Assemble gives every device an equal slot across root, left to right, and
// fills it with tiles wired through c. No devices gives an empty wall and
// no error.
//
// When a device can't be wired the wall built so far is returned together
// with an *AssemblyError, and later devices are skipped.
func (a *Assembler) Assemble(devs []camera.Device, root geom.Rect, c Connector) (*Wall, error) {
	w := &Wall{Root: root}
	if len(devs) == 0 {
		return w, nil
	}
	if err := a.Layout.Validate(); err != nil {
		return w, err
	}

	slotW := root.W / float64(len(devs))
	for i, dev := range devs {
		slot := geom.R(root.X+float64(i)*slotW, root.Y, slotW, root.H)

		tiles, err := a.tilesFor(dev, slot)
		if err != nil {
			return w, &AssemblyError{DeviceID: dev.ID, Err: err}
		}
		if err := c.AddInput(dev); err != nil {
			return w, &AssemblyError{DeviceID: dev.ID, Err: err}
		}
		for _, t := range tiles {
			if err := c.Connect(dev.ID, t.ID); err != nil {
				return w, &AssemblyError{DeviceID: dev.ID, Err: err}
			}
		}
		w.Tiles = append(w.Tiles, tiles...)
	}
	return w, nil
}

func (a *Assembler) tilesFor(dev camera.Device, slot geom.Rect) ([]*Tile, error) {
	if a.Layout.TilesPerDevice == 1 {
		return []*Tile{newTile(dev.ID, -1, slot)}, nil
	}

	tiles := make([]*Tile, 0, 4)
	for q := 0; q < 4; q++ {
		r, err := a.Quadrants.Rect(q, slot)
		if err != nil {
			return nil, err
		}
		t := newTile(dev.ID, q, r)
		if a.Layout.Mirror {
			t.Mirrored = q == 1 || q == 2
			t.UpsideDown = q == 0 || q == 1
		}
		tiles = append(tiles, t)
	}
	return tiles, nil
}

func newTile(deviceID string, q int, r geom.Rect) *Tile {
	id := deviceID
	if q >= 0 {
		id = fmt.Sprintf("%s/%d", deviceID, q)
	}
	return &Tile{
		ID:        id,
		DeviceID:  deviceID,
		Quadrant:  q,
		Rect:      r,
		Home:      r,
		Transform: geom.Identity,
	}
}
