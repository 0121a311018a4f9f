package wall

import (
	"math"
	"math/rand"
	"time"

	"github.com/dialup-inc/photobooth/geom"
)

const (
	SpinTransition    = 5 * time.Second
	SpinCadence       = 2 * time.Second
	RestoreTransition = 1 * time.Second
)

// Scheduler runs f once after d. The App's scheduler posts f back onto its
// main loop.
type Scheduler func(d time.Duration, f func())

// AfterFunc schedules on a plain timer goroutine.
func AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Animator scatters the tiles of a wall around at random and brings them
// back home. It is not safe for concurrent use; drive it from one loop.
type Animator struct {
	wall     *Wall
	schedule Scheduler
	rnd      *rand.Rand

	// Changed, if set, gets a copy of the tiles after every change.
	Changed func([]Tile)

	active bool
	gen    uint64
}

func NewAnimator(w *Wall, schedule Scheduler, rnd *rand.Rand) *Animator {
	if schedule == nil {
		schedule = AfterFunc
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Animator{wall: w, schedule: schedule, rnd: rnd}
}

func (a *Animator) Active() bool { return a.active }

// SetActive turns spinning on or off. Turning it on spins right away.
// Turning it off leaves the tiles where they are.
func (a *Animator) SetActive(on bool) {
	if on == a.active {
		return
	}
	a.active = on
	if on {
		a.Spin()
	} else {
		a.gen++
	}
}

// Toggle flips spinning; when it stops the tiles go home.
func (a *Animator) Toggle() bool {
	if a.active {
		a.SetActive(false)
		a.RestoreHome()
	} else {
		a.SetActive(true)
	}
	return a.active
}

// Spin moves every tile to a random spot with a random scale and rotation
// and schedules the next spin. It does nothing while inactive. Only the
// most recent spin's follow-up fires, so repeated calls never speed up the
// cadence.
func (a *Animator) Spin() {
	if !a.active {
		return
	}

	root := a.wall.Root
	for _, t := range a.wall.Tiles {
		center := geom.Point{
			X: root.X + a.rnd.Float64()*root.W,
			Y: root.Y + a.rnd.Float64()*root.H,
		}
		t.Rect = t.Home.WithCenter(center)
		t.Transform = geom.Transform{
			Scale: a.rnd.Float64() * 2,
			Angle: math.Pi * a.rnd.Float64(),
			AX:    a.rnd.Float64(),
			AY:    a.rnd.Float64(),
			AZ:    a.rnd.Float64(),
		}
		t.Transition = SpinTransition
	}
	a.changed()

	a.gen++
	gen := a.gen
	a.schedule(SpinCadence, func() {
		if gen == a.gen {
			a.Spin()
		}
	})
}

// RestoreHome puts every tile back on its home rect with no transform. It
// does not clear the active flag, so a pending spin will scatter them again
// unless the caller deactivates first.
func (a *Animator) RestoreHome() {
	for _, t := range a.wall.Tiles {
		t.Rect = t.Home
		t.Transform = geom.Identity
		t.Transition = RestoreTransition
	}
	a.changed()
}

func (a *Animator) changed() {
	if a.Changed != nil {
		a.Changed(a.wall.Snapshot())
	}
}
