package ui

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialup-inc/photobooth/geom"
	"github.com/dialup-inc/photobooth/pipeline"
	"github.com/dialup-inc/photobooth/term"
	"github.com/dialup-inc/photobooth/wall"
)

func solid(c color.RGBA, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// halves is red on the left and blue on the right.
func halves(w, h int) *image.RGBA {
	img := solid(color.RGBA{0xff, 0, 0, 0xff}, w, h)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{0, 0, 0xff, 0xff})
		}
	}
	return img
}

func isRed(c color.RGBA) bool   { return c.R > 0xe0 && c.B < 0x20 }
func isBlue(c color.RGBA) bool  { return c.B > 0xe0 && c.R < 0x20 }
func isBlack(c color.RGBA) bool { return c.R < 0x20 && c.G < 0x20 && c.B < 0x20 }

func TestStateReducer_Frames(t *testing.T) {
	a := image.NewRGBA(image.Rect(0, 0, 1, 1))
	b := image.NewRGBA(image.Rect(0, 0, 2, 2))

	s1 := StateReducer(State{}, FrameEvent{DeviceID: "cam0", Image: a})
	s2 := StateReducer(s1, FrameEvent{DeviceID: "cam1", Image: b})

	assert.Len(t, s1.Frames, 1, "earlier state is untouched")
	assert.Len(t, s2.Frames, 2)
	assert.Same(t, a, s2.Frames["cam0"])

	s3 := StateReducer(s2, FrameEvent{DeviceID: "cam0"})
	assert.Len(t, s3.Frames, 1)
	assert.NotContains(t, s3.Frames, "cam0")
}

func TestStateReducer_CountdownAndFlash(t *testing.T) {
	s := StateReducer(State{}, PipelineEvent(pipeline.Armed))
	s = StateReducer(s, CountdownEvent(5))
	assert.Equal(t, 5, s.Countdown)

	s = StateReducer(s, PipelineEvent(pipeline.Capturing))
	assert.Zero(t, s.Countdown)
	s = StateReducer(s, FlashEvent(true))
	assert.True(t, s.Flash)

	s = StateReducer(s, PipelineEvent(pipeline.Saved))
	assert.False(t, s.Flash)
	assert.Equal(t, pipeline.Saved, s.Pipeline)
}

func TestStateReducer_WallAndMessages(t *testing.T) {
	root := geom.R(0, 0, 800, 600)
	tiles := []wall.Tile{{ID: "cam0", DeviceID: "cam0"}}

	s := StateReducer(State{}, WallEvent{Root: root, Tiles: tiles})
	assert.Equal(t, root, s.Root)
	assert.Equal(t, tiles, s.Tiles)

	s = StateReducer(s, TilesEvent(nil))
	assert.Empty(t, s.Tiles)
	assert.Equal(t, root, s.Root)

	s = StateReducer(s, LogEvent{Text: "camera\nready", Level: LogLevelInfo})
	s = StateReducer(s, SavedEvent{Path: "a.jpg"})
	assert.Equal(t, []Message{
		{Level: LogLevelInfo, Text: "camera ready"},
		{Level: LogLevelInfo, Text: "saved a.jpg"},
	}, s.Messages)
	assert.Equal(t, "a.jpg", s.LastSaved)

	for i := 0; i < 2*maxMessages; i++ {
		s = StateReducer(s, LogEvent{Text: "x"})
	}
	assert.Len(t, s.Messages, maxMessages)

	s = StateReducer(s, ResizeEvent(term.WinSize{Rows: 24, Cols: 80}))
	assert.Equal(t, 80, s.WinSize.Cols)
}

func TestCompose_NoRoot(t *testing.T) {
	assert.Nil(t, Compose(State{}, 100))
}

func TestCompose_LowerLeftOriginFlipsY(t *testing.T) {
	s := State{
		Root:   geom.R(0, 0, 100, 100),
		Origin: geom.OriginLowerLeft,
		Tiles: []wall.Tile{{
			DeviceID:  "cam0",
			Rect:      geom.R(0, 50, 100, 50),
			Transform: geom.Identity,
		}},
		Frames: map[string]image.Image{"cam0": solid(color.RGBA{0xff, 0, 0, 0xff}, 20, 10)},
	}

	c := Compose(s, 100)
	require.NotNil(t, c)
	assert.Equal(t, image.Rect(0, 0, 100, 100), c.Bounds())
	assert.True(t, isRed(c.RGBAAt(50, 25)), "upper half in layer coordinates is drawn at the top")
	assert.True(t, isBlack(c.RGBAAt(50, 75)))

	s.Origin = geom.OriginUpperLeft
	c = Compose(s, 100)
	assert.True(t, isBlack(c.RGBAAt(50, 25)))
	assert.True(t, isRed(c.RGBAAt(50, 75)))
}

func TestCompose_Mirrored(t *testing.T) {
	tile := wall.Tile{DeviceID: "cam0", Rect: geom.R(0, 0, 100, 100), Transform: geom.Identity}
	s := State{
		Root:   geom.R(0, 0, 100, 100),
		Tiles:  []wall.Tile{tile},
		Frames: map[string]image.Image{"cam0": halves(20, 20)},
	}

	c := Compose(s, 100)
	assert.True(t, isRed(c.RGBAAt(20, 50)))
	assert.True(t, isBlue(c.RGBAAt(80, 50)))

	s.Tiles[0].Mirrored = true
	c = Compose(s, 100)
	assert.True(t, isBlue(c.RGBAAt(20, 50)))
	assert.True(t, isRed(c.RGBAAt(80, 50)))
}

func TestCompose_ScaleAboutCenter(t *testing.T) {
	s := State{
		Root:   geom.R(0, 0, 100, 100),
		Origin: geom.OriginUpperLeft,
		Tiles: []wall.Tile{{
			DeviceID:  "cam0",
			Rect:      geom.R(0, 0, 100, 100),
			Transform: geom.Transform{Scale: 0.5, AZ: 1},
		}},
		Frames: map[string]image.Image{"cam0": solid(color.RGBA{0xff, 0, 0, 0xff}, 10, 10)},
	}

	c := Compose(s, 100)
	assert.True(t, isRed(c.RGBAAt(50, 50)))
	assert.True(t, isBlack(c.RGBAAt(10, 10)))
	assert.True(t, isBlack(c.RGBAAt(90, 90)))
}

func TestCompose_MissingFrameAndFlash(t *testing.T) {
	s := State{
		Root:  geom.R(0, 0, 100, 100),
		Tiles: []wall.Tile{{DeviceID: "cam0", Rect: geom.R(0, 0, 100, 100), Transform: geom.Identity}},
	}
	c := Compose(s, 100)
	px := c.RGBAAt(50, 50)
	assert.InDelta(t, 0x22, int(px.R), 1, "placeholder for a device without frames")
	assert.InDelta(t, 0x22, int(px.B), 1)

	s.Frames = map[string]image.Image{"cam0": solid(color.RGBA{0xff, 0xff, 0xff, 0xff}, 4, 4)}
	s.Flash = true
	c = Compose(s, 100)
	px = c.RGBAAt(50, 50)
	assert.Less(t, px.R, uint8(0x80), "flash dims the wall")
}

func TestImage2ANSI(t *testing.T) {
	out := Image2ANSI(solid(color.RGBA{0xff, 0, 0, 0xff}, 8, 8), 4, 2, 2, false)
	assert.Contains(t, string(out), "\x1b[")

	blank := Image2ANSI(nil, 4, 2, 2, false)
	assert.NotEmpty(t, blank)
}

func TestLetterbox(t *testing.T) {
	// a 4:3 picture in a wide grid is pillarboxed
	assert.Equal(t, image.Rect(25, 0, 35, 15), letterbox(image.Rect(0, 0, 4, 3), 60, 15, 0.5))
	assert.Equal(t, image.Rect(0, 5, 40, 25), letterbox(image.Rect(0, 0, 2, 1), 40, 30, 1))
	assert.True(t, letterbox(image.Rectangle{}, 10, 10, 2).Empty())
}

func TestShade(t *testing.T) {
	assert.Equal(t, byte(' '), shade(color.Black, false))
	assert.Equal(t, byte('@'), shade(color.White, false))
	assert.Equal(t, byte('@'), shade(color.Black, true))
}

func TestStatusLine(t *testing.T) {
	s := State{Pipeline: pipeline.Armed, Countdown: 3}
	line := statusLine(s, 80)
	assert.Equal(t, 80, len([]rune(line)))
	assert.True(t, strings.HasPrefix(line, " Photobooth  armed 3..."))
	assert.True(t, strings.HasSuffix(line, "q: quit  any key: spin "))

	assert.Equal(t, " Photo", statusLine(s, 6))
}

func TestRenderer_Draw(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)
	r.Dispatch(ResizeEvent(term.WinSize{Rows: 10, Cols: 40}))
	r.Dispatch(LogEvent{Text: "camera ready"})
	r.Dispatch(LogEvent{Text: "no collector", Level: LogLevelError})

	r.draw()
	out := buf.String()
	assert.Contains(t, out, "Photobooth  idle")
	assert.Contains(t, out, " camera ready")
	assert.Contains(t, out, " no collector")

	buf.Reset()
	r.Stop()
	assert.True(t, strings.HasPrefix(buf.String(), "\x1b[?25h"))
}

func TestRenderer_StartStop(t *testing.T) {
	var buf syncBuffer
	r := NewRenderer(&buf)
	r.Dispatch(ResizeEvent(term.WinSize{Rows: 8, Cols: 20}))

	r.Start()
	r.Start()
	r.Dispatch(PipelineEvent(pipeline.Capturing))
	r.Stop()

	assert.Contains(t, buf.String(), "\x1b[?25l")
	assert.Equal(t, pipeline.Capturing, r.GetState().Pipeline)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAspect(t *testing.T) {
	assert.Equal(t, 2.0, Aspect(term.WinSize{}))
	assert.Equal(t, 2.0, Aspect(term.WinSize{Rows: 10, Cols: 10, Width: 100, Height: 200}))
}
