package ui

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dialup-inc/photobooth/pipeline"
	"github.com/dialup-inc/photobooth/term"
)

// statusHeight is the status bar plus three log lines.
const statusHeight = 4

// canvasWidth is the pixel width the wall is composited at before it is
// scaled down to characters.
const canvasWidth = 640

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{
		out:          out,
		requestFrame: make(chan struct{}, 1),
	}
}

type Renderer struct {
	out          io.Writer
	requestFrame chan struct{}

	stateMu sync.Mutex
	state   State

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

func (r *Renderer) GetState() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	return r.state
}

func (r *Renderer) Dispatch(e Event) {
	r.stateMu.Lock()
	newState := StateReducer(r.state, e)
	changed := true
	// frames are always new; everything else is cheap to compare
	if _, ok := e.(FrameEvent); !ok {
		changed = !reflect.DeepEqual(r.state, newState)
	}
	r.state = newState
	r.stateMu.Unlock()

	if changed {
		r.RequestFrame()
	}
}

func (r *Renderer) RequestFrame() {
	select {
	case r.requestFrame <- struct{}{}:
	default:
	}
}

// Aspect is the height to width ratio of a character cell. pixels are
// rectangular, not square in the terminal
func Aspect(w term.WinSize) float64 {
	if w.Width == 0 || w.Height == 0 || w.Rows == 0 || w.Cols == 0 {
		return 2.0
	}
	return float64(w.Height) * float64(w.Cols) / float64(w.Rows) / float64(w.Width)
}

func (r *Renderer) drawWall(buf *bytes.Buffer, s State) {
	a := term.ANSI{W: buf}

	vidW, vidH := s.WinSize.Cols, s.WinSize.Rows-statusHeight
	if vidW <= 0 || vidH <= 0 {
		return
	}

	a.CursorPosition(1, 1)
	a.Background(color.Black)
	a.Bold()

	var img image.Image
	if canvas := Compose(s, canvasWidth); canvas != nil {
		img = canvas
	}
	buf.Write(Image2ANSI(img, vidW, vidH, Aspect(s.WinSize), false))
}

func stateColor(st pipeline.State) color.Color {
	switch st {
	case pipeline.Armed:
		return color.RGBA{0xff, 0xff, 0x00, 0xff}
	case pipeline.Capturing:
		return color.RGBA{0xff, 0x00, 0x00, 0xff}
	case pipeline.Saved, pipeline.Delivered:
		return color.RGBA{0x00, 0xff, 0x00, 0xff}
	case pipeline.DeliveryFailed:
		return color.RGBA{0xff, 0x00, 0xff, 0xff}
	default:
		return color.RGBA{0x00, 0xff, 0xff, 0xff}
	}
}

// statusLine is the text of the status bar, fitted to width.
func statusLine(s State, width int) string {
	left := " Photobooth  " + s.Pipeline.String()
	if s.Countdown > 0 {
		left += fmt.Sprintf(" %d...", s.Countdown)
	}
	if s.Spinning {
		left += "  spinning"
	}
	right := "p: picture  q: quit  any key: spin "

	textLen := utf8.RuneCountInString(left) + utf8.RuneCountInString(right)
	if width <= textLen {
		return fitLine(left, width)
	}
	return left + strings.Repeat(" ", width-textLen) + right
}

// fitLine pads or cuts s to exactly width runes.
func fitLine(s string, width int) string {
	if width <= 0 {
		return ""
	}
	n := utf8.RuneCountInString(s)
	if n <= width {
		return s + strings.Repeat(" ", width-n)
	}
	return string([]rune(s)[:width])
}

func (r *Renderer) drawStatus(buf *bytes.Buffer, s State) {
	a := term.ANSI{W: buf}

	width := s.WinSize.Cols
	statusTop := s.WinSize.Rows - statusHeight + 1
	if statusTop < 1 || width <= 0 {
		return
	}
	logTop := statusTop + 1

	a.Normal()
	a.CursorPosition(statusTop, 1)
	a.Background(color.RGBA{0x12, 0x12, 0x12, 0xFF})
	a.Foreground(stateColor(s.Pipeline))
	buf.WriteString(statusLine(s, width))

	a.Background(color.RGBA{0x22, 0x22, 0x22, 0xFF})

	msgs := s.Messages
	if len(msgs) > 3 {
		msgs = msgs[len(msgs)-3:]
	}
	for i, m := range msgs {
		a.CursorPosition(logTop+i, 1)
		if m.Level == LogLevelError {
			a.Foreground(color.RGBA{0xFF, 0, 0, 0xFF})
		} else {
			a.Foreground(color.RGBA{0x99, 0x99, 0x99, 0xFF})
		}
		buf.WriteString(fitLine(" "+m.Text, width))
	}
	// blank if there arent enough messages
	for i := len(msgs); i < 3; i++ {
		a.CursorPosition(logTop+i, 1)
		buf.WriteString(strings.Repeat(" ", width))
	}
}

func (r *Renderer) draw() {
	buf := bytes.NewBuffer(nil)

	s := r.GetState()
	r.drawWall(buf, s)
	r.drawStatus(buf, s)

	io.Copy(r.out, buf)
}

func (r *Renderer) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		r.draw()

		select {
		case <-r.requestFrame:
		case <-ticker.C:
		case <-stop:
			return
		}
	}
}

// Start hides the cursor and begins drawing. Starting twice is a no-op.
func (r *Renderer) Start() {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.stop != nil {
		return
	}

	a := term.ANSI{W: r.out}
	a.HideCursor()

	r.stop, r.done = make(chan struct{}), make(chan struct{})
	go r.loop(r.stop, r.done)
}

// Stop ends the draw loop and leaves the terminal clean.
func (r *Renderer) Stop() {
	r.runMu.Lock()
	if r.stop != nil {
		close(r.stop)
		<-r.done
		r.stop, r.done = nil, nil
	}
	r.runMu.Unlock()

	s := r.GetState()

	buf := bytes.NewBuffer(nil)
	a := term.ANSI{W: buf}

	a.ShowCursor()
	a.Reset()
	a.BackgroundReset()
	a.ForegroundReset()
	a.Normal()
	a.CursorPosition(1, 1)
	buf.WriteString(strings.Repeat(" ", s.WinSize.Cols*s.WinSize.Rows))
	a.CursorPosition(1, 1)

	io.Copy(r.out, buf)
}
