package term

import (
	"fmt"
	"image/color"
	"io"
)

// ANSIPalette is the xterm 256 colour palette: 16 system colours, a 6x6x6
// cube and a 24 step gray ramp.
var ANSIPalette = func() color.Palette {
	p := make(color.Palette, 0, 256)
	system := []color.RGBA{
		{0x00, 0x00, 0x00, 0xff}, {0x80, 0x00, 0x00, 0xff}, {0x00, 0x80, 0x00, 0xff}, {0x80, 0x80, 0x00, 0xff},
		{0x00, 0x00, 0x80, 0xff}, {0x80, 0x00, 0x80, 0xff}, {0x00, 0x80, 0x80, 0xff}, {0xc0, 0xc0, 0xc0, 0xff},
		{0x80, 0x80, 0x80, 0xff}, {0xff, 0x00, 0x00, 0xff}, {0x00, 0xff, 0x00, 0xff}, {0xff, 0xff, 0x00, 0xff},
		{0x00, 0x00, 0xff, 0xff}, {0xff, 0x00, 0xff, 0xff}, {0x00, 0xff, 0xff, 0xff}, {0xff, 0xff, 0xff, 0xff},
	}
	for _, c := range system {
		p = append(p, c)
	}
	levels := []uint8{0x00, 0x5f, 0x87, 0xaf, 0xd7, 0xff}
	for _, r := range levels {
		for _, g := range levels {
			for _, b := range levels {
				p = append(p, color.RGBA{r, g, b, 0xff})
			}
		}
	}
	for i := 0; i < 24; i++ {
		v := uint8(8 + i*10)
		p = append(p, color.RGBA{v, v, v, 0xff})
	}
	return p
}()

// ANSI writes escape sequences to W.
type ANSI struct {
	W io.Writer
}

func (a ANSI) csi(format string, args ...interface{}) {
	fmt.Fprintf(a.W, "\x1b["+format, args...)
}

// CursorPosition moves the cursor to a 1-based row and column.
func (a ANSI) CursorPosition(row, col int) { a.csi("%d;%dH", row, col) }

func (a ANSI) Clear()      { a.csi("2J") }
func (a ANSI) HideCursor() { a.csi("?25l") }
func (a ANSI) ShowCursor() { a.csi("?25h") }
func (a ANSI) Reset()      { a.csi("0m") }
func (a ANSI) Bold()       { a.csi("1m") }
func (a ANSI) Normal()     { a.csi("22m") }
func (a ANSI) Blink()      { a.csi("5m") }
func (a ANSI) BlinkOff()   { a.csi("25m") }

func (a ANSI) Foreground(c color.Color) { a.csi("38;5;%dm", ANSIPalette.Index(c)) }
func (a ANSI) Background(c color.Color) { a.csi("48;5;%dm", ANSIPalette.Index(c)) }
func (a ANSI) ForegroundReset()         { a.csi("39m") }
func (a ANSI) BackgroundReset()         { a.csi("49m") }

// ResizeWindow asks the terminal emulator to resize to rows x cols. Not
// every emulator honours it.
func (a ANSI) ResizeWindow(rows, cols int) { a.csi("8;%d;%dt", rows, cols) }
