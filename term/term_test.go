package term

import (
	"bytes"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestANSIPalette(t *testing.T) {
	assert.Len(t, ANSIPalette, 256)
	assert.Equal(t, 0, ANSIPalette.Index(color.Black))
	assert.Equal(t, 15, ANSIPalette.Index(color.White))
}

func TestANSI(t *testing.T) {
	var buf bytes.Buffer
	a := ANSI{&buf}

	a.CursorPosition(3, 7)
	a.Foreground(color.RGBA{0xff, 0x00, 0x00, 0xff})
	a.Reset()

	assert.Equal(t, "\x1b[3;7H\x1b[38;5;9m\x1b[0m", buf.String())
}

func TestReadRunes(t *testing.T) {
	var got []rune
	ReadRunes(strings.NewReader("pq\x03é"), func(r rune) { got = append(got, r) })
	assert.Equal(t, []rune{'p', 'q', 3, 'é'}, got)
}
