package term

import (
	"os"

	"golang.org/x/sys/unix"
)

// WinSize is the terminal size in cells and, when the terminal reports it,
// pixels.
type WinSize struct {
	Rows   int
	Cols   int
	Width  int
	Height int
}

func GetWinSize() (WinSize, error) {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return WinSize{}, err
	}
	return WinSize{
		Rows:   int(ws.Row),
		Cols:   int(ws.Col),
		Width:  int(ws.Xpixel),
		Height: int(ws.Ypixel),
	}, nil
}
