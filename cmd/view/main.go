// Command view prints a picture as ANSI art, by default the newest one in
// the booth's picture directory.
package main

import (
	"errors"
	"flag"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"

	"github.com/dialup-inc/photobooth/config"
	"github.com/dialup-inc/photobooth/term"
	"github.com/dialup-inc/photobooth/ui"
)

func newest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return "", err
	}
	var (
		best    string
		bestMod int64
	)
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		if mod := fi.ModTime().UnixNano(); best == "" || mod > bestMod {
			best, bestMod = m, mod
		}
	}
	if best == "" {
		return "", errors.New("no pictures in " + dir)
	}
	return best, nil
}

func load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

func main() {
	configPath := flag.String("config", "photobooth.yaml", "path to the YAML config")
	flag.Parse()

	path := flag.Arg(0)
	if path == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		if path, err = newest(cfg.Store.Dir); err != nil {
			log.Fatal(err)
		}
	}

	img, err := load(path)
	if err != nil {
		log.Fatal(err)
	}

	ansi := term.ANSI{W: os.Stdout}

	defer func() {
		ansi.ShowCursor()
		ansi.Reset()
		os.Stdout.Sync()
	}()

	ws, err := term.GetWinSize()
	if err != nil {
		log.Fatal(err)
	}

	ansi.Background(color.RGBA{0, 0, 0, 255})
	ansi.CursorPosition(1, 1)

	imgANSI := ui.Image2ANSI(img, ws.Cols, ws.Rows-1, ui.Aspect(ws), false)
	os.Stdout.Write(imgANSI)

	ansi.HideCursor()

	buf := make([]byte, 1)
	os.Stdin.Read(buf)
}
