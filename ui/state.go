package ui

import (
	"image"

	"github.com/dialup-inc/photobooth/geom"
	"github.com/dialup-inc/photobooth/pipeline"
	"github.com/dialup-inc/photobooth/term"
	"github.com/dialup-inc/photobooth/wall"
)

type State struct {
	Root   geom.Rect
	Origin geom.Origin
	Tiles  []wall.Tile

	// Frames holds the latest frame per device id. The reducer replaces the
	// map rather than writing into it, so a copied State stays stable.
	Frames map[string]image.Image

	Pipeline  pipeline.State
	Countdown int
	Flash     bool
	Spinning  bool
	LastSaved string

	Messages []Message
	WinSize  term.WinSize
}

type Message struct {
	Level LogLevel
	Text  string
}
