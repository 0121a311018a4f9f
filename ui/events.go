package ui

import (
	"image"

	"github.com/dialup-inc/photobooth/geom"
	"github.com/dialup-inc/photobooth/pipeline"
	"github.com/dialup-inc/photobooth/term"
	"github.com/dialup-inc/photobooth/wall"
)

// An Event represents something that changes what the preview shows.
//
// They're processed by Renderer's Dispatch method.
type Event interface{}

// FrameEvent carries the newest preview frame of a device.
type FrameEvent struct {
	DeviceID string
	Image    image.Image
}

// WallEvent replaces the wall's geometry once it has been assembled
type WallEvent struct {
	Root   geom.Rect
	Origin geom.Origin
	Tiles  []wall.Tile
}

// TilesEvent replaces the tiles after an animation step
type TilesEvent []wall.Tile

// PipelineEvent reports a capture pipeline state change
type PipelineEvent pipeline.State

// CountdownEvent sets the seconds left before an armed capture fires. Zero
// hides the countdown.
type CountdownEvent int

// FlashEvent dims the wall while a still is being taken
type FlashEvent bool

// SpinEvent reports whether the wall animation is running
type SpinEvent bool

// SavedEvent fires after a capture has been written
type SavedEvent struct {
	Path string
}

// ResizeEvent indicates that the terminal window's size has changed to the specified dimensions
type ResizeEvent term.WinSize

// LogLevel indicates the severity of a LogEvent message
type LogLevel int

const (
	// LogLevelInfo is for non-urgent, informational logs
	LogLevelInfo LogLevel = iota
	// LogLevelError is for logs that indicate problems
	LogLevelError
)

// A LogEvent prints a message to the console
type LogEvent struct {
	Text  string
	Level LogLevel
}
