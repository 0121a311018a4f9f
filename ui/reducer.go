package ui

import (
	"image"
	"strings"

	"github.com/dialup-inc/photobooth/pipeline"
	"github.com/dialup-inc/photobooth/term"
	"github.com/dialup-inc/photobooth/wall"
)

// maxMessages bounds the log backlog; only the last few are drawn.
const maxMessages = 50

func StateReducer(s State, event Event) State {
	s.Tiles = tilesReducer(s.Tiles, event)
	s.Frames = framesReducer(s.Frames, event)
	s.Pipeline = pipelineReducer(s.Pipeline, event)
	s.Countdown = countdownReducer(s.Countdown, event)
	s.Flash = flashReducer(s.Flash, event)
	s.Messages = messagesReducer(s.Messages, event)
	s.WinSize = winSizeReducer(s.WinSize, event)

	switch e := event.(type) {
	case WallEvent:
		s.Root, s.Origin = e.Root, e.Origin
	case SpinEvent:
		s.Spinning = bool(e)
	case SavedEvent:
		s.LastSaved = e.Path
	}

	return s
}

func tilesReducer(s []wall.Tile, event Event) []wall.Tile {
	switch e := event.(type) {
	case WallEvent:
		return e.Tiles
	case TilesEvent:
		return []wall.Tile(e)
	default:
		return s
	}
}

func framesReducer(s map[string]image.Image, event Event) map[string]image.Image {
	switch e := event.(type) {
	case FrameEvent:
		next := make(map[string]image.Image, len(s)+1)
		for k, v := range s {
			next[k] = v
		}
		if e.Image == nil {
			delete(next, e.DeviceID)
		} else {
			next[e.DeviceID] = e.Image
		}
		return next
	default:
		return s
	}
}

func pipelineReducer(s pipeline.State, event Event) pipeline.State {
	switch e := event.(type) {
	case PipelineEvent:
		return pipeline.State(e)
	default:
		return s
	}
}

func countdownReducer(s int, event Event) int {
	switch e := event.(type) {
	case CountdownEvent:
		if e < 0 {
			return 0
		}
		return int(e)
	case PipelineEvent:
		// the countdown only makes sense while armed
		if pipeline.State(e) != pipeline.Armed {
			return 0
		}
		return s
	default:
		return s
	}
}

func flashReducer(s bool, event Event) bool {
	switch e := event.(type) {
	case FlashEvent:
		return bool(e)
	case PipelineEvent:
		if pipeline.State(e) != pipeline.Capturing {
			return false
		}
		return s
	default:
		return s
	}
}

func winSizeReducer(s term.WinSize, event Event) term.WinSize {
	switch e := event.(type) {
	case ResizeEvent:
		return term.WinSize(e)
	default:
		return s
	}
}

func messagesReducer(s []Message, event Event) []Message {
	switch e := event.(type) {
	case LogEvent:
		// one line per message
		text := strings.Join(strings.Fields(e.Text), " ")
		s = append(s, Message{Level: e.Level, Text: text})
		if len(s) > maxMessages {
			s = append([]Message(nil), s[len(s)-maxMessages:]...)
		}
		return s
	case SavedEvent:
		return messagesReducer(s, LogEvent{Text: "saved " + e.Path})
	default:
		return s
	}
}
