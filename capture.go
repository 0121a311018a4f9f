package photobooth

import (
	"context"
	"image"
	"os"
	"sync/atomic"
	"time"

	"github.com/nfnt/resize"

	"github.com/dialup-inc/photobooth/pipeline"
	"github.com/dialup-inc/photobooth/ui"
)

// Preview frames are shrunk to fit this box before they reach the
// renderer; the terminal never shows more.
const (
	previewWidth  = 320
	previewHeight = 240
)

// previews drops a device's frame while the previous one is still being
// prepared.
type previews struct {
	busy map[string]*uint32
}

func newPreviews(deviceIDs []string) *previews {
	p := &previews{busy: make(map[string]*uint32, len(deviceIDs))}
	for _, id := range deviceIDs {
		p.busy[id] = new(uint32)
	}
	return p
}

func (p *previews) acquire(deviceID string) bool {
	flag, ok := p.busy[deviceID]
	return ok && atomic.CompareAndSwapUint32(flag, 0, 1)
}

func (p *previews) release(deviceID string) {
	if flag, ok := p.busy[deviceID]; ok {
		atomic.StoreUint32(flag, 0)
	}
}

// onPreview runs on the camera's goroutine.
func (a *App) onPreview(deviceID string, img image.Image, err error) {
	if err != nil {
		a.log.Debug().Err(err).Str("device", deviceID).Msg("preview frame")
		return
	}
	if !a.previews.acquire(deviceID) {
		return
	}
	defer a.previews.release(deviceID)

	small := resize.Thumbnail(previewWidth, previewHeight, img, resize.NearestNeighbor)
	a.renderer.Dispatch(ui.FrameEvent{DeviceID: deviceID, Image: small})
}

// arm readies a capture and starts the countdown to it. Triggers that
// arrive while a capture is underway are dropped.
func (a *App) arm(trigger pipeline.Trigger, tagName string) {
	if err := a.pipeline.Arm(trigger, tagName); err != nil {
		a.log.Debug().Err(err).Stringer("trigger", trigger).Msg("trigger ignored")
		return
	}

	a.armGen++
	gen := a.armGen

	delay := a.cfg.Capture.ArmDelay
	if delay <= 0 {
		a.fire(gen)
		return
	}

	left := int((delay + time.Second - 1) / time.Second)
	a.renderer.Dispatch(ui.CountdownEvent(left))
	first := delay - time.Duration(left-1)*time.Second
	a.after(first, func() { a.countdown(gen, left-1) })
}

func (a *App) countdown(gen uint64, left int) {
	if gen != a.armGen || a.pipeline.State() != pipeline.Armed {
		return
	}
	if left <= 0 {
		a.fire(gen)
		return
	}
	a.renderer.Dispatch(ui.CountdownEvent(left))
	a.after(time.Second, func() { a.countdown(gen, left-1) })
}

// fire dims the wall and requests the still. The request isn't tied to the
// loop's context so quitting can still wait for it.
func (a *App) fire(gen uint64) {
	if gen != a.armGen {
		return
	}
	a.renderer.Dispatch(ui.CountdownEvent(0))
	a.renderer.Dispatch(ui.FlashEvent(true))
	if err := a.pipeline.Capture(context.Background()); err != nil {
		a.log.Warn().Err(err).Msg("capture not started")
		a.renderer.Dispatch(ui.FlashEvent(false))
	}
}

func (a *App) onPipelineState(prev, next pipeline.State) {
	a.renderer.Dispatch(ui.PipelineEvent(next))
}

// onSaved shows the capture to the terminal and to websocket viewers.
func (a *App) onSaved(c pipeline.CapturedImage) {
	a.renderer.Dispatch(ui.SavedEvent{Path: c.Path})

	if a.server == nil || a.server.Viewers() == 0 {
		return
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		a.log.Warn().Err(err).Str("path", c.Path).Msg("read capture for viewers")
		return
	}
	a.server.Broadcast(data)
}
