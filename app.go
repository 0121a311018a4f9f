// Package photobooth runs the camera wall: live previews from every camera
// on the terminal, still captures on key, timer or tag, saved to disk and
// handed off for delivery.
package photobooth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dialup-inc/photobooth/config"
	"github.com/dialup-inc/photobooth/delivery"
	"github.com/dialup-inc/photobooth/metrics"
	"github.com/dialup-inc/photobooth/pipeline"
	"github.com/dialup-inc/photobooth/server"
	"github.com/dialup-inc/photobooth/session"
	"github.com/dialup-inc/photobooth/tag"
	"github.com/dialup-inc/photobooth/term"
	"github.com/dialup-inc/photobooth/ui"
	"github.com/dialup-inc/photobooth/wall"
)

// quitPoll is how often the main loop checks whether it should stop.
const quitPoll = 500 * time.Millisecond

// Everything that changes the wall, the animator or the pipeline reaches
// the main loop as an event.
type event interface{}

type keyEvent rune

type triggerEvent struct {
	trigger pipeline.Trigger
	tag     string
}

// scheduledEvent is a timer callback that must run on the loop.
type scheduledEvent func()

type App struct {
	cfg *config.Config
	log zerolog.Logger

	session  *session.Session
	wall     *wall.Wall
	animator *wall.Animator
	pipeline *pipeline.Pipeline
	renderer *ui.Renderer
	metrics  *metrics.Metrics
	server   *server.Server
	mqtt     *delivery.MQTTAnnouncer
	tags     tag.Source
	keys     *tag.Keys
	keyboard bool

	previews *previews

	events chan event
	done   chan struct{}

	cancelMu sync.Mutex
	quit     context.CancelFunc

	// armGen tells countdowns of earlier armings to stand down.
	armGen uint64
}

// Status is served as JSON by the status page.
type Status struct {
	Pipeline pipeline.Status `json:"pipeline"`
	Spinning bool            `json:"spinning"`
	Devices  []string        `json:"devices"`
	Tiles    []wall.Tile     `json:"tiles"`
	Viewers  int             `json:"viewers"`
}

func (a *App) status() interface{} {
	s := a.renderer.GetState()
	st := Status{
		Pipeline: a.pipeline.Status(),
		Spinning: s.Spinning,
		Devices:  a.session.Inputs(),
		Tiles:    s.Tiles,
	}
	if a.server != nil {
		st.Viewers = a.server.Viewers()
	}
	return st
}

// Pipeline exposes the capture pipeline for status and tests.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Renderer exposes the preview renderer.
func (a *App) Renderer() *ui.Renderer { return a.renderer }

// Quit asks the main loop to stop. It is safe to call from any goroutine.
func (a *App) Quit() {
	a.cancelMu.Lock()
	if a.quit != nil {
		a.quit()
	}
	a.cancelMu.Unlock()
}

func (a *App) run(ctx context.Context) error {
	a.cancelMu.Lock()
	if a.quit != nil {
		a.cancelMu.Unlock()
		return errors.New("app can only be run once")
	}
	ctx, cancel := context.WithCancel(ctx)
	a.quit = cancel
	a.cancelMu.Unlock()
	defer cancel()
	defer close(a.done)

	if a.keyboard {
		restore, err := term.CaptureStdin(a.onKeypress)
		if err != nil {
			return err
		}
		defer restore()

		winSize, _ := term.GetWinSize()
		if winSize.Rows < 15 || winSize.Cols < 50 {
			ansi := term.ANSI{W: os.Stdout}
			ansi.ResizeWindow(15, 50)
		}
		go a.watchWinSize(ctx)
	}

	_, quadrants := Layout(a.cfg.Wall)
	a.renderer.Dispatch(ui.WallEvent{
		Root:   a.wall.Root,
		Origin: quadrants.Origin,
		Tiles:  a.wall.Snapshot(),
	})
	a.renderer.Start()

	if err := a.session.Start(a.onPreview); err != nil {
		a.session.Close()
		return err
	}

	if a.server != nil {
		if err := a.server.Start(); err != nil {
			a.session.Close()
			return fmt.Errorf("status server: %w", err)
		}
	}
	if a.mqtt != nil {
		go a.connectMQTT(ctx)
	}

	go a.runTimer(ctx)
	if a.tags != nil {
		go tag.Watch(ctx, a.tags, a.log, func(t tag.Tag) {
			a.post(triggerEvent{trigger: pipeline.TriggerTag, tag: t.Name()})
		})
	}

	if a.cfg.Wall.Animate {
		a.setSpinning(true)
	}
	a.info("ready: p takes a picture, q quits, any other key spins the wall")

	a.loop(ctx)
	a.shutdown()
	return nil
}

func (a *App) loop(ctx context.Context) {
	tick := time.NewTicker(quitPoll)
	defer tick.Stop()

	for {
		select {
		case e := <-a.events:
			a.handle(e)
		case c := <-a.pipeline.Completions():
			a.pipeline.Complete(c)
		case r := <-a.pipeline.DeliveryResults():
			a.delivered(r)
		case <-tick.C:
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (a *App) handle(e event) {
	switch e := e.(type) {
	case keyEvent:
		a.onKeystroke(rune(e))
	case triggerEvent:
		a.arm(e.trigger, e.tag)
	case scheduledEvent:
		e()
	}
}

// shutdown runs on the loop's goroutine after it has stopped.
func (a *App) shutdown() {
	a.info("quitting")

	a.pipeline.Abort()
	if a.pipeline.State() == pipeline.Capturing {
		select {
		case c := <-a.pipeline.Completions():
			a.pipeline.Complete(c)
		case <-time.After(a.cfg.Capture.Timeout):
			a.log.Warn().Msg("gave up waiting for the capture in flight")
		}
	}

	a.setSpinning(false)
	a.animator.RestoreHome()

	if err := a.session.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing cameras")
	}
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.log.Warn().Err(err).Msg("stopping status server")
		}
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
}

// post hands e to the main loop. Events posted after the loop is gone are
// dropped.
func (a *App) post(e event) {
	select {
	case a.events <- e:
	case <-a.done:
	}
}

// after is the animator's and the countdown's scheduler: f runs on the main
// loop once d has passed.
func (a *App) after(d time.Duration, f func()) {
	time.AfterFunc(d, func() { a.post(scheduledEvent(f)) })
}

func (a *App) onKeypress(c rune) {
	switch c {
	case 3: // ctrl-c
		a.info("Quitting...")
		a.Quit()
	default:
		a.post(keyEvent(c))
	}
}

// onKeystroke separates tag ids typed by a reader sharing the keyboard from
// key presses.
func (a *App) onKeystroke(c rune) {
	if a.keys == nil {
		a.onKey(c)
		return
	}
	keys, t, ok := a.keys.Feed(c, time.Now())
	for _, k := range keys {
		a.onKey(k)
	}
	if ok {
		a.log.Debug().Str("tag", t.Name()).Msg("tag typed")
		a.arm(pipeline.TriggerTag, t.Name())
	}
	if a.keys.Pending() {
		a.after(a.keys.Gap, func() {
			for _, k := range a.keys.Expire(time.Now()) {
				a.onKey(k)
			}
		})
	}
}

func (a *App) onKey(c rune) {
	switch c {
	case 'q', 'Q':
		a.Quit()
	case 'p', 'P':
		a.arm(pipeline.TriggerKey, "")
	default:
		a.setSpinning(!a.animator.Active())
	}
}

func (a *App) setSpinning(on bool) {
	if on == a.animator.Active() {
		return
	}
	if on {
		a.animator.SetActive(true)
	} else {
		a.animator.Toggle()
	}
	a.renderer.Dispatch(ui.SpinEvent(on))
}

func (a *App) runTimer(ctx context.Context) {
	if a.cfg.Capture.Interval <= 0 {
		return
	}
	t := time.NewTicker(a.cfg.Capture.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.post(triggerEvent{trigger: pipeline.TriggerTimer})
		}
	}
}

func (a *App) connectMQTT(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.mqtt.Connect(ctx); err != nil {
		a.log.Error().Err(err).Str("broker", a.mqtt.Broker).Msg("mqtt connect failed, retrying in the background")
		a.renderer.Dispatch(ui.LogEvent{Level: ui.LogLevelError, Text: fmt.Sprintf("mqtt: %v", err)})
	}
}

func (a *App) delivered(r delivery.Result) {
	if a.pipeline.Delivered(r) == pipeline.DeliveryFailed {
		a.renderer.Dispatch(ui.LogEvent{
			Level: ui.LogLevelError,
			Text:  fmt.Sprintf("delivery failed: %v", r.Err),
		})
		return
	}
	a.info("delivered " + r.Path)
}

func (a *App) info(msg string) {
	a.renderer.Dispatch(ui.LogEvent{Level: ui.LogLevelInfo, Text: msg})
}

func (a *App) catchError(msg interface{}, stack []byte) {
	buf := bytes.NewBuffer(nil)
	ansi := term.ANSI{W: buf}

	ansi.CursorPosition(1, 1)
	ansi.Reset()

	ansi.Bold()
	ansi.Foreground(color.RGBA{0xFF, 0x00, 0x00, 0xFF})
	buf.WriteString("Oops! The photobooth hit a snag.\n")
	ansi.Normal()
	ansi.ForegroundReset()

	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("[panic] %v\n", msg))
	buf.WriteString("\n")
	buf.Write(stack)
	buf.WriteString("\n")

	data := bytes.ReplaceAll(buf.Bytes(), []byte("\n"), []byte("\r\n"))
	os.Stderr.Write(data)
}

// Run shows the wall and handles triggers until Quit, q or ctrl-c.
func (a *App) Run(ctx context.Context) (err error) {
	// Show a nice error page if there's a panic somewhere in the code
	defer func() {
		if r := recover(); r != nil {
			a.renderer.Stop()
			a.catchError(r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	err = a.run(ctx)

	// Clean up:
	a.renderer.Stop()

	return err
}

func (a *App) watchWinSize(ctx context.Context) error {
	checkWinSize := func() {
		winSize, err := term.GetWinSize()
		if err != nil {
			return
		}
		a.renderer.Dispatch(ui.ResizeEvent(winSize))
	}

	checkWinSize()

	tick := time.NewTicker(quitPoll)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			checkWinSize()
		}
	}
}
