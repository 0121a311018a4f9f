// Package pipeline sequences a still capture: arm, capture, save, deliver.
//
// All methods that change state are meant to be called from a single loop.
// The still request and deliveries run on their own goroutines and come
// back to that loop through Completions and DeliveryResults.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dialup-inc/photobooth/camera"
	"github.com/dialup-inc/photobooth/delivery"
	"github.com/dialup-inc/photobooth/metrics"
	"github.com/dialup-inc/photobooth/store"
)

type State int

const (
	Idle State = iota
	Armed
	Capturing
	Saved
	Delivered
	DeliveryFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Capturing:
		return "capturing"
	case Saved:
		return "saved"
	case Delivered:
		return "delivered"
	case DeliveryFailed:
		return "delivery_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Trigger int

const (
	TriggerKey Trigger = iota
	TriggerTimer
	TriggerTag
)

func (t Trigger) String() string {
	switch t {
	case TriggerKey:
		return "key"
	case TriggerTimer:
		return "timer"
	case TriggerTag:
		return "tag"
	default:
		return "unknown"
	}
}

var (
	ErrBusy     = errors.New("pipeline: capture already in progress")
	ErrNotArmed = errors.New("pipeline: not armed")
)

// Still is where captures come from.
type Still interface {
	Still(ctx context.Context) (image.Image, error)
}

// Writer persists a captured image.
type Writer interface {
	Save(path string, img image.Image) error
}

// Overlay decorates a captured image before it is saved.
type Overlay interface {
	Apply(img image.Image) (image.Image, error)
}

// CapturedImage is one arming's capture.
type CapturedImage struct {
	ID      uuid.UUID
	Arming  uint64
	Trigger Trigger
	Tag     string
	Path    string
	TakenAt time.Time
	Image   image.Image
}

// Completion is the result of a still request.
type Completion struct {
	Arming  uint64
	Image   image.Image
	Err     error
	Elapsed time.Duration
}

type Options struct {
	Camera Still
	Namer  store.Namer
	Writer Writer

	// Deliverer is optional. Without one a saved capture goes straight
	// back to Idle.
	Deliverer delivery.Deliverer
	Overlay   Overlay

	// CaptureTimeout bounds the still request; zero waits forever.
	CaptureTimeout time.Duration

	// OnSaved is called on the loop after a capture is written.
	OnSaved func(CapturedImage)

	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

// Status is a snapshot for status pages.
type Status struct {
	State        State      `json:"state"`
	Arming       uint64     `json:"arming"`
	LastID       string     `json:"last_id,omitempty"`
	LastPath     string     `json:"last_path,omitempty"`
	LastDelivery State      `json:"last_delivery,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	LastSavedAt  *time.Time `json:"last_saved_at,omitempty"`
}

type Pipeline struct {
	opts Options
	log  zerolog.Logger

	completions chan Completion
	results     chan delivery.Result

	mu        sync.Mutex
	state     State
	arming    uint64
	current   *CapturedImage
	last      *CapturedImage
	lastDel   State
	lastErr   error
	listeners []func(prev, next State)
}

func New(opts Options) *Pipeline {
	return &Pipeline{
		opts:        opts,
		log:         opts.Log.With().Str("component", "pipeline").Logger(),
		completions: make(chan Completion, 4),
		results:     make(chan delivery.Result, 16),
	}
}

// AddListener registers fn for every state change. Listeners run on the
// loop, after the change.
func (p *Pipeline) AddListener(fn func(prev, next State)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current is the capture of the ongoing arming, if any.
func (p *Pipeline) Current() (CapturedImage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return CapturedImage{}, false
	}
	return *p.current, true
}

func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{State: p.state, Arming: p.arming, LastDelivery: p.lastDel}
	if p.last != nil {
		st.LastID = p.last.ID.String()
		st.LastPath = p.last.Path
		taken := p.last.TakenAt
		st.LastSavedAt = &taken
	}
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	return st
}

// Completions carries still results back to the loop, which must pass them
// to Complete.
func (p *Pipeline) Completions() <-chan Completion { return p.completions }

// DeliveryResults carries delivery outcomes back to the loop, which must
// pass them to Delivered.
func (p *Pipeline) DeliveryResults() <-chan delivery.Result { return p.results }

// Arm readies a capture and picks its file name. It fails with ErrBusy
// unless the pipeline is idle.
func (p *Pipeline) Arm(trigger Trigger, tag string) error {
	return p.arm(trigger, tag, p.opts.Namer.Name(tag))
}

// ArmAs is Arm with a caller chosen file name.
func (p *Pipeline) ArmAs(trigger Trigger, name string) error {
	return p.arm(trigger, "", p.opts.Namer.Alternate(name))
}

func (p *Pipeline) arm(trigger Trigger, tag, path string) error {
	p.mu.Lock()
	if p.state != Idle {
		p.mu.Unlock()
		return ErrBusy
	}
	p.arming++
	p.current = &CapturedImage{
		ID:      uuid.New(),
		Arming:  p.arming,
		Trigger: trigger,
		Tag:     tag,
		Path:    path,
	}
	c := *p.current
	notify := p.setState(Armed)
	p.mu.Unlock()

	p.log.Info().
		Str("id", c.ID.String()).
		Uint64("arming", c.Arming).
		Stringer("trigger", trigger).
		Str("path", c.Path).
		Msg("armed")
	notify()
	return nil
}

// Abort disarms a capture that hasn't started.
func (p *Pipeline) Abort() bool {
	p.mu.Lock()
	if p.state != Armed {
		p.mu.Unlock()
		return false
	}
	p.current = nil
	notify := p.setState(Idle)
	p.mu.Unlock()

	p.log.Info().Msg("disarmed")
	notify()
	return true
}

// Capture issues the still request for the armed capture. It returns at
// once; the result arrives on Completions.
func (p *Pipeline) Capture(ctx context.Context) error {
	p.mu.Lock()
	if p.state != Armed {
		p.mu.Unlock()
		return ErrNotArmed
	}
	arming := p.arming
	notify := p.setState(Capturing)
	p.mu.Unlock()
	notify()

	go func() {
		cctx := ctx
		if p.opts.CaptureTimeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, p.opts.CaptureTimeout)
			defer cancel()
		}

		start := time.Now()
		img, err := p.opts.Camera.Still(cctx)
		if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && !errors.Is(err, camera.ErrCamTimeout) {
			err = fmt.Errorf("%w: %v", camera.ErrCamTimeout, err)
		}

		select {
		case p.completions <- Completion{Arming: arming, Image: img, Err: err, Elapsed: time.Since(start)}:
		case <-ctx.Done():
		}
	}()
	return nil
}

// Complete finishes a capture with a still result. It reports false and
// does nothing when c doesn't belong to the capture in flight, so a
// repeated completion never saves twice.
func (p *Pipeline) Complete(c Completion) bool {
	p.mu.Lock()
	if p.state != Capturing || p.current == nil || c.Arming != p.arming {
		state, arming := p.state, p.arming
		p.mu.Unlock()
		p.log.Debug().
			Uint64("arming", c.Arming).
			Uint64("current", arming).
			Stringer("state", state).
			Msg("ignoring stale completion")
		return false
	}
	capture := *p.current
	p.mu.Unlock()

	log := p.log.With().Str("id", capture.ID.String()).Uint64("arming", capture.Arming).Logger()

	if c.Err != nil {
		log.Error().Err(c.Err).Msg("capture failed")
		p.opts.Metrics.Capture(metrics.ResultCaptureError, c.Elapsed)
		p.fail(c.Err)
		return true
	}

	img := c.Image
	if p.opts.Overlay != nil {
		out, err := p.opts.Overlay.Apply(img)
		if err != nil {
			log.Warn().Err(err).Msg("overlay failed, saving plain image")
		} else {
			img = out
		}
	}

	if err := p.opts.Writer.Save(capture.Path, img); err != nil {
		log.Error().Err(err).Msg("save failed")
		p.opts.Metrics.Capture(metrics.ResultWriteError, c.Elapsed)
		p.fail(err)
		return true
	}
	p.opts.Metrics.Capture(metrics.ResultSaved, c.Elapsed)

	capture.Image = img
	capture.TakenAt = time.Now()

	p.mu.Lock()
	p.last = &capture
	p.lastErr = nil
	p.current = nil
	notify := p.setState(Saved)
	p.mu.Unlock()

	log.Info().Str("path", capture.Path).Dur("took", c.Elapsed).Msg("saved")
	notify()

	if p.opts.OnSaved != nil {
		p.opts.OnSaved(capture)
	}

	p.mu.Lock()
	var next func()
	if p.opts.Deliverer != nil {
		delivery.Dispatch(context.Background(), p.opts.Deliverer, delivery.Delivery{
			ID:      capture.ID,
			Path:    capture.Path,
			Tag:     capture.Tag,
			TakenAt: capture.TakenAt,
		}, p.report)
		next = p.setState(Delivered)
	}
	idle := p.setState(Idle)
	p.mu.Unlock()

	if next != nil {
		next()
	}
	idle()
	return true
}

// Delivered records how a dispatched delivery went and returns Delivered or
// DeliveryFailed. It never changes the pipeline state.
func (p *Pipeline) Delivered(r delivery.Result) State {
	outcome := Delivered
	if r.Err != nil {
		outcome = DeliveryFailed
	}

	p.mu.Lock()
	if p.last != nil && p.last.ID == r.ID {
		p.lastDel = outcome
	}
	p.mu.Unlock()

	log := p.log.With().Str("id", r.ID.String()).Str("path", r.Path).Dur("took", r.Elapsed).Logger()
	if r.Err != nil {
		log.Warn().Err(r.Err).Msg("delivery failed")
		p.opts.Metrics.Delivery(metrics.ResultFailed)
	} else {
		log.Info().Msg("delivered")
		p.opts.Metrics.Delivery(metrics.ResultDelivered)
	}
	return outcome
}

// report hands a delivery outcome to the loop. Outcomes nobody collects are
// logged and dropped so delivery goroutines never block.
func (p *Pipeline) report(r delivery.Result) {
	select {
	case p.results <- r:
	default:
		p.log.Warn().
			Str("id", r.ID.String()).
			AnErr("delivery_err", r.Err).
			Msg("delivery result dropped, nobody is collecting")
	}
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.current = nil
	notify := p.setState(Idle)
	p.mu.Unlock()
	notify()
}

// setState must be called with mu held. The returned func notifies
// listeners and must be called after mu is released.
func (p *Pipeline) setState(next State) func() {
	prev := p.state
	p.state = next
	listeners := append(([]func(prev, next State))(nil), p.listeners...)
	return func() {
		for _, fn := range listeners {
			fn(prev, next)
		}
	}
}
