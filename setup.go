package photobooth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/dialup-inc/photobooth/camera"
	"github.com/dialup-inc/photobooth/config"
	"github.com/dialup-inc/photobooth/delivery"
	"github.com/dialup-inc/photobooth/face"
	"github.com/dialup-inc/photobooth/geom"
	"github.com/dialup-inc/photobooth/metrics"
	"github.com/dialup-inc/photobooth/pipeline"
	"github.com/dialup-inc/photobooth/server"
	"github.com/dialup-inc/photobooth/session"
	"github.com/dialup-inc/photobooth/store"
	"github.com/dialup-inc/photobooth/tag"
	"github.com/dialup-inc/photobooth/ui"
	"github.com/dialup-inc/photobooth/wall"
)

var ErrNoVideoDevices = errors.New("no video capture devices found")

type Options struct {
	Config *config.Config
	Log    zerolog.Logger

	// Driver replaces the one named in the config.
	Driver camera.Driver
	// Tags replaces the tag source named in the config.
	Tags tag.Source

	// Out is where the preview is drawn; os.Stdout when nil.
	Out io.Writer
	// Keyboard puts stdin in raw mode and reads keys from it.
	Keyboard bool
}

// OpenDriver builds the camera driver the config names.
func OpenDriver(cfg config.CameraConfig) (camera.Driver, error) {
	return camera.NewDriver(cfg.Driver, camera.Options{
		Width:           cfg.Width,
		Height:          cfg.Height,
		PreviewInterval: cfg.PreviewInterval,
		SyntheticCount:  cfg.SyntheticCount,
	})
}

// Layout is the wall layout and quadrant origin the config asks for.
func Layout(cfg config.WallConfig) (wall.Layout, geom.Quadrants) {
	q := geom.DefaultQuadrants
	if cfg.Origin == config.OriginUpperLeft {
		q.Origin = geom.OriginUpperLeft
	}
	return wall.Layout{TilesPerDevice: cfg.TilesPerDevice, Mirror: cfg.Mirror}, q
}

// NewOverlay loads the face detector and mustache, or returns nil when
// faces are disabled.
func NewOverlay(cfg config.FaceConfig) (pipeline.Overlay, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	det, err := face.LoadDetector(cfg.Cascade)
	if err != nil {
		return nil, err
	}
	if cfg.MinScore > 0 {
		det.MinScore = cfg.MinScore
	}
	img, err := face.LoadMustache(cfg.Mustache)
	if err != nil {
		return nil, err
	}
	return &face.Mustache{Image: img, Finder: det}, nil
}

// newTagSource picks the tag reader for the configured mode.
func newTagSource(cfg config.TagConfig) tag.Source {
	switch cfg.Mode {
	case config.TagFixed:
		return tag.Fixed{Label: cfg.FixedID, Every: cfg.Every}
	case config.TagStdin:
		return tag.NewLineReader(os.Stdin)
	default:
		return nil
	}
}

// New enumerates cameras, builds the wall and wires the capture pipeline.
// Devices that fail to open are left off the wall; New only fails when no
// device could be wired at all.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log

	driver := opts.Driver
	if driver == nil {
		var err error
		if driver, err = OpenDriver(cfg.Camera); err != nil {
			return nil, err
		}
	}

	video, err := camera.Enumerate(driver)
	if err != nil {
		return nil, err
	}
	if len(video) == 0 {
		return nil, ErrNoVideoDevices
	}
	log.Info().Str("driver", driver.Name()).Int("devices", len(video)).Msg("cameras found")

	sess := session.New(driver, log.With().Str("component", "session").Logger())

	layout, quadrants := Layout(cfg.Wall)
	asm := wall.NewAssembler(layout)
	asm.Quadrants = quadrants
	root := geom.R(0, 0, cfg.Wall.Width, cfg.Wall.Height)

	w, err := asm.Assemble(video, root, sess)
	if err != nil {
		var ae *wall.AssemblyError
		if !errors.As(err, &ae) || w.Empty() {
			sess.Close()
			return nil, err
		}
		log.Warn().Err(err).Int("tiles", w.Len()).Msg("wall is missing devices")
	}
	if err := sess.SetStillOutput(w.Tiles[0].DeviceID); err != nil {
		sess.Close()
		return nil, err
	}

	overlay, err := NewOverlay(cfg.Face)
	if err != nil {
		sess.Close()
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		session:  sess,
		wall:     w,
		metrics:  metrics.New(),
		renderer: ui.NewRenderer(out),
		keyboard: opts.Keyboard,
		tags:     opts.Tags,
		events:   make(chan event, 16),
		done:     make(chan struct{}),
		previews: newPreviews(w.Devices()),
	}
	if a.tags == nil {
		if cfg.Tag.Mode == config.TagStdin && opts.Keyboard {
			// the keyboard reader owns stdin, ids come in through it
			a.keys = &tag.Keys{Gap: tag.DefaultGap}
		} else {
			a.tags = newTagSource(cfg.Tag)
		}
	}

	a.animator = wall.NewAnimator(w, a.after, nil)
	a.animator.Changed = func(tiles []wall.Tile) {
		a.renderer.Dispatch(ui.TilesEvent(tiles))
	}
	a.metrics.Tiles(w.Len())

	var dls delivery.Multi
	if cfg.Delivery.Enabled {
		dls = append(dls, delivery.NewHTTPUploader(cfg.Delivery.URL, cfg.Delivery.Token))
	}
	if cfg.MQTT.Broker != "" {
		a.mqtt = delivery.NewMQTTAnnouncer(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic, log)
		a.mqtt.QoS = cfg.MQTT.QoS
		dls = append(dls, a.mqtt)
	}
	var deliverer delivery.Deliverer
	if len(dls) > 0 {
		deliverer = dls
	}

	a.pipeline = pipeline.New(pipeline.Options{
		Camera:         sessionStill{sess},
		Namer:          store.Namer{Dir: cfg.Store.Dir},
		Writer:         store.JPEGWriter{Quality: cfg.Capture.JPEGQuality},
		Deliverer:      deliverer,
		Overlay:        overlay,
		CaptureTimeout: cfg.Capture.Timeout,
		OnSaved:        a.onSaved,
		Metrics:        a.metrics,
		Log:            log,
	})
	a.pipeline.AddListener(a.onPipelineState)

	if cfg.Server.Enabled {
		a.server = server.New(cfg.Server.Addr, a.status, a.metrics, log)
	}

	return a, nil
}

// sessionStill takes stills from whichever device is the session's still
// output at the time of the request.
type sessionStill struct {
	s *session.Session
}

func (s sessionStill) Still(ctx context.Context) (image.Image, error) {
	id, src, err := s.s.StillOutput()
	if err != nil {
		return nil, err
	}
	img, err := src.Still(ctx)
	if err != nil {
		return nil, fmt.Errorf("still from %s: %w", id, err)
	}
	return img, nil
}
