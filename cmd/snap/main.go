// Command snap takes a single picture with the first camera and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dialup-inc/photobooth"
	"github.com/dialup-inc/photobooth/camera"
	"github.com/dialup-inc/photobooth/config"
	"github.com/dialup-inc/photobooth/delivery"
	"github.com/dialup-inc/photobooth/logging"
	"github.com/dialup-inc/photobooth/pipeline"
	"github.com/dialup-inc/photobooth/session"
	"github.com/dialup-inc/photobooth/store"
)

func main() {
	var (
		configPath = flag.String("config", "photobooth.yaml", "path to the YAML config")
		output     = flag.String("o", "", "file name for the picture instead of a timestamp")
		tagName    = flag.String("tag", "", "tag id to put in the file name")
		deliver    = flag.Bool("deliver", false, "upload the picture to the collector")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := logging.Console(os.Stderr, level)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if *deliver {
		cfg.Delivery.Enabled = true
	}

	driver, err := photobooth.OpenDriver(cfg.Camera)
	if err != nil {
		log.Fatal().Err(err).Msg("camera driver")
	}
	path, err := snap(driver, cfg, *output, *tagName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("no picture taken")
	}
	os.Stdout.WriteString(path + "\n")
}

// snap takes one picture and returns its path. The camera is closed before
// it returns.
func snap(driver camera.Driver, cfg *config.Config, output, tagName string, log zerolog.Logger) (string, error) {
	devs, err := camera.Enumerate(driver)
	if err != nil {
		return "", fmt.Errorf("list cameras: %w", err)
	}
	if len(devs) == 0 {
		return "", photobooth.ErrNoVideoDevices
	}
	dev := devs[0]

	sess := session.New(driver, log)
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn().Err(err).Msg("closing camera")
		}
	}()
	if err := sess.AddInput(dev); err != nil {
		return "", fmt.Errorf("open camera %s: %w", dev.ID, err)
	}
	if err := sess.SetStillOutput(dev.ID); err != nil {
		return "", err
	}
	_, src, err := sess.StillOutput()
	if err != nil {
		return "", err
	}

	overlay, err := photobooth.NewOverlay(cfg.Face)
	if err != nil {
		return "", fmt.Errorf("face overlay: %w", err)
	}

	var deliverer delivery.Deliverer
	if cfg.Delivery.Enabled {
		deliverer = delivery.NewHTTPUploader(cfg.Delivery.URL, cfg.Delivery.Token)
	}

	p := pipeline.New(pipeline.Options{
		Camera:         src,
		Namer:          store.Namer{Dir: cfg.Store.Dir},
		Writer:         store.JPEGWriter{Quality: cfg.Capture.JPEGQuality},
		Deliverer:      deliverer,
		Overlay:        overlay,
		CaptureTimeout: cfg.Capture.Timeout,
		Log:            log,
	})

	if output != "" {
		err = p.ArmAs(pipeline.TriggerKey, output)
	} else {
		err = p.Arm(pipeline.TriggerKey, tagName)
	}
	if err != nil {
		return "", err
	}

	if err := p.Capture(context.Background()); err != nil {
		return "", err
	}
	p.Complete(<-p.Completions())

	st := p.Status()
	if st.LastError != "" || st.LastPath == "" {
		return "", fmt.Errorf("capture: %s", st.LastError)
	}

	if deliverer != nil {
		select {
		case r := <-p.DeliveryResults():
			if p.Delivered(r) == pipeline.DeliveryFailed {
				return "", fmt.Errorf("deliver %s: %w", st.LastPath, r.Err)
			}
		case <-time.After(time.Minute):
			return "", fmt.Errorf("deliver %s: timed out", st.LastPath)
		}
	}
	return st.LastPath, nil
}
