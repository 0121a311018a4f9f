package main

import (
	"context"
	"flag"
	"log"

	"github.com/dialup-inc/photobooth"
	"github.com/dialup-inc/photobooth/config"
	"github.com/dialup-inc/photobooth/logging"
)

func main() {
	var (
		configPath = flag.String("config", "photobooth.yaml", "path to the YAML config; defaults apply when it's missing")
		driver     = flag.String("driver", "", "camera driver: auto, v4l2, imagesnap or synthetic")
		tiles      = flag.Int("tiles", 0, "tiles per camera, 1 or 4")
		interval   = flag.Duration("interval", 0, "take a picture this often, 0 disables the timer")
		deliver    = flag.Bool("deliver", false, "upload every picture to the collector")
		serverAddr = flag.String("server", "", "serve status, metrics and viewers on this address")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Camera.Driver = *driver
		case "tiles":
			cfg.Wall.TilesPerDevice = *tiles
		case "interval":
			cfg.Capture.Interval = *interval
		case "deliver":
			cfg.Delivery.Enabled = *deliver
		case "server":
			cfg.Server.Enabled = true
			cfg.Server.Addr = *serverAddr
		}
	})
	if err := config.Validate(cfg); err != nil {
		log.Fatal(err)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	app, err := photobooth.New(photobooth.Options{
		Config:   cfg,
		Log:      logger,
		Keyboard: true,
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatal(err)
	}
}
