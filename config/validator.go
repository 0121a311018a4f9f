package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Validate checks if the configuration is valid and fills in defaults for
// values left empty
func Validate(cfg *Config) error {
	def := Default()

	switch cfg.Camera.Driver {
	case "", "auto", "v4l2", "imagesnap", "synthetic", "fake":
	default:
		return fmt.Errorf("camera.driver %q is unknown", cfg.Camera.Driver)
	}
	if cfg.Camera.Width < 0 || cfg.Camera.Height < 0 {
		return fmt.Errorf("camera size must not be negative")
	}
	if cfg.Camera.Width == 0 || cfg.Camera.Height == 0 {
		cfg.Camera.Width, cfg.Camera.Height = def.Camera.Width, def.Camera.Height
	}
	if cfg.Camera.PreviewInterval <= 0 {
		cfg.Camera.PreviewInterval = def.Camera.PreviewInterval
	}
	if cfg.Camera.SyntheticCount < 0 {
		return fmt.Errorf("camera.synthetic_count must be >= 0")
	}

	switch cfg.Wall.TilesPerDevice {
	case 0:
		cfg.Wall.TilesPerDevice = def.Wall.TilesPerDevice
	case 1, 4:
	default:
		return fmt.Errorf("wall.tiles_per_device must be 1 or 4, got %d", cfg.Wall.TilesPerDevice)
	}
	switch cfg.Wall.Origin {
	case "":
		cfg.Wall.Origin = def.Wall.Origin
	case OriginLowerLeft, OriginUpperLeft:
	default:
		return fmt.Errorf("wall.origin must be %q or %q", OriginLowerLeft, OriginUpperLeft)
	}
	if cfg.Wall.Width <= 0 || cfg.Wall.Height <= 0 {
		cfg.Wall.Width, cfg.Wall.Height = def.Wall.Width, def.Wall.Height
	}

	if cfg.Capture.Interval < 0 {
		return fmt.Errorf("capture.interval must be >= 0")
	}
	if cfg.Capture.ArmDelay < 0 {
		return fmt.Errorf("capture.arm_delay must be >= 0")
	}
	if cfg.Capture.Timeout <= 0 {
		cfg.Capture.Timeout = def.Capture.Timeout
	}
	if cfg.Capture.JPEGQuality == 0 {
		cfg.Capture.JPEGQuality = def.Capture.JPEGQuality
	}
	if cfg.Capture.JPEGQuality < 1 || cfg.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpeg_quality must be 1-100, got %d", cfg.Capture.JPEGQuality)
	}

	if cfg.Store.Dir == "" {
		cfg.Store.Dir = def.Store.Dir
	}

	if cfg.Delivery.URL == "" {
		cfg.Delivery.URL = def.Delivery.URL
	}

	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = def.MQTT.Topic
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = def.MQTT.ClientID
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}

	if cfg.Face.Enabled && cfg.Face.Cascade == "" {
		return fmt.Errorf("face.cascade is required when face.enabled is set")
	}

	switch cfg.Tag.Mode {
	case "":
		cfg.Tag.Mode = TagOff
	case TagOff, TagFixed, TagStdin:
	default:
		return fmt.Errorf("tag.mode %q is unknown", cfg.Tag.Mode)
	}
	if cfg.Tag.Mode == TagFixed && cfg.Tag.FixedID == "" {
		return fmt.Errorf("tag.fixed_id is required in fixed mode")
	}
	if cfg.Tag.Every <= 0 {
		cfg.Tag.Every = def.Tag.Every
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}
