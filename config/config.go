// Package config loads the booth's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dialup-inc/photobooth/delivery"
)

// Config represents the complete photobooth configuration
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Wall     WallConfig     `yaml:"wall"`
	Capture  CaptureConfig  `yaml:"capture"`
	Store    StoreConfig    `yaml:"store"`
	Delivery DeliveryConfig `yaml:"delivery"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Face     FaceConfig     `yaml:"face"`
	Tag      TagConfig      `yaml:"tag"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

type CameraConfig struct {
	Driver          string        `yaml:"driver"` // auto, v4l2, imagesnap, synthetic
	Width           int           `yaml:"width"`
	Height          int           `yaml:"height"`
	PreviewInterval time.Duration `yaml:"preview_interval"`
	SyntheticCount  int           `yaml:"synthetic_count"`
}

type WallConfig struct {
	TilesPerDevice int     `yaml:"tiles_per_device"` // 1 or 4
	Mirror         bool    `yaml:"mirror"`
	Animate        bool    `yaml:"animate"` // spin from startup
	Origin         string  `yaml:"origin"` // lower-left, upper-left
	Width          float64 `yaml:"width"`
	Height         float64 `yaml:"height"`
}

type CaptureConfig struct {
	Interval    time.Duration `yaml:"interval"` // 0 disables the timer trigger
	ArmDelay    time.Duration `yaml:"arm_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	JPEGQuality int           `yaml:"jpeg_quality"`
}

type StoreConfig struct {
	Dir string `yaml:"dir"`
}

type DeliveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
}

// MQTTConfig announces saved captures when Broker is set
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

type FaceConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Cascade  string  `yaml:"cascade"`
	Mustache string  `yaml:"mustache"` // empty draws the built-in one
	MinScore float32 `yaml:"min_score"`
}

type TagConfig struct {
	Mode    string        `yaml:"mode"` // off, fixed, stdin
	FixedID string        `yaml:"fixed_id"`
	Every   time.Duration `yaml:"every"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LogConfig struct {
	File  string `yaml:"file"` // empty logs to stderr
	Level string `yaml:"level"`
}

const (
	OriginLowerLeft = "lower-left"
	OriginUpperLeft = "upper-left"

	TagOff   = "off"
	TagFixed = "fixed"
	TagStdin = "stdin"
)

// Default is the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			Driver:          "auto",
			Width:           640,
			Height:          480,
			PreviewInterval: time.Second,
		},
		Wall: WallConfig{
			TilesPerDevice: 4,
			Mirror:         true,
			Origin:         OriginLowerLeft,
			Width:          800,
			Height:         600,
		},
		Capture: CaptureConfig{
			ArmDelay:    5 * time.Second,
			Timeout:     10 * time.Second,
			JPEGQuality: 90,
		},
		Store: StoreConfig{Dir: "."},
		Delivery: DeliveryConfig{
			URL:   delivery.DefaultURL,
			Token: "euruko_isight",
		},
		MQTT: MQTTConfig{
			Topic:    delivery.DefaultTopic,
			ClientID: "photobooth",
			QoS:      1,
		},
		Face: FaceConfig{MinScore: 5},
		Tag: TagConfig{
			Mode:    TagOff,
			FixedID: "euruko",
			Every:   30 * time.Second,
		},
		Server: ServerConfig{Addr: ":8080"},
		Log: LogConfig{
			File:  "photobooth.log",
			Level: "info",
		},
	}
}

// Load overlays the YAML file at path on the defaults. A missing file, or
// an empty path, leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
