package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photobooth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "euruko_isight", cfg.Delivery.Token)
	assert.Equal(t, "http://localhost:3000", cfg.Delivery.URL)
	assert.Equal(t, 5*time.Second, cfg.Capture.ArmDelay)
	assert.Equal(t, OriginLowerLeft, cfg.Wall.Origin)
}

func TestLoad_Overlay(t *testing.T) {
	path := writeConfig(t, `
camera:
  driver: synthetic
  synthetic_count: 2
wall:
  tiles_per_device: 1
capture:
  interval: 1m
  timeout: 3s
delivery:
  enabled: true
  token: secret
tag:
  mode: fixed
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "synthetic", cfg.Camera.Driver)
	assert.Equal(t, 2, cfg.Camera.SyntheticCount)
	assert.Equal(t, 640, cfg.Camera.Width, "untouched values keep their default")
	assert.Equal(t, 1, cfg.Wall.TilesPerDevice)
	assert.True(t, cfg.Wall.Mirror)
	assert.Equal(t, time.Minute, cfg.Capture.Interval)
	assert.Equal(t, 3*time.Second, cfg.Capture.Timeout)
	assert.True(t, cfg.Delivery.Enabled)
	assert.Equal(t, "secret", cfg.Delivery.Token)
	assert.Equal(t, TagFixed, cfg.Tag.Mode)
	assert.Equal(t, "euruko", cfg.Tag.FixedID)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"tiles":   "wall: {tiles_per_device: 3}",
		"origin":  "wall: {origin: middle}",
		"driver":  "camera: {driver: dslr}",
		"quality": "capture: {jpeg_quality: 101}",
		"face":    "face: {enabled: true}",
		"tag":     "tag: {mode: nfc}",
		"level":   "log: {level: loud}",
		"qos":     "mqtt: {qos: 3}",
		"yaml":    "camera: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, Validate(cfg))

	def := Default()
	assert.Equal(t, def.Wall.TilesPerDevice, cfg.Wall.TilesPerDevice)
	assert.Equal(t, def.Capture.Timeout, cfg.Capture.Timeout)
	assert.Equal(t, def.Store.Dir, cfg.Store.Dir)
	assert.Equal(t, TagOff, cfg.Tag.Mode)
	assert.Zero(t, cfg.Capture.ArmDelay, "zero arm delay is allowed")
}
