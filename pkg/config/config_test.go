package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 45, cfg.Quilt.TotalViews())
	assert.Equal(t, 4095, cfg.Quilt.Width())
	assert.Equal(t, 4095, cfg.Quilt.Height())
	assert.Equal(t, time.Millisecond, cfg.Capture.TickInterval)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "holoquilt.yaml")

	cfg := DefaultConfig()
	cfg.Device.Index = 1
	cfg.Quilt.Columns = 8
	cfg.Quilt.Rows = 6
	cfg.Capture.Animation = true
	cfg.Device.Fallback = []Calibration{{Pitch: 49.8, Tilt: -0.17, ViewCone: 40, Bi: 2}}
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holoquilt.yaml")
	data := "quilt:\n  columns: 4\n  rows: 8\ncapture:\n  tickInterval: 5ms\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Quilt.Columns)
	assert.Equal(t, 8, cfg.Quilt.Rows)
	assert.Equal(t, 819, cfg.Quilt.ViewWidth)
	assert.Equal(t, 5*time.Millisecond, cfg.Capture.TickInterval)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quilt: [unclosed"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holoquilt.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	// a directory in place of the file is an error, not a missing file
	_, err = LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero columns", func(c *Config) { c.Quilt.Columns = 0 }},
		{"zero view height", func(c *Config) { c.Quilt.ViewHeight = 0 }},
		{"view portion above one", func(c *Config) { c.Quilt.ViewPortion[0] = 1.5 }},
		{"negative focal plane", func(c *Config) { c.Capture.FocalPlane = -1 }},
		{"zero tick", func(c *Config) { c.Capture.TickInterval = 0 }},
		{"negative device", func(c *Config) { c.Device.Index = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCalibrationModel(t *testing.T) {
	c := Calibration{Pitch: 50, Center: 0.1, InvView: true, Ri: 0, Bi: 2, DisplayAspect: 0.75}
	m := c.Model(3)
	assert.Equal(t, 3, m.Index)
	assert.Equal(t, 50.0, m.Pitch)
	assert.True(t, m.InvView)
	assert.Equal(t, 2, m.Bi)
}
