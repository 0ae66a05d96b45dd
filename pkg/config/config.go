// Package config provides configuration loading and management for holoquilt.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"holoquilt/internal/models"
)

// Calibration is the YAML form of a device calibration. It is used when
// no device service is reachable.
type Calibration struct {
	HDMIName      string  `yaml:"hdmiName"`
	Type          string  `yaml:"type"`
	WinX          int     `yaml:"winX"`
	WinY          int     `yaml:"winY"`
	ScreenW       int     `yaml:"screenW"`
	ScreenH       int     `yaml:"screenH"`
	Pitch         float64 `yaml:"pitch"`
	Tilt          float64 `yaml:"tilt"`
	Center        float64 `yaml:"center"`
	Subp          float64 `yaml:"subp"`
	Fringe        float64 `yaml:"fringe"`
	DisplayAspect float64 `yaml:"displayAspect"`
	ViewCone      float64 `yaml:"viewCone"`
	InvView       bool    `yaml:"invView"`
	Ri            int     `yaml:"ri"`
	Bi            int     `yaml:"bi"`
}

// Model converts the YAML calibration for the given device index.
func (c Calibration) Model(index int) models.Calibration {
	return models.Calibration{
		Index:         index,
		HDMIName:      c.HDMIName,
		Type:          c.Type,
		WinX:          c.WinX,
		WinY:          c.WinY,
		ScreenW:       c.ScreenW,
		ScreenH:       c.ScreenH,
		Pitch:         c.Pitch,
		Tilt:          c.Tilt,
		Center:        c.Center,
		Subp:          c.Subp,
		Fringe:        c.Fringe,
		DisplayAspect: c.DisplayAspect,
		ViewCone:      c.ViewCone,
		InvView:       c.InvView,
		Ri:            c.Ri,
		Bi:            c.Bi,
	}
}

// Config is the application configuration loaded from YAML.
type Config struct {
	// Device selection and service access
	Device struct {
		// Index of the display to use
		Index int `yaml:"index"`

		// AppName is reported to the device service on initialization
		AppName string `yaml:"appName"`

		// Commercial selects the commercial license type
		Commercial bool `yaml:"commercial"`

		// Library overrides the path of the HoloPlay Core shared library
		Library string `yaml:"library"`

		// Fallback calibrations used when the library cannot be loaded
		Fallback []Calibration `yaml:"fallback,omitempty"`
	} `yaml:"device"`

	// Quilt layout
	Quilt models.QuiltGeometry `yaml:"quilt"`

	// Capture parameters
	Capture struct {
		// FocalPlane is the distance from the camera to the plane that
		// appears at the display surface
		FocalPlane float64 `yaml:"focalPlane"`

		// TickInterval is the period of the state machine tick
		TickInterval time.Duration `yaml:"tickInterval"`

		// OutputPath is the quilt output path or frame path template
		OutputPath string `yaml:"outputPath"`

		// FileExtension selects the image format, e.g. ".png"
		FileExtension string `yaml:"fileExtension"`

		// Animation captures the scene's whole frame range
		Animation bool `yaml:"animation"`

		// KeepViews keeps the per-view intermediate images on disk
		KeepViews bool `yaml:"keepViews"`
	} `yaml:"capture"`

	// Display parameters
	Display struct {
		// Debug shows the raw quilt instead of the interleaved image
		Debug bool `yaml:"debug"`

		// Fullscreen places the window on the device screen
		Fullscreen bool `yaml:"fullscreen"`

		// Watch reloads the quilt whenever the file changes
		Watch bool `yaml:"watch"`

		// Width and Height of the output when the calibration reports no
		// screen size
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"display"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Device.Index = 0
	cfg.Device.AppName = "holoquilt"

	// 5x9 quilt of 819x455 views gives a 4095x4095 quilt
	cfg.Quilt = models.QuiltGeometry{
		Columns:     5,
		Rows:        9,
		ViewWidth:   819,
		ViewHeight:  455,
		ViewPortion: [2]float64{1, 1},
	}

	cfg.Capture.FocalPlane = 5.0
	cfg.Capture.TickInterval = time.Millisecond
	cfg.Capture.OutputPath = "quilt"
	cfg.Capture.FileExtension = ".png"

	cfg.Display.Watch = true
	cfg.Display.Width = 1536
	cfg.Display.Height = 2048

	cfg.Output.Verbose = false

	return cfg
}

// Validate checks the values that cannot be corrected at runtime.
func (c *Config) Validate() error {
	if err := c.Quilt.Validate(); err != nil {
		return fmt.Errorf("quilt: %w", err)
	}
	if c.Capture.FocalPlane <= 0 {
		return fmt.Errorf("capture: focal plane must be positive, got %g", c.Capture.FocalPlane)
	}
	if c.Capture.TickInterval <= 0 {
		return fmt.Errorf("capture: tick interval must be positive, got %s", c.Capture.TickInterval)
	}
	if c.Device.Index < 0 {
		return fmt.Errorf("device: index must be non-negative, got %d", c.Device.Index)
	}
	return nil
}

// LoadConfig reads a YAML configuration on top of DefaultConfig, so a file
// only needs the keys it changes. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating parent directories as needed.
func SaveConfig(cfg *Config, configPath string) error {
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	return nil
}

// CreateDefaultConfigFile writes DefaultConfig to configPath.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
