package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"holoquilt/internal/logging"
	"holoquilt/internal/models"
	"holoquilt/pkg/config"
	"holoquilt/pkg/holoplay"
)

const usage = `usage: holoquilt [-config file] [-verbose] <command> [flags]

commands:
  devices      list connected lightfield displays and their calibration
  capture      capture a quilt of the built-in test scene
  interleave   render the interleaved lightfield image of a quilt to a file
  display      show a quilt on the lightfield display
  split        write every view of a quilt as its own image
  init-config  write a default configuration file
`

func main() {
	configPath := flag.String("config", "holoquilt.yaml", "Configuration file")
	verbose := flag.Bool("verbose", false, "Log state transitions and per-view details")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	if command == "init-config" {
		runInitConfig(*configPath, args)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *verbose {
		cfg.Output.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	setupLogging(cfg.Output.Verbose)

	switch command {
	case "devices":
		runDevices(cfg, args)
	case "capture":
		runCapture(cfg, args)
	case "interleave":
		runInterleave(cfg, args)
	case "display":
		runDisplay(cfg, args)
	case "split":
		runSplit(cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

// setupLogging routes library logs to stderr.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// device is an open calibration provider and what it is backed by.
type device struct {
	provider *holoplay.Provider
	library  *holoplay.Library
}

func (d *device) Close() {
	if d.library != nil {
		if err := d.library.Close(); err != nil {
			logging.Logger().Warn("failed to close HoloPlay Core", "err", err)
		}
	}
}

// openDevices connects to the HoloPlay service, falling back to the
// calibrations in the configuration when the library or service is
// unavailable.
func openDevices(cfg *config.Config) (*device, error) {
	lib, err := holoplay.Open(cfg.Device.Library)
	if err == nil {
		if err = lib.InitializeApp(cfg.Device.AppName, license(cfg)); err == nil {
			return &device{provider: holoplay.NewProvider(lib), library: lib}, nil
		}
		if cerr := lib.Close(); cerr != nil {
			logging.Logger().Warn("failed to close HoloPlay Core", "err", cerr)
		}
	}

	if len(cfg.Device.Fallback) == 0 {
		return nil, fmt.Errorf("no device service and no fallback calibration configured: %w", err)
	}
	logging.Logger().Warn("using fallback calibration", "reason", err)

	cals := make([]models.Calibration, len(cfg.Device.Fallback))
	for i, c := range cfg.Device.Fallback {
		cals[i] = c.Model(i)
	}
	return &device{provider: holoplay.NewProvider(holoplay.NewStaticSource(cals...))}, nil
}

// license maps the configured license to the SDK value.
func license(cfg *config.Config) holoplay.LicenseType {
	if cfg.Device.Commercial {
		return holoplay.LicenseCommercial
	}
	return holoplay.LicenseNonCommercial
}

// calibration returns the calibration of the configured device.
func calibration(cfg *config.Config) models.Calibration {
	dev, err := openDevices(cfg)
	if err != nil {
		log.Fatalf("Failed to open devices: %v", err)
	}
	defer dev.Close()

	cal, err := dev.provider.Get(cfg.Device.Index)
	if err != nil {
		log.Fatalf("Failed to read calibration: %v", err)
	}
	return cal
}

func runInitConfig(configPath string, args []string) {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing file")
	fs.Parse(args)

	if _, err := os.Stat(configPath); err == nil && !*force {
		log.Fatalf("%s already exists, use -force to overwrite it", configPath)
	}
	if err := config.CreateDefaultConfigFile(configPath); err != nil {
		log.Fatalf("Failed to write configuration: %v", err)
	}
	fmt.Printf("Default configuration written to %s\n", configPath)
}

func runDevices(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	fs.Parse(args)

	dev, err := openDevices(cfg)
	if err != nil {
		log.Fatalf("Failed to open devices: %v", err)
	}
	defer dev.Close()

	if dev.library != nil {
		core, _ := dev.library.CoreVersion()
		service, _ := dev.library.ServiceVersion()
		fmt.Printf("HoloPlay Core %s, service %s\n", core, service)
	} else {
		fmt.Println("HoloPlay service unavailable, showing configured calibrations")
	}

	cals, err := dev.provider.Devices()
	if err != nil {
		log.Fatalf("Failed to read devices: %v", err)
	}
	if len(cals) == 0 {
		fmt.Println("No devices connected")
		return
	}

	fmt.Println("================================")
	for _, c := range cals {
		fmt.Printf("Device %d: %s (%s)\n", c.Index, c.HDMIName, c.Type)
		fmt.Printf("  Screen: %dx%d at %d,%d, aspect %.4f\n", c.ScreenW, c.ScreenH, c.WinX, c.WinY, c.DisplayAspect)
		fmt.Printf("  Lenticular: pitch %.4f, tilt %.4f, center %.4f, subp %.6f, fringe %.2f\n",
			c.Pitch, c.Tilt, c.Center, c.Subp, c.Fringe)
		fmt.Printf("  View cone: %.1f deg, ri %d, bi %d, inverted %v\n", c.ViewCone, c.Ri, c.Bi, c.InvView)
	}
	fmt.Println("================================")
}
