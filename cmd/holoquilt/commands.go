package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"holoquilt/pkg/capture"
	"holoquilt/pkg/config"
	"holoquilt/pkg/display"
	"holoquilt/pkg/interleave"
	"holoquilt/pkg/quilt"
	"holoquilt/pkg/scene"
)

func checkExtension(ext string) {
	if !slices.Contains(quilt.Extensions, strings.ToLower(ext)) {
		log.Fatalf("Unsupported image format %q, use one of %s", ext, strings.Join(quilt.Extensions, ", "))
	}
}

func runCapture(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	output := fs.String("output", cfg.Capture.OutputPath, "Quilt output path or frame path template (# marks the frame number)")
	ext := fs.String("ext", cfg.Capture.FileExtension, "Image format of the quilt")
	animation := fs.Bool("animation", cfg.Capture.Animation, "Capture one quilt per frame")
	frames := fs.Int("frames", 1, "Number of frames in the test scene")
	fov := fs.Float64("fov", 14, "Camera field of view in degrees")
	keepViews := fs.Bool("keep-views", cfg.Capture.KeepViews, "Keep the per-view images")
	fs.Parse(args)

	checkExtension(*ext)
	cal := calibration(cfg)

	fmt.Println("================================")
	fmt.Println("LIGHTFIELD QUILT CAPTURE")
	fmt.Println("================================")
	g := cfg.Quilt
	fmt.Printf("Quilt: %dx%d views of %dx%d pixels (%dx%d)\n",
		g.Columns, g.Rows, g.ViewWidth, g.ViewHeight, g.Width(), g.Height())
	fmt.Printf("Device: %s, view cone %.1f deg\n", cal.HDMIName, cal.ViewCone)

	s := scene.Demo(cfg.Capture.FocalPlane, *fov*math.Pi/180, *frames)
	s.SetOutput(*output, *ext)

	params := &capture.Params{
		Quilt:        g,
		Calibration:  cal,
		FocalPlane:   cfg.Capture.FocalPlane,
		Animation:    *animation,
		TickInterval: cfg.Capture.TickInterval,
	}
	machine := capture.NewMachine(params, s, s, quilt.Files{Keep: *keepViews})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()
	result, err := machine.Run(ctx)
	elapsed := time.Since(startTime)

	switch {
	case errors.Is(err, capture.ErrCancelled):
		fmt.Printf("\nCapture cancelled after %d views\n", result.Views)
		os.Exit(130)
	case err != nil:
		log.Fatalf("Capture failed: %v", err)
	}

	fmt.Printf("\nCaptured %d views in %.2f seconds\n", result.Views, elapsed.Seconds())
	for _, path := range result.Quilts {
		fmt.Printf("Quilt saved to: %s\n", path)
	}
}

func runInterleave(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("interleave", flag.ExitOnError)
	input := fs.String("quilt", "", "Quilt image to interleave")
	output := fs.String("output", "", "Output image (default <quilt>_lightfield.png)")
	width := fs.Int("width", 0, "Output width (default: device screen width)")
	height := fs.Int("height", 0, "Output height (default: device screen height)")
	debug := fs.Bool("debug", false, "Pass the quilt through unchanged")
	fs.Parse(args)

	if *input == "" {
		fs.Usage()
		os.Exit(1)
	}
	if *output == "" {
		*output = display.SnapshotPath(*input)
	}

	cal := calibration(cfg)
	rect := display.ScreenRect(cal, display.Options{Width: *width, Height: *height})
	if rect.Width <= 0 || rect.Height <= 0 {
		rect.Width, rect.Height = cfg.Display.Width, cfg.Display.Height
	}

	q, err := quilt.Load(*input)
	if err != nil {
		log.Fatalf("Failed to load quilt: %v", err)
	}
	r, err := interleave.New(q, cal, cfg.Quilt)
	if err != nil {
		log.Fatalf("Failed to set up interleaving: %v", err)
	}
	r.SetDebug(*debug)

	startTime := time.Now()
	out, err := r.Render(rect.Width, rect.Height)
	if err != nil {
		log.Fatalf("Interleaving failed: %v", err)
	}
	if err := quilt.Save(*output, out); err != nil {
		log.Fatalf("Failed to save %s: %v", *output, err)
	}
	fmt.Printf("Interleaved %dx%d image saved to %s in %.2f seconds\n",
		rect.Width, rect.Height, *output, time.Since(startTime).Seconds())
}

func runDisplay(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("display", flag.ExitOnError)
	input := fs.String("quilt", "", "Quilt image to show")
	debug := fs.Bool("debug", cfg.Display.Debug, "Start with the raw quilt (toggle with D)")
	fullscreen := fs.Bool("fullscreen", cfg.Display.Fullscreen, "Cover the device screen")
	watch := fs.Bool("watch", cfg.Display.Watch, "Reload the quilt when the file changes")
	fs.Parse(args)

	if *input == "" {
		fs.Usage()
		os.Exit(1)
	}

	cal := calibration(cfg)
	q, err := quilt.Load(*input)
	if err != nil {
		log.Fatalf("Failed to load quilt: %v", err)
	}
	sc, err := display.NewScene(q, cal, cfg.Quilt, *debug)
	if err != nil {
		log.Fatalf("Failed to set up display: %v", err)
	}

	opts := display.Options{
		Fullscreen: *fullscreen,
		Watch:      *watch,
	}
	if cal.ScreenW <= 0 || cal.ScreenH <= 0 {
		opts.Width, opts.Height = cfg.Display.Width, cfg.Display.Height
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Showing quilt, press D to toggle the raw quilt, S to save a snapshot, Esc to quit")
	if err := display.NewWindow(*input, sc, opts).Run(ctx); err != nil {
		log.Fatalf("Display failed: %v", err)
	}
}

func runSplit(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("split", flag.ExitOnError)
	input := fs.String("quilt", "", "Quilt image to split")
	outputDir := fs.String("output", "views", "Directory for the view images")
	ext := fs.String("ext", cfg.Capture.FileExtension, "Image format of the views")
	stats := fs.Bool("stats", false, "Print per-view luminance statistics")
	fs.Parse(args)

	if *input == "" {
		fs.Usage()
		os.Exit(1)
	}
	checkExtension(*ext)

	q, err := quilt.Load(*input)
	if err != nil {
		log.Fatalf("Failed to load quilt: %v", err)
	}
	splitter, err := quilt.NewSplitter(q, cfg.Quilt)
	if err != nil {
		log.Fatalf("Quilt does not match the configured layout: %v", err)
	}
	if err := splitter.SaveViewSequence(*outputDir, *ext); err != nil {
		log.Fatalf("Failed to save views: %v", err)
	}
	fmt.Printf("%d views saved to %s\n", cfg.Quilt.TotalViews(), *outputDir)

	if *stats {
		tiles, err := quilt.Stats(q, cfg.Quilt)
		if err != nil {
			log.Fatalf("Failed to compute statistics: %v", err)
		}
		fmt.Println("\nView  Mean    StdDev  Detail")
		for _, t := range tiles {
			blank := ""
			if t.Blank() {
				blank = "  (blank)"
			}
			fmt.Printf("%4d  %.4f  %.4f  %.4f%s\n", t.View, t.Mean, t.StdDev, t.Detail, blank)
		}
	}
}
