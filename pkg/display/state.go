// Package display shows an interleaved quilt full screen on a lightfield
// display.
package display

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"holoquilt/internal/logging"
	"holoquilt/internal/models"
	"holoquilt/pkg/interleave"
	"holoquilt/pkg/quilt"
)

// ErrUnsupported is returned by Run in builds without a window system.
var ErrUnsupported = errors.New("display support not built in")

// Options controls the display window. The initial debug state belongs
// to the Scene.
type Options struct {
	// Fullscreen covers the display instead of opening a window
	Fullscreen bool

	// Watch reloads the quilt when its file changes
	Watch bool

	// Width and Height override the calibration's screen size when set
	Width  int
	Height int
}

// Rect is the screen area of the display.
type Rect struct {
	X, Y          int
	Width, Height int
}

// ScreenRect returns where the window goes: at the display's desktop
// position with its native resolution, unless opts overrides the size.
func ScreenRect(cal models.Calibration, opts Options) Rect {
	r := Rect{X: cal.WinX, Y: cal.WinY, Width: cal.ScreenW, Height: cal.ScreenH}
	if opts.Width > 0 && opts.Height > 0 {
		r.Width, r.Height = opts.Width, opts.Height
	}
	return r
}

// Scene is the state shared by the window's event loop and the quilt
// watcher: the current quilt, a version counter for uploads, and the debug
// toggle.
type Scene struct {
	cal models.Calibration
	geo models.QuiltGeometry

	mu      sync.Mutex
	quilt   *models.PixelBuffer
	version uint64
	debug   bool
}

// NewScene checks that the quilt can be interleaved and wraps it.
func NewScene(q *models.PixelBuffer, cal models.Calibration, g models.QuiltGeometry, debug bool) (*Scene, error) {
	if _, err := interleave.New(q, cal, g); err != nil {
		return nil, err
	}
	return &Scene{cal: cal, geo: g, quilt: q, version: 1, debug: debug}, nil
}

// Quilt returns the current quilt and its version.
func (s *Scene) Quilt() (*models.PixelBuffer, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quilt, s.version
}

// SetQuilt replaces the quilt.
func (s *Scene) SetQuilt(q *models.PixelBuffer) error {
	if q == nil || q.Width == 0 || q.Height == 0 {
		return fmt.Errorf("empty quilt")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quilt = q
	s.version++
	return nil
}

// Reload reads the quilt from path and swaps it in. A failed load keeps
// the current quilt.
func (s *Scene) Reload(path string) {
	q, err := quilt.Load(path)
	if err != nil {
		logging.Logger().Warn("failed to reload quilt", "path", path, "err", err)
		return
	}
	if err := s.SetQuilt(q); err != nil {
		logging.Logger().Warn("ignoring quilt", "path", path, "err", err)
		return
	}
	logging.Logger().Info("quilt reloaded", "path", path, "size", fmt.Sprintf("%dx%d", q.Width, q.Height))
}

// ToggleDebug flips passthrough mode and returns the new value.
func (s *Scene) ToggleDebug() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug = !s.debug
	return s.debug
}

// Debug reports whether passthrough mode is on.
func (s *Scene) Debug() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debug
}

// Uniforms returns the shader uniforms for a screen of the given size.
func (s *Scene) Uniforms(width, height int) map[string]any {
	return interleave.Uniforms(s.cal, s.geo, width, height, s.Debug())
}

// Snapshot interleaves the current quilt on the CPU, as the window would
// show it.
func (s *Scene) Snapshot(width, height int) (*models.PixelBuffer, error) {
	q, _ := s.Quilt()
	r, err := interleave.New(q, s.cal, s.geo)
	if err != nil {
		return nil, err
	}
	r.SetDebug(s.Debug())
	return r.Render(width, height)
}

// SnapshotPath returns the path a CPU snapshot of quiltPath is saved to.
func SnapshotPath(quiltPath string) string {
	ext := filepath.Ext(quiltPath)
	if ext == "" {
		ext = ".png"
	}
	return strings.TrimSuffix(quiltPath, filepath.Ext(quiltPath)) + "_lightfield" + ext
}
