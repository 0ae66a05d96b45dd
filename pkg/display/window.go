//go:build !headless

package display

import (
	"context"
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"holoquilt/internal/logging"
	"holoquilt/pkg/interleave"
	"holoquilt/pkg/quilt"
)

// Window draws the interleaved quilt with the lightfield shader.
type Window struct {
	scene *Scene
	path  string
	rect  Rect
	opts  Options

	ctx    context.Context
	shader *ebiten.Shader

	image   *ebiten.Image
	version uint64
}

// NewWindow creates a window for the quilt at path.
func NewWindow(path string, scene *Scene, opts Options) *Window {
	return &Window{
		scene: scene,
		path:  path,
		rect:  ScreenRect(scene.cal, opts),
		opts:  opts,
	}
}

// Run opens the window and blocks until it is closed, Escape is pressed or
// ctx is done.
func (w *Window) Run(ctx context.Context) error {
	if w.rect.Width <= 0 || w.rect.Height <= 0 {
		return fmt.Errorf("invalid screen size %dx%d", w.rect.Width, w.rect.Height)
	}

	shader, err := ebiten.NewShader(interleave.ShaderSource())
	if err != nil {
		return fmt.Errorf("failed to compile lightfield shader: %w", err)
	}
	w.shader = shader
	w.ctx = ctx

	if w.opts.Watch {
		watcher, err := NewWatcher(w.path, 100*time.Millisecond, w.scene.Reload)
		if err != nil {
			logging.Logger().Warn("quilt reload disabled", "err", err)
		} else {
			go watcher.Run(ctx)
		}
	}

	ebiten.SetWindowTitle("holoquilt - " + w.path)
	ebiten.SetWindowSize(w.rect.Width, w.rect.Height)
	ebiten.SetWindowPosition(w.rect.X, w.rect.Y)
	ebiten.SetWindowDecorated(!w.opts.Fullscreen)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)
	if w.opts.Fullscreen {
		ebiten.SetFullscreen(true)
	}

	logging.Logger().Info("display started",
		"screen", fmt.Sprintf("%dx%d+%d+%d", w.rect.Width, w.rect.Height, w.rect.X, w.rect.Y),
		"debug", w.scene.Debug())
	return ebiten.RunGame(w)
}

func (w *Window) Update() error {
	if w.ctx.Err() != nil || ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyD) {
		logging.Logger().Info("debug view", "enabled", w.scene.ToggleDebug())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		w.snapshot()
	}

	q, version := w.scene.Quilt()
	if version != w.version {
		if w.image != nil {
			w.image.Deallocate()
		}
		w.image = ebiten.NewImageFromImage(quilt.ToImage(q))
		w.version = version
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	if w.image == nil {
		return
	}

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	qw, qh := w.image.Bounds().Dx(), w.image.Bounds().Dy()
	vertices := []ebiten.Vertex{
		{DstX: 0, DstY: 0, SrcX: 0, SrcY: 0, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: float32(sw), DstY: 0, SrcX: float32(qw), SrcY: 0, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: 0, DstY: float32(sh), SrcX: 0, SrcY: float32(qh), ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: float32(sw), DstY: float32(sh), SrcX: float32(qw), SrcY: float32(qh), ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
	}
	indices := []uint16{0, 1, 2, 1, 2, 3}

	op := &ebiten.DrawTrianglesShaderOptions{
		Uniforms: w.scene.Uniforms(sw, sh),
	}
	op.Images[0] = w.image
	screen.DrawTrianglesShader(vertices, indices, w.shader, op)
}

func (w *Window) Layout(_, _ int) (int, int) {
	return w.rect.Width, w.rect.Height
}

// snapshot writes the CPU interleaving of the current quilt next to it.
func (w *Window) snapshot() {
	out, err := w.scene.Snapshot(w.rect.Width, w.rect.Height)
	if err != nil {
		logging.Logger().Warn("snapshot failed", "err", err)
		return
	}
	path := SnapshotPath(w.path)
	if err := quilt.Save(path, out); err != nil {
		logging.Logger().Warn("snapshot failed", "path", path, "err", err)
		return
	}
	logging.Logger().Info("snapshot saved", "path", path)
}
