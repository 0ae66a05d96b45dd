// Package capture drives a host renderer through the views of a quilt.
//
// The host renders asynchronously and reports progress through lifecycle
// callbacks. Callbacks never touch session data: they post a request and,
// for the steps that must finish before the host continues, wait for the
// tick to acknowledge it. All session mutation happens inside Tick.
package capture

import (
	"holoquilt/internal/models"
)

// Callbacks are the lifecycle hooks a Renderer invokes during a render.
// Any of them may be called from a goroutine other than the one calling
// Tick.
type Callbacks struct {
	// OnInit is called once the render job is set up
	OnInit func()

	// OnPreRender is called before rasterization starts. The camera must
	// be in place when it returns.
	OnPreRender func()

	// OnPostRender is called when the pixels are ready. The result must
	// be readable until it returns.
	OnPostRender func()

	// OnComplete is called when the render job is finished
	OnComplete func()

	// OnCancel is called when the render was cancelled on the host side
	OnCancel func()

	// OnFail is called when the render failed
	OnFail func(err error)
}

// Renderer is the host renderer. It renders one view at a time.
type Renderer interface {
	// RenderView starts rendering the given frame and returns without
	// waiting. writeToPath is the host output path the still is written
	// to, if the host writes one.
	RenderView(frame int, subframe float64, writeToPath string) error

	// Result returns the pixels of the most recent render.
	Result() (*models.PixelBuffer, error)

	// Subscribe attaches lifecycle callbacks. The returned function
	// detaches them again.
	Subscribe(cb Callbacks) (detach func())
}

// Scene is the host scene state a capture session reads, overrides and
// restores.
type Scene interface {
	// Camera returns the active camera, or an error if there is none.
	Camera() (models.Camera, error)
	SetCamera(models.Camera)

	RenderSettings() models.RenderSettings
	SetRenderSettings(models.RenderSettings)

	// FrameRange returns the animation range and the current frame.
	FrameRange() (start, end, current int)

	// SetFrame moves the scene to a frame. Subframe returns the
	// subframe the scene actually settled on.
	SetFrame(frame int, subframe float64)
	Subframe() float64
}

// Images saves and reloads view and quilt images.
type Images interface {
	Save(path string, b *models.PixelBuffer) error
	Load(path string) (*models.PixelBuffer, error)

	// Release frees whatever Load allocated for path, including the file
	// if it is transient.
	Release(path string) error
}
