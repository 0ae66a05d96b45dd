package capture

import (
	"holoquilt/internal/models"
)

// Session is the mutable state of one capture. It is owned by a Machine
// and only touched from Tick.
type Session struct {
	// Frame, Subframe and View locate the render in progress
	Frame    int
	Subframe float64
	View     int

	// ViewCount is the number of views per quilt
	ViewCount int

	// LastFrame is the final frame to capture
	LastFrame int

	// Views holds the captured pixels of the current frame in view order
	Views []*models.PixelBuffer

	// QuiltPath is the resolved output path of the current frame
	QuiltPath string

	// ViewPath is the transient image path of the current view
	ViewPath string

	// FrameCamera is the camera as it was at view 0 of the current frame.
	// Every view of the frame is placed relative to it.
	FrameCamera models.Camera

	// Original holds the scene state from before the session started
	Original struct {
		Camera   models.Camera
		Settings models.RenderSettings
		Frame    int
	}
}

// PixelAspect returns the render pixel aspect that maps square view pixels
// onto a display of the given aspect.
func PixelAspect(displayAspect float64, g models.QuiltGeometry) (x, y float64) {
	r := displayAspect / g.QuiltAspect()
	if r > 1 {
		return r, 1
	}
	return 1, 1 / r
}
