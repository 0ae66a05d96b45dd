// Package scene is a small ray traced test scene that plays the host
// renderer for a capture session. It renders a handful of shaded spheres
// through the session's camera, including its lens shift, on a background
// goroutine and reports progress through the capture callbacks.
package scene

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"holoquilt/internal/logging"
	"holoquilt/internal/models"
	"holoquilt/pkg/capture"
)

// ErrBusy is returned when a render is started while another is running.
var ErrBusy = errors.New("render already in progress")

// Sphere is a solid colored sphere. Velocity moves it per frame.
type Sphere struct {
	Center   models.Vec3
	Radius   float64
	Color    [3]float64
	Velocity models.Vec3
}

// Scene holds the spheres, the camera and the output settings. It
// implements both capture.Scene and capture.Renderer.
type Scene struct {
	mu sync.Mutex

	spheres  []Sphere
	camera   models.Camera
	settings models.RenderSettings
	start    int
	end      int
	current  int
	subframe float64

	// Subframes lets SetFrame keep fractional frames
	Subframes bool

	callbacks *capture.Callbacks
	result    *models.PixelBuffer
	rendering atomic.Bool
	cancel    atomic.Bool
	renders   atomic.Int64
}

// New creates a scene with a camera at distance on the +Z axis looking at
// the origin.
func New(spheres []Sphere, distance, fieldOfView float64) *Scene {
	return &Scene{
		spheres: spheres,
		camera: models.Camera{
			Pose:        models.IdentityPose(models.Vec3{Z: distance}),
			FieldOfView: fieldOfView,
		},
		settings: models.RenderSettings{
			ResolutionX:   512,
			ResolutionY:   512,
			PixelAspectX:  1,
			PixelAspectY:  1,
			FileExtension: ".png",
		},
		start:   1,
		end:     1,
		current: 1,
	}
}

// Demo returns three spheres around the origin, the middle one sitting on
// the focal plane at distance from the camera.
func Demo(distance, fieldOfView float64, frames int) *Scene {
	s := New([]Sphere{
		{Center: models.Vec3{}, Radius: 0.8, Color: [3]float64{0.9, 0.3, 0.2}},
		{Center: models.Vec3{X: -1.4, Y: 0.3, Z: -1.5}, Radius: 0.6, Color: [3]float64{0.2, 0.7, 0.3},
			Velocity: models.Vec3{Y: 0.05}},
		{Center: models.Vec3{X: 1.2, Y: -0.4, Z: 1.2}, Radius: 0.4, Color: [3]float64{0.2, 0.4, 0.9},
			Velocity: models.Vec3{X: -0.05}},
	}, distance, fieldOfView)
	if frames > 1 {
		s.end = frames
	}
	return s
}

// Camera returns the active camera.
func (s *Scene) Camera() (models.Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.camera.FieldOfView <= 0 {
		return models.Camera{}, fmt.Errorf("camera has no field of view")
	}
	return s.camera, nil
}

func (s *Scene) SetCamera(c models.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = c
}

func (s *Scene) RenderSettings() models.RenderSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Scene) SetRenderSettings(r models.RenderSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = r
}

// SetOutput sets the output path and file extension.
func (s *Scene) SetOutput(path, ext string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.FilePath = path
	s.settings.FileExtension = ext
}

// FrameRange returns the animation range and the current frame.
func (s *Scene) FrameRange() (start, end, current int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start, s.end, s.current
}

// SetFrameRange sets the animation range.
func (s *Scene) SetFrameRange(start, end int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start, s.end = start, end
}

// SetFrame moves the scene to a frame. The subframe is dropped unless
// Subframes is set.
func (s *Scene) SetFrame(frame int, subframe float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = frame
	if s.Subframes {
		s.subframe = subframe
	} else {
		s.subframe = 0
	}
}

func (s *Scene) Subframe() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subframe
}

// Subscribe attaches the capture callbacks.
func (s *Scene) Subscribe(cb capture.Callbacks) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = &cb
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.callbacks = nil
	}
}

// Cancel aborts the render in progress, the way a user would in the host.
// It does nothing while no render is running.
func (s *Scene) Cancel() {
	if s.rendering.Load() {
		s.cancel.Store(true)
	}
}

// Renders returns the number of renders started.
func (s *Scene) Renders() int {
	return int(s.renders.Load())
}

// Result returns the pixels of the last finished render.
func (s *Scene) Result() (*models.PixelBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil, fmt.Errorf("no render result")
	}
	return s.result, nil
}

// RenderView starts a render of the current camera on a new goroutine.
// The still is kept in memory; writeToPath is only logged.
func (s *Scene) RenderView(frame int, subframe float64, writeToPath string) error {
	if !s.rendering.CompareAndSwap(false, true) {
		return ErrBusy
	}
	s.cancel.Store(false)
	s.renders.Add(1)
	logging.Logger().Debug("render started", "frame", frame, "subframe", subframe, "path", writeToPath)

	go func() {
		cb := s.subscribed()

		cb.OnInit()
		cb.OnPreRender()

		// camera and settings are final once pre-render returns
		s.mu.Lock()
		cam := s.camera
		settings := s.settings
		spheres := make([]Sphere, len(s.spheres))
		for i, sp := range s.spheres {
			sp.Center = sp.Center.Add(sp.Velocity.Scale(float64(frame) + subframe))
			spheres[i] = sp
		}
		s.mu.Unlock()

		buf, err := render(spheres, cam, settings, &s.cancel)
		if errors.Is(err, errCancelled) {
			s.cancel.Store(false)
			s.rendering.Store(false)
			cb.OnCancel()
			return
		}
		if err != nil {
			s.rendering.Store(false)
			cb.OnFail(err)
			return
		}

		s.mu.Lock()
		s.result = buf
		s.mu.Unlock()

		cb.OnPostRender()

		// the next render may start as soon as complete is delivered
		s.rendering.Store(false)
		cb.OnComplete()
	}()
	return nil
}

// subscribed returns the attached callbacks with nil entries filled in.
func (s *Scene) subscribed() capture.Callbacks {
	s.mu.Lock()
	var cb capture.Callbacks
	if s.callbacks != nil {
		cb = *s.callbacks
	}
	s.mu.Unlock()

	nop := func() {}
	if cb.OnInit == nil {
		cb.OnInit = nop
	}
	if cb.OnPreRender == nil {
		cb.OnPreRender = nop
	}
	if cb.OnPostRender == nil {
		cb.OnPostRender = nop
	}
	if cb.OnComplete == nil {
		cb.OnComplete = nop
	}
	if cb.OnCancel == nil {
		cb.OnCancel = nop
	}
	if cb.OnFail == nil {
		cb.OnFail = func(error) {}
	}
	return cb
}
