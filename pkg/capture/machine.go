package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"holoquilt/internal/logging"
	"holoquilt/internal/models"
	"holoquilt/pkg/quilt"
	"holoquilt/pkg/reprojection"
)

var (
	// ErrCancelled is the result error of a cancelled session.
	ErrCancelled = errors.New("capture cancelled")

	// ErrRenderFailed wraps failures reported by the renderer.
	ErrRenderFailed = errors.New("render failed")

	// ErrSessionActive is returned when Start is called twice.
	ErrSessionActive = errors.New("capture session already started")

	// ErrNoCamera is returned when the scene has no active camera.
	ErrNoCamera = errors.New("scene has no active camera")
)

// Params holds the capture configuration.
type Params struct {
	// Quilt is the tile layout; its view size is the render resolution
	Quilt models.QuiltGeometry

	// Calibration of the target display
	Calibration models.Calibration

	// FocalPlane is the camera distance to the plane that appears at the
	// display surface
	FocalPlane float64

	// Animation captures one quilt per frame of the scene's frame range
	Animation bool

	// TickInterval is the period Run ticks the machine at
	TickInterval time.Duration
}

// Result reports how a session ended.
type Result struct {
	Status Status

	// Quilts lists the quilt files written, in frame order
	Quilts []string

	// Views is the total number of views captured
	Views int

	// Err is nil for a finished session
	Err error
}

// request is a state change posted by a renderer callback.
type request struct {
	state State
	err   error
	ack   chan struct{}
}

// Machine is the capture state machine. Callbacks may arrive on any
// goroutine; Tick must always be called from the same one.
type Machine struct {
	params   *Params
	renderer Renderer
	scene    Scene
	images   Images

	state    State
	session  *Session
	started  bool
	detach   func()
	requests chan request
	cancel   atomic.Bool

	done     chan struct{}
	teardown sync.Once
	result   Result
}

// NewMachine creates a machine for one capture session.
func NewMachine(params *Params, renderer Renderer, scene Scene, images Images) *Machine {
	return &Machine{
		params:   params,
		renderer: renderer,
		scene:    scene,
		images:   images,
		state:    Idle,
		requests: make(chan request, 16),
		done:     make(chan struct{}),
		result:   Result{Status: Running},
	}
}

// State returns the current state. Only meaningful on the Tick goroutine.
func (m *Machine) State() State { return m.state }

// Session returns the session in progress, or nil before Start.
func (m *Machine) Session() *Session { return m.session }

// Done is closed once the session has been torn down.
func (m *Machine) Done() <-chan struct{} { return m.done }

// Result returns the session outcome. Status is Running until Done is
// closed.
func (m *Machine) Result() Result {
	select {
	case <-m.done:
		return m.result
	default:
		return Result{Status: Running}
	}
}

// Start snapshots the scene, applies the quilt render settings, attaches
// the renderer callbacks and queues the first render.
func (m *Machine) Start() error {
	if m.started {
		return ErrSessionActive
	}
	g := m.params.Quilt
	if err := g.Validate(); err != nil {
		return fmt.Errorf("invalid quilt geometry: %w", err)
	}
	if m.params.Calibration.DisplayAspect <= 0 {
		return fmt.Errorf("calibration has no display aspect")
	}

	cam, err := m.scene.Camera()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoCamera, err)
	}

	s := &Session{ViewCount: g.TotalViews()}
	s.Original.Camera = cam
	s.Original.Settings = m.scene.RenderSettings()
	start, end, current := m.scene.FrameRange()
	s.Original.Frame = current
	if m.params.Animation {
		s.Frame, s.LastFrame = start, end
	} else {
		s.Frame, s.LastFrame = current, current
	}
	s.FrameCamera = cam
	m.session = s

	settings := s.Original.Settings
	settings.ResolutionX = g.ViewWidth
	settings.ResolutionY = g.ViewHeight
	settings.PixelAspectX, settings.PixelAspectY = PixelAspect(m.params.Calibration.DisplayAspect, g)
	if settings.FileExtension == "" {
		settings.FileExtension = ".png"
	}
	m.scene.SetRenderSettings(settings)

	m.detach = m.renderer.Subscribe(Callbacks{
		OnInit:       func() { m.post(InitRender, nil, true) },
		OnPreRender:  func() { m.post(PreRender, nil, true) },
		OnPostRender: func() { m.post(PostRender, nil, true) },
		OnComplete:   func() { m.post(CompleteRender, nil, false) },
		OnCancel:     func() { m.post(CancelRender, nil, false) },
		OnFail:       func(err error) { m.post(CancelRender, err, false) },
	})

	m.started = true
	m.setState(InvokeRender)
	logging.Logger().Info("capture started",
		"views", s.ViewCount, "frames", s.LastFrame-s.Frame+1,
		"viewSize", fmt.Sprintf("%dx%d", g.ViewWidth, g.ViewHeight))
	return nil
}

// Cancel requests cancellation. It takes effect on the next Tick and is a
// no-op once the session has ended.
func (m *Machine) Cancel() {
	m.cancel.Store(true)
}

// post hands a state request to the tick goroutine. With wait set it
// blocks until the tick has processed the request or the session ended.
func (m *Machine) post(state State, err error, wait bool) {
	req := request{state: state, err: err}
	if wait {
		req.ack = make(chan struct{})
	}
	select {
	case m.requests <- req:
	case <-m.done:
		return
	}
	if wait {
		select {
		case <-req.ack:
		case <-m.done:
		}
	}
}

func (m *Machine) setState(s State) {
	if m.state != s {
		logging.Logger().Debug("capture state", "from", m.state, "to", s)
	}
	m.state = s
}

// Tick advances the machine by at most one step and returns the session
// status.
func (m *Machine) Tick() Status {
	select {
	case <-m.done:
		return m.result.Status
	default:
	}
	if !m.started {
		return Running
	}

	if m.cancel.Load() {
		m.setState(CancelRender)
		m.finish(Cancelled, ErrCancelled)
		return m.result.Status
	}

	switch m.state {
	case InvokeRender:
		m.invoke()
	case Idle, InitRender:
		select {
		case req := <-m.requests:
			m.handle(req)
		default:
		}
	}
	return m.Result().Status
}

// invoke starts the render of the current view.
func (m *Machine) invoke() {
	s := m.session
	m.setState(InitRender)
	writeTo := m.scene.RenderSettings().FilePath
	if err := m.renderer.RenderView(s.Frame, s.Subframe, writeTo); err != nil {
		m.fail(fmt.Errorf("%w: view %d: %v", ErrRenderFailed, s.View, err))
	}
}

// handle runs the step a callback asked for.
func (m *Machine) handle(req request) {
	if req.ack != nil {
		defer close(req.ack)
	}

	// a host that skips the init callback still needs the init step
	if m.state == InitRender && req.state != InitRender && req.state != CancelRender {
		if err := m.initRender(); err != nil {
			m.fail(err)
			return
		}
	}

	m.setState(req.state)
	var err error
	switch req.state {
	case InitRender:
		err = m.initRender()
	case PreRender:
		err = m.preRender()
	case PostRender:
		err = m.postRender()
	case CompleteRender:
		err = m.completeRender()
	case CancelRender:
		if req.err != nil {
			m.fail(fmt.Errorf("%w: %v", ErrRenderFailed, req.err))
		} else {
			m.finish(Cancelled, ErrCancelled)
		}
		return
	}

	if err != nil {
		m.fail(err)
		return
	}
	if m.state != InvokeRender && m.Result().Status == Running {
		m.setState(Idle)
	}
}

// initRender snapshots the frame's camera and resolves the output path.
func (m *Machine) initRender() error {
	s := m.session
	if s.View == 0 {
		m.scene.SetFrame(s.Frame, s.Subframe)
		cam, err := m.scene.Camera()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoCamera, err)
		}
		s.FrameCamera = cam

		settings := m.scene.RenderSettings()
		path, err := ResolveOutputPath(s.Original.Settings.FilePath, settings.FileExtension, s.Frame, m.params.Animation)
		if err != nil {
			return err
		}
		s.QuiltPath = path
	}
	s.ViewPath = ViewPath(s.QuiltPath, s.View)
	return nil
}

// preRender places the camera for the current view.
func (m *Machine) preRender() error {
	s := m.session
	m.scene.SetFrame(s.Frame, s.Subframe)
	s.Subframe = m.scene.Subframe()

	settings := m.scene.RenderSettings()
	cam := s.FrameCamera
	tr, err := reprojection.ComputeViewTransform(cam.Pose, cam.ShiftX, reprojection.Params{
		ViewIndex:      s.View,
		ViewCount:      s.ViewCount,
		CameraDistance: m.params.FocalPlane,
		FieldOfView:    cam.FieldOfView,
		ViewCone:       m.params.Calibration.ViewCone,
		ViewWidth:      settings.ResolutionX,
		ViewHeight:     settings.ResolutionY,
		PixelAspectX:   settings.PixelAspectX,
		PixelAspectY:   settings.PixelAspectY,
	})
	if err != nil {
		return fmt.Errorf("view %d: %w", s.View, err)
	}

	cam.Pose = cam.Pose.WithLocation(tr.Location)
	cam.ShiftX = tr.ShiftX
	m.scene.SetCamera(cam)

	logging.Logger().Debug("view prepared",
		"frame", s.Frame, "subframe", s.Subframe, "view", s.View,
		"offset", tr.Offset, "shiftX", tr.ShiftX, "path", s.ViewPath)
	return nil
}

// postRender stores the rendered view, reloads it and keeps its pixels.
func (m *Machine) postRender() error {
	s := m.session
	buf, err := m.renderer.Result()
	if err != nil {
		return fmt.Errorf("%w: view %d: %v", ErrRenderFailed, s.View, err)
	}
	g := m.params.Quilt
	if buf == nil || buf.Width != g.ViewWidth || buf.Height != g.ViewHeight {
		return fmt.Errorf("%w: view %d rendered with the wrong size", quilt.ErrShapeMismatch, s.View)
	}

	if err := m.images.Save(s.ViewPath, buf); err != nil {
		return fmt.Errorf("failed to save view %d: %w", s.View, err)
	}
	view, err := m.images.Load(s.ViewPath)
	if err != nil {
		return fmt.Errorf("failed to reload view %d: %w", s.View, err)
	}
	s.Views = append(s.Views, view)
	if err := m.images.Release(s.ViewPath); err != nil {
		logging.Logger().Warn("failed to release view image", "path", s.ViewPath, "err", err)
	}
	return nil
}

// completeRender advances to the next view or frame, assembling the quilt
// after the last view.
func (m *Machine) completeRender() error {
	s := m.session
	if len(s.Views) != s.View+1 {
		return fmt.Errorf("%w: view %d completed with %d views captured", ErrRenderFailed, s.View, len(s.Views))
	}
	m.result.Views++
	logging.Logger().Info("view rendered", "frame", s.Frame, "view", s.View, "of", s.ViewCount)

	if s.View < s.ViewCount-1 {
		s.View++
		m.setState(InvokeRender)
		return nil
	}

	if err := m.writeQuilt(); err != nil {
		return err
	}

	if !m.params.Animation || s.Frame >= s.LastFrame {
		m.finish(Finished, nil)
		return nil
	}

	m.scene.SetCamera(s.FrameCamera)
	s.View = 0
	s.Frame++
	s.Subframe = 0
	m.setState(InvokeRender)
	return nil
}

// writeQuilt assembles and saves the quilt of the current frame.
func (m *Machine) writeQuilt() error {
	s := m.session
	q, err := quilt.AssembleGeometry(s.Views, m.params.Quilt)
	if err != nil {
		return err
	}
	s.Views = nil

	if err := m.images.Save(s.QuiltPath, q); err != nil {
		return fmt.Errorf("failed to save quilt: %w", err)
	}
	m.result.Quilts = append(m.result.Quilts, s.QuiltPath)
	logging.Logger().Info("quilt saved", "frame", s.Frame, "path", s.QuiltPath,
		"size", fmt.Sprintf("%dx%d", q.Width, q.Height))

	stats, err := quilt.Stats(q, m.params.Quilt)
	if err != nil {
		logging.Logger().Warn("failed to compute quilt stats", "err", err)
		return nil
	}
	for _, st := range stats {
		logging.Logger().Debug("view stats", "frame", s.Frame, "view", st.View,
			"mean", st.Mean, "stddev", st.StdDev, "detail", st.Detail)
		if st.Blank() {
			logging.Logger().Warn("blank view in quilt", "frame", s.Frame, "view", st.View, "mean", st.Mean)
		}
	}
	return nil
}

func (m *Machine) fail(err error) {
	m.setState(CancelRender)
	m.finish(Failed, err)
}

// finish tears the session down exactly once: it detaches the callbacks,
// drops buffered views and restores the camera, frame and render settings.
func (m *Machine) finish(status Status, err error) {
	m.teardown.Do(func() {
		if m.detach != nil {
			m.detach()
		}

		s := m.session
		s.Views = nil
		m.scene.SetCamera(s.Original.Camera)
		m.scene.SetRenderSettings(s.Original.Settings)
		m.scene.SetFrame(s.Original.Frame, 0)

		m.result.Status = status
		m.result.Err = err
		if status == Finished {
			m.setState(CompleteRender)
		}
		close(m.done)

		switch status {
		case Finished:
			logging.Logger().Info("capture finished", "quilts", len(m.result.Quilts), "views", m.result.Views)
		case Cancelled:
			logging.Logger().Warn("capture cancelled", "frame", s.Frame, "view", s.View)
		default:
			logging.Logger().Warn("capture failed", "frame", s.Frame, "view", s.View, "err", err)
		}
	})
}

// Run starts the session and ticks it until it ends or ctx is done.
// Cancelling ctx cancels the session. The returned error is Result.Err.
func (m *Machine) Run(ctx context.Context) (Result, error) {
	if err := m.Start(); err != nil {
		return Result{Status: Failed, Err: err}, err
	}

	interval := m.params.TickInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Cancel()
			m.Tick()
		case <-ticker.C:
			m.Tick()
		}
		select {
		case <-m.done:
			return m.result, m.result.Err
		default:
		}
	}
}
