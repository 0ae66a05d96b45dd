package scene

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holoquilt/internal/models"
	"holoquilt/pkg/capture"
	"holoquilt/pkg/quilt"
	"holoquilt/pkg/reprojection"
)

// events collects callback names in order.
type events struct {
	mu    sync.Mutex
	names []string
	done  chan struct{}
}

func newEvents() *events {
	return &events{done: make(chan struct{}, 1)}
}

func (e *events) add(name string, final bool) {
	e.mu.Lock()
	e.names = append(e.names, name)
	e.mu.Unlock()
	if final {
		e.done <- struct{}{}
	}
}

func (e *events) callbacks() capture.Callbacks {
	return capture.Callbacks{
		OnInit:       func() { e.add("init", false) },
		OnPreRender:  func() { e.add("pre", false) },
		OnPostRender: func() { e.add("post", false) },
		OnComplete:   func() { e.add("complete", true) },
		OnCancel:     func() { e.add("cancel", true) },
		OnFail:       func(err error) { e.add("fail", true) },
	}
}

func (e *events) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for render")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.names...)
}

func smallScene() *Scene {
	s := Demo(5, 0.6, 1)
	s.SetRenderSettings(models.RenderSettings{
		ResolutionX:  40,
		ResolutionY:  30,
		PixelAspectX: 1,
		PixelAspectY: 1,
	})
	return s
}

func TestRenderView(t *testing.T) {
	s := smallScene()
	ev := newEvents()
	detach := s.Subscribe(ev.callbacks())
	defer detach()

	require.NoError(t, s.RenderView(1, 0, ""))
	assert.Equal(t, []string{"init", "pre", "post", "complete"}, ev.wait(t))
	assert.Equal(t, 1, s.Renders())

	buf, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, 40, buf.Width)
	assert.Equal(t, 30, buf.Height)

	// the red sphere fills the middle of the frame
	c := buf.At(20, 15)
	assert.Greater(t, c[0], c[1])
	assert.Greater(t, c[0], c[2])
	assert.Equal(t, uint8(255), c[3])

	// the corners show the sky
	corner := buf.At(0, 0)
	assert.Greater(t, corner[2], corner[0])
}

func TestRenderCancel(t *testing.T) {
	s := smallScene()
	ev := newEvents()
	cb := ev.callbacks()
	cancelOnce := true
	cb.OnPreRender = func() {
		ev.add("pre", false)
		if cancelOnce {
			cancelOnce = false
			s.Cancel()
		}
	}
	s.Subscribe(cb)

	require.NoError(t, s.RenderView(1, 0, ""))
	assert.Equal(t, []string{"init", "pre", "cancel"}, ev.wait(t))

	_, err := s.Result()
	assert.Error(t, err)

	// the cancel only applies to one render
	require.NoError(t, s.RenderView(1, 0, ""))
	names := ev.wait(t)
	assert.Equal(t, []string{"init", "pre", "post", "complete"}, names[3:])
}

func TestCancelWhileIdle(t *testing.T) {
	s := smallScene()
	ev := newEvents()
	s.Subscribe(ev.callbacks())

	// nothing is rendering, so the next render is unaffected
	s.Cancel()
	require.NoError(t, s.RenderView(1, 0, ""))
	assert.Equal(t, []string{"init", "pre", "post", "complete"}, ev.wait(t))
}

func TestRenderBusy(t *testing.T) {
	s := smallScene()
	block := make(chan struct{})
	s.Subscribe(capture.Callbacks{OnInit: func() { <-block }})

	require.NoError(t, s.RenderView(1, 0, ""))
	assert.ErrorIs(t, s.RenderView(1, 0, ""), ErrBusy)
	close(block)
}

func TestRenderBadCamera(t *testing.T) {
	s := smallScene()
	ev := newEvents()
	s.Subscribe(ev.callbacks())

	cam, err := s.Camera()
	require.NoError(t, err)
	cam.FieldOfView = math.Pi
	s.SetCamera(cam)

	require.NoError(t, s.RenderView(1, 0, ""))
	assert.Equal(t, []string{"init", "pre", "fail"}, ev.wait(t))
}

func TestFocalPlaneConvergence(t *testing.T) {
	s := smallScene()
	base, err := s.Camera()
	require.NoError(t, err)
	settings := s.RenderSettings()

	const views = 9
	var nearX []float64
	for i := 0; i < views; i++ {
		tr, err := reprojection.ComputeViewTransform(base.Pose, base.ShiftX, reprojection.Params{
			ViewIndex:      i,
			ViewCount:      views,
			CameraDistance: 5,
			FieldOfView:    base.FieldOfView,
			ViewCone:       40,
			ViewWidth:      settings.ResolutionX,
			ViewHeight:     settings.ResolutionY,
			PixelAspectX:   1,
			PixelAspectY:   1,
		})
		require.NoError(t, err)

		cam := base
		cam.Pose = cam.Pose.WithLocation(tr.Location)
		cam.ShiftX = tr.ShiftX

		// points on the focal plane stay put
		x, y, ok := Project(models.Vec3{X: 0.3, Y: -0.2}, cam, settings)
		require.True(t, ok)
		x0, y0, _ := Project(models.Vec3{X: 0.3, Y: -0.2}, base, settings)
		assert.InDelta(t, x0, x, 1e-9, "view %d", i)
		assert.InDelta(t, y0, y, 1e-9, "view %d", i)

		// points in front of it move
		x, _, ok = Project(models.Vec3{Z: 1.5}, cam, settings)
		require.True(t, ok)
		nearX = append(nearX, x)
	}

	for i := 1; i < views; i++ {
		assert.Less(t, nearX[i], nearX[i-1], "view %d", i)
	}
}

func TestSceneState(t *testing.T) {
	s := Demo(5, 0.6, 24)
	start, end, current := s.FrameRange()
	assert.Equal(t, 1, start)
	assert.Equal(t, 24, end)
	assert.Equal(t, 1, current)

	s.SetFrame(7, 0.5)
	_, _, current = s.FrameRange()
	assert.Equal(t, 7, current)
	assert.Equal(t, 0.0, s.Subframe())

	s.Subframes = true
	s.SetFrame(8, 0.5)
	assert.Equal(t, 0.5, s.Subframe())

	s.SetOutput("out/quilt", ".tif")
	assert.Equal(t, "out/quilt", s.RenderSettings().FilePath)
	assert.Equal(t, ".tif", s.RenderSettings().FileExtension)

	s.SetCamera(models.Camera{})
	_, err := s.Camera()
	assert.Error(t, err)
}

// memImages keeps images in memory.
type memImages struct {
	mu    sync.Mutex
	files map[string]*models.PixelBuffer
}

func (m *memImages) Save(path string, b *models.PixelBuffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = b.Clone()
	return nil
}

func (m *memImages) Load(path string) (*models.PixelBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: not found", path)
	}
	return b.Clone(), nil
}

func (m *memImages) Release(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func TestCaptureDemoScene(t *testing.T) {
	s := Demo(5, 0.6, 1)
	s.SetOutput("demo", ".png")
	images := &memImages{files: make(map[string]*models.PixelBuffer)}
	g := models.QuiltGeometry{
		Columns:     3,
		Rows:        2,
		ViewWidth:   32,
		ViewHeight:  24,
		ViewPortion: [2]float64{1, 1},
	}

	m := capture.NewMachine(&capture.Params{
		Quilt:        g,
		Calibration:  models.Calibration{DisplayAspect: g.QuiltAspect(), ViewCone: 40},
		FocalPlane:   5,
		TickInterval: time.Millisecond,
	}, s, s, images)

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()
	res, err := m.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"demo.png"}, res.Quilts)
	assert.Equal(t, 6, s.Renders())

	q := images.files["demo.png"]
	require.NotNil(t, q)
	assert.Equal(t, 96, q.Width)
	assert.Equal(t, 48, q.Height)

	splitter, err := quilt.NewSplitter(q, g)
	require.NoError(t, err)
	first, err := splitter.ExtractView(0)
	require.NoError(t, err)
	last, err := splitter.ExtractView(5)
	require.NoError(t, err)
	assert.NotEqual(t, first.Pix, last.Pix, "outer views see different parallax")

	// the sphere on the focal plane stays in the middle of every view
	for i := 0; i < g.TotalViews(); i++ {
		v, err := splitter.ExtractView(i)
		require.NoError(t, err)
		c := v.At(16, 12)
		assert.Greater(t, c[0], c[2], "view %d", i)
	}

	stats, err := quilt.Stats(q, g)
	require.NoError(t, err)
	for _, st := range stats {
		assert.False(t, st.Blank(), "view %d", st.View)
	}

	// the scene got its own settings back
	assert.Equal(t, 512, s.RenderSettings().ResolutionX)
}
