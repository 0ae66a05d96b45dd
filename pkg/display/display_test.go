package display

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holoquilt/internal/models"
	"holoquilt/pkg/quilt"
)

func testSetup() (*models.PixelBuffer, models.Calibration, models.QuiltGeometry) {
	g := models.QuiltGeometry{
		Columns:     2,
		Rows:        2,
		ViewWidth:   4,
		ViewHeight:  4,
		ViewPortion: [2]float64{1, 1},
	}
	q := models.NewPixelBuffer(g.Width(), g.Height())
	q.Fill([4]uint8{10, 20, 30, 255})
	cal := models.Calibration{
		WinX: 1920, WinY: 0,
		ScreenW: 1536, ScreenH: 2048,
		Pitch:         47.6,
		Tilt:          -0.11,
		DisplayAspect: 0.75,
		Bi:            2,
	}
	return q, cal, g
}

func TestScreenRect(t *testing.T) {
	_, cal, _ := testSetup()

	assert.Equal(t, Rect{X: 1920, Y: 0, Width: 1536, Height: 2048}, ScreenRect(cal, Options{}))
	assert.Equal(t, Rect{X: 1920, Y: 0, Width: 768, Height: 1024}, ScreenRect(cal, Options{Width: 768, Height: 1024}))
	assert.Equal(t, 1536, ScreenRect(cal, Options{Width: 768}).Width)
}

func TestScene(t *testing.T) {
	q, cal, g := testSetup()
	s, err := NewScene(q, cal, g, false)
	require.NoError(t, err)

	got, v1 := s.Quilt()
	assert.Same(t, q, got)

	assert.True(t, s.ToggleDebug())
	assert.True(t, s.Debug())
	assert.Equal(t, float32(1), s.Uniforms(10, 10)["Debug"])
	assert.False(t, s.ToggleDebug())

	next := q.Clone()
	require.NoError(t, s.SetQuilt(next))
	got, v2 := s.Quilt()
	assert.Same(t, next, got)
	assert.Greater(t, v2, v1)

	assert.Error(t, s.SetQuilt(nil))

	bad := cal
	bad.DisplayAspect = 0
	_, err = NewScene(q, bad, g, false)
	assert.Error(t, err)
}

func TestSnapshotDebug(t *testing.T) {
	q, cal, g := testSetup()
	s, err := NewScene(q, cal, g, true)
	require.NoError(t, err)

	// the scene alone carries the starting debug state
	assert.True(t, s.Debug())
	assert.Equal(t, float32(1), s.Uniforms(q.Width, q.Height)["Debug"])

	out, err := s.Snapshot(q.Width, q.Height)
	require.NoError(t, err)
	assert.Equal(t, q.Pix, out.Pix)
}

func TestSnapshotPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "quilt_lightfield.png"), SnapshotPath(filepath.Join("out", "quilt.png")))
	assert.Equal(t, "quilt_lightfield.tif", SnapshotPath("quilt.tif"))
	assert.Equal(t, "quilt_lightfield.png", SnapshotPath("quilt"))
}

func TestReload(t *testing.T) {
	q, cal, g := testSetup()
	s, err := NewScene(q, cal, g, false)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "quilt.png")
	s.Reload(path)
	got, _ := s.Quilt()
	assert.Same(t, q, got, "a missing file keeps the old quilt")

	next := q.Clone()
	next.Fill([4]uint8{200, 100, 50, 255})
	require.NoError(t, quilt.Save(path, next))
	s.Reload(path)
	got, _ = s.Quilt()
	assert.Equal(t, next.Pix, got.Pix)
}

func TestWatcher(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file watcher test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "quilt.png")
	q, _, _ := testSetup()
	require.NoError(t, quilt.Save(path, q))

	changed := make(chan string, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func(p string) { changed <- p })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go w.Run(ctx)

	// unrelated files are ignored
	require.NoError(t, quilt.Save(filepath.Join(dir, "other.png"), q))
	require.NoError(t, quilt.Save(path, q))

	select {
	case p := <-changed:
		abs, _ := filepath.Abs(path)
		assert.Equal(t, abs, p)
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for change notification")
	}

	select {
	case p := <-changed:
		t.Errorf("Unexpected second notification for %s", p)
	case <-time.After(100 * time.Millisecond):
	}
}
