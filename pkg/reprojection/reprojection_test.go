package reprojection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holoquilt/internal/models"
)

const eps = 1e-9

func baseParams(view, count int) Params {
	return Params{
		ViewIndex:      view,
		ViewCount:      count,
		CameraDistance: 5,
		FieldOfView:    14 * math.Pi / 180,
		ViewCone:       40,
		ViewWidth:      819,
		ViewHeight:     455,
		PixelAspectX:   1,
		PixelAspectY:   1,
	}
}

// rotatedPose returns a camera at loc rotated by yaw around Z and scaled.
func rotatedPose(loc models.Vec3, yaw float64, scale models.Vec3) models.CameraPose {
	c, s := math.Cos(yaw), math.Sin(yaw)
	return models.CameraPose{
		World: [16]float64{
			c * scale.X, -s * scale.Y, 0, loc.X,
			s * scale.X, c * scale.Y, 0, loc.Y,
			0, 0, scale.Z, loc.Z,
			0, 0, 0, 1,
		},
		Scale: scale,
	}
}

func TestOffsetAngleSweep(t *testing.T) {
	for _, count := range []int{2, 9, 45, 48, 100} {
		first := OffsetAngle(0, count, 40)
		last := OffsetAngle(count-1, count, 40)

		assert.InDelta(t, 20*math.Pi/180, first, eps, "count %d", count)
		assert.InDelta(t, -first, last, eps, "count %d", count)
	}
}

func TestOffsetAngleCenterView(t *testing.T) {
	// odd view count: the middle view looks straight ahead
	assert.InDelta(t, 0, OffsetAngle(22, 45, 40), eps)

	// even view count: the two middle views are symmetric
	a := OffsetAngle(23, 48, 40)
	b := OffsetAngle(24, 48, 40)
	assert.InDelta(t, -a, b, eps)
}

func TestOffsetAngleUsesViewCount(t *testing.T) {
	// a 48 view quilt must reach the end of the cone on view 47,
	// not on view 44
	assert.InDelta(t, -20*math.Pi/180, OffsetAngle(47, 48, 40), eps)
	assert.Greater(t, OffsetAngle(44, 48, 40), -20*math.Pi/180)
}

func TestComputeViewTransformPure(t *testing.T) {
	pose := rotatedPose(models.Vec3{X: 1, Y: -2, Z: 3}, 0.3, models.Vec3{X: 2, Y: 2, Z: 2})
	for view := 0; view < 45; view++ {
		a, err := ComputeViewTransform(pose, 0.1, baseParams(view, 45))
		require.NoError(t, err)
		b, err := ComputeViewTransform(pose, 0.1, baseParams(view, 45))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestComputeViewTransformIdentityCamera(t *testing.T) {
	pose := models.IdentityPose(models.Vec3{X: 0, Y: 0, Z: 10})
	p := baseParams(0, 45)

	tr, err := ComputeViewTransform(pose, 0, p)
	require.NoError(t, err)

	wantOffset := 5 * math.Tan(20*math.Pi/180)
	assert.InDelta(t, wantOffset, tr.Offset, eps)

	// the camera moves along -X in its local frame
	assert.InDelta(t, -wantOffset, tr.Location.X, eps)
	assert.InDelta(t, 0, tr.Location.Y, eps)
	assert.InDelta(t, 10, tr.Location.Z, eps)
	assert.InDelta(t, -wantOffset, tr.PositionOffset.X, eps)

	cameraSize := 5 * math.Tan(7*math.Pi/180)
	aspect := 819.0 / 455.0
	assert.InDelta(t, wantOffset/(cameraSize*aspect), tr.ShiftX, eps)
}

func TestComputeViewTransformLocalAxis(t *testing.T) {
	// a camera yawed 90 degrees has its local X axis along world +Y
	loc := models.Vec3{X: 3, Y: 4, Z: 5}
	pose := rotatedPose(loc, math.Pi/2, models.Vec3{X: 1, Y: 1, Z: 1})

	tr, err := ComputeViewTransform(pose, 0, baseParams(0, 45))
	require.NoError(t, err)

	assert.InDelta(t, loc.X, tr.Location.X, 1e-9)
	assert.InDelta(t, loc.Y-tr.Offset, tr.Location.Y, 1e-9)
	assert.InDelta(t, loc.Z, tr.Location.Z, 1e-9)
}

func TestComputeViewTransformIgnoresObjectScale(t *testing.T) {
	loc := models.Vec3{X: 1, Y: 1, Z: 1}
	unit, err := ComputeViewTransform(rotatedPose(loc, 0.7, models.Vec3{X: 1, Y: 1, Z: 1}), 0, baseParams(5, 45))
	require.NoError(t, err)
	scaled, err := ComputeViewTransform(rotatedPose(loc, 0.7, models.Vec3{X: 3, Y: 0.5, Z: 2}), 0, baseParams(5, 45))
	require.NoError(t, err)

	assert.InDelta(t, unit.Location.X, scaled.Location.X, 1e-9)
	assert.InDelta(t, unit.Location.Y, scaled.Location.Y, 1e-9)
	assert.InDelta(t, unit.Location.Z, scaled.Location.Z, 1e-9)
}

func TestComputeViewTransformPixelAspect(t *testing.T) {
	pose := models.IdentityPose(models.Vec3{})
	p := baseParams(0, 45)
	square, err := ComputeViewTransform(pose, 0, p)
	require.NoError(t, err)

	p.PixelAspectX = 2
	wide, err := ComputeViewTransform(pose, 0, p)
	require.NoError(t, err)

	assert.InDelta(t, square.ShiftX/2, wide.ShiftX, eps)
	assert.Equal(t, square.Location, wide.Location)
}

func TestComputeViewTransformSymmetry(t *testing.T) {
	pose := models.IdentityPose(models.Vec3{})
	first, err := ComputeViewTransform(pose, 0.25, baseParams(0, 45))
	require.NoError(t, err)
	last, err := ComputeViewTransform(pose, 0.25, baseParams(44, 45))
	require.NoError(t, err)
	center, err := ComputeViewTransform(pose, 0.25, baseParams(22, 45))
	require.NoError(t, err)

	assert.InDelta(t, -first.Offset, last.Offset, eps)
	assert.InDelta(t, 0.5, first.ShiftX+last.ShiftX, eps)
	assert.InDelta(t, 0.25, center.ShiftX, eps)
}

func TestComputeViewTransformInvalid(t *testing.T) {
	pose := models.IdentityPose(models.Vec3{})
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative view", func(p *Params) { p.ViewIndex = -1 }},
		{"view past end", func(p *Params) { p.ViewIndex = 45 }},
		{"no views", func(p *Params) { p.ViewCount = 0 }},
		{"zero fov", func(p *Params) { p.FieldOfView = 0 }},
		{"zero distance", func(p *Params) { p.CameraDistance = 0 }},
		{"zero height", func(p *Params) { p.ViewHeight = 0 }},
		{"zero pixel aspect", func(p *Params) { p.PixelAspectY = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams(0, 45)
			tt.mutate(&p)
			_, err := ComputeViewTransform(pose, 0, p)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}

	zeroScale := pose
	zeroScale.Scale = models.Vec3{X: 1, Y: 0, Z: 1}
	_, err := ComputeViewTransform(zeroScale, 0, baseParams(0, 45))
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestSingleView(t *testing.T) {
	tr, err := ComputeViewTransform(models.IdentityPose(models.Vec3{Z: 2}), 0.1, baseParams(0, 1))
	require.NoError(t, err)
	assert.Zero(t, tr.Offset)
	assert.Equal(t, 0.1, tr.ShiftX)
}
