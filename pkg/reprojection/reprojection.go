// Package reprojection computes the per-view camera placement used to
// capture a quilt. Views sweep the camera horizontally across the device's
// view cone while shifting the projection so all views converge on the
// focal plane.
package reprojection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"holoquilt/internal/models"
)

// ErrInvalidParams is returned for parameters that cannot produce a view.
var ErrInvalidParams = errors.New("invalid reprojection parameters")

// Params holds the inputs of a single view's reprojection.
type Params struct {
	// ViewIndex is the view being placed, in [0, ViewCount)
	ViewIndex int

	// ViewCount is the total number of views in the quilt
	ViewCount int

	// CameraDistance is the distance from the camera to the focal plane
	CameraDistance float64

	// FieldOfView is the camera angle in radians
	FieldOfView float64

	// ViewCone is the angle swept by all views, in degrees
	ViewCone float64

	// ViewWidth and ViewHeight are the render resolution of one view
	ViewWidth  int
	ViewHeight int

	// PixelAspectX and PixelAspectY are the render pixel aspect
	PixelAspectX float64
	PixelAspectY float64
}

// Transform is the camera placement for one view.
type Transform struct {
	// Angle is the view's angle within the view cone, in radians
	Angle float64

	// Offset is the signed distance the camera moves along its local X axis
	Offset float64

	// Location is the new world-space camera position
	Location models.Vec3

	// PositionOffset is Location minus the base location
	PositionOffset models.Vec3

	// ShiftX is the new horizontal projection shift
	ShiftX float64
}

// OffsetAngle returns the angle of a view within the view cone. View 0 is
// at +viewCone/2 and the last view at -viewCone/2.
func OffsetAngle(viewIndex, viewCount int, viewCone float64) float64 {
	if viewCount < 2 {
		return 0
	}
	t := float64(viewIndex) / float64(viewCount-1)
	return (0.5 - t) * viewCone * math.Pi / 180
}

// Validate reports parameters that cannot produce a view.
func (p Params) Validate() error {
	switch {
	case p.ViewCount < 1:
		return fmt.Errorf("%w: view count %d", ErrInvalidParams, p.ViewCount)
	case p.ViewIndex < 0 || p.ViewIndex >= p.ViewCount:
		return fmt.Errorf("%w: view %d of %d", ErrInvalidParams, p.ViewIndex, p.ViewCount)
	case p.FieldOfView <= 0 || p.FieldOfView >= math.Pi:
		return fmt.Errorf("%w: field of view %g", ErrInvalidParams, p.FieldOfView)
	case p.CameraDistance <= 0:
		return fmt.Errorf("%w: camera distance %g", ErrInvalidParams, p.CameraDistance)
	case p.ViewWidth <= 0 || p.ViewHeight <= 0:
		return fmt.Errorf("%w: view size %dx%d", ErrInvalidParams, p.ViewWidth, p.ViewHeight)
	case p.PixelAspectX <= 0 || p.PixelAspectY <= 0:
		return fmt.Errorf("%w: pixel aspect %gx%g", ErrInvalidParams, p.PixelAspectX, p.PixelAspectY)
	}
	return nil
}

// ComputeViewTransform places the camera for one view. The offset is
// applied in the camera's local space, with the object scale removed, and
// mapped back to world space through the camera's own transform. It has no
// side effects.
func ComputeViewTransform(base models.CameraPose, baseShiftX float64, p Params) (Transform, error) {
	if err := p.Validate(); err != nil {
		return Transform{}, err
	}

	view, err := unscaledView(base)
	if err != nil {
		return Transform{}, err
	}
	var inv mat.Dense
	if err := inv.Inverse(view); err != nil {
		return Transform{}, fmt.Errorf("%w: camera matrix not invertible: %v", ErrInvalidParams, err)
	}

	cameraSize := p.CameraDistance * math.Tan(p.FieldOfView/2)
	angle := OffsetAngle(p.ViewIndex, p.ViewCount, p.ViewCone)
	offset := p.CameraDistance * math.Tan(angle)

	loc := base.Location()
	world := mat.NewVecDense(4, []float64{loc.X, loc.Y, loc.Z, 1})

	var local mat.VecDense
	local.MulVec(&inv, world)
	local.SetVec(0, local.AtVec(0)-offset)

	var moved mat.VecDense
	moved.MulVec(view, &local)
	newLoc := models.Vec3{X: moved.AtVec(0), Y: moved.AtVec(1), Z: moved.AtVec(2)}

	aspect := float64(p.ViewWidth) / float64(p.ViewHeight) * p.PixelAspectX * p.PixelAspectY

	return Transform{
		Angle:          angle,
		Offset:         offset,
		Location:       newLoc,
		PositionOffset: newLoc.Sub(loc),
		ShiftX:         baseShiftX + offset/(cameraSize*aspect),
	}, nil
}

// unscaledView returns the camera's world matrix with its object scale
// divided out.
func unscaledView(pose models.CameraPose) (*mat.Dense, error) {
	s := pose.Scale
	if s.X == 0 || s.Y == 0 || s.Z == 0 {
		return nil, fmt.Errorf("%w: zero camera scale %v", ErrInvalidParams, s)
	}
	data := pose.World
	world := mat.NewDense(4, 4, data[:])
	unscale := mat.NewDiagDense(4, []float64{1 / s.X, 1 / s.Y, 1 / s.Z, 1})

	var view mat.Dense
	view.Mul(world, unscale)
	return &view, nil
}
