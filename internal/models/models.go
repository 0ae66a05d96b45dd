package models

import (
	"fmt"
)

// Calibration holds the optical parameters of a single lightfield display
// as reported by the device service. It is read-only once fetched.
type Calibration struct {
	// Index is the device index the values were fetched for
	Index int

	// HDMIName and Type identify the device
	HDMIName string
	Type     string

	// WinX, WinY are the screen position of the display's window
	WinX, WinY int

	// ScreenW, ScreenH are the native panel resolution in pixels
	ScreenW, ScreenH int

	// Pitch is the lenticular pitch in lenticules per screen width
	Pitch float64

	// Tilt is the slope of the lenticular sheet
	Tilt float64

	// Center is the phase offset of the lenticular sheet
	Center float64

	// Subp is the horizontal offset between neighbouring color subpixels
	Subp float64

	// Fringe is the fringe correction value
	Fringe float64

	// DisplayAspect is the width/height ratio of the panel
	DisplayAspect float64

	// ViewCone is the angular range covered by all views, in degrees
	ViewCone float64

	// InvView flips the sweep direction of the views
	InvView bool

	// Ri and Bi are the channel indices the red and blue output
	// channels are sampled from
	Ri, Bi int
}

// QuiltGeometry describes how views are tiled into a quilt.
type QuiltGeometry struct {
	// Columns and Rows of the tile grid
	Columns int `yaml:"columns"`
	Rows    int `yaml:"rows"`

	// ViewWidth and ViewHeight are the pixel size of one tile
	ViewWidth  int `yaml:"viewWidth"`
	ViewHeight int `yaml:"viewHeight"`

	// ViewPortion is the used fraction of the quilt texture along x and y.
	// It is below 1 when the quilt is padded to a larger texture.
	ViewPortion [2]float64 `yaml:"viewPortion"`

	// Aspect is the aspect ratio of a single view. Zero means
	// ViewWidth/ViewHeight.
	Aspect float64 `yaml:"aspect"`

	// Overscan swaps the axis the aspect correction is applied to
	Overscan bool `yaml:"overscan"`

	// Invert flips the view order of the quilt
	Invert bool `yaml:"invert"`
}

// TotalViews returns the number of tiles in the quilt.
func (g QuiltGeometry) TotalViews() int {
	return g.Columns * g.Rows
}

// QuiltAspect returns the aspect ratio of a single view.
func (g QuiltGeometry) QuiltAspect() float64 {
	if g.Aspect > 0 {
		return g.Aspect
	}
	if g.ViewHeight == 0 {
		return 1
	}
	return float64(g.ViewWidth) / float64(g.ViewHeight)
}

// Width returns the pixel width of the assembled quilt.
func (g QuiltGeometry) Width() int { return g.ViewWidth * g.Columns }

// Height returns the pixel height of the assembled quilt.
func (g QuiltGeometry) Height() int { return g.ViewHeight * g.Rows }

// TileIndex returns the view index stored at the given tile.
func (g QuiltGeometry) TileIndex(row, column int) int {
	return row*g.Columns + column
}

// Validate checks the geometry for usable values.
func (g QuiltGeometry) Validate() error {
	if g.Columns <= 0 || g.Rows <= 0 {
		return fmt.Errorf("invalid quilt grid %dx%d", g.Columns, g.Rows)
	}
	if g.ViewWidth <= 0 || g.ViewHeight <= 0 {
		return fmt.Errorf("invalid view size %dx%d", g.ViewWidth, g.ViewHeight)
	}
	for _, p := range g.ViewPortion {
		if p <= 0 || p > 1 {
			return fmt.Errorf("view portion %v out of range (0, 1]", g.ViewPortion)
		}
	}
	return nil
}

// PixelBuffer is a flat 8-bit RGBA raster. Rows are stored bottom-up:
// row 0 is the bottom scanline, matching GL texture coordinates.
type PixelBuffer struct {
	Width  int
	Height int

	// Pix holds 4 samples per pixel in R, G, B, A order
	Pix []uint8
}

// NewPixelBuffer allocates a zeroed buffer.
func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}
}

// Stride returns the number of samples in one row.
func (b *PixelBuffer) Stride() int { return b.Width * 4 }

// Offset returns the index of the first sample of pixel (x, y).
func (b *PixelBuffer) Offset(x, y int) int {
	return y*b.Stride() + x*4
}

// At returns the RGBA samples of pixel (x, y). Out-of-range pixels
// are transparent black.
func (b *PixelBuffer) At(x, y int) [4]uint8 {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height {
		return [4]uint8{}
	}
	i := b.Offset(x, y)
	return [4]uint8{b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]}
}

// Set writes pixel (x, y), ignoring out-of-range coordinates.
func (b *PixelBuffer) Set(x, y int, c [4]uint8) {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height {
		return
	}
	i := b.Offset(x, y)
	copy(b.Pix[i:i+4], c[:])
}

// Fill sets every pixel to c.
func (b *PixelBuffer) Fill(c [4]uint8) {
	for i := 0; i < len(b.Pix); i += 4 {
		copy(b.Pix[i:i+4], c[:])
	}
}

// Clone returns a deep copy.
func (b *PixelBuffer) Clone() *PixelBuffer {
	c := &PixelBuffer{Width: b.Width, Height: b.Height, Pix: make([]uint8, len(b.Pix))}
	copy(c.Pix, b.Pix)
	return c
}

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v-o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v*s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// CameraPose is the world transform of a camera object.
type CameraPose struct {
	// World is the row-major 4x4 object-to-world matrix, including
	// translation and object scale
	World [16]float64

	// Scale is the object scale baked into World
	Scale Vec3
}

// Location returns the translation part of the pose.
func (p CameraPose) Location() Vec3 {
	return Vec3{p.World[3], p.World[7], p.World[11]}
}

// WithLocation returns a copy of the pose translated to loc.
func (p CameraPose) WithLocation(loc Vec3) CameraPose {
	p.World[3], p.World[7], p.World[11] = loc.X, loc.Y, loc.Z
	return p
}

// IdentityPose returns an unscaled camera at loc looking down -Z.
func IdentityPose(loc Vec3) CameraPose {
	return CameraPose{
		World: [16]float64{
			1, 0, 0, loc.X,
			0, 1, 0, loc.Y,
			0, 0, 1, loc.Z,
			0, 0, 0, 1,
		},
		Scale: Vec3{1, 1, 1},
	}
}

// SensorFit selects which sensor dimension the field of view refers to.
type SensorFit int

const (
	SensorFitAuto SensorFit = iota
	SensorFitHorizontal
	SensorFitVertical
)

// Camera is the mutable camera state the capture session drives and
// restores.
type Camera struct {
	Pose CameraPose

	// ShiftX is the horizontal lens shift, relative to the sensor half-width
	ShiftX float64

	SensorFit SensorFit

	// FieldOfView is the camera angle in radians
	FieldOfView float64
}

// RenderSettings is the subset of the host's output settings a capture
// session overrides and restores.
type RenderSettings struct {
	ResolutionX  int
	ResolutionY  int
	PixelAspectX float64
	PixelAspectY float64

	// FilePath is the user's output path or path template
	FilePath string

	// FileExtension includes the leading dot, e.g. ".png"
	FileExtension string
}
