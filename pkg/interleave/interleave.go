// Package interleave maps a quilt onto the subpixels of a lenticular
// display.
//
// Every display pixel picks, per color channel, the view whose light the
// lenticular sheet sends through that subpixel. Renderer does this on the
// CPU for offline output and tests; the same math runs on the GPU in the
// Kage shader returned by ShaderSource.
package interleave

import (
	_ "embed"
	"fmt"
	"math"
	"runtime"
	"sync"

	"holoquilt/internal/models"
)

//go:embed lightfield.kage
var shaderSource []byte

// ShaderSource returns the Kage source of the interleaving shader. It uses
// the uniforms returned by Uniforms and samples the quilt as source image 0.
func ShaderSource() []byte {
	return shaderSource
}

// Renderer interleaves a quilt for one calibrated display. It holds no
// state that changes between frames and is safe for concurrent use as long
// as the quilt is not modified.
type Renderer struct {
	quilt *models.PixelBuffer
	cal   models.Calibration
	geo   models.QuiltGeometry

	// invert is -1 when exactly one of the inversion flags is set
	invert float64

	// modx selects horizontal aspect correction
	modx bool

	debug   bool
	workers int
}

// New creates a renderer for the given quilt, calibration and layout.
func New(quilt *models.PixelBuffer, cal models.Calibration, g models.QuiltGeometry) (*Renderer, error) {
	if quilt == nil || quilt.Width <= 0 || quilt.Height <= 0 || len(quilt.Pix) < quilt.Width*quilt.Height*4 {
		return nil, fmt.Errorf("quilt image is empty")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if cal.DisplayAspect <= 0 {
		return nil, fmt.Errorf("invalid display aspect %g", cal.DisplayAspect)
	}
	if cal.Ri < 0 || cal.Ri > 2 || cal.Bi < 0 || cal.Bi > 2 {
		return nil, fmt.Errorf("invalid channel swizzle ri=%d bi=%d", cal.Ri, cal.Bi)
	}

	return &Renderer{
		quilt:   quilt,
		cal:     cal,
		geo:     g,
		invert:  invertSign(cal.InvView, g.Invert),
		modx:    correctsX(cal.DisplayAspect, g.QuiltAspect(), g.Overscan),
		workers: runtime.NumCPU(),
	}, nil
}

func invertSign(invView, quiltInvert bool) float64 {
	if invView != quiltInvert {
		return -1
	}
	return 1
}

// correctsX reports whether the aspect correction scales the horizontal
// axis. A display wider than the views is corrected horizontally unless
// overscan is set, which swaps the axes.
func correctsX(displayAspect, quiltAspect float64, overscan bool) bool {
	wider := displayAspect >= quiltAspect
	narrower := quiltAspect >= displayAspect
	return (wider && !overscan) || (narrower && overscan)
}

// SetDebug toggles passthrough of the raw quilt.
func (r *Renderer) SetDebug(debug bool) { r.debug = debug }

// Debug reports whether passthrough is on.
func (r *Renderer) Debug() bool { return r.debug }

// SetWorkers sets the number of goroutines Render uses.
func (r *Renderer) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	r.workers = n
}

// Quilt returns the quilt being sampled.
func (r *Renderer) Quilt() *models.PixelBuffer { return r.quilt }

// correct applies the aspect correction to the centered coordinates. ok
// is false when the point falls outside the valid quilt region.
func (r *Renderer) correct(u, v float64) (nu, nv float64, ok bool) {
	nu, nv = u-0.5, v-0.5
	da, qa := r.cal.DisplayAspect, r.geo.QuiltAspect()
	if r.modx {
		nu *= da / qa
	} else {
		nv *= qa / da
	}
	nu += 0.5
	nv += 0.5
	if nu < 0 || nv < 0 || 1-nu < 0 || 1-nv < 0 {
		return 0, 0, false
	}
	return nu, nv, true
}

// Phase returns the lenticular phase of color channel i at (u, v), in
// [0, 1) or (-1, 0] when the sweep is inverted.
func (r *Renderer) Phase(u, v float64, channel int) float64 {
	z := (u+float64(channel)*r.cal.Subp+v*r.cal.Tilt)*r.cal.Pitch - r.cal.Center
	z = glslMod(z+math.Ceil(math.Abs(z)), 1)
	return z * r.invert
}

// tileCoord returns the quilt texture coordinate for phase z at the
// corrected position (nu, nv).
func (r *Renderer) tileCoord(z, nu, nv float64) (x, y float64) {
	cols, rows := float64(r.geo.Columns), float64(r.geo.Rows)
	tile := math.Floor(z * float64(r.geo.TotalViews()))
	x = (glslMod(tile, cols) + nu) / cols
	y = (math.Floor(tile/cols) + nv) / rows
	return x * r.geo.ViewPortion[0], y * r.geo.ViewPortion[1]
}

// TileIndices returns the view each color channel samples at (u, v). ok is
// false for clipped pixels.
func (r *Renderer) TileIndices(u, v float64) (views [3]int, ok bool) {
	if _, _, ok = r.correct(u, v); !ok {
		return views, false
	}
	n := float64(r.geo.TotalViews())
	for i := range views {
		tile := math.Floor(r.Phase(u, v, i) * n)
		views[i] = int(glslMod(tile, n))
	}
	return views, true
}

// Sample returns the display color at normalized display coordinates
// (u, v), with v growing upward. ok is false for clipped pixels, which are
// left transparent.
func (r *Renderer) Sample(u, v float64) (c [4]uint8, ok bool) {
	if r.debug {
		return r.texel(u, v), true
	}

	nu, nv, ok := r.correct(u, v)
	if !ok {
		return c, false
	}

	var rgb [3][4]uint8
	for i := range rgb {
		rgb[i] = r.texel(r.tileCoord(r.Phase(u, v, i), nu, nv))
	}
	return [4]uint8{rgb[r.cal.Ri][0], rgb[1][1], rgb[r.cal.Bi][2], 255}, true
}

// texel samples the quilt with nearest filtering and repeat addressing.
func (r *Renderer) texel(x, y float64) [4]uint8 {
	w, h := r.quilt.Width, r.quilt.Height
	px := int(math.Floor(glslMod(x, 1) * float64(w)))
	py := int(math.Floor(glslMod(y, 1) * float64(h)))
	px = min(max(px, 0), w-1)
	py = min(max(py, 0), h-1)
	return r.quilt.At(px, py)
}

// Render interleaves the quilt into a width x height image, sampling at
// pixel centers.
func (r *Renderer) Render(width, height int) (*models.PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", width, height)
	}
	out := models.NewPixelBuffer(width, height)

	var wg sync.WaitGroup
	workers := min(r.workers, height)
	rowsPerWorker := (height + workers - 1) / workers

	for w := 0; w < workers; w++ {
		startRow := w * rowsPerWorker
		endRow := min(startRow+rowsPerWorker, height)
		if startRow >= endRow {
			continue
		}

		wg.Add(1)
		go func(startRow, endRow int) {
			defer wg.Done()
			for y := startRow; y < endRow; y++ {
				v := (float64(y) + 0.5) / float64(height)
				for x := 0; x < width; x++ {
					u := (float64(x) + 0.5) / float64(width)
					if c, ok := r.Sample(u, v); ok {
						out.Set(x, y, c)
					}
				}
			}
		}(startRow, endRow)
	}
	wg.Wait()

	return out, nil
}

// glslMod is x - y*floor(x/y), which unlike math.Mod is never negative
// for positive y.
func glslMod(x, y float64) float64 {
	return x - y*math.Floor(x/y)
}
