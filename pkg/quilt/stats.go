package quilt

import (
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"holoquilt/internal/models"
)

// blankStdDev is the luminance deviation below which a view counts as blank.
const blankStdDev = 1.0 / 512

// TileStats summarizes the luminance of one view.
type TileStats struct {
	View   int
	Mean   float64
	StdDev float64

	// Detail is the share of horizontal spectral energy above half the
	// Nyquist frequency, in [0, 1]. Flat or blurred views score near 0.
	Detail float64
}

// Blank reports whether the view is a single flat color, which usually
// means the render produced nothing.
func (s TileStats) Blank() bool {
	return s.StdDev < blankStdDev
}

// Stats computes per-view luminance statistics of an assembled quilt,
// in view order.
func Stats(quilt *models.PixelBuffer, g models.QuiltGeometry) ([]TileStats, error) {
	splitter, err := NewSplitter(quilt, g)
	if err != nil {
		return nil, err
	}

	out := make([]TileStats, 0, g.TotalViews())
	luma := make([]float64, g.ViewWidth*g.ViewHeight)
	fft := fourier.NewFFT(g.ViewWidth)
	coeff := make([]complex128, g.ViewWidth/2+1)

	for i := 0; i < g.TotalViews(); i++ {
		view, err := splitter.ExtractView(i)
		if err != nil {
			return nil, err
		}
		for p := range luma {
			r, gr, b := view.Pix[p*4], view.Pix[p*4+1], view.Pix[p*4+2]
			luma[p] = (0.2126*float64(r) + 0.7152*float64(gr) + 0.0722*float64(b)) / 255
		}
		mean, std := stat.MeanStdDev(luma, nil)
		out = append(out, TileStats{
			View:   i,
			Mean:   mean,
			StdDev: std,
			Detail: detail(luma, g.ViewWidth, g.ViewHeight, fft, coeff),
		})
	}
	return out, nil
}

// detail transforms every row of a luminance image and returns the share
// of AC energy at or above half the Nyquist frequency.
func detail(luma []float64, width, height int, fft *fourier.FFT, coeff []complex128) float64 {
	var high, total float64
	for y := 0; y < height; y++ {
		fft.Coefficients(coeff, luma[y*width:(y+1)*width])
		for k := 1; k < len(coeff); k++ {
			e := real(coeff[k])*real(coeff[k]) + imag(coeff[k])*imag(coeff[k])
			total += e
			if 4*k >= width {
				high += e
			}
		}
	}
	if total < 1e-12 {
		return 0
	}
	return high / total
}
