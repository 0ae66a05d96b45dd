// Package quilt tiles captured views into a quilt image and back.
//
// Tile (row, column) holds view row*columns+column and occupies buffer
// rows [row*viewHeight, (row+1)*viewHeight). Since pixel buffers are stored
// bottom-up, view 0 ends up in the bottom-left corner of the saved image,
// which is where the interleaver expects it.
package quilt

import (
	"errors"
	"fmt"

	"holoquilt/internal/models"
)

// ErrShapeMismatch is returned when the views do not fit the requested grid.
var ErrShapeMismatch = errors.New("shape mismatch")

// Assemble tiles views into a single quilt buffer of
// (viewWidth*columns) x (viewHeight*rows) pixels. Views are taken in
// row-major order: each row concatenates its columns left to right and the
// rows stack upward from row 0.
func Assemble(views []*models.PixelBuffer, rows, columns, viewWidth, viewHeight int) (*models.PixelBuffer, error) {
	if rows <= 0 || columns <= 0 || viewWidth <= 0 || viewHeight <= 0 {
		return nil, fmt.Errorf("%w: grid %dx%d of %dx%d views", ErrShapeMismatch, columns, rows, viewWidth, viewHeight)
	}
	if len(views) != rows*columns {
		return nil, fmt.Errorf("%w: got %d views for a %dx%d grid", ErrShapeMismatch, len(views), columns, rows)
	}
	for i, v := range views {
		if v == nil {
			return nil, fmt.Errorf("%w: view %d is missing", ErrShapeMismatch, i)
		}
		if v.Width != viewWidth || v.Height != viewHeight || len(v.Pix) != viewWidth*viewHeight*4 {
			return nil, fmt.Errorf("%w: view %d is %dx%d (%d samples), want %dx%d",
				ErrShapeMismatch, i, v.Width, v.Height, len(v.Pix), viewWidth, viewHeight)
		}
	}

	q := models.NewPixelBuffer(viewWidth*columns, viewHeight*rows)
	rowBytes := viewWidth * 4

	for row := 0; row < rows; row++ {
		for column := 0; column < columns; column++ {
			view := views[row*columns+column]
			x0 := column * viewWidth
			y0 := row * viewHeight

			// copy one scanline at a time into the tile's rectangle
			for y := 0; y < viewHeight; y++ {
				src := view.Pix[y*rowBytes : (y+1)*rowBytes]
				dst := q.Offset(x0, y0+y)
				copy(q.Pix[dst:dst+rowBytes], src)
			}
		}
	}

	return q, nil
}

// AssembleGeometry is Assemble with the grid taken from g.
func AssembleGeometry(views []*models.PixelBuffer, g models.QuiltGeometry) (*models.PixelBuffer, error) {
	return Assemble(views, g.Rows, g.Columns, g.ViewWidth, g.ViewHeight)
}
