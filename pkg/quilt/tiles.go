package quilt

import (
	"fmt"
	"os"
	"path/filepath"

	"holoquilt/internal/models"
)

// Splitter reads individual views back out of an assembled quilt.
type Splitter struct {
	// quilt holds the assembled quilt pixels
	quilt *models.PixelBuffer

	// geometry of the tile grid
	geometry models.QuiltGeometry
}

// NewSplitter creates a splitter for a quilt laid out as g. The quilt must
// be at least as large as the grid.
func NewSplitter(quilt *models.PixelBuffer, g models.QuiltGeometry) (*Splitter, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if quilt.Width < g.Width() || quilt.Height < g.Height() {
		return nil, fmt.Errorf("%w: quilt %dx%d is smaller than %dx%d grid of %dx%d views",
			ErrShapeMismatch, quilt.Width, quilt.Height, g.Columns, g.Rows, g.ViewWidth, g.ViewHeight)
	}
	return &Splitter{quilt: quilt, geometry: g}, nil
}

// ExtractTile copies the tile at (row, column) into a new view buffer.
func (s *Splitter) ExtractTile(row, column int) (*models.PixelBuffer, error) {
	g := s.geometry
	if row < 0 || row >= g.Rows {
		return nil, fmt.Errorf("row %d outside grid of %d rows", row, g.Rows)
	}
	if column < 0 || column >= g.Columns {
		return nil, fmt.Errorf("column %d outside grid of %d columns", column, g.Columns)
	}

	view := models.NewPixelBuffer(g.ViewWidth, g.ViewHeight)
	rowBytes := g.ViewWidth * 4
	x0 := column * g.ViewWidth
	y0 := row * g.ViewHeight

	for y := 0; y < g.ViewHeight; y++ {
		src := s.quilt.Offset(x0, y0+y)
		copy(view.Pix[y*rowBytes:(y+1)*rowBytes], s.quilt.Pix[src:src+rowBytes])
	}

	return view, nil
}

// ExtractView copies the tile holding the given view index.
func (s *Splitter) ExtractView(index int) (*models.PixelBuffer, error) {
	if index < 0 || index >= s.geometry.TotalViews() {
		return nil, fmt.Errorf("view %d outside quilt of %d views", index, s.geometry.TotalViews())
	}
	return s.ExtractTile(index/s.geometry.Columns, index%s.geometry.Columns)
}

// SaveViewSequence writes every view as its own image file named
// view_NN<ext> in outputDir.
func (s *Splitter) SaveViewSequence(outputDir, ext string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for i := 0; i < s.geometry.TotalViews(); i++ {
		view, err := s.ExtractView(i)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("view_%02d%s", i, ext))
		if err := Save(filename, view); err != nil {
			return fmt.Errorf("failed to save view %d: %w", i, err)
		}
	}

	return nil
}
