package quilt

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"holoquilt/internal/models"
)

// Extensions lists the image file extensions Save can write.
var Extensions = []string{".png", ".tif", ".tiff", ".bmp", ".jpg", ".jpeg"}

// ToImage converts a bottom-up pixel buffer into a top-down image.
func ToImage(b *models.PixelBuffer) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	stride := b.Stride()
	for y := 0; y < b.Height; y++ {
		src := (b.Height - 1 - y) * stride
		copy(img.Pix[y*img.Stride:y*img.Stride+stride], b.Pix[src:src+stride])
	}
	return img
}

// FromImage converts any image into a bottom-up pixel buffer.
func FromImage(img image.Image) *models.PixelBuffer {
	bounds := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || bounds.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}

	b := models.NewPixelBuffer(bounds.Dx(), bounds.Dy())
	stride := b.Stride()
	for y := 0; y < b.Height; y++ {
		dst := (b.Height - 1 - y) * stride
		copy(b.Pix[dst:dst+stride], nrgba.Pix[y*nrgba.Stride:y*nrgba.Stride+stride])
	}
	return b
}

// Encode writes b in the format named by ext.
func Encode(w io.Writer, b *models.PixelBuffer, ext string) error {
	img := ToImage(b)
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":
		return bmp.Encode(w, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, opaque(img), &jpeg.Options{Quality: 95})
	}
	return fmt.Errorf("unsupported image format %q", ext)
}

// opaque drops the alpha channel for formats that cannot store it.
func opaque(img *image.NRGBA) image.Image {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, image.Point{}, draw.Over)
	return out
}

// Save writes b to path, choosing the format from the extension.
func Save(path string, b *models.PixelBuffer) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Encode(file, b, filepath.Ext(path)); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}

// Load reads an image file into a bottom-up pixel buffer.
func Load(path string) (*models.PixelBuffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return FromImage(img), nil
}

// Files stores images on the local file system.
type Files struct {
	// Keep leaves released files on disk
	Keep bool
}

func (f Files) Save(path string, b *models.PixelBuffer) error { return Save(path, b) }

func (f Files) Load(path string) (*models.PixelBuffer, error) { return Load(path) }

// Release removes a transient file unless Keep is set.
func (f Files) Release(path string) error {
	if f.Keep {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
