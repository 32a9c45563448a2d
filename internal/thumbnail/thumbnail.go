// Package thumbnail rasterizes the first page of a rendered worksheet PDF
// for preview lists in the authoring UI.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// Options controls rasterization.
type Options struct {
	DPI     int
	Quality int  // JPEG quality, ignored for PNG
	JPEG    bool // default is PNG
	Gray    bool
}

// FromPDF renders one page (1-based) of an in-memory PDF. Returns image
// bytes plus pixel dimensions.
func FromPDF(pdf []byte, page int, opts Options) ([]byte, int, int, error) {
	if opts.DPI <= 0 {
		opts.DPI = 96
	}
	if opts.Quality <= 0 {
		opts.Quality = 85
	}
	if page < 1 {
		page = 1
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if page > doc.NumPage() {
		return nil, 0, 0, fmt.Errorf("page %d out of range (%d pages)", page, doc.NumPage())
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(page-1, float64(opts.DPI))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to render page %d: %w", page, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var final image.Image = img
	if opts.Gray {
		grayImg := image.NewGray(bounds)
		draw.Draw(grayImg, bounds, img, image.Point{}, draw.Src)
		final = grayImg
	}

	var buf bytes.Buffer
	if opts.JPEG {
		if err := jpeg.Encode(&buf, final, &jpeg.Options{Quality: opts.Quality}); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to encode JPEG: %w", err)
		}
	} else {
		if err := png.Encode(&buf, final); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to encode PNG: %w", err)
		}
	}

	log.Debug().
		Int("page", page).
		Int("width", width).
		Int("height", height).
		Int("bytes", buf.Len()).
		Int("dpi", opts.DPI).
		Msg("rendered page thumbnail")

	return buf.Bytes(), width, height, nil
}
