package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"

	"github.com/local/sheetpress/internal/block"
)

// A4 portrait at 150 DPI.
const (
	coverW = 1240
	coverH = 1754
)

// CoverSpec is everything a cover page shows.
type CoverSpec struct {
	Title       string
	Subtitle    string
	InfoText    string
	LocaleLabel string // DE, CH or DACH
	AccentColor string // hex
	Images      []string // data URIs, up to 4 shown
	ImageBorder bool
}

// BuildCover derives the cover content for one locale variant.
func BuildCover(doc block.Document, localeLabel string) CoverSpec {
	s := doc.Settings
	return CoverSpec{
		Title:       doc.Title,
		Subtitle:    firstNonEmpty(s.CoverSubtitle, "Arbeitsblatt"),
		InfoText:    s.CoverInfoText,
		LocaleLabel: localeLabel,
		AccentColor: s.Fonts().PrimaryColor,
		Images:      s.CoverImages,
		ImageBorder: s.CoverImageBorder,
	}
}

// CoverRenderer paints cover PNGs. Font files are optional; a missing face
// degrades to a builtin bitmap font instead of failing the export.
type CoverRenderer struct {
	FontDir string
}

// NewCover returns a cover renderer reading fonts from dir.
func NewCover(dir string) *CoverRenderer {
	return &CoverRenderer{FontDir: dir}
}

func (r *CoverRenderer) setFace(dc *gg.Context, file string, size float64) {
	if r.FontDir != "" {
		if err := dc.LoadFontFace(filepath.Join(r.FontDir, file), size); err == nil {
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

// Render paints the cover and returns PNG bytes.
func (r *CoverRenderer) Render(spec CoverSpec) ([]byte, error) {
	dc := gg.NewContext(coverW, coverH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	accent := spec.AccentColor
	if accent == "" {
		accent = "#1a1a1a"
	}

	// Accent ribbon across the upper third.
	dc.SetHexColor(accent)
	dc.DrawRectangle(0, 360, coverW, 10)
	dc.Fill()

	// Locale tab in the top right corner.
	if spec.LocaleLabel != "" {
		dc.SetHexColor(accent)
		dc.DrawRectangle(coverW-220, 0, 220, 90)
		dc.Fill()
		dc.SetRGB(1, 1, 1)
		r.setFace(dc, "AsapCondensed-Bold.ttf", 44)
		dc.DrawStringAnchored(spec.LocaleLabel, coverW-110, 45, 0.5, 0.5)
	}

	dc.SetRGB(0.1, 0.1, 0.1)
	r.setFace(dc, "AsapCondensed-Bold.ttf", 88)
	dc.DrawStringWrapped(spec.Title, coverW/2, 220, 0.5, 0.5, coverW-200, 1.2, gg.AlignCenter)

	r.setFace(dc, "AsapCondensed-Regular.ttf", 44)
	dc.SetRGB(0.35, 0.35, 0.35)
	dc.DrawStringAnchored(spec.Subtitle, coverW/2, 320, 0.5, 0.5)

	r.drawImages(dc, spec)

	if strings.TrimSpace(spec.InfoText) != "" {
		r.setFace(dc, "AsapCondensed-Regular.ttf", 36)
		dc.SetRGB(0.25, 0.25, 0.25)
		dc.DrawStringWrapped(spec.InfoText, coverW/2, coverH-180, 0.5, 0.5, coverW-240, 1.4, gg.AlignCenter)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode cover png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawImages lays out up to four cover images in a centered 2x2 raster.
func (r *CoverRenderer) drawImages(dc *gg.Context, spec CoverSpec) {
	var imgs []image.Image
	for _, uri := range spec.Images {
		if len(imgs) == 4 {
			break
		}
		payload, _, ok := splitDataURI(uri)
		if !ok {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(payload))
		if err != nil {
			continue
		}
		imgs = append(imgs, img)
	}
	if len(imgs) == 0 {
		return
	}

	const cell = 440.0
	const gap = 40.0
	cols := 2
	if len(imgs) == 1 {
		cols = 1
	}
	rows := (len(imgs) + cols - 1) / cols
	totalW := float64(cols)*cell + float64(cols-1)*gap
	totalH := float64(rows)*cell + float64(rows-1)*gap
	x0 := (coverW - totalW) / 2
	y0 := 480 + (900-totalH)/2

	for i, img := range imgs {
		cx := x0 + float64(i%cols)*(cell+gap)
		cy := y0 + float64(i/cols)*(cell+gap)
		fitted := fitInto(img, int(cell))
		fx := cx + (cell-float64(fitted.Bounds().Dx()))/2
		fy := cy + (cell-float64(fitted.Bounds().Dy()))/2
		dc.DrawImage(fitted, int(fx), int(fy))
		if spec.ImageBorder {
			dc.SetRGB(0.8, 0.8, 0.8)
			dc.SetLineWidth(2)
			dc.DrawRectangle(fx, fy, float64(fitted.Bounds().Dx()), float64(fitted.Bounds().Dy()))
			dc.Stroke()
		}
	}
}

// fitInto scales an image down to fit a square cell, keeping aspect.
func fitInto(img image.Image, cell int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= cell && h <= cell {
		return img
	}
	scale := float64(cell) / float64(w)
	if s := float64(cell) / float64(h); s < scale {
		scale = s
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
