package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/local/sheetpress/internal/richtext"
)

// pdfFontFiles maps a brand family to regular/bold TTF files under FontDir.
var pdfFontFiles = map[string][2]string{
	"Asap Condensed": {"AsapCondensed-Regular.ttf", "AsapCondensed-Bold.ttf"},
	"Encode Sans":    {"EncodeSans-Regular.ttf", "EncodeSans-Bold.ttf"},
	"Merriweather":   {"Merriweather-Regular.ttf", "Merriweather-Bold.ttf"},
}

// PDFRenderer renders box docs to PDF bytes. Brand TTF fonts are registered
// from FontDir when present; otherwise the core Helvetica set with cp1252
// translation carries German text fine.
type PDFRenderer struct {
	FontDir string
}

// NewPDF returns a renderer reading fonts from dir.
func NewPDF(dir string) *PDFRenderer {
	return &PDFRenderer{FontDir: dir}
}

type pdfState struct {
	pdf      *gofpdf.Fpdf
	tr       func(string) string
	family   string
	bodySize float64
	contentW float64
	left     float64
	imageSeq int
}

// Render produces the PDF for one box doc.
func (r *PDFRenderer) Render(doc Doc) ([]byte, error) {
	orient := "P"
	if doc.Orientation == "landscape" {
		orient = "L"
	}
	size := "A4"
	if doc.PageSize == "letter" {
		size = "Letter"
	}
	pdf := gofpdf.New(orient, "mm", size, r.FontDir)
	pdf.SetMargins(doc.Margins.Left, doc.Margins.Top, doc.Margins.Right)
	pdf.SetAutoPageBreak(true, doc.Margins.Bottom)
	pdf.AliasNbPages("")
	pdf.SetTitle(doc.Title, true)

	st := &pdfState{pdf: pdf, bodySize: doc.FontSize * 0.75}
	if st.bodySize <= 0 {
		st.bodySize = 10.5
	}
	st.family = r.registerFonts(pdf, doc.FontFamily)
	if st.family == "Helvetica" {
		st.tr = pdf.UnicodeTranslatorFromDescriptor("")
	} else {
		st.tr = func(s string) string { return s }
	}

	pageW, _ := pdf.GetPageSize()
	st.left = doc.Margins.Left
	st.contentW = pageW - doc.Margins.Left - doc.Margins.Right

	r.installHeaderFooter(st, doc)
	pdf.AddPage()

	for _, box := range doc.Boxes {
		st.draw(box)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

// registerFonts loads the family's TTF pair if both files exist, returning
// the registered family name or the core fallback.
func (r *PDFRenderer) registerFonts(pdf *gofpdf.Fpdf, family string) string {
	files, ok := pdfFontFiles[family]
	if !ok || r.FontDir == "" {
		return "Helvetica"
	}
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(r.FontDir, f)); err != nil {
			return "Helvetica"
		}
	}
	pdf.AddUTF8Font(family, "", files[0])
	pdf.AddUTF8Font(family, "B", files[1])
	// Italic variants reuse the regular face; the editor rarely nests
	// italics into exercises and gofpdf needs a registered style to set it.
	pdf.AddUTF8Font(family, "I", files[0])
	pdf.AddUTF8Font(family, "BI", files[1])
	if pdf.Err() {
		return "Helvetica"
	}
	return family
}

func (r *PDFRenderer) installHeaderFooter(st *pdfState, doc Doc) {
	interpolate := func(s string) string {
		s = strings.ReplaceAll(s, "{page}", strconv.Itoa(st.pdf.PageNo()))
		return strings.ReplaceAll(s, "{pages}", "{nb}")
	}
	band := func(hf HeaderFooter, y float64) {
		st.pdf.SetFont(st.family, "", st.bodySize*0.8)
		st.pdf.SetTextColor(120, 120, 120)
		third := st.contentW / 3
		st.pdf.SetXY(st.left, y)
		st.pdf.CellFormat(third, 5, st.tr(interpolate(hf.Left)), "", 0, "L", false, 0, "")
		st.pdf.CellFormat(third, 5, st.tr(interpolate(hf.Center)), "", 0, "C", false, 0, "")
		st.pdf.CellFormat(third, 5, st.tr(interpolate(hf.Right)), "", 0, "R", false, 0, "")
		st.pdf.SetTextColor(0, 0, 0)
	}
	if doc.Header.Show {
		st.pdf.SetHeaderFuncMode(func() {
			band(doc.Header, doc.Margins.Top-7)
			st.pdf.SetY(doc.Margins.Top)
		}, true)
	}
	if doc.Footer.Show {
		st.pdf.SetFooterFunc(func() {
			_, pageH := st.pdf.GetPageSize()
			band(doc.Footer, pageH-doc.Margins.Bottom+2)
		})
	}
}

func (st *pdfState) lineH(size float64) float64 {
	return size * 0.3528 * 1.5 // pt → mm at 1.5 line height
}

func (st *pdfState) draw(box Box) {
	switch v := box.(type) {
	case Paragraph:
		st.paragraph(v)
	case Table:
		st.table(v)
	case ImageBox:
		st.image(v)
	case Rule:
		st.rule(v)
	case SpacerBox:
		st.pdf.Ln(v.Height)
	case WritingLines:
		st.writingLines(v.Count)
	case LetterGrid:
		st.letterGrid(v.Cells)
	}
}

func styleString(s richtext.Style) string {
	var sb strings.Builder
	if s.Bold {
		sb.WriteString("B")
	}
	if s.Italic {
		sb.WriteString("I")
	}
	if s.Underline {
		sb.WriteString("U")
	}
	if s.Strike {
		sb.WriteString("S")
	}
	return sb.String()
}

func (st *pdfState) paragraph(p Paragraph) {
	size := p.Size
	if size <= 0 {
		size = st.bodySize
	}
	lh := st.lineH(size)
	st.pdf.SetLeftMargin(st.left + p.Indent)
	st.pdf.SetX(st.left + p.Indent)
	for _, run := range p.Runs {
		st.pdf.SetFont(st.family, styleString(run.Style), size)
		st.pdf.Write(lh, st.tr(run.Text))
	}
	st.pdf.SetLeftMargin(st.left)
	st.pdf.Ln(lh + p.SpaceAfter)
}

func (st *pdfState) table(t Table) {
	size := st.bodySize
	lh := st.lineH(size)
	for ri, row := range t.Rows {
		headerBold := t.HeaderRow && ri == 0
		// Measure the row: tallest wrapped cell wins.
		maxLines := 1
		for ci, cell := range row {
			if ci >= len(t.Widths) {
				break
			}
			st.pdf.SetFont(st.family, cellStyle(cell, headerBold), size)
			w := t.Widths[ci]*st.contentW - 2
			lines := st.pdf.SplitText(st.tr(cell.Text), w)
			if len(lines) > maxLines {
				maxLines = len(lines)
			}
		}
		rowH := float64(maxLines)*lh + 2

		_, pageH := st.pdf.GetPageSize()
		_, _, _, bottom := st.pdf.GetMargins()
		if st.pdf.GetY()+rowH > pageH-bottom {
			st.pdf.AddPage()
		}

		x, y := st.left, st.pdf.GetY()
		for ci, cell := range row {
			if ci >= len(t.Widths) {
				break
			}
			w := t.Widths[ci] * st.contentW
			st.pdf.Rect(x, y, w, rowH, "D")
			align := cell.Align
			if align == "" {
				align = "L"
			}
			st.pdf.SetFont(st.family, cellStyle(cell, headerBold), size)
			st.pdf.SetXY(x+1, y+1)
			st.pdf.MultiCell(w-2, lh, st.tr(cell.Text), "", align, false)
			x += w
		}
		st.pdf.SetY(y + rowH)
		st.pdf.SetX(st.left)
	}
	st.pdf.Ln(2)
}

func cellStyle(c Cell, headerBold bool) string {
	if c.Bold || headerBold {
		return "B"
	}
	return ""
}

func (st *pdfState) image(v ImageBox) {
	payload, imgType, ok := splitDataURI(v.DataURI)
	if !ok {
		return
	}
	st.imageSeq++
	name := fmt.Sprintf("img-%d", st.imageSeq)
	opts := gofpdf.ImageOptions{ImageType: imgType, ReadDpi: false}
	st.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(payload))
	if st.pdf.Err() {
		// A broken image must not sink the whole render.
		st.pdf.ClearError()
		return
	}
	frac := v.WidthFrac
	if frac <= 0 || frac > 1 {
		frac = 1
	}
	w := st.contentW * frac
	x := st.left + (st.contentW-w)/2
	st.pdf.ImageOptions(name, x, st.pdf.GetY(), w, 0, true, opts, 0, "")
	if strings.TrimSpace(v.Caption) != "" {
		st.pdf.SetFont(st.family, "I", st.bodySize*0.85)
		st.pdf.CellFormat(st.contentW, st.lineH(st.bodySize*0.85), st.tr(v.Caption), "", 1, "C", false, 0, "")
	}
	st.pdf.Ln(2)
}

func splitDataURI(uri string) ([]byte, string, bool) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", false
	}
	mime, b64, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return nil, "", false
	}
	var imgType string
	switch mime {
	case "image/jpeg":
		imgType = "JPEG"
	case "image/png":
		imgType = "PNG"
	default:
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, "", false
	}
	return data, imgType, true
}

func (st *pdfState) rule(v Rule) {
	y := st.pdf.GetY() + 2
	st.pdf.SetDrawColor(160, 160, 160)
	switch v.Style {
	case "dashed":
		st.pdf.SetDashPattern([]float64{2, 2}, 0)
	case "dotted":
		st.pdf.SetDashPattern([]float64{0.5, 1.5}, 0)
	}
	st.pdf.Line(st.left, y, st.left+st.contentW, y)
	st.pdf.SetDashPattern([]float64{}, 0)
	st.pdf.SetDrawColor(0, 0, 0)
	st.pdf.SetY(y + 2)
}

func (st *pdfState) writingLines(count int) {
	const gap = 8.5
	st.pdf.SetDrawColor(120, 120, 120)
	for i := 0; i < count; i++ {
		y := st.pdf.GetY() + gap
		_, pageH := st.pdf.GetPageSize()
		_, _, _, bottom := st.pdf.GetMargins()
		if y > pageH-bottom {
			st.pdf.AddPage()
			y = st.pdf.GetY() + gap
		}
		st.pdf.Line(st.left, y, st.left+st.contentW, y)
		st.pdf.SetY(y)
	}
	st.pdf.SetDrawColor(0, 0, 0)
	st.pdf.Ln(2)
}

func (st *pdfState) letterGrid(cells [][]string) {
	if len(cells) == 0 {
		return
	}
	cols := len(cells[0])
	cell := st.contentW / float64(cols)
	if cell > 6 {
		cell = 6
	}
	gridW := cell * float64(cols)
	x0 := st.left + (st.contentW-gridW)/2

	st.pdf.SetFont(st.family, "", st.bodySize*0.85)
	for _, row := range cells {
		_, pageH := st.pdf.GetPageSize()
		_, _, _, bottom := st.pdf.GetMargins()
		if st.pdf.GetY()+cell > pageH-bottom {
			st.pdf.AddPage()
		}
		y := st.pdf.GetY()
		st.pdf.SetXY(x0, y)
		for _, letter := range row {
			st.pdf.CellFormat(cell, cell, st.tr(letter), "1", 0, "C", false, 0, "")
		}
		st.pdf.SetY(y + cell)
		st.pdf.SetX(st.left)
	}
	st.pdf.Ln(2)
}
