// Package render turns a worksheet into output artifacts. Blocks are first
// lowered into a small box tree (the fixed renderer contract: text arrives
// as styled runs, never HTML), which the PDF backend walks without knowing
// anything about exercise semantics.
package render

import (
	"github.com/local/sheetpress/internal/block"
	"github.com/local/sheetpress/internal/richtext"
)

// Mode selects between the pupil-facing exercise view and the solutions
// view with answers filled in.
type Mode string

const (
	ModeExercise  Mode = "exercise"
	ModeSolutions Mode = "solutions"
)

// Doc is the renderer input: resolved page setup plus a flat box list.
type Doc struct {
	Title       string
	PageSize    string
	Orientation string
	Margins     block.Margins
	FontFamily  string
	FontSize    float64
	Header      HeaderFooter
	Footer      HeaderFooter
	Boxes       []Box
}

// HeaderFooter is a three-slot band. "{page}" and "{pages}" in any slot are
// interpolated at render time.
type HeaderFooter struct {
	Show   bool
	Left   string
	Center string
	Right  string
}

// Box is the closed union of renderable primitives.
type Box interface{ box() }

// Paragraph is a run of styled text, optionally indented (exercise item
// numbering hangs in the indent).
type Paragraph struct {
	Runs       []richtext.Run
	Size       float64 // 0 means body size
	Indent     float64 // mm
	SpaceAfter float64 // mm
}

// Table is a simple bordered grid. Widths are fractions of the content
// width and must sum to 1.
type Table struct {
	Widths    []float64
	Rows      [][]Cell
	HeaderRow bool
}

// Cell is one table cell.
type Cell struct {
	Text  string
	Bold  bool
	Align string // L, C, R
}

// ImageBox places a data-URI image at a fraction of the content width.
type ImageBox struct {
	DataURI   string
	WidthFrac float64
	Caption   string
}

// Rule is a horizontal divider.
type Rule struct {
	Style string // solid, dashed, dotted
}

// SpacerBox is fixed vertical whitespace in mm.
type SpacerBox struct {
	Height float64
}

// WritingLines are ruled answer lines.
type WritingLines struct {
	Count int
}

// LetterGrid is a word-search grid of single uppercase letters.
type LetterGrid struct {
	Cells [][]string
}

func (Paragraph) box()    {}
func (Table) box()        {}
func (ImageBox) box()     {}
func (Rule) box()         {}
func (SpacerBox) box()    {}
func (WritingLines) box() {}
func (LetterGrid) box()   {}

// plain wraps unstyled text into a single-run paragraph.
func plain(text string, size, spaceAfter float64) Paragraph {
	return Paragraph{Runs: []richtext.Run{{Text: text}}, Size: size, SpaceAfter: spaceAfter}
}

// bold wraps bold text into a single-run paragraph.
func bold(text string, size, spaceAfter float64) Paragraph {
	return Paragraph{
		Runs:       []richtext.Run{{Text: text, Style: richtext.Style{Bold: true}}},
		Size:       size,
		SpaceAfter: spaceAfter,
	}
}
