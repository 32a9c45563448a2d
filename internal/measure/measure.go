// Package measure computes rendered block heights from font metrics. It is
// the server-side stand-in for the print stylesheet: the pagination engine
// feeds the numbers produced here into the greedy packer, so the model only
// has to be consistent, not pixel-perfect.
package measure

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/local/sheetpress/internal/block"
	"github.com/local/sheetpress/internal/richtext"
)

// ErrNotReady is returned while fonts are not loaded yet. Callers treat it
// like an unmounted preview: skip this run and retry on the next trigger.
var ErrNotReady = errors.New("measure: fonts not loaded")

const (
	lineHeight = 1.5
	// Answer rows (blanks, writing lines) render taller than prose.
	answerLineHeight = 1.8
	defaultFontSize  = 14
	columnGap        = 16
	itemGap          = 8
)

// fontFiles maps a brand body/headline family to its TTF files.
var fontFiles = map[string][2]string{
	"Asap Condensed": {"AsapCondensed-Regular.ttf", "AsapCondensed-Bold.ttf"},
	"Encode Sans":    {"EncodeSans-Regular.ttf", "EncodeSans-Bold.ttf"},
	"Merriweather":   {"Merriweather-Regular.ttf", "Merriweather-Bold.ttf"},
}

type faceKey struct {
	family string
	bold   bool
	size   float64
}

// Measurer holds parsed fonts and caches sized faces. Safe for concurrent
// use after Load.
type Measurer struct {
	dir string

	mu     sync.Mutex
	fonts  map[string][2]*truetype.Font // family -> regular, bold
	faces  map[faceKey]font.Face
	static font.Face
}

// New returns a Measurer reading TTF files from dir. Call Load before
// measuring.
func New(dir string) *Measurer {
	return &Measurer{
		dir:   dir,
		fonts: map[string][2]*truetype.Font{},
		faces: map[faceKey]font.Face{},
	}
}

// NewStatic returns a Measurer that uses one fixed face for every style and
// size. Used in tests; no font files required.
func NewStatic(face font.Face) *Measurer {
	return &Measurer{static: face, faces: map[faceKey]font.Face{}}
}

// Load parses every known font family found in the font directory. Families
// whose files are missing are skipped; measuring with a missing family
// returns ErrNotReady.
func (m *Measurer) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for family, files := range fontFiles {
		var pair [2]*truetype.Font
		ok := true
		for i, name := range files {
			data, err := os.ReadFile(filepath.Join(m.dir, name))
			if err != nil {
				ok = false
				break
			}
			f, err := truetype.Parse(data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", name, err)
			}
			pair[i] = f
		}
		if ok {
			m.fonts[family] = pair
		}
	}
	if len(m.fonts) == 0 {
		return fmt.Errorf("no usable fonts in %s", m.dir)
	}
	return nil
}

func (m *Measurer) face(family string, size float64, bold bool) (font.Face, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.static != nil {
		return m.static, nil
	}
	key := faceKey{family: family, bold: bold, size: size}
	if f, ok := m.faces[key]; ok {
		return f, nil
	}
	pair, ok := m.fonts[family]
	if !ok {
		// Fall back to any loaded family before giving up.
		for _, p := range m.fonts {
			pair, ok = p, true
			break
		}
		if !ok {
			return nil, ErrNotReady
		}
	}
	ttf := pair[0]
	if bold && pair[1] != nil {
		ttf = pair[1]
	}
	face := truetype.NewFace(ttf, &truetype.Options{Size: size, DPI: 96})
	m.faces[key] = face
	return face, nil
}

// Heights measures each block of the list at the given content width.
func (m *Measurer) Heights(blocks []block.Block, width float64, s block.Settings) ([]float64, error) {
	out := make([]float64, len(blocks))
	for i, b := range blocks {
		h, err := m.BlockHeight(b, width, s)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func fontSize(s block.Settings) float64 {
	if s.FontSize > 0 {
		return s.FontSize
	}
	return defaultFontSize
}

// BlockHeight returns the modelled height in px of one block rendered at the
// given content width. The switch is exhaustive over the block union.
func (m *Measurer) BlockHeight(b block.Block, width float64, s block.Settings) (float64, error) {
	size := fontSize(s)
	family := s.Fonts().BodyFont

	switch v := b.(type) {
	case *block.Heading:
		hs := size * 2
		switch v.Level {
		case 2:
			hs = size * 1.5
		case 3:
			hs = size * 1.25
		}
		lines, err := m.wrapCount(richtext.StripHTML(v.Content), s.Fonts().HeadlineFont, hs, true, width)
		if err != nil {
			return 0, err
		}
		return float64(max(lines, 1))*hs*lineHeight + itemGap, nil

	case *block.Text:
		textWidth := width
		imageH := 0.0
		if v.ImageSrc != "" {
			scale := v.ImageScale
			if scale <= 0 {
				scale = 40
			}
			imgW := width * scale / 100
			textWidth = width - imgW - columnGap
			imageH = imgW * 0.75
		}
		h, err := m.proseHeight(richtext.StripHTML(v.Content), family, size, textWidth)
		if err != nil {
			return 0, err
		}
		return math.Max(h, imageH), nil

	case *block.Image:
		frac := v.Width
		if frac <= 0 || frac > 100 {
			frac = 100
		}
		imgW := width * frac / 100
		h := imgW * 0.66
		if strings.TrimSpace(v.Caption) != "" {
			h += size * lineHeight
		}
		return h, nil

	case *block.ImageCards:
		cols := clampCols(v.Columns)
		cardW := (width - float64(cols-1)*columnGap) / float64(cols)
		imgH := cardW / aspect(v.ImageAspectRatio)
		if v.ImageScale > 0 {
			imgH *= v.ImageScale / 100
		}
		rowH := imgH + size*lineHeight // image + label line
		if v.ShowWritingLines {
			rowH += float64(max(v.WritingLinesCount, 1)) * size * answerLineHeight
		}
		h := float64(rowsFor(len(v.Items), cols)) * (rowH + itemGap)
		if v.ShowWordBank {
			wb, err := m.wordBankHeight(cardTexts(v.Items), family, size, width)
			if err != nil {
				return 0, err
			}
			h += wb
		}
		return h, nil

	case *block.TextCards:
		cols := clampCols(v.Columns)
		cardW := (width - float64(cols-1)*columnGap) / float64(cols)
		ts := size * textSizeFactor(v.TextSize)
		maxCard := 0.0
		for _, it := range v.Items {
			lines, err := m.wrapCount(it.Text, family, ts, v.TextBold, cardW-2*itemGap)
			if err != nil {
				return 0, err
			}
			ch := float64(max(lines, 1))*ts*lineHeight + 2*itemGap
			if strings.TrimSpace(it.Caption) != "" {
				ch += size * lineHeight
			}
			if v.ShowWritingLines {
				ch += float64(max(v.WritingLinesCount, 1)) * size * answerLineHeight
			}
			maxCard = math.Max(maxCard, ch)
		}
		h := float64(rowsFor(len(v.Items), cols)) * (maxCard + itemGap)
		if v.ShowWordBank {
			wb, err := m.wordBankHeight(textCardTexts(v.Items), family, size, width)
			if err != nil {
				return 0, err
			}
			h += wb
		}
		return h, nil

	case *block.Spacer:
		return v.Height, nil

	case *block.Divider:
		return 16, nil

	case *block.Columns:
		n := max(v.Columns, 1)
		colW := (width - float64(n-1)*columnGap) / float64(n)
		tallest := 0.0
		for _, col := range v.Children {
			sum := 0.0
			for j, child := range col {
				h, err := m.BlockHeight(child, colW, s)
				if err != nil {
					return 0, err
				}
				if j > 0 {
					sum += columnGap
				}
				sum += h
			}
			tallest = math.Max(tallest, sum)
		}
		return tallest, nil

	case *block.MultipleChoice:
		h, err := m.proseHeight(richtext.StripHTML(v.Question), family, size, width)
		if err != nil {
			return 0, err
		}
		for _, o := range v.Options {
			lines, err := m.wrapCount(o.Text, family, size, false, width-24)
			if err != nil {
				return 0, err
			}
			h += float64(max(lines, 1))*size*lineHeight + itemGap/2
		}
		return h, nil

	case *block.FillInBlank:
		// Blanks render as answer-width underlines, so measuring the
		// expanded text approximates the occupied width.
		text := richtext.StripHTML(richtext.ExpandBlanks(v.Content))
		lines, err := m.wrapCount(text, family, size, false, width)
		if err != nil {
			return 0, err
		}
		return float64(max(lines, 1)) * size * answerLineHeight, nil

	case *block.Matching:
		return m.pairRowsHeight(v.Instruction, pairRows(v.Pairs), family, size, width, v.ExtendedRows)

	case *block.TwoColumnFill:
		rows := make([][2]string, len(v.Items))
		for i, it := range v.Items {
			rows[i] = [2]string{it.Left, it.Right}
		}
		h, err := m.pairRowsHeight(v.Instruction, rows, family, size, width, v.ExtendedRows)
		if err != nil {
			return 0, err
		}
		if v.ShowWordBank {
			wb, err := m.wordBankHeight(fillSideTexts(v), family, size, width)
			if err != nil {
				return 0, err
			}
			h += wb
		}
		return h, nil

	case *block.Glossary:
		rows := make([][2]string, len(v.Pairs))
		for i, p := range v.Pairs {
			rows[i] = [2]string{p.Term, p.Definition}
		}
		return m.pairRowsHeight(v.Instruction, rows, family, size, width, false)

	case *block.OpenResponse:
		h, err := m.proseHeight(richtext.StripHTML(v.Question), family, size, width)
		if err != nil {
			return 0, err
		}
		return h + float64(max(v.Lines, 1))*size*answerLineHeight, nil

	case *block.WordBank:
		return m.wordBankHeight(v.Words, family, size, width)

	case *block.NumberLine:
		return 60, nil

	case *block.TrueFalseMatrix:
		h, err := m.proseHeight(v.Instruction, family, size, width)
		if err != nil {
			return 0, err
		}
		h += size * lineHeight // header row
		for _, st := range v.Statements {
			lines, err := m.wrapCount(st.Text, family, size, false, width-120)
			if err != nil {
				return 0, err
			}
			h += float64(max(lines, 1))*size*lineHeight + itemGap/2
		}
		return h, nil

	case *block.ArticleTraining:
		h, err := m.proseHeight(v.Instruction, family, size, width)
		if err != nil {
			return 0, err
		}
		per := size * answerLineHeight
		if v.ShowWritingLine {
			per += size * answerLineHeight
		}
		return h + float64(len(v.Items))*per, nil

	case *block.OrderItems:
		h, err := m.proseHeight(v.Instruction, family, size, width)
		if err != nil {
			return 0, err
		}
		for _, it := range v.Items {
			lines, err := m.wrapCount(it.Text, family, size, false, width-32)
			if err != nil {
				return 0, err
			}
			h += float64(max(lines, 1))*size*lineHeight + itemGap
		}
		return h, nil

	case *block.InlineChoices:
		h := 0.0
		for _, it := range richtext.MigrateInlineChoices(v) {
			// Choices render as boxed pills around the widest option.
			text := widestChoiceText(it.Content)
			lines, err := m.wrapCount(text, family, size, false, width)
			if err != nil {
				return 0, err
			}
			h += float64(max(lines, 1))*size*answerLineHeight + itemGap
		}
		return h, nil

	case *block.WordSearch:
		cols, rows := v.Cols(), v.Rows()
		cell := math.Min(28, width/float64(max(cols, 1)))
		h := float64(rows) * cell
		if v.ShowWordList {
			wl, err := m.wordBankHeight(v.Words, family, size, width)
			if err != nil {
				return 0, err
			}
			h += wl
		}
		return h, nil

	case *block.SortingCategories:
		h, err := m.proseHeight(v.Instruction, family, size, width)
		if err != nil {
			return 0, err
		}
		pool, err := m.wordBankHeight(sortingTexts(v.Items), family, size, width)
		if err != nil {
			return 0, err
		}
		h += pool
		boxRows := rowsFor(len(v.Categories), 2)
		box := size*lineHeight + 90 // label + drop area
		if v.ShowWritingLines {
			box += 2 * size * answerLineHeight
		}
		return h + float64(boxRows)*(box+itemGap), nil

	case *block.UnscrambleWords:
		h, err := m.proseHeight(v.Instruction, family, size, width)
		if err != nil {
			return 0, err
		}
		return h + float64(len(v.Words))*size*answerLineHeight*2, nil

	case *block.FixSentences:
		h, err := m.proseHeight(v.Instruction, family, size, width)
		if err != nil {
			return 0, err
		}
		for _, sent := range v.Sentences {
			lines, err := m.wrapCount(strings.ReplaceAll(sent.Sentence, " | ", "   "), family, size, false, width)
			if err != nil {
				return 0, err
			}
			h += float64(max(lines, 1))*size*lineHeight + size*answerLineHeight
		}
		return h, nil

	case *block.CompleteSentences:
		h, err := m.proseHeight(v.Instruction, family, size, width)
		if err != nil {
			return 0, err
		}
		for _, sent := range v.Sentences {
			lines, err := m.wrapCount(sent.Beginning, family, size, false, width)
			if err != nil {
				return 0, err
			}
			h += float64(max(lines, 1))*size*lineHeight + size*answerLineHeight
		}
		return h, nil

	case *block.VerbTable:
		rows := len(v.SingularRows) + len(v.PluralRows)
		h := size*lineHeight + itemGap       // verb headline
		h += 2 * (size*lineHeight + itemGap) // singular/plural labels
		return h + float64(rows)*(size*lineHeight+itemGap), nil

	default:
		// Unknown block: reserve one text line so packing stays stable.
		return size * lineHeight, nil
	}
}

// proseHeight measures multi-paragraph body text.
func (m *Measurer) proseHeight(text, family string, size, width float64) (float64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	total := 0
	for _, para := range strings.Split(text, "\n") {
		lines, err := m.wrapCount(para, family, size, false, width)
		if err != nil {
			return 0, err
		}
		total += max(lines, 1)
	}
	return float64(total) * size * lineHeight, nil
}

// wrapCount returns how many lines the text occupies at the given width
// using greedy word wrapping.
func (m *Measurer) wrapCount(text, family string, size float64, bold bool, width float64) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	face, err := m.face(family, size, bold)
	if err != nil {
		return 0, err
	}
	if width <= 0 {
		return len(strings.Fields(text)), nil
	}
	space := advance(face, " ")
	lines, lineW := 1, 0.0
	for _, word := range strings.Fields(text) {
		w := advance(face, word)
		switch {
		case lineW == 0:
			lineW = w
		case lineW+space+w <= width:
			lineW += space + w
		default:
			lines++
			lineW = w
		}
	}
	return lines, nil
}

func advance(face font.Face, s string) float64 {
	return float64(font.MeasureString(face, s)) / 64
}

func (m *Measurer) wordBankHeight(words []string, family string, size, width float64) (float64, error) {
	if len(words) == 0 {
		return 0, nil
	}
	lines, err := m.wrapCount(strings.Join(words, "   "), family, size, false, width-2*itemGap)
	if err != nil {
		return 0, err
	}
	return float64(max(lines, 1))*size*answerLineHeight + 2*itemGap, nil
}

// pairRowsHeight models two-column exercise tables (matching, glossary,
// two-column-fill): each row as tall as its taller side.
func (m *Measurer) pairRowsHeight(instruction string, rows [][2]string, family string, size, width float64, extended bool) (float64, error) {
	h, err := m.proseHeight(instruction, family, size, width)
	if err != nil {
		return 0, err
	}
	half := (width - columnGap) / 2
	rowFactor := answerLineHeight
	if extended {
		rowFactor *= 1.5
	}
	for _, row := range rows {
		l, err := m.wrapCount(row[0], family, size, false, half)
		if err != nil {
			return 0, err
		}
		r, err := m.wrapCount(row[1], family, size, false, half)
		if err != nil {
			return 0, err
		}
		h += float64(max(max(l, r), 1))*size*rowFactor + itemGap/2
	}
	return h, nil
}

func pairRows(pairs []block.MatchingPair) [][2]string {
	out := make([][2]string, len(pairs))
	for i, p := range pairs {
		out[i] = [2]string{p.Left, p.Right}
	}
	return out
}

func cardTexts(items []block.ImageCardItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

func textCardTexts(items []block.TextCardItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

func sortingTexts(items []block.SortingItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

// fillSideTexts returns the answers hidden by a two-column-fill word bank.
func fillSideTexts(v *block.TwoColumnFill) []string {
	out := make([]string, len(v.Items))
	for i, it := range v.Items {
		if v.FillSide == "left" {
			out[i] = it.Left
		} else {
			out[i] = it.Right
		}
	}
	return out
}

// widestChoiceText substitutes each choice group with its longest option so
// wrapping reflects the rendered pill width.
func widestChoiceText(content string) string {
	var sb strings.Builder
	for _, seg := range richtext.ParseChoiceSegments(content) {
		if seg.Kind == richtext.SegmentChoice {
			widest := ""
			for _, o := range seg.Options {
				if len(o) > len(widest) {
					widest = o
				}
			}
			sb.WriteString(widest)
		} else {
			sb.WriteString(seg.Value)
		}
	}
	return sb.String()
}

func clampCols(n int) int {
	if n < 2 {
		return 2
	}
	if n > 4 {
		return 4
	}
	return n
}

func rowsFor(items, cols int) int {
	if items == 0 {
		return 0
	}
	return (items + cols - 1) / cols
}

func aspect(ratio string) float64 {
	switch ratio {
	case "square", "1:1", "":
		return 1
	case "4:3":
		return 4.0 / 3.0
	case "16:9":
		return 16.0 / 9.0
	case "3:4":
		return 3.0 / 4.0
	default:
		return 1
	}
}

func textSizeFactor(ts string) float64 {
	switch ts {
	case "xs":
		return 0.75
	case "sm":
		return 0.875
	case "lg":
		return 1.125
	case "xl":
		return 1.25
	case "2xl":
		return 1.5
	default:
		return 1
	}
}
