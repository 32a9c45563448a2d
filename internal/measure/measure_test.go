package measure

import (
	"strings"
	"testing"

	"golang.org/x/image/font/basicfont"

	"github.com/local/sheetpress/internal/block"
)

func testMeasurer() *Measurer {
	return NewStatic(basicfont.Face7x13)
}

func settings() block.Settings {
	return block.DefaultSettings()
}

func TestWrapCountGrowsWithText(t *testing.T) {
	m := testMeasurer()
	short, err := m.wrapCount("ein kurzer Satz", "Asap Condensed", 14, false, 200)
	if err != nil {
		t.Fatal(err)
	}
	long, err := m.wrapCount(strings.Repeat("ein deutlich laengerer Satz ", 10), "Asap Condensed", 14, false, 200)
	if err != nil {
		t.Fatal(err)
	}
	if long <= short {
		t.Fatalf("long text wrapped to %d lines, short to %d", long, short)
	}
}

func TestWrapCountEmpty(t *testing.T) {
	m := testMeasurer()
	lines, err := m.wrapCount("   ", "Asap Condensed", 14, false, 200)
	if err != nil {
		t.Fatal(err)
	}
	if lines != 0 {
		t.Fatalf("lines = %d, want 0", lines)
	}
}

func TestSpacerHeightExact(t *testing.T) {
	m := testMeasurer()
	h, err := m.BlockHeight(&block.Spacer{Base: block.Base{Type: block.KindSpacer}, Height: 42}, 600, settings())
	if err != nil {
		t.Fatal(err)
	}
	if h != 42 {
		t.Fatalf("spacer height = %v, want 42", h)
	}
}

func TestMoreTextTaller(t *testing.T) {
	m := testMeasurer()
	short := &block.Text{Base: block.Base{Type: block.KindText}, Content: "kurz"}
	long := &block.Text{Base: block.Base{Type: block.KindText}, Content: strings.Repeat("sehr viel laengerer Inhalt ", 20)}
	hs, err := m.BlockHeight(short, 600, settings())
	if err != nil {
		t.Fatal(err)
	}
	hl, err := m.BlockHeight(long, 600, settings())
	if err != nil {
		t.Fatal(err)
	}
	if hl <= hs {
		t.Fatalf("long %v not taller than short %v", hl, hs)
	}
}

func TestColumnsTakesTallestColumn(t *testing.T) {
	m := testMeasurer()
	tall := &block.Spacer{Base: block.Base{Type: block.KindSpacer}, Height: 300}
	small := &block.Spacer{Base: block.Base{Type: block.KindSpacer}, Height: 50}
	cols := &block.Columns{
		Base:     block.Base{Type: block.KindColumns},
		Columns:  2,
		Children: [][]block.Block{{tall}, {small, small}},
	}
	h, err := m.BlockHeight(cols, 600, settings())
	if err != nil {
		t.Fatal(err)
	}
	if h != 300 {
		t.Fatalf("columns height = %v, want 300 (tallest column)", h)
	}
}

func TestColumnsSumsWithGap(t *testing.T) {
	m := testMeasurer()
	s := &block.Spacer{Base: block.Base{Type: block.KindSpacer}, Height: 100}
	cols := &block.Columns{
		Base:     block.Base{Type: block.KindColumns},
		Columns:  2,
		Children: [][]block.Block{{s, s}, {}},
	}
	h, err := m.BlockHeight(cols, 600, settings())
	if err != nil {
		t.Fatal(err)
	}
	if h != 100+16+100 {
		t.Fatalf("columns height = %v, want 216", h)
	}
}

func TestOpenResponseScalesWithLines(t *testing.T) {
	m := testMeasurer()
	mk := func(lines int) *block.OpenResponse {
		return &block.OpenResponse{Base: block.Base{Type: block.KindOpenResponse}, Question: "Warum?", Lines: lines}
	}
	h3, err := m.BlockHeight(mk(3), 600, settings())
	if err != nil {
		t.Fatal(err)
	}
	h6, err := m.BlockHeight(mk(6), 600, settings())
	if err != nil {
		t.Fatal(err)
	}
	if h6 <= h3 {
		t.Fatalf("6 lines (%v) not taller than 3 lines (%v)", h6, h3)
	}
}

func TestWordSearchGridScalesWithRows(t *testing.T) {
	m := testMeasurer()
	mk := func(rows int) *block.WordSearch {
		return &block.WordSearch{Base: block.Base{Type: block.KindWordSearch}, GridCols: 10, GridRows: rows}
	}
	h8, err := m.BlockHeight(mk(8), 600, settings())
	if err != nil {
		t.Fatal(err)
	}
	h16, err := m.BlockHeight(mk(16), 600, settings())
	if err != nil {
		t.Fatal(err)
	}
	if h16 != 2*h8 {
		t.Fatalf("16 rows = %v, want double of 8 rows (%v)", h16, h8)
	}
}

func TestNotReadyWithoutFonts(t *testing.T) {
	m := New(t.TempDir()) // no Load, no files
	_, err := m.BlockHeight(&block.Text{Base: block.Base{Type: block.KindText}, Content: "x"}, 600, settings())
	if err != ErrNotReady {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestHeightsOrderMatchesBlocks(t *testing.T) {
	m := testMeasurer()
	blocks := []block.Block{
		&block.Spacer{Base: block.Base{Type: block.KindSpacer}, Height: 10},
		&block.Spacer{Base: block.Base{Type: block.KindSpacer}, Height: 20},
	}
	hs, err := m.Heights(blocks, 600, settings())
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) != 2 || hs[0] != 10 || hs[1] != 20 {
		t.Fatalf("heights = %v", hs)
	}
}
