package paginate

import (
	"context"
	"math"
	"testing"

	"golang.org/x/image/font/basicfont"

	"github.com/local/sheetpress/internal/block"
	"github.com/local/sheetpress/internal/measure"
)

func TestGeometryA4Portrait(t *testing.T) {
	s := block.DefaultSettings()
	geo := NewGeometry(s)
	if math.Abs(geo.PageWidth-210*MMToPx) > 1e-9 {
		t.Fatalf("page width = %v", geo.PageWidth)
	}
	if math.Abs(geo.PageHeight-297*MMToPx) > 1e-9 {
		t.Fatalf("page height = %v", geo.PageHeight)
	}
	// 20mm margins top+bottom.
	want := (297 - 40) * MMToPx
	if math.Abs(geo.ContentHeight-want) > 1e-9 {
		t.Fatalf("content height = %v, want %v", geo.ContentHeight, want)
	}
}

func TestGeometryLetterLandscape(t *testing.T) {
	s := block.DefaultSettings()
	s.PageSize = "letter"
	s.Orientation = "landscape"
	geo := NewGeometry(s)
	if math.Abs(geo.PageWidth-279*MMToPx) > 1e-9 || math.Abs(geo.PageHeight-216*MMToPx) > 1e-9 {
		t.Fatalf("letter landscape = %vx%v", geo.PageWidth, geo.PageHeight)
	}
}

func TestGeometryUnknownSizeFallsBackToA4(t *testing.T) {
	s := block.DefaultSettings()
	s.PageSize = "tabloid"
	geo := NewGeometry(s)
	if math.Abs(geo.PageWidth-210*MMToPx) > 1e-9 {
		t.Fatalf("fallback width = %v", geo.PageWidth)
	}
}

func TestPackAllFitOnePage(t *testing.T) {
	pages := Pack([]float64{10, 20, 14}, 100)
	if len(pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(pages))
	}
	assertIndices(t, pages[0], 0, 1, 2)
}

func TestPackGapForcesBreak(t *testing.T) {
	// 30 + 24 + 60 = 114 > 100, and 60 + 24 + 40 = 124 > 100: every block
	// lands on its own page even though each fits alone.
	pages := Pack([]float64{30, 60, 40}, 100)
	if len(pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(pages))
	}
	assertIndices(t, pages[0], 0)
	assertIndices(t, pages[1], 1)
	assertIndices(t, pages[2], 2)
}

func TestPackOversizedBlockGetsOwnPage(t *testing.T) {
	pages := Pack([]float64{500, 10}, 100)
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	assertIndices(t, pages[0], 0)
	assertIndices(t, pages[1], 1)
}

func TestPackOversizedFirstOnNewPage(t *testing.T) {
	// The oversized block opens page 2 and is still placed there.
	pages := Pack([]float64{90, 500}, 100)
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	assertIndices(t, pages[1], 1)
}

func TestPackEmptyYieldsOneEmptyPage(t *testing.T) {
	pages := Pack(nil, 100)
	if len(pages) != 1 || len(pages[0].BlockIndices) != 0 {
		t.Fatalf("pages = %+v, want one empty page", pages)
	}
}

func TestPackCoversEveryBlockOnce(t *testing.T) {
	heights := []float64{40, 40, 40, 40, 40, 40, 40}
	pages := Pack(heights, 130)
	seen := map[int]bool{}
	last := -1
	for _, p := range pages {
		for _, idx := range p.BlockIndices {
			if seen[idx] {
				t.Fatalf("index %d assigned twice", idx)
			}
			if idx != last+1 {
				t.Fatalf("indices out of order: %d after %d", idx, last)
			}
			seen[idx] = true
			last = idx
		}
	}
	if len(seen) != len(heights) {
		t.Fatalf("covered %d of %d blocks", len(seen), len(heights))
	}
}

func engineDoc(blocks ...block.Block) block.Document {
	return block.Document{ID: "doc-1", Blocks: blocks, Settings: block.DefaultSettings()}
}

func TestEngineRunSkipsOnlineOnlyBlocks(t *testing.T) {
	e := NewEngine(measure.NewStatic(basicfont.Face7x13))
	doc := engineDoc(
		&block.Spacer{Base: block.Base{ID: "a", Type: block.KindSpacer, Visibility: block.VisibilityOnline}, Height: 50},
		&block.Spacer{Base: block.Base{ID: "b", Type: block.KindSpacer}, Height: 50},
	)
	res, err := e.Run(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pages) != 1 {
		t.Fatalf("pages = %d", len(res.Pages))
	}
	// Only the print-visible block is indexed.
	assertIndices(t, res.Pages[0], 0)
}

func TestEngineRunEmptyDocument(t *testing.T) {
	e := NewEngine(measure.NewStatic(basicfont.Face7x13))
	res, err := e.Run(context.Background(), engineDoc())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pages) != 1 || len(res.Pages[0].BlockIndices) != 0 {
		t.Fatalf("pages = %+v, want one empty page", res.Pages)
	}
}

func TestEngineRunNotReadyPassesThrough(t *testing.T) {
	e := NewEngine(measure.New(t.TempDir()))
	doc := engineDoc(&block.Text{Base: block.Base{ID: "t", Type: block.KindText}, Content: "x"})
	_, err := e.Run(context.Background(), doc)
	if err != measure.ErrNotReady {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func assertIndices(t *testing.T, p Page, want ...int) {
	t.Helper()
	if len(p.BlockIndices) != len(want) {
		t.Fatalf("indices = %v, want %v", p.BlockIndices, want)
	}
	for i, idx := range want {
		if p.BlockIndices[i] != idx {
			t.Fatalf("indices = %v, want %v", p.BlockIndices, want)
		}
	}
}
