// Package paginate splits a worksheet's visible blocks into print pages.
// Geometry converts page dimensions from millimetres to CSS pixels, Pack is
// the pure greedy fitting pass, and Engine ties measurement and packing
// together with a staleness guard for concurrent edits.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/local/sheetpress/internal/block"
	"github.com/local/sheetpress/internal/measure"
)

// MMToPx converts millimetres to CSS pixels at 96 DPI.
const MMToPx = 96.0 / 25.4

// BlockGap is the vertical gap between stacked blocks in px.
const BlockGap = 24.0

type pageDims struct{ w, h float64 }

var pageSizes = map[string]pageDims{
	"a4":     {210, 297},
	"letter": {216, 279},
}

// Geometry is the resolved page box for one settings combination. All values
// in px.
type Geometry struct {
	PageWidth     float64
	PageHeight    float64
	ContentWidth  float64
	ContentHeight float64
}

// NewGeometry resolves page size, orientation and margins. Header and footer
// live inside the vertical margins, so only the margins themselves reduce
// the content box.
func NewGeometry(s block.Settings) Geometry {
	dims, ok := pageSizes[s.PageSize]
	if !ok {
		dims = pageSizes["a4"]
	}
	if s.Orientation == "landscape" {
		dims.w, dims.h = dims.h, dims.w
	}
	pw := dims.w * MMToPx
	ph := dims.h * MMToPx
	return Geometry{
		PageWidth:     pw,
		PageHeight:    ph,
		ContentWidth:  pw - (s.Margins.Left+s.Margins.Right)*MMToPx,
		ContentHeight: ph - (s.Margins.Top+s.Margins.Bottom)*MMToPx,
	}
}

// Page holds indices into the measured block slice.
type Page struct {
	BlockIndices []int `json:"blockIndices"`
}

// Pack greedily fills pages top to bottom. The first block of a page is
// always placed, even when taller than the page, so an oversized block
// occupies exactly one page instead of looping forever. No visible blocks
// yields a single empty page.
func Pack(heights []float64, contentHeight float64) []Page {
	if len(heights) == 0 {
		return []Page{{BlockIndices: []int{}}}
	}
	var pages []Page
	current := Page{BlockIndices: []int{}}
	used := 0.0
	for i, h := range heights {
		need := h
		if len(current.BlockIndices) > 0 {
			need += BlockGap
		}
		if len(current.BlockIndices) > 0 && used+need > contentHeight {
			pages = append(pages, current)
			current = Page{BlockIndices: []int{i}}
			used = h
			continue
		}
		current.BlockIndices = append(current.BlockIndices, i)
		used += need
	}
	return append(pages, current)
}

// Result is one finished pagination run.
type Result struct {
	Pages    []Page   `json:"pages"`
	Geometry Geometry `json:"geometry"`
}

// Engine recomputes pagination on demand. Concurrent triggers race freely;
// the generation counter makes sure only the latest run's result is
// published.
type Engine struct {
	measurer   *measure.Measurer
	generation atomic.Uint64
}

// NewEngine wraps a measurer.
func NewEngine(m *measure.Measurer) *Engine {
	return &Engine{measurer: m}
}

// ErrStale marks a run that was superseded while measuring.
var ErrStale = errors.New("paginate: run superseded")

// Run paginates the document's print-visible blocks. Returns ErrStale when
// a newer Run started in the meantime, and measure.ErrNotReady untouched so
// callers can silently retry later.
func (e *Engine) Run(ctx context.Context, doc block.Document) (Result, error) {
	gen := e.generation.Add(1)

	visible := block.Visible(doc.Blocks, block.ModePrint)
	geo := NewGeometry(doc.Settings)

	heights, err := e.measurer.Heights(visible, geo.ContentWidth, doc.Settings)
	if err != nil {
		if errors.Is(err, measure.ErrNotReady) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("measure blocks: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if e.generation.Load() != gen {
		log.Debug().Str("doc_id", doc.ID).Uint64("generation", gen).Msg("pagination run superseded")
		return Result{}, ErrStale
	}
	pages := Pack(heights, geo.ContentHeight)
	log.Debug().Str("doc_id", doc.ID).Int("blocks", len(visible)).Int("pages", len(pages)).Msg("paginated")
	return Result{Pages: pages, Geometry: geo}, nil
}
