// Package export renders a worksheet into its full collection: exercise and
// solutions PDFs per locale plus cover PNGs, packaged as one zip archive.
// The run is all-or-nothing; a collection with a missing variant is worse
// than a failed job the author can retry.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/local/sheetpress/internal/assets"
	"github.com/local/sheetpress/internal/block"
	"github.com/local/sheetpress/internal/locale"
	"github.com/local/sheetpress/internal/render"
)

// ErrNoContent marks input that cannot produce a collection.
var ErrNoContent = errors.New("export: worksheet has no blocks")

// VariantKind separates cover images from worksheet documents.
type VariantKind string

const (
	KindCover    VariantKind = "cover"
	KindDocument VariantKind = "document"
)

// VariantMode is the exercise/solutions axis. ModeComplete bundles both
// into a single PDF with the solutions appended.
type VariantMode string

const (
	ModeExercise  VariantMode = "exercise"
	ModeSolutions VariantMode = "solutions"
	ModeComplete  VariantMode = "complete"
)

// Variant names one artifact of the collection.
type Variant struct {
	Locale locale.Mode `json:"locale"`
	Mode   VariantMode `json:"mode,omitempty"`
	Kind   VariantKind `json:"kind"`
}

// DefaultVariants is the standard collection: per locale one cover, the
// exercise sheet and the solutions sheet.
func DefaultVariants() []Variant {
	var out []Variant
	for _, loc := range []locale.Mode{locale.ModeDE, locale.ModeCH} {
		out = append(out,
			Variant{Locale: loc, Kind: KindCover},
			Variant{Locale: loc, Mode: ModeExercise, Kind: KindDocument},
			Variant{Locale: loc, Mode: ModeSolutions, Kind: KindDocument},
		)
	}
	return out
}

// Filename derives the artifact name inside the archive.
func Filename(shortID string, v Variant) string {
	name := shortID + "_" + string(v.Locale)
	switch v.Mode {
	case ModeSolutions:
		name += "_solutions"
	case ModeComplete:
		name += "_complete"
	}
	if v.Kind == KindCover {
		return name + ".png"
	}
	return name + ".pdf"
}

// ArchiveName derives the zip filename for a worksheet.
func ArchiveName(doc block.Document) string {
	return doc.ShortID() + "_collection.zip"
}

// Progress reports phase completion to the caller (job status updates).
type Progress func(phase string, done, total int)

// Request describes one collection run.
type Request struct {
	Doc      block.Document
	Variants []Variant
	Progress Progress
}

// PDFBackend renders a lowered box doc to PDF bytes.
type PDFBackend interface {
	Render(render.Doc) ([]byte, error)
}

// CoverBackend paints a cover spec to PNG bytes.
type CoverBackend interface {
	Render(render.CoverSpec) ([]byte, error)
}

// Exporter owns the renderers shared across jobs. Each run builds its own
// asset loader so per-URL fetch caching is scoped to the collection.
type Exporter struct {
	PDF         PDFBackend
	Cover       CoverBackend
	Concurrency int
	AssetOpts   []assets.Option
}

// New wires an exporter.
func New(pdf PDFBackend, cover CoverBackend, concurrency int) *Exporter {
	if concurrency < 1 {
		concurrency = 2
	}
	return &Exporter{PDF: pdf, Cover: cover, Concurrency: concurrency}
}

type artifact struct {
	name string
	data []byte
}

// Run produces the complete archive. Returns the zip filename and bytes.
func (e *Exporter) Run(ctx context.Context, req Request) (string, []byte, error) {
	start := time.Now()
	doc := req.Doc
	if len(doc.Blocks) == 0 {
		return "", nil, ErrNoContent
	}
	variants := req.Variants
	if len(variants) == 0 {
		variants = DefaultVariants()
	}
	progress := req.Progress
	if progress == nil {
		progress = func(string, int, int) {}
	}

	// Phase 1: shared preparation, once for all variants. Assets are
	// fetched into a collection-scoped cache and the canonical data is
	// alphabetized before any locale fork, so DE and CH stay in step.
	loader := assets.New(e.AssetOpts...)
	loader.Prefetch(ctx, sharedAssetURLs(doc))
	doc = sortCanonical(doc)
	progress("prepare", 1, 1)

	// Phase 2: render every variant; the first error cancels the rest.
	arts := make([]artifact, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Concurrency)
	var mu sync.Mutex
	rendered := 0
	for i, v := range variants {
		i, v := i, v
		g.Go(func() error {
			data, err := e.renderVariant(gctx, doc, v, loader)
			if err != nil {
				return fmt.Errorf("%s: %w", Filename(doc.ShortID(), v), err)
			}
			arts[i] = artifact{name: Filename(doc.ShortID(), v), data: data}
			mu.Lock()
			rendered++
			progress("render", rendered, len(variants))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, fmt.Errorf("collection generation failed: %w", err)
	}

	// Phase 3: package.
	data, err := packArchive(arts)
	if err != nil {
		return "", nil, fmt.Errorf("collection generation failed: %w", err)
	}
	progress("package", 1, 1)

	log.Info().
		Str("doc_id", doc.ID).
		Int("variants", len(variants)).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("collection exported")
	return ArchiveName(doc), data, nil
}

func (e *Exporter) renderVariant(ctx context.Context, doc block.Document, v Variant, loader *assets.Loader) ([]byte, error) {
	localized := localize(doc, v.Locale)

	if v.Kind == KindCover {
		spec := render.BuildCover(localized, string(v.Locale))
		spec.Images = resolveImages(ctx, loader, spec.Images)
		return e.Cover.Render(spec)
	}

	switch v.Mode {
	case ModeSolutions:
		return e.renderPDF(ctx, localized, render.ModeSolutions, loader)
	case ModeComplete:
		boxes := render.BuildDoc(ctx, localized, render.ModeExercise, loader)
		sol := render.BuildDoc(ctx, localized, render.ModeSolutions, loader)
		boxes.Boxes = append(boxes.Boxes, sol.Boxes...)
		return e.finishPDF(boxes)
	default:
		return e.renderPDF(ctx, localized, render.ModeExercise, loader)
	}
}

func (e *Exporter) renderPDF(ctx context.Context, doc block.Document, mode render.Mode, loader *assets.Loader) ([]byte, error) {
	return e.finishPDF(render.BuildDoc(ctx, doc, mode, loader))
}

func (e *Exporter) finishPDF(boxDoc render.Doc) ([]byte, error) {
	data, err := e.PDF.Render(boxDoc)
	if err != nil {
		return nil, err
	}
	if _, err := render.ValidatePDF(data); err != nil {
		return nil, err
	}
	return data, nil
}

// localize produces the variant's view of the document. DACH is the
// locale-neutral label and renders the canonical DE text.
func localize(doc block.Document, loc locale.Mode) block.Document {
	if loc != locale.ModeCH {
		return doc
	}
	ov := doc.Settings.CHOverrides
	out := doc
	out.Title = locale.EffectiveTitle(doc.Title, locale.ModeCH, ov)
	out.Blocks = locale.Apply(doc.Blocks, ov)
	out.Settings = locale.TransformSettings(doc.Settings)
	return out
}

// resolveImages swaps remote URLs for their cached data URIs.
func resolveImages(ctx context.Context, loader *assets.Loader, urls []string) []string {
	var out []string
	for _, u := range urls {
		if strings.HasPrefix(u, "data:") {
			out = append(out, u)
			continue
		}
		if uri := loader.FetchImage(ctx, u); uri != "" {
			out = append(out, uri)
		}
	}
	return out
}

// sharedAssetURLs collects every remote image the collection will need.
func sharedAssetURLs(doc block.Document) []string {
	seen := map[string]bool{}
	var urls []string
	add := func(u string) {
		if u != "" && !strings.HasPrefix(u, "data:") && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	for _, u := range doc.Settings.CoverImages {
		add(u)
	}
	var walk func([]block.Block)
	walk = func(blocks []block.Block) {
		for _, b := range blocks {
			switch v := b.(type) {
			case *block.Image:
				add(v.Src)
			case *block.Text:
				add(v.ImageSrc)
			case *block.ImageCards:
				for _, it := range v.Items {
					add(it.Src)
				}
			case *block.Columns:
				for _, col := range v.Children {
					walk(col)
				}
			}
		}
	}
	walk(doc.Blocks)
	return urls
}

// sortCanonical alphabetizes order-insensitive lists once on the canonical
// data, before any locale transform, so every variant shows the same order.
// German collation; a leading "sich " (reflexive verbs) is ignored.
func sortCanonical(doc block.Document) block.Document {
	c := collate.New(language.German)
	key := func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), "sich ")
	}
	less := func(a, b string) bool {
		return c.CompareString(key(a), key(b)) < 0
	}

	out := doc
	out.Blocks = make([]block.Block, len(doc.Blocks))
	for i, b := range doc.Blocks {
		out.Blocks[i] = sortBlock(b, less)
	}
	return out
}

func sortBlock(b block.Block, less func(a, b string) bool) block.Block {
	switch v := b.(type) {
	case *block.Glossary:
		c := *v
		c.Pairs = append([]block.GlossaryPair(nil), v.Pairs...)
		sort.SliceStable(c.Pairs, func(i, j int) bool {
			return less(c.Pairs[i].Term, c.Pairs[j].Term)
		})
		return &c
	case *block.WordBank:
		c := *v
		c.Words = append([]string(nil), v.Words...)
		sort.SliceStable(c.Words, func(i, j int) bool {
			return less(c.Words[i], c.Words[j])
		})
		return &c
	case *block.Columns:
		c := *v
		c.Children = make([][]block.Block, len(v.Children))
		for i, col := range v.Children {
			c.Children[i] = make([]block.Block, len(col))
			for j, child := range col {
				c.Children[i][j] = sortBlock(child, less)
			}
		}
		return &c
	default:
		return b
	}
}

// packArchive zips the artifacts through a pipe. The reader goroutine is
// attached and draining before the writer closes, so a large collection
// never deadlocks on pipe backpressure.
func packArchive(arts []artifact) ([]byte, error) {
	pr, pw := io.Pipe()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(pr)
		done <- result{data: data, err: err}
	}()

	zw := zip.NewWriter(pw)
	writeErr := func() error {
		for _, a := range arts {
			w, err := zw.CreateHeader(&zip.FileHeader{Name: a.name, Method: zip.Deflate})
			if err != nil {
				return fmt.Errorf("zip entry %s: %w", a.name, err)
			}
			if _, err := w.Write(a.data); err != nil {
				return fmt.Errorf("zip write %s: %w", a.name, err)
			}
		}
		return zw.Close()
	}()
	pw.CloseWithError(writeErr)

	res := <-done
	if writeErr != nil {
		return nil, writeErr
	}
	if res.err != nil {
		return nil, fmt.Errorf("drain archive: %w", res.err)
	}
	return res.data, nil
}
