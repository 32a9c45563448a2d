// Package assets fetches and normalizes the images a render needs: remote
// worksheet images, brand logos and locale flags. Everything is converted
// to a data URI so the renderers stay free of I/O. Fetch failures are
// non-fatal; a worksheet with a dead image link still renders.
package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/local/sheetpress/internal/metrics"
)

const (
	defaultTargetWidth = 1200
	defaultQuality     = 82
	maxFetchBytes      = 20 << 20
)

// Loader caches processed images per instance. One Loader is created per
// export, so every URL is fetched at most once per collection regardless of
// how many variants reference it.
type Loader struct {
	client      *http.Client
	targetWidth int
	quality     int

	mu       sync.Mutex
	cache    map[string]string
	inflight map[string]chan struct{}
	fetches  atomic.Int64
}

// Option tweaks a Loader.
type Option func(*Loader)

// WithTargetWidth caps the pixel width images are downscaled to.
func WithTargetWidth(w int) Option { return func(l *Loader) { l.targetWidth = w } }

// WithQuality sets the JPEG re-encode quality.
func WithQuality(q int) Option { return func(l *Loader) { l.quality = q } }

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) Option { return func(l *Loader) { l.client = c } }

// New returns a Loader with sane defaults.
func New(opts ...Option) *Loader {
	l := &Loader{
		client:      &http.Client{Timeout: 30 * time.Second},
		targetWidth: defaultTargetWidth,
		quality:     defaultQuality,
		cache:       map[string]string{},
		inflight:    map[string]chan struct{}{},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// FetchCount reports how many network fetches actually happened. Cached and
// coalesced requests do not count.
func (l *Loader) FetchCount() int64 { return l.fetches.Load() }

// FetchImage downloads, normalizes and caches one image URL. Returns "" on
// any failure after logging a warning.
func (l *Loader) FetchImage(ctx context.Context, url string) string {
	if url == "" {
		return ""
	}
	for {
		l.mu.Lock()
		if uri, ok := l.cache[url]; ok {
			l.mu.Unlock()
			return uri
		}
		if ch, ok := l.inflight[url]; ok {
			l.mu.Unlock()
			select {
			case <-ch:
				continue // cache is populated now
			case <-ctx.Done():
				return ""
			}
		}
		ch := make(chan struct{})
		l.inflight[url] = ch
		l.mu.Unlock()

		uri, err := l.fetch(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("image fetch failed")
			metrics.IncAssetFetch("error")
			uri = ""
		} else {
			metrics.IncAssetFetch("ok")
		}
		l.mu.Lock()
		l.cache[url] = uri
		delete(l.inflight, url)
		l.mu.Unlock()
		close(ch)
		return uri
	}
}

func (l *Loader) fetch(ctx context.Context, url string) (string, error) {
	l.fetches.Add(1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", err
	}
	return l.encode(data)
}

// LoadLocal reads a bundled asset (logo, flag) from disk. SVG passes
// through untouched; raster formats get the same normalization as remote
// images.
func (l *Loader) LoadLocal(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read asset %s: %w", path, err)
	}
	mt := mimetype.Detect(data)
	if mt.Is("image/svg+xml") || mt.Is("text/xml") {
		return dataURI("image/svg+xml", data), nil
	}
	return l.encode(data)
}

// Prefetch resolves a set of URLs concurrently, bounded to keep a large
// cover-image list from stampeding the origin.
func (l *Loader) Prefetch(ctx context.Context, urls []string) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			l.FetchImage(ctx, u)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
}

// encode sniffs, decodes, flattens transparency onto white, downscales and
// re-encodes as JPEG data URI.
func (l *Loader) encode(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/jpeg"), mt.Is("image/png"), mt.Is("image/gif"):
	default:
		return "", fmt.Errorf("unsupported content type %s", mt.String())
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > l.targetWidth {
		h = h * l.targetWidth / w
		w = l.targetWidth
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: l.quality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return dataURI("image/jpeg", buf.Bytes()), nil
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
