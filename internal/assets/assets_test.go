package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchImageReturnsDataURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 40, 30))
	}))
	defer srv.Close()

	l := New(WithClient(srv.Client()))
	uri := l.FetchImage(context.Background(), srv.URL+"/img.png")
	if !strings.HasPrefix(uri, "data:image/jpeg;base64,") {
		t.Fatalf("uri prefix = %.40q", uri)
	}
}

func TestFetchImageCachedOncePerURL(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Write(pngBytes(t, 10, 10))
	}))
	defer srv.Close()

	l := New(WithClient(srv.Client()))
	url := srv.URL + "/shared.png"

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.FetchImage(context.Background(), url)
		}()
	}
	wg.Wait()

	if hits != 1 {
		t.Fatalf("server hit %d times, want 1", hits)
	}
	if l.FetchCount() != 1 {
		t.Fatalf("FetchCount = %d, want 1", l.FetchCount())
	}
}

func TestFetchImageFailureNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	l := New(WithClient(srv.Client()))
	if uri := l.FetchImage(context.Background(), srv.URL+"/missing.png"); uri != "" {
		t.Fatalf("uri = %q, want empty", uri)
	}
	// The failure is cached too; no refetch storm on rerender.
	l.FetchImage(context.Background(), srv.URL+"/missing.png")
	if l.FetchCount() != 1 {
		t.Fatalf("FetchCount = %d, want 1", l.FetchCount())
	}
}

func TestFetchImageRejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()

	l := New(WithClient(srv.Client()))
	if uri := l.FetchImage(context.Background(), srv.URL+"/page"); uri != "" {
		t.Fatalf("uri = %q, want empty", uri)
	}
}

func TestEncodeDownscalesToTargetWidth(t *testing.T) {
	l := New(WithTargetWidth(16))
	uri, err := l.encode(pngBytes(t, 64, 32))
	if err != nil {
		t.Fatal(err)
	}
	img := decodeDataURI(t, uri)
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
		t.Fatalf("bounds = %v, want 16x8", img.Bounds())
	}
}

func TestEncodeKeepsSmallImages(t *testing.T) {
	l := New()
	uri, err := l.encode(pngBytes(t, 20, 10))
	if err != nil {
		t.Fatal(err)
	}
	img := decodeDataURI(t, uri)
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Fatalf("bounds = %v, want 20x10", img.Bounds())
	}
}

func TestPrefetchResolvesAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 8, 8))
	}))
	defer srv.Close()

	l := New(WithClient(srv.Client()))
	urls := []string{srv.URL + "/a.png", srv.URL + "/b.png", srv.URL + "/a.png"}
	l.Prefetch(context.Background(), urls)

	if l.FetchCount() != 2 {
		t.Fatalf("FetchCount = %d, want 2 distinct fetches", l.FetchCount())
	}
	for _, u := range urls {
		if l.FetchImage(context.Background(), u) == "" {
			t.Fatalf("url %s not cached", u)
		}
	}
}

func decodeDataURI(t *testing.T, uri string) image.Image {
	t.Helper()
	const prefix = "data:image/jpeg;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("unexpected uri prefix %.40q", uri)
	}
	raw, err := base64.StdEncoding.DecodeString(uri[len(prefix):])
	if err != nil {
		t.Fatal(err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return img
}
