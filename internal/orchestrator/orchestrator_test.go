package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"

	"github.com/local/sheetpress/internal/export"
	"github.com/local/sheetpress/internal/measure"
	"github.com/local/sheetpress/internal/paginate"
	"github.com/local/sheetpress/internal/render"
	"github.com/local/sheetpress/internal/storage"
)

type fakeQueue struct {
	mu        sync.Mutex
	enqueued  [][]byte
	cancelled map[string]bool
	fail      bool
}

func newFakeQueue() *fakeQueue { return &fakeQueue{cancelled: map[string]bool{}} }

func (q *fakeQueue) Enqueue(ctx context.Context, payload []byte) error {
	if q.fail {
		return errors.New("redis down")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, payload)
	return nil
}

func (q *fakeQueue) CancelJob(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled[jobID] = true
	return nil
}

func (q *fakeQueue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled[jobID], nil
}

type fakeStatus struct {
	mu sync.Mutex
	m  map[string]Status
}

func newFakeStatus() *fakeStatus { return &fakeStatus{m: map[string]Status{}} }

func (s *fakeStatus) Set(ctx context.Context, jobID string, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[jobID] = st
	return nil
}

func (s *fakeStatus) Get(ctx context.Context, jobID string) (Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[jobID]
	return st, ok, nil
}

type fakeDocJobs struct {
	mu sync.Mutex
	m  map[string]string
}

func (d *fakeDocJobs) SetDocJobMapping(ctx context.Context, docID, jobID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[docID] = jobID
	return nil
}

func (d *fakeDocJobs) GetJobByDocID(ctx context.Context, docID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.m[docID]; ok {
		return id, nil
	}
	return "", errors.New("not found")
}

func newTestServer(t *testing.T, q *fakeQueue, st *fakeStatus) (*httptest.Server, *fakeDocJobs) {
	t.Helper()
	archives, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	docJobs := &fakeDocJobs{m: map[string]string{}}
	o := New(Dependencies{
		Queue:      q,
		Status:     st,
		DocJobs:    docJobs,
		Archives:   archives,
		Exporter:   export.New(render.NewPDF(""), render.NewCover(""), 1),
		Pager:      paginate.NewEngine(measure.NewStatic(basicfont.Face7x13)),
		JobTimeout: time.Minute,
	})
	mux := http.NewServeMux()
	o.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, docJobs
}

const worksheetJSON = `{
	"id": "doc-1234567890abcdef",
	"title": "Testbogen",
	"blocks": [
		{"id": "h1", "type": "heading", "content": "Übung", "level": 1},
		{"id": "t1", "type": "text", "content": "<p>Hallo Straße</p>"}
	],
	"settings": {"pageSize": "a4", "orientation": "portrait",
		"margins": {"top": 20, "right": 20, "bottom": 20, "left": 20}}
}`

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestExportCollectionCreatesJob(t *testing.T) {
	q := newFakeQueue()
	st := newFakeStatus()
	srv, docJobs := newTestServer(t, q, st)

	resp := postJSON(t, srv.URL+"/export/collection", `{"worksheet": `+worksheetJSON+`}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out exportResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.JobID)

	require.Len(t, q.enqueued, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(q.enqueued[0], &payload))
	assert.Equal(t, out.JobID, payload["job_id"])
	assert.Equal(t, float64(1), payload["attempt"])

	// Status initialized and worksheet mapped to the job.
	got, ok, _ := st.Get(context.Background(), out.JobID)
	require.True(t, ok)
	assert.Equal(t, "queued", got.Status)
	jobID, err := docJobs.GetJobByDocID(context.Background(), "doc-1234567890abcdef")
	require.NoError(t, err)
	assert.Equal(t, out.JobID, jobID)
}

func TestExportCollectionQueueUnavailable(t *testing.T) {
	q := newFakeQueue()
	q.fail = true
	srv, _ := newTestServer(t, q, newFakeStatus())

	resp := postJSON(t, srv.URL+"/export/collection", `{"worksheet": `+worksheetJSON+`}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestExportCollectionRejectsEmptyWorksheet(t *testing.T) {
	srv, _ := newTestServer(t, newFakeQueue(), newFakeStatus())

	resp := postJSON(t, srv.URL+"/export/collection", `{"worksheet": {"id": "x", "blocks": []}}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2 := postJSON(t, srv.URL+"/export/collection", `{broken`)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestProgressEndpoint(t *testing.T) {
	st := newFakeStatus()
	now := time.Now()
	_ = st.Set(context.Background(), "job-1", Status{Status: "processing", Phase: "render", Progress: 42, Start: &now})
	srv, _ := newTestServer(t, newFakeQueue(), st)

	resp, err := http.Get(srv.URL + "/progress/job-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "processing", out["status"])
	assert.Equal(t, float64(42), out["progress"])
	assert.Equal(t, false, out["success"])

	missing, err := http.Get(srv.URL + "/progress/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestDownloadNotReady(t *testing.T) {
	st := newFakeStatus()
	_ = st.Set(context.Background(), "job-2", Status{Status: "processing"})
	srv, _ := newTestServer(t, newFakeQueue(), st)

	resp, err := http.Get(srv.URL + "/download/job-2")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestCancelJob(t *testing.T) {
	q := newFakeQueue()
	st := newFakeStatus()
	_ = st.Set(context.Background(), "job-3", Status{Status: "processing"})
	srv, _ := newTestServer(t, q, st)

	resp := postJSON(t, srv.URL+"/webhook/cancel_job", `{"job_id": "job-3", "reason": "author gave up"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.True(t, q.cancelled["job-3"])
	got, ok, _ := st.Get(context.Background(), "job-3")
	require.True(t, ok)
	assert.Equal(t, "cancelled", got.Status)
	assert.Contains(t, got.Message, "author gave up")
}

func TestRenderPDFSync(t *testing.T) {
	srv, _ := newTestServer(t, newFakeQueue(), newFakeStatus())

	resp := postJSON(t, srv.URL+"/render/pdf", `{"worksheet": `+worksheetJSON+`, "locale": "DE", "mode": "exercise"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestPaginateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, newFakeQueue(), newFakeStatus())

	resp := postJSON(t, srv.URL+"/paginate", `{"worksheet": `+worksheetJSON+`}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Pages []struct {
			BlockIndices []int `json:"blockIndices"`
		} `json:"pages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Pages)
	assert.NotEmpty(t, out.Pages[0].BlockIndices)
}

func TestExtractEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, newFakeQueue(), newFakeStatus())

	resp := postJSON(t, srv.URL+"/extract", `{"worksheet": `+worksheetJSON+`}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out["text"], "Hallo Straße")
}
