// Package orchestrator exposes the HTTP API: synchronous single-variant
// renders, pagination and text extraction for the editor, plus the
// asynchronous collection export pipeline (enqueue, progress, download).
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/sheetpress/internal/block"
	"github.com/local/sheetpress/internal/export"
	"github.com/local/sheetpress/internal/extract"
	"github.com/local/sheetpress/internal/locale"
	"github.com/local/sheetpress/internal/measure"
	"github.com/local/sheetpress/internal/metrics"
	"github.com/local/sheetpress/internal/paginate"
	"github.com/local/sheetpress/internal/render"
	"github.com/local/sheetpress/internal/statuscheck"
	"github.com/local/sheetpress/internal/storage"
	"github.com/local/sheetpress/internal/thumbnail"
)

// Queue is the queue surface the API needs.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
	CancelJob(ctx context.Context, jobID string) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
}

// Status mirrors the stored job state for API responses.
type Status struct {
	Status   string
	Phase    string
	Progress int
	Message  string
	Archive  string
	Start    *time.Time
	End      *time.Time
	Metadata map[string]any
}

// StatusStore abstracts the Redis-backed job status hash.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st Status) error
	Get(ctx context.Context, jobID string) (Status, bool, error)
}

// DocJobs maps worksheet ids to their latest export job.
type DocJobs interface {
	SetDocJobMapping(ctx context.Context, docID, jobID string) error
	GetJobByDocID(ctx context.Context, docID string) (string, error)
}

// Dependencies wires the API to the rest of the service.
type Dependencies struct {
	Queue      Queue
	Status     StatusStore
	DocJobs    DocJobs
	Archives   *storage.LocalStore
	Exporter   *export.Exporter
	Pager      *paginate.Engine
	Checker    *statuscheck.Checker
	JobTimeout time.Duration
	Thumbnail  thumbnail.Options
}

type Orchestrator struct {
	deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
	if deps.JobTimeout <= 0 {
		deps.JobTimeout = 5 * time.Minute
	}
	return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", o.handleStatus)
	mux.HandleFunc("/render/pdf", o.handleRenderPDF)
	mux.HandleFunc("/render/thumbnail", o.handleThumbnail)
	mux.HandleFunc("/paginate", o.handlePaginate)
	mux.HandleFunc("/extract", o.handleExtract)
	mux.HandleFunc("/export/collection", o.handleExportCollection)
	mux.HandleFunc("/progress/", o.handleProgress)
	mux.HandleFunc("/download/", o.handleDownload)
	mux.HandleFunc("/jobs/by_doc/", o.handleJobByDoc)
	mux.HandleFunc("/webhook/cancel_job", o.handleCancelJob)
}

// renderReq is the body of the synchronous render endpoints.
type renderReq struct {
	Worksheet json.RawMessage `json:"worksheet"`
	Locale    string          `json:"locale"`
	Mode      string          `json:"mode"`
	Page      int             `json:"page,omitempty"`
}

func (o *Orchestrator) decodeWorksheet(w http.ResponseWriter, r *http.Request, raw json.RawMessage) (block.Document, bool) {
	var doc block.Document
	if len(raw) == 0 {
		http.Error(w, "missing worksheet", http.StatusBadRequest)
		return doc, false
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		http.Error(w, fmt.Sprintf("invalid worksheet: %v", err), http.StatusBadRequest)
		return doc, false
	}
	return doc, true
}

// renderSingle produces one localized PDF variant synchronously.
func (o *Orchestrator) renderSingle(ctx context.Context, doc block.Document, loc locale.Mode, mode render.Mode) ([]byte, error) {
	localized := doc
	if loc == locale.ModeCH {
		localized.Title = locale.EffectiveTitle(doc.Title, loc, doc.Settings.CHOverrides)
		localized.Blocks = locale.Apply(doc.Blocks, doc.Settings.CHOverrides)
		localized.Settings = locale.TransformSettings(doc.Settings)
	}
	boxDoc := render.BuildDoc(ctx, localized, mode, nil)
	data, err := o.deps.Exporter.PDF.Render(boxDoc)
	if err != nil {
		return nil, err
	}
	if _, err := render.ValidatePDF(data); err != nil {
		return nil, err
	}
	return data, nil
}

func parseLocale(s string) locale.Mode {
	switch strings.ToUpper(s) {
	case "CH":
		return locale.ModeCH
	case "DACH":
		return locale.ModeDACH
	default:
		return locale.ModeDE
	}
}

func parseMode(s string) render.Mode {
	if strings.EqualFold(s, "solutions") {
		return render.ModeSolutions
	}
	return render.ModeExercise
}

func (o *Orchestrator) handleRenderPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req renderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	doc, ok := o.decodeWorksheet(w, r, req.Worksheet)
	if !ok {
		return
	}

	start := time.Now()
	data, err := o.renderSingle(r.Context(), doc, parseLocale(req.Locale), parseMode(req.Mode))
	if err != nil {
		metrics.ObserveRender("pdf", "error", time.Since(start))
		log.Error().Err(err).Str("doc_id", doc.ID).Msg("sync render failed")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveRender("pdf", "ok", time.Since(start))

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", doc.ShortID()))
	_, _ = w.Write(data)
}

func (o *Orchestrator) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req renderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	doc, ok := o.decodeWorksheet(w, r, req.Worksheet)
	if !ok {
		return
	}

	start := time.Now()
	pdf, err := o.renderSingle(r.Context(), doc, parseLocale(req.Locale), render.ModeExercise)
	if err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	img, _, _, err := thumbnail.FromPDF(pdf, req.Page, o.deps.Thumbnail)
	if err != nil {
		metrics.ObserveRender("thumbnail", "error", time.Since(start))
		log.Error().Err(err).Str("doc_id", doc.ID).Msg("thumbnail failed")
		http.Error(w, "thumbnail failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveRender("thumbnail", "ok", time.Since(start))

	if o.deps.Thumbnail.JPEG {
		w.Header().Set("Content-Type", "image/jpeg")
	} else {
		w.Header().Set("Content-Type", "image/png")
	}
	_, _ = w.Write(img)
}

func (o *Orchestrator) handlePaginate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req renderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	doc, ok := o.decodeWorksheet(w, r, req.Worksheet)
	if !ok {
		return
	}

	res, err := o.deps.Pager.Run(r.Context(), doc)
	switch {
	case err == nil:
	case errors.Is(err, paginate.ErrStale):
		metrics.IncPagination("stale")
		http.Error(w, "superseded by a newer layout request", http.StatusConflict)
		return
	case errors.Is(err, measure.ErrNotReady):
		metrics.IncPagination("not_ready")
		http.Error(w, "fonts not loaded yet", http.StatusServiceUnavailable)
		return
	default:
		metrics.IncPagination("error")
		log.Error().Err(err).Str("doc_id", doc.ID).Msg("pagination failed")
		http.Error(w, "pagination failed", http.StatusInternalServerError)
		return
	}
	metrics.IncPagination("ok")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func (o *Orchestrator) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req renderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	doc, ok := o.decodeWorksheet(w, r, req.Worksheet)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"text": extract.Document(doc)})
}

type exportReq struct {
	Worksheet      json.RawMessage  `json:"worksheet"`
	Variants       []export.Variant `json:"variants,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	Source         string           `json:"source,omitempty"`
}

type exportResp struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

func (o *Orchestrator) handleExportCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req exportReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	doc, ok := o.decodeWorksheet(w, r, req.Worksheet)
	if !ok {
		return
	}
	if len(doc.Blocks) == 0 {
		http.Error(w, "worksheet has no blocks", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	source := req.Source
	if source == "" {
		source = "api"
	}

	payload, _ := json.Marshal(map[string]any{
		"job_id":          jobID,
		"worksheet":       req.Worksheet,
		"variants":        req.Variants,
		"idempotency_key": req.IdempotencyKey,
		"attempt":         1,
		"source":          source,
	})

	start := time.Now()
	if err := o.deps.Status.Set(r.Context(), jobID, Status{Status: "queued", Progress: 0, Message: "queued", Start: &start,
		Metadata: map[string]any{"doc_id": doc.ID, "source": source}}); err != nil {
		log.Error().Err(err).Msg("status init failed")
	}
	if err := o.deps.Queue.Enqueue(r.Context(), payload); err != nil {
		log.Error().Err(err).Msg("enqueue failed")
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}
	if o.deps.DocJobs != nil && doc.ID != "" {
		_ = o.deps.DocJobs.SetDocJobMapping(r.Context(), doc.ID, jobID)
	}

	log.Info().Str("job_id", jobID).Str("doc_id", doc.ID).Str("source", source).Msg("export job created")
	go o.monitorJob(jobID, o.deps.JobTimeout)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(exportResp{Status: "ok", JobID: jobID, Message: "Collection export job created"})
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/progress/")
	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":    st.Status == "success",
		"job_id":     id,
		"status":     st.Status,
		"phase":      st.Phase,
		"progress":   st.Progress,
		"message":    st.Message,
		"archive":    st.Archive,
		"start_time": st.Start,
		"end_time":   st.End,
	})
}

func (o *Orchestrator) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/download/")
	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil || !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if st.Status != "success" {
		http.Error(w, "not ready", http.StatusAccepted)
		return
	}
	name, data, err := o.deps.Archives.Open(id)
	if err != nil {
		http.Error(w, "archive expired or missing", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	_, _ = w.Write(data)
}

func (o *Orchestrator) handleJobByDoc(w http.ResponseWriter, r *http.Request) {
	docID := strings.TrimPrefix(r.URL.Path, "/jobs/by_doc/")
	if docID == "" || o.deps.DocJobs == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	jobID, err := o.deps.DocJobs.GetJobByDocID(r.Context(), docID)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"job_id": jobID})
}

type cancelReq struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason,omitempty"`
}

func (o *Orchestrator) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.JobID == "" {
		http.Error(w, "missing job_id", http.StatusBadRequest)
		return
	}
	if err := o.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
		http.Error(w, "cancel failed", http.StatusInternalServerError)
		return
	}
	st, ok, _ := o.deps.Status.Get(r.Context(), req.JobID)
	if !ok {
		st = Status{}
	}
	st.Status = "cancelled"
	st.Progress = 0
	if req.Reason != "" {
		st.Message = fmt.Sprintf("Cancelled: %s", req.Reason)
	} else {
		st.Message = "Cancelled"
	}
	now := time.Now()
	st.End = &now
	_ = o.deps.Status.Set(r.Context(), req.JobID, st)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "job_id": req.JobID, "status": "cancelled"})
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
	if o.deps.Checker == nil {
		http.Error(w, "checker unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(o.deps.Checker.Summary(r.Context()))
}
