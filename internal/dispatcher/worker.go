// Package dispatcher runs the export worker pool: it pulls collection jobs
// off the queue, renders them through the exporter and persists the
// resulting archives.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/sheetpress/internal/block"
	"github.com/local/sheetpress/internal/export"
	"github.com/local/sheetpress/internal/limiter"
	"github.com/local/sheetpress/internal/metrics"
	"github.com/local/sheetpress/internal/storage"
	"github.com/local/sheetpress/internal/store"
)

// Job is the queued payload for one collection export.
type Job struct {
	JobID          string           `json:"job_id"`
	Worksheet      json.RawMessage  `json:"worksheet"`
	Variants       []export.Variant `json:"variants,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	Attempt        int              `json:"attempt"`
	Source         string           `json:"source,omitempty"`
}

// Queue is the queue surface the worker needs.
type Queue interface {
	Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error)
	EnqueueDelayed(ctx context.Context, payload []byte, executeAt time.Time) error
	Ack(ctx context.Context, msgID string) error
	AddDLQ(ctx context.Context, payload []byte, reason string) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
	IsIdemDone(ctx context.Context, key string) (bool, error)
	MarkIdemDone(ctx context.Context, key string, ttl time.Duration) error
}

// StatusStore is the job status surface the worker needs.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// Config defines worker behavior and limits.
type Config struct {
	Concurrency        int
	JobTimeout         time.Duration
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	RetryJitter        time.Duration
	RetryBackoffFactor float64
	IdemTTL            time.Duration
}

// Worker is the export worker pool.
type Worker struct {
	cfg      Config
	q        Queue
	status   StatusStore
	exporter *export.Exporter
	guard    *limiter.Guard
	archives *storage.LocalStore
	s3       *storage.S3Client // nil when S3 upload is disabled
	stop     chan struct{}
}

// New wires a worker pool.
func New(cfg Config, q Queue, status StatusStore, exporter *export.Exporter, guard *limiter.Guard, archives *storage.LocalStore, s3 *storage.S3Client) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 3 * time.Minute
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if cfg.RetryBackoffFactor <= 1 {
		cfg.RetryBackoffFactor = 2.0
	}
	if cfg.IdemTTL <= 0 {
		cfg.IdemTTL = 24 * time.Hour
	}
	return &Worker{cfg: cfg, q: q, status: status, exporter: exporter, guard: guard, archives: archives, s3: s3, stop: make(chan struct{})}
}

func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		go w.loop(i)
	}
}

func (w *Worker) Stop(ctx context.Context) error {
	close(w.stop)
	return nil
}

func (w *Worker) loop(id int) {
	consumer := fmt.Sprintf("worker-%d", id)
	log.Info().Int("worker", id).Msg("export worker started")
	for {
		select {
		case <-w.stop:
			log.Info().Int("worker", id).Msg("export worker stopped")
			return
		default:
		}

		msgID, data, err := w.q.Dequeue(context.Background(), consumer, 2*time.Second)
		if err != nil {
			log.Error().Err(err).Msg("queue dequeue error")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if data == nil {
			continue
		}
		w.process(msgID, data)
	}
}

func (w *Worker) process(msgID string, data []byte) {
	ctx := context.Background()
	defer func() { _ = w.q.Ack(ctx, msgID) }()

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		log.Error().Err(err).Msg("malformed job payload; sending to DLQ")
		_ = w.q.AddDLQ(ctx, data, "malformed payload")
		metrics.IncExportJob("dlq")
		return
	}

	var doc block.Document
	if err := json.Unmarshal(job.Worksheet, &doc); err != nil {
		w.fail(ctx, job, data, &InputError{Reason: err.Error()})
		return
	}

	if job.IdempotencyKey != "" {
		if done, _ := w.q.IsIdemDone(ctx, job.IdempotencyKey); done {
			log.Info().Str("job_id", job.JobID).Msg("duplicate job skipped (idempotency)")
			return
		}
	}

	if cancelled, _ := w.q.IsCancelled(ctx, job.JobID); cancelled {
		log.Warn().Str("job_id", job.JobID).Msg("job cancelled before processing; skipping")
		w.setStatus(ctx, job.JobID, "cancelled", "", 0, "cancelled before processing", "", nil)
		metrics.IncExportJob("cancelled")
		return
	}

	if w.guard != nil && w.guard.IsCoolingDown(ctx, doc.ID) {
		log.Warn().Str("job_id", job.JobID).Str("doc_id", doc.ID).Msg("worksheet cooling down after failures; deferring")
		w.requeue(ctx, job, w.cfg.RetryBaseDelay)
		return
	}
	if w.guard != nil {
		release, ok := w.guard.Allow(doc.ID)
		if !ok {
			// another worker is rendering this worksheet right now
			w.requeue(ctx, job, 2*time.Second)
			return
		}
		defer release()
	}

	start := time.Now()
	jctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	progress := func(phase string, done, total int) {
		pct := progressPercent(phase, done, total)
		w.setStatus(ctx, job.JobID, "processing", phase, pct, fmt.Sprintf("%s %d/%d", phase, done, total), "", nil)
	}

	name, archive, err := w.exporter.Run(jctx, export.Request{Doc: doc, Variants: job.Variants, Progress: progress})
	if err != nil {
		if cancelled, _ := w.q.IsCancelled(ctx, job.JobID); cancelled {
			w.setStatus(ctx, job.JobID, "cancelled", "", 0, "cancelled during render", "", nil)
			metrics.IncExportJob("cancelled")
			return
		}
		w.fail(ctx, job, data, err)
		return
	}

	meta := map[string]any{
		"doc_id":   doc.ID,
		"bytes":    len(archive),
		"variants": len(job.Variants),
	}
	path, err := w.archives.Save(job.JobID, name, archive)
	if err != nil {
		w.fail(ctx, job, data, err)
		return
	}
	meta["archive_path"] = path

	if w.s3 != nil {
		if url, err := w.s3.UploadArchive(ctx, name, archive, map[string]string{"doc-id": doc.ID, "job-id": job.JobID}); err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("S3 upload failed; archive still available locally")
		} else {
			meta["s3_url"] = url
		}
	}

	if job.IdempotencyKey != "" {
		_ = w.q.MarkIdemDone(ctx, job.IdempotencyKey, w.cfg.IdemTTL)
	}
	if w.guard != nil {
		w.guard.Reset(ctx, doc.ID)
	}

	w.setStatus(ctx, job.JobID, "success", "done", 100, "collection ready", name, meta)
	metrics.IncExportJob("success")
	metrics.ObserveArchiveSize(len(archive))
	metrics.ObserveRender("collection", "ok", time.Since(start))
	log.Info().
		Str("job_id", job.JobID).
		Str("archive", name).
		Int("bytes", len(archive)).
		Dur("took", time.Since(start)).
		Msg("export job completed")
}

// fail routes an error to retry or DLQ depending on its class.
func (w *Worker) fail(ctx context.Context, job Job, raw []byte, err error) {
	if isInputError(err) {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("export failed on bad input; sending to DLQ")
		_ = w.q.AddDLQ(ctx, raw, err.Error())
		w.setStatus(ctx, job.JobID, "failed", "", 0, err.Error(), "", nil)
		metrics.IncExportJob("dlq")
		return
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}
	if attempt >= w.cfg.MaxAttempts {
		log.Error().Err(err).Str("job_id", job.JobID).Int("attempt", attempt).Msg("export failed after max attempts; sending to DLQ")
		_ = w.q.AddDLQ(ctx, raw, err.Error())
		w.setStatus(ctx, job.JobID, "failed", "", 0, err.Error(), "", nil)
		if w.guard != nil {
			var doc block.Document
			if json.Unmarshal(job.Worksheet, &doc) == nil && doc.ID != "" {
				w.guard.MarkFailure(ctx, doc.ID)
			}
		}
		metrics.IncExportJob("failed")
		return
	}

	delay := w.backoff(attempt)
	log.Warn().Err(err).
		Str("job_id", job.JobID).
		Int("attempt", attempt).
		Dur("delay", delay).
		Bool("timeout", isTimeoutError(err)).
		Msg("export failed; scheduling retry")
	job.Attempt = attempt + 1
	w.requeue(ctx, job, delay)
	w.setStatus(ctx, job.JobID, "processing", "retry", 0, fmt.Sprintf("retrying (attempt %d): %v", job.Attempt, err), "", nil)
	metrics.IncRetry()
}

func (w *Worker) requeue(ctx context.Context, job Job, delay time.Duration) {
	payload, err := json.Marshal(job)
	if err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("requeue marshal failed")
		return
	}
	if err := w.q.EnqueueDelayed(ctx, payload, time.Now().Add(delay)); err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("delayed enqueue failed")
	}
}

func (w *Worker) backoff(attempt int) time.Duration {
	d := float64(w.cfg.RetryBaseDelay)
	for i := 1; i < attempt; i++ {
		d *= w.cfg.RetryBackoffFactor
	}
	delay := time.Duration(d)
	if w.cfg.RetryJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(w.cfg.RetryJitter)))
	}
	return delay
}

func (w *Worker) setStatus(ctx context.Context, jobID, status, phase string, progress int, msg, archive string, meta map[string]any) {
	st, ok, _ := w.status.Get(ctx, jobID)
	if !ok {
		now := time.Now()
		st = store.Status{Start: &now}
	}
	st.Status = status
	st.Phase = phase
	st.Progress = progress
	st.Message = msg
	if archive != "" {
		st.Archive = archive
	}
	if meta != nil {
		if st.Metadata == nil {
			st.Metadata = map[string]any{}
		}
		for k, v := range meta {
			st.Metadata[k] = v
		}
	}
	if status == "success" || status == "failed" || status == "cancelled" {
		now := time.Now()
		st.End = &now
	}
	if err := w.status.Set(ctx, jobID, st); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("status update failed")
	}
}

// progressPercent maps exporter phases onto a single 0-100 scale:
// prepare ends at 10, rendering fills 10-90, packaging lands at 95. The
// worker writes 100 only once the archive is persisted.
func progressPercent(phase string, done, total int) int {
	switch phase {
	case "prepare":
		return 10
	case "render":
		if total <= 0 {
			return 50
		}
		return 10 + int(float64(done)/float64(total)*80)
	case "package":
		return 95
	default:
		return 0
	}
}
