package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/sheetpress/internal/assets"
	cfgpkg "github.com/local/sheetpress/internal/config"
	"github.com/local/sheetpress/internal/dispatcher"
	"github.com/local/sheetpress/internal/export"
	"github.com/local/sheetpress/internal/limiter"
	logpkg "github.com/local/sheetpress/internal/logger"
	"github.com/local/sheetpress/internal/measure"
	"github.com/local/sheetpress/internal/metrics"
	"github.com/local/sheetpress/internal/orchestrator"
	"github.com/local/sheetpress/internal/paginate"
	"github.com/local/sheetpress/internal/queue"
	"github.com/local/sheetpress/internal/render"
	"github.com/local/sheetpress/internal/statuscheck"
	"github.com/local/sheetpress/internal/storage"
	"github.com/local/sheetpress/internal/store"
	"github.com/local/sheetpress/internal/thumbnail"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	// Queue
	rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rq.Close()

	// Status store
	rs, err := store.NewRedisStatus(cfg.Queue.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init redis status store")
	}
	defer rs.Close()

	// Archive store
	archives, err := storage.NewLocalStore(cfg.Storage.ResultDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init result dir")
	}

	// Per-worksheet guard
	guard, err := limiter.New(limiter.Options{
		RedisURL:    cfg.Queue.RedisURL,
		BaseBackoff: cfg.Worker.FailureCooldown,
		MaxBackoff:  cfg.Worker.MaxFailureCooldown,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init worksheet guard")
	}
	defer guard.Close()

	// Optional S3 upload
	var s3c *storage.S3Client
	if cfg.Storage.S3Enabled && cfg.Storage.S3Bucket != "" {
		s3c, err = storage.NewS3Client(context.Background(), cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
		if err != nil {
			log.Error().Err(err).Msg("S3 disabled: client init failed")
			s3c = nil
		}
	}

	// Layout measurement for the pagination endpoint
	measurer := measure.New(cfg.Render.FontDir)
	if err := measurer.Load(); err != nil {
		log.Warn().Err(err).Str("dir", cfg.Render.FontDir).Msg("font load failed; pagination unavailable until fonts arrive")
	}
	pager := paginate.NewEngine(measurer)

	// Exporter shared by workers and the sync render endpoints
	exporter := export.New(render.NewPDF(cfg.Render.FontDir), render.NewCover(cfg.Render.FontDir), cfg.Worker.VariantConcurrency)
	exporter.AssetOpts = []assets.Option{
		assets.WithTargetWidth(cfg.Assets.TargetWidth),
		assets.WithQuality(cfg.Assets.Quality),
	}

	checker := statuscheck.New(statuscheck.Options{
		Redis:    rq,
		S3Bucket: cfg.Storage.S3Bucket,
		FontDir:  cfg.Render.FontDir,
	})

	orch := orchestrator.New(orchestrator.Dependencies{
		Queue:      rq,
		Status:     orchestrator.NewStatusAdapter(rs),
		DocJobs:    rs,
		Archives:   archives,
		Exporter:   exporter,
		Pager:      pager,
		Checker:    checker,
		JobTimeout: cfg.Worker.JobTimeout + 30*time.Second,
		Thumbnail: thumbnail.Options{
			DPI:     cfg.Render.ThumbnailDPI,
			Quality: cfg.Render.ThumbnailQuality,
		},
	})
	mux := http.NewServeMux()
	orch.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	// Export worker pool (optional)
	runDispatcher := os.Getenv("RUN_DISPATCHER")
	if runDispatcher == "" || runDispatcher == "1" || runDispatcher == "true" {
		disp := dispatcher.New(dispatcher.Config{
			Concurrency:        cfg.Worker.Concurrency,
			JobTimeout:         cfg.Worker.JobTimeout,
			MaxAttempts:        cfg.Worker.MaxAttempts,
			RetryBaseDelay:     cfg.Worker.RetryBaseDelay,
			RetryJitter:        cfg.Worker.RetryJitter,
			RetryBackoffFactor: cfg.Worker.RetryBackoffFactor,
		}, rq, rs, exporter, guard, archives, s3c)
		disp.Start()
		defer disp.Stop(context.Background())
	}

	// Background hygiene: queue depth gauges and archive expiry.
	stopBg := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stopBg:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				if stream, delayed, dlq, err := rq.Depths(ctx); err == nil {
					metrics.SetQueueDepth("stream", stream)
					metrics.SetQueueDepth("delayed", delayed)
					metrics.SetQueueDepth("dlq", dlq)
				}
				cancel()
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-stopBg:
				return
			case <-ticker.C:
				archives.Cleanup(cfg.Storage.ResultMaxAge)
			}
		}
	}()
	defer close(stopBg)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}
