package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	exportJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetpress",
			Name:      "export_jobs_total",
			Help:      "Total collection export jobs by result (success, failed, dlq, cancelled)",
		},
		[]string{"result"},
	)

	variantRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetpress",
			Name:      "variant_renders_total",
			Help:      "Total variant renders by kind and result",
		},
		[]string{"kind", "result"},
	)

	renderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sheetpress",
			Name:      "render_duration_seconds",
			Help:      "Duration of render operations by kind (pdf, cover, collection, thumbnail)",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	archiveBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sheetpress",
			Name:      "archive_bytes",
			Help:      "Size of produced collection archives in bytes",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8),
		},
	)

	assetFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetpress",
			Name:      "asset_fetches_total",
			Help:      "Remote asset fetches by result",
		},
		[]string{"result"},
	)

	paginationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetpress",
			Name:      "pagination_runs_total",
			Help:      "Pagination engine runs by result (ok, stale, not_ready, error)",
		},
		[]string{"result"},
	)

	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sheetpress",
			Name:      "retries_total",
			Help:      "Total number of export job retries",
		},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sheetpress",
			Name:      "queue_depth",
			Help:      "Queue depth gauges for stream, delayed and dlq",
		},
		[]string{"type"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(exportJobs, variantRenders, renderLatency, archiveBytes, assetFetches, paginationRuns, retriesTotal, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// ObserveRender records one render operation of the given kind.
func ObserveRender(kind, result string, dur time.Duration) {
	variantRenders.WithLabelValues(kind, result).Inc()
	renderLatency.WithLabelValues(kind).Observe(dur.Seconds())
}

func IncExportJob(result string) { exportJobs.WithLabelValues(result).Inc() }

func ObserveArchiveSize(n int) { archiveBytes.Observe(float64(n)) }

func IncAssetFetch(result string) { assetFetches.WithLabelValues(result).Inc() }

func IncPagination(result string) { paginationRuns.WithLabelValues(result).Inc() }

func IncRetry() { retriesTotal.Inc() }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
