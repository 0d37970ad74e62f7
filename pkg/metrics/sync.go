package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records discount sync outcomes for the workers.
type SyncMetrics struct {
	jobDuration     *prometheus.HistogramVec
	jobSuccess      *prometheus.CounterVec
	jobFailure      *prometheus.CounterVec
	productsSynced  *prometheus.CounterVec
	productsFailed  *prometheus.CounterVec
	discountsSwept  prometheus.Counter
	upstreamSkipped prometheus.Counter
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_job_duration_seconds",
		Help:    "Duration of scheduled sync jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	jobSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_job_success",
		Help: "Successful scheduled sync job executions.",
	}, []string{"job"})
	jobFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_job_failure",
		Help: "Failed scheduled sync job executions.",
	}, []string{"job"})
	productsSynced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_products_total",
		Help: "Products whose discount annotation was written.",
	}, []string{"operation"})
	productsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_product_failures_total",
		Help: "Per-product annotation failures captured in batch results.",
	}, []string{"operation"})
	discountsSwept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_discounts_swept_total",
		Help: "Expired discounts deactivated by the sweep.",
	})
	upstreamSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_upstream_cleanup_skipped_total",
		Help: "Sweep cleanups skipped because a shop had no valid session.",
	})
	reg.MustRegister(jobDuration, jobSuccess, jobFailure, productsSynced, productsFailed, discountsSwept, upstreamSkipped)
	return &SyncMetrics{
		jobDuration:     jobDuration,
		jobSuccess:      jobSuccess,
		jobFailure:      jobFailure,
		productsSynced:  productsSynced,
		productsFailed:  productsFailed,
		discountsSwept:  discountsSwept,
		upstreamSkipped: upstreamSkipped,
	}
}

// ObserveJobDuration records the duration for the named job.
func (m *SyncMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncJobSuccess increments the success counter for the named job.
func (m *SyncMetrics) IncJobSuccess(job string) {
	if m == nil || m.jobSuccess == nil {
		return
	}
	m.jobSuccess.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncJobFailure increments the failure counter for the named job.
func (m *SyncMetrics) IncJobFailure(job string) {
	if m == nil || m.jobFailure == nil {
		return
	}
	m.jobFailure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddProductsSynced records successfully annotated products for an operation.
func (m *SyncMetrics) AddProductsSynced(operation string, count int) {
	if m == nil || m.productsSynced == nil || count <= 0 {
		return
	}
	m.productsSynced.WithLabelValues(normalizeLabel(operation)).Add(float64(count))
}

// AddProductFailures records per-product failures for an operation.
func (m *SyncMetrics) AddProductFailures(operation string, count int) {
	if m == nil || m.productsFailed == nil || count <= 0 {
		return
	}
	m.productsFailed.WithLabelValues(normalizeLabel(operation)).Add(float64(count))
}

// IncDiscountsSwept counts one expired discount deactivation.
func (m *SyncMetrics) IncDiscountsSwept() {
	if m == nil || m.discountsSwept == nil {
		return
	}
	m.discountsSwept.Inc()
}

// IncUpstreamCleanupSkipped counts a cleanup skipped for lack of a session.
func (m *SyncMetrics) IncUpstreamCleanupSkipped() {
	if m == nil || m.upstreamSkipped == nil {
		return
	}
	m.upstreamSkipped.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
