package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lock manager metrics
	LockWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "overlaydb_lock_wait_duration_seconds",
			Help:    "Time spent waiting to acquire a composite or per-key lock",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mapping"},
	)

	LocksHeld = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overlaydb_locks_held",
			Help: "Number of locks currently held by lock clients, by identity map",
		},
		[]string{"mapping"},
	)

	// Overlay metrics
	OverlayFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "overlaydb_overlay_flush_duration_seconds",
			Help:    "Time taken to flush a storage transaction overlay back to its Storage",
			Buckets: prometheus.DefBuckets,
		},
	)

	OverlayTakenKeys = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overlaydb_overlay_taken_keys",
			Help: "Number of keys currently taken by an overlay, by mapping name",
		},
		[]string{"mapping"},
	)

	RestorationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "overlaydb_restoration_duration_seconds",
			Help:    "Time taken by a DataSource restoration callback",
			Buckets: prometheus.DefBuckets,
		},
	)

	RestorationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlaydb_restorations_total",
			Help: "Total number of restore callbacks invoked, by outcome",
		},
		[]string{"outcome"},
	)

	// Storage metrics
	StorageResidentKeys = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overlaydb_storage_resident_keys",
			Help: "Number of keys currently resident in a Storage, by mapping name",
		},
		[]string{"mapping"},
	)

	// Pool metrics
	PoolEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlaydb_pool_entries_total",
			Help: "Total number of pool entries, by outcome (commit/rollback)",
		},
		[]string{"outcome"},
	)

	PoolEntryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "overlaydb_pool_entry_duration_seconds",
			Help:    "Time spent inside a pool entry, from enter to exit",
			Buckets: prometheus.DefBuckets,
		},
	)

	PoolActiveEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "overlaydb_pool_active_entries",
			Help: "Number of pool entries currently in progress",
		},
	)
)

func init() {
	prometheus.MustRegister(LockWaitDuration)
	prometheus.MustRegister(LocksHeld)
	prometheus.MustRegister(OverlayFlushDuration)
	prometheus.MustRegister(OverlayTakenKeys)
	prometheus.MustRegister(RestorationDuration)
	prometheus.MustRegister(RestorationsTotal)
	prometheus.MustRegister(StorageResidentKeys)
	prometheus.MustRegister(PoolEntriesTotal)
	prometheus.MustRegister(PoolEntryDuration)
	prometheus.MustRegister(PoolActiveEntries)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
