package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace is the metric namespace used when none is configured.
const DefaultNamespace = "pagejournal"

// Metrics holds all VFS metrics.
type Metrics struct {
	JournalsOpen      prometheus.Gauge
	Reconstructions   prometheus.Counter
	CacheHits         prometheus.Counter
	FetchDuration     prometheus.Histogram
	FetchErrors       prometheus.Counter
	ShortReads        *prometheus.CounterVec
	CommitSignals     prometheus.Counter
	DiscardedBytes    prometheus.Counter
	DatabaseCommits   prometheus.Counter
	CommittedPages    prometheus.Counter
	DatabaseRollbacks prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		JournalsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "open",
			Help:      "Number of open journal files",
		}),
		Reconstructions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "reconstructions_total",
			Help:      "Journal entries rebuilt from the page store",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "cache_hits_total",
			Help:      "Journal entry reads served from the reconstruction cache",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of page store fetches made to rebuild journal entries",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "fetch_errors_total",
			Help:      "Page store fetches that failed while rebuilding journal entries",
		}),
		ShortReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_reads_total",
			Help:      "Reads that ended before the requested length",
		}, []string{"file"}),
		CommitSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "commit_signals_total",
			Help:      "Commit notifications sent to database files",
		}),
		DiscardedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "discarded_bytes_total",
			Help:      "Journal entry bytes written by the engine and not stored",
		}),
		DatabaseCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "commits_total",
			Help:      "Buffered database writes flushed to the page store",
		}),
		CommittedPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "committed_pages_total",
			Help:      "Pages written to the page store by database commits",
		}),
		DatabaseRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "rollbacks_total",
			Help:      "Buffered database writes discarded without commit",
		}),
	}

	reg.MustRegister(
		m.JournalsOpen,
		m.Reconstructions,
		m.CacheHits,
		m.FetchDuration,
		m.FetchErrors,
		m.ShortReads,
		m.CommitSignals,
		m.DiscardedBytes,
		m.DatabaseCommits,
		m.CommittedPages,
		m.DatabaseRollbacks,
	)
	return m
}

// JournalOpened tracks a journal open.
func (m *Metrics) JournalOpened() {
	if m != nil {
		m.JournalsOpen.Inc()
	}
}

// JournalClosed tracks a journal close.
func (m *Metrics) JournalClosed() {
	if m != nil {
		m.JournalsOpen.Dec()
	}
}

// CacheHit counts an entry read served from cache.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// ObserveFetch records one page store fetch.
func (m *Metrics) ObserveFetch(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
	if err != nil {
		m.FetchErrors.Inc()
		return
	}
	m.Reconstructions.Inc()
}

// ShortRead counts a short read on the given file kind ("journal", "database").
func (m *Metrics) ShortRead(kind string) {
	if m != nil {
		m.ShortReads.WithLabelValues(kind).Inc()
	}
}

// CommitSignal counts a commit notification.
func (m *Metrics) CommitSignal() {
	if m != nil {
		m.CommitSignals.Inc()
	}
}

// Discarded counts journal bytes that were accepted but not stored.
func (m *Metrics) Discarded(n int) {
	if m != nil && n > 0 {
		m.DiscardedBytes.Add(float64(n))
	}
}

// DatabaseCommitted records a database commit of pages pages.
func (m *Metrics) DatabaseCommitted(pages int) {
	if m != nil {
		m.DatabaseCommits.Inc()
		m.CommittedPages.Add(float64(pages))
	}
}

// DatabaseRolledBack records discarded database buffers.
func (m *Metrics) DatabaseRolledBack() {
	if m != nil {
		m.DatabaseRollbacks.Inc()
	}
}

// Handler returns an HTTP handler exposing the metrics of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
