package internal

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	CacheLookups       *prometheus.CounterVec
	Clones             prometheus.Counter
	RemoteUpdates      prometheus.Counter
	ResolveErrors      *prometheus.CounterVec
	CacheWriteFailures prometheus.Counter
	ResolveDuration    prometheus.Histogram
	DiskUsedPercent    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blamed_cache_lookups_total",
			Help: "Blame cache lookups by result.",
		}, []string{"result"}),
		Clones: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blamed_clones_total",
			Help: "Mirror clones performed.",
		}),
		RemoteUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blamed_remote_updates_total",
			Help: "Remote updates run against mirrors.",
		}),
		ResolveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blamed_resolve_errors_total",
			Help: "Failed blame requests by error kind.",
		}, []string{"kind"}),
		CacheWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blamed_cache_write_failures_total",
			Help: "Computed blames that could not be persisted.",
		}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blamed_resolve_duration_seconds",
			Help:    "Wall time of blame requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
		}),
		DiskUsedPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blamed_mirror_disk_used_percent",
			Help: "Used percentage of the filesystem holding the mirrors.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CacheLookups,
			m.Clones,
			m.RemoteUpdates,
			m.ResolveErrors,
			m.CacheWriteFailures,
			m.ResolveDuration,
			m.DiskUsedPercent,
		)
	}

	return m
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) clone() {
	if m != nil {
		m.Clones.Inc()
	}
}

func (m *Metrics) remoteUpdate() {
	if m != nil {
		m.RemoteUpdates.Inc()
	}
}

func (m *Metrics) cacheWriteFailure() {
	if m != nil {
		m.CacheWriteFailures.Inc()
	}
}

func (m *Metrics) observe(seconds float64) {
	if m != nil {
		m.ResolveDuration.Observe(seconds)
	}
}

func (m *Metrics) diskUsed(percent float64) {
	if m != nil {
		m.DiskUsedPercent.Set(percent)
	}
}

func (m *Metrics) resolveError(err error) {
	if m != nil {
		m.ResolveErrors.WithLabelValues(ErrorKind(err)).Inc()
	}
}

// ErrorKind maps an engine error to a short label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRepoID):
		return "invalid_repo_id"
	case errors.Is(err, ErrInvalidCommit):
		return "invalid_commit"
	case errors.Is(err, ErrPathExcluded):
		return "path_excluded"
	case errors.Is(err, ErrCloneFailed):
		return "clone_failed"
	case errors.Is(err, ErrCommitNotFound):
		return "commit_not_found"
	case errors.Is(err, ErrBlameFailed):
		return "blame_failed"
	case errors.Is(err, ErrCacheUnavailable):
		return "cache_unavailable"
	default:
		return "other"
	}
}
