package incident

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the incident pipeline.
type Metrics struct {
	RebuildsTotal      *prometheus.CounterVec
	RebuildDuration    prometheus.Histogram
	IncidentsCreated   prometheus.Histogram
	ClusterSize        prometheus.Histogram
	AlertsIngested     prometheus.Counter
	QualityChecks      prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RebuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_rebuilds_total",
			Help: "Total incident rebuilds by outcome.",
		}, []string{"outcome"}),
		RebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "argus_rebuild_duration_seconds",
			Help:    "Duration of full incident rebuilds in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~40s
		}),
		IncidentsCreated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "argus_rebuild_incidents_created",
			Help:    "Incidents created per rebuild.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		}),
		ClusterSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "argus_cluster_size_alerts",
			Help:    "Alerts per correlated cluster.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1 .. 128
		}),
		AlertsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "argus_alerts_ingested_total",
			Help: "Total alerts accepted for storage.",
		}),
		QualityChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "argus_quality_checks_total",
			Help: "Total correlation quality evaluations.",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "argus_notifications_total",
			Help: "Total incident notifications by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.RebuildsTotal,
		m.RebuildDuration,
		m.IncidentsCreated,
		m.ClusterSize,
		m.AlertsIngested,
		m.QualityChecks,
		m.NotificationsTotal,
	)

	return m
}
