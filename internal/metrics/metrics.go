package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CriticalPathComputationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_critical_path_computations_total",
			Help: "Total number of critical path computations by kind and outcome.",
		},
		[]string{"kind", "status"},
	)

	CriticalPathDurationHours = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meridian_critical_path_duration_hours",
			Help:    "Critical path length of computed projects in hours.",
			Buckets: []float64{8, 40, 80, 160, 320, 640, 1280, 2560},
		},
	)

	DeadlineSweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_deadline_sweeps_total",
			Help: "Total number of deadline sweeps by outcome.",
		},
		[]string{"status"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_notifications_total",
			Help: "Total number of deadline notifications dispatched by channel and status.",
		},
		[]string{"channel", "status"},
	)

	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_escalations_total",
			Help: "Total number of escalations raised by source kind.",
		},
		[]string{"kind"},
	)

	RecommendationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meridian_recommendations_total",
			Help: "Total number of resource recommendation requests served.",
		},
	)

	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_reports_total",
			Help: "Total number of progress reports generated by store and status.",
		},
		[]string{"store", "status"},
	)

	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_jobs_total",
			Help: "Total number of background jobs run by name and status.",
		},
		[]string{"job", "status"},
	)

	JobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_job_duration_seconds",
			Help:    "Duration of background jobs in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"job"},
	)

	ExpensesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_expenses_total",
			Help: "Total number of expense submissions and decisions by outcome.",
		},
		[]string{"outcome"},
	)

	TriggerFiresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_trigger_fires_total",
			Help: "Total number of cron trigger fires by schedule name.",
		},
		[]string{"trigger"},
	)
)

// Collectors returns every custom meridian collector.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		CriticalPathComputationsTotal,
		CriticalPathDurationHours,
		DeadlineSweepsTotal,
		NotificationsTotal,
		EscalationsTotal,
		RecommendationsTotal,
		ReportsTotal,
		JobsTotal,
		JobDurationSeconds,
		ExpensesTotal,
		TriggerFiresTotal,
	}
}

// Register registers all custom meridian metrics with the default Prometheus registry.
func Register() {
	prometheus.MustRegister(Collectors()...)
}
