// Package metrics exposes Prometheus metrics for the download pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for the download service and janitor.
type Metrics struct {
	TasksStarted    prometheus.Counter
	TasksCompleted  prometheus.Counter
	TasksFailed     *prometheus.CounterVec
	ActiveDownloads prometheus.Gauge
	FilesCleaned    prometheus.Counter
	OrphansCleaned  prometheus.Counter
}

// New registers the collectors on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TasksStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ytdownloader_tasks_started_total",
			Help: "Download tasks accepted",
		}),
		TasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ytdownloader_tasks_completed_total",
			Help: "Download tasks that produced a file",
		}),
		TasksFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ytdownloader_tasks_failed_total",
			Help: "Download tasks that ended in error",
		}, []string{"stage"}),
		ActiveDownloads: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ytdownloader_active_downloads",
			Help: "yt-dlp processes currently running",
		}),
		FilesCleaned: factory.NewCounter(prometheus.CounterOpts{
			Name: "ytdownloader_files_cleaned_total",
			Help: "Expired files removed by the janitor",
		}),
		OrphansCleaned: factory.NewCounter(prometheus.CounterOpts{
			Name: "ytdownloader_orphans_cleaned_total",
			Help: "Stale staging files removed by the janitor",
		}),
	}
}
