// Package metrics wraps the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every Prometheus collector the server updates.
type Registry struct {
	ActiveConnections  prometheus.Gauge
	AcceptErrors       prometheus.Counter
	AcceptRejected     prometheus.Counter
	CommandsTotal      *prometheus.CounterVec
	StoreSize          prometheus.Gauge
	TopicCount         prometheus.Gauge
	TopicSubscribers   prometheus.Gauge
	JobRuns            *prometheus.CounterVec
	JobFailures        *prometheus.CounterVec
	ProcessCPUPercent  prometheus.Gauge
	ProcessRSSBytes    prometheus.Gauge
}

// NewRegistry constructs and registers every collector.
func NewRegistry() *Registry {
	return &Registry{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "insomniadb_connections_active",
			Help: "Number of currently connected clients",
		}),
		AcceptErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "insomniadb_accept_errors_total",
			Help: "Total number of listener accept errors",
		}),
		AcceptRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "insomniadb_accept_rejected_total",
			Help: "Total number of connections rejected by the resource guard",
		}),
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "insomniadb_commands_total",
			Help: "Total number of commands dispatched, by command name",
		}, []string{"command"}),
		StoreSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "insomniadb_store_keys",
			Help: "Number of keys currently held by the store",
		}),
		TopicCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "insomniadb_topics",
			Help: "Number of topics currently tracked",
		}),
		TopicSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "insomniadb_topic_subscribers",
			Help: "Total subscriber count summed across all topics",
		}),
		JobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "insomniadb_job_runs_total",
			Help: "Total number of job invocations, by job name",
		}, []string{"job"}),
		JobFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "insomniadb_job_failures_total",
			Help: "Total number of failed job invocations, by job name",
		}, []string{"job"}),
		ProcessCPUPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "insomniadb_process_cpu_percent",
			Help: "Process CPU usage percent, sampled by the metrics job",
		}),
		ProcessRSSBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "insomniadb_process_rss_bytes",
			Help: "Process resident set size in bytes, sampled by the metrics job",
		}),
	}
}

// Handler returns an HTTP handler exposing the registered collectors.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
