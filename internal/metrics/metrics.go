// Package metrics exposes Prometheus collectors for merge jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pdfmerger/internal/jobs"
	"pdfmerger/internal/models"
)

// Collector owns a private registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	jobsCreated    prometheus.Counter
	jobsFinished   *prometheus.CounterVec
	pagesProcessed prometheus.Counter
	jobDuration    prometheus.Histogram
	listeners      prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pdfmerger",
			Name:      "jobs_created_total",
			Help:      "Merge jobs accepted.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfmerger",
			Name:      "jobs_finished_total",
			Help:      "Merge jobs that reached a terminal state, by status.",
		}, []string{"status"}),
		pagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pdfmerger",
			Name:      "pages_processed_total",
			Help:      "Output pages assembled.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pdfmerger",
			Name:      "job_duration_seconds",
			Help:      "Wall time from job start to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pdfmerger",
			Name:      "listeners",
			Help:      "Progress listeners currently attached to jobs.",
		}),
	}

	c.registry.MustRegister(
		c.jobsCreated,
		c.jobsFinished,
		c.pagesProcessed,
		c.jobDuration,
		c.listeners,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Hooks returns job registry hooks that feed the collectors.
func (c *Collector) Hooks() jobs.Hooks {
	return jobs.Hooks{
		Created:          func(*jobs.Job) { c.jobsCreated.Inc() },
		PageProcessed:    func(*jobs.Job) { c.pagesProcessed.Inc() },
		Finished:         c.ObserveFinished,
		ListenersChanged: func(delta int) { c.listeners.Add(float64(delta)) },
	}
}

// ObserveFinished records one terminal job.
func (c *Collector) ObserveFinished(s models.Snapshot, elapsed time.Duration) {
	c.jobsFinished.WithLabelValues(string(s.Status)).Inc()
	c.jobDuration.Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collectors in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
