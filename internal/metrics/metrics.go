// Package metrics exposes Prometheus instrumentation for the simulation
// engine and the HTTP API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all riskrun Prometheus collectors.
type Registry struct {
	// Simulation metrics
	SimulationsTotal   *prometheus.CounterVec
	SimulationDuration *prometheus.HistogramVec
	TrialsPerRun       prometheus.Histogram

	// Planning metrics
	PlansTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewRegistry creates all collectors and registers them with the default
// Prometheus registerer.
func NewRegistry() *Registry {
	r := &Registry{
		SimulationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskrun_simulations_total",
				Help: "Total number of simulation runs by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		SimulationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskrun_simulation_duration_seconds",
				Help:    "Wall-clock duration of simulation runs in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"kind"},
		),

		TrialsPerRun: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "riskrun_trials_per_run",
				Help:    "Number of Monte Carlo trials per simulation run",
				Buckets: prometheus.ExponentialBuckets(1000, 2, 10),
			},
		),

		PlansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskrun_plans_total",
				Help: "Total number of planning passes by outcome",
			},
			[]string{"outcome"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskrun_http_requests_total",
				Help: "Total HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskrun_http_request_duration_seconds",
				Help:    "HTTP request handling duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
			[]string{"route"},
		),
	}

	prometheus.MustRegister(
		r.SimulationsTotal,
		r.SimulationDuration,
		r.TrialsPerRun,
		r.PlansTotal,
		r.HTTPRequests,
		r.HTTPDuration,
	)
	return r
}

// ObserveSimulation records one completed simulation run.
func (r *Registry) ObserveSimulation(kind string, success bool, trials int, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.SimulationsTotal.WithLabelValues(kind, outcome).Inc()
	r.SimulationDuration.WithLabelValues(kind).Observe(d.Seconds())
	r.TrialsPerRun.Observe(float64(trials))
}

// ObservePlan records one planning pass.
func (r *Registry) ObservePlan(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	r.PlansTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
