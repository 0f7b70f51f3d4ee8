// Package metrics defines the Prometheus collectors used by the scoring
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	RecordsLoaded       *prometheus.CounterVec
	LoadErrors          *prometheus.CounterVec
	PairsAggregated     prometheus.Counter
	DocumentsPooled     prometheus.Counter
	AggregationDuration prometheus.Histogram
	PairsScored         *prometheus.CounterVec
	RunsTotal           *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		RecordsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cocoscore_records_loaded_total",
				Help: "Input records loaded by file kind (scores, matches, taxonomy).",
			},
			[]string{"kind"},
		),
		LoadErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cocoscore_load_errors_total",
				Help: "Input files rejected by file kind.",
			},
			[]string{"kind"},
		),
		PairsAggregated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cocoscore_pairs_aggregated_total",
				Help: "Entity pairs given a weighted count.",
			},
		),
		DocumentsPooled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cocoscore_documents_pooled_total",
				Help: "Pair/document evidence groups max-pooled into a document term.",
			},
		),
		AggregationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cocoscore_aggregation_duration_seconds",
				Help:    "Weighted count aggregation latency in seconds.",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
		PairsScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cocoscore_pairs_scored_total",
				Help: "Pairs given a co-occurrence score by pipeline.",
			},
			[]string{"pipeline"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cocoscore_runs_total",
				Help: "Scoring runs by pipeline and status (ok, error).",
			},
			[]string{"pipeline", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cocoscore_http_requests_total",
				Help: "Query service requests by route and status.",
			},
			[]string{"route", "status"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.RecordsLoaded,
		m.LoadErrors,
		m.PairsAggregated,
		m.DocumentsPooled,
		m.AggregationDuration,
		m.PairsScored,
		m.RunsTotal,
		m.HTTPRequestsTotal,
	)

	return m
}

// Gatherer returns the registry the collectors were registered with.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// Handler returns the Prometheus scrape HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
