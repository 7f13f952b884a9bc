// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LogsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siem_logs_ingested_total",
			Help: "Total number of log records ingested",
		},
		[]string{"format"},
	)

	LogsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siem_logs_rejected_total",
			Help: "Total number of log lines rejected during ingestion",
		},
		[]string{"format"},
	)

	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siem_alerts_generated_total",
			Help: "Total number of alerts generated by rule matches",
		},
		[]string{"severity"},
	)

	CasesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siem_cases_created_total",
			Help: "Total number of cases created",
		},
	)

	ObservablesLinked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siem_observables_linked_total",
			Help: "Total number of observables linked to cases",
		},
		[]string{"type"},
	)

	SearchesExecuted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siem_searches_executed_total",
			Help: "Total number of log search queries executed",
		},
	)

	SearchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siem_search_errors_total",
			Help: "Total number of failed log search queries",
		},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siem_search_duration_seconds",
			Help:    "Time taken to execute log search queries",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "siem_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
