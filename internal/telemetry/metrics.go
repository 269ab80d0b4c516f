package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sunny_http_request_duration_seconds",
		Help:    "Gateway request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	PaymentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sunny_payments_created_total",
		Help: "Payment requests created, by method.",
	}, []string{"method"})

	PaymentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sunny_payment_transitions_total",
		Help: "Payment state transitions, by target status.",
	}, []string{"status"})

	StatusPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sunny_status_polls_total",
		Help: "Client status polls, by outcome (ok, error).",
	}, []string{"outcome"})

	TerminalResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sunny_terminal_results_total",
		Help: "Results dispatched by the status client, by terminal status.",
	}, []string{"status"})

	BulkJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sunny_bulk_jobs_total",
		Help: "Bulk jobs, by lifecycle event (started, completed, failed).",
	}, []string{"event"})
)
