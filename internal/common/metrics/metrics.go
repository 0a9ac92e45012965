// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_webhooks_received_total",
			Help: "Total number of webhook requests by intake outcome",
		},
		[]string{"outcome"},
	)

	PlanResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_plan_resolutions_total",
			Help: "Total number of plan resolutions by handler type",
		},
		[]string{"handler_type"},
	)

	ChecksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_checks_completed_total",
			Help: "Total number of eligibility checks by handler type and status",
		},
		[]string{"handler_type", "status"},
	)

	CheckFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_check_faults_total",
			Help: "Total number of capability faults converted to a fail-closed status",
		},
		[]string{"error_code"},
	)

	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eligibility_check_duration_seconds",
			Help:    "Duration of the eligibility check step in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"handler_type"},
	)

	CallbackAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_callback_attempts_total",
			Help: "Total number of callback POST attempts by outcome",
		},
		[]string{"outcome"},
	)

	CallbackDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_callback_deliveries_total",
			Help: "Total number of callback deliveries by final result",
		},
		[]string{"result"},
	)

	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eligibility_background_tasks_in_flight",
			Help: "Number of background pipelines currently running",
		},
	)
)
