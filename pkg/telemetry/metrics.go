package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Gateway ─────────────────────────────────────────────────────────────────

	GatewayTasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "a2a",
		Subsystem: "gateway",
		Name:      "tasks_submitted_total",
		Help:      "Total translation tasks accepted and enqueued, labelled by target language.",
	}, []string{"target_language"})

	GatewayValidationRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "a2a",
		Subsystem: "gateway",
		Name:      "validation_rejected_total",
		Help:      "Total submissions rejected before any queue interaction.",
	})

	GatewayEnqueueFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "a2a",
		Subsystem: "gateway",
		Name:      "enqueue_failures_total",
		Help:      "Total tasks forced to failed because the job message could not be enqueued.",
	})

	GatewayCancelRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "a2a",
		Subsystem: "gateway",
		Name:      "cancel_requests_total",
		Help:      "Total cancel requests, labelled by outcome (canceled, already_terminal, not_found).",
	}, []string{"outcome"})

	// ─── Worker ──────────────────────────────────────────────────────────────────

	WorkerJobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "a2a",
		Subsystem: "worker",
		Name:      "jobs_processed_total",
		Help:      "Total job messages settled, labelled by outcome (completed, failed, poison, malformed).",
	}, []string{"outcome"})

	WorkerTransientFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "a2a",
		Subsystem: "worker",
		Name:      "transient_failures_total",
		Help:      "Total job attempts left unacked for queue redelivery after a transient provider failure.",
	})

	WorkerJobsThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "a2a",
		Subsystem: "worker",
		Name:      "jobs_throttled_total",
		Help:      "Total job attempts deferred to redelivery because the provider rate budget was exhausted.",
	})

	WorkerTranslateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "a2a",
		Subsystem: "worker",
		Name:      "translate_duration_seconds",
		Help:      "Wall time of the provider translate call.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	WorkerJobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "a2a",
		Subsystem: "worker",
		Name:      "jobs_inflight",
		Help:      "Job messages currently being processed.",
	})

	// ─── Reconciler ──────────────────────────────────────────────────────────────

	ReconcilerResultsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "a2a",
		Subsystem: "reconciler",
		Name:      "results_applied_total",
		Help:      "Total result messages folded into the task store, labelled by terminal status.",
	}, []string{"status"})

	ReconcilerDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "a2a",
		Subsystem: "reconciler",
		Name:      "duplicate_results_total",
		Help:      "Total result deliveries ignored because the task was already terminal.",
	})

	ReconcilerOrphans = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "a2a",
		Subsystem: "reconciler",
		Name:      "orphan_results_total",
		Help:      "Total result messages dead-lettered because no task record was found.",
	})
)
