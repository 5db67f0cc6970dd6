package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timekeeper_events_ingested_total",
		Help: "Total number of normalized tracking events, labelled by source and type.",
	}, []string{"source", "type"})

	EventsDroppedStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timekeeper_events_dropped_stale_total",
		Help: "Total number of events dropped as stale or duplicate at the state machine boundary.",
	})

	EventsDroppedInvalid = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timekeeper_events_dropped_invalid_total",
		Help: "Total number of raw signals rejected by the normalizer, labelled by reason.",
	}, []string{"reason"})

	EventsDroppedOverflow = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timekeeper_events_dropped_overflow_total",
		Help: "Total number of events rejected because a worker's ingestion queue was full.",
	})

	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timekeeper_sessions_opened_total",
		Help: "Total number of work sessions opened.",
	})

	SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timekeeper_sessions_closed_total",
		Help: "Total number of work sessions closed, labelled by close reason.",
	}, []string{"reason"})

	FlapsResumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timekeeper_flaps_resumed_total",
		Help: "Total number of fence-boundary flaps absorbed into an existing session.",
	})

	EffectsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timekeeper_effects_executed_total",
		Help: "Total number of effect executions, labelled by type and status.",
	}, []string{"effect_type", "status"})

	EffectsFailedTerminal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timekeeper_effects_failed_terminal_total",
		Help: "Total number of effects that exhausted their retries.",
	})

	CorrectionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timekeeper_corrections_applied_total",
		Help: "Total number of correction proposals, labelled by source and outcome.",
	}, []string{"source", "outcome"})

	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timekeeper_sync_runs_total",
		Help: "Total number of sync runs, labelled by result.",
	}, []string{"result"})

	SyncConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timekeeper_sync_conflicts_total",
		Help: "Total number of field-level conflicts resolved during sync.",
	})

	ActorQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "timekeeper_actor_queue_depth",
		Help: "Current depth of a worker's serialized ingestion queue.",
	}, []string{"user_id"})
)
