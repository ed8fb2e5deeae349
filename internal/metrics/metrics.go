package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal counts sync runs by entity type, phase and outcome
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsync_runs_total",
			Help: "Total number of sync phase runs",
		},
		[]string{"entity", "phase", "status"},
	)

	// SyncDuration tracks sync phase duration
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assetsync_phase_duration_seconds",
			Help:    "Sync phase duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity", "phase"},
	)

	// RecordsPushedTotal counts dirty records sent to the remote API
	RecordsPushedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsync_records_pushed_total",
			Help: "Total number of records pushed",
		},
		[]string{"entity", "operation", "status"},
	)

	// RecordsPulledTotal counts remote records applied locally by outcome
	RecordsPulledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsync_records_pulled_total",
			Help: "Total number of remote records processed by the pull phase",
		},
		[]string{"entity", "outcome"},
	)

	// ConflictsTotal counts conflicts by entity type and applied policy
	ConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsync_conflicts_total",
			Help: "Total number of resolved conflicts",
		},
		[]string{"entity", "policy"},
	)

	// BreakerTripsTotal counts repeated conflicts that fell back to the remote copy
	BreakerTripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsync_conflict_breaker_trips_total",
			Help: "Total number of repeated local-wins conflicts resolved with the remote copy",
		},
		[]string{"entity"},
	)

	// ActionsReplayedTotal counts pending action replays
	ActionsReplayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsync_actions_replayed_total",
			Help: "Total number of pending action replays",
		},
		[]string{"entity", "operation", "status"},
	)

	// PermanentFailuresTotal counts actions dropped after exhausting their retries
	PermanentFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsync_permanent_failures_total",
			Help: "Total number of pending actions dropped after the retry limit",
		},
		[]string{"entity", "operation"},
	)

	// PendingChanges tracks dirty records plus queued actions
	PendingChanges = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "assetsync_pending_changes",
			Help: "Number of local changes waiting for the remote API",
		},
		[]string{"entity"},
	)

	// LastSyncTimestamp tracks the last successful pull per entity type
	LastSyncTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "assetsync_last_sync_timestamp_seconds",
			Help: "Unix time of the last successful pull by entity type",
		},
		[]string{"entity"},
	)

	// Online is 1 while the remote API is reachable
	Online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetsync_online",
			Help: "Whether the remote API is currently reachable",
		},
	)

	// TriggersTotal counts sync triggers by source
	TriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsync_triggers_total",
			Help: "Total number of sync triggers",
		},
		[]string{"source"},
	)

	// ErrorsTotal counts errors by component and kind
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsync_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// TenantAPIRequestsTotal counts tenant API requests
	TenantAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantapi_requests_total",
			Help: "Total number of tenant API requests",
		},
		[]string{"entity", "method", "status"},
	)

	// TenantAPIRequestDuration tracks tenant API request latency
	TenantAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantapi_request_duration_seconds",
			Help:    "Tenant API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity", "method"},
	)
)
