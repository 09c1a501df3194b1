// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hogar"

var (
	// RPCRequests counts finished RPCs by procedure and Connect code ("ok" on success).
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "Finished RPC calls by procedure and result code.",
	}, []string{"procedure", "code"})

	// RPCDuration observes RPC latency.
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_duration_seconds",
		Help:      "RPC latency by procedure.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"procedure"})

	// SnapshotsApplied counts expense snapshots accepted by ledger sessions.
	SnapshotsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_applied_total",
		Help:      "Expense snapshots applied by ledger sessions.",
	})

	// SnapshotsStale counts pushes discarded because their subscription was replaced.
	SnapshotsStale = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_stale_total",
		Help:      "Expense snapshots discarded after their subscription was torn down.",
	})

	// HouseholdMigrations counts legacy relabel attempts by result
	// (attempted, succeeded, failed).
	HouseholdMigrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "household_migrations_total",
		Help:      "Legacy household id migrations by result.",
	}, []string{"result"})

	// ActiveSessions tracks open ledger sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Open ledger sessions.",
	})
)
