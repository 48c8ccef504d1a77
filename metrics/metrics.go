// Package metrics holds the Prometheus collectors exported by matchbroker.
//
// Collectors are registered with the default registry on import and served by
// the api package at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "matchbroker"

var (
	// Rooms tracks the current number of rooms per pool.
	Rooms = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms",
		Help:      "Number of rooms currently tracked, by state.",
	}, []string{"state"})

	MatchesFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_finalized_total",
		Help:      "Number of rooms handed off as finalized matches.",
	})

	RoomsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rooms_merged_total",
		Help:      "Number of redundant waiting rooms dissolved by the merge pass.",
	})

	// Actions counts inbound client actions by name.
	Actions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "actions_total",
		Help:      "Number of client actions processed, by action.",
	}, []string{"action"})

	Disconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "disconnects_total",
		Help:      "Number of disconnect reconciliations run.",
	})

	// Connections tracks open websocket connections.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Number of open websocket connections.",
	})
)
