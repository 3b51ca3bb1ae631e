package logic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ruleFirings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medai_logic_rule_firings_total",
			Help: "Rules evaluated by the logic engine",
		},
		[]string{"entity", "kind"},
	)

	constraintFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medai_logic_constraint_failures_total",
			Help: "Constraint checks that rejected a row",
		},
		[]string{"entity", "constraint"},
	)

	sessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medai_logic_session_duration_seconds",
			Help:    "Duration of logic sessions including commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"outcome"},
	)

	rowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medai_logic_rows_total",
			Help: "Logic rows flushed, by entity and action",
		},
		[]string{"entity", "action"},
	)
)
