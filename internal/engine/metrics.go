package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	passMatched = "matched"
	passEmpty   = "empty"
	passFailed  = "failed"
)

// MatchPasses counts match passes by outcome.
var MatchPasses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stockmatch",
		Subsystem: "engine",
		Name:      "match_passes_total",
		Help:      "Total number of match passes by outcome",
	},
	[]string{"outcome"},
)

// MatchesExecuted counts individual buy/sell matches.
var MatchesExecuted = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "stockmatch",
		Subsystem: "engine",
		Name:      "matches_total",
		Help:      "Total number of executed matches",
	},
)

// SharesMatched counts shares that changed hands.
var SharesMatched = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "stockmatch",
		Subsystem: "engine",
		Name:      "matched_shares_total",
		Help:      "Total number of shares matched",
	},
)

// MatchPassDuration measures a full pass, lock wait excluded.
var MatchPassDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "stockmatch",
		Subsystem: "engine",
		Name:      "match_pass_duration_seconds",
		Help:      "Duration of a match pass in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
)

// SweepFailures counts stocks whose scheduled pass failed.
var SweepFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "stockmatch",
		Subsystem: "engine",
		Name:      "sweep_failures_total",
		Help:      "Total number of failed match passes started by the sweeper",
	},
)
