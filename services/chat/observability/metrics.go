// Package observability holds the Prometheus metrics for the chat service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatTurns counts completed chat turns by responder kind and outcome.
	ChatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netchat_chat_turns_total",
			Help: "Completed chat turns by responder and outcome.",
		},
		[]string{"responder", "outcome"},
	)

	// TurnDuration observes wall-clock seconds per chat turn.
	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netchat_chat_turn_duration_seconds",
			Help:    "Wall-clock duration of a chat turn.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ToolCalls counts tool executions by tool name and status. Reused
	// calls served from stored results count under status "memoized".
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netchat_tool_calls_total",
			Help: "Tool calls by tool name and status (ok, error, memoized).",
		},
		[]string{"tool", "status"},
	)

	// AgentRounds observes how many model rounds each agent turn took.
	AgentRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netchat_agent_rounds",
			Help:    "Model rounds consumed per agent turn.",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// ArchiveOps counts archive lifecycle operations by kind.
	ArchiveOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netchat_archive_operations_total",
			Help: "Archive operations by kind (create, delete).",
		},
		[]string{"kind"},
	)
)
