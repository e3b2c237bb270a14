// Package metrics defines and registers all custom Prometheus metrics for the
// codepilot assistant API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry at package
// initialisation through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "assistant"

// ── AI metrics ────────────────────────────────────────────────────────────────

// AIRequestsTotal counts orchestration calls.
// Labels:
//   - provider: "gemini" or "openai"
//   - operation: "analyze", "solve" or "chat"
//   - outcome: "ok", "unauthenticated", "malformed", "provider_error", "superseded", "persist_error"
var AIRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_requests_total",
		Help:      "Total number of AI orchestration requests, by provider, operation and outcome.",
	},
	[]string{"provider", "operation", "outcome"},
)

// AIRequestDuration measures the provider round trip only.
// Label:
//   - provider: the backend that served the call
var AIRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ai_request_duration_seconds",
		Help:      "Duration of generative-AI provider calls.",
		Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 60},
	},
	[]string{"provider"},
)

// ProviderSwitchesTotal counts explicit provider changes.
// Label:
//   - provider: the newly selected backend
var ProviderSwitchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_switches_total",
		Help:      "Total number of AI provider switches, by selected provider.",
	},
	[]string{"provider"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthSubmissionsTotal counts auth modal submissions.
// Labels:
//   - step: the step the form was submitted from (e.g. "signin", "reset")
//   - outcome: "ok" or the classified error (e.g. "invalid_credentials")
var AuthSubmissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_submissions_total",
		Help:      "Total number of auth flow submissions, by step and outcome.",
	},
	[]string{"step", "outcome"},
)

// CallbackDispatchTotal counts auth callback resolutions.
// Labels:
//   - branch: "signup", "recovery", "tokens" or "none"
//   - outcome: "ok" or "error"
var CallbackDispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_callback_total",
		Help:      "Total number of auth callback requests, by dispatch branch and outcome.",
	},
	[]string{"branch", "outcome"},
)

// SessionEventsTotal counts session store events.
// Label:
//   - type: "signed_in", "signed_out" or "token_refreshed"
var SessionEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_events_total",
		Help:      "Total number of session lifecycle events.",
	},
	[]string{"type"},
)

// ── Usage metrics ─────────────────────────────────────────────────────────────

// UsageQueueDepth tracks pending usage updates in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var UsageQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "usage_queue_depth",
		Help:      "Current number of usage updates pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// UsageErrorsTotal counts usage updates that could not be applied.
var UsageErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "usage_errors_total",
		Help:      "Total number of usage counter updates that failed to persist.",
	},
)

// ── Aggregate gauges ──────────────────────────────────────────────────────────

// UsersTotal is the number of users with a usage row, refreshed by the stats job.
var UsersTotal = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "users_total",
		Help:      "Number of users with recorded activity.",
	},
)

// UsageTotal holds the summed usage counters of all users.
// Label:
//   - kind: "analyses", "problems_solved" or "chat_messages"
var UsageTotal = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "usage_total",
		Help:      "Summed usage counters across all users, by kind.",
	},
	[]string{"kind"},
)
