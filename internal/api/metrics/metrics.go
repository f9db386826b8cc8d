// Package metrics defines and registers the custom Prometheus metrics of the
// console identity service. It is the single source of truth for metric
// names, labels and help strings. Metrics register with the default registry
// on package init through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "console"

// ── Authentication ───────────────────────────────────────────────────────────

// LoginAttemptsTotal counts sign-in attempts.
// Labels:
//   - method: "password" or the federated provider name (e.g. "google")
//   - result: "success", "invalid", "throttled" or "rejected"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of sign-in attempts by method and result.",
	},
	[]string{"method", "result"},
)

// SessionsMaterializedTotal counts per-request session refreshes.
// Label:
//   - result: "ok", "expired", "revoked" (account deleted) or "error"
var SessionsMaterializedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_materialized_total",
		Help:      "Total number of sessions refreshed from the account record.",
	},
	[]string{"result"},
)

// PasswordHashDuration measures bcrypt work including time spent waiting for
// a hashing slot.
// Label:
//   - op: "hash" or "compare"
var PasswordHashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of password hashing and comparison.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5},
	},
	[]string{"op"},
)

// DecryptionFailuresTotal counts stored email envelopes that failed to open.
var DecryptionFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "email_decryption_failures_total",
		Help:      "Total number of stored email ciphertexts that could not be decrypted.",
	},
)

// ── Token lifecycles ─────────────────────────────────────────────────────────

// InvitationEventsTotal counts invitation lifecycle outcomes.
// Label:
//   - event: "created", "redeemed", "not_found", "already_accepted", "expired" or "email_taken"
var InvitationEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invitation_events_total",
		Help:      "Total number of invitation lifecycle events.",
	},
	[]string{"event"},
)

// PasswordResetEventsTotal counts password reset lifecycle outcomes.
// Label:
//   - event: "requested", "unknown_email", "completed", "invalid", "used" or "expired"
var PasswordResetEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_reset_events_total",
		Help:      "Total number of password reset lifecycle events.",
	},
	[]string{"event"},
)

// ── Notifications ────────────────────────────────────────────────────────────

// NotificationsTotal counts outbound email deliveries.
// Labels:
//   - kind: "invitation" or "password_reset"
//   - result: "sent", "failed" or "dropped" (queue full)
var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of notification deliveries by kind and result.",
	},
	[]string{"kind", "result"},
)

// NotificationQueueDepth tracks messages waiting for a notification worker.
var NotificationQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notification_queue_depth",
		Help:      "Current number of notifications waiting to be sent.",
	},
)
