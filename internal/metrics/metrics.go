// Package metrics defines and registers all custom Prometheus metrics for
// JellyConnect. It is the single source of truth for metric names, labels,
// and help strings; metrics register with the default registry at import
// time via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jellyconnect"

// ── Reconciliation metrics ────────────────────────────────────────────────────

// LoginsTotal counts reconciliation outcomes.
// Labels:
//   - outcome: "created", "adopted", "updated", or "failed"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of reconciled logins, by outcome.",
	},
	[]string{"outcome"},
)

// PolicyApplyFailuresTotal counts policy pushes that failed non-fatally
// during reconciliation (the login still succeeded).
var PolicyApplyFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "policy_apply_failures_total",
		Help:      "Total number of non-fatal downstream policy application failures.",
	},
)

// AccountRepairsTotal counts downstream accounts recreated or re-adopted
// after being found missing during a login. A non-zero rate can indicate
// an independently reset or misconfigured downstream environment.
var AccountRepairsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_account_repairs_total",
		Help:      "Total number of missing downstream accounts recreated during reconciliation.",
	},
)

// ── Pairing metrics ───────────────────────────────────────────────────────────

// PairingApprovalsTotal counts pairing-code approvals.
// Labels:
//   - strategy: "delegated", "privileged_user_id", "privileged_user_hint",
//     "bare_privileged", or "none" when every strategy failed
var PairingApprovalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pairing_approvals_total",
		Help:      "Total number of pairing-code approval attempts, by winning strategy.",
	},
	[]string{"strategy"},
)

// ── Lifecycle sweep metrics ───────────────────────────────────────────────────

// SweepUsersTotal counts per-user sweep dispositions.
// Labels:
//   - action: "warned", "disabled", or "failed"
var SweepUsersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_users_total",
		Help:      "Total number of users warned, disabled, or failed across lifecycle sweeps.",
	},
	[]string{"action"},
)

// SweepDuration measures how long one full sweep takes.
var SweepDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a complete lifecycle sweep.",
		Buckets:   prometheus.DefBuckets,
	},
)
