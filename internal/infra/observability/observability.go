// Package observability exposes Prometheus metrics for the ledger daemon:
// earn/withdraw/compensation volumes, reconciliation cycle health, and the
// live coin balance. Served at /metrics when api.metrics is enabled.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// CoinBalance tracks the current user coin balance.
var CoinBalance = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ledgerd",
	Subsystem: "ledger",
	Name:      "coin_balance",
	Help:      "Current coin balance of the active user.",
})

// CoinsEarned counts coins credited, by source (task, signup, checkin, referral).
var CoinsEarned = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgerd",
	Subsystem: "ledger",
	Name:      "coins_earned_total",
	Help:      "Total coins credited to the balance, by source.",
}, []string{"source"})

// CoinsWithdrawn counts coins debited by committed withdrawals.
var CoinsWithdrawn = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ledgerd",
	Subsystem: "ledger",
	Name:      "coins_withdrawn_total",
	Help:      "Total coins debited by committed withdrawal requests.",
})

// TransactionsAppended counts history entries by kind.
var TransactionsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgerd",
	Subsystem: "ledger",
	Name:      "transactions_total",
	Help:      "Total transactions appended to the history, by kind.",
}, []string{"kind"})

// ─── Quota Metrics ──────────────────────────────────────────────────────────

// TasksCompleted counts rewarded task completions by kind.
var TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgerd",
	Subsystem: "quota",
	Name:      "tasks_completed_total",
	Help:      "Total rewarded task completions, by task kind.",
}, []string{"kind"})

// TasksDenied counts task attempts denied by quota or cooldown.
var TasksDenied = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgerd",
	Subsystem: "quota",
	Name:      "tasks_denied_total",
	Help:      "Total task attempts denied, by reason (cooldown, task_cap, earn_cap).",
}, []string{"reason"})

// ─── Reconciliation Metrics ─────────────────────────────────────────────────

// PollCycles counts reconciliation poll cycles by outcome.
var PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgerd",
	Subsystem: "reconcile",
	Name:      "poll_cycles_total",
	Help:      "Total reconciliation poll cycles, by outcome (idle, unchanged, applied).",
}, []string{"outcome"})

// AuthorityErrors counts failed remote authority calls by operation.
var AuthorityErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgerd",
	Subsystem: "reconcile",
	Name:      "authority_errors_total",
	Help:      "Total failed remote authority calls, by operation (submit, status).",
}, []string{"op"})

// StatusTransitions counts PENDING→final withdrawal transitions.
var StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledgerd",
	Subsystem: "reconcile",
	Name:      "status_transitions_total",
	Help:      "Total withdrawal status transitions applied, by final status.",
}, []string{"status"})

// CompensationPayouts counts coins refunded for rejected withdrawals,
// goodwill bonus included.
var CompensationPayouts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ledgerd",
	Subsystem: "reconcile",
	Name:      "compensation_coins_total",
	Help:      "Total coins credited back for rejected withdrawals, goodwill included.",
})
