// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import "time"

// ─── User ───────────────────────────────────────────────────────────────────

// User is the ledger's view of an account holder. Owned exclusively by the
// ledger store; the balance is mutated only through credit/debit operations.
type User struct {
	Email       string    `json:"email"`
	DeviceID    string    `json:"device_id"`
	Coins       int64     `json:"coins"`
	IsNewUser   bool      `json:"is_new_user"`
	SignupDate  time.Time `json:"signup_date"`
	LastCheckIn string    `json:"last_check_in,omitempty"` // YYYY-MM-DD, empty = never
}

// ─── Daily Stats ────────────────────────────────────────────────────────────

// DailyStats is a date-stamped quota counter record. If Date disagrees with
// the current calendar date the record is stale and must be reset before use.
type DailyStats struct {
	Date             string `json:"date"` // YYYY-MM-DD
	ScratchesUsed    int    `json:"scratches_used"`
	SpinsUsed        int    `json:"spins_used"`
	CoinsEarnedToday int64  `json:"coins_earned_today"`
}

// DateString formats t as the calendar key used by DailyStats.
func DateString(t time.Time) string {
	return t.Format(time.DateOnly)
}

// FreshStats returns a zeroed stats record for the given day.
func FreshStats(t time.Time) DailyStats {
	return DailyStats{Date: DateString(t)}
}

// Normalize resets the record to zero if it belongs to an earlier day.
// Stats never silently carry over across a date rollover.
func (s DailyStats) Normalize(now time.Time) DailyStats {
	if s.Date != DateString(now) {
		return FreshStats(now)
	}
	return s
}

// ─── Task Kinds ─────────────────────────────────────────────────────────────

// TaskKind identifies a reward-granting micro-task.
type TaskKind string

const (
	TaskScratch TaskKind = "SCRATCH"
	TaskSpin    TaskKind = "SPIN"
)

// Valid reports whether the kind is one the quota manager tracks.
func (k TaskKind) Valid() bool {
	return k == TaskScratch || k == TaskSpin
}

// ─── Transactions ───────────────────────────────────────────────────────────

// TxKind represents the business reason for a ledger entry.
type TxKind string

const (
	TxEarn     TxKind = "EARN"
	TxWithdraw TxKind = "WITHDRAW"
	TxBonus    TxKind = "BONUS"
)

// TxStatus is the settlement state of a transaction.
// PENDING may move to SUCCESS or FAILED exactly once and never back.
type TxStatus string

const (
	StatusSuccess TxStatus = "SUCCESS"
	StatusPending TxStatus = "PENDING"
	StatusFailed  TxStatus = "FAILED"
)

// Final reports whether the status is terminal.
func (s TxStatus) Final() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Transaction is a single ledger entry. Amount is always a positive
// magnitude; Kind determines the sign (EARN/BONUS credit, WITHDRAW debits).
// Only the Status field may change after creation, and only via the ledger
// store's status-update path.
type Transaction struct {
	ID        string    `json:"id"`
	Kind      TxKind    `json:"kind"`
	Amount    int64     `json:"amount"`              // payout units for WITHDRAW, coins otherwise
	CoinCost  int64     `json:"coin_cost,omitempty"` // coins debited at commit, WITHDRAW only
	Status    TxStatus  `json:"status"`
	Title     string    `json:"title"`
	Channel   string    `json:"channel,omitempty"` // payout channel, WITHDRAW only
	Details   string    `json:"details,omitempty"` // payment address or free-form note
	CreatedAt time.Time `json:"created_at"`
}

// CoinDelta returns the signed effect of the transaction on the coin balance
// at the time it was created. A later FAILED withdrawal is reversed by an
// explicit compensating credit, never by re-signing this entry.
func (t Transaction) CoinDelta() int64 {
	switch t.Kind {
	case TxEarn, TxBonus:
		return t.Amount
	case TxWithdraw:
		return -t.CoinCost
	default:
		return 0
	}
}

// ─── Remote Authority Status ────────────────────────────────────────────────

// RemoteStatus is the authoritative settlement state reported for a
// withdrawal request id.
type RemoteStatus string

const (
	RemotePending RemoteStatus = "PENDING"
	RemoteSuccess RemoteStatus = "SUCCESS"
	RemoteFailed  RemoteStatus = "FAILED"
)

// ToTxStatus maps a remote status onto the local transaction status.
func (s RemoteStatus) ToTxStatus() TxStatus {
	switch s {
	case RemoteSuccess:
		return StatusSuccess
	case RemoteFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}
