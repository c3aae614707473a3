package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// LedgerPersistence abstracts the durable store beneath the ledger service.
// Every mutating call persists before returning; every getter degrades to an
// empty default instead of failing when local data is absent or corrupt.
type LedgerPersistence interface {
	GetUser() (*User, error)
	SaveUser(u User) error

	GetStats() (DailyStats, error)
	SaveStats(s DailyStats) error

	GetHistory() ([]Transaction, error) // newest first
	AppendTransaction(tx Transaction) error
	UpdateTransactionStatus(id string, status TxStatus) error

	// ApplyLedgerEntry persists the user, optional stats, and a new
	// transaction as one atomic write. A balance change must never land
	// without its history entry.
	ApplyLedgerEntry(u User, stats *DailyStats, tx Transaction) error

	// ApplyReconciliation commits staged status updates, an optional bonus
	// transaction, and a balance credit as one atomic write.
	ApplyReconciliation(statuses map[string]TxStatus, bonus *Transaction, credit int64) error

	GetDeviceID() (string, error)
	SetDeviceID(id string) error
	SessionActive() (bool, error)
	SetSessionActive(active bool) error
}

// RemoteAuthority is the external system of record for withdrawal approval.
// Submit is fire-and-forget: the core never blocks ledger correctness on it.
type RemoteAuthority interface {
	// SubmitWithdrawal registers a pending withdrawal with the authority.
	SubmitWithdrawal(ctx context.Context, userEmail string, tx Transaction) error

	// GetStatus looks up the authoritative status for a transaction id.
	// Returns ErrStatusNotFound when the authority has no record.
	GetStatus(ctx context.Context, txID string) (RemoteStatus, error)
}
