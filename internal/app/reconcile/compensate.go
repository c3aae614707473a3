package reconcile

import (
	"time"

	"github.com/google/uuid"

	"github.com/scratchearn/ledgerd/internal/domain"
)

// Compensator builds the corrective credit for rejected withdrawals: the
// originally-debited coins come back, plus one fixed goodwill bonus per
// detected batch (not per transaction).
type Compensator struct {
	catalog  domain.Catalog
	goodwill int64
}

// NewCompensator creates a compensator using catalog for legacy cost
// reconstruction and goodwill as the per-batch bonus.
func NewCompensator(catalog domain.Catalog, goodwill int64) *Compensator {
	return &Compensator{catalog: catalog, goodwill: goodwill}
}

// Compensate computes the refund for a batch of newly-failed withdrawals and
// the single BONUS transaction recording it. The caller must persist the
// transaction and the credit in the same atomic write as the status changes.
func (c *Compensator) Compensate(failed []domain.Transaction, now time.Time) (int64, domain.Transaction) {
	var refund int64
	for _, tx := range failed {
		refund += c.coinCost(tx)
	}
	refund += c.goodwill

	return refund, domain.Transaction{
		ID:        uuid.NewString(),
		Kind:      domain.TxBonus,
		Amount:    refund,
		Status:    domain.StatusSuccess,
		Title:     "Refund Bonus",
		Details:   "Compensation for failed withdrawal",
		CreatedAt: now,
	}
}

// coinCost recovers the coins debited for a withdrawal. Transactions record
// the cost directly at commit time; entries written before that column
// existed fall back to matching payout amount and channel against the
// catalog, which breaks silently if the catalog has changed since.
func (c *Compensator) coinCost(tx domain.Transaction) int64 {
	if tx.CoinCost > 0 {
		return tx.CoinCost
	}
	return c.catalog.ReconstructCost(tx.Amount, tx.Title)
}
