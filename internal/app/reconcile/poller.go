// Package reconcile aligns locally-pending withdrawals with the remote
// authority's record. A fixed-interval poller scans the history for PENDING
// withdrawals, queries the authority per id, applies every observed
// transition in one atomic ledger write, and triggers compensation for the
// withdrawals that just failed.
//
// Exactly-once compensation: the newly-failed set is diffed against the
// pre-poll snapshot, cycles are serialized by a mutex, and the ledger write
// only flips rows that are still PENDING — so a transaction is compensated
// at most once no matter how often the poller observes it afterwards.
package reconcile

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/scratchearn/ledgerd/internal/app/ledger"
	"github.com/scratchearn/ledgerd/internal/domain"
	"github.com/scratchearn/ledgerd/internal/infra/observability"
)

// Outcome classifies a completed poll cycle.
type Outcome string

const (
	OutcomeIdle      Outcome = "idle"      // no user or nothing pending
	OutcomeUnchanged Outcome = "unchanged" // pending items polled, no transitions
	OutcomeApplied   Outcome = "applied"   // at least one transition written
)

// Poller periodically reconciles pending withdrawals.
type Poller struct {
	mu        sync.Mutex // serializes cycles
	store     *ledger.Store
	authority domain.RemoteAuthority
	comp      *Compensator
	interval  time.Duration
}

// NewPoller creates a reconciliation poller.
func NewPoller(store *ledger.Store, authority domain.RemoteAuthority, comp *Compensator, interval time.Duration) *Poller {
	return &Poller{
		store:     store,
		authority: authority,
		comp:      comp,
		interval:  interval,
	}
}

// Run polls until ctx is cancelled. Each cycle is isolated: an error in one
// cycle is logged and retried on the next tick, never escalated.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			outcome, err := p.Cycle(ctx, time.Now())
			if err != nil {
				log.Printf("[reconcile] cycle: %v", err)
				continue
			}
			observability.PollCycles.WithLabelValues(string(outcome)).Inc()
		}
	}
}

// Cycle performs one reconciliation pass. Exported so a commit can trigger
// an immediate pass and tests can drive the poller deterministically.
func (p *Poller) Cycle(ctx context.Context, now time.Time) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store.User() == nil {
		return OutcomeIdle, nil
	}

	// Pre-poll snapshot: everything still PENDING as of this instant.
	// The newly-failed diff is computed against this snapshot, not against
	// the persisted state at write time.
	var pending []domain.Transaction
	for _, tx := range p.store.History() {
		if tx.Kind == domain.TxWithdraw && tx.Status == domain.StatusPending {
			pending = append(pending, tx)
		}
	}
	if len(pending) == 0 {
		return OutcomeIdle, nil
	}

	staged := make(map[string]domain.TxStatus)
	var failed []domain.Transaction
	for _, tx := range pending {
		if ctx.Err() != nil {
			return OutcomeUnchanged, ctx.Err()
		}

		remote, err := p.authority.GetStatus(ctx, tx.ID)
		if err != nil {
			// One unreachable id must not abort the rest; treat it as
			// "no change this cycle" and retry on the next tick.
			observability.AuthorityErrors.WithLabelValues("status").Inc()
			log.Printf("[reconcile] status %s: %v", tx.ID, err)
			continue
		}
		if remote == domain.RemotePending {
			continue
		}

		staged[tx.ID] = remote.ToTxStatus()
		if remote == domain.RemoteFailed {
			failed = append(failed, tx)
		}
	}

	if len(staged) == 0 {
		return OutcomeUnchanged, nil
	}

	var (
		bonus  *domain.Transaction
		credit int64
	)
	if len(failed) > 0 {
		refund, tx := p.comp.Compensate(failed, now)
		bonus, credit = &tx, refund
	}
	if err := p.store.ApplyReconciliation(staged, bonus, credit); err != nil {
		return OutcomeUnchanged, err
	}

	if credit > 0 {
		log.Printf("[reconcile] %d withdrawal(s) rejected, refunded %d coins", len(failed), credit)
	}
	return OutcomeApplied, nil
}
