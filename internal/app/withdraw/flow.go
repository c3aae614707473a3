// Package withdraw implements the short-lived withdrawal flow: pick a
// catalog option, enter a payment address, pass the balance check, commit.
//
// The debit is optimistic by design: coins leave the balance at commit
// time, before the remote authority confirms. Correctness on rejection
// rests entirely on the reconciliation/compensation path.
package withdraw

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/scratchearn/ledgerd/internal/app/ledger"
	"github.com/scratchearn/ledgerd/internal/domain"
	"github.com/scratchearn/ledgerd/internal/infra/observability"
)

// Step is the flow controller's current state.
type Step string

const (
	StepNone         Step = "NONE"
	StepInput        Step = "INPUT"
	StepInsufficient Step = "INSUFFICIENT"
	StepConfirm      Step = "CONFIRM"
)

// Flow is the per-session withdrawal state machine.
type Flow struct {
	mu        sync.Mutex
	store     *ledger.Store
	authority domain.RemoteAuthority
	catalog   domain.Catalog
	minAddr   int

	step     Step
	selected domain.WithdrawalOption
	address  string
}

// NewFlow creates a withdrawal flow controller.
func NewFlow(store *ledger.Store, authority domain.RemoteAuthority, catalog domain.Catalog, minAddrLen int) *Flow {
	return &Flow{
		store:     store,
		authority: authority,
		catalog:   catalog,
		minAddr:   minAddrLen,
		step:      StepNone,
	}
}

// Step returns the current flow state.
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Options returns the withdrawal catalog.
func (f *Flow) Options() domain.Catalog { return f.catalog }

// Select starts the flow with a catalog option, clearing any prior input.
func (f *Flow) Select(optionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selectLocked(optionID)
}

// EnterAddress validates the payment address and routes to CONFIRM or, when
// the balance cannot cover the selected option, to INSUFFICIENT.
func (f *Flow) EnterAddress(address string) (Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enterAddressLocked(address)
}

// Commit executes the confirmed withdrawal: debit the balance, append the
// PENDING transaction, submit to the remote authority, reset the flow.
// A submit failure does not undo the local commit — the request stays
// PENDING locally and the authority learns about it when the operator
// checks, or never; reconciliation keeps polling either way.
func (f *Flow) Commit(ctx context.Context) (domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commitLocked(ctx)
}

// Run drives the whole flow in one locked sequence: select, address,
// commit. Concurrent callers serialize on the flow, so one request can
// never clobber another's selection between steps. Any rejection resets
// the flow.
func (f *Flow) Run(ctx context.Context, optionID, address string) (domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.selectLocked(optionID); err != nil {
		return domain.Transaction{}, err
	}
	step, err := f.enterAddressLocked(address)
	if err != nil {
		f.resetLocked()
		return domain.Transaction{}, err
	}
	if step != StepConfirm {
		f.resetLocked()
		return domain.Transaction{}, domain.ErrInsufficientBalance
	}
	tx, err := f.commitLocked(ctx)
	if err != nil {
		f.resetLocked()
		return domain.Transaction{}, err
	}
	return tx, nil
}

func (f *Flow) selectLocked(optionID string) error {
	opt, ok := f.catalog.Find(optionID)
	if !ok {
		return domain.ErrUnknownOption
	}
	f.selected = opt
	f.address = ""
	f.step = StepInput
	return nil
}

func (f *Flow) enterAddressLocked(address string) (Step, error) {
	address = strings.TrimSpace(address)
	if address == "" || len(address) < f.minAddr {
		return f.step, domain.ErrInvalidAddress
	}
	if f.step != StepInput {
		return f.step, domain.ErrNotConfirmable
	}

	user := f.store.User()
	if user == nil {
		return f.step, domain.ErrNoSession
	}
	f.address = address
	if user.Coins < f.selected.Coins {
		f.step = StepInsufficient
		return f.step, nil
	}
	f.step = StepConfirm
	return f.step, nil
}

func (f *Flow) commitLocked(ctx context.Context) (domain.Transaction, error) {
	if f.step != StepConfirm {
		return domain.Transaction{}, domain.ErrNotConfirmable
	}

	user := f.store.User()
	if user == nil {
		return domain.Transaction{}, domain.ErrNoSession
	}

	tx, err := f.store.CommitWithdrawal(f.selected, f.address, time.Now())
	if err != nil {
		if err == domain.ErrInsufficientBalance {
			// Balance shrank between confirm and commit.
			f.step = StepInsufficient
		}
		return domain.Transaction{}, err
	}

	if err := f.authority.SubmitWithdrawal(ctx, user.Email, tx); err != nil {
		observability.AuthorityErrors.WithLabelValues("submit").Inc()
		log.Printf("[withdraw] submit %s: %v", tx.ID, err)
	}

	f.resetLocked()
	return tx, nil
}

// Cancel discards the selection and input from any state, with no side
// effects.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

func (f *Flow) resetLocked() {
	f.step = StepNone
	f.selected = domain.WithdrawalOption{}
	f.address = ""
}
