package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scratchearn/ledgerd/internal/app/ledger"
	"github.com/scratchearn/ledgerd/internal/domain"
	"github.com/scratchearn/ledgerd/internal/infra/remote"
	"github.com/scratchearn/ledgerd/internal/infra/sqlite"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func testCatalog() domain.Catalog {
	return domain.Catalog{
		{ID: "upi_15", Channel: domain.ChannelUPI, Coins: 900, Amount: 15, Label: "₹15 UPI Cash"},
		{ID: "play_15", Channel: domain.ChannelGiftCard, Coins: 1500, Amount: 15, Label: "₹15 Google Play Code"},
	}
}

func newTestPoller(t *testing.T, coins int64) (*Poller, *ledger.Store, *remote.MemoryAuthority) {
	t.Helper()
	db, err := sqlite.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := ledger.NewStore(db)
	if err := store.SaveUser(domain.User{Email: "a@b.com", Coins: coins, SignupDate: testNow}); err != nil {
		t.Fatal(err)
	}

	authority := remote.NewMemoryAuthority()
	comp := NewCompensator(testCatalog(), 50)
	return NewPoller(store, authority, comp, 10*time.Second), store, authority
}

// commitAndSubmit mirrors the withdrawal commit path: debit locally, then
// register with the authority.
func commitAndSubmit(t *testing.T, store *ledger.Store, authority *remote.MemoryAuthority, opt domain.WithdrawalOption) domain.Transaction {
	t.Helper()
	tx, err := store.CommitWithdrawal(opt, "someone@upi", testNow)
	if err != nil {
		t.Fatalf("CommitWithdrawal() error: %v", err)
	}
	if err := authority.SubmitWithdrawal(context.Background(), "a@b.com", tx); err != nil {
		t.Fatalf("SubmitWithdrawal() error: %v", err)
	}
	return tx
}

var upi15 = domain.WithdrawalOption{ID: "upi_15", Channel: domain.ChannelUPI, Coins: 900, Amount: 15, Label: "₹15 UPI Cash"}

// ─── Cycle Outcomes ─────────────────────────────────────────────────────────

func TestCycle_IdleWithoutPending(t *testing.T) {
	p, store, authority := newTestPoller(t, 9000)

	outcome, err := p.Cycle(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if outcome != OutcomeIdle {
		t.Errorf("outcome = %q, want idle with empty history", outcome)
	}

	// A pending withdrawal whose remote status is still PENDING: polled,
	// nothing staged.
	commitAndSubmit(t, store, authority, upi15)
	outcome, err = p.Cycle(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if outcome != OutcomeUnchanged {
		t.Errorf("outcome = %q, want unchanged while remote is PENDING", outcome)
	}
}

func TestCycle_AppliesSuccess(t *testing.T) {
	p, store, authority := newTestPoller(t, 9000)
	tx := commitAndSubmit(t, store, authority, upi15)

	authority.Resolve(tx.ID, domain.RemoteSuccess)
	outcome, err := p.Cycle(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Errorf("outcome = %q, want applied", outcome)
	}

	history := store.History()
	if history[0].Status != domain.StatusSuccess {
		t.Errorf("status = %q, want SUCCESS", history[0].Status)
	}
	// An approved withdrawal refunds nothing.
	if u := store.User(); u.Coins != 8100 {
		t.Errorf("balance = %d, want 8100", u.Coins)
	}
	if len(history) != 1 {
		t.Errorf("history has %d entries, want 1 (no bonus)", len(history))
	}
}

// Balance 9000, commit a 900-coin withdrawal leaving 8100, remote rejects
// it, next cycle refunds 900 plus 50 goodwill for 9050.
func TestCycle_CompensatesFailure(t *testing.T) {
	p, store, authority := newTestPoller(t, 9000)
	tx := commitAndSubmit(t, store, authority, upi15)
	if u := store.User(); u.Coins != 8100 {
		t.Fatalf("balance after commit = %d, want 8100", u.Coins)
	}

	authority.Resolve(tx.ID, domain.RemoteFailed)
	outcome, err := p.Cycle(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Errorf("outcome = %q, want applied", outcome)
	}

	u := store.User()
	if u.Coins != 9050 {
		t.Errorf("balance = %d, want 9050 (900 refund + 50 goodwill)", u.Coins)
	}

	history := store.History()
	if len(history) != 2 {
		t.Fatalf("history has %d entries, want 2", len(history))
	}
	bonus := history[0]
	if bonus.Kind != domain.TxBonus || bonus.Amount != 950 || bonus.Status != domain.StatusSuccess {
		t.Errorf("bonus tx = %+v, want SUCCESS BONUS of 950", bonus)
	}
	if bonus.Title != "Refund Bonus" {
		t.Errorf("bonus title = %q", bonus.Title)
	}
	if history[1].Status != domain.StatusFailed {
		t.Errorf("withdrawal status = %q, want FAILED", history[1].Status)
	}
}

func TestCycle_CompensatesOnlyOnce(t *testing.T) {
	p, store, authority := newTestPoller(t, 9000)
	tx := commitAndSubmit(t, store, authority, upi15)
	authority.Resolve(tx.ID, domain.RemoteFailed)

	if _, err := p.Cycle(context.Background(), testNow); err != nil {
		t.Fatal(err)
	}

	// However many more cycles observe the FAILED transaction, no further
	// bonus or credit may appear.
	for i := 0; i < 5; i++ {
		outcome, err := p.Cycle(context.Background(), testNow)
		if err != nil {
			t.Fatalf("cycle %d error: %v", i, err)
		}
		if outcome != OutcomeIdle {
			t.Errorf("cycle %d outcome = %q, want idle", i, outcome)
		}
	}

	if u := store.User(); u.Coins != 9050 {
		t.Errorf("balance = %d, want 9050 unchanged", u.Coins)
	}
	if history := store.History(); len(history) != 2 {
		t.Errorf("history has %d entries, want 2 (one bonus, ever)", len(history))
	}
}

func TestCycle_Idempotent(t *testing.T) {
	p, store, authority := newTestPoller(t, 9000)
	commitAndSubmit(t, store, authority, upi15)

	// Two cycles with no remote change: no new transactions, no balance move.
	p.Cycle(context.Background(), testNow)
	before := store.User().Coins
	n := len(store.History())

	p.Cycle(context.Background(), testNow)
	if store.User().Coins != before {
		t.Errorf("balance moved on a no-change cycle: %d → %d", before, store.User().Coins)
	}
	if len(store.History()) != n {
		t.Errorf("history grew on a no-change cycle")
	}
}

func TestCycle_BatchGoodwillOnce(t *testing.T) {
	p, store, authority := newTestPoller(t, 9000)
	tx1 := commitAndSubmit(t, store, authority, upi15)
	tx2 := commitAndSubmit(t, store, authority, upi15)

	authority.Resolve(tx1.ID, domain.RemoteFailed)
	authority.Resolve(tx2.ID, domain.RemoteFailed)
	if _, err := p.Cycle(context.Background(), testNow); err != nil {
		t.Fatal(err)
	}

	// 9000 − 1800 debits + 1800 refund + one 50 goodwill (per batch, not
	// per transaction) = 9050.
	if u := store.User(); u.Coins != 9050 {
		t.Errorf("balance = %d, want 9050", u.Coins)
	}

	var bonuses int
	for _, tx := range store.History() {
		if tx.Kind == domain.TxBonus {
			bonuses++
		}
	}
	if bonuses != 1 {
		t.Errorf("found %d bonus transactions, want 1 for the batch", bonuses)
	}
}

func TestCycle_AuthorityErrorIsolated(t *testing.T) {
	p, store, authority := newTestPoller(t, 9000)
	tx1 := commitAndSubmit(t, store, authority, upi15)
	tx2 := commitAndSubmit(t, store, authority, upi15)

	// tx1's status lookup fails; tx2 resolves. The cycle must still apply tx2.
	authority.FailStatus(tx1.ID, errors.New("network down"))
	authority.Resolve(tx2.ID, domain.RemoteSuccess)

	outcome, err := p.Cycle(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Errorf("outcome = %q, want applied despite one failing id", outcome)
	}

	byID := make(map[string]domain.Transaction)
	for _, tx := range store.History() {
		byID[tx.ID] = tx
	}
	if byID[tx1.ID].Status != domain.StatusPending {
		t.Errorf("tx1 status = %q, want still PENDING", byID[tx1.ID].Status)
	}
	if byID[tx2.ID].Status != domain.StatusSuccess {
		t.Errorf("tx2 status = %q, want SUCCESS", byID[tx2.ID].Status)
	}

	// The failing id is retried on the next cycle, indefinitely.
	authority.FailStatus(tx1.ID, nil)
	authority.Resolve(tx1.ID, domain.RemoteFailed)
	if _, err := p.Cycle(context.Background(), testNow); err != nil {
		t.Fatal(err)
	}
	if u := store.User(); u.Coins != 8150 {
		t.Errorf("balance = %d, want 7200 + 900 + 50 = 8150", u.Coins)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	p, store, authority := newTestPoller(t, 9000)
	tx := commitAndSubmit(t, store, authority, upi15)

	p2 := NewPoller(p.store, p.authority, p.comp, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p2.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop on context cancel")
	}

	// No orphaned cycle applies updates after shutdown.
	authority.Resolve(tx.ID, domain.RemoteFailed)
	time.Sleep(50 * time.Millisecond)
	if history := store.History(); history[0].Status != domain.StatusPending {
		t.Errorf("status = %q, want PENDING after poller stopped", history[0].Status)
	}
}

// ─── Compensator ────────────────────────────────────────────────────────────

func TestCompensator_UsesRecordedCost(t *testing.T) {
	c := NewCompensator(testCatalog(), 50)

	refund, bonus := c.Compensate([]domain.Transaction{
		{ID: "w1", Kind: domain.TxWithdraw, Amount: 15, CoinCost: 900, Title: "Withdraw to UPI"},
	}, testNow)
	if refund != 950 {
		t.Errorf("refund = %d, want 950", refund)
	}
	if bonus.Amount != 950 || bonus.Kind != domain.TxBonus {
		t.Errorf("bonus = %+v", bonus)
	}
}

func TestCompensator_ReconstructsLegacyCost(t *testing.T) {
	c := NewCompensator(testCatalog(), 50)

	// Entries written before the coin cost was recorded fall back to the
	// catalog, disambiguating by channel hint in the title.
	refund, _ := c.Compensate([]domain.Transaction{
		{ID: "w1", Kind: domain.TxWithdraw, Amount: 15, Title: "Withdraw to UPI"},
		{ID: "w2", Kind: domain.TxWithdraw, Amount: 15, Title: "Withdraw to Google Play"},
	}, testNow)
	if refund != 900+1500+50 {
		t.Errorf("refund = %d, want 2450", refund)
	}
}
