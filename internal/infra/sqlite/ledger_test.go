package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/scratchearn/ledgerd/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testTx(id string, kind domain.TxKind, status domain.TxStatus, amount, coinCost int64) domain.Transaction {
	return domain.Transaction{
		ID:        id,
		Kind:      kind,
		Amount:    amount,
		CoinCost:  coinCost,
		Status:    status,
		Title:     "test",
		CreatedAt: time.Now(),
	}
}

// ─── User Profile ───────────────────────────────────────────────────────────

func TestGetUser_Empty(t *testing.T) {
	db := newTestDB(t)
	u, err := db.GetUser()
	if err != nil {
		t.Fatalf("GetUser() error: %v", err)
	}
	if u != nil {
		t.Errorf("GetUser() on empty db = %+v, want nil", u)
	}
}

func TestSaveUser_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	in := domain.User{
		Email:       "a@b.com",
		DeviceID:    "dev-1",
		Coins:       500,
		IsNewUser:   true,
		SignupDate:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LastCheckIn: "2025-06-01",
	}
	if err := db.SaveUser(in); err != nil {
		t.Fatalf("SaveUser() error: %v", err)
	}

	got, err := db.GetUser()
	if err != nil {
		t.Fatalf("GetUser() error: %v", err)
	}
	if got == nil {
		t.Fatal("GetUser() = nil after save")
	}
	if *got != in {
		t.Errorf("GetUser() = %+v, want %+v", *got, in)
	}

	// Second save overwrites, one row only.
	in.Coins = 510
	in.IsNewUser = false
	if err := db.SaveUser(in); err != nil {
		t.Fatalf("SaveUser() update error: %v", err)
	}
	got, _ = db.GetUser()
	if got.Coins != 510 || got.IsNewUser {
		t.Errorf("after update GetUser() = %+v", got)
	}
}

// ─── Daily Stats ────────────────────────────────────────────────────────────

func TestStats_DefaultsWhenAbsent(t *testing.T) {
	db := newTestDB(t)
	s, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if s != (domain.DailyStats{}) {
		t.Errorf("GetStats() on empty db = %+v, want zero record", s)
	}
}

func TestStats_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	in := domain.DailyStats{Date: "2025-06-02", ScratchesUsed: 4, SpinsUsed: 2, CoinsEarnedToday: 60}
	if err := db.SaveStats(in); err != nil {
		t.Fatalf("SaveStats() error: %v", err)
	}
	got, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if got != in {
		t.Errorf("GetStats() = %+v, want %+v", got, in)
	}
}

// ─── Transaction History ────────────────────────────────────────────────────

func TestHistory_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	for _, id := range []string{"t1", "t2", "t3"} {
		if err := db.AppendTransaction(testTx(id, domain.TxEarn, domain.StatusSuccess, 10, 0)); err != nil {
			t.Fatalf("AppendTransaction(%s) error: %v", id, err)
		}
	}

	history, err := db.GetHistory()
	if err != nil {
		t.Fatalf("GetHistory() error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	if history[0].ID != "t3" || history[2].ID != "t1" {
		t.Errorf("history order = %s,%s,%s, want t3,t2,t1",
			history[0].ID, history[1].ID, history[2].ID)
	}
}

func TestUpdateTransactionStatus_OneShot(t *testing.T) {
	db := newTestDB(t)
	if err := db.AppendTransaction(testTx("w1", domain.TxWithdraw, domain.StatusPending, 15, 900)); err != nil {
		t.Fatal(err)
	}

	if err := db.UpdateTransactionStatus("w1", domain.StatusFailed); err != nil {
		t.Fatalf("UpdateTransactionStatus() error: %v", err)
	}

	// A final status never changes again.
	err := db.UpdateTransactionStatus("w1", domain.StatusSuccess)
	if !errors.Is(err, domain.ErrStatusFinal) {
		t.Errorf("second update error = %v, want ErrStatusFinal", err)
	}

	history, _ := db.GetHistory()
	if history[0].Status != domain.StatusFailed {
		t.Errorf("status = %q, want FAILED", history[0].Status)
	}
}

func TestUpdateTransactionStatus_NotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.UpdateTransactionStatus("ghost", domain.StatusSuccess)
	if !errors.Is(err, domain.ErrTxNotFound) {
		t.Errorf("error = %v, want ErrTxNotFound", err)
	}
}

// ─── Atomic Ledger Entry ────────────────────────────────────────────────────

func TestApplyLedgerEntry_PersistsAllThree(t *testing.T) {
	db := newTestDB(t)

	u := domain.User{Email: "a@b.com", Coins: 8100, SignupDate: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	stats := domain.DailyStats{Date: "2025-06-02", ScratchesUsed: 1, CoinsEarnedToday: 10}
	err := db.ApplyLedgerEntry(u, &stats, testTx("w1", domain.TxWithdraw, domain.StatusPending, 15, 900))
	if err != nil {
		t.Fatalf("ApplyLedgerEntry() error: %v", err)
	}

	got, _ := db.GetUser()
	if got == nil || got.Coins != 8100 {
		t.Errorf("user after entry = %+v, want coins 8100", got)
	}
	gotStats, _ := db.GetStats()
	if gotStats != stats {
		t.Errorf("stats = %+v, want %+v", gotStats, stats)
	}
	history, _ := db.GetHistory()
	if len(history) != 1 || history[0].ID != "w1" {
		t.Errorf("history = %+v, want the single withdrawal", history)
	}
}

func TestApplyLedgerEntry_RollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	if err := db.SaveUser(domain.User{Email: "a@b.com", Coins: 9000, SignupDate: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := db.AppendTransaction(testTx("w1", domain.TxWithdraw, domain.StatusPending, 15, 900)); err != nil {
		t.Fatal(err)
	}

	// Duplicate transaction id violates the unique index after the user row
	// was already written inside the transaction; the debit must roll back
	// with it.
	u := domain.User{Email: "a@b.com", Coins: 8100, SignupDate: time.Now()}
	err := db.ApplyLedgerEntry(u, nil, testTx("w1", domain.TxWithdraw, domain.StatusPending, 15, 900))
	if err == nil {
		t.Fatal("ApplyLedgerEntry() with duplicate id should fail")
	}

	got, _ := db.GetUser()
	if got.Coins != 9000 {
		t.Errorf("coins = %d, want 9000 restored by rollback", got.Coins)
	}
	history, _ := db.GetHistory()
	if len(history) != 1 {
		t.Errorf("len(history) = %d, want the original entry only", len(history))
	}
}

// ─── Reconciliation Write ───────────────────────────────────────────────────

func TestApplyReconciliation_Atomic(t *testing.T) {
	db := newTestDB(t)
	if err := db.SaveUser(domain.User{Email: "a@b.com", Coins: 8100, SignupDate: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := db.AppendTransaction(testTx("w1", domain.TxWithdraw, domain.StatusPending, 15, 900)); err != nil {
		t.Fatal(err)
	}

	bonus := testTx("b1", domain.TxBonus, domain.StatusSuccess, 950, 0)
	err := db.ApplyReconciliation(
		map[string]domain.TxStatus{"w1": domain.StatusFailed},
		&bonus,
		950,
	)
	if err != nil {
		t.Fatalf("ApplyReconciliation() error: %v", err)
	}

	u, _ := db.GetUser()
	if u.Coins != 9050 {
		t.Errorf("coins = %d, want 9050", u.Coins)
	}
	history, _ := db.GetHistory()
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].ID != "b1" {
		t.Errorf("head of history = %s, want the bonus tx", history[0].ID)
	}
	if history[1].Status != domain.StatusFailed {
		t.Errorf("withdrawal status = %q, want FAILED", history[1].Status)
	}
}

func TestApplyReconciliation_SkipsFinalStatuses(t *testing.T) {
	db := newTestDB(t)
	if err := db.SaveUser(domain.User{Email: "a@b.com", Coins: 100, SignupDate: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := db.AppendTransaction(testTx("w1", domain.TxWithdraw, domain.StatusFailed, 15, 900)); err != nil {
		t.Fatal(err)
	}

	// Staging an update for an already-final row is a no-op, not an error.
	err := db.ApplyReconciliation(map[string]domain.TxStatus{"w1": domain.StatusSuccess}, nil, 0)
	if err != nil {
		t.Fatalf("ApplyReconciliation() error: %v", err)
	}
	history, _ := db.GetHistory()
	if history[0].Status != domain.StatusFailed {
		t.Errorf("status = %q, want FAILED untouched", history[0].Status)
	}
}

// ─── Device / Session ───────────────────────────────────────────────────────

func TestDeviceID_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	id, err := db.GetDeviceID()
	if err != nil {
		t.Fatalf("GetDeviceID() error: %v", err)
	}
	if id != "" {
		t.Errorf("unset device id = %q, want empty", id)
	}

	if err := db.SetDeviceID("dev-42"); err != nil {
		t.Fatalf("SetDeviceID() error: %v", err)
	}
	id, _ = db.GetDeviceID()
	if id != "dev-42" {
		t.Errorf("device id = %q, want dev-42", id)
	}
}

func TestSessionActive_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	active, err := db.SessionActive()
	if err != nil {
		t.Fatalf("SessionActive() error: %v", err)
	}
	if active {
		t.Error("fresh db should have no active session")
	}

	if err := db.SetSessionActive(true); err != nil {
		t.Fatal(err)
	}
	if active, _ = db.SessionActive(); !active {
		t.Error("session should be active after SetSessionActive(true)")
	}

	if err := db.SetSessionActive(false); err != nil {
		t.Fatal(err)
	}
	if active, _ = db.SessionActive(); active {
		t.Error("session should be inactive after SetSessionActive(false)")
	}
}
