// Package ledger implements the Ledger Store: the single owner of the coin
// balance, quota counters, and transaction history.
//
// Every read-modify-write against balance, stats, or transaction status goes
// through one mutex here, so two concurrent credits (a task reward and a
// compensation payout, say) can never be computed from the same stale
// balance. Persistence is synchronous: when a mutating call returns, the
// durable store already holds the new state.
//
// Reads degrade instead of failing: corrupt or missing local data comes back
// as an empty default, and absence of a user record means "no session", not
// a zero-balance user.
package ledger

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scratchearn/ledgerd/internal/domain"
	"github.com/scratchearn/ledgerd/internal/infra/observability"
)

// Store serializes all ledger mutations over the durable persistence layer.
type Store struct {
	mu sync.Mutex
	db domain.LedgerPersistence
}

// NewStore creates a ledger store over db.
func NewStore(db domain.LedgerPersistence) *Store {
	return &Store{db: db}
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// User returns the stored user, or nil when none exists or the record is
// unreadable. The store never fails a read.
func (s *Store) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userLocked()
}

// Stats returns today's quota counters, normalized for date rollover.
func (s *Store) Stats(now time.Time) domain.DailyStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked(now)
}

// History returns the transaction history, newest first. Unreadable history
// degrades to empty.
func (s *Store) History() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked()
}

// DeviceID returns the stored device identifier, generating and persisting
// one on first use.
func (s *Store) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.db.GetDeviceID()
	if err != nil {
		log.Printf("[ledger] read device id: %v", err)
	}
	if id != "" {
		return id
	}
	id = "dev_" + uuid.NewString()
	if err := s.db.SetDeviceID(id); err != nil {
		log.Printf("[ledger] persist device id: %v", err)
	}
	return id
}

// SessionActive reports the persisted session flag.
func (s *Store) SessionActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, err := s.db.SessionActive()
	if err != nil {
		log.Printf("[ledger] read session flag: %v", err)
		return false
	}
	return active
}

// ─── Session Mutations ──────────────────────────────────────────────────────

// SaveUser replaces the stored user profile.
func (s *Store) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.SaveUser(u); err != nil {
		return err
	}
	observability.CoinBalance.Set(float64(u.Coins))
	return nil
}

// SetSessionActive persists the session flag.
func (s *Store) SetSessionActive(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.SetSessionActive(active)
}

// ─── Earning ────────────────────────────────────────────────────────────────

// EarnGuard carries the quota limits an earn must respect. The guards are
// re-checked under the store lock, so a stale pre-check can never overshoot
// a cap.
type EarnGuard struct {
	TaskCap  int   // per-kind daily completion cap
	DailyCap int64 // global coins-earned-today cap
}

// ApplyTaskReward atomically bumps the task's usage counter, adds the reward
// to coins-earned-today and to the balance, and appends a SUCCESS EARN
// transaction. Returns the updated stats.
func (s *Store) ApplyTaskReward(kind domain.TaskKind, reward int64, guard EarnGuard, now time.Time) (domain.DailyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.userLocked()
	if user == nil {
		return domain.DailyStats{}, domain.ErrNoSession
	}

	stats := s.statsLocked(now)
	used := stats.ScratchesUsed
	if kind == domain.TaskSpin {
		used = stats.SpinsUsed
	}
	if used >= guard.TaskCap {
		observability.TasksDenied.WithLabelValues("task_cap").Inc()
		return stats, domain.ErrQuotaExceeded
	}
	if stats.CoinsEarnedToday >= guard.DailyCap {
		observability.TasksDenied.WithLabelValues("earn_cap").Inc()
		return stats, domain.ErrQuotaExceeded
	}

	switch kind {
	case domain.TaskScratch:
		stats.ScratchesUsed++
	case domain.TaskSpin:
		stats.SpinsUsed++
	}
	stats.CoinsEarnedToday += reward

	title := "Scratch Card Reward"
	if kind == domain.TaskSpin {
		title = "Spin Wheel Reward"
	}
	tx := domain.Transaction{
		ID:        uuid.NewString(),
		Kind:      domain.TxEarn,
		Amount:    reward,
		Status:    domain.StatusSuccess,
		Title:     title,
		CreatedAt: now,
	}

	user.Coins += reward
	if err := s.commitLocked(*user, &stats, tx); err != nil {
		return stats, err
	}

	observability.TasksCompleted.WithLabelValues(string(kind)).Inc()
	observability.CoinsEarned.WithLabelValues("task").Add(float64(reward))
	return stats, nil
}

// CreditBonus credits the balance outside the daily quota (signup bonus,
// compensation handled elsewhere) and records a SUCCESS transaction.
func (s *Store) CreditBonus(kind domain.TxKind, amount int64, title, details, source string, now time.Time) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.userLocked()
	if user == nil {
		return domain.Transaction{}, domain.ErrNoSession
	}

	tx := domain.Transaction{
		ID:        uuid.NewString(),
		Kind:      kind,
		Amount:    amount,
		Status:    domain.StatusSuccess,
		Title:     title,
		Details:   details,
		CreatedAt: now,
	}
	user.Coins += amount
	if err := s.commitLocked(*user, nil, tx); err != nil {
		return domain.Transaction{}, err
	}

	observability.CoinsEarned.WithLabelValues(source).Add(float64(amount))
	return tx, nil
}

// CreditReferral credits the referral reward as an EARN transaction. Unlike
// CreditBonus the reward counts toward coins-earned-today, and it is refused
// once the daily earn cap has been reached.
func (s *Store) CreditReferral(amount, dailyCap int64, now time.Time) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.userLocked()
	if user == nil {
		return domain.Transaction{}, domain.ErrNoSession
	}

	stats := s.statsLocked(now)
	if stats.CoinsEarnedToday >= dailyCap {
		observability.TasksDenied.WithLabelValues("earn_cap").Inc()
		return domain.Transaction{}, domain.ErrQuotaExceeded
	}
	stats.CoinsEarnedToday += amount

	tx := domain.Transaction{
		ID:        uuid.NewString(),
		Kind:      domain.TxEarn,
		Amount:    amount,
		Status:    domain.StatusSuccess,
		Title:     "Referral Reward",
		CreatedAt: now,
	}
	user.Coins += amount
	if err := s.commitLocked(*user, &stats, tx); err != nil {
		return domain.Transaction{}, err
	}

	observability.CoinsEarned.WithLabelValues("referral").Add(float64(amount))
	return tx, nil
}

// CheckIn claims the once-per-day check-in bonus. The claim itself counts
// toward coins-earned-today but is allowed to be the day's last credit even
// when it crosses the cap (the cap gates tasks, the bonus is a fixed treat).
func (s *Store) CheckIn(bonus int64, now time.Time) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.userLocked()
	if user == nil {
		return domain.Transaction{}, domain.ErrNoSession
	}
	today := domain.DateString(now)
	if user.LastCheckIn == today {
		return domain.Transaction{}, domain.ErrAlreadyCheckedIn
	}

	stats := s.statsLocked(now)
	stats.CoinsEarnedToday += bonus

	tx := domain.Transaction{
		ID:        uuid.NewString(),
		Kind:      domain.TxBonus,
		Amount:    bonus,
		Status:    domain.StatusSuccess,
		Title:     "Daily Check-In",
		CreatedAt: now,
	}
	user.Coins += bonus
	user.LastCheckIn = today
	if err := s.commitLocked(*user, &stats, tx); err != nil {
		return domain.Transaction{}, err
	}

	observability.CoinsEarned.WithLabelValues("checkin").Add(float64(bonus))
	return tx, nil
}

// ─── Withdrawal ─────────────────────────────────────────────────────────────

// CommitWithdrawal debits the option's coin cost and appends a PENDING
// WITHDRAW transaction carrying the debited cost, payout amount, channel,
// and payment address. The debit happens now, before the remote authority
// confirms; a later rejection is reversed by compensation, never by rolling
// the debit back.
func (s *Store) CommitWithdrawal(opt domain.WithdrawalOption, address string, now time.Time) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.userLocked()
	if user == nil {
		return domain.Transaction{}, domain.ErrNoSession
	}
	if user.Coins < opt.Coins {
		return domain.Transaction{}, domain.ErrInsufficientBalance
	}

	title := "Withdraw to UPI"
	if opt.Channel != domain.ChannelUPI {
		title = "Withdraw to Google Play"
	}
	tx := domain.Transaction{
		ID:        uuid.NewString(),
		Kind:      domain.TxWithdraw,
		Amount:    opt.Amount,
		CoinCost:  opt.Coins,
		Status:    domain.StatusPending,
		Title:     title,
		Channel:   string(opt.Channel),
		Details:   address,
		CreatedAt: now,
	}

	user.Coins -= opt.Coins
	if err := s.commitLocked(*user, nil, tx); err != nil {
		return domain.Transaction{}, err
	}

	observability.CoinsWithdrawn.Add(float64(opt.Coins))
	return tx, nil
}

// ─── Reconciliation ─────────────────────────────────────────────────────────

// UpdateTransactionStatus settles a single PENDING transaction (operator
// override or an authority callback outside the poll cycle). Final statuses
// are immutable: ErrStatusFinal for an already-settled entry, ErrTxNotFound
// for an unknown id.
func (s *Store) UpdateTransactionStatus(id string, status domain.TxStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.UpdateTransactionStatus(id, status); err != nil {
		return err
	}
	observability.StatusTransitions.WithLabelValues(string(status)).Inc()
	return nil
}

// ApplyReconciliation commits staged status updates plus an optional
// compensation (bonus transaction + balance credit) as one atomic write.
// A reader never observes a FAILED status without the matching refund.
func (s *Store) ApplyReconciliation(statuses map[string]domain.TxStatus, bonus *domain.Transaction, credit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.ApplyReconciliation(statuses, bonus, credit); err != nil {
		return err
	}

	for _, status := range statuses {
		observability.StatusTransitions.WithLabelValues(string(status)).Inc()
	}
	if bonus != nil {
		observability.TransactionsAppended.WithLabelValues(string(bonus.Kind)).Inc()
	}
	if credit > 0 {
		observability.CompensationPayouts.Add(float64(credit))
	}
	if u := s.userLocked(); u != nil {
		observability.CoinBalance.Set(float64(u.Coins))
	}
	return nil
}

// ─── Quota Persistence ──────────────────────────────────────────────────────

// SaveStats persists a stats record (used by the quota manager's rollover).
func (s *Store) SaveStats(stats domain.DailyStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.SaveStats(stats)
}

// ─── Internal (lock held) ───────────────────────────────────────────────────

func (s *Store) userLocked() *domain.User {
	u, err := s.db.GetUser()
	if err != nil {
		log.Printf("[ledger] read user: %v", err)
		return nil
	}
	return u
}

func (s *Store) statsLocked(now time.Time) domain.DailyStats {
	stats, err := s.db.GetStats()
	if err != nil {
		log.Printf("[ledger] read stats: %v", err)
		return domain.FreshStats(now)
	}
	return stats.Normalize(now)
}

func (s *Store) historyLocked() []domain.Transaction {
	history, err := s.db.GetHistory()
	if err != nil {
		log.Printf("[ledger] read history: %v", err)
		return nil
	}
	return history
}

// commitLocked persists the user, optional stats, and a new transaction as
// one atomic write. A failed commit leaves the durable state exactly as it
// was, so a debit can never survive without the WITHDRAW entry that
// reconciliation would need to refund it.
func (s *Store) commitLocked(u domain.User, stats *domain.DailyStats, tx domain.Transaction) error {
	if err := s.db.ApplyLedgerEntry(u, stats, tx); err != nil {
		return err
	}
	observability.CoinBalance.Set(float64(u.Coins))
	observability.TransactionsAppended.WithLabelValues(string(tx.Kind)).Inc()
	return nil
}
