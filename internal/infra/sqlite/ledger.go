// Ledger persistence operations. Every mutating call commits before
// returning, so a crash immediately afterwards observes the new state on
// next load. Getters map "no row" to empty defaults — absence of data is
// not an error at this layer.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/scratchearn/ledgerd/internal/domain"
)

const (
	kvDeviceID      = "device_id"
	kvSessionActive = "session_active"
)

// execer is satisfied by both *sql.DB and *sql.Tx, so the row-level write
// helpers below serve the single-statement paths and the transactional ones.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// ─── User Profile Operations ────────────────────────────────────────────────

// GetUser returns the stored user profile, or nil when none exists.
func (d *DB) GetUser() (*domain.User, error) {
	var (
		u         domain.User
		newInt    int
		signupStr string
	)
	err := d.db.QueryRow(`
		SELECT email, device_id, coins, is_new_user, signup_date, last_check_in
		FROM user_profile WHERE id = 1
	`).Scan(&u.Email, &u.DeviceID, &u.Coins, &newInt, &signupStr, &u.LastCheckIn)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.IsNewUser = newInt == 1
	u.SignupDate, _ = time.Parse(time.RFC3339, signupStr)
	return &u, nil
}

// SaveUser inserts or replaces the user profile row.
func (d *DB) SaveUser(u domain.User) error {
	return saveUser(d.db, u)
}

func saveUser(q execer, u domain.User) error {
	newInt := 0
	if u.IsNewUser {
		newInt = 1
	}
	_, err := q.Exec(`
		INSERT INTO user_profile (id, email, device_id, coins, is_new_user, signup_date, last_check_in)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email         = excluded.email,
			device_id     = excluded.device_id,
			coins         = excluded.coins,
			is_new_user   = excluded.is_new_user,
			signup_date   = excluded.signup_date,
			last_check_in = excluded.last_check_in
	`, u.Email, u.DeviceID, u.Coins, newInt, u.SignupDate.Format(time.RFC3339), u.LastCheckIn)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// ─── Daily Stats Operations ─────────────────────────────────────────────────

// GetStats returns the stored daily stats record. A missing row comes back
// as a zero record with an empty date; callers normalize for rollover.
func (d *DB) GetStats() (domain.DailyStats, error) {
	var s domain.DailyStats
	err := d.db.QueryRow(`
		SELECT date, scratches_used, spins_used, coins_earned
		FROM daily_stats WHERE id = 1
	`).Scan(&s.Date, &s.ScratchesUsed, &s.SpinsUsed, &s.CoinsEarnedToday)
	if err == sql.ErrNoRows {
		return domain.DailyStats{}, nil
	}
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("get stats: %w", err)
	}
	return s, nil
}

// SaveStats inserts or replaces the daily stats row.
func (d *DB) SaveStats(s domain.DailyStats) error {
	return saveStats(d.db, s)
}

func saveStats(q execer, s domain.DailyStats) error {
	_, err := q.Exec(`
		INSERT INTO daily_stats (id, date, scratches_used, spins_used, coins_earned)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date           = excluded.date,
			scratches_used = excluded.scratches_used,
			spins_used     = excluded.spins_used,
			coins_earned   = excluded.coins_earned
	`, s.Date, s.ScratchesUsed, s.SpinsUsed, s.CoinsEarnedToday)
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// ─── Transaction History Operations ─────────────────────────────────────────

// GetHistory returns all transactions, newest first.
func (d *DB) GetHistory() ([]domain.Transaction, error) {
	rows, err := d.db.Query(`
		SELECT id, kind, amount, coin_cost, status, title, channel, details, created_at
		FROM transactions ORDER BY seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	var history []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, tx)
	}
	return history, rows.Err()
}

// AppendTransaction adds a new entry to the history. Existing entries are
// never touched by this path.
func (d *DB) AppendTransaction(tx domain.Transaction) error {
	return insertTransaction(d.db, tx)
}

func insertTransaction(q execer, tx domain.Transaction) error {
	_, err := q.Exec(`
		INSERT INTO transactions (id, kind, amount, coin_cost, status, title, channel, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, string(tx.Kind), tx.Amount, tx.CoinCost, string(tx.Status),
		tx.Title, tx.Channel, tx.Details, tx.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// markFinal flips a still-PENDING entry to status, reporting how many rows
// changed. Zero means the entry is absent or already final.
func markFinal(q execer, id string, status domain.TxStatus) (int64, error) {
	res, err := q.Exec(`
		UPDATE transactions SET status = ? WHERE id = ? AND status = ?
	`, string(status), id, string(domain.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("update status: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UpdateTransactionStatus moves a PENDING entry to a final status. This is
// the only path that mutates an existing entry, and only its status field.
// A final status never changes again.
func (d *DB) UpdateTransactionStatus(id string, status domain.TxStatus) error {
	n, err := markFinal(d.db, id, status)
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := d.db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if exists == 0 {
			return domain.ErrTxNotFound
		}
		return domain.ErrStatusFinal
	}
	return nil
}

// ApplyLedgerEntry persists the user row, an optional stats row, and a new
// transaction in a single SQL transaction. A failure on any statement rolls
// back the rest, so a balance change can never land without its history
// entry.
func (d *DB) ApplyLedgerEntry(u domain.User, stats *domain.DailyStats, tx domain.Transaction) error {
	sqlTx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin ledger entry: %w", err)
	}
	defer sqlTx.Rollback()

	if err := saveUser(sqlTx, u); err != nil {
		return err
	}
	if stats != nil {
		if err := saveStats(sqlTx, *stats); err != nil {
			return err
		}
	}
	if err := insertTransaction(sqlTx, tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit ledger entry: %w", err)
	}
	return nil
}

// ApplyReconciliation applies staged status updates, an optional bonus
// transaction, and a balance credit in a single SQL transaction, so a
// reader never observes a failure status without its refund.
func (d *DB) ApplyReconciliation(statuses map[string]domain.TxStatus, bonus *domain.Transaction, credit int64) error {
	sqlTx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin reconciliation: %w", err)
	}
	defer sqlTx.Rollback()

	for id, status := range statuses {
		if _, err := markFinal(sqlTx, id, status); err != nil {
			return fmt.Errorf("stage status %s: %w", id, err)
		}
	}

	if bonus != nil {
		if err := insertTransaction(sqlTx, *bonus); err != nil {
			return fmt.Errorf("insert bonus: %w", err)
		}
	}

	if credit != 0 {
		if _, err := sqlTx.Exec(`
			UPDATE user_profile SET coins = coins + ? WHERE id = 1
		`, credit); err != nil {
			return fmt.Errorf("apply credit: %w", err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit reconciliation: %w", err)
	}
	return nil
}

// ─── Device / Session Operations ────────────────────────────────────────────

// GetDeviceID returns the stored device identifier, or "" when unset.
func (d *DB) GetDeviceID() (string, error) {
	return d.getKV(kvDeviceID)
}

// SetDeviceID stores the device identifier.
func (d *DB) SetDeviceID(id string) error {
	return d.setKV(kvDeviceID, id)
}

// SessionActive reports whether a session is currently marked active.
func (d *DB) SessionActive() (bool, error) {
	v, err := d.getKV(kvSessionActive)
	return v == "true", err
}

// SetSessionActive stores the session flag.
func (d *DB) SetSessionActive(active bool) error {
	v := "false"
	if active {
		v = "true"
	}
	return d.setKV(kvSessionActive, v)
}

func (d *DB) getKV(key string) (string, error) {
	var v string
	err := d.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (d *DB) setKV(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func scanTransaction(rows *sql.Rows) (domain.Transaction, error) {
	var (
		tx           domain.Transaction
		kind, status string
		createdStr   string
	)
	if err := rows.Scan(&tx.ID, &kind, &tx.Amount, &tx.CoinCost, &status,
		&tx.Title, &tx.Channel, &tx.Details, &createdStr); err != nil {
		return domain.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	tx.Kind = domain.TxKind(kind)
	tx.Status = domain.TxStatus(status)
	tx.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return tx, nil
}
