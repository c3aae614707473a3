// Package session manages the authenticated user session: login (signup
// bonus for first-timers), logout, and the two periodic drivers scoped to
// the session's lifetime: the 1s cooldown ticker and the reconciliation
// poller. Both stop cleanly on logout; no orphaned cycle applies updates
// afterwards.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/scratchearn/ledgerd/internal/app/ledger"
	"github.com/scratchearn/ledgerd/internal/app/quota"
	"github.com/scratchearn/ledgerd/internal/app/reconcile"
	"github.com/scratchearn/ledgerd/internal/domain"
)

// tickInterval drives the cooldown timers.
const tickInterval = time.Second

// Config sets the session bonuses. DailyEarnCap bounds the referral reward
// the same way it bounds task rewards.
type Config struct {
	SignupBonus   int64
	CheckInBonus  int64
	ReferralBonus int64
	DailyEarnCap  int64
}

// Manager owns the session state and its background drivers.
type Manager struct {
	mu     sync.Mutex
	store  *ledger.Store
	quota  *quota.Manager
	poller *reconcile.Poller
	cfg    Config

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a session manager.
func NewManager(store *ledger.Store, q *quota.Manager, p *reconcile.Poller, cfg Config) *Manager {
	return &Manager{store: store, quota: q, poller: p, cfg: cfg}
}

// Login establishes a session for email. A first-time email creates the
// user with the signup bonus and a SUCCESS BONUS transaction; a returning
// user is re-activated as-is. The device id is generated on first use and
// sticks to the profile for abuse tracking.
func (m *Manager) Login(email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deviceID := m.store.DeviceID()
	user := m.store.User()

	if user == nil || user.Email != email {
		user = &domain.User{
			Email:      email,
			DeviceID:   deviceID,
			IsNewUser:  true,
			SignupDate: time.Now(),
		}
		if err := m.store.SaveUser(*user); err != nil {
			return nil, err
		}
		if _, err := m.store.CreditBonus(domain.TxBonus, m.cfg.SignupBonus, "Signup Bonus", "", "signup", time.Now()); err != nil {
			return nil, err
		}
	} else {
		user.IsNewUser = false
		if err := m.store.SaveUser(*user); err != nil {
			return nil, err
		}
	}

	if err := m.store.SetSessionActive(true); err != nil {
		return nil, err
	}
	m.startLocked()
	log.Printf("[session] %s logged in (device %s)", email, deviceID)
	return m.store.User(), nil
}

// Logout tears the session down: drivers stop before the flag flips, so no
// poll cycle can apply updates after the session ends.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	if err := m.store.SetSessionActive(false); err != nil {
		return err
	}
	log.Printf("[session] logged out")
	return nil
}

// Resume restarts the drivers for a persisted active session (daemon
// restart with a logged-in user).
func (m *Manager) Resume() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.store.SessionActive() || m.store.User() == nil {
		return false
	}
	m.startLocked()
	return true
}

// Active reports whether a session is currently established.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// CreditReferral credits the referral bonus with an EARN transaction. The
// reward counts against the daily earn cap.
func (m *Manager) CreditReferral() (domain.Transaction, error) {
	return m.store.CreditReferral(m.cfg.ReferralBonus, m.cfg.DailyEarnCap, time.Now())
}

// CheckIn claims the daily check-in bonus.
func (m *Manager) CheckIn() (domain.Transaction, error) {
	return m.store.CheckIn(m.cfg.CheckInBonus, time.Now())
}

// Close stops the drivers without touching the persisted session flag
// (daemon shutdown, not logout).
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) startLocked() {
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.runTicker(ctx)
		}()
		go func() {
			defer wg.Done()
			m.poller.Run(ctx)
		}()
		wg.Wait()
	}()
}

func (m *Manager) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
}

func (m *Manager) runTicker(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.quota.Tick(now.Sub(last))
			last = now
		}
	}
}
