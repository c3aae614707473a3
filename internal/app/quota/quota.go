// Package quota gates reward-granting actions: per-task daily caps, a
// global coins-earned-today cap, and an independent cooldown timer per task
// kind. The caps bound task-spam and the payout liability it creates; the
// global cap is a safety net on top of the per-task caps, since reward
// values can change without the per-task caps being revisited.
package quota

import (
	"sync"
	"time"

	"github.com/scratchearn/ledgerd/internal/app/ledger"
	"github.com/scratchearn/ledgerd/internal/domain"
	"github.com/scratchearn/ledgerd/internal/infra/observability"
)

// Config bounds daily earning.
type Config struct {
	ScratchLimit  int
	SpinLimit     int
	DailyEarnCap  int64
	RewardPerTask int64
	Cooldown      time.Duration
}

// Manager enforces quotas and cooldowns against the ledger store's stats
// record. Cooldown timers live in memory only: a restart clears them, a
// date rollover does not (they are wait times, not daily counters).
type Manager struct {
	mu        sync.Mutex
	store     *ledger.Store
	cfg       Config
	cooldowns map[domain.TaskKind]time.Duration
}

// NewManager creates a quota manager over the ledger store.
func NewManager(store *ledger.Store, cfg Config) *Manager {
	return &Manager{
		store: store,
		cfg:   cfg,
		cooldowns: map[domain.TaskKind]time.Duration{
			domain.TaskScratch: 0,
			domain.TaskSpin:    0,
		},
	}
}

// Check reports why kind is currently not permitted, or nil when it is.
// The three gates are conjunctive: cooldown elapsed, per-task cap not hit,
// global earn cap not hit.
func (m *Manager) Check(kind domain.TaskKind, now time.Time) error {
	if !kind.Valid() {
		return domain.ErrUnknownTask
	}

	m.mu.Lock()
	cooling := m.cooldowns[kind] > 0
	m.mu.Unlock()
	if cooling {
		observability.TasksDenied.WithLabelValues("cooldown").Inc()
		return domain.ErrCooldownActive
	}

	stats := m.store.Stats(now)
	used, limit := stats.ScratchesUsed, m.cfg.ScratchLimit
	if kind == domain.TaskSpin {
		used, limit = stats.SpinsUsed, m.cfg.SpinLimit
	}
	if used >= limit {
		observability.TasksDenied.WithLabelValues("task_cap").Inc()
		return domain.ErrQuotaExceeded
	}
	if stats.CoinsEarnedToday >= m.cfg.DailyEarnCap {
		observability.TasksDenied.WithLabelValues("earn_cap").Inc()
		return domain.ErrQuotaExceeded
	}
	return nil
}

// CanPerform reports whether a completion of kind would currently be rewarded.
func (m *Manager) CanPerform(kind domain.TaskKind, now time.Time) bool {
	return m.Check(kind, now) == nil
}

// RecordCompletion grants the reward for a completed task: counters and
// balance move atomically in the ledger store, and only a successful grant
// resets the task's cooldown. The store re-checks the caps under its own
// lock, so concurrent completions cannot overshoot them.
func (m *Manager) RecordCompletion(kind domain.TaskKind, now time.Time) (domain.DailyStats, error) {
	if err := m.Check(kind, now); err != nil {
		return m.store.Stats(now), err
	}

	limit := m.cfg.ScratchLimit
	if kind == domain.TaskSpin {
		limit = m.cfg.SpinLimit
	}
	stats, err := m.store.ApplyTaskReward(kind, m.cfg.RewardPerTask, ledger.EarnGuard{
		TaskCap:  limit,
		DailyCap: m.cfg.DailyEarnCap,
	}, now)
	if err != nil {
		return stats, err
	}

	m.mu.Lock()
	m.cooldowns[kind] = m.cfg.Cooldown
	m.mu.Unlock()
	return stats, nil
}

// Tick advances both cooldown timers by elapsed, clamping at zero. The two
// timers are fully independent: finishing a scratch never touches the spin
// cooldown and vice versa.
func (m *Manager) Tick(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for kind, remaining := range m.cooldowns {
		remaining -= elapsed
		if remaining < 0 {
			remaining = 0
		}
		m.cooldowns[kind] = remaining
	}
}

// Cooldowns returns the remaining wait per task kind (for display).
func (m *Manager) Cooldowns() map[domain.TaskKind]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.TaskKind]time.Duration, len(m.cooldowns))
	for k, v := range m.cooldowns {
		out[k] = v
	}
	return out
}
