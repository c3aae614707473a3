// Package daemon loads and validates the ledgerd configuration.
// Configuration lives at ~/.ledgerd/config.toml; every quota, reward, and
// reconciliation knob is tunable there — nothing below is hardcoded logic.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/scratchearn/ledgerd/internal/domain"
)

// Config is the full daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Storage   StorageConfig   `toml:"storage"`
	Quota     QuotaConfig     `toml:"quota"`
	Rewards   RewardsConfig   `toml:"rewards"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Withdraw  WithdrawConfig  `toml:"withdraw"`
	Authority AuthorityConfig `toml:"authority"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// StorageConfig controls the local ledger store.
type StorageConfig struct {
	DataDir string `toml:"data_dir"` // empty = ~/.ledgerd
}

// QuotaConfig bounds daily earning.
type QuotaConfig struct {
	DailyEarnCap   int64  `toml:"daily_earn_cap"`
	ScratchLimit   int    `toml:"scratch_limit"`
	SpinLimit      int    `toml:"spin_limit"`
	Cooldown       string `toml:"cooldown"` // duration string, e.g. "10s"
}

// RewardsConfig sets coin amounts for credit-granting events.
type RewardsConfig struct {
	PerTask       int64 `toml:"per_task"`
	SignupBonus   int64 `toml:"signup_bonus"`
	CheckInBonus  int64 `toml:"check_in_bonus"`
	ReferralBonus int64 `toml:"referral_bonus"`
}

// ReconcileConfig controls the withdrawal reconciliation poller.
type ReconcileConfig struct {
	PollInterval  string `toml:"poll_interval"` // duration string, e.g. "10s"
	GoodwillBonus int64  `toml:"goodwill_bonus"`
}

// WithdrawConfig holds the payout catalog and input validation.
type WithdrawConfig struct {
	MinAddressLen int                       `toml:"min_address_len"`
	Options       []domain.WithdrawalOption `toml:"options"`
}

// AuthorityConfig points at the remote withdrawal authority.
type AuthorityConfig struct {
	BaseURL string `toml:"base_url"` // empty = in-memory authority (local mode)
	Timeout string `toml:"timeout"`
}

// DefaultConfig returns production defaults. Reward and quota values mirror
// the published app constants; the catalog is the live payout menu.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    7420,
			Metrics: true,
		},
		Storage: StorageConfig{},
		Quota: QuotaConfig{
			DailyEarnCap: 300,
			ScratchLimit: 10,
			SpinLimit:    10,
			Cooldown:     "10s",
		},
		Rewards: RewardsConfig{
			PerTask:       10,
			SignupBonus:   50,
			CheckInBonus:  10,
			ReferralBonus: 200,
		},
		Reconcile: ReconcileConfig{
			PollInterval:  "10s",
			GoodwillBonus: 50,
		},
		Withdraw: WithdrawConfig{
			MinAddressLen: 5,
			Options: []domain.WithdrawalOption{
				{ID: "upi_15", Channel: domain.ChannelUPI, Coins: 900, Amount: 15, Label: "₹15 UPI Cash"},
				{ID: "upi_50", Channel: domain.ChannelUPI, Coins: 4500, Amount: 50, Label: "₹50 UPI Cash"},
				{ID: "upi_100", Channel: domain.ChannelUPI, Coins: 9000, Amount: 100, Label: "₹100 UPI Cash"},
				{ID: "play_15", Channel: domain.ChannelGiftCard, Coins: 1500, Amount: 15, Label: "₹15 Google Play Code"},
				{ID: "play_50", Channel: domain.ChannelGiftCard, Coins: 7500, Amount: 50, Label: "₹50 Google Play Code"},
			},
		},
		Authority: AuthorityConfig{
			Timeout: "5s",
		},
	}
}

// Load reads config from path, applying defaults for anything unset.
// A missing file is not an error — defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DefaultPath returns ~/.ledgerd/config.toml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".ledgerd", "config.toml")
}

// DataDir resolves the ledger data directory.
func (c Config) DataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ledgerd"
	}
	return filepath.Join(home, ".ledgerd")
}

// Validate checks invariants the rest of the system assumes.
func (c Config) Validate() error {
	if c.Quota.DailyEarnCap <= 0 {
		return fmt.Errorf("quota.daily_earn_cap must be positive, got %d", c.Quota.DailyEarnCap)
	}
	if c.Rewards.PerTask <= 0 {
		return fmt.Errorf("rewards.per_task must be positive, got %d", c.Rewards.PerTask)
	}
	if c.Reconcile.GoodwillBonus < 0 {
		return fmt.Errorf("reconcile.goodwill_bonus must not be negative, got %d", c.Reconcile.GoodwillBonus)
	}
	seen := make(map[string]bool, len(c.Withdraw.Options))
	for _, opt := range c.Withdraw.Options {
		if opt.ID == "" || opt.Coins <= 0 || opt.Amount <= 0 {
			return fmt.Errorf("withdraw option %q is malformed", opt.ID)
		}
		if seen[opt.ID] {
			return fmt.Errorf("duplicate withdraw option id %q", opt.ID)
		}
		seen[opt.ID] = true
	}
	return nil
}

// CooldownDuration parses the configured cooldown, falling back to 10s.
func (c Config) CooldownDuration() time.Duration {
	return parseDuration(c.Quota.Cooldown, 10*time.Second)
}

// PollDuration parses the configured poll interval, falling back to 10s.
func (c Config) PollDuration() time.Duration {
	return parseDuration(c.Reconcile.PollInterval, 10*time.Second)
}

// AuthorityTimeout parses the configured authority timeout, falling back to 5s.
func (c Config) AuthorityTimeout() time.Duration {
	return parseDuration(c.Authority.Timeout, 5*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Catalog returns the withdrawal options as a domain catalog.
func (c Config) Catalog() domain.Catalog {
	return domain.Catalog(c.Withdraw.Options)
}
