package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 7420 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 7420)
	}
	if cfg.Quota.DailyEarnCap != 300 {
		t.Errorf("Quota.DailyEarnCap = %d, want 300", cfg.Quota.DailyEarnCap)
	}
	if cfg.Quota.ScratchLimit != 10 || cfg.Quota.SpinLimit != 10 {
		t.Errorf("per-task limits = %d/%d, want 10/10", cfg.Quota.ScratchLimit, cfg.Quota.SpinLimit)
	}
	if cfg.Rewards.PerTask != 10 {
		t.Errorf("Rewards.PerTask = %d, want 10", cfg.Rewards.PerTask)
	}
	if cfg.Rewards.SignupBonus != 50 {
		t.Errorf("Rewards.SignupBonus = %d, want 50", cfg.Rewards.SignupBonus)
	}
	if cfg.Reconcile.GoodwillBonus != 50 {
		t.Errorf("Reconcile.GoodwillBonus = %d, want 50", cfg.Reconcile.GoodwillBonus)
	}
	if len(cfg.Withdraw.Options) != 5 {
		t.Fatalf("len(Withdraw.Options) = %d, want 5", len(cfg.Withdraw.Options))
	}
	if cfg.Withdraw.Options[0].Coins != 900 || cfg.Withdraw.Options[0].Amount != 15 {
		t.Errorf("first option = %+v, want 900 coins / 15 payout", cfg.Withdraw.Options[0])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error: %v", err)
	}
}

func TestConfig_Durations(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"10s", 10 * time.Second},
		{"1m30s", 90 * time.Second},
		{"", 10 * time.Second},        // default
		{"garbage", 10 * time.Second}, // default
		{"-5s", 10 * time.Second},     // non-positive rejected
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Quota.Cooldown = tt.input
			if got := cfg.CooldownDuration(); got != tt.want {
				t.Errorf("CooldownDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() on missing file error: %v", err)
	}
	if cfg.Quota.DailyEarnCap != 300 {
		t.Errorf("DailyEarnCap = %d, want default 300", cfg.Quota.DailyEarnCap)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[quota]
daily_earn_cap = 500
cooldown = "3s"

[reconcile]
poll_interval = "2s"
goodwill_bonus = 25
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Quota.DailyEarnCap != 500 {
		t.Errorf("DailyEarnCap = %d, want 500", cfg.Quota.DailyEarnCap)
	}
	if cfg.CooldownDuration() != 3*time.Second {
		t.Errorf("CooldownDuration = %v, want 3s", cfg.CooldownDuration())
	}
	if cfg.PollDuration() != 2*time.Second {
		t.Errorf("PollDuration = %v, want 2s", cfg.PollDuration())
	}
	if cfg.Reconcile.GoodwillBonus != 25 {
		t.Errorf("GoodwillBonus = %d, want 25", cfg.Reconcile.GoodwillBonus)
	}
	// Untouched sections keep defaults.
	if cfg.Rewards.PerTask != 10 {
		t.Errorf("Rewards.PerTask = %d, want default 10", cfg.Rewards.PerTask)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Withdraw.Options = append(cfg.Withdraw.Options, cfg.Withdraw.Options[0])
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject duplicate option ids")
	}

	cfg = DefaultConfig()
	cfg.Quota.DailyEarnCap = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject zero daily earn cap")
	}
}
