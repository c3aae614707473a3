package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scratchearn/ledgerd/internal/api"
	"github.com/scratchearn/ledgerd/internal/app/ledger"
	"github.com/scratchearn/ledgerd/internal/app/quota"
	"github.com/scratchearn/ledgerd/internal/app/reconcile"
	"github.com/scratchearn/ledgerd/internal/app/session"
	"github.com/scratchearn/ledgerd/internal/app/withdraw"
	"github.com/scratchearn/ledgerd/internal/daemon"
	"github.com/scratchearn/ledgerd/internal/domain"
	"github.com/scratchearn/ledgerd/internal/infra/remote"
	"github.com/scratchearn/ledgerd/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger daemon",
	Long: `Start the ledger daemon: the HTTP API, the cooldown ticker, and
the withdrawal reconciliation poller. An active session persisted from a
previous run is resumed automatically.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	db, err := sqlite.Open(filepath.Join(cfg.DataDir(), "ledger.db"))
	if err != nil {
		return fmt.Errorf("open ledger database: %w", err)
	}
	defer db.Close()

	store := ledger.NewStore(db)
	q := quota.NewManager(store, quota.Config{
		ScratchLimit:  cfg.Quota.ScratchLimit,
		SpinLimit:     cfg.Quota.SpinLimit,
		DailyEarnCap:  cfg.Quota.DailyEarnCap,
		RewardPerTask: cfg.Rewards.PerTask,
		Cooldown:      cfg.CooldownDuration(),
	})

	authority := newAuthority(cfg)
	comp := reconcile.NewCompensator(cfg.Catalog(), cfg.Reconcile.GoodwillBonus)
	poller := reconcile.NewPoller(store, authority, comp, cfg.PollDuration())
	sess := session.NewManager(store, q, poller, session.Config{
		SignupBonus:   cfg.Rewards.SignupBonus,
		CheckInBonus:  cfg.Rewards.CheckInBonus,
		ReferralBonus: cfg.Rewards.ReferralBonus,
		DailyEarnCap:  cfg.Quota.DailyEarnCap,
	})
	defer sess.Close()
	flow := withdraw.NewFlow(store, authority, cfg.Catalog(), cfg.Withdraw.MinAddressLen)

	if sess.Resume() {
		log.Printf("[serve] resumed session for %s", store.User().Email)
	}

	server := api.NewServer(store, q, sess, flow)
	if cfg.API.Metrics {
		server.EnableMetrics()
	}

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[serve] listening on http://%s", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		log.Printf("[serve] received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newAuthority picks the withdrawal authority: HTTP when a base URL is
// configured, in-memory otherwise (local mode).
func newAuthority(cfg daemon.Config) domain.RemoteAuthority {
	if cfg.Authority.BaseURL != "" {
		return remote.NewHTTPAuthority(cfg.Authority.BaseURL, cfg.AuthorityTimeout())
	}
	log.Printf("[serve] no authority configured, using in-memory authority")
	return remote.NewMemoryAuthority()
}
