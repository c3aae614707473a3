package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scratchearn/ledgerd/internal/domain"
)

// ─── Session ────────────────────────────────────────────────────────────────

// handleLogin establishes the session, creating the account on first login.
// POST /api/login {"email": "..."}
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := s.session.Login(req.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleLogout ends the session and stops the background drivers.
// POST /api/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.flow.Cancel()
	if err := s.session.Logout(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleCheckIn claims the daily check-in bonus.
// POST /api/checkin
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	tx, err := s.session.CheckIn()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// handleReferral credits the referral reward.
// POST /api/referral
func (s *Server) handleReferral(w http.ResponseWriter, r *http.Request) {
	tx, err := s.session.CreditReferral()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// ─── Wallet Reads ───────────────────────────────────────────────────────────

// handleWallet returns the user profile and balance.
// GET /api/wallet
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	user := s.store.User()
	if user == nil {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleStats returns today's quota usage and remaining cooldowns.
// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	stats := s.store.Stats(now)
	cooldowns := s.quota.Cooldowns()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":               stats.Date,
		"scratches_used":     stats.ScratchesUsed,
		"spins_used":         stats.SpinsUsed,
		"coins_earned_today": stats.CoinsEarnedToday,
		"cooldowns": map[string]float64{
			"scratch": cooldowns[domain.TaskScratch].Seconds(),
			"spin":    cooldowns[domain.TaskSpin].Seconds(),
		},
	})
}

// handleHistory returns the transaction history, newest first.
// GET /api/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.store.History()
	if history == nil {
		history = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, history)
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

// handleTaskComplete reports a completed task and grants the reward.
// POST /api/tasks/{kind}/complete
func (s *Server) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	kind := taskKindFromPath(chi.URLParam(r, "kind"))
	stats, err := s.quota.RecordCompletion(kind, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	user := s.store.User()
	var coins int64
	if user != nil {
		coins = user.Coins
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"coins":              coins,
		"scratches_used":     stats.ScratchesUsed,
		"spins_used":         stats.SpinsUsed,
		"coins_earned_today": stats.CoinsEarnedToday,
	})
}

func taskKindFromPath(param string) domain.TaskKind {
	switch param {
	case "scratch":
		return domain.TaskScratch
	case "spin":
		return domain.TaskSpin
	default:
		return domain.TaskKind(param)
	}
}

// ─── Withdrawals ────────────────────────────────────────────────────────────

// handleWithdrawalOptions returns the payout catalog.
// GET /api/withdrawals/options
func (s *Server) handleWithdrawalOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.flow.Options())
}

// handleWithdraw runs the whole withdrawal flow in one shot: select the
// option, validate the address, check the balance, commit. The flow holds
// its lock across the sequence, so concurrent requests serialize instead of
// clobbering each other's selection. Any rejection leaves the flow reset
// and the balance untouched.
// POST /api/withdrawals {"option_id": "...", "address": "..."}
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OptionID string `json:"option_id"`
		Address  string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := s.flow.Run(r.Context(), req.OptionID, req.Address)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// ─── Error Mapping ──────────────────────────────────────────────────────────

// writeDomainError maps domain sentinels onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNoSession):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnknownTask),
		errors.Is(err, domain.ErrUnknownOption),
		errors.Is(err, domain.ErrInvalidAddress):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrCooldownActive):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrAlreadyCheckedIn),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrNotConfirmable),
		errors.Is(err, domain.ErrStatusFinal):
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}
