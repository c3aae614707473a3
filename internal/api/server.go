// Package api provides the HTTP server for the ledger daemon: the wallet,
// task, and withdrawal endpoints the client UI talks to, plus health and
// Prometheus metrics.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scratchearn/ledgerd/internal/app/ledger"
	"github.com/scratchearn/ledgerd/internal/app/quota"
	"github.com/scratchearn/ledgerd/internal/app/session"
	"github.com/scratchearn/ledgerd/internal/app/withdraw"
)

// Server is the ledger HTTP API server.
type Server struct {
	store          *ledger.Store
	quota          *quota.Manager
	session        *session.Manager
	flow           *withdraw.Flow
	metricsEnabled bool
}

// NewServer creates a new API server over the app services.
func NewServer(store *ledger.Store, q *quota.Manager, sess *session.Manager, flow *withdraw.Flow) *Server {
	return &Server{store: store, quota: q, session: sess, flow: flow}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/checkin", s.handleCheckIn)
		r.Post("/referral", s.handleReferral)

		r.Get("/wallet", s.handleWallet)
		r.Get("/stats", s.handleStats)
		r.Get("/history", s.handleHistory)

		r.Post("/tasks/{kind}/complete", s.handleTaskComplete)

		r.Get("/withdrawals/options", s.handleWithdrawalOptions)
		r.Post("/withdrawals", s.handleWithdraw)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for the local client UI.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
