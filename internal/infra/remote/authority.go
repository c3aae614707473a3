// Package remote implements the withdrawal authority clients.
//
// The authority is the system of record for withdrawal approval: the daemon
// submits requests fire-and-forget and polls per-id status. Two
// implementations: an HTTP client for a real authority service, and an
// in-memory store for tests and local mode.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/scratchearn/ledgerd/internal/domain"
)

// HTTPAuthority talks to a remote authority service over JSON/HTTP.
type HTTPAuthority struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAuthority creates a client for the authority at baseURL.
func NewHTTPAuthority(baseURL string, timeout time.Duration) *HTTPAuthority {
	return &HTTPAuthority{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type submitRequest struct {
	ID        string `json:"id"`
	UserEmail string `json:"user_email"`
	Amount    int64  `json:"amount"`
	CoinCost  int64  `json:"coin_cost"`
	Channel   string `json:"channel"`
	Address   string `json:"address"`
	CreatedAt string `json:"created_at"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// SubmitWithdrawal registers a pending withdrawal with the authority.
func (a *HTTPAuthority) SubmitWithdrawal(ctx context.Context, userEmail string, tx domain.Transaction) error {
	body, err := json.Marshal(submitRequest{
		ID:        tx.ID,
		UserEmail: userEmail,
		Amount:    tx.Amount,
		CoinCost:  tx.CoinCost,
		Channel:   tx.Channel,
		Address:   tx.Details,
		CreatedAt: tx.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode withdrawal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/withdrawals", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthorityUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: submit returned %s", domain.ErrAuthorityUnavailable, resp.Status)
	}
	return nil
}

// GetStatus looks up the authoritative status for a transaction id.
func (a *HTTPAuthority) GetStatus(ctx context.Context, txID string) (domain.RemoteStatus, error) {
	url := fmt.Sprintf("%s/withdrawals/%s/status", a.baseURL, txID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuthorityUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", domain.ErrStatusNotFound
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status returned %s", domain.ErrAuthorityUnavailable, resp.Status)
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decode status: %w", err)
	}

	switch s := domain.RemoteStatus(sr.Status); s {
	case domain.RemotePending, domain.RemoteSuccess, domain.RemoteFailed:
		return s, nil
	default:
		return "", fmt.Errorf("authority returned unknown status %q", sr.Status)
	}
}
