package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Ledger errors
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	ErrNoSession           = errors.New("no active user session")
	ErrTxNotFound          = errors.New("transaction not found")
	ErrStatusFinal         = errors.New("transaction status is already final")

	// Quota errors
	ErrQuotaExceeded  = errors.New("daily quota exceeded")
	ErrCooldownActive = errors.New("task cooldown has not elapsed")
	ErrUnknownTask    = errors.New("unknown task kind")

	// Withdrawal flow errors
	ErrInvalidAddress = errors.New("payment address is missing or too short")
	ErrUnknownOption  = errors.New("withdrawal option not in catalog")
	ErrNotConfirmable = errors.New("withdrawal flow is not in a committable state")

	// Remote authority errors
	ErrAuthorityUnavailable = errors.New("remote authority is unreachable")
	ErrStatusNotFound       = errors.New("no remote record for transaction id")

	// Daily bonus errors
	ErrAlreadyCheckedIn = errors.New("daily check-in already claimed today")
)
