package remote

import (
	"context"
	"sync"

	"github.com/scratchearn/ledgerd/internal/domain"
)

// MemoryAuthority is an in-process authority: every submitted withdrawal
// starts PENDING and stays there until an operator (or a test) resolves it.
// Used in local mode and throughout the test suite.
type MemoryAuthority struct {
	mu       sync.Mutex
	statuses map[string]domain.RemoteStatus

	// fail-injection hooks for tests
	submitErr map[string]error
	statusErr map[string]error
}

// NewMemoryAuthority creates an empty in-memory authority.
func NewMemoryAuthority() *MemoryAuthority {
	return &MemoryAuthority{
		statuses:  make(map[string]domain.RemoteStatus),
		submitErr: make(map[string]error),
		statusErr: make(map[string]error),
	}
}

// SubmitWithdrawal records the request as PENDING.
func (m *MemoryAuthority) SubmitWithdrawal(_ context.Context, _ string, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.submitErr[tx.ID]; err != nil {
		return err
	}
	m.statuses[tx.ID] = domain.RemotePending
	return nil
}

// GetStatus returns the recorded status for txID.
func (m *MemoryAuthority) GetStatus(_ context.Context, txID string) (domain.RemoteStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.statusErr[txID]; err != nil {
		return "", err
	}
	s, ok := m.statuses[txID]
	if !ok {
		return "", domain.ErrStatusNotFound
	}
	return s, nil
}

// Resolve sets the authoritative status for a request id (manual approval).
func (m *MemoryAuthority) Resolve(txID string, status domain.RemoteStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[txID] = status
}

// FailStatus makes GetStatus for txID return err until cleared with nil.
func (m *MemoryAuthority) FailStatus(txID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.statusErr, txID)
		return
	}
	m.statusErr[txID] = err
}

// FailSubmit makes SubmitWithdrawal for txID return err until cleared with nil.
func (m *MemoryAuthority) FailSubmit(txID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.submitErr, txID)
		return
	}
	m.submitErr[txID] = err
}

// Submitted reports whether the authority has a record for txID.
func (m *MemoryAuthority) Submitted(txID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.statuses[txID]
	return ok
}
