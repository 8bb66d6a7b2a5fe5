package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PaulFidika/walletauth/roles"
	"github.com/google/uuid"
)

// MemoryAccounts is an in-process AccountRepository for tests and local development.
type MemoryAccounts struct {
	mu         sync.RWMutex
	byWallet   map[string]*Account
	byUsername map[string]*Account
	now        func() time.Time
}

var _ AccountRepository = (*MemoryAccounts)(nil)

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byWallet:   make(map[string]*Account),
		byUsername: make(map[string]*Account),
		now:        time.Now,
	}
}

func (m *MemoryAccounts) GetByWallet(_ context.Context, walletAddress string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAccount(m.byWallet[walletAddress]), nil
}

func (m *MemoryAccounts) GetByUsername(_ context.Context, username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAccount(m.byUsername[username]), nil
}

func (m *MemoryAccounts) Create(_ context.Context, p CreateAccountParams) (*Account, error) {
	if p.Role == "" {
		p.Role = roles.Default
	}
	if !roles.Valid(p.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, p.Role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byWallet[p.WalletAddress]; ok {
		return nil, ErrAccountExists
	}
	if _, ok := m.byUsername[p.Username]; ok {
		return nil, ErrUsernameTaken
	}
	now := m.now().UTC()
	a := &Account{
		ID:            uuid.NewString(),
		WalletAddress: p.WalletAddress,
		Name:          p.Name,
		Username:      p.Username,
		Role:          p.Role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.byWallet[a.WalletAddress] = a
	m.byUsername[a.Username] = a
	return cloneAccount(a), nil
}

// Len returns the number of stored accounts.
func (m *MemoryAccounts) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byWallet)
}

func cloneAccount(a *Account) *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
