package core

import (
	"context"
	"time"
)

// Account is a wallet-owned user account.
type Account struct {
	ID            string
	WalletAddress string
	Name          string // wallet display name reported at signup, may be empty
	Username      string
	Role          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateAccountParams struct {
	WalletAddress string
	Name          string
	Username      string
	Role          string
}

// AccountRepository is the persistence boundary for accounts.
// Lookups return (nil, nil) when no row matches. Create returns ErrAccountExists
// or ErrUsernameTaken when a uniqueness constraint is hit.
type AccountRepository interface {
	GetByWallet(ctx context.Context, walletAddress string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	Create(ctx context.Context, p CreateAccountParams) (*Account, error)
}
